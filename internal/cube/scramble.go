package cube

import "math/rand/v2"

// Scramble returns n random moves. Consecutive moves never turn the same
// face, so no pair collapses into a single move.
func Scramble(rng *rand.Rand, n int) []Move {
	moves := make([]Move, 0, n)
	turns := [3]Turn{CW, CCW, Double}
	var last Face
	for len(moves) < n {
		f := Faces[rng.IntN(len(Faces))]
		if f == last {
			continue
		}
		moves = append(moves, Move{Face: f, Turn: turns[rng.IntN(len(turns))]})
		last = f
	}
	return moves
}
