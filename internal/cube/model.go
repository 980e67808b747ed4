package cube

import "fmt"

// The sticker permutations are derived from geometry rather than typed in.
// Each sticker gets a position on the 3x3x3 lattice (x right, y up, z front)
// and the outward normal of its face. A clockwise turn of face n rotates
// every sticker with pos·n == 1 by -90° around n.

type vec [3]int

func (a vec) dot(b vec) int {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a vec) cross(b vec) vec {
	return vec{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// rotateCW turns v a quarter clockwise as seen from outside along n.
func rotateCW(n, v vec) vec {
	c := n.cross(v)
	d := n.dot(v)
	return vec{-c[0] + n[0]*d, -c[1] + n[1]*d, -c[2] + n[2]*d}
}

type sticker struct {
	pos, normal vec
}

func stickerAt(face Face, row, col int) sticker {
	switch face {
	case Up:
		return sticker{vec{col - 1, 1, row - 1}, vec{0, 1, 0}}
	case Right:
		return sticker{vec{1, 1 - row, 1 - col}, vec{1, 0, 0}}
	case Front:
		return sticker{vec{col - 1, 1 - row, 1}, vec{0, 0, 1}}
	case Down:
		return sticker{vec{col - 1, -1, 1 - row}, vec{0, -1, 0}}
	case Left:
		return sticker{vec{-1, 1 - row, col - 1}, vec{-1, 0, 0}}
	case Back:
		return sticker{vec{1 - col, 1 - row, -1}, vec{0, 0, -1}}
	}
	panic(fmt.Sprintf("cube: unknown face %q", byte(face)))
}

// permutation maps each sticker index to its index after one clockwise turn.
type permutation [FaceletCount]int

var quarterTurns = buildPermutations()

func buildPermutations() map[Face]permutation {
	var stickers [FaceletCount]sticker
	index := make(map[sticker]int, FaceletCount)
	for i, f := range Faces {
		for j := 0; j < 9; j++ {
			s := stickerAt(f, j/3, j%3)
			stickers[i*9+j] = s
			index[s] = i*9 + j
		}
	}

	perms := make(map[Face]permutation, len(Faces))
	for _, f := range Faces {
		n := stickerAt(f, 1, 1).normal
		var p permutation
		for i, s := range stickers {
			p[i] = i
			if s.pos.dot(n) != 1 {
				continue
			}
			moved := sticker{rotateCW(n, s.pos), rotateCW(n, s.normal)}
			p[i] = index[moved]
		}
		perms[f] = p
	}
	return perms
}

// Cube is a sticker-level cube model used to replay move sequences.
type Cube struct {
	stickers [FaceletCount]byte
}

// NewSolved returns a solved cube.
func NewSolved() *Cube {
	c, _ := FromFacelets(Solved)
	return c
}

// FromFacelets loads a cube from a facelet string. Only the alphabet is
// checked; unreachable states are accepted.
func FromFacelets(f Facelets) (*Cube, error) {
	if err := f.CheckAlphabet(); err != nil {
		return nil, err
	}
	c := &Cube{}
	copy(c.stickers[:], f)
	return c, nil
}

// Apply turns the cube by m.
func (c *Cube) Apply(m Move) {
	p := quarterTurns[m.Face]
	for k := 0; k < m.quarterTurns(); k++ {
		var next [FaceletCount]byte
		for i, j := range p {
			next[j] = c.stickers[i]
		}
		c.stickers = next
	}
}

// ApplyAll turns the cube by every move in order.
func (c *Cube) ApplyAll(moves []Move) {
	for _, m := range moves {
		c.Apply(m)
	}
}

// Facelets returns the current facelet string.
func (c *Cube) Facelets() Facelets {
	return Facelets(c.stickers[:])
}

// IsSolved reports whether every face shows one letter.
func (c *Cube) IsSolved() bool {
	return c.Facelets().IsSolved()
}

// Solves reports whether moves take f to the solved state.
func Solves(f Facelets, moves []Move) (bool, error) {
	c, err := FromFacelets(f)
	if err != nil {
		return false, err
	}
	c.ApplyAll(moves)
	return c.IsSolved(), nil
}
