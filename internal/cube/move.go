package cube

import (
	"fmt"
	"strings"
)

// Turn is the direction and amount of a face turn.
type Turn int

const (
	CW     Turn = 1  // Clockwise quarter turn
	CCW    Turn = -1 // Counter-clockwise quarter turn
	Double Turn = 2  // Half turn
)

// Move is one solver move: a face and a turn.
type Move struct {
	Face Face
	Turn Turn
}

// Notation returns the canonical token for m: R, R' or R2.
func (m Move) Notation() string {
	switch m.Turn {
	case CCW:
		return m.Face.String() + "'"
	case Double:
		return m.Face.String() + "2"
	}
	return m.Face.String()
}

func (m Move) String() string {
	return m.Notation()
}

// Inverse returns the move that undoes m. Half turns are their own inverse.
func (m Move) Inverse() Move {
	switch m.Turn {
	case CW:
		m.Turn = CCW
	case CCW:
		m.Turn = CW
	}
	return m
}

// quarterTurns returns the number of clockwise quarter turns m amounts to.
func (m Move) quarterTurns() int {
	switch m.Turn {
	case CCW:
		return 3
	case Double:
		return 2
	}
	return 1
}

// AllMoves lists the 18 canonical moves, face by face in facelet order.
func AllMoves() []Move {
	moves := make([]Move, 0, 18)
	for _, f := range Faces {
		moves = append(moves, Move{f, CW}, Move{f, CCW}, Move{f, Double})
	}
	return moves
}

// ParseMove parses one canonical token. Only upper-case face letters with
// an optional ' or 2 suffix are accepted.
func ParseMove(token string) (Move, error) {
	if len(token) == 0 || len(token) > 2 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, token)
	}
	face := Face(token[0])
	if !face.Valid() {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, token)
	}
	m := Move{Face: face, Turn: CW}
	if len(token) == 2 {
		switch token[1] {
		case '\'':
			m.Turn = CCW
		case '2':
			m.Turn = Double
		default:
			return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, token)
		}
	}
	return m, nil
}

// ParseMoves parses a space-delimited sequence and fails on the first
// invalid token.
func ParseMoves(s string) ([]Move, error) {
	parts := strings.Fields(s)
	moves := make([]Move, 0, len(parts))
	for i, part := range parts {
		m, err := ParseMove(part)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i+1, err)
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// FormatMoves joins moves with single spaces.
func FormatMoves(moves []Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.Notation()
	}
	return strings.Join(parts, " ")
}

// Tokens returns the canonical tokens of moves.
func Tokens(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.Notation()
	}
	return out
}
