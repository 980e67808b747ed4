package cube

import (
	"fmt"
	"strings"
)

// Facelets is the canonical 54-character cube encoding: faces U, R, F, D,
// L, B, nine stickers each in row-major order.
type Facelets string

// FaceletCount is the length of a facelet string.
const FaceletCount = 54

// Solved is the facelet string of a solved cube.
const Solved Facelets = "UUUUUUUUURRRRRRRRRFFFFFFFFFDDDDDDDDDLLLLLLLLLBBBBBBBBB"

// CheckAlphabet verifies length and alphabet only. It is the precondition
// for handing a string to the solver.
func (f Facelets) CheckAlphabet() error {
	if len(f) != FaceletCount {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidFacelets, len(f), FaceletCount)
	}
	for i := 0; i < len(f); i++ {
		if !Face(f[i]).Valid() {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidFacelets, f[i], i)
		}
	}
	return nil
}

// Validate checks the alphabet, that every face letter appears nine times
// and that each center carries its own face letter.
func (f Facelets) Validate() error {
	if err := f.CheckAlphabet(); err != nil {
		return err
	}
	for i, face := range Faces {
		if n := strings.Count(string(f), string(face)); n != 9 {
			return fmt.Errorf("%w: %d stickers of %s, want 9", ErrInvalidFacelets, n, face)
		}
		if c := Face(f[i*9+4]); c != face {
			return fmt.Errorf("%w: center of %s is %s", ErrInvalidFacelets, face, c)
		}
	}
	return nil
}

// Face returns the nine stickers of face.
func (f Facelets) Face(face Face) string {
	i := face.Index()
	if i < 0 || len(f) != FaceletCount {
		return ""
	}
	return string(f[i*9 : i*9+9])
}

// IsSolved reports whether every face shows a single letter.
func (f Facelets) IsSolved() bool {
	return f == Solved
}

func (f Facelets) String() string {
	return string(f)
}
