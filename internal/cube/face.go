package cube

import "fmt"

// Face is a solver face letter.
type Face byte

const (
	Up    Face = 'U'
	Right Face = 'R'
	Front Face = 'F'
	Down  Face = 'D'
	Left  Face = 'L'
	Back  Face = 'B'
)

// Faces lists the faces in facelet order.
var Faces = [6]Face{Up, Right, Front, Down, Left, Back}

// Unresolved marks a sticker whose color matched no center.
const Unresolved = 'X'

func (f Face) String() string {
	return string(f)
}

// Valid reports whether f is one of the six face letters.
func (f Face) Valid() bool {
	return f.Index() >= 0
}

// Index returns the position of f in facelet order, or -1.
func (f Face) Index() int {
	for i, x := range Faces {
		if x == f {
			return i
		}
	}
	return -1
}

// FaceName is the human name used in cube-state records.
type FaceName string

const (
	NameTop    FaceName = "Top"
	NameRight  FaceName = "Right"
	NameFront  FaceName = "Front"
	NameBottom FaceName = "Bottom"
	NameLeft   FaceName = "Left"
	NameBack   FaceName = "Back"
)

// FaceNames lists the record names in facelet order.
var FaceNames = [6]FaceName{NameTop, NameRight, NameFront, NameBottom, NameLeft, NameBack}

// Face returns the solver letter for a record face name.
func (n FaceName) Face() (Face, error) {
	for i, x := range FaceNames {
		if x == n {
			return Faces[i], nil
		}
	}
	return 0, fmt.Errorf("unknown face name %q", string(n))
}

// Name returns the record face name for f.
func (f Face) Name() FaceName {
	if i := f.Index(); i >= 0 {
		return FaceNames[i]
	}
	return ""
}
