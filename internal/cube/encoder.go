package cube

import (
	"fmt"
	"strings"
)

// FaceGrid holds the nine color labels of one face, row-major.
// Index 4 is the center and anchors the color of the face.
type FaceGrid [9]string

// Center returns the center label.
func (g FaceGrid) Center() string {
	return g[4]
}

// GridFromLabels builds a FaceGrid from exactly nine labels.
func GridFromLabels(labels []string) (FaceGrid, error) {
	var g FaceGrid
	if len(labels) != len(g) {
		return g, fmt.Errorf("%w: got %d", ErrInvalidGridShape, len(labels))
	}
	copy(g[:], labels)
	return g, nil
}

// State maps each face name to its scanned grid.
type State map[FaceName]FaceGrid

// EncodeOptions fixes the orientation convention of a rig.
type EncodeOptions struct {
	// ReverseTop reverses the nine Top letters before the other faces.
	// Rigs whose camera sees the top face upside down need it.
	ReverseTop bool
}

// Palette maps each face letter to the color label of its center.
type Palette map[Face]string

// DefaultPalette is the center layout of the manual entry form:
// green top, white front, orange right.
var DefaultPalette = Palette{
	Up:    "green",
	Right: "orange",
	Front: "white",
	Down:  "blue",
	Left:  "red",
	Back:  "yellow",
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CenterMap builds the color→face dictionary from the six centers.
func (s State) CenterMap() (map[string]Face, error) {
	centers := make(map[string]Face, len(Faces))
	for i, name := range FaceNames {
		grid, ok := s[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFace, name)
		}
		color := normalizeLabel(grid.Center())
		if color == "" {
			return nil, fmt.Errorf("%w: %s center is empty", ErrUnresolvedColor, name)
		}
		if prev, dup := centers[color]; dup {
			return nil, fmt.Errorf("%w: %s and %s are both %q", ErrDuplicateCenter, prev.Name(), name, color)
		}
		centers[color] = Faces[i]
	}
	return centers, nil
}

// Encode turns a fully scanned cube into its facelet string. Every sticker
// is looked up in the center-derived dictionary; a sticker that matches no
// center makes the whole cube invalid.
func Encode(s State, opts EncodeOptions) (Facelets, error) {
	centers, err := s.CenterMap()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(FaceletCount)
	var unresolved []string
	for i, name := range FaceNames {
		grid := s[name]
		var letters [9]byte
		for j, label := range grid {
			face, ok := centers[normalizeLabel(label)]
			if !ok {
				letters[j] = Unresolved
				unresolved = append(unresolved, fmt.Sprintf("%s[%d]=%q", name, j, label))
				continue
			}
			letters[j] = byte(face)
		}
		if Faces[i] == Up && opts.ReverseTop {
			for l, r := 0, len(letters)-1; l < r; l, r = l+1, r-1 {
				letters[l], letters[r] = letters[r], letters[l]
			}
		}
		b.Write(letters[:])
	}

	out := b.String()
	if len(out) != FaceletCount {
		return "", fmt.Errorf("%w: %d facelets, want %d", ErrInvalidCube, len(out), FaceletCount)
	}
	if strings.IndexByte(out, Unresolved) >= 0 {
		return "", fmt.Errorf("%w: %w: %s", ErrInvalidCube, ErrUnresolvedColor, strings.Join(unresolved, ", "))
	}
	return Facelets(out), nil
}

// Decode maps a facelet string back to color labels using palette. It is
// the inverse of Encode for the same options.
func Decode(f Facelets, palette Palette, opts EncodeOptions) (State, error) {
	if err := f.CheckAlphabet(); err != nil {
		return nil, err
	}
	seen := make(map[string]Face, len(Faces))
	for _, face := range Faces {
		color := normalizeLabel(palette[face])
		if color == "" {
			return nil, fmt.Errorf("palette has no color for %s", face)
		}
		if prev, dup := seen[color]; dup {
			return nil, fmt.Errorf("%w: palette uses %q for %s and %s", ErrDuplicateCenter, color, prev, face)
		}
		seen[color] = face
	}

	state := make(State, len(Faces))
	for i, face := range Faces {
		var grid FaceGrid
		for j := 0; j < 9; j++ {
			grid[j] = palette[Face(f[i*9+j])]
		}
		if face == Up && opts.ReverseTop {
			for l, r := 0, len(grid)-1; l < r; l, r = l+1, r-1 {
				grid[l], grid[r] = grid[r], grid[l]
			}
		}
		state[face.Name()] = grid
	}
	return state, nil
}
