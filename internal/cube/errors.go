package cube

import "errors"

// Encoding errors. They are surfaced as-is and never auto-corrected.
var (
	ErrMissingFace      = errors.New("cube: face not scanned")
	ErrDuplicateCenter  = errors.New("cube: two faces share a center color")
	ErrUnresolvedColor  = errors.New("cube: sticker color matches no center")
	ErrInvalidCube      = errors.New("cube: incomplete or invalid cube")
	ErrInvalidFacelets  = errors.New("cube: invalid facelet string")
	ErrInvalidMove      = errors.New("cube: invalid move")
	ErrInvalidGridShape = errors.New("cube: face grid must have 9 stickers")
)
