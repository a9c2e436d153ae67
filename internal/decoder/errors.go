package decoder

import "errors"

var (
	// ErrEmptyDocument is returned when a container parses but holds no
	// displayable pages.
	ErrEmptyDocument = errors.New("document contains no displayable pages")
	// ErrIndexOutOfRange is returned when a page index falls outside
	// the loaded document's bounds.
	ErrIndexOutOfRange = errors.New("page index out of range")
	// ErrNotLoaded is returned when a page is requested from an
	// unloaded backend.
	ErrNotLoaded = errors.New("no document loaded")
)
