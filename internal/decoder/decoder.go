package decoder

import (
	"context"

	"github.com/quire-reader/quire/internal/resource"
)

// Page describes one page of a loaded document.
type Page struct {
	// Label is the source identifier: the archive entry name, or the
	// 1-based page number for rendered documents.
	Label string
	// Width and Height are pixel dimensions when known, zero otherwise.
	// Frontends use them to pre-size continuous-scroll layouts.
	Width  int
	Height int
}

// Manifest is the result of loading a document: the page count and the
// ordered page list.
type Manifest struct {
	PageCount int
	Pages     []Page
}

// Decoder turns a raw document blob into an ordered page list and
// decodes single pages into displayable image handles on demand.
//
// Decoders do not cache: DecodePage for the same index twice produces
// two independent handles, and the caller is responsible for not asking
// for a page it already holds.
type Decoder interface {
	// Load parses the blob. The manifest always reports at least one
	// page; a container with no displayable pages fails with
	// ErrEmptyDocument.
	Load(data []byte) (*Manifest, error)
	// DecodePage decodes the page at the 0-based index into a fresh
	// resource handle. Fails with ErrIndexOutOfRange outside
	// [0, PageCount) and ErrNotLoaded after Unload.
	DecodePage(ctx context.Context, index int) (*resource.Handle, error)
	// Unload releases all backend state.
	Unload() error
}
