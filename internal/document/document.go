package document

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/decoder"
	"github.com/quire-reader/quire/internal/resource"
)

var (
	// ErrNoDocumentLoaded is returned when a page is requested while no
	// document is open.
	ErrNoDocumentLoaded = errors.New("no document loaded")
)

var pdfMagic = []byte("%PDF-")

// Document is the metadata of the currently open container.
type Document struct {
	Name      string
	PageCount int
	Pages     []decoder.Page
}

// Facade routes decode requests to the single active decoder backend.
// A PDF name or magic selects the rendered-document backend, everything
// else is treated as a page-image archive. Opens are serialized against
// the one active-backend slot, so a new open always observes the
// previous backend fully unloaded.
type Facade struct {
	resources *resource.Store

	mu     sync.Mutex
	active decoder.Decoder
	doc    *Document
}

// NewFacade creates a facade whose backends decode into the given
// resource store.
func NewFacade(resources *resource.Store) *Facade {
	return &Facade{
		resources: resources,
	}
}

// Open loads the blob with the backend matching its format and replaces
// any previously open document.
func (f *Facade) Open(ctx context.Context, data []byte, name string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active != nil {
		if err := f.active.Unload(); err != nil {
			logrus.Errorf("error unloading previous document: %v", err)
		}
		f.active = nil
		f.doc = nil
	}

	var backend decoder.Decoder
	if isPDF(data, name) {
		backend = decoder.NewPDFDecoder(f.resources)
	} else {
		backend = decoder.NewArchiveDecoder(f.resources)
	}

	manifest, err := backend.Load(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Name:      name,
		PageCount: manifest.PageCount,
		Pages:     manifest.Pages,
	}

	f.active = backend
	f.doc = doc

	logrus.Infof("opened document %q with %d pages", name, doc.PageCount)

	return doc, nil
}

// DecodePage forwards to the active backend.
func (f *Facade) DecodePage(ctx context.Context, index int) (*resource.Handle, error) {
	f.mu.Lock()
	backend := f.active
	f.mu.Unlock()

	if backend == nil {
		return nil, ErrNoDocumentLoaded
	}

	return backend.DecodePage(ctx, index)
}

// Document returns the metadata of the open document, or nil.
func (f *Facade) Document() *Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc
}

// Close unloads the active backend and clears the slot.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active == nil {
		return nil
	}

	err := f.active.Unload()
	f.active = nil
	f.doc = nil
	return err
}

func isPDF(data []byte, name string) bool {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, pdfMagic)
}
