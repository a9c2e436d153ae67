package decoder

import (
	"bytes"
	"context"
	"image/jpeg"
	"strconv"
	"sync"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/quire-reader/quire/internal/resource"
)

const (
	// renderScale is the rasterization factor over the document's
	// nominal size. 2.0 balances sharpness on high-density screens
	// against per-page render time and memory.
	renderScale = 2.0

	// renderDPI is renderScale applied to the 72 DPI PDF baseline.
	renderDPI = renderScale * 72

	// jpegQuality for the encoded page image.
	jpegQuality = 90
)

var _ Decoder = (*PDFDecoder)(nil)

// PDFDecoder rasterizes pages of a PDF document on demand. Rendering
// goes through MuPDF, whose context is not safe for concurrent use, so
// page renders are serialized by a mutex.
type PDFDecoder struct {
	resources *resource.Store

	mu  sync.Mutex
	doc *fitz.Document
}

// NewPDFDecoder creates a PDF decoder writing rendered pages into the
// given resource store.
func NewPDFDecoder(resources *resource.Store) *PDFDecoder {
	return &PDFDecoder{
		resources: resources,
	}
}

func (p *PDFDecoder) Load(data []byte) (*Manifest, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}

	count := doc.NumPage()
	if count == 0 {
		doc.Close()
		return nil, ErrEmptyDocument
	}

	pages := make([]Page, 0, count)
	for n := 0; n < count; n++ {
		// synthetic 1-based labels; readers think in page numbers
		page := Page{Label: strconv.Itoa(n + 1)}
		if bound, err := doc.Bound(n); err == nil {
			page.Width = int(float64(bound.Dx()) * renderScale)
			page.Height = int(float64(bound.Dy()) * renderScale)
		}
		pages = append(pages, page)
	}

	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()

	return &Manifest{PageCount: count, Pages: pages}, nil
}

// DecodePage rasterizes one page and encodes it as JPEG. This is the
// most expensive operation in the pipeline; it runs to completion
// before the handle is returned and is only ever invoked for pages
// inside the prefetch window.
func (p *PDFDecoder) DecodePage(ctx context.Context, index int) (*resource.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil {
		return nil, ErrNotLoaded
	}
	if index < 0 || index >= p.doc.NumPage() {
		return nil, ErrIndexOutOfRange
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// go-fitz numbers pages from 0 internally.
	img, err := p.doc.ImageDPI(index, renderDPI)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	return p.resources.Acquire(buf.Bytes(), ".jpg")
}

func (p *PDFDecoder) Unload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil {
		return nil
	}

	err := p.doc.Close()
	p.doc = nil
	return err
}
