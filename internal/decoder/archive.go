package decoder

import (
	"bytes"
	"context"
	"image"
	"io"
	"path"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/klauspost/compress/zip"
	"github.com/maruel/natural"
	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/resource"
	_ "golang.org/x/image/webp"
)

// imageExts are the entry extensions recognized as pages.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var _ Decoder = (*ArchiveDecoder)(nil)

// ArchiveDecoder reads page images out of a zip/cbz container. Pages
// are the image entries of the archive in natural name order, so
// "2.jpg" sorts before "10.jpg" the way scanlation folders expect.
type ArchiveDecoder struct {
	resources *resource.Store
	entries   []*zip.File
	pages     []Page
}

// NewArchiveDecoder creates an archive decoder writing decoded pages
// into the given resource store.
func NewArchiveDecoder(resources *resource.Store) *ArchiveDecoder {
	return &ArchiveDecoder{
		resources: resources,
	}
}

func (a *ArchiveDecoder) Load(data []byte) (*Manifest, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var entries []*zip.File
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !imageExts[strings.ToLower(path.Ext(f.Name))] {
			continue
		}
		entries = append(entries, f)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyDocument
	}

	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].Name, entries[j].Name)
	})

	pages := make([]Page, 0, len(entries))
	for _, f := range entries {
		page := Page{Label: f.Name}
		if w, h, err := probeDimensions(f); err == nil {
			page.Width, page.Height = w, h
		}
		pages = append(pages, page)
	}

	a.entries = entries
	a.pages = pages

	return &Manifest{PageCount: len(pages), Pages: pages}, nil
}

func (a *ArchiveDecoder) DecodePage(ctx context.Context, index int) (*resource.Handle, error) {
	if a.entries == nil {
		return nil, ErrNotLoaded
	}
	if index < 0 || index >= len(a.entries) {
		return nil, ErrIndexOutOfRange
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := a.entries[index]
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	return a.resources.Acquire(data, strings.ToLower(path.Ext(entry.Name)))
}

func (a *ArchiveDecoder) Unload() error {
	a.entries = nil
	a.pages = nil
	return nil
}

// probeDimensions reads just the image header of an archive entry.
func probeDimensions(f *zip.File) (int, int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()

	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		logrus.Debugf("no dimensions for %s: %v", f.Name, err)
		return 0, 0, err
	}

	return cfg.Width, cfg.Height, nil
}
