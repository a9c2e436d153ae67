package decoder

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"

	"github.com/quire-reader/quire/internal/resource"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		assert.NoError(t, err)
		_, err = f.Write(data)
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())

	return buf.Bytes()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)))
	assert.NoError(t, err)
	return buf.Bytes()
}

func newTestStore(t *testing.T) *resource.Store {
	t.Helper()

	store, err := resource.NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestArchiveNaturalOrdering(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"2.jpg":  []byte("second"),
		"10.jpg": []byte("tenth"),
		"1.jpg":  []byte("first"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	manifest, err := dec.Load(data)
	assert.NoError(t, err)
	assert.Equal(t, 3, manifest.PageCount)

	labels := make([]string, 0, len(manifest.Pages))
	for _, p := range manifest.Pages {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"1.jpg", "2.jpg", "10.jpg"}, labels)

	h, err := dec.DecodePage(context.TODO(), 0)
	assert.NoError(t, err)
	got, err := h.Open()
	assert.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestArchiveFiltersNonImages(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"readme.txt":   []byte("not a page"),
		"cover.PNG":    pngBytes(t, 4, 6),
		"art/back.img": []byte("unknown extension"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	manifest, err := dec.Load(data)
	assert.NoError(t, err)
	assert.Equal(t, 1, manifest.PageCount)
	assert.Equal(t, "cover.PNG", manifest.Pages[0].Label)
	assert.Equal(t, 4, manifest.Pages[0].Width)
	assert.Equal(t, 6, manifest.Pages[0].Height)
}

func TestArchiveEmptyDocument(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"notes.txt": []byte("text only"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	_, err := dec.Load(data)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestArchiveDecodeTwiceDistinctHandles(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"1.jpg": []byte("page one"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	_, err := dec.Load(data)
	assert.NoError(t, err)

	h1, err := dec.DecodePage(context.TODO(), 0)
	assert.NoError(t, err)
	h2, err := dec.DecodePage(context.TODO(), 0)
	assert.NoError(t, err)

	assert.NotEqual(t, h1.Locator(), h2.Locator())

	b1, err := h1.Open()
	assert.NoError(t, err)
	b2, err := h2.Open()
	assert.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestArchiveDecodeBounds(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"1.jpg": []byte("page one"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	_, err := dec.Load(data)
	assert.NoError(t, err)

	_, err = dec.DecodePage(context.TODO(), -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = dec.DecodePage(context.TODO(), 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestArchiveUnload(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"1.jpg": []byte("page one"),
	})

	dec := NewArchiveDecoder(newTestStore(t))
	_, err := dec.Load(data)
	assert.NoError(t, err)

	assert.NoError(t, dec.Unload())

	_, err = dec.DecodePage(context.TODO(), 0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}
