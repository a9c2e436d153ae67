package document

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"

	"github.com/quire-reader/quire/internal/decoder"
	"github.com/quire-reader/quire/internal/resource"
)

func buildZip(t *testing.T, names ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		assert.NoError(t, err)
		_, err = f.Write([]byte(name))
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())

	return buf.Bytes()
}

func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)
	write := func(s string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(s)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", i+3)
	}
	write("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, pages))
	for i := 0; i < pages; i++ {
		write(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 300] >>\nendobj\n", i+3))
	}
	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)

	return buf.Bytes()
}

func newFacade(t *testing.T) *Facade {
	t.Helper()

	store, err := resource.NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewFacade(store)
}

func TestOpenRoutesArchive(t *testing.T) {
	facade := newFacade(t)

	doc, err := facade.Open(context.TODO(), buildZip(t, "1.jpg", "2.jpg"), "vol1.cbz")
	assert.NoError(t, err)
	assert.Equal(t, "vol1.cbz", doc.Name)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "1.jpg", doc.Pages[0].Label)
}

func TestOpenRoutesPDFBySuffix(t *testing.T) {
	facade := newFacade(t)

	doc, err := facade.Open(context.TODO(), buildPDF(t, 2), "paper.PDF")
	assert.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "1", doc.Pages[0].Label)
}

func TestOpenRoutesPDFByMagic(t *testing.T) {
	facade := newFacade(t)

	// no name at all: the blob content decides
	doc, err := facade.Open(context.TODO(), buildPDF(t, 1), "")
	assert.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount)
}

func TestDecodeWithoutDocument(t *testing.T) {
	facade := newFacade(t)

	_, err := facade.DecodePage(context.TODO(), 0)
	assert.ErrorIs(t, err, ErrNoDocumentLoaded)
}

func TestOpenReplacesPrevious(t *testing.T) {
	facade := newFacade(t)

	_, err := facade.Open(context.TODO(), buildZip(t, "1.jpg", "2.jpg", "3.jpg"), "three.cbz")
	assert.NoError(t, err)

	doc, err := facade.Open(context.TODO(), buildZip(t, "1.jpg"), "one.cbz")
	assert.NoError(t, err)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, doc, facade.Document())

	// the old document's page range is gone
	_, err = facade.DecodePage(context.TODO(), 2)
	assert.ErrorIs(t, err, decoder.ErrIndexOutOfRange)
}

func TestOpenFailureLeavesNoDocument(t *testing.T) {
	facade := newFacade(t)

	_, err := facade.Open(context.TODO(), buildZip(t, "notes.txt"), "text.zip")
	assert.ErrorIs(t, err, decoder.ErrEmptyDocument)
	assert.Nil(t, facade.Document())

	_, err = facade.DecodePage(context.TODO(), 0)
	assert.ErrorIs(t, err, ErrNoDocumentLoaded)
}

func TestClose(t *testing.T) {
	facade := newFacade(t)

	_, err := facade.Open(context.TODO(), buildZip(t, "1.jpg"), "one.cbz")
	assert.NoError(t, err)

	assert.NoError(t, facade.Close())
	assert.Nil(t, facade.Document())
	assert.NoError(t, facade.Close())

	_, err = facade.DecodePage(context.TODO(), 0)
	assert.ErrorIs(t, err, ErrNoDocumentLoaded)
}
