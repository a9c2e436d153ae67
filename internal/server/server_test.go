package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"

	"github.com/quire-reader/quire/internal/cache"
	"github.com/quire-reader/quire/internal/compress"
	"github.com/quire-reader/quire/internal/reader"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/store"
	"github.com/quire-reader/quire/internal/tester"
)

func buildZip(t *testing.T, pages int) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 1; i <= pages; i++ {
		f, err := w.Create(fmt.Sprintf("%03d.jpg", i))
		assert.NoError(t, err)
		_, err = f.Write([]byte(fmt.Sprintf("page %d", i)))
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())

	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	tester.Setup()

	resources, err := resource.NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = resources.Close() })

	st := store.NewGormStore(tester.TestDB())
	byteCache, err := cache.NewDiskCache(cache.DiskCacheConfig{
		Dir:   t.TempDir(),
		Limit: 1 << 20,
		Codec: compress.CodecNop,
	}, st)
	assert.NoError(t, err)

	r := reader.NewReader(resources, st, byteCache)
	t.Cleanup(func() { _ = r.Close() })

	s := NewServer("0", r)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, ts
}

func TestOpenDocumentEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/documents?name=vol1.cbz&fileId=drive:abc",
		"application/octet-stream", bytes.NewReader(buildZip(t, 3)))
	assert.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var doc documentJSON
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	assert.Equal(t, "vol1.cbz", doc.Name)
	assert.Equal(t, 3, doc.PageCount)
	assert.Len(t, doc.Pages, 3)
}

func TestOpenDocumentFailure(t *testing.T) {
	_, ts := newTestServer(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("only.txt")
	assert.NoError(t, err)
	_, err = f.Write([]byte("text"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	res, err := http.Post(ts.URL+"/v1/documents?name=text.zip",
		"application/octet-stream", bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestSessionAndNavigation(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/documents?name=vol1.cbz",
		"application/octet-stream", bytes.NewReader(buildZip(t, 10)))
	assert.NoError(t, err)
	res.Body.Close()

	res, err = http.Post(ts.URL+"/v1/session/next", "application/json", nil)
	assert.NoError(t, err)
	defer res.Body.Close()

	var state map[string]any
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&state))
	assert.Equal(t, float64(1), state["activePage"])
	assert.Equal(t, "paged", state["viewMode"])
}

func TestPageEndpoint(t *testing.T) {
	s, ts := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/documents?name=vol1.cbz",
		"application/octet-stream", bytes.NewReader(buildZip(t, 3)))
	assert.NoError(t, err)
	res.Body.Close()

	// prefetch runs in the background after open
	assert.Eventually(t, func() bool {
		_, ok := s.reader.PageImage(0)
		return ok
	}, time.Second, 10*time.Millisecond)

	res, err = http.Get(ts.URL + "/v1/pages/0")
	assert.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(ts.URL + "/v1/pages/99")
	assert.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCacheEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/documents?name=vol1.cbz&fileId=drive:abc",
		"application/octet-stream", bytes.NewReader(buildZip(t, 3)))
	assert.NoError(t, err)
	res.Body.Close()

	assert.Eventually(t, func() bool {
		res, err := http.Get(ts.URL + "/v1/cache")
		if err != nil {
			return false
		}
		defer res.Body.Close()

		var body struct {
			Usage   int64             `json:"usage"`
			Entries []cache.EntryInfo `json:"entries"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			return false
		}
		return body.Usage > 0 && len(body.Entries) == 1
	}, time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/cache", nil)
	assert.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}
