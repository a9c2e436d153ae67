package reader

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"github.com/quire-reader/quire/internal/cache"
	"github.com/quire-reader/quire/internal/document"
	"github.com/quire-reader/quire/internal/prefetch"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/session"
	"github.com/quire-reader/quire/internal/store"
)

// Reader is the engine's entry point: one open document, one reading
// position, one source cache. It wires the facade, session and
// scheduler together; collaborators (CLI, HTTP surface) only ever talk
// to a Reader instance they were handed.
type Reader struct {
	facade    *document.Facade
	session   *session.Session
	scheduler *prefetch.Scheduler
	cache     cache.ByteCache
	resources *resource.Store
}

// NewReader wires a reader from its injected dependencies.
func NewReader(resources *resource.Store, st store.Store, byteCache cache.ByteCache) *Reader {
	facade := document.NewFacade(resources)
	sess := session.NewSession(facade, resources, st)

	return &Reader{
		facade:    facade,
		session:   sess,
		scheduler: prefetch.NewScheduler(sess, facade),
		cache:     byteCache,
		resources: resources,
	}
}

// Open loads a document from raw bytes. With no stable file identity
// from the source, a content fingerprint stands in so caching and
// bookmarks still correlate the document across sessions. On success
// the source bytes are cached in the background, best effort.
func (r *Reader) Open(ctx context.Context, data []byte, fileID, name string) (*document.Document, error) {
	if fileID == "" {
		fileID = fingerprint(data)
	}

	if err := r.session.Open(ctx, data, fileID, name); err != nil {
		return nil, err
	}

	doc := r.session.Document()

	go func() {
		admitted, err := r.cache.Write(context.Background(), fileID, name, data)
		if err != nil {
			logrus.Warnf("error caching source %q: %v", name, err)
			return
		}
		if !admitted {
			logrus.Infof("source %q not admitted to cache", name)
		}
	}()

	go r.scheduler.Trigger(context.Background())

	return doc, nil
}

// OpenCached re-opens a source from the byte cache alone, the path
// behind the recent-files list. A miss is an error; the caller then
// fetches fresh bytes and uses Open.
func (r *Reader) OpenCached(ctx context.Context, fileID string) (*document.Document, error) {
	data, err := r.cache.Read(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("source %s not cached: %w", fileID, err)
	}

	name := fileID
	if entries, err := r.cache.List(ctx); err == nil {
		for _, entry := range entries {
			if entry.FileID == fileID {
				name = entry.Name
				break
			}
		}
	}

	if err := r.session.Open(ctx, data, fileID, name); err != nil {
		return nil, err
	}

	go r.scheduler.Trigger(context.Background())

	return r.session.Document(), nil
}

// SetActivePage jumps to a page and reschedules the window.
func (r *Reader) SetActivePage(index int) {
	r.session.SetActivePage(index)
	go r.scheduler.Trigger(context.Background())
}

// NextPage turns one page forward.
func (r *Reader) NextPage() {
	r.session.NextPage()
	go r.scheduler.Trigger(context.Background())
}

// PrevPage turns one page back.
func (r *Reader) PrevPage() {
	r.session.PrevPage()
	go r.scheduler.Trigger(context.Background())
}

// SetViewMode changes the layout mode; the window widths follow it.
func (r *Reader) SetViewMode(mode session.ViewMode) {
	r.session.SetViewMode(mode)
	go r.scheduler.Trigger(context.Background())
}

// Prefetch runs one scheduling pass synchronously.
func (r *Reader) Prefetch(ctx context.Context) {
	r.scheduler.Trigger(ctx)
}

// Document returns the open document's metadata, or nil.
func (r *Reader) Document() *document.Document {
	return r.session.Document()
}

// ActivePage returns the current page index.
func (r *Reader) ActivePage() int {
	return r.session.ActivePage()
}

// ViewMode returns the current layout mode.
func (r *Reader) ViewMode() session.ViewMode {
	return r.session.ViewMode()
}

// LastError returns the last open failure message, for inline display.
func (r *Reader) LastError() string {
	return r.session.LastError()
}

// PageImage returns the resolved handle for a page, if any.
func (r *Reader) PageImage(index int) (*resource.Handle, bool) {
	return r.session.PageImage(index)
}

// PageImages returns the page index to locator map the frontend
// renders from.
func (r *Reader) PageImages() map[int]string {
	return r.session.PageImages()
}

// CacheUsage returns the cached bytes total; a failing cache reads as
// empty rather than breaking the caller.
func (r *Reader) CacheUsage(ctx context.Context) int64 {
	usage, err := r.cache.Usage(ctx)
	if err != nil {
		logrus.Warnf("error reading cache usage: %v", err)
		return 0
	}
	return usage
}

// CacheEntries lists cached sources for the recent-files display.
func (r *Reader) CacheEntries(ctx context.Context) []cache.EntryInfo {
	entries, err := r.cache.List(ctx)
	if err != nil {
		logrus.Warnf("error listing cache entries: %v", err)
		return nil
	}
	return entries
}

// ClearCache deletes every cached source.
func (r *Reader) ClearCache(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

// Close tears the session down and revokes all page handles.
func (r *Reader) Close() error {
	return r.session.Close()
}

// fingerprint derives a stable identity from the document content.
func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}
