package session

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/document"
	"github.com/quire-reader/quire/internal/model"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/store"
)

// ViewMode is how the frontend lays pages out; it drives how wide the
// prefetch and retention windows are.
type ViewMode string

const (
	ModePaged      ViewMode = "paged"
	ModeContinuous ViewMode = "continuous-scroll"
)

// Session is the reading-position store: the single open document, the
// active page index, the resolved page-image handles and the in-flight
// decode set. It owns every page-image handle it records; nothing else
// may hold one past release.
type Session struct {
	facade    *document.Facade
	resources *resource.Store
	bookmarks store.BookmarkStore

	mu       sync.Mutex
	doc      *document.Document
	fileID   string
	active   int
	mode     ViewMode
	pages    map[int]*resource.Handle
	inflight mapset.Set[int]
	lastErr  string
}

// NewSession creates an empty session. Dependencies are injected; the
// session does not construct its own collaborators.
func NewSession(facade *document.Facade, resources *resource.Store, bookmarks store.BookmarkStore) *Session {
	return &Session{
		facade:    facade,
		resources: resources,
		bookmarks: bookmarks,
		mode:      ModePaged,
		pages:     make(map[int]*resource.Handle),
		inflight:  mapset.NewSet[int](),
	}
}

// Open replaces the current document. All held page handles are
// revoked first. On success the active index is the restored bookmark
// for the source, or 0; on failure the session records the error and
// holds no document.
func (s *Session) Open(ctx context.Context, data []byte, fileID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseAllLocked()
	s.doc = nil
	s.fileID = ""
	s.active = 0

	doc, err := s.facade.Open(ctx, data, name)
	if err != nil {
		s.lastErr = err.Error()
		return err
	}

	s.doc = doc
	s.fileID = fileID
	s.lastErr = ""
	s.active = s.restoreBookmarkLocked(ctx)

	return nil
}

// restoreBookmarkLocked returns the saved page index for the current
// source when it is still within bounds, otherwise 0.
func (s *Session) restoreBookmarkLocked(ctx context.Context) int {
	key := s.bookmarkKeyLocked()
	if key == "" {
		return 0
	}

	bookmark, err := s.bookmarks.GetBookmark(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			logrus.Errorf("error reading bookmark %q: %v", key, err)
		}
		return 0
	}

	if bookmark.PageIndex < 0 || bookmark.PageIndex >= s.doc.PageCount {
		return 0
	}

	return bookmark.PageIndex
}

// bookmarkKeyLocked is the stable file identity, falling back to the
// document display name.
func (s *Session) bookmarkKeyLocked() string {
	if s.fileID != "" {
		return s.fileID
	}
	if s.doc != nil {
		return s.doc.Name
	}
	return ""
}

// Document returns the open document's metadata, or nil.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// FileID returns the stable identity of the open source, if known.
func (s *Session) FileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

// LastError returns the message of the last failed open, for the
// frontend's inline error display.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ActivePage returns the current page index.
func (s *Session) ActivePage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActivePage clamps the index to the document bounds and persists
// it as the source's bookmark in the background.
func (s *Session) SetActivePage(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return
	}

	if index < 0 {
		index = 0
	}
	if index > s.doc.PageCount-1 {
		index = s.doc.PageCount - 1
	}

	s.active = index
	s.persistBookmarkLocked()
}

// NextPage advances by one page, a no-op on the last page.
func (s *Session) NextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || s.active >= s.doc.PageCount-1 {
		return
	}

	s.active++
	s.persistBookmarkLocked()
}

// PrevPage moves back by one page, a no-op on the first page.
func (s *Session) PrevPage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || s.active <= 0 {
		return
	}

	s.active--
	s.persistBookmarkLocked()
}

// persistBookmarkLocked saves the active index fire-and-forget. A
// failed write costs a restored position, never a page display.
func (s *Session) persistBookmarkLocked() {
	key := s.bookmarkKeyLocked()
	if key == "" {
		return
	}
	index := s.active

	go func() {
		err := s.bookmarks.SaveBookmark(context.Background(), &model.Bookmark{
			Key:       key,
			PageIndex: index,
		})
		if err != nil {
			logrus.Errorf("error saving bookmark %q: %v", key, err)
		}
	}()
}

// ViewMode returns the current layout mode.
func (s *Session) ViewMode() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetViewMode switches between paged and continuous-scroll layout.
func (s *Session) SetViewMode(mode ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// PageImage returns the resolved handle for a page, if any.
func (s *Session) PageImage(index int) (*resource.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.pages[index]
	return h, ok
}

// PageImages returns a snapshot of page index to resource locator for
// the frontend to render from.
func (s *Session) PageImages() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]string, len(s.pages))
	for index, h := range s.pages {
		out[index] = h.Locator()
	}

	return out
}

// ResolvedPages returns the resolved page indices in no particular order.
func (s *Session) ResolvedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, 0, len(s.pages))
	for index := range s.pages {
		out = append(out, index)
	}

	return out
}

// RecordPageImage stores a resolved handle. At most one handle is live
// per index: overwriting releases the previous one.
func (s *Session) RecordPageImage(index int, h *resource.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.pages[index]; ok {
		s.resources.Release(old)
	}
	s.pages[index] = h
}

// TryBeginDecode marks the index in flight. It returns false when the
// page is already resolved or already being decoded. This is the sole
// mechanism preventing duplicate decode work.
func (s *Session) TryBeginDecode(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, resolved := s.pages[index]; resolved {
		return false
	}

	return s.inflight.Add(index)
}

// EndDecode removes the index from the in-flight set. Called on both
// success and failure, so a failed page is requested again by the next
// scheduling pass that still wants it.
func (s *Session) EndDecode(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight.Remove(index)
}

// InFlight reports whether a decode for the index is pending.
func (s *Session) InFlight(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight.Contains(index)
}

// ReleaseOutsideWindow revokes every resolved handle whose distance
// from center exceeds the retention distance.
func (s *Session) ReleaseOutsideWindow(center, distance int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for index, h := range s.pages {
		d := index - center
		if d < 0 {
			d = -d
		}
		if d > distance {
			s.resources.Release(h)
			delete(s.pages, index)
		}
	}
}

// Close revokes all handles, unloads the document and clears the
// session state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseAllLocked()
	s.doc = nil
	s.fileID = ""
	s.active = 0
	s.lastErr = ""

	return s.facade.Close()
}

func (s *Session) releaseAllLocked() {
	for index, h := range s.pages {
		s.resources.Release(h)
		delete(s.pages, index)
	}
	s.inflight.Clear()
}
