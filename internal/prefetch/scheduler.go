package prefetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/session"
)

const (
	// basePrefetchRange is how many pages beyond the active one are
	// decoded ahead in each direction.
	basePrefetchRange = 2
	// baseCleanupDistance is how far from the active page a resolved
	// image survives before its handle is released.
	baseCleanupDistance = 5
)

// PageDecoder decodes one page into an image handle. The document
// facade satisfies it; tests substitute a counting fake.
type PageDecoder interface {
	DecodePage(ctx context.Context, index int) (*resource.Handle, error)
}

// Scheduler reacts to reading-position changes: it decodes a window of
// pages around the active index and releases images that have fallen
// outside the retention window. It is triggered, never polled.
type Scheduler struct {
	session *session.Session
	decoder PageDecoder
}

// NewScheduler creates a scheduler over the given session and decoder.
func NewScheduler(sess *session.Session, decoder PageDecoder) *Scheduler {
	return &Scheduler{
		session: sess,
		decoder: decoder,
	}
}

// Trigger runs one scheduling pass for the current position. Pages are
// requested active-first, then alternating outward. Indices out of
// bounds, already resolved or already in flight are skipped; the
// in-flight set is the only dedup gate. Decodes run concurrently and
// completion order is irrelevant, each result lands under its own
// index. A failed decode is logged and dropped; it stays unresolved,
// so the next pass that still wants it retries implicitly.
func (s *Scheduler) Trigger(ctx context.Context) {
	doc := s.session.Document()
	if doc == nil {
		return
	}

	active := s.session.ActivePage()
	prefetchRange, cleanupDistance := windows(s.session.ViewMode())

	var wg sync.WaitGroup
	for _, index := range windowIndices(active, prefetchRange, doc.PageCount) {
		if !s.session.TryBeginDecode(index) {
			continue
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer s.session.EndDecode(index)

			h, err := s.decoder.DecodePage(ctx, index)
			if err != nil {
				logrus.Warnf("prefetch decode of page %d failed: %v", index, err)
				return
			}

			s.session.RecordPageImage(index, h)
		}(index)
	}
	wg.Wait()

	s.session.ReleaseOutsideWindow(active, cleanupDistance)
}

// windows derives the prefetch and retention distances from the view
// mode. Continuous scroll keeps more pages visible at once, so both
// distances double.
func windows(mode session.ViewMode) (int, int) {
	if mode == session.ModeContinuous {
		return basePrefetchRange * 2, baseCleanupDistance * 2
	}
	return basePrefetchRange, baseCleanupDistance
}

// windowIndices lists the in-bounds indices of the prefetch window,
// active first, then +1, -1, +2, -2, and so on.
func windowIndices(active, prefetchRange, pageCount int) []int {
	out := make([]int, 0, prefetchRange*2+1)
	if active >= 0 && active < pageCount {
		out = append(out, active)
	}
	for offset := 1; offset <= prefetchRange; offset++ {
		if next := active + offset; next < pageCount {
			out = append(out, next)
		}
		if prev := active - offset; prev >= 0 {
			out = append(out, prev)
		}
	}

	return out
}
