package prefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"

	"github.com/quire-reader/quire/internal/document"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/session"
	"github.com/quire-reader/quire/internal/store"
	"github.com/quire-reader/quire/internal/tester"
)

// countingDecoder records how many times each page was decoded and can
// be told to fail specific indices once.
type countingDecoder struct {
	resources *resource.Store

	mu       sync.Mutex
	calls    map[int]int
	failOnce map[int]bool
}

func (d *countingDecoder) DecodePage(ctx context.Context, index int) (*resource.Handle, error) {
	d.mu.Lock()
	d.calls[index]++
	fail := d.failOnce[index]
	delete(d.failOnce, index)
	d.mu.Unlock()

	if fail {
		return nil, errors.New("decode failed")
	}

	return d.resources.Acquire([]byte(fmt.Sprintf("page %d", index)), ".jpg")
}

func (d *countingDecoder) callCount(index int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[index]
}

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

func newScheduler(t *testing.T, pages int) (*Scheduler, *session.Session, *countingDecoder) {
	t.Helper()
	tester.Setup()

	resources, err := resource.NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = resources.Close() })

	sess := session.NewSession(document.NewFacade(resources), resources, store.NewGormStore(tester.TestDB()))
	err = sess.Open(context.TODO(), buildZip(t, pages), "", "test.cbz")
	assert.NoError(t, err)

	dec := &countingDecoder{
		resources: resources,
		calls:     make(map[int]int),
		failOnce:  make(map[int]bool),
	}

	return NewScheduler(sess, dec), sess, dec
}

func resolved(s *session.Session) []int {
	pages := s.ResolvedPages()
	sort.Ints(pages)
	return pages
}

func TestPrefetchWindow(t *testing.T) {
	sched, sess, _ := newScheduler(t, 100)

	sess.SetActivePage(10)
	sched.Trigger(context.TODO())

	assert.Equal(t, []int{8, 9, 10, 11, 12}, resolved(sess))
}

func TestPrefetchWindowAtStart(t *testing.T) {
	sched, sess, _ := newScheduler(t, 100)

	sched.Trigger(context.TODO())

	assert.Equal(t, []int{0, 1, 2}, resolved(sess))
}

func TestPrefetchWindowAtEnd(t *testing.T) {
	sched, sess, _ := newScheduler(t, 12)

	sess.SetActivePage(11)
	sched.Trigger(context.TODO())

	assert.Equal(t, []int{9, 10, 11}, resolved(sess))
}

func TestContinuousModeDoublesWindow(t *testing.T) {
	sched, sess, _ := newScheduler(t, 100)

	sess.SetViewMode(session.ModeContinuous)
	sess.SetActivePage(10)
	sched.Trigger(context.TODO())

	assert.Equal(t, []int{6, 7, 8, 9, 10, 11, 12, 13, 14}, resolved(sess))
}

func TestTriggerIsIdempotent(t *testing.T) {
	sched, sess, dec := newScheduler(t, 100)

	sess.SetActivePage(10)
	sched.Trigger(context.TODO())
	sched.Trigger(context.TODO())
	sched.Trigger(context.TODO())

	for i := 8; i <= 12; i++ {
		assert.Equal(t, 1, dec.callCount(i), "page %d decoded more than once", i)
	}
}

func TestFailedDecodeIsRetriedNextPass(t *testing.T) {
	sched, sess, dec := newScheduler(t, 100)

	sess.SetActivePage(10)
	dec.mu.Lock()
	dec.failOnce[11] = true
	dec.mu.Unlock()

	sched.Trigger(context.TODO())

	_, ok := sess.PageImage(11)
	assert.False(t, ok)
	assert.Equal(t, 1, dec.callCount(11))

	sched.Trigger(context.TODO())

	_, ok = sess.PageImage(11)
	assert.True(t, ok)
	assert.Equal(t, 2, dec.callCount(11))
}

func TestCleanupReleasesDistantPages(t *testing.T) {
	sched, sess, dec := newScheduler(t, 100)

	for i := 0; i <= 20; i++ {
		h, err := dec.resources.Acquire([]byte("img"), ".jpg")
		assert.NoError(t, err)
		sess.RecordPageImage(i, h)
	}

	sess.SetActivePage(10)
	sched.Trigger(context.TODO())

	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, resolved(sess))
}

func TestTriggerWithoutDocument(t *testing.T) {
	sched, sess, dec := newScheduler(t, 10)
	assert.NoError(t, sess.Close())

	sched.Trigger(context.TODO())

	assert.Empty(t, dec.calls)
}
