package resource

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireDistinctLocators(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	defer store.Close()

	data := []byte("same bytes")

	h1, err := store.Acquire(data, ".jpg")
	assert.NoError(t, err)
	h2, err := store.Acquire(data, ".jpg")
	assert.NoError(t, err)

	assert.NotEqual(t, h1.Locator(), h2.Locator())

	got1, err := h1.Open()
	assert.NoError(t, err)
	assert.Equal(t, data, got1)

	got2, err := h2.Open()
	assert.NoError(t, err)
	assert.Equal(t, data, got2)
}

func TestReleaseRemovesFile(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	defer store.Close()

	h, err := store.Acquire([]byte("page"), ".png")
	assert.NoError(t, err)
	assert.False(t, h.Released())

	store.Release(h)
	assert.True(t, h.Released())

	_, err = h.Open()
	assert.ErrorIs(t, err, ErrReleased)

	_, err = os.Stat(h.Locator())
	assert.True(t, os.IsNotExist(err))

	// releasing twice is a no-op
	store.Release(h)
	assert.True(t, h.Released())
}

func TestSize(t *testing.T) {
	store, err := NewStore(t.TempDir() + "/pages")
	assert.NoError(t, err)
	defer store.Close()

	h, err := store.Acquire(make([]byte, 1024), ".jpg")
	assert.NoError(t, err)
	assert.Equal(t, int64(1024), h.Size())
}
