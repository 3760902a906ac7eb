package cas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	b := []byte("hello build engine")
	hash, err := s.Put(b)
	require.NoError(t, err)

	got, err := s.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestPutIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	b := []byte("same content")
	h1, err := s.Put(b)
	require.NoError(t, err)
	h2, err := s.Put(b)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, int64(2), s.Refcount(h1))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGCRemovesUnreferencedBlobs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	keep, err := s.Put([]byte("keep me"))
	require.NoError(t, err)
	drop, err := s.Put([]byte("drop me"))
	require.NoError(t, err)

	result, err := s.GC(map[string]struct{}{keep: {}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedBlobs)

	assert.True(t, s.Has(keep))
	assert.False(t, s.Has(drop))
}
