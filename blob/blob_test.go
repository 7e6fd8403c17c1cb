package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetPutRoundTrip(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get("objects/ab/cdef")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put("objects/ab/cdef", []byte("payload")))
	data, ok, err := m.Get("objects/ab/cdef")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put("k", []byte("abc")))
	data, _, err := m.Get("k")
	require.NoError(t, err)
	data[0] = 'z'

	data2, _, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data2))
}

func TestMemoryList(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Put("refs/heads/main", []byte("1")))
	require.NoError(t, m.Put("refs/heads/dev", []byte("2")))
	require.NoError(t, m.Put("refs/tags/v1", []byte("3")))

	keys, err := m.List("refs/heads/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"refs/heads/main", "refs/heads/dev"}, keys)
}
