package refs

import (
	"strings"
	"testing"

	"github.com/ahmetskilinc/gitbruv/blob"
	"github.com/ahmetskilinc/gitbruv/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexA = "0123456789abcdef0123456789abcdef01234567"
const hexB = "fedcba9876543210fedcba9876543210fedcba98"

func TestResolveDirectLooseRef(t *testing.T) {
	adapter := blob.NewMemory()
	id, _ := object.DecodeID(hexA)
	require.NoError(t, WriteLoose(adapter, "repo", "refs/heads/main", id))

	got, err := Resolve(adapter, "repo", "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolveSymbolicChain(t *testing.T) {
	adapter := blob.NewMemory()
	id, _ := object.DecodeID(hexA)
	require.NoError(t, WriteLoose(adapter, "repo", "refs/heads/main", id))
	require.NoError(t, adapter.Put("repo/HEAD", []byte("ref: refs/heads/main\n")))

	got, err := Resolve(adapter, "repo", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolveCycleHitsMaxDepth(t *testing.T) {
	adapter := blob.NewMemory()
	require.NoError(t, adapter.Put("repo/refs/heads/a", []byte("ref: refs/heads/b\n")))
	require.NoError(t, adapter.Put("repo/refs/heads/b", []byte("ref: refs/heads/a\n")))

	_, err := Resolve(adapter, "repo", "refs/heads/a")
	assert.ErrorIs(t, err, ErrMaxDepth)
}

func TestResolveFallsBackToPackedRefs(t *testing.T) {
	adapter := blob.NewMemory()
	packed := hexA + " refs/heads/main\n# pack-refs with: peeled fully-peeled sorted\n"
	require.NoError(t, adapter.Put("repo/packed-refs", []byte(packed)))

	id, err := Resolve(adapter, "repo", "refs/heads/main")
	require.NoError(t, err)
	want, _ := object.DecodeID(hexA)
	assert.Equal(t, want, id)
}

func TestResolveNotExist(t *testing.T) {
	adapter := blob.NewMemory()
	_, err := Resolve(adapter, "repo", "refs/heads/missing")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestListMergesLooseAndPacked_LooseWins(t *testing.T) {
	adapter := blob.NewMemory()
	packed := hexA + " refs/heads/main\n" + hexB + " refs/heads/dev\n"
	require.NoError(t, adapter.Put("repo/packed-refs", []byte(packed)))
	idOverride, _ := object.DecodeID(hexB)
	require.NoError(t, WriteLoose(adapter, "repo", "refs/heads/main", idOverride))

	got := List(adapter, "repo", "refs/heads/")
	assert.Equal(t, hexB, got["refs/heads/main"])
	assert.Equal(t, hexB, got["refs/heads/dev"])
}

func TestResolveTransportErrorFallsBackToPacked(t *testing.T) {
	packed := hexA + " refs/heads/main\n"
	adapter := &failingLooseAdapter{Memory: blob.NewMemory()}
	require.NoError(t, adapter.Put("repo/packed-refs", []byte(packed)))

	got, err := Resolve(adapter, "repo", "refs/heads/main")
	require.NoError(t, err)
	want, _ := object.DecodeID(hexA)
	assert.Equal(t, want, got)
}

func TestListTransportErrorYieldsPackedOnly(t *testing.T) {
	packed := hexA + " refs/heads/main\n"
	adapter := &failingLooseAdapter{Memory: blob.NewMemory()}
	require.NoError(t, adapter.Put("repo/packed-refs", []byte(packed)))
	// A loose ref that List finds but cannot read.
	require.NoError(t, adapter.Put("repo/refs/heads/main", []byte(hexB+"\n")))

	got := List(adapter, "repo", "refs/heads/")
	assert.Equal(t, hexA, got["refs/heads/main"])
}

// failingLooseAdapter fails every Get except for packed-refs, to prove
// that a transport error reading a loose ref falls back to packed-refs
// instead of propagating.
type failingLooseAdapter struct {
	*blob.Memory
}

func (a *failingLooseAdapter) Get(key string) ([]byte, bool, error) {
	if strings.HasSuffix(key, packedRefsName) {
		return a.Memory.Get(key)
	}
	return nil, false, assert.AnError
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("refs/heads/main"))
	assert.False(t, ValidName("heads/main"))
	assert.False(t, ValidName("refs/heads/../etc"))
	assert.False(t, ValidName("refs/heads/main.lock"))
	assert.False(t, ValidName("refs/heads/main/"))
}

func TestFindDisambiguatesAbbreviatedName(t *testing.T) {
	adapter := blob.NewMemory()
	id, _ := object.DecodeID(hexA)
	require.NoError(t, WriteLoose(adapter, "repo", "refs/heads/main", id))

	got, err := Find(adapter, "repo", "main")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestReadPackedRefsIgnoresCommentsAndPeeled(t *testing.T) {
	adapter := blob.NewMemory()
	content := "# pack-refs with: peeled fully-peeled sorted\n" +
		hexA + " refs/tags/v1\n" +
		"^" + hexB + "\n"
	require.NoError(t, adapter.Put("repo/packed-refs", []byte(content)))

	refs, ok, err := ReadPackedRefs(adapter, "repo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"refs/tags/v1": hexA}, refs)
}
