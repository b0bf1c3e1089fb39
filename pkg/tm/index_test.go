package tm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	embedder := NewFastEmbedder()

	idx, err := NewVectorIndex(dir, "tm-1", embedder)
	require.NoError(t, err)
	require.Zero(t, idx.Count())

	entries := []*IndexableEntry{
		{EntryID: "e1", NormalizedSource: "기습"},
		{EntryID: "e2", NormalizedSource: "낯선 땅"},
	}
	require.NoError(t, idx.Rebuild(entries))
	require.Equal(t, 2, idx.Count())

	reopened, err := NewVectorIndex(dir, "tm-1", embedder)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())

	id, score, ok := reopened.Nearest("기습")
	require.True(t, ok)
	require.Equal(t, "e1", id)
	require.InDelta(t, 1.0, score, 1e-6)
}

func TestVectorIndexNearestOnEmpty(t *testing.T) {
	idx, err := NewVectorIndex(t.TempDir(), "tm-empty", NewFastEmbedder())
	require.NoError(t, err)

	_, _, ok := idx.Nearest("anything")
	require.False(t, ok)
}

func TestVectorIndexRebuildLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewVectorIndex(dir, "tm-2", NewFastEmbedder())
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild([]*IndexableEntry{{EntryID: "e1", NormalizedSource: "hello"}}))

	_, err = os.Stat(filepath.Join(dir, "tm-2.idx"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "tm-2.idx.tmp"))
	require.True(t, os.IsNotExist(err))
}

func TestEmbedderVectorsAreNormalized(t *testing.T) {
	vec := NewFastEmbedder().Embed("strange lands ahead")
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, sumSq, 1e-5)
}
