package tm

import (
	"encoding/gob"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Embedder turns normalized text into a fixed-dimension vector. The
// embedding model itself is treated as an external collaborator;
// HashEmbedder is the in-process default used when no real model is
// configured: a deterministic bag-of-trigrams projection, good enough to
// exercise the cascade's semantic tiers and their index-rebuild/
// persistence plumbing without depending on an external ML runtime.
type Embedder interface {
	ModelID() string
	Dim() int
	Embed(text string) []float32
}

// HashEmbedder implements Embedder by hashing character trigrams of the
// input into dim buckets, signed by a second hash, then L2-normalizing:
// the standard "hashing trick" feature projection (see DESIGN.md for why
// no vector-search or embedding library is used here).
type HashEmbedder struct {
	modelID string
	dim     int
}

// NewFastEmbedder builds the small, low-dim (256) multilingual model used
// by the semantic-fast cascade tier.
func NewFastEmbedder() *HashEmbedder { return &HashEmbedder{modelID: "fast-v1", dim: 256} }

// NewDeepEmbedder builds the larger, high-dim (1024) opt-in model used by
// the semantic-deep cascade tier.
func NewDeepEmbedder() *HashEmbedder { return &HashEmbedder{modelID: "deep-v1", dim: 1024} }

func (e *HashEmbedder) ModelID() string { return e.modelID }
func (e *HashEmbedder) Dim() int         { return e.dim }

func (e *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dim)
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return vec
	}
	window := 3
	if n < window {
		window = n
	}
	for i := 0; i+window <= n || i == 0; i++ {
		end := i + window
		if end > n {
			end = n
		}
		gram := string(runes[i:end])
		bucket := fnvHash(gram) % uint32(e.dim)
		sign := float32(1)
		if fnvHash(gram+"#sign")%2 == 1 {
			sign = -1
		}
		vec[bucket] += sign
		if end == n {
			break
		}
	}
	normalize(vec)
	return vec
}

func fnvHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// both vectors are already L2-normalized by Embed, so the dot product
	// is the cosine similarity directly; clamp for float drift.
	if dot > 1 {
		dot = 1
	}
	if dot < -1 {
		dot = -1
	}
	return dot
}

// vectorIndexFile is the on-disk, gob-encoded payload for one TM's
// persistent vector index.
type vectorIndexFile struct {
	ModelID string
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// VectorIndex is a persistent, 1:1-with-a-TM vector index. Rebuilds are
// read-copy-update: a rebuild writes a brand new file then atomically
// installs a new in-memory snapshot behind an atomic.Pointer, so
// concurrent readers never observe a half-written index.
type VectorIndex struct {
	path     string
	embedder Embedder
	current  atomic.Pointer[vectorIndexFile]
}

// NewVectorIndex opens (or prepares to create) the index file for tmID
// under dir, using embedder for future rebuilds. It loads whatever is on
// disk, if anything; a missing file just means Count()==0 until the
// first Rebuild.
func NewVectorIndex(dir, tmID string, embedder Embedder) (*VectorIndex, error) {
	vi := &VectorIndex{path: indexPath(dir, tmID), embedder: embedder}
	if data, err := loadIndexFile(vi.path); err == nil {
		vi.current.Store(data)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return vi, nil
}

func indexPath(dir, tmID string) string {
	return filepath.Join(dir, tmID+".idx")
}

func loadIndexFile(path string) (*vectorIndexFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data vectorIndexFile
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Rebuild recomputes the index from entries in insertion order and
// installs it atomically. It writes to a temp file in the same directory
// then renames over the old one; on any error the temp file is discarded
// and the previously installed index remains usable — a partial write
// never becomes visible.
func (vi *VectorIndex) Rebuild(entries []*IndexableEntry) error {
	data := &vectorIndexFile{
		ModelID: vi.embedder.ModelID(),
		Dim:     vi.embedder.Dim(),
		IDs:     make([]string, len(entries)),
		Vectors: make([][]float32, len(entries)),
	}
	for i, e := range entries {
		data.IDs[i] = e.EntryID
		data.Vectors[i] = vi.embedder.Embed(e.NormalizedSource)
	}

	tmp := vi.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, vi.path); err != nil {
		os.Remove(tmp)
		return err
	}

	vi.current.Store(data)
	return nil
}

// IndexableEntry is the minimal shape Rebuild needs from a TMEntry.
type IndexableEntry struct {
	EntryID          string
	NormalizedSource string
}

// Count returns the number of vectors currently installed.
func (vi *VectorIndex) Count() int {
	cur := vi.current.Load()
	if cur == nil {
		return 0
	}
	return len(cur.IDs)
}

// Nearest returns the entry id with the highest cosine similarity to
// query's embedding, and that similarity. ok is false if the index is
// empty.
func (vi *VectorIndex) Nearest(query string) (entryID string, score float64, ok bool) {
	cur := vi.current.Load()
	if cur == nil || len(cur.IDs) == 0 {
		return "", 0, false
	}
	q := vi.embedder.Embed(query)
	best := -2.0
	bestIdx := -1
	for i, v := range cur.Vectors {
		s := cosineSimilarity(q, v)
		if s > best {
			best = s
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return "", 0, false
	}
	return cur.IDs[bestIdx], best, true
}
