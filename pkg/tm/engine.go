package tm

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/rs/zerolog"
)

// Engine drives TM creation, import and lookup over a Store. It keeps an
// in-memory loadedTM per TM that has been touched since startup, rebuilt
// whenever entries change; Store itself remains the durable source of
// truth.
type Engine struct {
	store      Store
	indexDir   string
	fastModel  Embedder
	deepModel  Embedder
	cascadeCfg config.CascadeConfig
	logger     zerolog.Logger

	mu     sync.RWMutex
	loaded map[string]*loadedTM // tm_id -> in-memory cascade state

	activeMu sync.RWMutex
	active   map[string]string // session_id -> tm_id; active TM is scoped per session, not per project
}

// New creates an Engine. indexDir is where persistent vector index files
// live, one or two per TM (fast always, deep only if ever enabled).
func New(store Store, indexDir string, cascadeCfg config.CascadeConfig) *Engine {
	return &Engine{
		store:      store,
		indexDir:   indexDir,
		fastModel:  NewFastEmbedder(),
		deepModel:  NewDeepEmbedder(),
		cascadeCfg: cascadeCfg,
		logger:     log.WithComponent("tm"),
		loaded:     make(map[string]*loadedTM),
		active:     make(map[string]string),
	}
}

// CreateTM registers a new, empty TM. At most one TM per (name, project).
func (e *Engine) CreateTM(name, sourceLang, targetLang, projectID, description string) (*types.TM, error) {
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "tm name required")
	}
	existing, err := e.listForProject(projectID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t.Name == name {
			return nil, errs.New(errs.Conflict, fmt.Sprintf("tm %q already exists in this scope", name))
		}
	}

	t := &types.TM{
		ID:         uuid.NewString(),
		Name:       name,
		ProjectID:  projectID,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Description: description,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreateTM(t); err != nil {
		return nil, errs.Wrap(errs.Internal, t.ID, "create tm", err)
	}
	return t, nil
}

func (e *Engine) listForProject(projectID string) ([]*types.TM, error) {
	if projectID == "" {
		return e.store.ListTMs()
	}
	return e.store.ListTMsByProject(projectID)
}

// Delete removes a TM and its entries/index permanently.
func (e *Engine) Delete(tmID string) error {
	entries, err := e.store.ListTMEntries(tmID)
	if err != nil {
		return errs.Wrap(errs.Internal, tmID, "list tm entries for delete", err)
	}
	for _, entry := range entries {
		if err := e.store.DeleteTMEntry(tmID, entry.EntryID); err != nil {
			return errs.Wrap(errs.Internal, tmID, "delete tm entry", err)
		}
	}
	if err := e.store.DeleteTM(tmID); err != nil {
		return errs.Wrap(errs.Internal, tmID, "delete tm", err)
	}
	e.mu.Lock()
	delete(e.loaded, tmID)
	e.mu.Unlock()
	return nil
}

// ImportPair is one source/target pair as presented to ImportEntries,
// before normalization/hashing.
type ImportPair struct {
	Source string
	Target string
}

// ImportEntries streams pairs into tmID, normalizing and hashing each one,
// upserting by source hash, then rebuilds the TM's persistent index.
// Idempotent: re-importing the same pairs is a no-op past the first call.
// yield is called roughly every 500 pairs so a caller running this inside
// a scheduler.WorkFunc can report progress and honor cancellation.
func (e *Engine) ImportEntries(tmID string, pairs []ImportPair, yield func(done, total int) error) (int, error) {
	t, err := e.store.GetTM(tmID)
	if err != nil {
		return 0, errs.Wrap(errs.NotFound, tmID, "tm not found", err)
	}

	const batchSize = 500
	for i, pair := range pairs {
		normalized := Normalize(pair.Source)
		if normalized == "" {
			continue
		}
		entry := &types.TMEntry{
			TMID:             tmID,
			EntryID:          Hash(normalized), // stable id derived from content: re-import of the same pair upserts the same entry
			Source:           pair.Source,
			Target:           pair.Target,
			NormalizedSource: normalized,
			SourceHash:       Hash(normalized),
		}
		if err := e.store.UpsertTMEntry(entry); err != nil {
			return i, errs.Wrap(errs.Internal, tmID, "upsert tm entry", err)
		}

		if yield != nil && (i+1)%batchSize == 0 {
			if err := yield(i+1, len(pairs)); err != nil {
				return i + 1, err
			}
		}
	}

	count, err := e.rebuild(t)
	if err != nil {
		return len(pairs), err
	}

	t.EntryCount = count
	if err := e.store.UpdateTM(t); err != nil {
		return len(pairs), errs.Wrap(errs.Internal, tmID, "update tm entry count", err)
	}

	if yield != nil {
		_ = yield(len(pairs), len(pairs))
	}
	return len(pairs), nil
}

// rebuild reloads tmID's entries from the Store, rebuilds its vector
// index(es) and installs both in the in-memory loaded-TM cache, which
// Lookup/Search read from. The old loadedTM (if any) remains valid and in
// place until this completes: rebuilding is idempotent and restart-safe,
// and the previous index stays usable on partial failure.
func (e *Engine) rebuild(t *types.TM) (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TMIndexRebuildDuration)

	entries, err := e.store.ListTMEntries(t.ID)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, t.ID, "list tm entries for rebuild", err)
	}

	fastIdx, err := NewVectorIndex(e.indexDir, t.ID+"-fast", e.fastModel)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, t.ID, "open fast vector index", err)
	}
	indexable := make([]*IndexableEntry, len(entries))
	for i, en := range entries {
		indexable[i] = &IndexableEntry{EntryID: en.EntryID, NormalizedSource: en.NormalizedSource}
	}
	if err := fastIdx.Rebuild(indexable); err != nil {
		return 0, errs.Wrap(errs.Internal, t.ID, "rebuild fast vector index", err)
	}

	var deepIdx *VectorIndex
	if e.cascadeCfg.EnableDeep {
		deepIdx, err = NewVectorIndex(e.indexDir, t.ID+"-deep", e.deepModel)
		if err != nil {
			return 0, errs.Wrap(errs.Internal, t.ID, "open deep vector index", err)
		}
		if err := deepIdx.Rebuild(indexable); err != nil {
			return 0, errs.Wrap(errs.Internal, t.ID, "rebuild deep vector index", err)
		}
	}

	loaded := &loadedTM{
		tm:         t,
		byHash:     make(map[string]*types.TMEntry, len(entries)),
		byCasefold: make(map[string]*types.TMEntry, len(entries)),
		ordered:    entries,
		fastIndex:  fastIdx,
		deepIndex:  deepIdx,
	}
	for _, en := range entries {
		loaded.byHash[en.SourceHash] = en
		loaded.byCasefold[Casefold(en.NormalizedSource)] = en
	}

	if err := e.store.SaveTMIndexMeta(&types.TMIndexMeta{
		TMID:      t.ID,
		ModelID:   e.fastModel.ModelID(),
		Dim:       e.fastModel.Dim(),
		Count:     fastIdx.Count(),
		UpdatedAt: time.Now(),
	}); err != nil {
		return 0, errs.Wrap(errs.Internal, t.ID, "save tm index meta", err)
	}

	e.mu.Lock()
	e.loaded[t.ID] = loaded
	e.mu.Unlock()

	metrics.TMEntriesTotal.WithLabelValues(t.ID).Set(float64(len(entries)))
	return len(entries), nil
}

// cascadeFor returns a Cascade for tmID, loading it from Store first if
// it hasn't been touched since startup.
func (e *Engine) cascadeFor(tmID string) (*Cascade, error) {
	e.mu.RLock()
	loaded, ok := e.loaded[tmID]
	e.mu.RUnlock()
	if !ok {
		t, err := e.store.GetTM(tmID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, tmID, "tm not found", err)
		}
		if _, err := e.rebuild(t); err != nil {
			return nil, err
		}
		e.mu.RLock()
		loaded = e.loaded[tmID]
		e.mu.RUnlock()
	}
	return &Cascade{
		tm:          loaded,
		fuzzyMin:    e.cascadeCfg.ThresholdFuzzy,
		semanticMin: e.cascadeCfg.ThresholdSemantic,
		enableDeep:  e.cascadeCfg.EnableDeep,
	}, nil
}

// SetActive marks tmID as the active TM for sessionID, atomically
// replacing whatever was active before. The previous TM's stored
// IsActive flag is flipped back off in the same call so the persisted
// flag never goes stale.
func (e *Engine) SetActive(sessionID, tmID string) error {
	t, err := e.store.GetTM(tmID)
	if err != nil {
		return errs.Wrap(errs.NotFound, tmID, "tm not found", err)
	}

	e.activeMu.Lock()
	prev := e.active[sessionID]
	e.active[sessionID] = tmID
	e.activeMu.Unlock()

	if prev != "" && prev != tmID {
		e.clearActiveFlag(prev)
	}

	t.IsActive = true
	if err := e.store.UpdateTM(t); err != nil {
		return errs.Wrap(errs.Internal, tmID, "mark tm active", err)
	}
	return nil
}

// Deactivate clears the active TM for sessionID, resetting the stored
// IsActive flag along with the in-memory mapping.
func (e *Engine) Deactivate(sessionID string) {
	e.activeMu.Lock()
	prev := e.active[sessionID]
	delete(e.active, sessionID)
	e.activeMu.Unlock()

	if prev != "" {
		e.clearActiveFlag(prev)
	}
}

func (e *Engine) clearActiveFlag(tmID string) {
	t, err := e.store.GetTM(tmID)
	if err != nil {
		e.logger.Warn().Err(err).Str("tm_id", tmID).Msg("previously active tm not found while clearing flag")
		return
	}
	if !t.IsActive {
		return
	}
	t.IsActive = false
	if err := e.store.UpdateTM(t); err != nil {
		e.logger.Error().Err(err).Str("tm_id", tmID).Msg("failed to clear tm active flag")
	}
}

// ActiveTM returns the TM id active for sessionID, or "" if none.
func (e *Engine) ActiveTM(sessionID string) string {
	e.activeMu.RLock()
	defer e.activeMu.RUnlock()
	return e.active[sessionID]
}

// Search runs a ranked lookup over tmID; see Cascade.Search.
func (e *Engine) Search(tmID, text string, k int, minScore float64) ([]types.CascadeMatch, error) {
	c, err := e.cascadeFor(tmID)
	if err != nil {
		return nil, err
	}
	return c.Search(text, k, minScore), nil
}

// Lookup runs the cascade once against text, for callers (e.g. a single
// row edit's suggestion flow) that don't need the full pre-translation
// batch path.
func (e *Engine) Lookup(tmID, text string) (types.CascadeMatch, bool, error) {
	c, err := e.cascadeFor(tmID)
	if err != nil {
		return types.CascadeMatch{}, false, err
	}
	match, ok := c.Lookup(text)
	if ok {
		metrics.TMCascadeTierHits.WithLabelValues(string(match.Tier)).Inc()
	}
	return match, ok, nil
}
