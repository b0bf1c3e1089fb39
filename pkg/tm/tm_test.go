package tm

import (
	"context"
	"testing"

	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/events"
	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *repository.LocalBackend) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backend := repository.NewLocalBackend(store)
	cfg := config.CascadeConfig{ThresholdFuzzy: 0.85, ThresholdSemantic: 0.75, EnableDeep: false}
	return New(backend, t.TempDir(), cfg), backend
}

func TestNormalizePreservesBrTag(t *testing.T) {
	in := "line one<br/>  line   two"
	got := Normalize(in)
	require.Contains(t, got, "<br/>")
	require.NotContains(t, got, "\n")
}

func TestImportAndExactCascade(t *testing.T) {
	engine, _ := newTestEngine(t)
	tmObj, err := engine.CreateTM("Korean Game TM", "ko", "en", "", "")
	require.NoError(t, err)

	n, err := engine.ImportEntries(tmObj.ID, []ImportPair{
		{Source: "기습", Target: "Ambush"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	match, ok, err := engine.Lookup(tmObj.ID, "기습")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.TierExact, match.Tier)
	require.Equal(t, "Ambush", match.Target)
}

func TestImportIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(t)
	tmObj, err := engine.CreateTM("TM", "ko", "en", "", "")
	require.NoError(t, err)

	pairs := []ImportPair{{Source: "기습", Target: "Ambush"}}
	_, err = engine.ImportEntries(tmObj.ID, pairs, nil)
	require.NoError(t, err)
	_, err = engine.ImportEntries(tmObj.ID, pairs, nil)
	require.NoError(t, err)

	entries, err := store.ListTMEntries(tmObj.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCascadeFuzzyTier(t *testing.T) {
	engine, _ := newTestEngine(t)
	tmObj, err := engine.CreateTM("TM", "ko", "en", "", "")
	require.NoError(t, err)
	_, err = engine.ImportEntries(tmObj.ID, []ImportPair{{Source: "기습", Target: "Ambush"}}, nil)
	require.NoError(t, err)

	match, ok, err := engine.Lookup(tmObj.ID, "기습!")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, []types.CascadeTier{types.TierCaseInsensitive, types.TierFuzzyChar}, match.Tier)
	require.Equal(t, "Ambush", match.Target)
}

func TestCascadeNoMatchBelowThreshold(t *testing.T) {
	engine, _ := newTestEngine(t)
	tmObj, err := engine.CreateTM("TM", "ko", "en", "", "")
	require.NoError(t, err)
	_, err = engine.ImportEntries(tmObj.ID, []ImportPair{{Source: "기습", Target: "Ambush"}}, nil)
	require.NoError(t, err)

	_, ok, err := engine.Lookup(tmObj.ID, "surprise attack in Korean")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetActivePersistsFlagAndClearsPrevious(t *testing.T) {
	engine, store := newTestEngine(t)
	first, err := engine.CreateTM("First", "ko", "en", "", "")
	require.NoError(t, err)
	second, err := engine.CreateTM("Second", "ko", "en", "", "")
	require.NoError(t, err)

	require.NoError(t, engine.SetActive("sess-1", first.ID))
	got, err := store.GetTM(first.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	require.NoError(t, engine.SetActive("sess-1", second.ID))
	got, err = store.GetTM(first.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive, "replaced TM must not stay flagged active")
	got, err = store.GetTM(second.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	engine.Deactivate("sess-1")
	require.Empty(t, engine.ActiveTM("sess-1"))
	got, err = store.GetTM(second.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive, "deactivation must reset the stored flag")
}

func TestPretranslateAppliesExactMatchesOnly(t *testing.T) {
	engine, backend := newTestEngine(t)
	tmObj, err := engine.CreateTM("TM", "ko", "en", "", "")
	require.NoError(t, err)
	_, err = engine.ImportEntries(tmObj.ID, []ImportPair{{Source: "기습", Target: "Ambush"}}, nil)
	require.NoError(t, err)

	file := &types.File{ID: "file-1", Name: "q.txt", ProjectID: "proj-1", Format: types.FileFormatTXT}
	require.NoError(t, backend.CreateFile(file))
	rows := []*types.Row{
		{ID: "row-1", FileID: file.ID, Index: 1, Source: "기습", Status: types.RowStatusPending},
		{ID: "row-2", FileID: file.ID, Index: 2, Source: "unrelated text nobody typed", Status: types.RowStatusPending},
	}
	require.NoError(t, backend.BulkUpsertRows(rows))

	opts := PretranslateOptions{TierCap: types.TierExact, ScoreFloor: 0.99}
	result, err := engine.Pretranslate(context.Background(), tmObj.ID, file.ID, opts, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Matched)
	require.Equal(t, 1, result.RemainPending)

	got, err := backend.ListRowsByFile(file.ID)
	require.NoError(t, err)
	for _, r := range got {
		if r.ID == "row-1" {
			require.Equal(t, types.RowStatusTranslated, r.Status)
			require.Equal(t, "Ambush", r.Target)
		} else {
			require.Equal(t, types.RowStatusPending, r.Status)
		}
	}
}

func TestPretranslateAsSchedulerOperation(t *testing.T) {
	engine, backend := newTestEngine(t)
	tmObj, err := engine.CreateTM("TM", "ko", "en", "", "")
	require.NoError(t, err)
	_, err = engine.ImportEntries(tmObj.ID, []ImportPair{{Source: "기습", Target: "Ambush"}}, nil)
	require.NoError(t, err)

	file := &types.File{ID: "file-2", Name: "q2.txt", ProjectID: "proj-1", Format: types.FileFormatTXT}
	require.NoError(t, backend.CreateFile(file))
	require.NoError(t, backend.BulkUpsertRows([]*types.Row{
		{ID: "row-1", FileID: file.ID, Index: 1, Source: "기습", Status: types.RowStatusPending},
	}))

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sched := scheduler.New(store, broker, scheduler.DefaultConfig())
	sched.Start()
	t.Cleanup(sched.Stop)

	op := &types.Operation{OpID: "op-1", UserID: "user-1", Class: types.ClassPretranslation, Tool: "tm", Function: "pretranslate"}
	done := make(chan struct{})
	var result *PretranslateResult
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		defer close(done)
		r, err := engine.Pretranslate(ctx, tmObj.ID, file.ID, PretranslateOptions{TierCap: types.TierExact, ScoreFloor: 0.99}, yield)
		result = r
		return err
	}))
	<-done
	require.NotNil(t, result)
	require.Equal(t, 1, result.Matched)
}
