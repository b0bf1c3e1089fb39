package sync

import (
	"context"
	"testing"
	"time"

	"github.com/ldmsys/ldm/pkg/repository"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return repository.NewLocalBackend(store)
}

// seedProject creates a platform, a project under it, a file, and numRows
// rows on central, returning the project and file IDs.
func seedProject(t *testing.T, central Store, numRows int) (*types.Project, *types.File) {
	t.Helper()

	project := &types.Project{ID: "proj-1", Name: "Demo"}
	require.NoError(t, central.CreateProject(project))

	file := &types.File{ID: "file-1", Name: "strings.txt", ProjectID: project.ID, Format: types.FileFormatTXT, RowCount: numRows}
	require.NoError(t, central.CreateFile(file))

	rows := make([]*types.Row, numRows)
	for i := 0; i < numRows; i++ {
		rows[i] = &types.Row{
			ID:     uuidForTest(i),
			FileID: file.ID,
			Index:  i + 1,
			Source: "hello",
			Target: "",
			Status: types.RowStatusPending,
		}
	}
	if numRows > 0 {
		require.NoError(t, central.BulkUpsertRows(rows))
	}
	return project, file
}

// uuidForTest avoids pulling in google/uuid just to generate stable,
// readable row IDs for fixtures.
func uuidForTest(i int) string {
	return "row-" + string(rune('a'+i))
}

func TestSubscribePerformsFullSnapshot(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	project, file := seedProject(t, central, 3)

	sub, err := engine.Subscribe("user-1", types.SyncItemProject, project.ID)
	require.NoError(t, err)
	require.False(t, sub.LastSyncedAt.IsZero())

	gotFile, err := local.GetFile(file.ID)
	require.NoError(t, err)
	require.Equal(t, file.Name, gotFile.Name)

	rows, err := local.ListRowsByFile(file.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Equal(t, r.Version, r.SyncLocalVersion)
		require.NotZero(t, r.SyncRemoteVersion)
	}
}

func TestDeltaAppliesNewerRemoteRows(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	project, _ := seedProject(t, central, 1)
	sub, err := engine.Subscribe("user-1", types.SyncItemProject, project.ID)
	require.NoError(t, err)

	// edit centrally, bumping its Version past what local landed.
	row, err := central.GetRow("row-a")
	require.NoError(t, err)
	row.Target = "world"
	require.NoError(t, central.BulkUpsertRows([]*types.Row{row}))

	result, err := engine.Delta(sub.SubscriptionID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsUpdated)
	require.Zero(t, result.RowsConflicted)

	localRow, err := local.GetRow("row-a")
	require.NoError(t, err)
	require.Equal(t, "world", localRow.Target)
}

func TestDeltaKeepsOfflineEditAndReportsConflict(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	project, _ := seedProject(t, central, 1)
	sub, err := engine.Subscribe("user-1", types.SyncItemProject, project.ID)
	require.NoError(t, err)

	// offline edit: read-modify-write, preserving sync bookkeeping fields.
	localRow, err := local.GetRow("row-a")
	require.NoError(t, err)
	localRow.Target = "offline edit"
	require.NoError(t, local.BulkUpsertRows([]*types.Row{localRow}))

	// central also moves the row on.
	centralRow, err := central.GetRow("row-a")
	require.NoError(t, err)
	centralRow.Target = "central edit"
	require.NoError(t, central.BulkUpsertRows([]*types.Row{centralRow}))

	result, err := engine.Delta(sub.SubscriptionID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsConflicted)
	require.Zero(t, result.RowsUpdated)

	stillLocal, err := local.GetRow("row-a")
	require.NoError(t, err)
	require.Equal(t, "offline edit", stillLocal.Target)
}

func TestDeltaAppliesAfterCleanEditNotConsideredConflict(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	project, _ := seedProject(t, central, 1)
	sub, err := engine.Subscribe("user-1", types.SyncItemProject, project.ID)
	require.NoError(t, err)

	// central moves the row on; local has not touched it since landing.
	centralRow, err := central.GetRow("row-a")
	require.NoError(t, err)
	centralRow.Target = "central edit"
	require.NoError(t, central.BulkUpsertRows([]*types.Row{centralRow}))

	result, err := engine.Delta(sub.SubscriptionID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsUpdated)
	require.Zero(t, result.RowsConflicted)
}

func TestDeltaTombstonesDeletedRows(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	project, file := seedProject(t, central, 2)
	sub, err := engine.Subscribe("user-1", types.SyncItemProject, project.ID)
	require.NoError(t, err)

	require.NoError(t, central.DeleteRowsByFile(file.ID))
	remaining := &types.Row{ID: "row-a", FileID: file.ID, Index: 1, Source: "hello"}
	require.NoError(t, central.BulkUpsertRows([]*types.Row{remaining}))

	result, err := engine.Delta(sub.SubscriptionID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RowsTombstoned)

	rows, err := local.ListRowsByFile(file.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "row-a", rows[0].ID)
}

func TestPushPromotesLocalFileToCentral(t *testing.T) {
	central := newTestStore(t)
	local := newTestStore(t)
	engine := New(central, local)

	destProject := &types.Project{ID: "proj-dest", Name: "Dest"}
	require.NoError(t, central.CreateProject(destProject))

	localFile := &types.File{ID: "local-file-1", Name: "offline.txt", ProjectID: "sandbox", Format: types.FileFormatTXT}
	require.NoError(t, local.CreateFile(localFile))
	require.NoError(t, local.BulkUpsertRows([]*types.Row{
		{ID: "lrow-1", FileID: localFile.ID, Index: 1, Source: "a", Target: "A"},
		{ID: "lrow-2", FileID: localFile.ID, Index: 2, Source: "b", Target: "B"},
	}))

	result, err := engine.Push(context.Background(), localFile.ID, destProject.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowCount)

	centralRows, err := central.ListRowsByFile(result.NewFileID)
	require.NoError(t, err)
	require.Len(t, centralRows, 2)
}

func TestEmptyRecycleBinReportsPerStoreCounts(t *testing.T) {
	centralStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { centralStore.Close() })
	central := repository.New(repository.NewLocalBackend(centralStore), time.Hour)

	localStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { localStore.Close() })
	local := repository.New(repository.NewLocalBackend(localStore), time.Hour)

	project := &types.Project{ID: "proj-trash", Name: "Demo"}
	require.NoError(t, centralStore.CreateProject(project))
	_, err = central.SoftDelete(types.TrashProject, project.ID, "system")
	require.NoError(t, err)

	result := EmptyRecycleBin(central, local)
	require.False(t, result.Failed())
	require.Equal(t, 1, result.CentralPurged)
	require.Equal(t, 0, result.LocalPurged)
}
