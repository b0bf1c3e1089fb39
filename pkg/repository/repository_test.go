package repository

import (
	"testing"
	"time"

	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(NewLocalBackend(store), time.Hour)
}

func seedProject(t *testing.T, repo *Repository) *types.Project {
	t.Helper()
	p := &types.Project{ID: "proj-1", Name: "Project One", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.backend.CreateProject(p))
	return p
}

func seedFile(t *testing.T, repo *Repository, projectID string) *types.File {
	t.Helper()
	f := &types.File{ID: "file-1", Name: "strings.xlsx", ProjectID: projectID, Format: types.FileFormatXLSX, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.backend.CreateFile(f))
	rows := []*types.Row{
		{ID: "row-1", FileID: f.ID, Index: 1, Source: "hello", Status: types.RowStatusPending},
		{ID: "row-2", FileID: f.ID, Index: 2, Source: "world", Status: types.RowStatusPending},
	}
	require.NoError(t, repo.backend.BulkUpsertRows(rows))
	return f
}

func TestRenameProject(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)

	require.NoError(t, repo.Rename(types.TrashProject, p.ID, "Renamed Project", "user-1"))

	got, err := repo.backend.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Project", got.Name)
}

func TestMoveFileBetweenFolders(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	folder := &types.Folder{ID: "folder-1", Name: "nested", ProjectID: p.ID}
	require.NoError(t, repo.backend.CreateFolder(folder))

	require.NoError(t, repo.Move(types.TrashFile, f.ID, folder.ID, "user-1"))

	got, err := repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, folder.ID, got.FolderID)
}

func TestMoveCrossProject(t *testing.T) {
	repo := newTestRepo(t)
	p1 := seedProject(t, repo)
	f := seedFile(t, repo, p1.ID)

	p2 := &types.Project{ID: "proj-2", Name: "Project Two", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.backend.CreateProject(p2))

	require.NoError(t, repo.MoveCrossProject(f.ID, p2.ID, "user-1"))

	got, err := repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, got.ProjectID)
	assert.Empty(t, got.FolderID)
}

func TestCopyFileDuplicatesRows(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	copiedID, err := repo.Copy(types.TrashFile, f.ID, p.ID, "user-1")
	require.NoError(t, err)

	copied, err := repo.backend.GetFile(copiedID)
	require.NoError(t, err)
	assert.NotEqual(t, f.Name, copied.Name, "copy into the same parent must auto-rename")
	assert.Contains(t, copied.Name, f.Name)

	rows, err := repo.backend.ListRowsByFile(copiedID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, copied.RowCount)
}

func TestCopyFolderSubtree(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)

	parent := &types.Folder{ID: "folder-1", Name: "quests", ProjectID: p.ID}
	require.NoError(t, repo.backend.CreateFolder(parent))
	child := &types.Folder{ID: "folder-2", Name: "side", ProjectID: p.ID, ParentFolderID: parent.ID}
	require.NoError(t, repo.backend.CreateFolder(child))
	f := &types.File{ID: "file-1", Name: "q.txt", ProjectID: p.ID, FolderID: child.ID, Format: types.FileFormatTXT}
	require.NoError(t, repo.backend.CreateFile(f))
	require.NoError(t, repo.backend.BulkUpsertRows([]*types.Row{
		{ID: "row-1", FileID: f.ID, Index: 1, Source: "기습", Target: "Ambush", Status: types.RowStatusTranslated},
	}))

	p2 := &types.Project{ID: "proj-2", Name: "Other", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.backend.CreateProject(p2))

	newRootID, err := repo.Copy(types.TrashFolder, parent.ID, p2.ID, "user-1")
	require.NoError(t, err)

	root, err := repo.backend.GetFolder(newRootID)
	require.NoError(t, err)
	assert.Equal(t, "quests", root.Name)
	assert.Equal(t, p2.ID, root.ProjectID)
	assert.Empty(t, root.ParentFolderID)

	subfolders, err := repo.backend.ListFoldersByParent(newRootID)
	require.NoError(t, err)
	require.Len(t, subfolders, 1)
	assert.Equal(t, "side", subfolders[0].Name)

	files, err := repo.backend.ListFilesByFolder(subfolders[0].ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	rows, err := repo.backend.ListRowsByFile(files[0].ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ambush", rows[0].Target)

	// the source subtree is untouched
	srcRows, err := repo.backend.ListRowsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, srcRows, 1)
}

func TestCopyProjectDuplicatesTMs(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	seedFile(t, repo, p.ID)

	tmObj := &types.TM{ID: "tm-1", Name: "Game TM", ProjectID: p.ID, SourceLang: "ko", TargetLang: "en", EntryCount: 1}
	require.NoError(t, repo.backend.CreateTM(tmObj))
	require.NoError(t, repo.backend.UpsertTMEntry(&types.TMEntry{
		TMID: tmObj.ID, EntryID: "e1", Source: "기습", Target: "Ambush", NormalizedSource: "기습", SourceHash: "h1",
	}))

	newProjectID, err := repo.Copy(types.TrashProject, p.ID, "", "user-1")
	require.NoError(t, err)

	tms, err := repo.backend.ListTMsByProject(newProjectID)
	require.NoError(t, err)
	require.Len(t, tms, 1)
	assert.Equal(t, "Game TM", tms[0].Name)
	assert.NotEqual(t, tmObj.ID, tms[0].ID)

	entries, err := repo.backend.ListTMEntries(tms[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ambush", entries[0].Target)

	files, err := repo.backend.ListFilesByProject(newProjectID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	rows, err := repo.backend.ListRowsByFile(files[0].ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSoftDeleteAndRestoreFile(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	item, err := repo.SoftDelete(types.TrashFile, f.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, f.Name, item.ItemName)

	_, err = repo.backend.GetFile(f.ID)
	assert.Error(t, err, "file should be gone from the live tree")

	result, err := repo.Restore(item.TrashID, "user-1")
	require.NoError(t, err)
	assert.False(t, result.Relocated)
	assert.Equal(t, f.Name, result.Name)

	got, err := repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Name, got.Name)

	rows, err := repo.backend.ListRowsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = repo.backend.GetTrashItem(item.TrashID)
	assert.Error(t, err, "trash record should be removed after restore")
}

func TestSoftDeleteProjectSnapshotsSubtree(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	seedFile(t, repo, p.ID)
	folder := &types.Folder{ID: "folder-1", Name: "nested", ProjectID: p.ID}
	require.NoError(t, repo.backend.CreateFolder(folder))

	item, err := repo.SoftDelete(types.TrashProject, p.ID, "user-1")
	require.NoError(t, err)

	_, err = repo.backend.GetFolder(folder.ID)
	assert.Error(t, err, "subtree folders should leave the live tree with the project")
	_, err = repo.backend.GetFile("file-1")
	assert.Error(t, err, "subtree files should leave the live tree with the project")

	_, err = repo.Restore(item.TrashID, "user-1")
	require.NoError(t, err)

	restoredFolder, err := repo.backend.GetFolder(folder.ID)
	require.NoError(t, err)
	assert.Equal(t, folder.Name, restoredFolder.Name)
}

func TestPurgeRemovesTrashWithoutRestoring(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	item, err := repo.SoftDelete(types.TrashFile, f.ID, "user-1")
	require.NoError(t, err)

	require.NoError(t, repo.Purge(item.TrashID, "user-1"))

	_, err = repo.backend.GetFile(f.ID)
	assert.Error(t, err)
	_, err = repo.backend.GetTrashItem(item.TrashID)
	assert.Error(t, err)
}

func TestPurgeExpiredOnlyRemovesPastRetention(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := New(NewLocalBackend(store), -time.Hour) // already expired on creation
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	_, err = repo.SoftDelete(types.TrashFile, f.ID, "user-1")
	require.NoError(t, err)

	count, err := repo.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := repo.ListTrash()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEditRowUpdatesStatus(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	row, err := repo.backend.GetRow("row-1")
	require.NoError(t, err)
	row.Target = "hola"
	row.Status = types.RowStatusTranslated

	require.NoError(t, repo.EditRow(row, "user-1"))

	got, err := repo.backend.GetRow("row-1")
	require.NoError(t, err)
	assert.Equal(t, "hola", got.Target)
	assert.Equal(t, types.RowStatusTranslated, got.Status)
	_ = f
}

func TestRestoreFallsBackToProjectRootWhenFolderGone(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	folder := &types.Folder{ID: "folder-1", Name: "nested", ProjectID: p.ID}
	require.NoError(t, repo.backend.CreateFolder(folder))
	f := &types.File{ID: "file-1", Name: "q.txt", ProjectID: p.ID, FolderID: folder.ID, Format: types.FileFormatTXT}
	require.NoError(t, repo.backend.CreateFile(f))

	item, err := repo.SoftDelete(types.TrashFile, f.ID, "user-1")
	require.NoError(t, err)

	// the original folder disappears while the file sits in trash
	_, err = repo.SoftDelete(types.TrashFolder, folder.ID, "user-1")
	require.NoError(t, err)

	result, err := repo.Restore(item.TrashID, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Relocated)
	assert.Equal(t, p.ID, result.ProjectID)
	assert.Empty(t, result.FolderID)

	got, err := repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FolderID, "file should land at the project root")
}

func TestRestoreProjectWithoutPlatformLandsUnassigned(t *testing.T) {
	repo := newTestRepo(t)
	platform := &types.Platform{ID: "plat-1", Name: "PC"}
	require.NoError(t, repo.backend.CreatePlatform(platform))
	p := &types.Project{ID: "proj-1", Name: "Game", PlatformID: platform.ID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.backend.CreateProject(p))

	item, err := repo.SoftDelete(types.TrashProject, p.ID, "user-1")
	require.NoError(t, err)
	_, err = repo.SoftDelete(types.TrashPlatform, platform.ID, "user-1")
	require.NoError(t, err)

	result, err := repo.Restore(item.TrashID, "user-1")
	require.NoError(t, err)
	assert.True(t, result.Relocated)
	assert.Empty(t, result.PlatformID)

	got, err := repo.backend.GetProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PlatformID)
}

func TestRowCountTracksLiveRows(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	f := seedFile(t, repo, p.ID)

	got, err := repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RowCount)

	require.NoError(t, repo.backend.BulkUpsertRows([]*types.Row{
		{ID: "row-3", FileID: f.ID, Index: 3, Source: "third", Status: types.RowStatusPending},
	}))
	got, err = repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RowCount)

	require.NoError(t, repo.backend.DeleteRowsByFile(f.ID))
	got, err = repo.backend.GetFile(f.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RowCount)
}

func TestListChildrenProject(t *testing.T) {
	repo := newTestRepo(t)
	p := seedProject(t, repo)
	seedFile(t, repo, p.ID)
	folder := &types.Folder{ID: "folder-1", Name: "nested", ProjectID: p.ID}
	require.NoError(t, repo.backend.CreateFolder(folder))

	children, err := repo.ListChildren(types.TrashProject, p.ID)
	require.NoError(t, err)
	assert.Len(t, children.Files, 1)
	assert.Len(t, children.Folders, 1)
}
