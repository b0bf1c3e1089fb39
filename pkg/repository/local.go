package repository

import (
	"sync"

	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
)

// LocalBackend is the single-user offline-sandbox backend: a direct
// BoltStore with no Raft, gated by a single mutex so the sandbox never
// sees concurrent writers stomp each other. Reads bypass the gate, same
// split as the authoritative backend's Raft-write/local-read pattern.
type LocalBackend struct {
	mu    sync.Mutex
	store storage.Store
}

// NewLocalBackend wraps store as a single-writer local Backend, used by
// the offline sandbox platform. The concrete *LocalBackend is returned
// (not the narrower Backend interface) so callers that also need TM or
// sync-subscription access — pkg/tm, pkg/sync — can use the same value
// without a second adapter; it still satisfies Backend for
// repository.New.
func NewLocalBackend(store storage.Store) *LocalBackend {
	return &LocalBackend{store: store}
}

func (b *LocalBackend) CreatePlatform(p *types.Platform) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreatePlatform(p)
}

func (b *LocalBackend) GetPlatform(id string) (*types.Platform, error) { return b.store.GetPlatform(id) }
func (b *LocalBackend) ListPlatforms() ([]*types.Platform, error)      { return b.store.ListPlatforms() }

func (b *LocalBackend) UpdatePlatform(p *types.Platform) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdatePlatform(p)
}

func (b *LocalBackend) DeletePlatform(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeletePlatform(id)
}

func (b *LocalBackend) CreateProject(p *types.Project) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateProject(p)
}

func (b *LocalBackend) GetProject(id string) (*types.Project, error) { return b.store.GetProject(id) }
func (b *LocalBackend) ListProjects() ([]*types.Project, error)      { return b.store.ListProjects() }
func (b *LocalBackend) ListProjectsByPlatform(platformID string) ([]*types.Project, error) {
	return b.store.ListProjectsByPlatform(platformID)
}

func (b *LocalBackend) UpdateProject(p *types.Project) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdateProject(p)
}

func (b *LocalBackend) DeleteProject(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteProject(id)
}

func (b *LocalBackend) CreateFolder(f *types.Folder) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateFolder(f)
}

func (b *LocalBackend) GetFolder(id string) (*types.Folder, error) { return b.store.GetFolder(id) }
func (b *LocalBackend) ListFoldersByProject(projectID string) ([]*types.Folder, error) {
	return b.store.ListFoldersByProject(projectID)
}
func (b *LocalBackend) ListFoldersByParent(parentFolderID string) ([]*types.Folder, error) {
	return b.store.ListFoldersByParent(parentFolderID)
}

func (b *LocalBackend) UpdateFolder(f *types.Folder) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdateFolder(f)
}

func (b *LocalBackend) DeleteFolder(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteFolder(id)
}

func (b *LocalBackend) CreateFile(f *types.File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateFile(f)
}

func (b *LocalBackend) GetFile(id string) (*types.File, error) { return b.store.GetFile(id) }
func (b *LocalBackend) ListFilesByProject(projectID string) ([]*types.File, error) {
	return b.store.ListFilesByProject(projectID)
}
func (b *LocalBackend) ListFilesByFolder(folderID string) ([]*types.File, error) {
	return b.store.ListFilesByFolder(folderID)
}

func (b *LocalBackend) UpdateFile(f *types.File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdateFile(f)
}

func (b *LocalBackend) DeleteFile(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteFile(id)
}

func (b *LocalBackend) GetRow(id string) (*types.Row, error) { return b.store.GetRow(id) }
func (b *LocalBackend) ListRowsByFile(fileID string) ([]*types.Row, error) {
	return b.store.ListRowsByFile(fileID)
}

func (b *LocalBackend) BulkUpsertRows(rows []*types.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.BulkUpsertRows(rows)
}

func (b *LocalBackend) DeleteRowsByFile(fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteRowsByFile(fileID)
}

func (b *LocalBackend) CreateTrashItem(t *types.TrashItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateTrashItem(t)
}

func (b *LocalBackend) GetTrashItem(id string) (*types.TrashItem, error) {
	return b.store.GetTrashItem(id)
}
func (b *LocalBackend) ListTrash() ([]*types.TrashItem, error) { return b.store.ListTrash() }
func (b *LocalBackend) ListTrashExpiredBefore(ts int64) ([]*types.TrashItem, error) {
	return b.store.ListTrashExpiredBefore(ts)
}

func (b *LocalBackend) DeleteTrashItem(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteTrashItem(id)
}

func (b *LocalBackend) AppendAuditEvent(e *types.AuditEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.AppendAuditEvent(e)
}

// HierarchyCounts implements metrics.Source for the local/offline-sandbox
// backend, mirroring *manager.Manager's implementation but reading the
// store directly since there's no Raft layer to ask instead.
func (b *LocalBackend) HierarchyCounts() (metrics.HierarchyCounts, error) {
	platforms, err := b.store.ListPlatforms()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}
	projects, err := b.store.ListProjects()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}

	counts := metrics.HierarchyCounts{
		Platforms: len(platforms),
		Projects:  len(projects),
		Files:     make(map[types.FileFormat]int),
		Rows:      make(map[types.RowStatus]int),
		Trash:     make(map[types.TrashItemType]int),
	}

	for _, p := range projects {
		files, err := b.store.ListFilesByProject(p.ID)
		if err != nil {
			return metrics.HierarchyCounts{}, err
		}
		for _, f := range files {
			counts.Files[f.Format]++
			rows, err := b.store.ListRowsByFile(f.ID)
			if err != nil {
				return metrics.HierarchyCounts{}, err
			}
			for _, r := range rows {
				counts.Rows[r.Status]++
			}
		}
	}

	trash, err := b.store.ListTrash()
	if err != nil {
		return metrics.HierarchyCounts{}, err
	}
	for _, t := range trash {
		counts.Trash[t.ItemType]++
	}

	return counts, nil
}

// RaftStats implements metrics.Source with an always-false "leader" stat:
// the local backend has no Raft cluster to report on.
func (b *LocalBackend) RaftStats() (*metrics.RaftStats, bool) {
	return nil, false
}

// The methods below extend *LocalBackend beyond the Backend interface so
// it can stand in for *manager.Manager wherever pkg/tm.Store or
// pkg/sync.Store is required — same single-writer-gate-on-writes,
// direct-read pattern as the hierarchy methods above.

func (b *LocalBackend) CreateTM(tm *types.TM) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateTM(tm)
}

func (b *LocalBackend) GetTM(id string) (*types.TM, error) { return b.store.GetTM(id) }
func (b *LocalBackend) ListTMs() ([]*types.TM, error)       { return b.store.ListTMs() }
func (b *LocalBackend) ListTMsByProject(projectID string) ([]*types.TM, error) {
	return b.store.ListTMsByProject(projectID)
}

func (b *LocalBackend) UpdateTM(tm *types.TM) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdateTM(tm)
}

func (b *LocalBackend) DeleteTM(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteTM(id)
}

func (b *LocalBackend) UpsertTMEntry(e *types.TMEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpsertTMEntry(e)
}

func (b *LocalBackend) GetTMEntry(tmID, entryID string) (*types.TMEntry, error) {
	return b.store.GetTMEntry(tmID, entryID)
}

func (b *LocalBackend) GetTMEntryByHash(tmID, sourceHash string) (*types.TMEntry, error) {
	return b.store.GetTMEntryByHash(tmID, sourceHash)
}

func (b *LocalBackend) ListTMEntries(tmID string) ([]*types.TMEntry, error) {
	return b.store.ListTMEntries(tmID)
}

func (b *LocalBackend) DeleteTMEntry(tmID, entryID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteTMEntry(tmID, entryID)
}

func (b *LocalBackend) SaveTMIndexMeta(m *types.TMIndexMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.SaveTMIndexMeta(m)
}

func (b *LocalBackend) GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error) {
	return b.store.GetTMIndexMeta(tmID)
}

func (b *LocalBackend) CreateSyncSubscription(s *types.SyncSubscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.CreateSyncSubscription(s)
}

func (b *LocalBackend) GetSyncSubscription(id string) (*types.SyncSubscription, error) {
	return b.store.GetSyncSubscription(id)
}

func (b *LocalBackend) ListSyncSubscriptionsByUser(userID string) ([]*types.SyncSubscription, error) {
	return b.store.ListSyncSubscriptionsByUser(userID)
}

func (b *LocalBackend) UpdateSyncSubscription(s *types.SyncSubscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.UpdateSyncSubscription(s)
}

func (b *LocalBackend) DeleteSyncSubscription(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.DeleteSyncSubscription(id)
}

func (b *LocalBackend) ListAuditEventsSince(seq uint64, limit int) ([]*types.AuditEvent, error) {
	return b.store.ListAuditEventsSince(seq, limit)
}
