package sync

import "github.com/ldmsys/ldm/pkg/types"

// Store is the hierarchy- and TM-read/write surface Engine needs from
// whichever concrete backend sits on a side of a sync flow. Both
// *manager.Manager and *repository.LocalBackend satisfy it identically,
// so Engine never branches on which side of a pull/push it is reading
// from or writing to.
type Store interface {
	GetPlatform(id string) (*types.Platform, error)
	ListPlatforms() ([]*types.Platform, error)
	CreatePlatform(p *types.Platform) error
	UpdatePlatform(p *types.Platform) error

	GetProject(id string) (*types.Project, error)
	ListProjects() ([]*types.Project, error)
	ListProjectsByPlatform(platformID string) ([]*types.Project, error)
	CreateProject(p *types.Project) error
	UpdateProject(p *types.Project) error

	GetFolder(id string) (*types.Folder, error)
	ListFoldersByProject(projectID string) ([]*types.Folder, error)
	ListFoldersByParent(parentID string) ([]*types.Folder, error)
	CreateFolder(f *types.Folder) error
	UpdateFolder(f *types.Folder) error

	GetFile(id string) (*types.File, error)
	ListFilesByProject(projectID string) ([]*types.File, error)
	ListFilesByFolder(folderID string) ([]*types.File, error)
	CreateFile(f *types.File) error
	UpdateFile(f *types.File) error

	GetRow(id string) (*types.Row, error)
	ListRowsByFile(fileID string) ([]*types.Row, error)
	BulkUpsertRows(rows []*types.Row) error
	DeleteRowsByFile(fileID string) error

	GetTM(id string) (*types.TM, error)
	ListTMs() ([]*types.TM, error)
	ListTMsByProject(projectID string) ([]*types.TM, error)
	CreateTM(tm *types.TM) error
	UpdateTM(tm *types.TM) error
	GetTMEntry(tmID, entryID string) (*types.TMEntry, error)
	GetTMEntryByHash(tmID, hash string) (*types.TMEntry, error)
	ListTMEntries(tmID string) ([]*types.TMEntry, error)
	UpsertTMEntry(e *types.TMEntry) error
	GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error)
	SaveTMIndexMeta(meta *types.TMIndexMeta) error

	GetTrashItem(id string) (*types.TrashItem, error)
	ListTrash() ([]*types.TrashItem, error)
	CreateTrashItem(t *types.TrashItem) error
	DeleteTrashItem(id string) error

	CreateSyncSubscription(s *types.SyncSubscription) error
	GetSyncSubscription(id string) (*types.SyncSubscription, error)
	ListSyncSubscriptionsByUser(userID string) ([]*types.SyncSubscription, error)
	UpdateSyncSubscription(s *types.SyncSubscription) error
	DeleteSyncSubscription(id string) error

	AppendAuditEvent(e *types.AuditEvent) error
}
