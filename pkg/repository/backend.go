package repository

import "github.com/ldmsys/ldm/pkg/types"

// Backend is the uniform hierarchy contract the Repository drives. It is
// satisfied two ways: the authoritative backend routes writes through Raft
// (see *manager.Manager, which implements this interface directly) and the
// local backend writes straight to a BoltStore behind a single-writer gate
// (see LocalBackend). Repository callers never branch on which one they
// have.
type Backend interface {
	CreatePlatform(p *types.Platform) error
	GetPlatform(id string) (*types.Platform, error)
	ListPlatforms() ([]*types.Platform, error)
	UpdatePlatform(p *types.Platform) error
	DeletePlatform(id string) error

	CreateProject(p *types.Project) error
	GetProject(id string) (*types.Project, error)
	ListProjects() ([]*types.Project, error)
	ListProjectsByPlatform(platformID string) ([]*types.Project, error)
	UpdateProject(p *types.Project) error
	DeleteProject(id string) error

	CreateFolder(f *types.Folder) error
	GetFolder(id string) (*types.Folder, error)
	ListFoldersByProject(projectID string) ([]*types.Folder, error)
	ListFoldersByParent(parentFolderID string) ([]*types.Folder, error)
	UpdateFolder(f *types.Folder) error
	DeleteFolder(id string) error

	CreateFile(f *types.File) error
	GetFile(id string) (*types.File, error)
	ListFilesByProject(projectID string) ([]*types.File, error)
	ListFilesByFolder(folderID string) ([]*types.File, error)
	UpdateFile(f *types.File) error
	DeleteFile(id string) error

	GetRow(id string) (*types.Row, error)
	ListRowsByFile(fileID string) ([]*types.Row, error)
	BulkUpsertRows(rows []*types.Row) error
	DeleteRowsByFile(fileID string) error

	// TM access is part of the contract because copying a project
	// duplicates its TMs and their entries along with the row subtree.
	CreateTM(tm *types.TM) error
	ListTMsByProject(projectID string) ([]*types.TM, error)
	ListTMEntries(tmID string) ([]*types.TMEntry, error)
	UpsertTMEntry(e *types.TMEntry) error

	CreateTrashItem(t *types.TrashItem) error
	GetTrashItem(id string) (*types.TrashItem, error)
	ListTrash() ([]*types.TrashItem, error)
	ListTrashExpiredBefore(ts int64) ([]*types.TrashItem, error)
	DeleteTrashItem(id string) error

	AppendAuditEvent(e *types.AuditEvent) error
}
