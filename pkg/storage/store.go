package storage

import (
	"time"

	"github.com/ldmsys/ldm/pkg/types"
)

// Store defines the interface for LDM hierarchical data persistence. It is
// implemented once (BoltStore) and reused by both the authoritative backend
// (wrapped behind Raft apply) and the local backend (wrapped behind a
// single-writer gate) — see pkg/repository. Callers of Store itself never
// see a backend distinction; that split happens one layer up.
type Store interface {
	// Platforms
	CreatePlatform(p *types.Platform) error
	GetPlatform(id string) (*types.Platform, error)
	ListPlatforms() ([]*types.Platform, error)
	UpdatePlatform(p *types.Platform) error
	DeletePlatform(id string) error

	// Projects
	CreateProject(p *types.Project) error
	GetProject(id string) (*types.Project, error)
	ListProjects() ([]*types.Project, error)
	ListProjectsByPlatform(platformID string) ([]*types.Project, error)
	UpdateProject(p *types.Project) error
	DeleteProject(id string) error

	// Folders
	CreateFolder(f *types.Folder) error
	GetFolder(id string) (*types.Folder, error)
	ListFoldersByProject(projectID string) ([]*types.Folder, error)
	ListFoldersByParent(parentFolderID string) ([]*types.Folder, error)
	UpdateFolder(f *types.Folder) error
	DeleteFolder(id string) error

	// Files
	CreateFile(f *types.File) error
	GetFile(id string) (*types.File, error)
	ListFilesByProject(projectID string) ([]*types.File, error)
	ListFilesByFolder(folderID string) ([]*types.File, error)
	UpdateFile(f *types.File) error
	DeleteFile(id string) error

	// Rows
	CreateRow(r *types.Row) error
	GetRow(id string) (*types.Row, error)
	ListRowsByFile(fileID string) ([]*types.Row, error)
	UpdateRow(r *types.Row) error
	BulkUpsertRows(rows []*types.Row) error
	DeleteRowsByFile(fileID string) error

	// Translation memories
	CreateTM(tm *types.TM) error
	GetTM(id string) (*types.TM, error)
	ListTMs() ([]*types.TM, error)
	ListTMsByProject(projectID string) ([]*types.TM, error)
	UpdateTM(tm *types.TM) error
	DeleteTM(id string) error

	// TM entries
	UpsertTMEntry(e *types.TMEntry) error
	GetTMEntry(tmID, entryID string) (*types.TMEntry, error)
	GetTMEntryByHash(tmID, sourceHash string) (*types.TMEntry, error)
	ListTMEntries(tmID string) ([]*types.TMEntry, error)
	DeleteTMEntry(tmID, entryID string) error

	// TM index metadata
	SaveTMIndexMeta(m *types.TMIndexMeta) error
	GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error)

	// Trash
	CreateTrashItem(t *types.TrashItem) error
	GetTrashItem(id string) (*types.TrashItem, error)
	ListTrash() ([]*types.TrashItem, error)
	ListTrashExpiredBefore(ts int64) ([]*types.TrashItem, error)
	DeleteTrashItem(id string) error

	// Sessions
	SaveSession(s *types.Session) error
	GetSession(id string) (*types.Session, error)
	DeleteSession(id string) error

	// Operations (scheduler job records; local bookkeeping, not part of the
	// replicated hierarchy)
	SaveOperation(op *types.Operation) error
	GetOperation(opID string) (*types.Operation, error)
	ListOperationsByUser(userID string) ([]*types.Operation, error)
	ListOperationsCompletedBefore(ts time.Time) ([]*types.Operation, error)
	DeleteOperation(opID string) error

	// Sync subscriptions
	CreateSyncSubscription(s *types.SyncSubscription) error
	GetSyncSubscription(id string) (*types.SyncSubscription, error)
	ListSyncSubscriptionsByUser(userID string) ([]*types.SyncSubscription, error)
	UpdateSyncSubscription(s *types.SyncSubscription) error
	DeleteSyncSubscription(id string) error

	// Audit (append-only; Seq is assigned by the store, never by the caller)
	AppendAuditEvent(e *types.AuditEvent) error
	ListAuditEventsSince(seq uint64, limit int) ([]*types.AuditEvent, error)

	// Certificate authority (mTLS between Raft peers)
	SaveCA(data []byte) error
	GetCA() ([]byte, error)

	// Utility
	Close() error
}
