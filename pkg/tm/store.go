package tm

import "github.com/ldmsys/ldm/pkg/types"

// Store is the slice of the hierarchy/TM contract the engine needs. Both
// *manager.Manager (writes routed through Raft) and
// *repository.LocalBackend (writes gated by a single mutex) implement it
// with the identical method set already required by pkg/repository.Backend
// plus the TM-specific methods, so Engine never branches on which backend
// it was built over.
type Store interface {
	CreateTM(tm *types.TM) error
	GetTM(id string) (*types.TM, error)
	ListTMs() ([]*types.TM, error)
	ListTMsByProject(projectID string) ([]*types.TM, error)
	UpdateTM(tm *types.TM) error
	DeleteTM(id string) error

	UpsertTMEntry(e *types.TMEntry) error
	GetTMEntry(tmID, entryID string) (*types.TMEntry, error)
	GetTMEntryByHash(tmID, sourceHash string) (*types.TMEntry, error)
	ListTMEntries(tmID string) ([]*types.TMEntry, error)
	DeleteTMEntry(tmID, entryID string) error

	SaveTMIndexMeta(m *types.TMIndexMeta) error
	GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error)

	GetFile(id string) (*types.File, error)
	ListRowsByFile(fileID string) ([]*types.Row, error)
	BulkUpsertRows(rows []*types.Row) error

	AppendAuditEvent(e *types.AuditEvent) error
}
