/*
Package repository implements the hierarchy operations shared by both
server backends: list_children, create, rename, move, move_cross_project,
copy, soft_delete, restore, purge, purge_expired, edit_row,
bulk_upsert_rows and list_trash.

# Backends

Backend abstracts over where writes actually land:

  - authoritative: *manager.Manager, writes replicated through Raft,
    reads served from the local store (see pkg/manager)
  - local: a direct BoltStore behind a single-writer mutex, used by the
    offline sandbox platform (see LocalBackend in local.go)

Repository itself never branches on which Backend it holds — every
higher-level operation (Rename, Move, SoftDelete, Restore, ...) is
implemented once against the Backend interface and works identically
either way.

# Usage

	backend := repository.NewAuthoritativeBackend(mgr)
	repo := repository.New(backend, 30*24*time.Hour)

	item, err := repo.SoftDelete(types.TrashFile, fileID, principal.UserID)
	...
	result, err := repo.Restore(item.TrashID, principal.UserID)

# Trash

SoftDelete snapshots an entity (and, for projects/folders, its whole
subtree) into a TrashItem's Payload before deleting it live, so Restore
never has to re-derive structure from elsewhere. PurgeExpired is meant to
run on a periodic sweep, not the request path.

# See Also

  - pkg/manager for the authoritative backend
  - pkg/storage for the underlying BoltStore both backends share
  - pkg/scheduler for running BulkUpsertRows as a cancellable Operation
*/
package repository
