/*
Package storage provides bbolt-backed persistence for the LDM hierarchical
data store (platforms, projects, folders, files, rows, TMs, TM entries,
trash, sessions, sync subscriptions, audit events). All data is serialized
as JSON and stored in one bucket per entity; BoltStore is the single
concrete implementation, reused by both the authoritative backend (wrapped
behind Raft apply in pkg/manager) and the local backend (wrapped behind a
single-writer gate in pkg/repository).

# Bucket layout

	platforms, projects, folders, files, rows   (entity ID key)
	tms, tm_index_meta                          (TM ID key)
	tm_entries                                  (tmID/entryID key, prefix-scannable)
	trash                                       (TrashItem ID key)
	sessions, sync_subscriptions                (entity ID key)
	audit                                       (big-endian uint64 sequence key)
	ca                                          (fixed "ca" key, mTLS material)

# Transaction model

Read transactions use db.View (concurrent, MVCC snapshot); writes use
db.Update (serialized, atomic commit with fsync). BulkUpsertRows commits an
entire row batch in a single transaction so a large paste either lands
completely or not at all. AppendAuditEvent assigns Seq from the bucket's
own NextSequence counter — callers never choose a sequence number, which
keeps ListAuditEventsSince a simple forward cursor walk.

# Usage

	store, err := storage.NewBoltStore("/var/lib/ldm/node-1")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.CreateProject(&types.Project{ID: "proj-1", Name: "Checkout UI"})
	rows, err := store.ListRowsByFile("file-1")

# Design Patterns

Upsert pattern: Create and Update share the same underlying Put, so there
is no separate existence check. Idempotent deletes: removing an absent key
is not an error. Filter-in-memory: ListRowsByFile and friends scan the
bucket and filter by field rather than maintaining secondary indexes —
fine at the per-file and per-project scale this store targets; TM entries
are the one bucket laid out as tmID-prefixed keys because TM lookup volume
is higher.

# See Also

  - pkg/repository for the authoritative/local backend split built on Store
  - pkg/manager for the Raft FSM that drives the authoritative backend
  - pkg/types for entity definitions
*/
package storage
