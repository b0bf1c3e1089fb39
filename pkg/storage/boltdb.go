package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ldmsys/ldm/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPlatforms    = []byte("platforms")
	bucketProjects     = []byte("projects")
	bucketFolders      = []byte("folders")
	bucketFiles        = []byte("files")
	bucketRows         = []byte("rows")
	bucketTMs          = []byte("tms")
	bucketTMEntries    = []byte("tm_entries")
	bucketTMIndexMeta  = []byte("tm_index_meta")
	bucketTrash        = []byte("trash")
	bucketSessions     = []byte("sessions")
	bucketSyncSubs     = []byte("sync_subscriptions")
	bucketAudit        = []byte("audit")
	bucketCA           = []byte("ca")
	bucketOperations   = []byte("operations")
)

// BoltStore implements Store using an embedded bbolt database with one
// bucket per entity, JSON-marshaled values keyed by entity id.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ldm.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketPlatforms, bucketProjects, bucketFolders, bucketFiles,
			bucketRows, bucketTMs, bucketTMEntries, bucketTMIndexMeta,
			bucketTrash, bucketSessions, bucketSyncSubs, bucketAudit,
			bucketCA, bucketOperations,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	b := tx.Bucket(bucket)
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// --- Platforms ---

func (s *BoltStore) CreatePlatform(p *types.Platform) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketPlatforms, p.ID, p)
	})
}

func (s *BoltStore) GetPlatform(id string) (*types.Platform, error) {
	var p types.Platform
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPlatforms).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("platform not found: %s", id)
		}
		return json.Unmarshal(data, &p)
	})
	return &p, err
}

func (s *BoltStore) ListPlatforms() ([]*types.Platform, error) {
	var out []*types.Platform
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlatforms).ForEach(func(k, v []byte) error {
			var p types.Platform
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdatePlatform(p *types.Platform) error { return s.CreatePlatform(p) }

func (s *BoltStore) DeletePlatform(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlatforms).Delete([]byte(id))
	})
}

// --- Projects ---

func (s *BoltStore) CreateProject(p *types.Project) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketProjects, p.ID, p)
	})
}

func (s *BoltStore) GetProject(id string) (*types.Project, error) {
	var p types.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProjects).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("project not found: %s", id)
		}
		return json.Unmarshal(data, &p)
	})
	return &p, err
}

func (s *BoltStore) ListProjects() ([]*types.Project, error) {
	var out []*types.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProjects).ForEach(func(k, v []byte) error {
			var p types.Project
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListProjectsByPlatform(platformID string) ([]*types.Project, error) {
	all, err := s.ListProjects()
	if err != nil {
		return nil, err
	}
	var out []*types.Project
	for _, p := range all {
		if p.PlatformID == platformID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateProject(p *types.Project) error { return s.CreateProject(p) }

func (s *BoltStore) DeleteProject(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProjects).Delete([]byte(id))
	})
}

// --- Folders ---

func (s *BoltStore) CreateFolder(f *types.Folder) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketFolders, f.ID, f)
	})
}

func (s *BoltStore) GetFolder(id string) (*types.Folder, error) {
	var f types.Folder
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFolders).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("folder not found: %s", id)
		}
		return json.Unmarshal(data, &f)
	})
	return &f, err
}

func (s *BoltStore) listFolders() ([]*types.Folder, error) {
	var out []*types.Folder
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFolders).ForEach(func(k, v []byte) error {
			var f types.Folder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			out = append(out, &f)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListFoldersByProject(projectID string) ([]*types.Folder, error) {
	all, err := s.listFolders()
	if err != nil {
		return nil, err
	}
	var out []*types.Folder
	for _, f := range all {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *BoltStore) ListFoldersByParent(parentFolderID string) ([]*types.Folder, error) {
	all, err := s.listFolders()
	if err != nil {
		return nil, err
	}
	var out []*types.Folder
	for _, f := range all {
		if f.ParentFolderID == parentFolderID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateFolder(f *types.Folder) error { return s.CreateFolder(f) }

func (s *BoltStore) DeleteFolder(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFolders).Delete([]byte(id))
	})
}

// --- Files ---

func (s *BoltStore) CreateFile(f *types.File) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketFiles, f.ID, f)
	})
}

func (s *BoltStore) GetFile(id string) (*types.File, error) {
	var f types.File
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("file not found: %s", id)
		}
		return json.Unmarshal(data, &f)
	})
	return &f, err
}

func (s *BoltStore) listFiles() ([]*types.File, error) {
	var out []*types.File
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var f types.File
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			out = append(out, &f)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListFilesByProject(projectID string) ([]*types.File, error) {
	all, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	var out []*types.File
	for _, f := range all {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *BoltStore) ListFilesByFolder(folderID string) ([]*types.File, error) {
	all, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	var out []*types.File
	for _, f := range all {
		if f.FolderID == folderID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateFile(f *types.File) error { return s.CreateFile(f) }

func (s *BoltStore) DeleteFile(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).Delete([]byte(id))
	})
}

// --- Rows ---

func (s *BoltStore) CreateRow(r *types.Row) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := bumpAndPutRow(tx, r); err != nil {
			return err
		}
		return refreshRowCounts(tx, map[string]bool{r.FileID: true})
	})
}

// bumpAndPutRow increments r.Version past whatever is currently stored
// (0 if this is a new row) and stamps UpdatedAt, so every write — create
// or edit — is independently observable as a delta.
func bumpAndPutRow(tx *bolt.Tx, r *types.Row) error {
	b := tx.Bucket(bucketRows)
	var existing types.Row
	if data := b.Get([]byte(r.ID)); data != nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return err
		}
	}
	r.Version = existing.Version + 1
	r.UpdatedAt = time.Now()
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.Put([]byte(r.ID), data)
}

func (s *BoltStore) GetRow(id string) (*types.Row, error) {
	var r types.Row
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRows).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("row not found: %s", id)
		}
		return json.Unmarshal(data, &r)
	})
	return &r, err
}

func (s *BoltStore) ListRowsByFile(fileID string) ([]*types.Row, error) {
	var out []*types.Row
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRows).ForEach(func(k, v []byte) error {
			var r types.Row
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.FileID == fileID {
				out = append(out, &r)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateRow(r *types.Row) error { return s.CreateRow(r) }

// BulkUpsertRows writes every row in a single transaction so a large paste
// either lands completely or not at all. The owning files' RowCount is
// re-derived in the same transaction, keeping row_count equal to the live
// row total at every commit point.
func (s *BoltStore) BulkUpsertRows(rows []*types.Row) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		touched := make(map[string]bool)
		for _, r := range rows {
			if err := bumpAndPutRow(tx, r); err != nil {
				return err
			}
			touched[r.FileID] = true
		}
		return refreshRowCounts(tx, touched)
	})
}

// refreshRowCounts recounts the live rows of every file in fileIDs and
// persists the new RowCount, inside the caller's transaction. A file id
// with no stored file record is skipped: during a trash restore rows can
// land in the same transaction batch before their file does.
func refreshRowCounts(tx *bolt.Tx, fileIDs map[string]bool) error {
	if len(fileIDs) == 0 {
		return nil
	}
	counts := make(map[string]int, len(fileIDs))
	err := tx.Bucket(bucketRows).ForEach(func(k, v []byte) error {
		var r types.Row
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		if fileIDs[r.FileID] {
			counts[r.FileID]++
		}
		return nil
	})
	if err != nil {
		return err
	}

	files := tx.Bucket(bucketFiles)
	for id := range fileIDs {
		data := files.Get([]byte(id))
		if data == nil {
			continue
		}
		var f types.File
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f.RowCount == counts[id] {
			continue
		}
		f.RowCount = counts[id]
		f.UpdatedAt = time.Now()
		out, err := json.Marshal(&f)
		if err != nil {
			return err
		}
		if err := files.Put([]byte(id), out); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) DeleteRowsByFile(fileID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)
		var toDelete [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var r types.Row
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.FileID == fileID {
				key := make([]byte, len(k))
				copy(key, k)
				toDelete = append(toDelete, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return refreshRowCounts(tx, map[string]bool{fileID: true})
	})
}

// --- Translation memories ---

func (s *BoltStore) CreateTM(tm *types.TM) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTMs, tm.ID, tm)
	})
}

func (s *BoltStore) GetTM(id string) (*types.TM, error) {
	var tm types.TM
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTMs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("tm not found: %s", id)
		}
		return json.Unmarshal(data, &tm)
	})
	return &tm, err
}

func (s *BoltStore) ListTMs() ([]*types.TM, error) {
	var out []*types.TM
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTMs).ForEach(func(k, v []byte) error {
			var tm types.TM
			if err := json.Unmarshal(v, &tm); err != nil {
				return err
			}
			out = append(out, &tm)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListTMsByProject(projectID string) ([]*types.TM, error) {
	all, err := s.ListTMs()
	if err != nil {
		return nil, err
	}
	var out []*types.TM
	for _, tm := range all {
		if tm.ProjectID == projectID {
			out = append(out, tm)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateTM(tm *types.TM) error { return s.CreateTM(tm) }

func (s *BoltStore) DeleteTM(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTMs).Delete([]byte(id))
	})
}

// --- TM entries ---
//
// Keys are "<tmID>/<entryID>" so ListTMEntries can use a prefix scan instead
// of a full-bucket filter once a TM grows large.

func tmEntryKey(tmID, entryID string) []byte {
	return []byte(tmID + "/" + entryID)
}

func (s *BoltStore) UpsertTMEntry(e *types.TMEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTMEntries)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(tmEntryKey(e.TMID, e.EntryID), data)
	})
}

func (s *BoltStore) GetTMEntry(tmID, entryID string) (*types.TMEntry, error) {
	var e types.TMEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTMEntries).Get(tmEntryKey(tmID, entryID))
		if data == nil {
			return fmt.Errorf("tm entry not found: %s/%s", tmID, entryID)
		}
		return json.Unmarshal(data, &e)
	})
	return &e, err
}

func (s *BoltStore) GetTMEntryByHash(tmID, sourceHash string) (*types.TMEntry, error) {
	var found *types.TMEntry
	prefix := []byte(tmID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTMEntries).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var e types.TMEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.SourceHash == sourceHash {
				found = &e
				return nil
			}
		}
		return nil
	})
	if err == nil && found == nil {
		return nil, fmt.Errorf("tm entry not found for hash: %s", sourceHash)
	}
	return found, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *BoltStore) ListTMEntries(tmID string) ([]*types.TMEntry, error) {
	var out []*types.TMEntry
	prefix := []byte(tmID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTMEntries).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var e types.TMEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) DeleteTMEntry(tmID, entryID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTMEntries).Delete(tmEntryKey(tmID, entryID))
	})
}

// --- TM index metadata ---

func (s *BoltStore) SaveTMIndexMeta(m *types.TMIndexMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTMIndexMeta, m.TMID, m)
	})
}

func (s *BoltStore) GetTMIndexMeta(tmID string) (*types.TMIndexMeta, error) {
	var m types.TMIndexMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTMIndexMeta).Get([]byte(tmID))
		if data == nil {
			return fmt.Errorf("tm index meta not found: %s", tmID)
		}
		return json.Unmarshal(data, &m)
	})
	return &m, err
}

// --- Trash ---

func (s *BoltStore) CreateTrashItem(t *types.TrashItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTrash, t.TrashID, t)
	})
}

func (s *BoltStore) GetTrashItem(id string) (*types.TrashItem, error) {
	var t types.TrashItem
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTrash).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("trash item not found: %s", id)
		}
		return json.Unmarshal(data, &t)
	})
	return &t, err
}

func (s *BoltStore) ListTrash() ([]*types.TrashItem, error) {
	var out []*types.TrashItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrash).ForEach(func(k, v []byte) error {
			var t types.TrashItem
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			out = append(out, &t)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListTrashExpiredBefore(ts int64) ([]*types.TrashItem, error) {
	all, err := s.ListTrash()
	if err != nil {
		return nil, err
	}
	var out []*types.TrashItem
	for _, t := range all {
		if t.ExpiresAt.Unix() <= ts {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *BoltStore) DeleteTrashItem(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTrash).Delete([]byte(id))
	})
}

// --- Sessions ---

func (s *BoltStore) SaveSession(sess *types.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketSessions, sess.SessionID, sess)
	})
}

func (s *BoltStore) GetSession(id string) (*types.Session, error) {
	var sess types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		return json.Unmarshal(data, &sess)
	})
	return &sess, err
}

func (s *BoltStore) DeleteSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
}

// --- Operations ---
//
// Scheduler job records, local to the node that ran them; not part of the
// replicated hierarchy and never go through Raft.

func (s *BoltStore) SaveOperation(op *types.Operation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketOperations, op.OpID, op)
	})
}

func (s *BoltStore) GetOperation(opID string) (*types.Operation, error) {
	var op types.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOperations).Get([]byte(opID))
		if data == nil {
			return fmt.Errorf("operation not found: %s", opID)
		}
		return json.Unmarshal(data, &op)
	})
	return &op, err
}

func (s *BoltStore) ListOperationsByUser(userID string) ([]*types.Operation, error) {
	var out []*types.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(k, v []byte) error {
			var op types.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			if op.UserID == userID {
				out = append(out, &op)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListOperationsCompletedBefore(ts time.Time) ([]*types.Operation, error) {
	var out []*types.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(k, v []byte) error {
			var op types.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			if !op.CompletedAt.IsZero() && op.CompletedAt.Before(ts) {
				out = append(out, &op)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteOperation(opID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).Delete([]byte(opID))
	})
}

// --- Sync subscriptions ---

func (s *BoltStore) CreateSyncSubscription(sub *types.SyncSubscription) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketSyncSubs, sub.SubscriptionID, sub)
	})
}

func (s *BoltStore) GetSyncSubscription(id string) (*types.SyncSubscription, error) {
	var sub types.SyncSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSyncSubs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("sync subscription not found: %s", id)
		}
		return json.Unmarshal(data, &sub)
	})
	return &sub, err
}

func (s *BoltStore) ListSyncSubscriptionsByUser(userID string) ([]*types.SyncSubscription, error) {
	var out []*types.SyncSubscription
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncSubs).ForEach(func(k, v []byte) error {
			var sub types.SyncSubscription
			if err := json.Unmarshal(v, &sub); err != nil {
				return err
			}
			if sub.UserID == userID {
				out = append(out, &sub)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateSyncSubscription(sub *types.SyncSubscription) error {
	return s.CreateSyncSubscription(sub)
}

func (s *BoltStore) DeleteSyncSubscription(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncSubs).Delete([]byte(id))
	})
}

// --- Audit ---
//
// Keys are big-endian uint64 sequence numbers so ForEach/Seek walk them in
// order; Seq is assigned from the bucket's own counter, never by the caller.

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *BoltStore) AppendAuditEvent(e *types.AuditEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.Seq = seq
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

func (s *BoltStore) ListAuditEventsSince(seq uint64, limit int) ([]*types.AuditEvent, error) {
	var out []*types.AuditEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Seek(seqKey(seq + 1)); k != nil; k, v = c.Next() {
			var e types.AuditEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// --- Certificate authority ---

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte("ca"), data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get([]byte("ca"))
		if v == nil {
			return fmt.Errorf("CA not found")
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	return data, err
}
