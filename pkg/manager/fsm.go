package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/hashicorp/raft"
)

// FSM implements the Raft finite state machine for the authoritative LDM
// backend. It applies committed log entries to the underlying store and
// handles snapshot/restore for log compaction.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewFSM creates a new FSM instance.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Command represents a hierarchy mutation in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Command ops. These are the only hierarchy mutations that go through
// Raft; reads bypass Apply entirely and hit the store directly.
const (
	OpCreatePlatform = "create_platform"
	OpUpdatePlatform = "update_platform"
	OpDeletePlatform = "delete_platform"

	OpCreateProject = "create_project"
	OpUpdateProject = "update_project"
	OpDeleteProject = "delete_project"

	OpCreateFolder = "create_folder"
	OpUpdateFolder = "update_folder"
	OpDeleteFolder = "delete_folder"

	OpCreateFile = "create_file"
	OpUpdateFile = "update_file"
	OpDeleteFile = "delete_file"

	OpBulkUpsertRows  = "bulk_upsert_rows"
	OpDeleteRowsByFile = "delete_rows_by_file"

	OpCreateTM = "create_tm"
	OpUpdateTM = "update_tm"
	OpDeleteTM = "delete_tm"

	OpUpsertTMEntry    = "upsert_tm_entry"
	OpDeleteTMEntry    = "delete_tm_entry"
	OpSaveTMIndexMeta  = "save_tm_index_meta"

	OpCreateTrashItem = "create_trash_item"
	OpDeleteTrashItem = "delete_trash_item"

	OpCreateSyncSubscription = "create_sync_subscription"
	OpUpdateSyncSubscription = "update_sync_subscription"
	OpDeleteSyncSubscription = "delete_sync_subscription"

	OpAppendAuditEvent = "append_audit_event"
)

type deleteRowsByFilePayload struct {
	FileID string `json:"file_id"`
}

type tmEntryKeyPayload struct {
	TMID    string `json:"tm_id"`
	EntryID string `json:"entry_id"`
}

// Apply applies a Raft log entry to the FSM. Called by Raft once a log
// entry is committed to a quorum.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpCreatePlatform, OpUpdatePlatform:
		var p types.Platform
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		if cmd.Op == OpCreatePlatform {
			return f.store.CreatePlatform(&p)
		}
		return f.store.UpdatePlatform(&p)

	case OpDeletePlatform:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeletePlatform(id)

	case OpCreateProject, OpUpdateProject:
		var p types.Project
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		if cmd.Op == OpCreateProject {
			return f.store.CreateProject(&p)
		}
		return f.store.UpdateProject(&p)

	case OpDeleteProject:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteProject(id)

	case OpCreateFolder, OpUpdateFolder:
		var fo types.Folder
		if err := json.Unmarshal(cmd.Data, &fo); err != nil {
			return err
		}
		if cmd.Op == OpCreateFolder {
			return f.store.CreateFolder(&fo)
		}
		return f.store.UpdateFolder(&fo)

	case OpDeleteFolder:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteFolder(id)

	case OpCreateFile, OpUpdateFile:
		var file types.File
		if err := json.Unmarshal(cmd.Data, &file); err != nil {
			return err
		}
		if cmd.Op == OpCreateFile {
			return f.store.CreateFile(&file)
		}
		return f.store.UpdateFile(&file)

	case OpDeleteFile:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteFile(id)

	case OpBulkUpsertRows:
		var rows []*types.Row
		if err := json.Unmarshal(cmd.Data, &rows); err != nil {
			return err
		}
		return f.store.BulkUpsertRows(rows)

	case OpDeleteRowsByFile:
		var payload deleteRowsByFilePayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.store.DeleteRowsByFile(payload.FileID)

	case OpCreateTM, OpUpdateTM:
		var tm types.TM
		if err := json.Unmarshal(cmd.Data, &tm); err != nil {
			return err
		}
		if cmd.Op == OpCreateTM {
			return f.store.CreateTM(&tm)
		}
		return f.store.UpdateTM(&tm)

	case OpDeleteTM:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteTM(id)

	case OpUpsertTMEntry:
		var e types.TMEntry
		if err := json.Unmarshal(cmd.Data, &e); err != nil {
			return err
		}
		return f.store.UpsertTMEntry(&e)

	case OpDeleteTMEntry:
		var payload tmEntryKeyPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.store.DeleteTMEntry(payload.TMID, payload.EntryID)

	case OpSaveTMIndexMeta:
		var m types.TMIndexMeta
		if err := json.Unmarshal(cmd.Data, &m); err != nil {
			return err
		}
		return f.store.SaveTMIndexMeta(&m)

	case OpCreateTrashItem:
		var t types.TrashItem
		if err := json.Unmarshal(cmd.Data, &t); err != nil {
			return err
		}
		return f.store.CreateTrashItem(&t)

	case OpDeleteTrashItem:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteTrashItem(id)

	case OpCreateSyncSubscription, OpUpdateSyncSubscription:
		var sub types.SyncSubscription
		if err := json.Unmarshal(cmd.Data, &sub); err != nil {
			return err
		}
		if cmd.Op == OpCreateSyncSubscription {
			return f.store.CreateSyncSubscription(&sub)
		}
		return f.store.UpdateSyncSubscription(&sub)

	case OpDeleteSyncSubscription:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteSyncSubscription(id)

	case OpAppendAuditEvent:
		var e types.AuditEvent
		if err := json.Unmarshal(cmd.Data, &e); err != nil {
			return err
		}
		return f.store.AppendAuditEvent(&e)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot creates a point-in-time snapshot of the FSM for Raft log
// compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	platforms, err := f.store.ListPlatforms()
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	projects, err := f.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	var folders []*types.Folder
	var files []*types.File
	var rows []*types.Row
	for _, p := range projects {
		pf, err := f.store.ListFoldersByProject(p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list folders: %w", err)
		}
		folders = append(folders, pf...)

		files2, err := f.store.ListFilesByProject(p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		files = append(files, files2...)
		for _, file := range files2 {
			fr, err := f.store.ListRowsByFile(file.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list rows: %w", err)
			}
			rows = append(rows, fr...)
		}
	}

	tms, err := f.store.ListTMs()
	if err != nil {
		return nil, fmt.Errorf("failed to list tms: %w", err)
	}
	var entries []*types.TMEntry
	for _, tm := range tms {
		te, err := f.store.ListTMEntries(tm.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tm entries: %w", err)
		}
		entries = append(entries, te...)
	}

	trash, err := f.store.ListTrash()
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}

	snapshot := &Snapshot{
		Platforms: platforms,
		Projects:  projects,
		Folders:   folders,
		Files:     files,
		Rows:      rows,
		TMs:       tms,
		TMEntries: entries,
		Trash:     trash,
	}

	return snapshot, nil
}

// Restore restores the FSM from a snapshot, called when a node restarts or
// joins the cluster behind the current log.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range snapshot.Platforms {
		if err := f.store.CreatePlatform(p); err != nil {
			return fmt.Errorf("failed to restore platform: %w", err)
		}
	}
	for _, p := range snapshot.Projects {
		if err := f.store.CreateProject(p); err != nil {
			return fmt.Errorf("failed to restore project: %w", err)
		}
	}
	for _, fo := range snapshot.Folders {
		if err := f.store.CreateFolder(fo); err != nil {
			return fmt.Errorf("failed to restore folder: %w", err)
		}
	}
	for _, file := range snapshot.Files {
		if err := f.store.CreateFile(file); err != nil {
			return fmt.Errorf("failed to restore file: %w", err)
		}
	}
	if len(snapshot.Rows) > 0 {
		if err := f.store.BulkUpsertRows(snapshot.Rows); err != nil {
			return fmt.Errorf("failed to restore rows: %w", err)
		}
	}
	for _, tm := range snapshot.TMs {
		if err := f.store.CreateTM(tm); err != nil {
			return fmt.Errorf("failed to restore tm: %w", err)
		}
	}
	for _, e := range snapshot.TMEntries {
		if err := f.store.UpsertTMEntry(e); err != nil {
			return fmt.Errorf("failed to restore tm entry: %w", err)
		}
	}
	for _, t := range snapshot.Trash {
		if err := f.store.CreateTrashItem(t); err != nil {
			return fmt.Errorf("failed to restore trash item: %w", err)
		}
	}

	return nil
}

// Snapshot is a point-in-time copy of the hierarchy, TM and trash state.
type Snapshot struct {
	Platforms []*types.Platform
	Projects  []*types.Project
	Folders   []*types.Folder
	Files     []*types.File
	Rows      []*types.Row
	TMs       []*types.TM
	TMEntries []*types.TMEntry
	Trash     []*types.TrashItem
}

// Persist writes the snapshot to the given SnapshotSink.
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release releases the snapshot resources. Nothing to release: the
// snapshot holds no open handles.
func (s *Snapshot) Release() {}
