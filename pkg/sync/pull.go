package sync

import (
	"time"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/types"
)

// snapshotBundle is everything Snapshot gathers from central before writing
// anything to local, so a read failure partway through never leaves a
// half-written local tree.
type snapshotBundle struct {
	platforms []*types.Platform
	projects  []*types.Project
	folders   []*types.Folder
	files     []*types.File
	rows      []*types.Row
	tms       []*types.TM
	entries   []*types.TMEntry
}

// Snapshot performs the initial full-subtree transfer for sub, reading the
// whole tree from central first and only then writing it to local — a read
// failure at any point means nothing has been written yet.
func (e *Engine) Snapshot(sub *types.SyncSubscription) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncPullDuration, "snapshot")

	bundle, err := e.gather(sub.ItemType, sub.ItemID)
	if err != nil {
		return err
	}
	return e.land(bundle)
}

func (e *Engine) gather(itemType types.SyncItemType, itemID string) (*snapshotBundle, error) {
	bundle := &snapshotBundle{}

	switch itemType {
	case types.SyncItemPlatform:
		platform, err := e.central.GetPlatform(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "platform not found", err)
		}
		bundle.platforms = append(bundle.platforms, platform)
		projects, err := e.central.ListProjectsByPlatform(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, itemID, "list projects for snapshot", err)
		}
		for _, p := range projects {
			if err := e.gatherProject(bundle, p); err != nil {
				return nil, err
			}
		}

	case types.SyncItemProject:
		project, err := e.central.GetProject(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "project not found", err)
		}
		if err := e.gatherProject(bundle, project); err != nil {
			return nil, err
		}

	case types.SyncItemFile:
		file, err := e.central.GetFile(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "file not found", err)
		}
		if err := e.gatherFile(bundle, file); err != nil {
			return nil, err
		}

	case types.SyncItemTM:
		tm, err := e.central.GetTM(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "tm not found", err)
		}
		entries, err := e.central.ListTMEntries(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, itemID, "list tm entries for snapshot", err)
		}
		bundle.tms = append(bundle.tms, tm)
		bundle.entries = append(bundle.entries, entries...)

	default:
		return nil, errs.New(errs.InvalidArgument, "unknown sync item type")
	}

	return bundle, nil
}

func (e *Engine) gatherProject(bundle *snapshotBundle, project *types.Project) error {
	bundle.projects = append(bundle.projects, project)

	folders, err := e.central.ListFoldersByProject(project.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, project.ID, "list folders for snapshot", err)
	}
	bundle.folders = append(bundle.folders, folders...)

	files, err := e.central.ListFilesByProject(project.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, project.ID, "list files for snapshot", err)
	}
	for _, f := range files {
		if err := e.gatherFile(bundle, f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) gatherFile(bundle *snapshotBundle, file *types.File) error {
	bundle.files = append(bundle.files, file)
	rows, err := e.central.ListRowsByFile(file.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, file.ID, "list rows for snapshot", err)
	}
	bundle.rows = append(bundle.rows, rows...)
	return nil
}

func (e *Engine) land(bundle *snapshotBundle) error {
	for _, p := range bundle.platforms {
		if err := e.local.CreatePlatform(p); err != nil {
			return errs.Wrap(errs.Internal, p.ID, "land platform snapshot", err)
		}
	}
	for _, p := range bundle.projects {
		if err := e.local.CreateProject(p); err != nil {
			return errs.Wrap(errs.Internal, p.ID, "land project snapshot", err)
		}
	}
	for _, f := range bundle.folders {
		if err := e.local.CreateFolder(f); err != nil {
			return errs.Wrap(errs.Internal, f.ID, "land folder snapshot", err)
		}
	}
	for _, f := range bundle.files {
		if err := e.local.CreateFile(f); err != nil {
			return errs.Wrap(errs.Internal, f.ID, "land file snapshot", err)
		}
	}
	if len(bundle.rows) > 0 {
		for _, r := range bundle.rows {
			r.SyncRemoteVersion = r.Version
			r.SyncLocalVersion = 1
		}
		if err := e.local.BulkUpsertRows(bundle.rows); err != nil {
			return errs.Wrap(errs.Internal, "", "land row snapshot", err)
		}
	}
	for _, tm := range bundle.tms {
		if err := e.local.CreateTM(tm); err != nil {
			return errs.Wrap(errs.Internal, tm.ID, "land tm snapshot", err)
		}
	}
	for _, entry := range bundle.entries {
		if err := e.local.UpsertTMEntry(entry); err != nil {
			return errs.Wrap(errs.Internal, entry.EntryID, "land tm entry snapshot", err)
		}
	}
	return nil
}

// DeltaResult summarizes what Delta changed locally.
type DeltaResult struct {
	RowsUpdated    int
	RowsTombstoned int
	RowsConflicted int
}

// Delta pulls changes to sub's item since its last sync: for each row in
// scope, central rows newer than what local last landed are re-applied,
// unless local has edited that row offline since, in which case the local
// edit wins and the row is counted as a conflict instead. Rows central no
// longer has (tombstones) are removed locally. It is safe to call on a
// poll tick or in response to a file-open event.
func (e *Engine) Delta(subscriptionID string) (*DeltaResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncPullDuration, "delta")

	sub, err := e.subscription(subscriptionID)
	if err != nil {
		return nil, err
	}

	files, err := e.filesInScope(sub.ItemType, sub.ItemID)
	if err != nil {
		return nil, err
	}

	result := &DeltaResult{}
	for _, file := range files {
		if err := e.deltaFile(file, result); err != nil {
			return result, err
		}
	}

	sub.LastSyncedAt = time.Now()
	if err := e.central.UpdateSyncSubscription(sub); err != nil {
		return result, errs.Wrap(errs.Internal, subscriptionID, "update subscription watermark", err)
	}
	return result, nil
}

// filesInScope resolves a subscription's item to the set of File records
// whose rows participate in delta sync; TM subscriptions have no rows and
// resolve to nothing here (their entries are re-pulled wholesale on every
// call, cheap enough not to need version tracking).
func (e *Engine) filesInScope(itemType types.SyncItemType, itemID string) ([]*types.File, error) {
	switch itemType {
	case types.SyncItemFile:
		file, err := e.central.GetFile(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "file not found", err)
		}
		return []*types.File{file}, nil

	case types.SyncItemProject:
		return e.central.ListFilesByProject(itemID)

	case types.SyncItemPlatform:
		projects, err := e.central.ListProjectsByPlatform(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, itemID, "list projects for delta", err)
		}
		var files []*types.File
		for _, p := range projects {
			pf, err := e.central.ListFilesByProject(p.ID)
			if err != nil {
				return nil, errs.Wrap(errs.Internal, p.ID, "list files for delta", err)
			}
			files = append(files, pf...)
		}
		return files, nil

	case types.SyncItemTM:
		tm, err := e.central.GetTM(itemID)
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, itemID, "tm not found", err)
		}
		entries, err := e.central.ListTMEntries(tm.ID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, tm.ID, "list tm entries for delta", err)
		}
		for _, entry := range entries {
			if err := e.local.UpsertTMEntry(entry); err != nil {
				return nil, errs.Wrap(errs.Internal, entry.EntryID, "apply tm entry delta", err)
			}
		}
		return nil, nil

	default:
		return nil, errs.New(errs.InvalidArgument, "unknown sync item type")
	}
}

// deltaFile applies remote changes for one file. A remote row is applied
// locally when either this is the first time local has seen it, or local's
// copy is unmodified since its last landing (Version == SyncLocalVersion)
// and central has moved past the version local last saw (Version >
// SyncRemoteVersion). A row edited offline (Version != SyncLocalVersion)
// keeps its local content — the central store wins for structure, but the
// local store wins for row edits until the user explicitly pushes them;
// if central also moved that row on, it's counted as a conflict rather
// than silently dropped. Rows present locally but gone from central are
// tombstoned (deleted) locally regardless of their dirty state.
func (e *Engine) deltaFile(file *types.File, result *DeltaResult) error {
	remoteRows, err := e.central.ListRowsByFile(file.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, file.ID, "list remote rows for delta", err)
	}
	localRows, err := e.local.ListRowsByFile(file.ID)
	if err != nil {
		// local has never seen this file; land it whole.
		if _, getErr := e.local.GetFile(file.ID); getErr != nil {
			if err := e.local.CreateFile(file); err != nil {
				return errs.Wrap(errs.Internal, file.ID, "land new file for delta", err)
			}
		}
		localRows = nil
	}

	localByID := make(map[string]*types.Row, len(localRows))
	for _, r := range localRows {
		localByID[r.ID] = r
	}
	remoteIDs := make(map[string]bool, len(remoteRows))
	for _, r := range remoteRows {
		remoteIDs[r.ID] = true
	}

	tombstoned := 0
	for _, r := range localRows {
		if !remoteIDs[r.ID] {
			tombstoned++
		}
	}
	// The store has no single-row delete; a tombstoned row means the
	// remote set is no longer a superset of the local one, so the file's
	// row set is cleared and rebuilt. Local rows that still exist
	// remotely are re-landed first so an offline edit survives the
	// compaction; only the rows central actually deleted stay gone.
	if tombstoned > 0 {
		if err := e.local.DeleteRowsByFile(file.ID); err != nil {
			return errs.Wrap(errs.Internal, file.ID, "clear local rows before compacting delta", err)
		}
		var survivors []*types.Row
		for _, r := range localRows {
			if remoteIDs[r.ID] {
				survivors = append(survivors, r)
			}
		}
		if len(survivors) > 0 {
			if err := e.local.BulkUpsertRows(survivors); err != nil {
				return errs.Wrap(errs.Internal, file.ID, "re-land surviving rows after compacting delta", err)
			}
		}
		localByID = make(map[string]*types.Row, len(survivors))
		for _, r := range survivors {
			localByID[r.ID] = r
		}
		result.RowsTombstoned += tombstoned
	}

	var toUpsert []*types.Row
	for _, r := range remoteRows {
		loc, exists := localByID[r.ID]
		switch {
		case !exists:
			landed := *r
			landed.SyncRemoteVersion = r.Version
			landed.SyncLocalVersion = 1
			toUpsert = append(toUpsert, &landed)

		case loc.Version != loc.SyncLocalVersion:
			// edited offline since last landing
			if r.Version > loc.SyncRemoteVersion {
				result.RowsConflicted++
				metrics.SyncConflictsTotal.WithLabelValues("local_wins").Inc()
			}

		case r.Version > loc.SyncRemoteVersion:
			landed := *r
			landed.SyncRemoteVersion = r.Version
			landed.SyncLocalVersion = loc.Version + 1
			toUpsert = append(toUpsert, &landed)
		}
	}
	if len(toUpsert) > 0 {
		if err := e.local.BulkUpsertRows(toUpsert); err != nil {
			return errs.Wrap(errs.Internal, file.ID, "apply row delta", err)
		}
		result.RowsUpdated += len(toUpsert)
	}

	return nil
}

// AutoOpenPull fires a best-effort delta pull for a single file, meant to
// be called (non-blocking, errors logged not surfaced) when a user opens a
// file in the client — see config.SyncConfig.AutoOnFileOpen.
func (e *Engine) AutoOpenPull(subscriptionID string) {
	if _, err := e.Delta(subscriptionID); err != nil {
		e.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("auto-open sync pull failed")
	}
}
