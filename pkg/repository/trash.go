package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// trashIDPrefix keeps generated trash ids visibly distinct from the
// entity ids they wrap, which matters once an item is restored and its
// original id needs to come back unchanged.
const trashIDPrefix = "trash-"

// SoftDelete snapshots an entity into trash and removes it from the live
// tree. Folders and projects carry their entire subtree in the snapshot so
// Restore can recreate it without re-reading from elsewhere.
func (r *Repository) SoftDelete(kind types.TrashItemType, id, principal string) (*types.TrashItem, error) {
	var (
		name            string
		parentProjectID string
		parentFolderID  string
		payload         []byte
		err             error
	)

	switch kind {
	case types.TrashPlatform:
		p, getErr := r.backend.GetPlatform(id)
		if getErr != nil {
			return nil, errs.Wrap(errs.NotFound, id, "platform not found", getErr)
		}
		name = p.Name
		payload, err = json.Marshal(p)
	case types.TrashProject:
		snap, snapErr := r.snapshotProject(id)
		if snapErr != nil {
			return nil, snapErr
		}
		name = snap.Project.Name
		payload, err = json.Marshal(snap)
	case types.TrashFolder:
		snap, snapErr := r.snapshotFolder(id)
		if snapErr != nil {
			return nil, snapErr
		}
		name = snap.Folder.Name
		parentProjectID = snap.Folder.ProjectID
		parentFolderID = snap.Folder.ParentFolderID
		payload, err = json.Marshal(snap)
	case types.TrashFile:
		f, getErr := r.backend.GetFile(id)
		if getErr != nil {
			return nil, errs.Wrap(errs.NotFound, id, "file not found", getErr)
		}
		rows, rowsErr := r.backend.ListRowsByFile(id)
		if rowsErr != nil {
			return nil, errs.Wrap(errs.Internal, id, "list rows for trash snapshot", rowsErr)
		}
		name = f.Name
		parentProjectID = f.ProjectID
		parentFolderID = f.FolderID
		payload, err = json.Marshal(fileSnapshot{File: f, Rows: rows})
	default:
		return nil, errs.New(errs.InvalidArgument, "unknown kind")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, id, "marshal trash snapshot", err)
	}

	now := time.Now()
	item := &types.TrashItem{
		TrashID:         trashIDPrefix + id,
		ItemType:        kind,
		ItemID:          id,
		ItemName:        name,
		ParentProjectID: parentProjectID,
		ParentFolderID:  parentFolderID,
		Payload:         payload,
		DeletedAt:       now,
		ExpiresAt:       now.Add(r.trashRetention),
	}
	if err := r.backend.CreateTrashItem(item); err != nil {
		return nil, errs.Wrap(errs.Internal, id, "create trash item", err)
	}

	if err := r.deleteLive(kind, id); err != nil {
		return nil, err
	}

	r.audit("soft_delete", principal, map[string]string{"kind": string(kind), "id": id})
	return item, nil
}

// deleteLive removes an entity and, for container kinds, its entire
// subtree from the live tree. The trash snapshot has already been
// committed by the time this runs, so everything removed here is
// recoverable through Restore.
func (r *Repository) deleteLive(kind types.TrashItemType, id string) error {
	var err error
	switch kind {
	case types.TrashPlatform:
		err = r.backend.DeletePlatform(id)
	case types.TrashProject:
		folders, lerr := r.backend.ListFoldersByProject(id)
		if lerr != nil {
			return errs.Wrap(errs.Internal, id, "list folders for delete", lerr)
		}
		for _, f := range folders {
			if derr := r.backend.DeleteFolder(f.ID); derr != nil {
				return errs.Wrap(errs.Internal, f.ID, "delete folder", derr)
			}
		}
		files, lerr := r.backend.ListFilesByProject(id)
		if lerr != nil {
			return errs.Wrap(errs.Internal, id, "list files for delete", lerr)
		}
		if derr := r.deleteFiles(files); derr != nil {
			return derr
		}
		err = r.backend.DeleteProject(id)
	case types.TrashFolder:
		folders, files, werr := r.walkFolderSubtree(id)
		if werr != nil {
			return werr
		}
		for _, f := range folders {
			if derr := r.backend.DeleteFolder(f.ID); derr != nil {
				return errs.Wrap(errs.Internal, f.ID, "delete subfolder", derr)
			}
		}
		if derr := r.deleteFiles(files); derr != nil {
			return derr
		}
		err = r.backend.DeleteFolder(id)
	case types.TrashFile:
		if derr := r.backend.DeleteRowsByFile(id); derr != nil {
			return errs.Wrap(errs.Internal, id, "delete rows for file", derr)
		}
		err = r.backend.DeleteFile(id)
	}
	if err != nil {
		return errs.Wrap(errs.Internal, id, "delete live entity", err)
	}
	return nil
}

func (r *Repository) deleteFiles(files []*types.File) error {
	for _, f := range files {
		if err := r.backend.DeleteRowsByFile(f.ID); err != nil {
			return errs.Wrap(errs.Internal, f.ID, "delete rows for file", err)
		}
		if err := r.backend.DeleteFile(f.ID); err != nil {
			return errs.Wrap(errs.Internal, f.ID, "delete file", err)
		}
	}
	return nil
}

// walkFolderSubtree collects every descendant folder of folderID
// (excluding folderID itself) and every file in the subtree, folderID's
// own files included.
func (r *Repository) walkFolderSubtree(folderID string) ([]*types.Folder, []*types.File, error) {
	var folders []*types.Folder
	var files []*types.File

	pending := []string{folderID}
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		fl, err := r.backend.ListFilesByFolder(cur)
		if err != nil {
			return nil, nil, errs.Wrap(errs.Internal, cur, "list files in subtree", err)
		}
		files = append(files, fl...)

		children, err := r.backend.ListFoldersByParent(cur)
		if err != nil {
			return nil, nil, errs.Wrap(errs.Internal, cur, "list subfolders in subtree", err)
		}
		for _, child := range children {
			folders = append(folders, child)
			pending = append(pending, child.ID)
		}
	}
	return folders, files, nil
}

type projectSnapshot struct {
	Project *types.Project
	Folders []*types.Folder
	Files   []fileSnapshot
}

type folderSnapshot struct {
	Folder  *types.Folder
	Folders []*types.Folder
	Files   []fileSnapshot
}

type fileSnapshot struct {
	File *types.File
	Rows []*types.Row
}

func (r *Repository) snapshotProject(projectID string) (*projectSnapshot, error) {
	project, err := r.backend.GetProject(projectID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, projectID, "project not found", err)
	}
	folders, err := r.backend.ListFoldersByProject(projectID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, projectID, "list folders for trash snapshot", err)
	}
	files, err := r.snapshotFiles(r.backend.ListFilesByProject, projectID)
	if err != nil {
		return nil, err
	}
	return &projectSnapshot{Project: project, Folders: folders, Files: files}, nil
}

func (r *Repository) snapshotFolder(folderID string) (*folderSnapshot, error) {
	folder, err := r.backend.GetFolder(folderID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, folderID, "folder not found", err)
	}
	folders, files, err := r.walkFolderSubtree(folderID)
	if err != nil {
		return nil, err
	}
	snaps := make([]fileSnapshot, 0, len(files))
	for _, f := range files {
		rows, err := r.backend.ListRowsByFile(f.ID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, f.ID, "list rows for trash snapshot", err)
		}
		snaps = append(snaps, fileSnapshot{File: f, Rows: rows})
	}
	return &folderSnapshot{Folder: folder, Folders: folders, Files: snaps}, nil
}

func (r *Repository) snapshotFiles(list func(string) ([]*types.File, error), parentID string) ([]fileSnapshot, error) {
	files, err := list(parentID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, parentID, "list files for trash snapshot", err)
	}
	snaps := make([]fileSnapshot, 0, len(files))
	for _, f := range files {
		rows, err := r.backend.ListRowsByFile(f.ID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, f.ID, "list rows for trash snapshot", err)
		}
		snaps = append(snaps, fileSnapshot{File: f, Rows: rows})
	}
	return snaps, nil
}

// RestoreResult reports where a restored item actually landed: the
// original parents may be gone by the time Restore runs, in which case
// the item is placed at the nearest surviving ancestor and Relocated is
// set. Name carries any auto-rename applied when the original name was
// taken at the landing location in the interim.
type RestoreResult struct {
	ItemType   types.TrashItemType `json:"item_type"`
	ItemID     string              `json:"item_id"`
	Name       string              `json:"name"`
	PlatformID string              `json:"platform_id,omitempty"`
	ProjectID  string              `json:"project_id,omitempty"`
	FolderID   string              `json:"folder_id,omitempty"`
	Relocated  bool                `json:"relocated"`
}

// Restore recreates a soft-deleted item (and its snapshot subtree) from
// trash and removes the trash record. If the original parents still
// exist the item returns exactly where it was; otherwise it lands at the
// nearest surviving ancestor (a folder's or file's project root, a
// project's unassigned scope) and the result says so.
func (r *Repository) Restore(trashID, principal string) (*RestoreResult, error) {
	item, err := r.backend.GetTrashItem(trashID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, trashID, "trash item not found", err)
	}

	var result *RestoreResult
	switch item.ItemType {
	case types.TrashPlatform:
		result, err = r.restorePlatform(item)
	case types.TrashProject:
		result, err = r.restoreProject(item)
	case types.TrashFolder:
		result, err = r.restoreFolder(item)
	case types.TrashFile:
		result, err = r.restoreFile(item)
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown trash item type %q", item.ItemType))
	}
	if err != nil {
		return nil, err
	}

	if err := r.backend.DeleteTrashItem(trashID); err != nil {
		return nil, errs.Wrap(errs.Internal, trashID, "remove trash record", err)
	}

	r.audit("restore", principal, map[string]string{
		"trash_id":  trashID,
		"kind":      string(item.ItemType),
		"relocated": fmt.Sprintf("%t", result.Relocated),
	})
	return result, nil
}

func (r *Repository) restorePlatform(item *types.TrashItem) (*RestoreResult, error) {
	var p types.Platform
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "decode platform snapshot", err)
	}
	all, err := r.backend.ListPlatforms()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "list platforms", err)
	}
	taken := make(map[string]bool, len(all))
	for _, other := range all {
		taken[other.Name] = true
	}
	p.Name = uniqueName(p.Name, taken)

	if err := r.backend.CreatePlatform(&p); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "restore platform", err)
	}
	return &RestoreResult{ItemType: item.ItemType, ItemID: p.ID, Name: p.Name}, nil
}

func (r *Repository) restoreProject(item *types.TrashItem) (*RestoreResult, error) {
	var snap projectSnapshot
	if err := json.Unmarshal(item.Payload, &snap); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "decode project snapshot", err)
	}

	relocated := false
	if snap.Project.PlatformID != "" {
		if _, err := r.backend.GetPlatform(snap.Project.PlatformID); err != nil {
			// platform is gone; the unassigned scope is the nearest
			// surviving ancestor a project has.
			snap.Project.PlatformID = ""
			relocated = true
		}
	}

	all, err := r.backend.ListProjects()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "list projects", err)
	}
	taken := make(map[string]bool)
	for _, other := range all {
		if other.PlatformID == snap.Project.PlatformID {
			taken[other.Name] = true
		}
	}
	snap.Project.Name = uniqueName(snap.Project.Name, taken)

	if err := r.backend.CreateProject(snap.Project); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "restore project", err)
	}
	for _, f := range snap.Folders {
		if err := r.backend.CreateFolder(f); err != nil {
			return nil, errs.Wrap(errs.Internal, item.TrashID, "restore project folder", err)
		}
	}
	if err := r.restoreFiles(snap.Files, item.TrashID); err != nil {
		return nil, err
	}
	return &RestoreResult{
		ItemType:   item.ItemType,
		ItemID:     snap.Project.ID,
		Name:       snap.Project.Name,
		PlatformID: snap.Project.PlatformID,
		Relocated:  relocated,
	}, nil
}

func (r *Repository) restoreFolder(item *types.TrashItem) (*RestoreResult, error) {
	var snap folderSnapshot
	if err := json.Unmarshal(item.Payload, &snap); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "decode folder snapshot", err)
	}

	if _, err := r.backend.GetProject(snap.Folder.ProjectID); err != nil {
		return nil, errs.Wrap(errs.NotFound, snap.Folder.ProjectID, "original project no longer exists", err)
	}
	relocated := false
	if snap.Folder.ParentFolderID != "" {
		if _, err := r.backend.GetFolder(snap.Folder.ParentFolderID); err != nil {
			snap.Folder.ParentFolderID = ""
			relocated = true
		}
	}

	taken, err := r.folderSiblingNames(snap.Folder.ProjectID, snap.Folder.ParentFolderID)
	if err != nil {
		return nil, err
	}
	snap.Folder.Name = uniqueName(snap.Folder.Name, taken)

	if err := r.backend.CreateFolder(snap.Folder); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "restore folder", err)
	}
	for _, f := range snap.Folders {
		if err := r.backend.CreateFolder(f); err != nil {
			return nil, errs.Wrap(errs.Internal, item.TrashID, "restore subfolder", err)
		}
	}
	if err := r.restoreFiles(snap.Files, item.TrashID); err != nil {
		return nil, err
	}
	return &RestoreResult{
		ItemType:  item.ItemType,
		ItemID:    snap.Folder.ID,
		Name:      snap.Folder.Name,
		ProjectID: snap.Folder.ProjectID,
		FolderID:  snap.Folder.ParentFolderID,
		Relocated: relocated,
	}, nil
}

func (r *Repository) restoreFile(item *types.TrashItem) (*RestoreResult, error) {
	var snap fileSnapshot
	if err := json.Unmarshal(item.Payload, &snap); err != nil {
		return nil, errs.Wrap(errs.Internal, item.TrashID, "decode file snapshot", err)
	}

	if _, err := r.backend.GetProject(snap.File.ProjectID); err != nil {
		return nil, errs.Wrap(errs.NotFound, snap.File.ProjectID, "original project no longer exists", err)
	}
	relocated := false
	if snap.File.FolderID != "" {
		if _, err := r.backend.GetFolder(snap.File.FolderID); err != nil {
			snap.File.FolderID = ""
			relocated = true
		}
	}

	taken, err := r.fileSiblingNames(snap.File.ProjectID, snap.File.FolderID)
	if err != nil {
		return nil, err
	}
	snap.File.Name = uniqueName(snap.File.Name, taken)

	if err := r.restoreFiles([]fileSnapshot{snap}, item.TrashID); err != nil {
		return nil, err
	}
	return &RestoreResult{
		ItemType:  item.ItemType,
		ItemID:    snap.File.ID,
		Name:      snap.File.Name,
		ProjectID: snap.File.ProjectID,
		FolderID:  snap.File.FolderID,
		Relocated: relocated,
	}, nil
}

func (r *Repository) restoreFiles(files []fileSnapshot, trashID string) error {
	for _, snap := range files {
		if err := r.backend.CreateFile(snap.File); err != nil {
			return errs.Wrap(errs.Internal, trashID, "restore file", err)
		}
		if len(snap.Rows) > 0 {
			if err := r.backend.BulkUpsertRows(snap.Rows); err != nil {
				return errs.Wrap(errs.Internal, trashID, "restore rows", err)
			}
		}
	}
	return nil
}

// Purge permanently discards a trash record without restoring it.
func (r *Repository) Purge(trashID, principal string) error {
	if _, err := r.backend.GetTrashItem(trashID); err != nil {
		return errs.Wrap(errs.NotFound, trashID, "trash item not found", err)
	}
	if err := r.backend.DeleteTrashItem(trashID); err != nil {
		return errs.Wrap(errs.Internal, trashID, "purge trash item", err)
	}
	r.audit("purge", principal, map[string]string{"trash_id": trashID})
	return nil
}

// PurgeExpired permanently discards every trash record past its
// retention window. Intended to run on a periodic sweep (cmd/ldmd trash
// sweep), not on the request path.
func (r *Repository) PurgeExpired() (int, error) {
	expired, err := r.backend.ListTrashExpiredBefore(time.Now().Unix())
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "", "list expired trash", err)
	}
	for _, item := range expired {
		if err := r.backend.DeleteTrashItem(item.TrashID); err != nil {
			return 0, errs.Wrap(errs.Internal, item.TrashID, "purge expired trash item", err)
		}
	}
	return len(expired), nil
}

// ListTrash returns every item currently in trash.
func (r *Repository) ListTrash() ([]*types.TrashItem, error) {
	items, err := r.backend.ListTrash()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "", "list trash", err)
	}
	return items, nil
}
