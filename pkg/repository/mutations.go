package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// Rename changes the display name of a platform, project, folder or file,
// enforcing the same sibling-uniqueness scope as the corresponding Create.
func (r *Repository) Rename(kind types.TrashItemType, id, newName, principal string) error {
	if newName == "" {
		return errs.New(errs.InvalidArgument, "new name required")
	}
	switch kind {
	case types.TrashPlatform:
		p, err := r.backend.GetPlatform(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "platform not found", err)
		}
		all, err := r.backend.ListPlatforms()
		if err != nil {
			return errs.Wrap(errs.Internal, id, "list platforms", err)
		}
		for _, other := range all {
			if other.ID != id && other.Name == newName {
				return errs.New(errs.Conflict, "platform name already in use")
			}
		}
		p.Name = newName
		p.UpdatedAt = time.Now()
		if err := r.backend.UpdatePlatform(p); err != nil {
			return errs.Wrap(errs.Internal, id, "rename platform", err)
		}
	case types.TrashProject:
		p, err := r.backend.GetProject(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "project not found", err)
		}
		all, err := r.backend.ListProjects()
		if err != nil {
			return errs.Wrap(errs.Internal, id, "list projects", err)
		}
		for _, other := range all {
			if other.ID != id && other.PlatformID == p.PlatformID && other.Name == newName {
				return errs.New(errs.Conflict, "project name already in use in this scope")
			}
		}
		p.Name = newName
		p.UpdatedAt = time.Now()
		if err := r.backend.UpdateProject(p); err != nil {
			return errs.Wrap(errs.Internal, id, "rename project", err)
		}
	case types.TrashFolder:
		f, err := r.backend.GetFolder(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "folder not found", err)
		}
		var siblings []*types.Folder
		if f.ParentFolderID == "" {
			all, lerr := r.backend.ListFoldersByProject(f.ProjectID)
			if lerr != nil {
				return errs.Wrap(errs.Internal, id, "list sibling folders", lerr)
			}
			siblings = rootFolders(all)
		} else {
			siblings, err = r.backend.ListFoldersByParent(f.ParentFolderID)
			if err != nil {
				return errs.Wrap(errs.Internal, id, "list sibling folders", err)
			}
		}
		for _, sib := range siblings {
			if sib.ID != id && sib.Name == newName {
				return errs.New(errs.Conflict, "folder name already in use under this parent")
			}
		}
		f.Name = newName
		if err := r.backend.UpdateFolder(f); err != nil {
			return errs.Wrap(errs.Internal, id, "rename folder", err)
		}
	case types.TrashFile:
		f, err := r.backend.GetFile(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "file not found", err)
		}
		f.Name = newName
		f.UpdatedAt = time.Now()
		if err := r.backend.UpdateFile(f); err != nil {
			return errs.Wrap(errs.Internal, id, "rename file", err)
		}
	default:
		return errs.New(errs.InvalidArgument, "unknown kind")
	}

	r.audit("rename", principal, map[string]string{"kind": string(kind), "id": id, "new_name": newName})
	return nil
}

// Move relocates a folder or file to a new parent folder within the same
// project. Use MoveCrossProject to move between projects.
func (r *Repository) Move(kind types.TrashItemType, id, newParentFolderID, principal string) error {
	switch kind {
	case types.TrashFolder:
		f, err := r.backend.GetFolder(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "folder not found", err)
		}
		if newParentFolderID == id {
			return errs.New(errs.InvalidArgument, "folder cannot be its own parent")
		}
		if newParentFolderID != "" {
			cyclic, cerr := r.isAncestorOrSelf(id, newParentFolderID)
			if cerr != nil {
				return errs.Wrap(errs.Internal, id, "check folder cycle", cerr)
			}
			if cyclic {
				return errs.New(errs.InvalidArgument, "move would create a folder cycle")
			}
		}
		f.ParentFolderID = newParentFolderID
		if err := r.backend.UpdateFolder(f); err != nil {
			return errs.Wrap(errs.Internal, id, "move folder", err)
		}
	case types.TrashFile:
		f, err := r.backend.GetFile(id)
		if err != nil {
			return errs.Wrap(errs.NotFound, id, "file not found", err)
		}
		f.FolderID = newParentFolderID
		f.UpdatedAt = time.Now()
		if err := r.backend.UpdateFile(f); err != nil {
			return errs.Wrap(errs.Internal, id, "move file", err)
		}
	default:
		return errs.New(errs.InvalidArgument, "move only applies to folders and files")
	}

	r.audit("move", principal, map[string]string{"kind": string(kind), "id": id, "new_parent": newParentFolderID})
	return nil
}

// MoveCrossProject relocates a file to a different project, clearing its
// folder assignment since the folder tree doesn't carry across projects.
func (r *Repository) MoveCrossProject(id, newProjectID, principal string) error {
	f, err := r.backend.GetFile(id)
	if err != nil {
		return errs.Wrap(errs.NotFound, id, "file not found", err)
	}
	f.ProjectID = newProjectID
	f.FolderID = ""
	f.UpdatedAt = time.Now()
	if err := r.backend.UpdateFile(f); err != nil {
		return errs.Wrap(errs.Internal, id, "move file cross-project", err)
	}

	r.audit("move_cross_project", principal, map[string]string{"file_id": id, "new_project": newProjectID})
	return nil
}

// Copy duplicates an entity and its whole subtree — rows and, for
// projects, TMs with their entries — under a new parent, assigning fresh
// ids throughout. newParentID is a folder or project id for files and
// folders, a platform id (or empty, for the unassigned scope) for
// projects, and ignored for platforms, which have no parent. The copy's
// name is auto-suffixed if the target scope already has the name taken.
// Returns the id of the new subtree root.
func (r *Repository) Copy(kind types.TrashItemType, id, newParentID, principal string) (string, error) {
	var (
		newID string
		err   error
	)
	switch kind {
	case types.TrashFile:
		newID, err = r.copyFile(id, newParentID)
	case types.TrashFolder:
		newID, err = r.copyFolder(id, newParentID)
	case types.TrashProject:
		newID, err = r.copyProject(id, newParentID)
	case types.TrashPlatform:
		newID, err = r.copyPlatform(id)
	default:
		return "", errs.New(errs.InvalidArgument, "unknown kind")
	}
	if err != nil {
		return "", err
	}

	r.audit("copy", principal, map[string]string{"kind": string(kind), "source_id": id, "new_id": newID})
	return newID, nil
}

// resolveCopyTarget maps a file/folder copy's newParentID to the
// (project, folder) pair the copy lands in: a folder id lands inside
// that folder, a project id lands at the project root.
func (r *Repository) resolveCopyTarget(newParentID string) (projectID, folderID string, err error) {
	if f, ferr := r.backend.GetFolder(newParentID); ferr == nil {
		return f.ProjectID, f.ID, nil
	}
	if p, perr := r.backend.GetProject(newParentID); perr == nil {
		return p.ID, "", nil
	}
	return "", "", errs.New(errs.NotFound, "target parent not found: "+newParentID)
}

// uniqueName returns name unless taken, else the first free "name (n)".
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (r *Repository) copyFile(fileID, newParentID string) (string, error) {
	src, err := r.backend.GetFile(fileID)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, fileID, "file not found", err)
	}
	projectID, folderID, err := r.resolveCopyTarget(newParentID)
	if err != nil {
		return "", err
	}

	siblings, err := r.fileSiblingNames(projectID, folderID)
	if err != nil {
		return "", err
	}

	dst := &types.File{
		ID:        uuid.NewString(),
		Name:      uniqueName(src.Name, siblings),
		ProjectID: projectID,
		FolderID:  folderID,
		Format:    src.Format,
		RowCount:  src.RowCount,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.backend.CreateFile(dst); err != nil {
		return "", errs.Wrap(errs.Internal, dst.ID, "create copied file", err)
	}
	if err := r.copyRows(fileID, dst.ID); err != nil {
		return "", err
	}
	return dst.ID, nil
}

func (r *Repository) copyRows(srcFileID, dstFileID string) error {
	rows, err := r.backend.ListRowsByFile(srcFileID)
	if err != nil {
		return errs.Wrap(errs.Internal, srcFileID, "list rows to copy", err)
	}
	if len(rows) == 0 {
		return nil
	}
	copies := make([]*types.Row, len(rows))
	for i, row := range rows {
		copies[i] = &types.Row{
			ID:       fmt.Sprintf("%s-row-%d", dstFileID, row.Index),
			FileID:   dstFileID,
			Index:    row.Index,
			Source:   row.Source,
			Target:   row.Target,
			Status:   row.Status,
			StringID: row.StringID,
			Metadata: row.Metadata,
		}
	}
	if err := r.backend.BulkUpsertRows(copies); err != nil {
		return errs.Wrap(errs.Internal, dstFileID, "copy rows", err)
	}
	return nil
}

func (r *Repository) fileSiblingNames(projectID, folderID string) (map[string]bool, error) {
	var files []*types.File
	var err error
	if folderID == "" {
		all, lerr := r.backend.ListFilesByProject(projectID)
		if lerr != nil {
			return nil, errs.Wrap(errs.Internal, projectID, "list sibling files", lerr)
		}
		files = rootFiles(all)
	} else {
		files, err = r.backend.ListFilesByFolder(folderID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, folderID, "list sibling files", err)
		}
	}
	taken := make(map[string]bool, len(files))
	for _, f := range files {
		taken[f.Name] = true
	}
	return taken, nil
}

func (r *Repository) folderSiblingNames(projectID, parentFolderID string) (map[string]bool, error) {
	var siblings []*types.Folder
	var err error
	if parentFolderID == "" {
		all, lerr := r.backend.ListFoldersByProject(projectID)
		if lerr != nil {
			return nil, errs.Wrap(errs.Internal, projectID, "list sibling folders", lerr)
		}
		siblings = rootFolders(all)
	} else {
		siblings, err = r.backend.ListFoldersByParent(parentFolderID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentFolderID, "list sibling folders", err)
		}
	}
	taken := make(map[string]bool, len(siblings))
	for _, f := range siblings {
		taken[f.Name] = true
	}
	return taken, nil
}

func (r *Repository) copyFolder(folderID, newParentID string) (string, error) {
	src, err := r.backend.GetFolder(folderID)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, folderID, "folder not found", err)
	}
	projectID, parentFolderID, err := r.resolveCopyTarget(newParentID)
	if err != nil {
		return "", err
	}

	siblings, err := r.folderSiblingNames(projectID, parentFolderID)
	if err != nil {
		return "", err
	}

	folders, files, err := r.walkFolderSubtree(folderID)
	if err != nil {
		return "", err
	}

	idMap := map[string]string{folderID: uuid.NewString()}
	for _, f := range folders {
		idMap[f.ID] = uuid.NewString()
	}

	root := &types.Folder{
		ID:             idMap[folderID],
		Name:           uniqueName(src.Name, siblings),
		ProjectID:      projectID,
		ParentFolderID: parentFolderID,
		CreatedAt:      time.Now(),
	}
	if err := r.backend.CreateFolder(root); err != nil {
		return "", errs.Wrap(errs.Internal, root.ID, "create copied folder", err)
	}
	for _, f := range folders {
		nf := &types.Folder{
			ID:             idMap[f.ID],
			Name:           f.Name,
			ProjectID:      projectID,
			ParentFolderID: idMap[f.ParentFolderID],
			CreatedAt:      time.Now(),
		}
		if err := r.backend.CreateFolder(nf); err != nil {
			return "", errs.Wrap(errs.Internal, nf.ID, "create copied subfolder", err)
		}
	}
	if err := r.copyFilesInto(files, projectID, idMap); err != nil {
		return "", err
	}
	return root.ID, nil
}

// copyFilesInto duplicates files (and their rows) into projectID, with
// each file's folder remapped through idMap.
func (r *Repository) copyFilesInto(files []*types.File, projectID string, idMap map[string]string) error {
	for _, f := range files {
		dst := &types.File{
			ID:        uuid.NewString(),
			Name:      f.Name,
			ProjectID: projectID,
			FolderID:  idMap[f.FolderID],
			Format:    f.Format,
			RowCount:  f.RowCount,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := r.backend.CreateFile(dst); err != nil {
			return errs.Wrap(errs.Internal, dst.ID, "create copied file", err)
		}
		if err := r.copyRows(f.ID, dst.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) copyProject(projectID, newPlatformID string) (string, error) {
	src, err := r.backend.GetProject(projectID)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, projectID, "project not found", err)
	}
	if newPlatformID != "" {
		if _, err := r.backend.GetPlatform(newPlatformID); err != nil {
			return "", errs.Wrap(errs.NotFound, newPlatformID, "target platform not found", err)
		}
	}

	all, err := r.backend.ListProjects()
	if err != nil {
		return "", errs.Wrap(errs.Internal, projectID, "list projects", err)
	}
	taken := make(map[string]bool)
	for _, p := range all {
		if p.PlatformID == newPlatformID {
			taken[p.Name] = true
		}
	}

	now := time.Now()
	dst := &types.Project{
		ID:           uuid.NewString(),
		Name:         uniqueName(src.Name, taken),
		PlatformID:   newPlatformID,
		IsRestricted: src.IsRestricted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.backend.CreateProject(dst); err != nil {
		return "", errs.Wrap(errs.Internal, dst.ID, "create copied project", err)
	}

	folders, err := r.backend.ListFoldersByProject(projectID)
	if err != nil {
		return "", errs.Wrap(errs.Internal, projectID, "list folders to copy", err)
	}
	idMap := make(map[string]string, len(folders))
	for _, f := range folders {
		idMap[f.ID] = uuid.NewString()
	}
	for _, f := range folders {
		nf := &types.Folder{
			ID:             idMap[f.ID],
			Name:           f.Name,
			ProjectID:      dst.ID,
			ParentFolderID: idMap[f.ParentFolderID],
			CreatedAt:      time.Now(),
		}
		if err := r.backend.CreateFolder(nf); err != nil {
			return "", errs.Wrap(errs.Internal, nf.ID, "create copied folder", err)
		}
	}

	files, err := r.backend.ListFilesByProject(projectID)
	if err != nil {
		return "", errs.Wrap(errs.Internal, projectID, "list files to copy", err)
	}
	if err := r.copyFilesInto(files, dst.ID, idMap); err != nil {
		return "", err
	}

	if err := r.copyProjectTMs(projectID, dst.ID); err != nil {
		return "", err
	}
	return dst.ID, nil
}

// copyProjectTMs duplicates a project's TMs and their entries. The new
// TMs start without a built vector index; the TM engine rebuilds one
// lazily on first lookup or import.
func (r *Repository) copyProjectTMs(srcProjectID, dstProjectID string) error {
	tms, err := r.backend.ListTMsByProject(srcProjectID)
	if err != nil {
		return errs.Wrap(errs.Internal, srcProjectID, "list tms to copy", err)
	}
	for _, src := range tms {
		dst := &types.TM{
			ID:          uuid.NewString(),
			Name:        src.Name,
			ProjectID:   dstProjectID,
			SourceLang:  src.SourceLang,
			TargetLang:  src.TargetLang,
			Description: src.Description,
			EntryCount:  src.EntryCount,
			CreatedAt:   time.Now(),
		}
		if err := r.backend.CreateTM(dst); err != nil {
			return errs.Wrap(errs.Internal, dst.ID, "create copied tm", err)
		}
		entries, err := r.backend.ListTMEntries(src.ID)
		if err != nil {
			return errs.Wrap(errs.Internal, src.ID, "list tm entries to copy", err)
		}
		for _, e := range entries {
			copied := *e
			copied.TMID = dst.ID
			if err := r.backend.UpsertTMEntry(&copied); err != nil {
				return errs.Wrap(errs.Internal, dst.ID, "copy tm entry", err)
			}
		}
	}
	return nil
}

func (r *Repository) copyPlatform(platformID string) (string, error) {
	src, err := r.backend.GetPlatform(platformID)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, platformID, "platform not found", err)
	}
	all, err := r.backend.ListPlatforms()
	if err != nil {
		return "", errs.Wrap(errs.Internal, platformID, "list platforms", err)
	}
	taken := make(map[string]bool, len(all))
	for _, p := range all {
		taken[p.Name] = true
	}

	now := time.Now()
	dst := &types.Platform{
		ID:           uuid.NewString(),
		Name:         uniqueName(src.Name, taken),
		Description:  src.Description,
		IsRestricted: src.IsRestricted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.backend.CreatePlatform(dst); err != nil {
		return "", errs.Wrap(errs.Internal, dst.ID, "create copied platform", err)
	}

	projects, err := r.backend.ListProjectsByPlatform(platformID)
	if err != nil {
		return "", errs.Wrap(errs.Internal, platformID, "list projects to copy", err)
	}
	for _, p := range projects {
		if _, err := r.copyProject(p.ID, dst.ID); err != nil {
			return "", err
		}
	}
	return dst.ID, nil
}

// EditRow applies a single row edit. Fast path: runs synchronously on the
// request, never scheduled as an Operation.
func (r *Repository) EditRow(row *types.Row, principal string) error {
	if err := r.backend.BulkUpsertRows([]*types.Row{row}); err != nil {
		return errs.Wrap(errs.Internal, row.ID, "edit row", err)
	}
	r.audit("edit_row", principal, map[string]string{"row_id": row.ID, "file_id": row.FileID})
	return nil
}

// BulkUpsertRows applies many row edits in one call; callers doing large
// batches should run this inside a scheduler.WorkFunc so it's cancellable
// and progress-reported instead of calling it directly from a request.
func (r *Repository) BulkUpsertRows(rows []*types.Row, principal string) error {
	if err := r.backend.BulkUpsertRows(rows); err != nil {
		return errs.Wrap(errs.Internal, "", "bulk upsert rows", err)
	}
	r.audit("bulk_upsert_rows", principal, map[string]string{"count": fmt.Sprintf("%d", len(rows))})
	return nil
}
