package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// CreatePlatform inserts a platform after checking name uniqueness across
// the whole store — platforms have no parent scope to narrow the check to.
func (r *Repository) CreatePlatform(name, description string, isRestricted bool, principal string) (*types.Platform, error) {
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "platform name required")
	}
	existing, err := r.backend.ListPlatforms()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "", "list platforms", err)
	}
	for _, p := range existing {
		if p.Name == name {
			return nil, errs.New(errs.Conflict, "platform name already in use")
		}
	}

	now := time.Now()
	p := &types.Platform{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		IsRestricted: isRestricted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.backend.CreatePlatform(p); err != nil {
		return nil, errs.Wrap(errs.Internal, p.ID, "create platform", err)
	}
	r.audit("create_platform", principal, map[string]string{"id": p.ID, "name": name})
	return p, nil
}

// CreateProject inserts a project after checking name uniqueness within
// its platform scope — or within the unassigned scope when platformID is
// empty.
func (r *Repository) CreateProject(name, platformID string, isRestricted bool, principal string) (*types.Project, error) {
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "project name required")
	}
	if platformID != "" {
		if _, err := r.backend.GetPlatform(platformID); err != nil {
			return nil, errs.Wrap(errs.NotFound, platformID, "platform not found", err)
		}
	}

	siblings, err := r.backend.ListProjects()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "", "list projects", err)
	}
	for _, p := range siblings {
		if p.PlatformID == platformID && p.Name == name {
			return nil, errs.New(errs.Conflict, "project name already in use in this scope")
		}
	}

	now := time.Now()
	p := &types.Project{
		ID:           uuid.NewString(),
		Name:         name,
		PlatformID:   platformID,
		IsRestricted: isRestricted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.backend.CreateProject(p); err != nil {
		return nil, errs.Wrap(errs.Internal, p.ID, "create project", err)
	}
	r.audit("create_project", principal, map[string]string{"id": p.ID, "name": name, "platform_id": platformID})
	return p, nil
}

// CreateFolder inserts a folder after checking sibling-name uniqueness
// under the same parent (or project root, when parentFolderID is empty).
func (r *Repository) CreateFolder(name, projectID, parentFolderID, principal string) (*types.Folder, error) {
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "folder name required")
	}
	if _, err := r.backend.GetProject(projectID); err != nil {
		return nil, errs.Wrap(errs.NotFound, projectID, "project not found", err)
	}

	var siblings []*types.Folder
	var err error
	if parentFolderID == "" {
		all, lerr := r.backend.ListFoldersByProject(projectID)
		err = lerr
		siblings = rootFolders(all)
	} else {
		if _, gerr := r.backend.GetFolder(parentFolderID); gerr != nil {
			return nil, errs.Wrap(errs.NotFound, parentFolderID, "parent folder not found", gerr)
		}
		siblings, err = r.backend.ListFoldersByParent(parentFolderID)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, projectID, "list sibling folders", err)
	}
	for _, f := range siblings {
		if f.Name == name {
			return nil, errs.New(errs.Conflict, "folder name already in use under this parent")
		}
	}

	f := &types.Folder{
		ID:             uuid.NewString(),
		Name:           name,
		ProjectID:      projectID,
		ParentFolderID: parentFolderID,
		CreatedAt:      time.Now(),
	}
	if err := r.backend.CreateFolder(f); err != nil {
		return nil, errs.Wrap(errs.Internal, f.ID, "create folder", err)
	}
	r.audit("create_folder", principal, map[string]string{"id": f.ID, "name": name, "project_id": projectID})
	return f, nil
}

// CreateFile inserts a file record. Rows are attached separately via
// BulkUpsertRows (the upload flow computes RowCount from what it wrote).
func (r *Repository) CreateFile(name, projectID, folderID string, format types.FileFormat, principal string) (*types.File, error) {
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "file name required")
	}
	if _, err := r.backend.GetProject(projectID); err != nil {
		return nil, errs.Wrap(errs.NotFound, projectID, "project not found", err)
	}
	if folderID != "" {
		if _, err := r.backend.GetFolder(folderID); err != nil {
			return nil, errs.Wrap(errs.NotFound, folderID, "folder not found", err)
		}
	}

	now := time.Now()
	f := &types.File{
		ID:        uuid.NewString(),
		Name:      name,
		ProjectID: projectID,
		FolderID:  folderID,
		Format:    format,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.backend.CreateFile(f); err != nil {
		return nil, errs.Wrap(errs.Internal, f.ID, "create file", err)
	}
	r.audit("create_file", principal, map[string]string{"id": f.ID, "name": name, "project_id": projectID})
	return f, nil
}

// isAncestorOrSelf reports whether candidateID names folderID itself or
// any folder in its subtree, by walking parent pointers from candidateID
// up to the root. Used by Move to refuse a move that would create a cycle.
func (r *Repository) isAncestorOrSelf(folderID, candidateID string) (bool, error) {
	seen := make(map[string]bool)
	cur := candidateID
	for cur != "" {
		if cur == folderID {
			return true, nil
		}
		if seen[cur] {
			// Already-corrupt cycle in stored data; stop rather than loop forever.
			return false, nil
		}
		seen[cur] = true
		f, err := r.backend.GetFolder(cur)
		if err != nil {
			return false, nil
		}
		cur = f.ParentFolderID
	}
	return false, nil
}
