// Package repository presents one hierarchy contract over two backends:
// the authoritative cluster (Raft-replicated, see pkg/manager) and the
// local single-user store (offline sandbox, no Raft). Higher-level
// operations — rename, move, copy, soft delete, restore, purge — are
// implemented exactly once here and work identically against either
// Backend.
package repository

import (
	"time"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/rs/zerolog"
)

// Repository drives hierarchy operations against a Backend, adding the
// domain logic (trash snapshotting, retention, audit) the Backend itself
// doesn't know about.
type Repository struct {
	backend        Backend
	trashRetention time.Duration
	logger         zerolog.Logger
}

// New creates a Repository over backend. trashRetention controls how long
// a soft-deleted item survives before PurgeExpired removes it for good.
func New(backend Backend, trashRetention time.Duration) *Repository {
	return &Repository{
		backend:        backend,
		trashRetention: trashRetention,
		logger:         log.WithComponent("repository"),
	}
}

func (r *Repository) audit(kind, principal string, detail map[string]string) {
	if err := r.backend.AppendAuditEvent(&types.AuditEvent{
		Timestamp: time.Now(),
		Kind:      kind,
		Principal: principal,
		Detail:    detail,
	}); err != nil {
		r.logger.Error().Err(err).Str("kind", kind).Msg("failed to append audit event")
	}
}

// Children is the combined result of ListChildren: at most two of its
// fields are populated depending on the parent kind (a platform has
// projects; a project or folder has folders and files).
type Children struct {
	Projects []*types.Project
	Folders  []*types.Folder
	Files    []*types.File
}

// Backend exposes the underlying Backend for callers that need a read
// only a passthrough covers (fetching a single row or file by id,
// listing a file's rows) without Repository growing a forwarding method
// for every Backend getter.
func (r *Repository) Backend() Backend {
	return r.backend
}

// ListChildren lists the direct children of a platform, project or
// folder. parentKind is one of types.TrashPlatform, types.TrashProject,
// types.TrashFolder.
func (r *Repository) ListChildren(parentKind types.TrashItemType, parentID string) (*Children, error) {
	switch parentKind {
	case types.TrashPlatform:
		projects, err := r.backend.ListProjectsByPlatform(parentID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentID, "list projects by platform", err)
		}
		return &Children{Projects: projects}, nil

	case types.TrashProject:
		folders, err := r.backend.ListFoldersByProject(parentID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentID, "list folders by project", err)
		}
		files, err := r.backend.ListFilesByProject(parentID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentID, "list files by project", err)
		}
		return &Children{Folders: rootFolders(folders), Files: rootFiles(files)}, nil

	case types.TrashFolder:
		folders, err := r.backend.ListFoldersByParent(parentID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentID, "list folders by parent", err)
		}
		files, err := r.backend.ListFilesByFolder(parentID)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, parentID, "list files by folder", err)
		}
		return &Children{Folders: folders, Files: files}, nil

	default:
		return nil, errs.New(errs.InvalidArgument, "unknown parent kind")
	}
}

// rootFolders filters a project's folders down to ones with no parent
// folder, since ListFoldersByProject returns the whole subtree.
func rootFolders(folders []*types.Folder) []*types.Folder {
	out := make([]*types.Folder, 0, len(folders))
	for _, f := range folders {
		if f.ParentFolderID == "" {
			out = append(out, f)
		}
	}
	return out
}

// rootFiles filters a project's files down to ones living directly in the
// project root, not inside any folder.
func rootFiles(files []*types.File) []*types.File {
	out := make([]*types.File, 0, len(files))
	for _, f := range files {
		if f.FolderID == "" {
			out = append(out, f)
		}
	}
	return out
}
