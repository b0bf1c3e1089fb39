package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/sync"
	"github.com/ldmsys/ldm/pkg/types"
)

func (s *Server) handleListChildren(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	kind := types.TrashItemType(c.QueryParam("kind"))
	id := c.QueryParam("id")
	if kind == types.TrashPlatform || kind == types.TrashProject {
		if err := requireScope(id, p); err != nil {
			return err
		}
	}
	children, err := s.deps.Repo.ListChildren(kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, children)
}

type createPlatformRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsRestricted bool   `json:"is_restricted"`
}

func (s *Server) handleCreatePlatform(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req createPlatformRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	platform, err := s.deps.Repo.CreatePlatform(req.Name, req.Description, req.IsRestricted, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, platform)
}

type createProjectRequest struct {
	Name         string `json:"name"`
	PlatformID   string `json:"platform_id"`
	IsRestricted bool   `json:"is_restricted"`
}

func (s *Server) handleCreateProject(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if req.PlatformID != "" {
		if err := requireScope(req.PlatformID, p); err != nil {
			return err
		}
	}
	project, err := s.deps.Repo.CreateProject(req.Name, req.PlatformID, req.IsRestricted, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, project)
}

type createFolderRequest struct {
	Name           string `json:"name"`
	ProjectID      string `json:"project_id"`
	ParentFolderID string `json:"parent_folder_id"`
}

func (s *Server) handleCreateFolder(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req createFolderRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := requireScope(req.ProjectID, p); err != nil {
		return err
	}
	folder, err := s.deps.Repo.CreateFolder(req.Name, req.ProjectID, req.ParentFolderID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, folder)
}

type renameRequest struct {
	Kind    types.TrashItemType `json:"kind"`
	ID      string              `json:"id"`
	NewName string              `json:"new_name"`
}

func (s *Server) handleRename(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.Repo.Rename(req.Kind, req.ID, req.NewName, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type moveRequest struct {
	Kind              types.TrashItemType `json:"kind"`
	ID                string              `json:"id"`
	NewParentFolderID string              `json:"new_parent_folder_id"`
}

func (s *Server) handleMove(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.Repo.Move(req.Kind, req.ID, req.NewParentFolderID, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type moveCrossProjectRequest struct {
	FileID       string `json:"file_id"`
	NewProjectID string `json:"new_project_id"`
}

func (s *Server) handleMoveCrossProject(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req moveCrossProjectRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := requireScope(req.NewProjectID, p); err != nil {
		return err
	}
	if err := s.deps.Repo.MoveCrossProject(req.FileID, req.NewProjectID, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type copyRequest struct {
	Kind types.TrashItemType `json:"kind"`
	ID   string              `json:"id"`
	// NewParentID is a folder or project id for files/folders, a
	// platform id (or empty for the unassigned scope) for projects, and
	// ignored for platforms.
	NewParentID string `json:"new_parent_id"`
}

func (s *Server) handleCopy(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req copyRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	newID, err := s.deps.Repo.Copy(req.Kind, req.ID, req.NewParentID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"new_id": newID})
}

type softDeleteRequest struct {
	Kind types.TrashItemType `json:"kind"`
	ID   string              `json:"id"`
}

func (s *Server) handleSoftDelete(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req softDeleteRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	item, err := s.deps.Repo.SoftDelete(req.Kind, req.ID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

type trashIDRequest struct {
	TrashID string `json:"trash_id"`
}

func (s *Server) handleRestore(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req trashIDRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	result, err := s.deps.Repo.Restore(req.TrashID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handlePurge(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req trashIDRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.Repo.Purge(req.TrashID, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListTrash(c echo.Context) error {
	items, err := s.deps.Repo.ListTrash()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// handleEmptyTrash empties both the authoritative/local Repo trash and
// the Offline sandbox trash in one action, per the "empty recycle bin
// empties both" contract sync.EmptyRecycleBin implements.
func (s *Server) handleEmptyTrash(c echo.Context) error {
	result := sync.EmptyRecycleBin(s.deps.Repo, s.deps.Offline)
	if result.Failed() {
		return c.JSON(http.StatusMultiStatus, result)
	}
	return c.JSON(http.StatusOK, result)
}
