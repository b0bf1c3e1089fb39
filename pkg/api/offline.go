package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/types"
)

// offline.* operations drive Offline directly rather than Repo: the
// sandbox is a first-class sibling tree, not a flagged row inside the
// authoritative one, so it gets its own Repository instance wired over a
// LocalBackend (see cmd/ldmd's wiring) and its own route group here.
// Every offline operation still requires an authenticated principal —
// there is no further role/scope check, since the sandbox is implicitly
// scoped to whoever is running this node.

func (s *Server) handleOfflineCreateFolder(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req createFolderRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	folder, err := s.deps.Offline.CreateFolder(req.Name, req.ProjectID, req.ParentFolderID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, folder)
}

type offlineUploadFileRequest struct {
	Name      string           `json:"name"`
	ProjectID string           `json:"project_id"`
	FolderID  string           `json:"folder_id"`
	Format    types.FileFormat `json:"format"`
	Rows      []offlineRow     `json:"rows"`
}

type offlineRow struct {
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	StringID string `json:"string_id"`
}

func (s *Server) handleOfflineUploadFile(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req offlineUploadFileRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	f, err := s.deps.Offline.CreateFile(req.Name, req.ProjectID, req.FolderID, req.Format, p.UserID)
	if err != nil {
		return err
	}

	rows := make([]*types.Row, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = &types.Row{
			ID:       f.ID + "-row-" + itoa(r.Index),
			FileID:   f.ID,
			Index:    r.Index,
			Source:   r.Source,
			Target:   r.Target,
			StringID: r.StringID,
			Status:   types.RowStatusPending,
		}
		if r.Target != "" {
			rows[i].Status = types.RowStatusTranslated
		}
	}
	if len(rows) > 0 {
		if err := s.deps.Offline.BulkUpsertRows(rows, p.UserID); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusCreated, f)
}

func (s *Server) handleOfflineList(c echo.Context) error {
	kind := types.TrashItemType(c.QueryParam("kind"))
	id := c.QueryParam("id")
	children, err := s.deps.Offline.ListChildren(kind, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, children)
}

func (s *Server) handleOfflineMove(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.Offline.Move(req.Kind, req.ID, req.NewParentFolderID, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleOfflineRename(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.Offline.Rename(req.Kind, req.ID, req.NewName, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleOfflineDelete(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req softDeleteRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	item, err := s.deps.Offline.SoftDelete(req.Kind, req.ID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (s *Server) handleOfflineEmptyTrash(c echo.Context) error {
	return s.handleEmptyTrash(c)
}
