package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/types"
)

type syncSubscribeRequest struct {
	ItemType types.SyncItemType `json:"item_type"`
	ItemID   string             `json:"item_id"`
}

func (s *Server) handleSyncSubscribe(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req syncSubscribeRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	sub, err := s.deps.SyncEngine.Subscribe(p.UserID, req.ItemType, req.ItemID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sub)
}

func (s *Server) handleSyncUnsubscribe(c echo.Context) error {
	if err := s.deps.SyncEngine.Unsubscribe(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSyncListSubscriptions(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	subs, err := s.deps.SyncEngine.ListSubscriptions(p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subs)
}

type syncPushRequest struct {
	FileID        string `json:"file_id"`
	DestProjectID string `json:"dest_project_id"`
}

// handleSyncPush schedules the local-to-central promotion as a
// types.ClassUpload Operation since it re-keys and re-writes every row
// of the file being promoted.
func (s *Server) handleSyncPush(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req syncPushRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := requireScope(req.DestProjectID, p); err != nil {
		return err
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "sync",
		Function:    "push",
		DisplayName: "Push file to central",
		Class:       types.ClassUpload,
		FileInfo:    map[string]string{"file_id": req.FileID, "dest_project_id": req.DestProjectID},
	}
	err := s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		result, err := s.deps.SyncEngine.Push(ctx, req.FileID, req.DestProjectID, yield)
		if err != nil {
			return err
		}
		op.Result = map[string]string{"new_file_id": result.NewFileID, "row_count": itoa(result.RowCount)}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, op)
}

func (s *Server) handleSyncPull(c echo.Context) error {
	result, err := s.deps.SyncEngine.Delta(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
