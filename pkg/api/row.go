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

func (s *Server) handleGetRow(c echo.Context) error {
	row, err := s.deps.Repo.Backend().GetRow(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (s *Server) handleEditRow(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var row types.Row
	if err := c.Bind(&row); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	row.ID = c.Param("id")
	if err := s.deps.Repo.EditRow(&row, p.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type bulkEditRowRequest struct {
	Rows []*types.Row `json:"rows"`
}

// handleBulkEditRow schedules the edit as a types.ClassBulkEdit
// Operation rather than applying it synchronously, so a large batch is
// cancellable and progress-reported like file.merge or tm.pretranslate.
func (s *Server) handleBulkEditRow(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	var req bulkEditRowRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if len(req.Rows) == 0 {
		return errs.New(errs.InvalidArgument, "rows required")
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "row",
		Function:    "bulk_edit",
		DisplayName: "Bulk edit rows",
		Class:       types.ClassBulkEdit,
	}
	rows := req.Rows
	err := s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		const batchSize = 500
		for i := 0; i < len(rows); i += batchSize {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			end := i + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := s.deps.Repo.BulkUpsertRows(rows[i:end], p.UserID); err != nil {
				return err
			}
			pct := (end * 100) / len(rows)
			if err := yield(pct, "editing rows"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, op)
}
