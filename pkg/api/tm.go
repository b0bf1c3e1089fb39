package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/tm"
	"github.com/ldmsys/ldm/pkg/types"
)

type createTMRequest struct {
	Name        string `json:"name"`
	SourceLang  string `json:"source_lang"`
	TargetLang  string `json:"target_lang"`
	ProjectID   string `json:"project_id"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTM(c echo.Context) error {
	var req createTMRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	t, err := s.deps.TM.CreateTM(req.Name, req.SourceLang, req.TargetLang, req.ProjectID, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

type importTMRequest struct {
	Pairs []tm.ImportPair `json:"pairs"`
}

// handleImportTM schedules the import as a types.ClassIndexing Operation
// since it ends by rebuilding the TM's vector index.
func (s *Server) handleImportTM(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	tmID := c.Param("id")
	var req importTMRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "tm",
		Function:    "import",
		DisplayName: "Import TM entries",
		Class:       types.ClassIndexing,
		FileInfo:    map[string]string{"tm_id": tmID},
	}
	pairs := req.Pairs
	err := s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		_, err := s.deps.TM.ImportEntries(tmID, pairs, func(done, total int) error {
			pct := 0
			if total > 0 {
				pct = (done * 100) / total
			}
			return yield(pct, "importing tm entries")
		})
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, op)
}

type activateTMRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleActivateTM(c echo.Context) error {
	var req activateTMRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if err := s.deps.TM.SetActive(req.SessionID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeactivateTM(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	s.deps.TM.Deactivate(sessionID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearchTM(c echo.Context) error {
	text := c.QueryParam("text")
	k := 10
	matches, err := s.deps.TM.Search(c.Param("id"), text, k, 0)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, matches)
}

type pretranslateRequest struct {
	FileID     string             `json:"file_id"`
	TierCap    types.CascadeTier  `json:"tier_cap"`
	ScoreFloor float64            `json:"score_floor"`
}

// handlePretranslateTM schedules tm.Pretranslate as a
// types.ClassPretranslation Operation; the route name echoes
// tm.pretranslate(file_id, engine_id) but the TM itself is the engine,
// identified by the path id.
func (s *Server) handlePretranslateTM(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	tmID := c.Param("id")
	var req pretranslateRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	if req.TierCap == "" {
		req.TierCap = types.TierFuzzyChar
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "tm",
		Function:    "pretranslate",
		DisplayName: "Pretranslate file",
		Class:       types.ClassPretranslation,
		FileInfo:    map[string]string{"tm_id": tmID, "file_id": req.FileID},
	}
	opts := tm.PretranslateOptions{TierCap: req.TierCap, ScoreFloor: req.ScoreFloor}
	err := s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		result, err := s.deps.TM.Pretranslate(ctx, tmID, req.FileID, opts, yield)
		if err != nil {
			return err
		}
		op.Result = map[string]string{
			"total_rows": itoa(result.TotalRows),
			"matched":    itoa(result.Matched),
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, op)
}

func (s *Server) handleDeleteTM(c echo.Context) error {
	if err := s.deps.TM.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
