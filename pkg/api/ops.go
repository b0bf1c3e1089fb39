package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/events"
	"github.com/ldmsys/ldm/pkg/identity"
	"github.com/ldmsys/ldm/pkg/types"
)

func (s *Server) handleOpsList(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	ops, err := s.deps.Scheduler.ListByUser(p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ops)
}

func (s *Server) handleOpsGet(c echo.Context) error {
	op, err := s.deps.Scheduler.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, op)
}

func (s *Server) handleOpsCancel(c echo.Context) error {
	if err := s.deps.Scheduler.Cancel(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleOpsSubscribe streams operation events as Server-Sent Events. A
// client reconnecting with ?last_seq=N first gets everything it missed
// via ReplaySince, then live events as they're published.
func (s *Server) handleOpsSubscribe(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	filter := events.Filter{
		UserID:  p.UserID,
		Topic:   c.QueryParam("op_id"), // follow one operation, e.g. across a reconnect
		IsAdmin: identity.HasAtLeastRole(p, types.RoleAdmin),
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	if lastSeqParam := c.QueryParam("last_seq"); lastSeqParam != "" {
		lastSeq, err := strconv.ParseUint(lastSeqParam, 10, 64)
		if err == nil {
			if missed, ok := s.deps.Scheduler.ReplaySince(lastSeq, filter); ok {
				for _, evt := range missed {
					if err := writeSSE(c, evt); err != nil {
						return nil
					}
				}
			}
		}
	}

	sub, _ := s.deps.Scheduler.Subscribe(filter)
	defer s.deps.Scheduler.Unsubscribe(sub)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.Chan():
			if !ok {
				return nil
			}
			if err := writeSSE(c, evt); err != nil {
				return nil
			}
		}
	}
}

func writeSSE(c echo.Context, evt *events.Event) error {
	if _, err := fmt.Fprintf(c.Response(), "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, opSummary(evt)); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

func opSummary(evt *events.Event) string {
	if evt.Operation == nil {
		return "{}"
	}
	return fmt.Sprintf(`{"op_id":%q,"state":%q,"progress":%d,"step":%q}`,
		evt.Operation.OpID, evt.Operation.State, evt.Operation.Progress, evt.Operation.StepText)
}
