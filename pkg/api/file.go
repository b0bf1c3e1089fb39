package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/glossary"
	"github.com/ldmsys/ldm/pkg/qa"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/tm"
	"github.com/ldmsys/ldm/pkg/types"
)

// handleFileUpload decodes the uploaded body with the codec registered
// for the given format and stores the result as a new File plus its
// Rows, scheduled as a types.ClassUpload Operation so a large file
// doesn't block the request.
func (s *Server) handleFileUpload(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}

	name := c.FormValue("name")
	projectID := c.FormValue("project_id")
	folderID := c.FormValue("folder_id")
	format := types.FileFormat(c.FormValue("format"))
	if err := requireScope(projectID, p); err != nil {
		return err
	}

	fh, err := c.FormFile("body")
	if err != nil {
		return errs.New(errs.InvalidArgument, "multipart field \"body\" required")
	}
	src, err := fh.Open()
	if err != nil {
		return errs.Wrap(errs.Internal, "", "open uploaded file", err)
	}
	defer src.Close()

	dec, err := s.deps.Codecs.Get(format)
	if err != nil {
		return err
	}
	decoded, err := dec.Decode(src)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "", "decode uploaded file", err)
	}

	f, err := s.deps.Repo.CreateFile(name, projectID, folderID, format, p.UserID)
	if err != nil {
		return err
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "file",
		Function:    "upload",
		DisplayName: "Upload " + name,
		Class:       types.ClassUpload,
		FileInfo:    map[string]string{"file_id": f.ID},
	}
	err = s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		rows := make([]*types.Row, len(decoded))
		for i, dr := range decoded {
			status := types.RowStatusPending
			if dr.Target != "" {
				status = types.RowStatusTranslated
			}
			rows[i] = &types.Row{
				ID:       f.ID + "-row-" + itoa(dr.Index),
				FileID:   f.ID,
				Index:    dr.Index,
				Source:   dr.Source,
				Target:   dr.Target,
				StringID: dr.StringID,
				Metadata: dr.Metadata,
				Status:   status,
			}
		}
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
			pct := 100
			if len(rows) > 0 {
				pct = (end * 100) / len(rows)
			}
			if err := yield(pct, "storing rows"); err != nil {
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

func (s *Server) handleFileDownload(c echo.Context) error {
	fileID := c.Param("id")
	f, err := s.deps.Repo.Backend().GetFile(fileID)
	if err != nil {
		return err
	}
	rows, err := s.deps.Repo.Backend().ListRowsByFile(fileID)
	if err != nil {
		return err
	}
	enc, err := s.deps.Codecs.Get(f.Format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, toCodecRows(rows)); err != nil {
		return errs.Wrap(errs.Internal, fileID, "encode file", err)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", buf.Bytes())
}

type convertRequest struct {
	ToFormat types.FileFormat `json:"to_format"`
}

// handleFileConvert re-encodes a file's current rows in a different
// format without changing what's stored; the File record's own Format
// changes only if the caller then re-uploads the result.
func (s *Server) handleFileConvert(c echo.Context) error {
	fileID := c.Param("id")
	var req convertRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	rows, err := s.deps.Repo.Backend().ListRowsByFile(fileID)
	if err != nil {
		return err
	}
	enc, err := s.deps.Codecs.Get(req.ToFormat)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, toCodecRows(rows)); err != nil {
		return errs.Wrap(errs.Internal, fileID, "convert file", err)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", buf.Bytes())
}

type registerAsTMRequest struct {
	TMID string `json:"tm_id"`
}

// handleRegisterAsTM imports a file's rows (source/target pairs with a
// non-empty target) straight into an existing TM, bypassing codec
// entirely since the rows are already decoded in the store.
func (s *Server) handleRegisterAsTM(c echo.Context) error {
	fileID := c.Param("id")
	var req registerAsTMRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}
	rows, err := s.deps.Repo.Backend().ListRowsByFile(fileID)
	if err != nil {
		return err
	}
	pairs := make([]tm.ImportPair, 0, len(rows))
	for _, row := range rows {
		if row.Target == "" {
			continue
		}
		pairs = append(pairs, tm.ImportPair{Source: row.Source, Target: row.Target})
	}
	count, err := s.deps.TM.ImportEntries(req.TMID, pairs, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": count})
}

type mergeRequest struct {
	SourceFileID string `json:"source_file_id"`
}

// handleFileMerge overlays a source file's translated rows onto the
// target file's rows by matching StringID (falling back to Index when a
// row has none), scheduled as a types.ClassBulkEdit Operation.
func (s *Server) handleFileMerge(c echo.Context) error {
	p, ok := principalFrom(c)
	if !ok {
		return errs.New(errs.Unauthenticated, "no authenticated principal")
	}
	targetFileID := c.Param("id")
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return errs.New(errs.InvalidArgument, "invalid request body")
	}

	targetRows, err := s.deps.Repo.Backend().ListRowsByFile(targetFileID)
	if err != nil {
		return err
	}
	sourceRows, err := s.deps.Repo.Backend().ListRowsByFile(req.SourceFileID)
	if err != nil {
		return err
	}
	bySource := make(map[string]*types.Row, len(sourceRows))
	for _, row := range sourceRows {
		key := row.StringID
		if key == "" {
			key = itoa(row.Index)
		}
		bySource[key] = row
	}

	op := &types.Operation{
		OpID:        uuid.NewString(),
		UserID:      p.UserID,
		Tool:        "file",
		Function:    "merge",
		DisplayName: "Merge file",
		Class:       types.ClassBulkEdit,
		FileInfo:    map[string]string{"target_file_id": targetFileID, "source_file_id": req.SourceFileID},
	}
	err = s.deps.Scheduler.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		var merged []*types.Row
		for _, row := range targetRows {
			key := row.StringID
			if key == "" {
				key = itoa(row.Index)
			}
			src, ok := bySource[key]
			if !ok || src.Target == "" {
				continue
			}
			row.Target = src.Target
			row.Status = types.RowStatusTranslated
			merged = append(merged, row)
		}
		if len(merged) == 0 {
			return yield(100, "no matching rows to merge")
		}
		if err := s.deps.Repo.BulkUpsertRows(merged, p.UserID); err != nil {
			return err
		}
		return yield(100, "merged "+itoa(len(merged))+" rows")
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, op)
}

func (s *Server) handleExtractGlossary(c echo.Context) error {
	rows, err := s.deps.Repo.Backend().ListRowsByFile(c.Param("id"))
	if err != nil {
		return err
	}
	terms := glossary.Extract(rows, 3, 2)
	return c.JSON(http.StatusOK, terms)
}

func (s *Server) handleRunQA(c echo.Context) error {
	rows, err := s.deps.Repo.Backend().ListRowsByFile(c.Param("id"))
	if err != nil {
		return err
	}
	issues := qa.Run(rows)
	return c.JSON(http.StatusOK, issues)
}
