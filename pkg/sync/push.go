package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/types"
)

// PushResult is what Push returns once an upload completes.
type PushResult struct {
	NewFileID string
	RowCount  int
}

// Push promotes a local (offline) file into the authoritative store under
// destProjectID, copying its rows byte-for-byte. It is meant to run inside
// a scheduler.WorkFunc (see types.ClassUpload) so the upload is tracked as
// an Operation; yield may be nil for a direct, synchronous call.
func (e *Engine) Push(ctx context.Context, localFileID, destProjectID string, yield scheduler.Yield) (*PushResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncPushDuration)

	localFile, err := e.local.GetFile(localFileID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, localFileID, "local file not found", err)
	}
	if _, err := e.central.GetProject(destProjectID); err != nil {
		return nil, errs.Wrap(errs.NotFound, destProjectID, "destination project not found", err)
	}

	rows, err := e.local.ListRowsByFile(localFileID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, localFileID, "list local rows for push", err)
	}

	newFileID := uuid.NewString()
	central := &types.File{
		ID:        newFileID,
		Name:      localFile.Name,
		ProjectID: destProjectID,
		Format:    localFile.Format,
		RowCount:  len(rows),
	}
	if err := e.central.CreateFile(central); err != nil {
		return nil, errs.Wrap(errs.Internal, newFileID, "create central file for push", err)
	}
	if yield != nil {
		if err := yield(10, "created destination file"); err != nil {
			return nil, err
		}
	}

	copies := make([]*types.Row, len(rows))
	for i, r := range rows {
		copies[i] = &types.Row{
			ID:       fmt.Sprintf("%s-row-%d", newFileID, r.Index),
			FileID:   newFileID,
			Index:    r.Index,
			Source:   r.Source,
			Target:   r.Target,
			Status:   r.Status,
			StringID: r.StringID,
			Metadata: r.Metadata,
		}
	}
	if len(copies) > 0 {
		if err := e.central.BulkUpsertRows(copies); err != nil {
			return nil, errs.Wrap(errs.Internal, newFileID, "upload rows to central", err)
		}
	}
	if yield != nil {
		if err := yield(100, "upload complete"); err != nil {
			return nil, err
		}
	}

	if err := e.central.AppendAuditEvent(&types.AuditEvent{
		Kind: "sync.push",
		Detail: map[string]string{
			"local_file_id": localFileID,
			"new_file_id":   newFileID,
			"project_id":    destProjectID,
		},
	}); err != nil {
		e.logger.Error().Err(err).Str("file_id", newFileID).Msg("failed to append push audit event")
	}

	return &PushResult{NewFileID: newFileID, RowCount: len(copies)}, nil
}
