package tm

import (
	"context"
	"fmt"

	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/scheduler"
	"github.com/ldmsys/ldm/pkg/types"
)

// PretranslateOptions bounds how aggressively the cascade applies
// matches during pre-translation.
type PretranslateOptions struct {
	// TierCap is the lowest-confidence tier (inclusive) a match may come
	// from and still be applied; anything below never counts, regardless
	// of score.
	TierCap types.CascadeTier
	// ScoreFloor is the minimum score a match must clear even within
	// TierCap.
	ScoreFloor float64
}

var tierRank = map[types.CascadeTier]int{
	types.TierExact:           0,
	types.TierCaseInsensitive: 1,
	types.TierFuzzyChar:       2,
	types.TierSemanticFast:    3,
	types.TierSemanticDeep:    4,
}

func (o PretranslateOptions) accepts(m types.CascadeMatch) bool {
	if m.Score < o.ScoreFloor {
		return false
	}
	return tierRank[m.Tier] <= tierRank[o.TierCap]
}

// PretranslateResult summarizes what Pretranslate did, for the
// Operation's terminal result.
type PretranslateResult struct {
	TotalRows     int
	Matched       int
	TierCounts    map[types.CascadeTier]int
	RemainPending int
}

// Pretranslate applies tmID's cascade to every pending row of fileID, in
// batches, yielding progress roughly every 500 rows and honoring
// cancellation between batches. It is meant to run as a
// scheduler.WorkFunc body — see types.ClassPretranslation — so it is
// tracked as an Operation, not called directly from a request handler.
func (e *Engine) Pretranslate(ctx context.Context, tmID, fileID string, opts PretranslateOptions, yield scheduler.Yield) (*PretranslateResult, error) {
	if _, err := e.store.GetFile(fileID); err != nil {
		return nil, errs.Wrap(errs.NotFound, fileID, "file not found", err)
	}

	cascade, err := e.cascadeFor(tmID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.ListRowsByFile(fileID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, fileID, "list rows for pretranslation", err)
	}

	result := &PretranslateResult{
		TotalRows:  len(rows),
		TierCounts: make(map[types.CascadeTier]int),
	}

	const batchSize = 500
	batch := make([]*types.Row, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.BulkUpsertRows(batch); err != nil {
			return errs.Wrap(errs.Internal, fileID, "apply pretranslated rows", err)
		}
		batch = batch[:0]
		return nil
	}

	for i, row := range rows {
		if row.Status != types.RowStatusPending {
			continue
		}
		if m, ok := cascade.Lookup(row.Source); ok && opts.accepts(m) {
			row.Target = m.Target
			row.Status = types.RowStatusTranslated
			if row.Metadata == nil {
				row.Metadata = make(map[string]string)
			}
			row.Metadata["pretranslate_tier"] = string(m.Tier)
			batch = append(batch, row)
			result.Matched++
			result.TierCounts[m.Tier]++
		} else {
			result.RemainPending++
		}

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}

		if (i+1)%batchSize == 0 || i == len(rows)-1 {
			pct := ((i + 1) * 100) / max(len(rows), 1)
			if yield != nil {
				if err := yield(pct, rowProgressText(i+1, len(rows))); err != nil {
					_ = flush()
					return result, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

func rowProgressText(done, total int) string {
	return fmt.Sprintf("pretranslating row %d of %d", done, total)
}
