package api

import (
	"strconv"

	"github.com/ldmsys/ldm/pkg/codec"
	"github.com/ldmsys/ldm/pkg/types"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func toCodecRows(rows []*types.Row) []codec.Row {
	out := make([]codec.Row, len(rows))
	for i, row := range rows {
		out[i] = codec.Row{
			Index:    row.Index,
			Source:   row.Source,
			Target:   row.Target,
			StringID: row.StringID,
			Metadata: row.Metadata,
		}
	}
	return out
}
