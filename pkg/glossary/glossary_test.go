package glossary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ldmsys/ldm/pkg/types"
)

func TestExtractFindsRecurringPhrases(t *testing.T) {
	rows := []*types.Row{
		{Source: "Strange Lands await", Target: "낯선 땅이 기다린다"},
		{Source: "Return to Strange Lands", Target: "낯선 땅으로 돌아가라"},
		{Source: "Ambush", Target: "기습"},
	}

	terms := Extract(rows, 2, 2)

	var found *Term
	for i := range terms {
		if terms[i].Source == "Strange Lands" {
			found = &terms[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, 2, found.Count)
	require.Equal(t, "낯선 땅이 기다린다", found.ExampleTarget)

	for _, term := range terms {
		require.NotEqual(t, "Ambush", term.Source, "single-occurrence phrase must not appear")
	}
}

func TestExtractRanksByFrequencyThenName(t *testing.T) {
	rows := []*types.Row{
		{Source: "gold coin", Target: "금화"},
		{Source: "gold coin", Target: "금화"},
		{Source: "gold coin", Target: "금화"},
		{Source: "iron sword", Target: "철검"},
		{Source: "iron sword", Target: "철검"},
	}

	terms := Extract(rows, 2, 2)
	require.NotEmpty(t, terms)
	for i := 1; i < len(terms); i++ {
		if terms[i-1].Count == terms[i].Count {
			require.LessOrEqual(t, terms[i-1].Source, terms[i].Source)
		} else {
			require.Greater(t, terms[i-1].Count, terms[i].Count)
		}
	}
	require.Equal(t, "gold coin", terms[0].Source)
	require.Equal(t, 3, terms[0].Count)
}

func TestExtractSkipsShortAndEmptySources(t *testing.T) {
	rows := []*types.Row{
		{Source: "x", Target: ""},
		{Source: "x", Target: ""},
		{Source: "", Target: ""},
	}
	require.Empty(t, Extract(rows, 3, 2))
}
