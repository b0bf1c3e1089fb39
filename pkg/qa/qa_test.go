package qa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ldmsys/ldm/pkg/types"
)

func row(id, source, target string, status types.RowStatus) *types.Row {
	return &types.Row{ID: id, Source: source, Target: target, Status: status}
}

func codesFor(issues []Issue, rowID string) []IssueCode {
	var codes []IssueCode
	for _, issue := range issues {
		if issue.RowID == rowID {
			codes = append(codes, issue.Code)
		}
	}
	return codes
}

func TestPendingEmptyTargetIsUntranslated(t *testing.T) {
	issues := Run([]*types.Row{row("r1", "기습", "", types.RowStatusPending)})
	require.Equal(t, []IssueCode{IssueUntranslated}, codesFor(issues, "r1"))
}

func TestTranslatedEmptyTargetIsEmptyTarget(t *testing.T) {
	issues := Run([]*types.Row{row("r1", "기습", "  ", types.RowStatusTranslated)})
	require.Equal(t, []IssueCode{IssueEmptyTarget}, codesFor(issues, "r1"))
}

func TestPlaceholderMismatch(t *testing.T) {
	issues := Run([]*types.Row{
		row("ok", "Gold: %d", "골드: %d", types.RowStatusTranslated),
		row("bad", "Gold: %d", "골드", types.RowStatusTranslated),
	})
	require.Empty(t, codesFor(issues, "ok"))
	require.Contains(t, codesFor(issues, "bad"), IssuePlaceholderMismatch)
}

func TestBrTagCountMismatch(t *testing.T) {
	issues := Run([]*types.Row{
		row("ok", "one<br/>two", "하나<br/>둘", types.RowStatusTranslated),
		row("bad", "one<br/>two", "하나 둘", types.RowStatusTranslated),
	})
	require.Empty(t, codesFor(issues, "ok"))
	require.Contains(t, codesFor(issues, "bad"), IssueTagMismatch)
}

func TestWhitespaceChecks(t *testing.T) {
	issues := Run([]*types.Row{
		row("dbl", "hello", "hi  there", types.RowStatusTranslated),
		row("trail", "hello", "hi there ", types.RowStatusTranslated),
	})
	require.Contains(t, codesFor(issues, "dbl"), IssueDoubleSpace)
	require.Contains(t, codesFor(issues, "trail"), IssueTrailingWhitespace)
}
