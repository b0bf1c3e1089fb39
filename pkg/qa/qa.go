// Package qa runs the row-level consistency checks behind file.run_qa.
// Report generation in Excel/XML is an external collaborator (see
// spec.md's non-goals); this package only produces the structured
// findings a caller then hands to whatever export path it wants.
package qa

import (
	"regexp"
	"strings"

	"github.com/ldmsys/ldm/pkg/types"
)

// IssueCode names a single check.
type IssueCode string

const (
	IssueEmptyTarget       IssueCode = "empty_target"
	IssueUntranslated      IssueCode = "untranslated"
	IssuePlaceholderMismatch IssueCode = "placeholder_mismatch"
	IssueDoubleSpace       IssueCode = "double_space"
	IssueTrailingWhitespace IssueCode = "trailing_whitespace"
	IssueTagMismatch       IssueCode = "tag_mismatch"
)

// Issue is one finding against a single row.
type Issue struct {
	RowID   string
	Code    IssueCode
	Message string
}

// placeholderPattern matches printf-style and brace-style placeholders
// so a translation that drops or duplicates one is caught; it does not
// attempt to parse the placeholder's type, only its presence.
var placeholderPattern = regexp.MustCompile(`%[sd]|\{[a-zA-Z0-9_]+\}`)

// tagPattern matches the XML line-break markup this domain's formats use
// in place of "\n"; a translation must keep the same tag count as its
// source.
var tagPattern = regexp.MustCompile(`<br/>`)

var doubleSpace = regexp.MustCompile(`  +`)

// Run checks every row in rows and returns the issues found, in row
// order. A row in RowStatusPending with an empty target is reported as
// untranslated rather than empty_target, since that is the expected
// state for work not yet started.
func Run(rows []*types.Row) []Issue {
	var issues []Issue
	for _, row := range rows {
		issues = append(issues, checkRow(row)...)
	}
	return issues
}

func checkRow(row *types.Row) []Issue {
	var issues []Issue

	target := row.Target
	if strings.TrimSpace(target) == "" {
		if row.Status == types.RowStatusPending {
			issues = append(issues, Issue{RowID: row.ID, Code: IssueUntranslated, Message: "row has no translation yet"})
		} else {
			issues = append(issues, Issue{RowID: row.ID, Code: IssueEmptyTarget, Message: "target is empty for a row marked " + string(row.Status)})
		}
		return issues
	}

	srcPlaceholders := placeholderPattern.FindAllString(row.Source, -1)
	tgtPlaceholders := placeholderPattern.FindAllString(target, -1)
	if !sameMultiset(srcPlaceholders, tgtPlaceholders) {
		issues = append(issues, Issue{RowID: row.ID, Code: IssuePlaceholderMismatch, Message: "placeholder set differs from source"})
	}

	if len(tagPattern.FindAllString(row.Source, -1)) != len(tagPattern.FindAllString(target, -1)) {
		issues = append(issues, Issue{RowID: row.ID, Code: IssueTagMismatch, Message: "<br/> count differs from source"})
	}

	if doubleSpace.MatchString(target) {
		issues = append(issues, Issue{RowID: row.ID, Code: IssueDoubleSpace, Message: "target contains repeated spaces"})
	}

	if target != strings.TrimRight(target, " \t") {
		issues = append(issues, Issue{RowID: row.ID, Code: IssueTrailingWhitespace, Message: "target has trailing whitespace"})
	}

	return issues
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}
