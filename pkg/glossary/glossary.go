// Package glossary extracts candidate terminology from a file's source
// text, for file.extract_glossary. Export to a human-editable workbook
// is an external collaborator; this package only produces the candidate
// term list.
package glossary

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ldmsys/ldm/pkg/tm"
	"github.com/ldmsys/ldm/pkg/types"
)

// Term is one candidate glossary entry: a source phrase repeated across
// rows, with an example target pulled from the first row it appeared in
// translated.
type Term struct {
	Source       string
	Count        int
	ExampleTarget string
}

var wordSplit = regexp.MustCompile(`\s+`)

// Extract scans rows for source phrases (1 to maxPhraseLen words) that
// recur at least minCount times, ranked by descending frequency then
// alphabetically. It reuses pkg/tm's normalization so a glossary term
// and a TM entry for the same text hash identically.
func Extract(rows []*types.Row, maxPhraseLen, minCount int) []Term {
	if maxPhraseLen <= 0 {
		maxPhraseLen = 3
	}
	if minCount <= 0 {
		minCount = 2
	}

	counts := make(map[string]int)
	examples := make(map[string]string)

	for _, row := range rows {
		normalized := tm.Normalize(row.Source)
		if normalized == "" {
			continue
		}
		words := wordSplit.Split(normalized, -1)
		for n := 1; n <= maxPhraseLen && n <= len(words); n++ {
			for i := 0; i+n <= len(words); i++ {
				phrase := strings.Join(words[i:i+n], " ")
				if len(phrase) < 3 {
					continue
				}
				counts[phrase]++
				if _, ok := examples[phrase]; !ok && row.Target != "" {
					examples[phrase] = row.Target
				}
			}
		}
	}

	terms := make([]Term, 0, len(counts))
	for phrase, n := range counts {
		if n < minCount {
			continue
		}
		terms = append(terms, Term{Source: phrase, Count: n, ExampleTarget: examples[phrase]})
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Source < terms[j].Source
	})

	return terms
}
