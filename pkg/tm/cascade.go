package tm

import (
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/xrash/smetrics"
)

// Cascade runs the 5-tier lookup against one loaded TM: exact hash, then
// case/whitespace-insensitive, then fuzzy-character, then semantic-fast,
// then (opt-in) semantic-deep. Tiers are tried in order and the first
// non-empty match wins; each match is annotated with the tier that
// produced it.
type Cascade struct {
	tm          *loadedTM
	fuzzyMin    float64
	semanticMin float64
	enableDeep  bool
}

// loadedTM is the in-memory state Engine keeps per active TM: its
// entries (for tiers 1-3) plus the fast and, if enabled, deep vector
// indexes (tiers 4-5). Rebuilt wholesale on import; see Engine.rebuild.
type loadedTM struct {
	tm *types.TM

	byHash     map[string]*types.TMEntry // tier 1: source_hash -> entry
	byCasefold map[string]*types.TMEntry // tier 2: casefolded normalized -> entry
	ordered    []*types.TMEntry          // insertion order, for tier 3 and Search tie-breaks

	fastIndex *VectorIndex
	deepIndex *VectorIndex
}

// Lookup runs the cascade against text and returns the first tier's
// match, or ok=false if nothing cleared every tier's threshold. A tier
// that can't produce a confident match just falls through to the next;
// nothing here surfaces as an error.
func (c *Cascade) Lookup(text string) (types.CascadeMatch, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return types.CascadeMatch{}, false
	}

	// Tier 1: exact hash match.
	if e, ok := c.tm.byHash[Hash(normalized)]; ok {
		return match(e, 1.0, types.TierExact), true
	}

	// Tier 2: case/whitespace-insensitive exact match on normalized form.
	if e, ok := c.tm.byCasefold[Casefold(normalized)]; ok {
		return match(e, 1.0, types.TierCaseInsensitive), true
	}

	// Tier 3: fuzzy character similarity (Jaro-Winkler) over the
	// normalized source, above the configured threshold.
	if e, score, ok := c.bestFuzzyMatch(normalized); ok && score >= c.fuzzyMin {
		return match(e, score, types.TierFuzzyChar), true
	}

	// Tier 4: semantic-fast nearest neighbor.
	if c.tm.fastIndex != nil {
		if entryID, score, ok := c.tm.fastIndex.Nearest(normalized); ok && score >= c.semanticMin {
			if e, found := c.entryByID(entryID); found {
				return match(e, score, types.TierSemanticFast), true
			}
		}
	}

	// Tier 5: semantic-deep, opt-in only.
	if c.enableDeep && c.tm.deepIndex != nil {
		if entryID, score, ok := c.tm.deepIndex.Nearest(normalized); ok && score >= c.semanticMin {
			if e, found := c.entryByID(entryID); found {
				return match(e, score, types.TierSemanticDeep), true
			}
		}
	}

	return types.CascadeMatch{}, false
}

func (c *Cascade) bestFuzzyMatch(normalized string) (*types.TMEntry, float64, bool) {
	var best *types.TMEntry
	bestScore := -1.0
	for _, e := range c.tm.ordered {
		score := fuzzyCharScore(normalized, e.NormalizedSource)
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestScore, true
}

// fuzzyCharScore blends Jaro-Winkler (rewards shared prefixes, cheap to
// compute) with a normalized Levenshtein edit-distance ratio (penalizes
// insertions/deletions Jaro-Winkler underweights), averaged evenly.
func fuzzyCharScore(a, b string) float64 {
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	lev := 1.0
	if maxLen > 0 {
		lev = 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
		if lev < 0 {
			lev = 0
		}
	}
	return (jw + lev) / 2
}

func (c *Cascade) entryByID(entryID string) (*types.TMEntry, bool) {
	for _, e := range c.tm.ordered {
		if e.EntryID == entryID {
			return e, true
		}
	}
	return nil, false
}

func match(e *types.TMEntry, score float64, tier types.CascadeTier) types.CascadeMatch {
	return types.CascadeMatch{
		EntryID: e.EntryID,
		Source:  e.Source,
		Target:  e.Target,
		Score:   score,
		Tier:    tier,
	}
}

// Search is a general-purpose ranked lookup over the whole TM, distinct
// from the cascade used by pre-translation. Candidates are scored by
// fuzzy-character similarity, filtered to minScore, sorted by score
// descending with ties broken by earlier insertion, and capped at k.
func (c *Cascade) Search(text string, k int, minScore float64) []types.CascadeMatch {
	normalized := Normalize(text)
	type scored struct {
		match types.CascadeMatch
		order int
	}
	var candidates []scored
	for i, e := range c.tm.ordered {
		score := fuzzyCharScore(normalized, e.NormalizedSource)
		if score < minScore {
			continue
		}
		candidates = append(candidates, scored{
			match: types.CascadeMatch{
				EntryID: e.EntryID,
				Source:  e.Source,
				Target:  e.Target,
				Score:   score,
				Tier:    types.TierFuzzyChar,
			},
			order: i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].match.Score != candidates[j].match.Score {
			return candidates[i].match.Score > candidates[j].match.Score
		}
		return candidates[i].order < candidates[j].order
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]types.CascadeMatch, len(candidates))
	for i, c := range candidates {
		out[i] = c.match
	}
	return out
}
