package compactor

import (
	"math/rand"
	"sort"
)

// Sampler applies binomial downsampling to high-cardinality token sets so
// they fit a fixed budget, while retaining the configured security lexicon.
// Lexicon hits bypass sampling; the rest of the budget is filled by
// independent per-token trials. The budget is a hard cap: overshoot from
// sampling variance, and lexicon hits beyond the budget, are truncated by
// lexicographic order.
type Sampler struct {
	budget  int
	lexicon map[string]struct{}
	rng     *rand.Rand
}

// NewSampler builds a sampler for one run. The rng carries the run's seed so
// repeated runs over the same input keep the same tokens.
func NewSampler(budget int, lexicon []string, rng *rand.Rand) *Sampler {
	lex := make(map[string]struct{}, len(lexicon))
	for _, t := range lexicon {
		lex[t] = struct{}{}
	}
	return &Sampler{budget: budget, lexicon: lex, rng: rng}
}

// Sample reduces tokens to at most the budget. Input order is preserved for
// survivors; lexicon tokens present in the input are kept ahead of all
// others, dropped only when they alone overflow the budget.
func (s *Sampler) Sample(tokens []string) []string {
	if len(tokens) <= s.budget {
		out := make([]string, len(tokens))
		copy(out, tokens)
		return out
	}

	var kept, rest []string
	for _, t := range tokens {
		if _, hit := s.lexicon[t]; hit {
			kept = append(kept, t)
		} else {
			rest = append(rest, t)
		}
	}

	if len(kept) >= s.budget {
		sort.Strings(kept)
		return kept[:s.budget]
	}

	remaining := s.budget - len(kept)
	if len(rest) == 0 {
		return kept
	}

	p := float64(remaining) / float64(len(rest))
	var sampled []string
	if p >= 1.0 {
		sampled = rest
	} else {
		for _, t := range rest {
			if s.rng.Float64() < p {
				sampled = append(sampled, t)
			}
		}
	}

	if len(sampled) > remaining {
		// Variance overshot the budget: drop deterministically.
		sort.Strings(sampled)
		sampled = sampled[:remaining]
	}

	return append(kept, sampled...)
}
