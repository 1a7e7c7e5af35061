package summarizer

import (
	"fmt"
	"sort"
	"strings"
)

// FrequencySummarizer describes a corpus by its most widespread terms. It
// works on normalized text, so stop-words and inflections are already gone.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a term-frequency corpus summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

// Summarize returns "N documents; frequent terms: a, b, c" with terms ranked
// by document frequency, then total frequency, then alphabetically.
func (s *FrequencySummarizer) Summarize(normalized []string, maxTerms int) (string, error) {
	if maxTerms <= 0 {
		maxTerms = 5
	}
	terms := TopTerms(normalized, maxTerms)
	noun := "documents"
	if len(normalized) == 1 {
		noun = "document"
	}
	if len(terms) == 0 {
		return fmt.Sprintf("%d %s", len(normalized), noun), nil
	}
	return fmt.Sprintf("%d %s; frequent terms: %s", len(normalized), noun, strings.Join(terms, ", ")), nil
}

// TopTerms returns up to n terms ordered by how many documents contain them.
func TopTerms(normalized []string, n int) []string {
	type stat struct {
		term  string
		df    int
		total int
	}
	stats := map[string]*stat{}
	for _, text := range normalized {
		seen := map[string]struct{}{}
		for _, tok := range strings.Fields(text) {
			st, ok := stats[tok]
			if !ok {
				st = &stat{term: tok}
				stats[tok] = st
			}
			st.total++
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				st.df++
			}
		}
	}
	ranked := make([]*stat, 0, len(stats))
	for _, st := range stats {
		ranked = append(ranked, st)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].df != ranked[j].df {
			return ranked[i].df > ranked[j].df
		}
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].term < ranked[j].term
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = ranked[i].term
	}
	return out
}
