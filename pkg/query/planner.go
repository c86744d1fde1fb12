package query

import (
	"github.com/semgeo/semgeo/pkg/store"
)

// QueryPlanner orders triple patterns using index statistics.
type QueryPlanner struct {
	stats store.IndexStats
}

// NewQueryPlanner creates a new query planner with index statistics.
func NewQueryPlanner(stats store.IndexStats) *QueryPlanner {
	return &QueryPlanner{
		stats: stats,
	}
}

// OrderPatterns reorders a block of triple patterns for execution. It picks
// the most selective pattern first, then prefers patterns that share a
// variable with those already placed so no step produces a cross product
// when a connected pattern is available. bound holds variables (with ?)
// already bound by the surrounding solutions.
func (qp *QueryPlanner) OrderPatterns(patterns []TriplePattern, bound map[string]bool) []TriplePattern {
	if len(patterns) <= 1 {
		return patterns
	}

	known := make(map[string]bool, len(bound))
	for v := range bound {
		known[v] = true
	}

	remaining := make([]TriplePattern, len(patterns))
	copy(remaining, patterns)
	ordered := make([]TriplePattern, 0, len(patterns))

	for len(remaining) > 0 {
		best := -1
		bestConnected := false
		bestSelectivity := 0.0

		for i, pattern := range remaining {
			connected := len(known) == 0 || sharesKnownVariable(pattern, known)
			selectivity := qp.estimateSelectivity(pattern, known)
			switch {
			case best < 0,
				connected && !bestConnected,
				connected == bestConnected && selectivity < bestSelectivity:
				best, bestConnected, bestSelectivity = i, connected, selectivity
			}
		}

		chosen := remaining[best]
		ordered = append(ordered, chosen)
		for _, v := range chosen.Variables() {
			known[v] = true
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return ordered
}

func sharesKnownVariable(pattern TriplePattern, known map[string]bool) bool {
	for _, v := range pattern.Variables() {
		if known[v] {
			return true
		}
	}
	return false
}

// estimateSelectivity estimates the selectivity of a triple pattern.
// Lower values = more selective (fewer results expected). Variables already
// bound count as constants of unknown value.
func (qp *QueryPlanner) estimateSelectivity(pattern TriplePattern, known map[string]bool) float64 {
	if qp.stats.TotalTriples == 0 {
		return 1.0
	}

	total := float64(qp.stats.TotalTriples)
	selectivity := total
	boundCount := 0

	narrow := func(counts map[string]int, term string) {
		boundCount++
		if IsVariable(term) {
			// bound at run time, value unknown at plan time
			selectivity *= 0.5
			return
		}
		count, ok := counts[term]
		switch {
		case !ok:
			selectivity *= 0.1
		case boundCount == 1:
			selectivity = float64(count)
		default:
			selectivity *= float64(count) / total
		}
	}

	if !IsVariable(pattern.Subject) || known[pattern.Subject] {
		narrow(qp.stats.SubjectCounts, pattern.Subject)
	}
	if pattern.Path != nil {
		// paths may traverse the whole graph
		selectivity *= 2
	} else if !IsVariable(pattern.Predicate) || known[pattern.Predicate] {
		narrow(qp.stats.PredicateCounts, pattern.Predicate)
	}
	if !IsVariable(pattern.Object) || known[pattern.Object] {
		narrow(qp.stats.ObjectCounts, pattern.Object)
	}

	// Ensure minimum selectivity to avoid division issues
	if selectivity < 0.1 {
		selectivity = 0.1
	}

	return selectivity
}
