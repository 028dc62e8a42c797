package dice

import "sort"

// Substitute overwrites the local roll's individual die outcomes with
// externally supplied values and recomputes the total.
//
// Pairing is positional: the i-th local term takes the i-th external
// group, regardless of die type. This is only correct while local term
// order matches the remote payload's set order; callers that need a
// stronger guarantee should check SignatureMatches first.
//
// Within a pair, both sides are sorted ascending and values are copied
// rank-for-rank up to the shorter length; extra or missing values are
// truncated, never invented. A longer external group keeps its highest
// values, so an advantage delivery landing on a single-die term installs
// the higher die. Out-of-range external values are clamped to the die's
// valid range. The number and kind of terms never changes.
func Substitute(roll *Roll, groups []DieGroup) {
	for i, term := range roll.Terms {
		if i >= len(groups) {
			break
		}

		external := make([]int, len(groups[i].Results))
		copy(external, groups[i].Results)
		sort.Ints(external)
		sort.Ints(term.Results)

		n := len(term.Results)
		offset := 0
		if len(external) < n {
			n = len(external)
		} else {
			// Top-align a longer delivery: truncation discards the
			// lowest external values, not the highest.
			offset = len(external) - n
		}
		for j := 0; j < n; j++ {
			term.Results[j] = clampDie(external[offset+j], term.Sides)
		}
	}

	roll.Recompute()
}

// SignatureMatches reports whether the external groups line up with the
// local roll's die-type sequence. Counts are deliberately not compared:
// an advantage delivery may carry more d20 values than the nominal term
// count, and Substitute truncates to the shorter side anyway.
func SignatureMatches(roll *Roll, groups []DieGroup) bool {
	if len(groups) < len(roll.Terms) {
		return false
	}
	for i, term := range roll.Terms {
		if groups[i].DieType != term.DieType() {
			return false
		}
	}
	return true
}

// clampDie corrects an out-of-range die value to the nearest valid face
// instead of failing, preserving forward progress of the UI flow.
func clampDie(v, sides int) int {
	if v < 1 {
		return 1
	}
	if v > sides {
		return sides
	}
	return v
}
