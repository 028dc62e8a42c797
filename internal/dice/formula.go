// Package dice implements the local roll model: parsing dice formulas
// into ordered terms, evaluating them with rpg-toolkit's roller, and
// substituting externally determined die values into an evaluated roll.
package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	rpgdice "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/roll-sync/internal/errors"
)

// KeepMode reduces a multi-die term to a single counted outcome.
type KeepMode int

// Keep modes
const (
	// KeepAll sums every die in the term
	KeepAll KeepMode = iota

	// KeepHighest counts only the highest outcome (advantage)
	KeepHighest

	// KeepLowest counts only the lowest outcome (disadvantage)
	KeepLowest
)

// Term is one formula component: N dice of a given face count, possibly
// with a keep operator. Results holds the per-die outcomes once the
// term has been evaluated.
type Term struct {
	Count   int
	Sides   int
	Keep    KeepMode
	Results []int
}

// DieType returns the term's die type label, e.g. "d20".
func (t *Term) DieType() string {
	return fmt.Sprintf("d%d", t.Sides)
}

// Value computes the term's contribution to the roll total from its
// current Results, applying the keep operator.
func (t *Term) Value() int {
	if len(t.Results) == 0 {
		return 0
	}

	switch t.Keep {
	case KeepHighest:
		v := t.Results[0]
		for _, r := range t.Results[1:] {
			if r > v {
				v = r
			}
		}
		return v
	case KeepLowest:
		v := t.Results[0]
		for _, r := range t.Results[1:] {
			if r < v {
				v = r
			}
		}
		return v
	default:
		sum := 0
		for _, r := range t.Results {
			sum += r
		}
		return sum
	}
}

// Roll is a locally evaluable roll: ordered die terms plus a constant
// modifier. Total is only meaningful after Evaluate or Recompute.
type Roll struct {
	Formula  string
	Terms    []*Term
	Modifier int
	Total    int
}

var termPattern = regexp.MustCompile(`^(\d+)d(\d+)(kh1|kl1)?$`)

// ParseFormula parses a dice formula like "2d20kh1+7" or "2d6+1d8-1"
// into a Roll. Terms appear in declaration order; bare integers
// accumulate into the modifier.
func ParseFormula(formula string) (*Roll, error) {
	compact := strings.ReplaceAll(formula, " ", "")
	if compact == "" {
		return nil, errors.InvalidArgument("formula cannot be empty")
	}

	// Normalize so every token carries its own sign.
	tokens := strings.Split(strings.ReplaceAll(compact, "-", "+-"), "+")

	roll := &Roll{Formula: compact}
	for _, token := range tokens {
		if token == "" {
			continue
		}

		if m := termPattern.FindStringSubmatch(token); m != nil {
			count, _ := strconv.Atoi(m[1])
			sides, _ := strconv.Atoi(m[2])
			if count <= 0 || sides <= 0 {
				return nil, errors.InvalidArgumentf("dice count and size must be positive: %s", token)
			}

			keep := KeepAll
			switch m[3] {
			case "kh1":
				keep = KeepHighest
			case "kl1":
				keep = KeepLowest
			}

			roll.Terms = append(roll.Terms, &Term{Count: count, Sides: sides, Keep: keep})
			continue
		}

		mod, err := strconv.Atoi(token)
		if err != nil {
			return nil, errors.InvalidArgumentf("invalid formula token: %s", token)
		}
		roll.Modifier += mod
	}

	if len(roll.Terms) == 0 {
		return nil, errors.InvalidArgumentf("formula has no die terms: %s", formula)
	}

	return roll, nil
}

// Evaluate materializes per-die outcomes for every term using the
// provided roller, then computes the total.
func (r *Roll) Evaluate(roller rpgdice.Roller) error {
	for _, term := range r.Terms {
		results, err := roller.RollN(term.Count, term.Sides)
		if err != nil {
			return errors.Wrapf(err, "failed to roll %dd%d", term.Count, term.Sides)
		}
		term.Results = results
	}

	r.Recompute()
	return nil
}

// Recompute rebuilds the total from the terms' current values plus the
// modifier. Must be called after any mutation of term results, since a
// keep operator changes which outcomes count toward the sum.
func (r *Roll) Recompute() {
	total := r.Modifier
	for _, term := range r.Terms {
		total += term.Value()
	}
	r.Total = total
}

// DieTypes returns the roll's die-type sequence in term order,
// e.g. ["d20"] or ["d6", "d8"]. Used as the expectation signature when
// matching pending UI flows against inbound remote rolls.
func (r *Roll) DieTypes() []string {
	types := make([]string, len(r.Terms))
	for i, term := range r.Terms {
		types[i] = term.DieType()
	}
	return types
}
