package dice

import (
	"fmt"
	"strings"

	"github.com/KirkDiggler/roll-sync/internal/platform"
)

// DieGroup is a normalized group of same-typed remote die results.
type DieGroup struct {
	DieType string
	Count   int
	Results []int
}

// ExtractGroups flattens the remote payload's nested die-set structure
// into one group per set. Unrecognized or absent structure yields an
// empty list, not an error.
func ExtractGroups(roll *platform.Roll) []DieGroup {
	if roll == nil {
		return []DieGroup{}
	}

	groups := make([]DieGroup, 0, len(roll.DiceNotation.Set))
	for _, set := range roll.DiceNotation.Set {
		results := make([]int, 0, len(set.Dice))
		for _, die := range set.Dice {
			results = append(results, die.DieValue)
		}
		groups = append(groups, DieGroup{
			DieType: set.DieType,
			Count:   set.Count,
			Results: results,
		})
	}
	return groups
}

// BuildFormula derives a locally evaluable formula string from a remote
// roll. For d20 sets the die count comes from the actually delivered
// results rather than the nominal count, so an advantage roll that
// delivered two d20s yields "2d20kh1" even when the set claims count 1.
// The modifier is appended as a signed suffix.
func BuildFormula(roll *platform.Roll, modifier int) string {
	if roll == nil {
		return ""
	}

	parts := make([]string, 0, len(roll.DiceNotation.Set))
	for _, set := range roll.DiceNotation.Set {
		count := set.Count
		if set.DieType == "d20" && len(set.Dice) > 0 {
			count = len(set.Dice)
		}

		part := fmt.Sprintf("%d%s", count, set.DieType)
		if count > 1 {
			switch roll.RollKind {
			case platform.RollKindAdvantage:
				part += "kh1"
			case platform.RollKindDisadvantage:
				part += "kl1"
			}
		}
		parts = append(parts, part)
	}

	formula := strings.Join(parts, "+")
	switch {
	case modifier > 0:
		formula += fmt.Sprintf("+%d", modifier)
	case modifier < 0:
		formula += fmt.Sprintf("%d", modifier)
	}
	return formula
}
