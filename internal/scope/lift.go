package scope

import (
	"strings"

	"github.com/parampack/parampack/internal/condition"
	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/hrn"
	"github.com/parampack/parampack/internal/params"
)

// nodePaths are the dotted paths a node scope accepts as relative keys.
var nodePaths = map[string]bool{
	"entry.entry_weight": true,
	"costs.monetary":     true,
	"costs.time":         true,
}

// probFields are the leaf fields a probability slot accepts.
var probFields = map[string]bool{
	"mean": true, "stdev": true, "min": true, "max": true,
	"alpha": true, "beta": true, "distribution": true,
}

// costFields are the leaf fields a cost slot accepts.
var costFields = map[string]bool{
	"mean": true, "value": true, "stdev": true, "distribution": true,
}

// Lift expands a third-party flat pack into fully qualified HRN keys
// under the given scope and parses the result into a diff tree.
//
// Keys already beginning "e." or "n." pass through unchanged. Relative
// keys (bare "mean", "p.stdev", "weight") are expanded using the
// scope's entity and slot. Relative keys that do not belong to the
// scope's slot or condition are dropped silently: an external source
// must not write outside the slot it was scoped to.
func Lift(pack hrn.FlatMap, s Scope, snap *graph.Snapshot) (*params.ScenarioParams, []string, error) {
	expanded := make(hrn.FlatMap, len(pack))
	for key, value := range pack {
		if strings.HasPrefix(key, "e.") || strings.HasPrefix(key, "n.") {
			expanded[key] = value
			continue
		}
		full, ok := s.qualify(key, snap)
		if !ok {
			continue
		}
		expanded[full] = value
	}

	resolved, unresolved := hrn.ResolveKeys(expanded, snap)
	sp, err := hrn.Unflatten(resolved)
	if err != nil {
		return nil, unresolved, err
	}
	return sp, unresolved, nil
}

// qualify turns one scope-relative key into a full HRN key, or reports
// that the key falls outside the scope.
func (s Scope) qualify(key string, snap *graph.Snapshot) (string, bool) {
	entity := s.entityKey(snap)

	switch s.Kind {
	case KindEdgeParam:
		slot := s.Slot
		rel := key
		// An explicit slot prefix must match the scope's slot.
		if seg, rest, ok := strings.Cut(key, "."); ok && (seg == SlotP || seg == SlotCostGBP || seg == SlotCostTime) {
			if seg != slot {
				return "", false
			}
			rel = rest
		}
		if !slotField(slot, rel) {
			return "", false
		}
		return "e." + entity + "." + slot + "." + rel, true

	case KindEdgeConditional:
		rel := key
		segs := condition.SplitTop(key, '.')
		// A key carrying its own clauses must name this scope's condition.
		nclauses := 0
		for nclauses < len(segs) && condition.IsClauseToken(segs[nclauses]) {
			nclauses++
		}
		if nclauses > 0 {
			cond := strings.Join(segs[:nclauses], ".")
			if !s.sameCondition(cond, snap) {
				return "", false
			}
			rel = strings.Join(segs[nclauses:], ".")
		}
		rel = strings.TrimPrefix(rel, "p.")
		if !slotField(SlotP, rel) {
			return "", false
		}
		return "e." + entity + "." + s.Condition + ".p." + rel, true

	case KindNode:
		if !nodePaths[key] {
			return "", false
		}
		return "n." + entity + "." + key, true

	case KindCase:
		if s.Variant == "" || key != "weight" {
			return "", false
		}
		return "n." + entity + ".case(" + entity + ":" + s.Variant + ").weight", true

	default:
		// Graph scope accepts only fully qualified keys.
		return "", false
	}
}

// sameCondition reports whether cond names this scope's condition,
// comparing both spellings after resolver normalization.
func (s Scope) sameCondition(cond string, snap *graph.Snapshot) bool {
	if cond == s.Condition {
		return true
	}
	a, _ := condition.Normalize(cond, snap)
	b, _ := condition.Normalize(s.Condition, snap)
	return a == b
}

func slotField(slot, field string) bool {
	// Evidence and forecast sub-fields ride along with probability slots.
	if slot == SlotP {
		if strings.HasPrefix(field, "evidence.") || strings.HasPrefix(field, "forecast.") {
			return true
		}
		return probFields[field]
	}
	return costFields[field]
}
