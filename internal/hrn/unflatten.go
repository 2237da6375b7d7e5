package hrn

import (
	"fmt"
	"strings"

	"github.com/parampack/parampack/internal/condition"
	"github.com/parampack/parampack/internal/params"
)

// KeyError reports a flat key that does not match the HRN grammar.
type KeyError struct {
	Key     string
	Message string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid HRN key %q: %s", e.Key, e.Message)
}

// Unflatten converts a param pack back into a diff tree. It is the
// inverse of Flatten. Nothing is applied on error: the first malformed
// key aborts the whole conversion.
//
// Edge keys are disambiguated by ordered pattern tests: node-style
// case-variant keys first, then conditional-probability keys (one or
// more recognized clause segments directly before "p.<field>"), then
// everything else as a plain dotted path under the entity. The order
// matters because clause arguments may contain dots.
func Unflatten(flat FlatMap) (*params.ScenarioParams, error) {
	sp := &params.ScenarioParams{}
	for _, key := range flat.SortedKeys() {
		if err := unflattenKey(sp, key, flat[key]); err != nil {
			return nil, err
		}
	}
	return sp, nil
}

func unflattenKey(sp *params.ScenarioParams, key string, value any) error {
	segs := condition.SplitTop(key, '.')
	if len(segs) < 3 {
		return &KeyError{Key: key, Message: "want <e|n>.<entity>.<path>"}
	}
	entity := segs[1]
	rest := segs[2:]

	switch segs[0] {
	case "n":
		return unflattenNodeKey(sp, key, entity, rest, value)
	case "e":
		return unflattenEdgeKey(sp, key, entity, rest, value)
	default:
		return &KeyError{Key: key, Message: `prefix must be "e" or "n"`}
	}
}

func unflattenNodeKey(sp *params.ScenarioParams, key, entity string, rest []string, value any) error {
	// Shape 1: case-variant weight, n.<id>.case(<caseId>:<variant>).weight
	if len(rest) == 2 && rest[1] == "weight" && condition.IsClauseToken(rest[0]) {
		clause, err := condition.ParseClause(rest[0])
		if err != nil {
			return &KeyError{Key: key, Message: err.Error()}
		}
		if clause.Kind != condition.KindCase {
			return &KeyError{Key: key, Message: "only case(...) clauses apply to nodes"}
		}
		// The case id is keyed on the owning node; a divergent id in the
		// key is normalized rather than rejected.
		weight, err := floatField(key, value)
		if err != nil {
			return err
		}
		node := sp.Node(entity)
		if v := node.Variant(clause.Variant); v != nil {
			v.Weight = weight
		} else {
			node.Variants = append(node.Variants, params.CaseVariant{Name: clause.Variant, Weight: weight})
		}
		return nil
	}

	if condition.IsClauseToken(rest[0]) {
		return &KeyError{Key: key, Message: "condition clauses apply to edges, not nodes"}
	}

	// Shape 2: plain dotted path under the node.
	node := sp.Node(entity)
	switch strings.Join(rest, ".") {
	case "entry.entry_weight":
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		node.EntryWeight = f
	case "costs.monetary":
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		node.CostMonetary = f
	case "costs.time":
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		node.CostTime = f
	default:
		return &KeyError{Key: key, Message: "unknown node parameter path"}
	}
	return nil
}

func unflattenEdgeKey(sp *params.ScenarioParams, key, entity string, rest []string, value any) error {
	edge := sp.Edge(entity)

	// Shape 2: conditional probability. One or more clause segments are
	// spliced directly before "p.<field>" with no literal in between.
	nclauses := 0
	for nclauses < len(rest) && condition.IsClauseToken(rest[nclauses]) {
		nclauses++
	}
	if nclauses > 0 {
		tail := rest[nclauses:]
		if len(tail) < 2 || tail[0] != "p" {
			return &KeyError{Key: key, Message: `conditional key must end in "p.<field>"`}
		}
		cond := strings.Join(rest[:nclauses], ".")
		return setProbField(key, edge.Conditional(cond), tail[1:], value)
	}

	// Shape 3: plain dotted path under the edge.
	switch rest[0] {
	case "p":
		if len(rest) < 2 {
			return &KeyError{Key: key, Message: "missing probability field"}
		}
		if edge.P == nil {
			edge.P = &params.ProbSpec{}
		}
		return setProbField(key, edge.P, rest[1:], value)
	case "weight_default":
		if len(rest) != 1 {
			return &KeyError{Key: key, Message: "weight_default takes no sub-path"}
		}
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		edge.WeightDefault = f
		return nil
	case "cost_gbp":
		if edge.CostGBP == nil {
			edge.CostGBP = &params.CostSpec{}
		}
		return setCostField(key, edge.CostGBP, rest[1:], value)
	case "cost_time":
		if edge.CostTime == nil {
			edge.CostTime = &params.CostSpec{}
		}
		return setCostField(key, edge.CostTime, rest[1:], value)
	default:
		return &KeyError{Key: key, Message: "unknown edge parameter path"}
	}
}

func setProbField(key string, p *params.ProbSpec, path []string, value any) error {
	switch path[0] {
	case "mean", "stdev", "min", "max", "alpha", "beta":
		if len(path) != 1 {
			return &KeyError{Key: key, Message: "unexpected sub-path on numeric field"}
		}
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		switch path[0] {
		case "mean":
			p.Mean = f
		case "stdev":
			p.Stdev = f
		case "min":
			p.Min = f
		case "max":
			p.Max = f
		case "alpha":
			p.Alpha = f
		case "beta":
			p.Beta = f
		}
		return nil
	case "distribution":
		f, err := stringField(key, value)
		if err != nil {
			return err
		}
		p.Distribution = f
		return nil
	case "evidence", "forecast":
		if len(path) < 2 {
			return &KeyError{Key: key, Message: path[0] + " requires a sub-field"}
		}
		sub := strings.Join(path[1:], ".")
		if path[0] == "evidence" {
			if p.Evidence == nil {
				p.Evidence = make(map[string]any)
			}
			p.Evidence[sub] = normalizeScalar(value)
		} else {
			if p.Forecast == nil {
				p.Forecast = make(map[string]any)
			}
			p.Forecast[sub] = normalizeScalar(value)
		}
		return nil
	default:
		return &KeyError{Key: key, Message: "unknown probability field " + path[0]}
	}
}

func setCostField(key string, c *params.CostSpec, path []string, value any) error {
	if len(path) != 1 {
		return &KeyError{Key: key, Message: "cost fields take a single segment"}
	}
	switch path[0] {
	case "mean", "value":
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		c.Mean = f
	case "stdev":
		f, err := floatField(key, value)
		if err != nil {
			return err
		}
		c.Stdev = f
	case "distribution":
		f, err := stringField(key, value)
		if err != nil {
			return err
		}
		c.Distribution = f
	default:
		return &KeyError{Key: key, Message: "unknown cost field " + path[0]}
	}
	return nil
}

func floatField(key string, value any) (params.Field[float64], error) {
	if value == nil {
		return params.Removed[float64](), nil
	}
	switch n := value.(type) {
	case float64:
		return params.Set(n), nil
	case float32:
		return params.Set(float64(n)), nil
	case int:
		return params.Set(float64(n)), nil
	case int64:
		return params.Set(float64(n)), nil
	default:
		return params.Field[float64]{}, &KeyError{Key: key, Message: fmt.Sprintf("want a number, got %T", value)}
	}
}

func stringField(key string, value any) (params.Field[string], error) {
	if value == nil {
		return params.Removed[string](), nil
	}
	s, ok := value.(string)
	if !ok {
		return params.Field[string]{}, &KeyError{Key: key, Message: fmt.Sprintf("want a string, got %T", value)}
	}
	return params.Set(s), nil
}
