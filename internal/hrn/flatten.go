package hrn

import (
	"fmt"
	"sort"

	"github.com/parampack/parampack/internal/params"
)

// FlatMap is a param pack: flat HRN keys mapped to scalar values.
// Values are float64, string or bool; nil is the removal marker.
type FlatMap map[string]any

// Clone returns a shallow copy (values are scalars).
func (f FlatMap) Clone() FlatMap {
	out := make(FlatMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys in lexical order, for deterministic
// encoding and iteration.
func (f FlatMap) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten converts a diff tree to its param pack. Removal markers
// flatten to nil values. Override flags and record bindings are graph
// document state, not addressable parameters; they do not flatten.
func Flatten(sp *params.ScenarioParams) FlatMap {
	out := make(FlatMap)
	if sp == nil {
		return out
	}
	for key, e := range sp.Edges {
		prefix := "e." + key + "."
		if e.P != nil {
			flattenProb(out, prefix+"p.", e.P)
		}
		for cond, p := range e.ConditionalP {
			flattenProb(out, prefix+cond+".p.", p)
		}
		putFloat(out, prefix+"weight_default", e.WeightDefault)
		if e.CostGBP != nil {
			flattenCost(out, prefix+"cost_gbp.", e.CostGBP)
		}
		if e.CostTime != nil {
			flattenCost(out, prefix+"cost_time.", e.CostTime)
		}
	}
	for key, n := range sp.Nodes {
		prefix := "n." + key + "."
		putFloat(out, prefix+"entry.entry_weight", n.EntryWeight)
		putFloat(out, prefix+"costs.monetary", n.CostMonetary)
		putFloat(out, prefix+"costs.time", n.CostTime)
		for _, v := range n.Variants {
			// The case id is the owning node's key, always.
			vkey := fmt.Sprintf("%scase(%s:%s).weight", prefix, key, v.Name)
			putFloat(out, vkey, v.Weight)
		}
	}
	return out
}

func flattenProb(out FlatMap, prefix string, p *params.ProbSpec) {
	putFloat(out, prefix+"mean", p.Mean)
	putFloat(out, prefix+"stdev", p.Stdev)
	putFloat(out, prefix+"min", p.Min)
	putFloat(out, prefix+"max", p.Max)
	putFloat(out, prefix+"alpha", p.Alpha)
	putFloat(out, prefix+"beta", p.Beta)
	putString(out, prefix+"distribution", p.Distribution)
	for k, v := range p.Evidence {
		out[prefix+"evidence."+k] = normalizeScalar(v)
	}
	for k, v := range p.Forecast {
		out[prefix+"forecast."+k] = normalizeScalar(v)
	}
}

func flattenCost(out FlatMap, prefix string, c *params.CostSpec) {
	putFloat(out, prefix+"mean", c.Mean)
	putFloat(out, prefix+"stdev", c.Stdev)
	putString(out, prefix+"distribution", c.Distribution)
}

func putFloat(out FlatMap, key string, f params.Field[float64]) {
	if v, ok := f.Get(); ok {
		out[key] = v
	} else if f.IsRemoved() {
		out[key] = nil
	}
}

func putString(out FlatMap, key string, f params.Field[string]) {
	if v, ok := f.Get(); ok {
		out[key] = v
	} else if f.IsRemoved() {
		out[key] = nil
	}
}

// normalizeScalar coerces numeric scalars to float64 so that values
// surviving a text round trip compare equal to the originals.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
