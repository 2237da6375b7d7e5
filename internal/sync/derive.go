package sync

import (
	"fmt"
	"sort"

	"github.com/parampack/parampack/internal/params"
)

// DeriveProb converts a raw external payload into a probability spec.
// External feeds supply either an explicit probability or raw counts;
// an explicit probability wins when both are present. Rules:
//
//   - probability (or "p"): clamped into [0,1]
//   - sample_size/successes (or n/k): mean = k/n, clamped into [0,1];
//     when n = 0 the mean computation is skipped entirely, but the raw
//     counts are still stored as evidence
//   - neither present: the mean is left untouched, and will not show
//     up as a changed field downstream
//
// Counts and payload provenance (fetched_at, source) always land in
// Evidence. Unknown numeric fields are ignored, not errors.
func DeriveProb(raw map[string]any) (*params.ProbSpec, error) {
	spec := &params.ProbSpec{}

	n, hasN, err := numericField(raw, "sample_size", "n")
	if err != nil {
		return nil, err
	}
	k, hasK, err := numericField(raw, "successes", "k")
	if err != nil {
		return nil, err
	}
	explicit, hasExplicit, err := numericField(raw, "probability", "p")
	if err != nil {
		return nil, err
	}

	switch {
	case hasExplicit:
		spec.Mean = params.Set(clamp01(explicit))
	case hasN && hasK && n > 0:
		spec.Mean = params.Set(clamp01(k / n))
	}
	// n = 0 (or missing pieces): no mean, but counts still stored below.

	if stdev, ok, err := numericField(raw, "stdev"); err != nil {
		return nil, err
	} else if ok {
		spec.Stdev = params.Set(stdev)
	}

	evidence := make(map[string]any)
	if hasN {
		evidence["n"] = n
	}
	if hasK {
		evidence["k"] = k
	}
	for _, key := range []string{"fetched_at", "source", "window_from", "window_to"} {
		if v, ok := raw[key]; ok {
			evidence[key] = v
		}
	}
	if len(evidence) > 0 {
		spec.Evidence = evidence
	}
	return spec, nil
}

// Ingest derives probability specs from raw external payloads, keyed
// by edge key, and synchronizes them into dst. A payload that fails
// derivation is reported as an error for that edge; edges that derive
// cleanly still sync. With StopOnError the first failure aborts the
// whole call and the destination comes back unchanged.
func Ingest(raw map[string]map[string]any, dst *params.ScenarioParams, op Operation, opts Options) (*params.ScenarioParams, *Result) {
	src := &params.ScenarioParams{}
	var deriveErrs []error

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		spec, err := DeriveProb(raw[key])
		if err != nil {
			deriveErrs = append(deriveErrs, fmt.Errorf("edge %q: %w", key, err))
			if opts.StopOnError {
				return dst.Clone(), &Result{Errors: deriveErrs}
			}
			continue
		}
		src.Edge(key).P = spec
	}

	work, r := Tree(src, dst, op, opts)
	if len(deriveErrs) > 0 {
		r.Errors = append(deriveErrs, r.Errors...)
		r.Success = false
	}
	return work, r
}

func numericField(raw map[string]any, names ...string) (float64, bool, error) {
	for _, name := range names {
		v, ok := raw[name]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true, nil
		case float32:
			return float64(n), true, nil
		case int:
			return float64(n), true, nil
		case int64:
			return float64(n), true, nil
		default:
			return 0, false, fmt.Errorf("field %q: want a number, got %T", name, v)
		}
	}
	return 0, false, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
