package sync

import (
	"sort"
	"strings"

	"github.com/parampack/parampack/internal/fieldmap"
	"github.com/parampack/parampack/internal/params"
)

// syncScalar diffs one scalar slot and applies the source side into
// dst. An override flag on the destination skips the write and records
// a conflict, with two exceptions: evidence-class fields always sync,
// and user edits write through and set the flag instead of honoring
// it. Returns whether a change was recorded.
func syncScalar[T comparable](
	r *Result, opts Options, kind fieldmap.EntityKind,
	path, field string, src params.Field[T], dst *params.Field[T],
	overridden *map[string]bool,
) bool {
	if src.IsAbsent() {
		return false
	}

	srcVal, srcSet := src.Get()
	dstVal, dstSet := dst.Get()
	if srcSet && dstSet && srcVal == dstVal {
		return false
	}
	if !srcSet && !dstSet {
		// Removal of a field that is not there.
		return false
	}

	table := opts.table()
	evidence := table.IsEvidence(kind, field)
	userEdit := opts.Direction == DirUserToGraph
	if !evidence && !userEdit && overridden != nil && (*overridden)[field] {
		r.conflict(path, ReasonOverridden)
		return false
	}

	var old, new any
	if dstSet {
		old = dstVal
	}
	if srcSet {
		new = srcVal
	}
	r.change(path, old, new)

	if srcSet {
		*dst = params.Set(srcVal)
	} else {
		*dst = params.Field[T]{}
	}
	if userEdit && !evidence && overridden != nil {
		if *overridden == nil {
			*overridden = make(map[string]bool)
		}
		(*overridden)[field] = true
	}
	return true
}

// syncScalarMap reconciles an opaque scalar map (evidence, forecast).
// These fields are provenance: they always sync, overrides never apply.
func syncScalarMap(r *Result, path string, src map[string]any, dst *map[string]any) {
	if len(src) == 0 {
		return
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := src[k]
		cur, ok := (*dst)[k]
		if ok && cur == v {
			continue
		}
		var old any
		if ok {
			old = cur
		}
		r.change(path+"."+k, old, v)
		if *dst == nil {
			*dst = make(map[string]any)
		}
		(*dst)[k] = v
	}
}

func syncBinding(r *Result, prefix string, srcID, srcSource string, dstID, dstSource *string) {
	if srcID != "" && srcID != *dstID {
		r.change(prefix+"record_id", orNil(*dstID), srcID)
		*dstID = srcID
	}
	if srcSource != "" && srcSource != *dstSource {
		r.change(prefix+"source", orNil(*dstSource), srcSource)
		*dstSource = srcSource
	}
}

// syncProbInto reconciles one probability spec. Paths in the result
// are prefixed with the caller's context (e.g. "e.signup.p.").
func syncProbInto(r *Result, opts Options, prefix string, src, dst *params.ProbSpec) {
	kind := fieldmap.KindEdgeProbability

	syncScalar(r, opts, kind, prefix+"mean", "mean", src.Mean, &dst.Mean, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"stdev", "stdev", src.Stdev, &dst.Stdev, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"min", "min", src.Min, &dst.Min, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"max", "max", src.Max, &dst.Max, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"alpha", "alpha", src.Alpha, &dst.Alpha, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"beta", "beta", src.Beta, &dst.Beta, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"distribution", "distribution", src.Distribution, &dst.Distribution, &dst.Overridden)

	syncScalarMap(r, prefix+"evidence", src.Evidence, &dst.Evidence)
	syncScalarMap(r, prefix+"forecast", src.Forecast, &dst.Forecast)

	syncBinding(r, prefix, src.RecordID, src.Source, &dst.RecordID, &dst.Source)
}

func syncCostInto(r *Result, opts Options, prefix string, src, dst *params.CostSpec) {
	kind := fieldmap.KindEdgeCost

	syncScalar(r, opts, kind, prefix+"mean", "mean", src.Mean, &dst.Mean, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"stdev", "stdev", src.Stdev, &dst.Stdev, &dst.Overridden)
	syncScalar(r, opts, kind, prefix+"distribution", "distribution", src.Distribution, &dst.Distribution, &dst.Overridden)

	syncBinding(r, prefix, src.RecordID, src.Source, &dst.RecordID, &dst.Source)
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Prob synchronizes a source probability spec into a destination one.
// The destination is not mutated; the merged clone is returned along
// with the result. A nil source or destination is a zero-change
// success, not an error.
func Prob(src, dst *params.ProbSpec, opts Options) (*params.ProbSpec, *Result) {
	r := &Result{Success: true}
	if src == nil || dst == nil {
		return dst.Clone(), r
	}
	work := dst.Clone()
	syncProbInto(r, opts, "", src, work)
	if opts.ValidateOnly {
		return dst.Clone(), r
	}
	return work, r
}

// Cost synchronizes a source cost spec into a destination one, with
// the same contract as Prob.
func Cost(src, dst *params.CostSpec, opts Options) (*params.CostSpec, *Result) {
	r := &Result{Success: true}
	if src == nil || dst == nil {
		return dst.Clone(), r
	}
	work := dst.Clone()
	syncCostInto(r, opts, "", src, work)
	if opts.ValidateOnly {
		return dst.Clone(), r
	}
	return work, r
}

// massField reports whether a changed path is mass-constrained and, if
// so, the rebalance field relative to its entity.
func massField(path, entityPrefix string) (string, bool) {
	if !strings.HasPrefix(path, entityPrefix) {
		return "", false
	}
	rel := strings.TrimPrefix(path, entityPrefix)
	if rel == "p.mean" || strings.HasSuffix(rel, ".p.mean") || strings.HasSuffix(rel, ").weight") {
		return rel, true
	}
	return "", false
}
