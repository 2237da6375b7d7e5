package sync

import (
	"fmt"

	"github.com/parampack/parampack/internal/fieldmap"
	"github.com/parampack/parampack/internal/params"
)

// syncVariantsInto reconciles the case variant lists of one node.
// Variants match by name, never by position. Under OpUpdate a
// destination-only variant is removed unless it carries graph-only
// data (active edges), an override, or a record binding; OpCreate and
// OpAppend never remove.
func syncVariantsInto(r *Result, opts Options, op Operation, nodeKey, prefix string, src, dst *params.NodeParams) {
	if src.Variants == nil {
		return
	}

	casePath := func(name string) string {
		return fmt.Sprintf("%scase(%s:%s).weight", prefix, nodeKey, name)
	}

	userEdit := opts.Direction == DirUserToGraph
	weightFree := !opts.table().IsEvidence(fieldmap.KindCaseVariant, "weight")

	merged := make([]params.CaseVariant, 0, len(src.Variants)+len(dst.Variants))
	seen := make(map[string]bool, len(src.Variants))

	for _, sv := range src.Variants {
		seen[sv.Name] = true
		dv := dst.Variant(sv.Name)
		if dv == nil {
			nv := sv.Clone()
			if w, ok := sv.Weight.Get(); ok {
				r.change(casePath(sv.Name), nil, w)
			}
			if userEdit && weightFree && sv.Weight.IsSet() {
				nv.WeightOverridden = true
			}
			merged = append(merged, nv)
			continue
		}

		mv := dv.Clone()
		if !sv.Weight.IsAbsent() {
			srcW, srcSet := sv.Weight.Get()
			dstW, dstSet := mv.Weight.Get()
			switch {
			case srcSet && dstSet && srcW == dstW:
				// Unchanged.
			case !srcSet && !dstSet:
				// Removal of an absent weight.
			case mv.WeightOverridden && weightFree && !userEdit:
				r.conflict(casePath(sv.Name), ReasonOverridden)
			default:
				var old, new any
				if dstSet {
					old = dstW
				}
				if srcSet {
					new = srcW
				}
				r.change(casePath(sv.Name), old, new)
				if srcSet {
					mv.Weight = params.Set(srcW)
				} else {
					mv.Weight = params.Field[float64]{}
				}
				if userEdit && weightFree {
					mv.WeightOverridden = true
				}
			}
		}
		if sv.RecordID != "" && sv.RecordID != mv.RecordID {
			r.change(fmt.Sprintf("%scase(%s:%s).record_id", prefix, nodeKey, sv.Name), orNil(mv.RecordID), sv.RecordID)
			mv.RecordID = sv.RecordID
		}
		// Active edges are graph-only data; a source that carries them
		// supplies them, a source that omits them leaves them alone.
		if sv.ActiveEdges != nil {
			mv.ActiveEdges = append([]string(nil), sv.ActiveEdges...)
		}
		merged = append(merged, mv)
	}

	for _, dv := range dst.Variants {
		if seen[dv.Name] {
			continue
		}
		if op == OpUpdate && !variantSticky(dv) {
			if w, ok := dv.Weight.Get(); ok {
				r.change(casePath(dv.Name), w, nil)
			} else {
				r.change(casePath(dv.Name), nil, nil)
			}
			continue
		}
		merged = append(merged, dv.Clone())
	}
	dst.Variants = merged
}

// variantSticky reports whether a destination-only variant must
// survive an update.
func variantSticky(v params.CaseVariant) bool {
	return len(v.ActiveEdges) > 0 || v.WeightOverridden || v.RecordID != ""
}
