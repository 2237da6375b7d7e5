package sync

import (
	"sort"

	"github.com/parampack/parampack/internal/fieldmap"
	"github.com/parampack/parampack/internal/params"
)

// Tree synchronizes a whole source parameter tree into a destination
// tree. The destination is not mutated; the merged clone is returned
// with the result. The operation selects entity handling:
//
//   - OpCreate fills in entities the destination lacks and leaves
//     existing ones untouched
//   - OpUpdate merges into existing entities and skips source entities
//     the destination lacks; that structural mismatch is a zero-change
//     success, not an error
//   - OpAppend creates and merges but never removes destination data
//
// Changes to mass-constrained fields (probability means, case variant
// weights) are reported in Metadata.Rebalance; the engine itself never
// rebalances.
func Tree(src, dst *params.ScenarioParams, op Operation, opts Options) (*params.ScenarioParams, *Result) {
	r := &Result{Success: true}
	work := dst.Clone()
	if src.Empty() {
		if opts.ValidateOnly {
			return dst.Clone(), r
		}
		return work, r
	}

	for _, key := range sortedKeys(src.Edges) {
		srcEdge := src.Edges[key]
		dstEdge, exists := work.Edges[key]
		if exists && op == OpCreate {
			continue
		}
		if !exists {
			if op == OpUpdate {
				continue
			}
			dstEdge = work.Edge(key)
		}
		syncEdgeInto(r, opts, "e."+key+".", srcEdge, dstEdge)
	}

	for _, key := range sortedKeys(src.Nodes) {
		srcNode := src.Nodes[key]
		dstNode, exists := work.Nodes[key]
		if exists && op == OpCreate {
			continue
		}
		if !exists {
			if op == OpUpdate {
				continue
			}
			dstNode = work.Node(key)
		}
		syncNodeInto(r, opts, op, key, srcNode, dstNode)
	}

	r.Metadata.Rebalance = rebalanceRequests(r, src)
	if opts.ValidateOnly {
		return dst.Clone(), r
	}
	return work, r
}

func syncEdgeInto(r *Result, opts Options, prefix string, src, dst *params.EdgeParams) {
	if src.P != nil {
		if dst.P == nil {
			dst.P = &params.ProbSpec{}
		}
		syncProbInto(r, opts, prefix+"p.", src.P, dst.P)
	}
	for _, cond := range sortedKeys(src.ConditionalP) {
		syncProbInto(r, opts, prefix+cond+".p.", src.ConditionalP[cond], dst.Conditional(cond))
	}
	syncScalar(r, opts, fieldmap.KindEdgeProbability,
		prefix+"weight_default", "weight_default", src.WeightDefault, &dst.WeightDefault, nil)
	if src.CostGBP != nil {
		if dst.CostGBP == nil {
			dst.CostGBP = &params.CostSpec{}
		}
		syncCostInto(r, opts, prefix+"cost_gbp.", src.CostGBP, dst.CostGBP)
	}
	if src.CostTime != nil {
		if dst.CostTime == nil {
			dst.CostTime = &params.CostSpec{}
		}
		syncCostInto(r, opts, prefix+"cost_time.", src.CostTime, dst.CostTime)
	}
}

func syncNodeInto(r *Result, opts Options, op Operation, key string, src, dst *params.NodeParams) {
	prefix := "n." + key + "."
	syncScalar(r, opts, fieldmap.KindNode,
		prefix+"entry.entry_weight", "entry.entry_weight", src.EntryWeight, &dst.EntryWeight, &dst.Overridden)
	syncScalar(r, opts, fieldmap.KindNode,
		prefix+"costs.monetary", "costs.monetary", src.CostMonetary, &dst.CostMonetary, &dst.Overridden)
	syncScalar(r, opts, fieldmap.KindNode,
		prefix+"costs.time", "costs.time", src.CostTime, &dst.CostTime, &dst.Overridden)
	syncVariantsInto(r, opts, op, key, prefix, src, dst)
}

// rebalanceRequests scans the recorded changes for mass-constrained
// fields, one request per distinct entity/field pair.
func rebalanceRequests(r *Result, src *params.ScenarioParams) []RebalanceRequest {
	if len(r.Changes) == 0 {
		return nil
	}
	type entity struct {
		key    string
		prefix string
	}
	entities := make([]entity, 0, len(src.Edges)+len(src.Nodes))
	for _, key := range sortedKeys(src.Edges) {
		entities = append(entities, entity{key, "e." + key + "."})
	}
	for _, key := range sortedKeys(src.Nodes) {
		entities = append(entities, entity{key, "n." + key + "."})
	}

	var out []RebalanceRequest
	seen := make(map[RebalanceRequest]bool)
	for _, ch := range r.Changes {
		for _, ent := range entities {
			field, ok := massField(ch.Field, ent.prefix)
			if !ok {
				continue
			}
			req := RebalanceRequest{EntityKey: ent.key, Field: field}
			if !seen[req] {
				seen[req] = true
				out = append(out, req)
			}
			break
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
