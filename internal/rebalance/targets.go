package rebalance

import (
	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/params"
)

// Edges rebalances the unconditional probabilities of a node's
// outgoing edges after the origin edge's mean was set. The input tree
// is not mutated; the rebalanced clone is returned with the report.
func Edges(sp *params.ScenarioParams, snap *graph.Snapshot, nodeKey, originKey string, mode Mode) (*params.ScenarioParams, *Report, error) {
	siblings, err := edgeSiblings(TargetEdges, snap, nodeKey, originKey)
	if err != nil {
		return nil, nil, err
	}

	probAt := func(key string) *params.ProbSpec {
		if e := sp.Edges[key]; e != nil {
			return e.P
		}
		return nil
	}

	origin, others := splitSiblings(siblings, originKey, probAt)
	if origin == nil {
		return nil, nil, &Error{Target: TargetEdges, Entity: nodeKey, Origin: originKey,
			Message: "origin is not an outgoing edge of the node"}
	}

	rep := redistribute(TargetEdges, originKey, origin.value, others, mode)

	work := sp.Clone()
	for _, adj := range rep.Adjusted {
		e := work.Edge(adj.Key)
		if e.P == nil {
			e.P = &params.ProbSpec{}
		}
		e.P.Mean = params.Set(adj.New)
	}
	for _, key := range rep.ClearedOverrides {
		delete(work.Edge(key).P.Overridden, "mean")
	}
	return work, rep, nil
}

// Conditionals rebalances the conditional probabilities that share one
// condition string across a node's outgoing edges. Edges without an
// entry for the condition are not part of the sibling set.
func Conditionals(sp *params.ScenarioParams, snap *graph.Snapshot, nodeKey, cond, originKey string, mode Mode) (*params.ScenarioParams, *Report, error) {
	siblings, err := edgeSiblings(TargetConditionals, snap, nodeKey, originKey)
	if err != nil {
		return nil, nil, err
	}

	probAt := func(key string) *params.ProbSpec {
		if e := sp.Edges[key]; e != nil {
			return e.ConditionalP[cond]
		}
		return nil
	}

	withEntry := siblings[:0:0]
	for _, key := range siblings {
		if key == originKey || probAt(key) != nil {
			withEntry = append(withEntry, key)
		}
	}

	origin, others := splitSiblings(withEntry, originKey, probAt)
	if origin == nil {
		return nil, nil, &Error{Target: TargetConditionals, Entity: nodeKey, Origin: originKey,
			Message: "origin is not an outgoing edge of the node"}
	}

	rep := redistribute(TargetConditionals, originKey, origin.value, others, mode)

	work := sp.Clone()
	for _, adj := range rep.Adjusted {
		work.Edge(adj.Key).Conditional(cond).Mean = params.Set(adj.New)
	}
	for _, key := range rep.ClearedOverrides {
		delete(work.Edge(key).Conditional(cond).Overridden, "mean")
	}
	return work, rep, nil
}

// Variants rebalances a case node's variant weights after the origin
// variant's weight was set. Variants match by name.
func Variants(sp *params.ScenarioParams, nodeKey, originName string, mode Mode) (*params.ScenarioParams, *Report, error) {
	node := sp.Nodes[nodeKey]
	if node == nil {
		return nil, nil, &Error{Target: TargetVariants, Entity: nodeKey, Origin: originName,
			Message: "node has no parameters"}
	}

	var origin *params.CaseVariant
	var others []member
	for i := range node.Variants {
		v := &node.Variants[i]
		if v.Name == originName {
			origin = v
			continue
		}
		others = append(others, member{
			key:        v.Name,
			value:      v.Weight.Or(0),
			locked:     v.Locked(),
			overridden: v.WeightOverridden,
		})
	}
	if origin == nil {
		return nil, nil, &Error{Target: TargetVariants, Entity: nodeKey, Origin: originName,
			Message: "no variant with that name"}
	}

	rep := redistribute(TargetVariants, originName, origin.Weight.Or(0), others, mode)

	work := sp.Clone()
	cleared := make(map[string]bool, len(rep.ClearedOverrides))
	for _, name := range rep.ClearedOverrides {
		cleared[name] = true
	}
	for _, adj := range rep.Adjusted {
		v := work.Nodes[nodeKey].Variant(adj.Key)
		v.Weight = params.Set(adj.New)
		if cleared[adj.Key] {
			v.WeightOverridden = false
		}
	}
	return work, rep, nil
}

// edgeSiblings resolves the node and returns the preferred keys of its
// outgoing edges, in snapshot order.
func edgeSiblings(target Target, snap *graph.Snapshot, nodeKey, originKey string) ([]string, error) {
	if snap == nil {
		return nil, &Error{Target: target, Entity: nodeKey, Origin: originKey, Message: "no graph snapshot"}
	}
	res := snap.ResolveNode(nodeKey)
	if !res.Resolved() {
		return nil, &Error{Target: target, Entity: nodeKey, Origin: originKey, Message: "node not found in snapshot"}
	}
	edges := snap.EdgesFrom(res.UID)
	if len(edges) == 0 {
		return nil, &Error{Target: target, Entity: nodeKey, Origin: originKey, Message: "node has no outgoing edges"}
	}
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = snap.PreferredEdgeKey(e.UID)
	}
	return keys, nil
}

// splitSiblings separates the origin from the other siblings, reading
// each member's current value and classification from its probability
// spec. A sibling without parameters is a free member at value zero.
func splitSiblings(keys []string, originKey string, probAt func(string) *params.ProbSpec) (*member, []member) {
	var origin *member
	var others []member
	for _, key := range keys {
		p := probAt(key)
		m := member{key: key}
		if p != nil {
			m.value = p.Mean.Or(0)
			m.locked = p.Locked()
			m.overridden = p.IsOverridden("mean")
		}
		if key == originKey {
			o := m
			origin = &o
			continue
		}
		others = append(others, m)
	}
	return origin, others
}
