// Package scope narrows scenario parameter trees to one edge, node,
// condition or variant slot, and lifts scope-relative flat keys from
// external sources into fully qualified HRN keys.
package scope

import (
	"fmt"

	"github.com/parampack/parampack/internal/condition"
	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/params"
)

// Kind identifies the narrowing mode.
type Kind string

const (
	// KindGraph applies no narrowing.
	KindGraph Kind = "graph"

	// KindEdgeParam selects one slot (p, cost_gbp, cost_time) of one edge.
	KindEdgeParam Kind = "edge-param"

	// KindEdgeConditional selects one conditional entry of one edge.
	KindEdgeConditional Kind = "edge-conditional"

	// KindNode selects one node's parameters.
	KindNode Kind = "node"

	// KindCase selects a node's variants, optionally one by name.
	KindCase Kind = "case"
)

// Edge slots selectable by KindEdgeParam.
const (
	SlotP        = "p"
	SlotCostGBP  = "cost_gbp"
	SlotCostTime = "cost_time"
)

// Scope is a narrowing descriptor. Entity holds an entity reference
// token in any of the resolver grammars, not necessarily a tree key.
type Scope struct {
	Kind      Kind
	Entity    string // edge or node reference (all kinds but graph)
	Slot      string // KindEdgeParam only
	Condition string // KindEdgeConditional only
	Variant   string // KindCase only; empty selects all variants
}

// Graph returns the no-narrowing scope.
func Graph() Scope { return Scope{Kind: KindGraph} }

// EdgeParam returns a scope selecting one slot of one edge.
func EdgeParam(entity, slot string) Scope {
	return Scope{Kind: KindEdgeParam, Entity: entity, Slot: slot}
}

// EdgeConditional returns a scope selecting one conditional entry.
func EdgeConditional(entity, cond string) Scope {
	return Scope{Kind: KindEdgeConditional, Entity: entity, Condition: cond}
}

// Node returns a scope selecting one node.
func Node(entity string) Scope { return Scope{Kind: KindNode, Entity: entity} }

// Case returns a scope selecting a node's variants. An empty variant
// name selects all of them.
func Case(entity, variant string) Scope {
	return Scope{Kind: KindCase, Entity: entity, Variant: variant}
}

func (s Scope) String() string {
	switch s.Kind {
	case KindGraph:
		return "graph"
	case KindEdgeParam:
		return fmt.Sprintf("edge-param(%s/%s)", s.Entity, s.Slot)
	case KindEdgeConditional:
		return fmt.Sprintf("edge-conditional(%s/%s)", s.Entity, s.Condition)
	case KindNode:
		return fmt.Sprintf("node(%s)", s.Entity)
	case KindCase:
		if s.Variant != "" {
			return fmt.Sprintf("case(%s:%s)", s.Entity, s.Variant)
		}
		return fmt.Sprintf("case(%s)", s.Entity)
	}
	return string(s.Kind)
}

// entityKey resolves the scope's entity token to the key used in
// parameter trees. Without a snapshot the token itself is the key.
func (s Scope) entityKey(snap *graph.Snapshot) string {
	if snap == nil {
		return s.Entity
	}
	kind := graph.KindNode
	if s.Kind == KindEdgeParam || s.Kind == KindEdgeConditional {
		kind = graph.KindEdge
	}
	key, _ := snap.PreferredKey(kind, s.Entity)
	return key
}

// Apply returns a new tree containing only the slots the scope
// selects. The input is never mutated. A scope that selects nothing
// present in the tree yields an empty tree, not an error.
func Apply(sp *params.ScenarioParams, s Scope, snap *graph.Snapshot) *params.ScenarioParams {
	if s.Kind == KindGraph {
		return sp.Clone()
	}
	out := &params.ScenarioParams{}
	if sp == nil {
		return out
	}
	key := s.entityKey(snap)

	switch s.Kind {
	case KindEdgeParam:
		e := sp.Edges[key]
		if e == nil {
			return out
		}
		narrowed := &params.EdgeParams{}
		switch s.Slot {
		case SlotP:
			if e.P == nil {
				return out
			}
			narrowed.P = e.P.Clone()
		case SlotCostGBP:
			if e.CostGBP == nil {
				return out
			}
			narrowed.CostGBP = e.CostGBP.Clone()
		case SlotCostTime:
			if e.CostTime == nil {
				return out
			}
			narrowed.CostTime = e.CostTime.Clone()
		default:
			return out
		}
		out.Edges = map[string]*params.EdgeParams{key: narrowed}

	case KindEdgeConditional:
		e := sp.Edges[key]
		if e == nil {
			return out
		}
		p, cond := matchCondition(e, s.Condition, snap)
		if p == nil {
			return out
		}
		out.Edges = map[string]*params.EdgeParams{key: {
			ConditionalP: map[string]*params.ProbSpec{cond: p.Clone()},
		}}

	case KindNode:
		n := sp.Nodes[key]
		if n == nil {
			return out
		}
		out.Nodes = map[string]*params.NodeParams{key: n.Clone()}

	case KindCase:
		n := sp.Nodes[key]
		if n == nil || n.Variants == nil {
			return out
		}
		narrowed := &params.NodeParams{}
		if s.Variant == "" {
			narrowed.Variants = make([]params.CaseVariant, len(n.Variants))
			for i, v := range n.Variants {
				narrowed.Variants[i] = v.Clone()
			}
		} else {
			v := n.Variant(s.Variant)
			if v == nil {
				// Absent variant narrows to nothing.
				return out
			}
			narrowed.Variants = []params.CaseVariant{v.Clone()}
		}
		out.Nodes = map[string]*params.NodeParams{key: narrowed}
	}
	return out
}

// matchCondition finds the conditional entry for the requested
// condition string: exact match first, then one retry after
// normalizing clause references through the resolver.
func matchCondition(e *params.EdgeParams, cond string, snap *graph.Snapshot) (*params.ProbSpec, string) {
	if p, ok := e.ConditionalP[cond]; ok {
		return p, cond
	}
	normalized, _ := condition.Normalize(cond, snap)
	if normalized != cond {
		if p, ok := e.ConditionalP[normalized]; ok {
			return p, normalized
		}
	}
	return nil, ""
}
