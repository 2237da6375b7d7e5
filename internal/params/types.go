package params

// ScenarioParams is a diff tree over the graph's parameters. Keys are
// entity keys: the entity's human-readable id when it has one, else
// its generated identifier. One tree must never mix both key forms for
// the same logical entity.
type ScenarioParams struct {
	Edges map[string]*EdgeParams
	Nodes map[string]*NodeParams
}

// EdgeParams holds the parameter diff for one edge.
type EdgeParams struct {
	// P is the unconditional conversion probability.
	P *ProbSpec

	// ConditionalP maps canonical condition strings (see the condition
	// package) to the probability that applies under that condition.
	ConditionalP map[string]*ProbSpec

	// WeightDefault is the fallback traversal weight.
	WeightDefault Field[float64]

	CostGBP  *CostSpec
	CostTime *CostSpec
}

// NodeParams holds the parameter diff for one node.
type NodeParams struct {
	EntryWeight  Field[float64] // entry.entry_weight
	CostMonetary Field[float64] // costs.monetary
	CostTime     Field[float64] // costs.time

	// Overridden flags hand-edited fields by dotted path
	// ("entry.entry_weight", "costs.monetary", "costs.time").
	Overridden map[string]bool

	// Variants is the ordered A/B case variant list. Order is display
	// order only; summation does not depend on it. Nil means the diff
	// says nothing about variants.
	Variants []CaseVariant
}

// ProbSpec is a probability distribution diff. Only set fields carry
// meaning; a removal marker deletes the field on merge.
type ProbSpec struct {
	Mean         Field[float64]
	Stdev        Field[float64]
	Min          Field[float64]
	Max          Field[float64]
	Alpha        Field[float64]
	Beta         Field[float64]
	Distribution Field[string]

	// Evidence and Forecast carry opaque provenance scalars supplied by
	// the latency/forecast collaborator (sample counts, window bounds,
	// retrieval timestamps). This package never computes them.
	Evidence map[string]any
	Forecast map[string]any

	// Overridden flags fields the user edited by hand, keyed by field
	// name ("mean", "stdev", ...). Overridden fields are protected from
	// synchronization overwrites; evidence fields never are.
	Overridden map[string]bool

	// RecordID and Source bind this slot to an external parameter
	// record. A non-empty RecordID locks the slot against normal
	// rebalancing.
	RecordID string
	Source   string
}

// CostSpec is a cost distribution diff with a fixed unit tag.
type CostSpec struct {
	Mean         Field[float64]
	Stdev        Field[float64]
	Distribution Field[string]

	Overridden map[string]bool
	RecordID   string
	Source     string
}

// CaseVariant is one A/B test variant of a case node.
type CaseVariant struct {
	Name   string
	Weight Field[float64]

	// WeightOverridden marks a hand-edited weight.
	WeightOverridden bool

	// RecordID locks the variant to an external parameter record.
	RecordID string

	// ActiveEdges references the edges this variant activates. This is
	// graph-only data: a destination variant carrying it survives a
	// sync even when the source omits the variant.
	ActiveEdges []string
}

// Locked reports whether the slot is bound to an external record.
func (p *ProbSpec) Locked() bool { return p != nil && p.RecordID != "" }

// IsOverridden reports whether the named field carries an override.
func (p *ProbSpec) IsOverridden(field string) bool {
	return p != nil && p.Overridden[field]
}

// Locked reports whether the variant is bound to an external record.
func (v CaseVariant) Locked() bool { return v.RecordID != "" }

// Edge returns the diff for key, allocating the entry if needed.
func (sp *ScenarioParams) Edge(key string) *EdgeParams {
	if sp.Edges == nil {
		sp.Edges = make(map[string]*EdgeParams)
	}
	e := sp.Edges[key]
	if e == nil {
		e = &EdgeParams{}
		sp.Edges[key] = e
	}
	return e
}

// Node returns the diff for key, allocating the entry if needed.
func (sp *ScenarioParams) Node(key string) *NodeParams {
	if sp.Nodes == nil {
		sp.Nodes = make(map[string]*NodeParams)
	}
	n := sp.Nodes[key]
	if n == nil {
		n = &NodeParams{}
		sp.Nodes[key] = n
	}
	return n
}

// Conditional returns the spec for the given condition string,
// allocating the entry if needed.
func (e *EdgeParams) Conditional(cond string) *ProbSpec {
	if e.ConditionalP == nil {
		e.ConditionalP = make(map[string]*ProbSpec)
	}
	p := e.ConditionalP[cond]
	if p == nil {
		p = &ProbSpec{}
		e.ConditionalP[cond] = p
	}
	return p
}

// Variant returns a pointer to the named variant, or nil.
func (n *NodeParams) Variant(name string) *CaseVariant {
	for i := range n.Variants {
		if n.Variants[i].Name == name {
			return &n.Variants[i]
		}
	}
	return nil
}

// Empty reports whether the tree carries no entries at all.
func (sp *ScenarioParams) Empty() bool {
	return sp == nil || (len(sp.Edges) == 0 && len(sp.Nodes) == 0)
}
