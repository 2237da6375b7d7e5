package params

// Clone returns a deep copy of the tree. The copy shares nothing with
// the original; apply-style operations clone before touching anything.
func (sp *ScenarioParams) Clone() *ScenarioParams {
	if sp == nil {
		return &ScenarioParams{}
	}
	out := &ScenarioParams{}
	if sp.Edges != nil {
		out.Edges = make(map[string]*EdgeParams, len(sp.Edges))
		for k, e := range sp.Edges {
			out.Edges[k] = e.Clone()
		}
	}
	if sp.Nodes != nil {
		out.Nodes = make(map[string]*NodeParams, len(sp.Nodes))
		for k, n := range sp.Nodes {
			out.Nodes[k] = n.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the edge diff.
func (e *EdgeParams) Clone() *EdgeParams {
	if e == nil {
		return nil
	}
	out := &EdgeParams{
		P:             e.P.Clone(),
		WeightDefault: e.WeightDefault,
		CostGBP:       e.CostGBP.Clone(),
		CostTime:      e.CostTime.Clone(),
	}
	if e.ConditionalP != nil {
		out.ConditionalP = make(map[string]*ProbSpec, len(e.ConditionalP))
		for cond, p := range e.ConditionalP {
			out.ConditionalP[cond] = p.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the node diff.
func (n *NodeParams) Clone() *NodeParams {
	if n == nil {
		return nil
	}
	out := &NodeParams{
		EntryWeight:  n.EntryWeight,
		CostMonetary: n.CostMonetary,
		CostTime:     n.CostTime,
		Overridden:   cloneBoolMap(n.Overridden),
	}
	if n.Variants != nil {
		out.Variants = make([]CaseVariant, len(n.Variants))
		for i, v := range n.Variants {
			out.Variants[i] = v.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the spec.
func (p *ProbSpec) Clone() *ProbSpec {
	if p == nil {
		return nil
	}
	out := *p
	out.Evidence = cloneScalarMap(p.Evidence)
	out.Forecast = cloneScalarMap(p.Forecast)
	out.Overridden = cloneBoolMap(p.Overridden)
	return &out
}

// Clone returns a deep copy of the spec.
func (c *CostSpec) Clone() *CostSpec {
	if c == nil {
		return nil
	}
	out := *c
	out.Overridden = cloneBoolMap(c.Overridden)
	return &out
}

// Clone returns a deep copy of the variant.
func (v CaseVariant) Clone() CaseVariant {
	out := v
	if v.ActiveEdges != nil {
		out.ActiveEdges = append([]string(nil), v.ActiveEdges...)
	}
	return out
}

func cloneScalarMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Compose layers the overlays over base, left to right, and returns a
// new tree. Neither base nor any overlay is mutated. Set fields in a
// later overlay win; removal markers delete the field from the result.
func Compose(base *ScenarioParams, overlays ...*ScenarioParams) *ScenarioParams {
	out := base.Clone()
	for _, overlay := range overlays {
		if overlay == nil {
			continue
		}
		for key, src := range overlay.Edges {
			dst := out.Edge(key)
			mergeEdge(dst, src)
		}
		for key, src := range overlay.Nodes {
			dst := out.Node(key)
			mergeNode(dst, src)
		}
	}
	return out
}

func mergeEdge(dst, src *EdgeParams) {
	if src.P != nil {
		if dst.P == nil {
			dst.P = &ProbSpec{}
		}
		mergeProb(dst.P, src.P)
	}
	for cond, p := range src.ConditionalP {
		mergeProb(dst.Conditional(cond), p)
	}
	dst.WeightDefault = mergeField(dst.WeightDefault, src.WeightDefault)
	if src.CostGBP != nil {
		if dst.CostGBP == nil {
			dst.CostGBP = &CostSpec{}
		}
		mergeCost(dst.CostGBP, src.CostGBP)
	}
	if src.CostTime != nil {
		if dst.CostTime == nil {
			dst.CostTime = &CostSpec{}
		}
		mergeCost(dst.CostTime, src.CostTime)
	}
}

func mergeNode(dst, src *NodeParams) {
	dst.EntryWeight = mergeField(dst.EntryWeight, src.EntryWeight)
	dst.CostMonetary = mergeField(dst.CostMonetary, src.CostMonetary)
	dst.CostTime = mergeField(dst.CostTime, src.CostTime)
	for k, v := range src.Overridden {
		if dst.Overridden == nil {
			dst.Overridden = make(map[string]bool)
		}
		dst.Overridden[k] = v
	}
	if src.Variants == nil {
		return
	}
	// Variants merge by name; source order wins for matched entries,
	// destination-only entries keep their relative order at the end.
	merged := make([]CaseVariant, 0, len(src.Variants)+len(dst.Variants))
	seen := make(map[string]bool, len(src.Variants))
	for _, sv := range src.Variants {
		seen[sv.Name] = true
		if dv := dst.Variant(sv.Name); dv != nil {
			mv := dv.Clone()
			mv.Weight = mergeField(mv.Weight, sv.Weight)
			if sv.WeightOverridden {
				mv.WeightOverridden = true
			}
			if sv.RecordID != "" {
				mv.RecordID = sv.RecordID
			}
			if sv.ActiveEdges != nil {
				mv.ActiveEdges = append([]string(nil), sv.ActiveEdges...)
			}
			merged = append(merged, mv)
			continue
		}
		merged = append(merged, sv.Clone())
	}
	for _, dv := range dst.Variants {
		if !seen[dv.Name] {
			merged = append(merged, dv.Clone())
		}
	}
	dst.Variants = merged
}

func mergeProb(dst, src *ProbSpec) {
	dst.Mean = mergeField(dst.Mean, src.Mean)
	dst.Stdev = mergeField(dst.Stdev, src.Stdev)
	dst.Min = mergeField(dst.Min, src.Min)
	dst.Max = mergeField(dst.Max, src.Max)
	dst.Alpha = mergeField(dst.Alpha, src.Alpha)
	dst.Beta = mergeField(dst.Beta, src.Beta)
	dst.Distribution = mergeField(dst.Distribution, src.Distribution)
	for k, v := range src.Evidence {
		if dst.Evidence == nil {
			dst.Evidence = make(map[string]any)
		}
		dst.Evidence[k] = v
	}
	for k, v := range src.Forecast {
		if dst.Forecast == nil {
			dst.Forecast = make(map[string]any)
		}
		dst.Forecast[k] = v
	}
	for k, v := range src.Overridden {
		if dst.Overridden == nil {
			dst.Overridden = make(map[string]bool)
		}
		dst.Overridden[k] = v
	}
	if src.RecordID != "" {
		dst.RecordID = src.RecordID
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
}

func mergeCost(dst, src *CostSpec) {
	dst.Mean = mergeField(dst.Mean, src.Mean)
	dst.Stdev = mergeField(dst.Stdev, src.Stdev)
	dst.Distribution = mergeField(dst.Distribution, src.Distribution)
	for k, v := range src.Overridden {
		if dst.Overridden == nil {
			dst.Overridden = make(map[string]bool)
		}
		dst.Overridden[k] = v
	}
	if src.RecordID != "" {
		dst.RecordID = src.RecordID
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
}
