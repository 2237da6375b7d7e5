package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldStates(t *testing.T) {
	var absent Field[float64]
	assert.True(t, absent.IsAbsent())
	assert.False(t, absent.IsSet())
	assert.False(t, absent.IsRemoved())

	set := Set(0.5)
	assert.True(t, set.IsSet())
	v, ok := set.Get()
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 0.5, set.Or(9))

	rem := Removed[float64]()
	assert.True(t, rem.IsRemoved())
	assert.False(t, rem.IsSet())
	_, ok = rem.Get()
	assert.False(t, ok)
	assert.Equal(t, 9.0, rem.Or(9))
}

func TestComposeOverlayWins(t *testing.T) {
	base := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {P: &ProbSpec{Mean: Set(0.5)}},
	}}
	overlay := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {P: &ProbSpec{Mean: Set(0.7)}},
	}}

	out := Compose(base, overlay)
	mean, ok := out.Edges["e1"].P.Mean.Get()
	require.True(t, ok)
	assert.Equal(t, 0.7, mean)

	// Inputs untouched.
	assert.Equal(t, 0.5, base.Edges["e1"].P.Mean.Or(-1))
	assert.Equal(t, 0.7, overlay.Edges["e1"].P.Mean.Or(-1))
}

func TestComposeRemovalMarker(t *testing.T) {
	base := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {P: &ProbSpec{Mean: Set(0.5), Stdev: Set(0.1)}},
	}}
	overlay := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {P: &ProbSpec{Stdev: Removed[float64]()}},
	}}

	out := Compose(base, overlay)
	assert.Equal(t, 0.5, out.Edges["e1"].P.Mean.Or(-1))
	assert.True(t, out.Edges["e1"].P.Stdev.IsAbsent())
}

func TestComposeDisjointEntities(t *testing.T) {
	base := &ScenarioParams{
		Edges: map[string]*EdgeParams{"e1": {WeightDefault: Set(1.0)}},
	}
	overlay := &ScenarioParams{
		Nodes: map[string]*NodeParams{"start": {EntryWeight: Set(0.8)}},
	}

	out := Compose(base, overlay)
	assert.Len(t, out.Edges, 1)
	assert.Len(t, out.Nodes, 1)
	assert.Equal(t, 0.8, out.Nodes["start"].EntryWeight.Or(-1))
}

func TestComposeConditional(t *testing.T) {
	base := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {ConditionalP: map[string]*ProbSpec{
			"visited(promo)": {Mean: Set(0.6)},
		}},
	}}
	overlay := &ScenarioParams{Edges: map[string]*EdgeParams{
		"e1": {ConditionalP: map[string]*ProbSpec{
			"visited(promo)": {Stdev: Set(0.05)},
			"window(-30d:)":  {Mean: Set(0.4)},
		}},
	}}

	out := Compose(base, overlay)
	cp := out.Edges["e1"].ConditionalP
	require.Len(t, cp, 2)
	assert.Equal(t, 0.6, cp["visited(promo)"].Mean.Or(-1))
	assert.Equal(t, 0.05, cp["visited(promo)"].Stdev.Or(-1))
	assert.Equal(t, 0.4, cp["window(-30d:)"].Mean.Or(-1))
}

func TestComposeVariantsByName(t *testing.T) {
	base := &ScenarioParams{Nodes: map[string]*NodeParams{
		"exp": {Variants: []CaseVariant{
			{Name: "control", Weight: Set(0.5), ActiveEdges: []string{"e-uid-1"}},
			{Name: "treatment", Weight: Set(0.5)},
		}},
	}}
	overlay := &ScenarioParams{Nodes: map[string]*NodeParams{
		"exp": {Variants: []CaseVariant{
			{Name: "treatment", Weight: Set(0.6)},
			{Name: "holdout", Weight: Set(0.1)},
		}},
	}}

	out := Compose(base, overlay)
	vs := out.Nodes["exp"].Variants
	require.Len(t, vs, 3)

	treatment := out.Nodes["exp"].Variant("treatment")
	require.NotNil(t, treatment)
	assert.Equal(t, 0.6, treatment.Weight.Or(-1))

	control := out.Nodes["exp"].Variant("control")
	require.NotNil(t, control)
	assert.Equal(t, 0.5, control.Weight.Or(-1))
	assert.Equal(t, []string{"e-uid-1"}, control.ActiveEdges)
}

func TestCloneIsDeep(t *testing.T) {
	orig := &ScenarioParams{
		Edges: map[string]*EdgeParams{
			"e1": {P: &ProbSpec{
				Mean:       Set(0.5),
				Evidence:   map[string]any{"n": 100.0},
				Overridden: map[string]bool{"mean": true},
			}},
		},
		Nodes: map[string]*NodeParams{
			"exp": {Variants: []CaseVariant{{Name: "a", ActiveEdges: []string{"x"}}}},
		},
	}

	cp := orig.Clone()
	cp.Edges["e1"].P.Mean = Set(0.9)
	cp.Edges["e1"].P.Evidence["n"] = 200.0
	cp.Edges["e1"].P.Overridden["mean"] = false
	cp.Nodes["exp"].Variants[0].ActiveEdges[0] = "y"

	assert.Equal(t, 0.5, orig.Edges["e1"].P.Mean.Or(-1))
	assert.Equal(t, 100.0, orig.Edges["e1"].P.Evidence["n"])
	assert.True(t, orig.Edges["e1"].P.Overridden["mean"])
	assert.Equal(t, "x", orig.Nodes["exp"].Variants[0].ActiveEdges[0])
}

func TestEmpty(t *testing.T) {
	var nilTree *ScenarioParams
	assert.True(t, nilTree.Empty())
	assert.True(t, (&ScenarioParams{}).Empty())
	assert.False(t, (&ScenarioParams{Edges: map[string]*EdgeParams{"e1": {}}}).Empty())
}
