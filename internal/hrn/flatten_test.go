package hrn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parampack/parampack/internal/params"
)

// richTree builds a tree touching every flattenable slot. Variant
// names are alphabetical so the round trip preserves display order.
func richTree() *params.ScenarioParams {
	return &params.ScenarioParams{
		Edges: map[string]*params.EdgeParams{
			"signup": {
				P: &params.ProbSpec{
					Mean:         params.Set(0.42),
					Stdev:        params.Set(0.05),
					Distribution: params.Set("beta"),
					Alpha:        params.Set(42.0),
					Beta:         params.Set(58.0),
					Evidence:     map[string]any{"n": 100.0, "k": 42.0, "source": "analytics"},
					Forecast:     map[string]any{"mean": 0.44},
				},
				ConditionalP: map[string]*params.ProbSpec{
					"visited(promo)":                 {Mean: params.Set(0.6)},
					"context(region:uk).window(-30d:)": {Mean: params.Set(0.35), Stdev: params.Set(0.02)},
				},
				WeightDefault: params.Set(1.0),
				CostGBP:       &params.CostSpec{Mean: params.Set(12.5), Stdev: params.Set(1.5)},
				CostTime:      &params.CostSpec{Mean: params.Set(0.25), Distribution: params.Set("lognormal")},
			},
		},
		Nodes: map[string]*params.NodeParams{
			"start": {
				EntryWeight:  params.Set(0.8),
				CostMonetary: params.Set(3.0),
				CostTime:     params.Set(0.1),
			},
			"exp": {
				Variants: []params.CaseVariant{
					{Name: "control", Weight: params.Set(0.5)},
					{Name: "treatment", Weight: params.Set(0.5)},
				},
			},
		},
	}
}

func TestFlattenKeys(t *testing.T) {
	flat := Flatten(richTree())

	assert.Equal(t, 0.42, flat["e.signup.p.mean"])
	assert.Equal(t, "beta", flat["e.signup.p.distribution"])
	assert.Equal(t, 100.0, flat["e.signup.p.evidence.n"])
	assert.Equal(t, 0.44, flat["e.signup.p.forecast.mean"])
	assert.Equal(t, 1.0, flat["e.signup.weight_default"])
	assert.Equal(t, 12.5, flat["e.signup.cost_gbp.mean"])
	assert.Equal(t, 0.25, flat["e.signup.cost_time.mean"])
	assert.Equal(t, 0.8, flat["n.start.entry.entry_weight"])
	assert.Equal(t, 3.0, flat["n.start.costs.monetary"])
	assert.Equal(t, 0.5, flat["n.exp.case(exp:control).weight"])
	assert.Equal(t, 0.5, flat["n.exp.case(exp:treatment).weight"])
}

func TestFlattenConditionalSplicesClauseDirectly(t *testing.T) {
	// No conditional_p literal segment appears in the key.
	sp := &params.ScenarioParams{Edges: map[string]*params.EdgeParams{
		"edge-1": {ConditionalP: map[string]*params.ProbSpec{
			"visited(promo)": {Mean: params.Set(0.6)},
		}},
	}}
	flat := Flatten(sp)
	require.Len(t, flat, 1)
	assert.Equal(t, 0.6, flat["e.edge-1.visited(promo).p.mean"])

	back, err := Unflatten(flat)
	require.NoError(t, err)
	assert.Equal(t, sp, back)
}

func TestFlattenRemovalMarker(t *testing.T) {
	sp := &params.ScenarioParams{Edges: map[string]*params.EdgeParams{
		"signup": {P: &params.ProbSpec{Stdev: params.Removed[float64]()}},
	}}
	flat := Flatten(sp)
	v, present := flat["e.signup.p.stdev"]
	require.True(t, present)
	assert.Nil(t, v)

	back, err := Unflatten(flat)
	require.NoError(t, err)
	assert.True(t, back.Edges["signup"].P.Stdev.IsRemoved())
}

func TestRoundTripTree(t *testing.T) {
	sp := richTree()
	back, err := Unflatten(Flatten(sp))
	require.NoError(t, err)
	assert.Equal(t, sp, back)
}

func TestRoundTripFlatIdempotent(t *testing.T) {
	// flatten -> unflatten -> flatten is the identity on param packs,
	// including ones carrying removal markers.
	sp := richTree()
	sp.Edges["signup"].P.Min = params.Removed[float64]()

	flat := Flatten(sp)
	mid, err := Unflatten(flat)
	require.NoError(t, err)
	assert.Equal(t, flat, Flatten(mid))
}

func TestUnflattenConditionalWithDottedClauseArgs(t *testing.T) {
	// Dots inside clause parentheses must not split the path.
	flat := FlatMap{
		"e.signup.visitedAny(a,b).context(k:v.1).p.mean": 0.3,
	}
	sp, err := Unflatten(flat)
	require.NoError(t, err)
	cp := sp.Edges["signup"].ConditionalP
	require.Len(t, cp, 1)
	assert.Equal(t, 0.3, cp["visitedAny(a,b).context(k:v.1)"].Mean.Or(-1))
}

func TestUnflattenCaseVariantBeforeConditional(t *testing.T) {
	// Node case(...) keys are variant weights, not conditions.
	flat := FlatMap{"n.exp.case(exp:control).weight": 0.5}
	sp, err := Unflatten(flat)
	require.NoError(t, err)
	require.Len(t, sp.Nodes["exp"].Variants, 1)
	assert.Equal(t, "control", sp.Nodes["exp"].Variants[0].Name)

	// The same clause on an edge is a conditional probability.
	flat = FlatMap{"e.signup.case(exp:control).p.mean": 0.5}
	sp, err = Unflatten(flat)
	require.NoError(t, err)
	assert.Contains(t, sp.Edges["signup"].ConditionalP, "case(exp:control)")
}

func TestUnflattenErrors(t *testing.T) {
	tests := []struct {
		name string
		flat FlatMap
	}{
		{"short key", FlatMap{"e.signup": 1.0}},
		{"bad prefix", FlatMap{"x.signup.p.mean": 1.0}},
		{"unknown edge path", FlatMap{"e.signup.bogus": 1.0}},
		{"unknown node path", FlatMap{"n.start.bogus.path": 1.0}},
		{"clause without p", FlatMap{"e.signup.visited(promo).mean": 1.0}},
		{"clause on node", FlatMap{"n.start.visited(promo).p.mean": 1.0}},
		{"string for number", FlatMap{"e.signup.p.mean": "high"}},
		{"number for string", FlatMap{"e.signup.p.distribution": 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unflatten(tt.flat)
			require.Error(t, err)
			var ke *KeyError
			assert.ErrorAs(t, err, &ke)
		})
	}
}

func TestUnflattenCaseIDMismatchNormalized(t *testing.T) {
	// A divergent case id is tolerated; the variant keys on the node.
	flat := FlatMap{"n.exp.case(other:control).weight": 0.5}
	sp, err := Unflatten(flat)
	require.NoError(t, err)
	require.NotNil(t, sp.Nodes["exp"])
	require.Len(t, sp.Nodes["exp"].Variants, 1)
	assert.Equal(t, "control", sp.Nodes["exp"].Variants[0].Name)
}
