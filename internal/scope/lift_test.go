package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parampack/parampack/internal/hrn"
)

func TestLiftBareFieldsIntoEdgeParam(t *testing.T) {
	pack := hrn.FlatMap{
		"mean":    0.55,
		"p.stdev": 0.03,
	}
	sp, unresolved, err := Lift(pack, EdgeParam("signup", SlotP), nil)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	require.Contains(t, sp.Edges, "signup")
	assert.Equal(t, 0.55, sp.Edges["signup"].P.Mean.Or(-1))
	assert.Equal(t, 0.03, sp.Edges["signup"].P.Stdev.Or(-1))
}

func TestLiftDropsOutOfScopeKeys(t *testing.T) {
	// A probability-scoped source must not write cost fields, and
	// unknown fields vanish silently.
	pack := hrn.FlatMap{
		"mean":          0.5,
		"cost_gbp.mean": 99.0,
		"surprise":      1.0,
	}
	sp, _, err := Lift(pack, EdgeParam("signup", SlotP), nil)
	require.NoError(t, err)
	e := sp.Edges["signup"]
	assert.Equal(t, 0.5, e.P.Mean.Or(-1))
	assert.Nil(t, e.CostGBP)
}

func TestLiftCostSlot(t *testing.T) {
	pack := hrn.FlatMap{"value": 12.0, "stdev": 2.0, "p.mean": 0.4}
	sp, _, err := Lift(pack, EdgeParam("signup", SlotCostGBP), nil)
	require.NoError(t, err)
	e := sp.Edges["signup"]
	require.NotNil(t, e.CostGBP)
	assert.Equal(t, 12.0, e.CostGBP.Mean.Or(-1))
	assert.Equal(t, 2.0, e.CostGBP.Stdev.Or(-1))
	assert.Nil(t, e.P)
}

func TestLiftConditionalScope(t *testing.T) {
	pack := hrn.FlatMap{
		"mean":                   0.6,
		"visited(promo).p.stdev": 0.01,  // names this scope's condition
		"visited(other).p.mean":  0.9,   // different condition: dropped
		"evidence.n":             200.0, // provenance rides along
	}
	sp, _, err := Lift(pack, EdgeConditional("signup", "visited(promo)"), nil)
	require.NoError(t, err)
	cp := sp.Edges["signup"].ConditionalP
	require.Len(t, cp, 1)
	spec := cp["visited(promo)"]
	assert.Equal(t, 0.6, spec.Mean.Or(-1))
	assert.Equal(t, 0.01, spec.Stdev.Or(-1))
	assert.Equal(t, 200.0, spec.Evidence["n"])
}

func TestLiftNodeScope(t *testing.T) {
	pack := hrn.FlatMap{
		"entry.entry_weight": 0.3,
		"costs.monetary":     5.0,
		"p.mean":             0.7, // edge field: dropped
	}
	sp, _, err := Lift(pack, Node("start"), nil)
	require.NoError(t, err)
	n := sp.Nodes["start"]
	require.NotNil(t, n)
	assert.Equal(t, 0.3, n.EntryWeight.Or(-1))
	assert.Equal(t, 5.0, n.CostMonetary.Or(-1))
	assert.Empty(t, sp.Edges)
}

func TestLiftCaseScope(t *testing.T) {
	pack := hrn.FlatMap{"weight": 0.25}
	sp, _, err := Lift(pack, Case("exp", "treatment"), nil)
	require.NoError(t, err)
	require.Contains(t, sp.Nodes, "exp")
	require.Len(t, sp.Nodes["exp"].Variants, 1)
	assert.Equal(t, "treatment", sp.Nodes["exp"].Variants[0].Name)
	assert.Equal(t, 0.25, sp.Nodes["exp"].Variants[0].Weight.Or(-1))
}

func TestLiftCaseScopeWithoutVariantDropsWeight(t *testing.T) {
	sp, _, err := Lift(hrn.FlatMap{"weight": 0.25}, Case("exp", ""), nil)
	require.NoError(t, err)
	assert.True(t, sp.Empty())
}

func TestLiftQualifiedKeysPassThrough(t *testing.T) {
	pack := hrn.FlatMap{
		"mean":               0.5,
		"n.exp.costs.time":   0.1,
		"e.other.p.mean":     0.8,
	}
	sp, _, err := Lift(pack, EdgeParam("signup", SlotP), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, sp.Edges["signup"].P.Mean.Or(-1))
	assert.Equal(t, 0.8, sp.Edges["other"].P.Mean.Or(-1))
	assert.Equal(t, 0.1, sp.Nodes["exp"].CostTime.Or(-1))
}

func TestLiftResolvesThroughSnapshot(t *testing.T) {
	snap := scopeSnapshot()
	pack := hrn.FlatMap{"mean": 0.5}
	sp, unresolved, err := Lift(pack, EdgeParam("from(landing).to(exp)", SlotP), snap)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	require.Contains(t, sp.Edges, "signup")
}
