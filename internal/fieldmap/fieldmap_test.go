package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := Default()
	require.NotNil(t, table)

	assert.Equal(t, ClassFree, table.Classify(KindEdgeProbability, "mean"))
	assert.Equal(t, ClassEvidence, table.Classify(KindEdgeProbability, "evidence.n"))
	assert.Equal(t, ClassEvidence, table.Classify(KindEdgeProbability, "forecast.mean"))
	assert.Equal(t, ClassLock, table.Classify(KindEdgeProbability, "record_id"))
	assert.Equal(t, ClassFree, table.Classify(KindCaseVariant, "weight"))
	assert.Equal(t, ClassLock, table.Classify(KindCaseVariant, "record_id"))
}

func TestClassifyUnknownDefaultsToFree(t *testing.T) {
	table := Default()
	assert.Equal(t, ClassFree, table.Classify(KindEdgeProbability, "novel_field"))
	assert.Equal(t, ClassFree, table.Classify(EntityKind("unknown_kind"), "mean"))

	var nilTable *Table
	assert.Equal(t, ClassFree, nilTable.Classify(KindEdgeProbability, "mean"))
}

func TestIsEvidence(t *testing.T) {
	table := Default()
	assert.True(t, table.IsEvidence(KindEdgeProbability, "evidence.window_from"))
	assert.False(t, table.IsEvidence(KindEdgeProbability, "mean"))
	assert.False(t, table.IsEvidence(KindEdgeProbability, "evidence"))
}

func TestCompileSourceCustom(t *testing.T) {
	table, err := CompileSource(`
		fields: edge_probability: {
			mean:       "free"
			"extra.*":  "evidence"
			binding_id: "lock"
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, ClassEvidence, table.Classify(KindEdgeProbability, "extra.anything"))
	assert.Equal(t, ClassLock, table.Classify(KindEdgeProbability, "binding_id"))
}

func TestCompileMissingFields(t *testing.T) {
	_, err := CompileSource(`other: {}`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fields", ce.Field)
}

func TestCompileInvalidClass(t *testing.T) {
	_, err := CompileSource(`fields: edge_probability: mean: "sticky"`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "sticky")
}

func TestCompileNonStringClass(t *testing.T) {
	_, err := CompileSource(`fields: edge_probability: mean: 3`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}
