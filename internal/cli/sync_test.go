package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"

	"github.com/parampack/parampack/internal/hrn"
	"github.com/parampack/parampack/internal/store"
)

// seedRecords writes records into a fresh database and returns its path.
func seedRecords(t *testing.T, dir string, records ...store.Record) string {
	t.Helper()
	dbPath := filepath.Join(dir, "records.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, rec := range records {
		_, err := st.PutRecord(ctx, rec)
		require.NoError(t, err)
	}
	return dbPath
}

func TestSyncAppliesRecordAndRebalances(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir, store.Record{
		ID:     "rec-1",
		Source: "analytics",
		Pack:   hrn.FlatMap{"e.buy.p.mean": 0.6},
	})
	outPath := filepath.Join(dir, "out.yaml")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--op", "append",
		"--out", outPath,
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["records"])
	assert.Equal(t, float64(1), data["rebalances"])
	assert.Equal(t, float64(0), data["unbalanced"])

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var flat map[string]float64
	require.NoError(t, yaml.Unmarshal(raw, &flat))

	// The siblings had no prior mass, so the remaining 0.4 splits evenly.
	assert.Equal(t, 0.6, flat["e.buy.p.mean"])
	assert.InDelta(t, 0.2, flat["e.browse.p.mean"], 1e-9)
	assert.InDelta(t, 0.2, flat["e.leave.p.mean"], 1e-9)
}

func TestSyncRecordsApplyInSequence(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir,
		store.Record{ID: "rec-1", Source: "analytics", Pack: hrn.FlatMap{"e.buy.p.mean": 0.6}},
		store.Record{ID: "rec-2", Source: "analytics", Pack: hrn.FlatMap{"e.browse.p.mean": 0.3}},
	)
	outPath := filepath.Join(dir, "out.yaml")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--source", "analytics",
		"--op", "append",
		"--out", outPath,
	})

	err := cmd.Execute()
	require.NoError(t, err)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var flat map[string]float64
	require.NoError(t, yaml.Unmarshal(raw, &flat))

	// rec-1 lands buy at 0.6 and the even split leaves browse and
	// leave at 0.2 each. rec-2 then moves browse to 0.3; buy is bound
	// to rec-1 and stays locked, so leave absorbs the difference.
	assert.Equal(t, 0.6, flat["e.buy.p.mean"])
	assert.InDelta(t, 0.3, flat["e.browse.p.mean"], 1e-9)
	assert.InDelta(t, 0.1, flat["e.leave.p.mean"], 1e-9)
}

func TestSyncSourceFilter(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir,
		store.Record{ID: "rec-1", Source: "analytics", Pack: hrn.FlatMap{"e.buy.p.mean": 0.6}},
		store.Record{ID: "rec-2", Source: "survey", Pack: hrn.FlatMap{"e.browse.p.mean": 0.9}},
	)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--source", "survey",
		"--op", "append",
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["records"])
}

func TestSyncValidateOnlyLeavesTreeUnwritten(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir, store.Record{
		ID: "rec-1", Source: "analytics", Pack: hrn.FlatMap{"e.buy.p.mean": 0.6},
	})
	outPath := filepath.Join(dir, "out.yaml")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--op", "append",
		"--validate-only",
		"--out", outPath,
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	// Mean plus the record binding fields.
	assert.Equal(t, float64(3), data["changes"])

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSyncStopOnErrorAborts(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir,
		store.Record{ID: "rec-1", Source: "analytics", Pack: hrn.FlatMap{"bogus": 1.0}},
		store.Record{ID: "rec-2", Source: "analytics", Pack: hrn.FlatMap{"e.buy.p.mean": 0.6}},
	)
	outPath := filepath.Join(dir, "out.yaml")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--op", "append",
		"--stop-on-error",
		"--out", outPath,
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "sync aborted")

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSyncCollectsErrorsAndContinues(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir,
		store.Record{ID: "rec-1", Source: "analytics", Pack: hrn.FlatMap{"bogus": 1.0}},
		store.Record{ID: "rec-2", Source: "analytics", Pack: hrn.FlatMap{"e.buy.p.mean": 0.6}},
	)
	outPath := filepath.Join(dir, "out.yaml")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--graph", graphPath,
		"--op", "append",
		"--out", outPath,
	})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["errors"], 1)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var flat map[string]float64
	require.NoError(t, yaml.Unmarshal(raw, &flat))
	assert.Equal(t, 0.6, flat["e.buy.p.mean"])
}

func TestSyncInvalidOp(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeSnapshotFile(t, dir)
	dbPath := seedRecords(t, dir)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSyncCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--graph", graphPath, "--op", "merge"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "invalid op")
}
