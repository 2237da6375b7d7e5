package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	return NewSnapshot(
		[]Node{
			{ID: "landing", UID: "n-uid-1"},
			{ID: "checkout", UID: "n-uid-2"},
			{UID: "n-uid-3"}, // no human-readable id
		},
		[]Edge{
			{ID: "e1", UID: "e-uid-1", From: "n-uid-1", To: "n-uid-2"},
			{UID: "e-uid-2", From: "n-uid-2", To: "n-uid-3"},
		},
	)
}

func TestResolveNodeByID(t *testing.T) {
	s := testSnapshot(t)
	res := s.ResolveNode("landing")
	require.True(t, res.Resolved())
	assert.Equal(t, "n-uid-1", res.UID)
}

func TestResolveNodeByUID(t *testing.T) {
	s := testSnapshot(t)

	// Plain token falls back to generated identifier lookup.
	res := s.ResolveNode("n-uid-3")
	require.True(t, res.Resolved())
	assert.Equal(t, "n-uid-3", res.UID)

	// Explicit uuid(...) wrapper.
	res = s.ResolveNode("uuid(n-uid-2)")
	require.True(t, res.Resolved())
	assert.Equal(t, "n-uid-2", res.UID)
}

func TestResolveNodeNotFound(t *testing.T) {
	s := testSnapshot(t)
	res := s.ResolveNode("missing")
	assert.Equal(t, CodeNotFound, res.Code)
	assert.False(t, res.Resolved())
	assert.Empty(t, res.UID)
}

func TestResolveNodeInvalidIdent(t *testing.T) {
	s := testSnapshot(t)
	for _, token := range []string{"bad.id", "bad(id", "bad:id", "a,b", ""} {
		res := s.ResolveNode(token)
		assert.Equal(t, CodeInvalid, res.Code, "token %q", token)
	}
}

func TestResolveEdgeThreeForms(t *testing.T) {
	s := testSnapshot(t)

	// The same edge must resolve identically through all three grammars.
	for _, token := range []string{"e1", "uuid(e-uid-1)", "from(landing).to(checkout)"} {
		res := s.ResolveEdge(token)
		require.True(t, res.Resolved(), "token %q", token)
		assert.Equal(t, "e-uid-1", res.UID, "token %q", token)
	}
}

func TestResolveEdgeFromToWithUUIDNodes(t *testing.T) {
	s := testSnapshot(t)
	res := s.ResolveEdge("from(uuid(n-uid-2)).to(uuid(n-uid-3))")
	require.True(t, res.Resolved())
	assert.Equal(t, "e-uid-2", res.UID)
}

func TestResolveEdgeFromToUnresolvedEndpoint(t *testing.T) {
	s := testSnapshot(t)
	res := s.ResolveEdge("from(landing).to(nowhere)")
	assert.Equal(t, CodeNotFound, res.Code)
}

func TestResolveEdgeNoSuchPair(t *testing.T) {
	s := testSnapshot(t)

	// Both endpoints exist, but no edge connects them in that direction.
	res := s.ResolveEdge("from(checkout).to(landing)")
	assert.Equal(t, CodeNotFound, res.Code)
}

func TestPreferredKey(t *testing.T) {
	s := testSnapshot(t)

	key, ok := s.PreferredKey(KindEdge, "from(landing).to(checkout)")
	require.True(t, ok)
	assert.Equal(t, "e1", key)

	// Edge without an id falls back to its UID.
	key, ok = s.PreferredKey(KindEdge, "uuid(e-uid-2)")
	require.True(t, ok)
	assert.Equal(t, "e-uid-2", key)

	// Unresolved tokens come back unchanged.
	key, ok = s.PreferredKey(KindNode, "ghost")
	assert.False(t, ok)
	assert.Equal(t, "ghost", key)
}

func TestEdgesFrom(t *testing.T) {
	s := testSnapshot(t)
	out := s.EdgesFrom("n-uid-1")
	require.Len(t, out, 1)
	assert.Equal(t, "e-uid-1", out[0].UID)
	assert.Empty(t, s.EdgesFrom("n-uid-3"))
}

func TestSnapshotWithGeneratedUIDs(t *testing.T) {
	// Snapshots built from real generated identifiers resolve the same way.
	a, b := uuid.NewString(), uuid.NewString()
	s := NewSnapshot(
		[]Node{{ID: "a", UID: a}, {ID: "b", UID: b}},
		[]Edge{{UID: uuid.NewString(), From: a, To: b}},
	)
	res := s.ResolveEdge("from(a).to(b)")
	require.True(t, res.Resolved())
	assert.Equal(t, s.Edges[0].UID, res.UID)
}
