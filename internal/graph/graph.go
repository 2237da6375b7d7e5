package graph

// Node is one node of the graph snapshot.
// ID is the optional human-readable identifier; UID is the
// graph-assigned generated identifier and is always present.
type Node struct {
	ID  string `json:"id,omitempty"`
	UID string `json:"uid"`
}

// Edge is one directed edge of the graph snapshot.
// From and To reference node UIDs, never human-readable ids.
type Edge struct {
	ID   string `json:"id,omitempty"`
	UID  string `json:"uid"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Snapshot is an immutable view of the graph at one point in time.
// Build one with NewSnapshot; the lookup indexes are computed once.
type Snapshot struct {
	Nodes []Node
	Edges []Edge

	nodeByID   map[string]int
	nodeByUID  map[string]int
	edgeByID   map[string]int
	edgeByUID  map[string]int
	edgeByPair map[[2]string]int // [from UID, to UID] -> edge index
}

// NewSnapshot builds a snapshot with its lookup indexes.
// The slices are not copied; callers must not mutate them afterwards.
func NewSnapshot(nodes []Node, edges []Edge) *Snapshot {
	s := &Snapshot{
		Nodes:      nodes,
		Edges:      edges,
		nodeByID:   make(map[string]int, len(nodes)),
		nodeByUID:  make(map[string]int, len(nodes)),
		edgeByID:   make(map[string]int, len(edges)),
		edgeByUID:  make(map[string]int, len(edges)),
		edgeByPair: make(map[[2]string]int, len(edges)),
	}
	for i, n := range nodes {
		if n.ID != "" {
			s.nodeByID[n.ID] = i
		}
		s.nodeByUID[n.UID] = i
	}
	for i, e := range edges {
		if e.ID != "" {
			s.edgeByID[e.ID] = i
		}
		s.edgeByUID[e.UID] = i
		s.edgeByPair[[2]string{e.From, e.To}] = i
	}
	return s
}

// NodeByUID returns the node with the given generated identifier.
func (s *Snapshot) NodeByUID(uid string) (Node, bool) {
	i, ok := s.nodeByUID[uid]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// EdgeByUID returns the edge with the given generated identifier.
func (s *Snapshot) EdgeByUID(uid string) (Edge, bool) {
	i, ok := s.edgeByUID[uid]
	if !ok {
		return Edge{}, false
	}
	return s.Edges[i], true
}

// EdgesFrom returns the outgoing edges of the node with the given UID,
// in snapshot order. Used to assemble sibling sets for rebalancing.
func (s *Snapshot) EdgesFrom(nodeUID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.From == nodeUID {
			out = append(out, e)
		}
	}
	return out
}

// PreferredNodeKey returns the key downstream code should use for the
// node: the human-readable id when present, otherwise the UID.
func (s *Snapshot) PreferredNodeKey(uid string) string {
	if n, ok := s.NodeByUID(uid); ok && n.ID != "" {
		return n.ID
	}
	return uid
}

// PreferredEdgeKey returns the key downstream code should use for the
// edge: the human-readable id when present, otherwise the UID.
func (s *Snapshot) PreferredEdgeKey(uid string) string {
	if e, ok := s.EdgeByUID(uid); ok && e.ID != "" {
		return e.ID
	}
	return uid
}
