// Package sync implements the directional synchronization engine: a
// field-level diff/apply between a source parameter record and a
// destination parameter entity, under override and lock rules supplied
// by a fieldmap table.
//
// The engine is pure. Apply operations work on clones and return new
// values; ValidateOnly changes only whether the clone is written to,
// never which changes, conflicts or rebalance facts are computed.
package sync

import "github.com/parampack/parampack/internal/fieldmap"

// Operation selects the synchronization shape.
type Operation string

const (
	// OpCreate builds destination entries that do not exist yet.
	OpCreate Operation = "create"

	// OpUpdate merges into existing destination entries; destination
	// collection members absent from the source may be removed.
	OpUpdate Operation = "update"

	// OpAppend adds and merges but never removes destination data.
	OpAppend Operation = "append"
)

// Direction names which representation is writing into which.
// The set is closed; dispatch on it is exhaustive.
type Direction string

const (
	// DirExternalToGraph ingests a live external feed into graph
	// params. Raw counts are derived into probabilities first.
	DirExternalToGraph Direction = "external_to_graph"

	// DirRecordToGraph ingests a stored parameter record.
	DirRecordToGraph Direction = "record_to_graph"

	// DirGraphToRecord exports graph params into a record.
	DirGraphToRecord Direction = "graph_to_record"

	// DirUserToGraph applies a user edit; it sets override flags
	// rather than honoring them.
	DirUserToGraph Direction = "user_to_graph"
)

// Options configures one synchronization call.
type Options struct {
	Direction Direction

	// Interactive is carried through for callers that prompt on
	// conflicts; the engine itself only reports them.
	Interactive bool

	// ValidateOnly computes the full diff without applying it.
	ValidateOnly bool

	// StopOnError aborts the call on the first error instead of
	// collecting errors and continuing. Only payload derivation can
	// error; tree merges report conflicts, not errors.
	StopOnError bool

	// Table overrides the field classification; nil uses the default.
	Table *fieldmap.Table
}

func (o Options) table() *fieldmap.Table {
	if o.Table != nil {
		return o.Table
	}
	return fieldmap.Default()
}

// Change records one field the sync would (or did) rewrite.
// Old and New are nil for absent sides.
type Change struct {
	Field string
	Old   any
	New   any
}

// Conflict reason strings.
const (
	ReasonOverridden = "overridden"
)

// Conflict records a field the sync skipped under protection rules.
type Conflict struct {
	Field  string
	Reason string
}

// RebalanceRequest marks a mass-constrained field whose value changed;
// the caller must rebalance the sibling set before its next call.
type RebalanceRequest struct {
	EntityKey string // edge or node key
	Field     string // e.g. "p.mean", "visited(x).p.mean", "case(n:v).weight"
}

// Metadata carries side-channel facts about the call. It is computed
// identically with and without ValidateOnly.
type Metadata struct {
	Rebalance []RebalanceRequest
}

// Result is the outcome of one synchronization call. It is built
// fresh per call and not mutated after being returned.
type Result struct {
	Success   bool
	Changes   []Change
	Conflicts []Conflict
	Errors    []error
	Metadata  Metadata
}

func (r *Result) change(field string, old, new any) {
	r.Changes = append(r.Changes, Change{Field: field, Old: old, New: new})
}

func (r *Result) conflict(field, reason string) {
	r.Conflicts = append(r.Conflicts, Conflict{Field: field, Reason: reason})
}
