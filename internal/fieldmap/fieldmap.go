// Package fieldmap defines the field-classification table that drives
// synchronization: which fields a user override protects, which fields
// are measured provenance that always syncs, and which fields indicate
// an external record binding. The table is data, not code: it is
// compiled from a CUE document so deployments can adjust it, and a
// built-in default covers the standard parameter slots.
package fieldmap

import (
	"fmt"
	"sort"
	"strings"
	gosync "sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// Class is a field's synchronization classification.
type Class string

const (
	// ClassFree fields sync normally and honor override flags.
	ClassFree Class = "free"

	// ClassEvidence fields are measured provenance (sample counts,
	// window bounds, retrieval timestamps, source tags). They always
	// sync; overrides never apply to them.
	ClassEvidence Class = "evidence"

	// ClassLock fields indicate an external record binding. A non-empty
	// value locks the slot against normal rebalancing.
	ClassLock Class = "lock"
)

var validClasses = map[string]Class{
	string(ClassFree):     ClassFree,
	string(ClassEvidence): ClassEvidence,
	string(ClassLock):     ClassLock,
}

// EntityKind names a parameter slot family in the table.
type EntityKind string

const (
	KindEdgeProbability EntityKind = "edge_probability"
	KindEdgeCost        EntityKind = "edge_cost"
	KindCaseVariant     EntityKind = "case_variant"
	KindNode            EntityKind = "node"
)

// Table maps entity kinds to field classifications. Field names ending
// in ".*" classify a whole sub-tree ("evidence.*" covers "evidence.n").
type Table struct {
	kinds map[EntityKind]map[string]Class
}

// Classify returns the classification for a field, defaulting to free
// for fields the table does not mention.
func (t *Table) Classify(kind EntityKind, field string) Class {
	if t == nil {
		return ClassFree
	}
	fields, ok := t.kinds[kind]
	if !ok {
		return ClassFree
	}
	if c, ok := fields[field]; ok {
		return c
	}
	for pattern, c := range fields {
		if prefix, found := strings.CutSuffix(pattern, ".*"); found &&
			strings.HasPrefix(field, prefix+".") {
			return c
		}
	}
	return ClassFree
}

// IsEvidence reports whether the field always syncs regardless of
// overrides.
func (t *Table) IsEvidence(kind EntityKind, field string) bool {
	return t.Classify(kind, field) == ClassEvidence
}

// Kinds returns the entity kinds the table classifies, sorted.
func (t *Table) Kinds() []EntityKind {
	if t == nil {
		return nil
	}
	kinds := make([]EntityKind, 0, len(t.kinds))
	for k := range t.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// CompileError reports an invalid fieldmap document.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: fieldmap %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("fieldmap %s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into a Table. The value should hold a
// "fields" struct keyed by entity kind, each kind a struct of field
// name to class name:
//
//	fields: edge_probability: {
//		mean:         "free"
//		"evidence.*": "evidence"
//		record_id:    "lock"
//	}
func Compile(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, &CompileError{Field: "fields", Message: err.Error()}
	}
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields struct is required", Pos: v.Pos()}
	}

	table := &Table{kinds: make(map[EntityKind]map[string]Class)}
	kinds, err := fieldsVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: "fields", Message: err.Error(), Pos: fieldsVal.Pos()}
	}
	for kinds.Next() {
		kind := EntityKind(kinds.Label())
		entries := make(map[string]Class)
		fields, err := kinds.Value().Fields()
		if err != nil {
			return nil, &CompileError{Field: string(kind), Message: err.Error(), Pos: kinds.Value().Pos()}
		}
		for fields.Next() {
			name := fields.Label()
			className, err := fields.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.%s", kind, name),
					Message: "class must be a string",
					Pos:     fields.Value().Pos(),
				}
			}
			class, ok := validClasses[className]
			if !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.%s", kind, name),
					Message: fmt.Sprintf("invalid class %q, must be \"free\", \"evidence\", or \"lock\"", className),
					Pos:     fields.Value().Pos(),
				}
			}
			entries[name] = class
		}
		table.kinds[kind] = entries
	}
	return table, nil
}

// CompileSource compiles a CUE document from source text.
func CompileSource(source string) (*Table, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source)
	return Compile(v)
}

// defaultCUE is the built-in classification, in the same document
// shape a deployment would supply.
const defaultCUE = `
fields: {
	edge_probability: {
		mean:         "free"
		stdev:        "free"
		min:          "free"
		max:          "free"
		alpha:        "free"
		beta:         "free"
		distribution: "free"
		"evidence.*": "evidence"
		"forecast.*": "evidence"
		record_id:    "lock"
		source:       "lock"
	}
	edge_cost: {
		mean:         "free"
		stdev:        "free"
		distribution: "free"
		record_id:    "lock"
		source:       "lock"
	}
	case_variant: {
		weight:    "free"
		record_id: "lock"
	}
	node: {
		"entry.entry_weight": "free"
		"costs.monetary":     "free"
		"costs.time":         "free"
	}
}
`

var (
	defaultOnce  gosync.Once
	defaultTable *Table
)

// Default returns the built-in table. It panics only if the bundled
// document is itself invalid, which a test pins down.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := CompileSource(defaultCUE)
		if err != nil {
			panic(fmt.Sprintf("built-in fieldmap is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}
