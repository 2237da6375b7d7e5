// Package graph defines the read-only graph snapshot consumed by the
// parameter engines, and the entity reference resolver that maps
// human-readable tokens (plain ids, uuid(...) wrappers, from(a).to(b)
// topology patterns) to canonical entities.
//
// The snapshot is a value handed in by the graph provider; nothing in
// this package mutates it. Resolution failures are values, not errors:
// callers accumulate unresolved tokens and decide what to do with them.
package graph
