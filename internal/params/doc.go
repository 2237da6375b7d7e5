// Package params defines the scenario parameter diff tree: the typed
// model for probabilistic parameters (probabilities, costs, entry
// weights, case variant weights) attached to graph edges and nodes.
//
// A ScenarioParams value is a diff, not a full document: only fields
// that are present carry meaning. Field distinguishes "absent" from an
// explicit removal marker, so merges can delete fields without relying
// on sentinel values.
package params
