// Package hrn implements the flat-key addressing grammar for scenario
// parameters (HRN: Human-Readable Name) and its textual encodings.
//
// Every parameter slot on any edge or node is addressable by one flat
// key of the form
//
//	("e"|"n") "." <entity-token> ["." <clause>]* "." <leaf-path>
//
// e.g. "e.signup.p.mean", "e.signup.visited(promo).p.mean",
// "n.exp.case(exp:control).weight". The engine converts losslessly
// between the typed diff tree (params.ScenarioParams) and flat maps,
// and between flat maps and YAML/JSON/CSV text in flat or nested
// structure.
//
// Key parsing is order-sensitive: entity tokens and condition clauses
// may contain dots inside parentheses, so keys are split with the
// paren-aware splitter from the condition package and clause segments
// are recognized before any plain dotted path is assumed.
package hrn
