// Package condition models the condition-clause grammar attached to
// conditional probabilities. A condition is an ordered list of typed
// clauses; the textual form (e.g. "visited(promo).window(-30d:)") is
// parsed and rendered only at the boundary. Inside the engines a
// condition string is an opaque map key, but clause arguments that
// reference nodes can be normalized through the graph resolver so two
// spellings of the same condition collapse to one key.
package condition

import (
	"fmt"
	"strings"

	"github.com/parampack/parampack/internal/graph"
)

// Kind identifies a clause variant. The set is closed.
type Kind string

const (
	KindVisited    Kind = "visited"
	KindVisitedAny Kind = "visitedAny"
	KindContext    Kind = "context"
	KindContextAny Kind = "contextAny"
	KindWindow     Kind = "window"
	KindCase       Kind = "case"
	KindExclude    Kind = "exclude"
)

// clauseKinds is the recognized keyword set, used both here and by the
// flat-key disambiguation in the hrn package.
var clauseKinds = map[string]Kind{
	"visited":    KindVisited,
	"visitedAny": KindVisitedAny,
	"context":    KindContext,
	"contextAny": KindContextAny,
	"window":     KindWindow,
	"case":       KindCase,
	"exclude":    KindExclude,
}

// KV is one key:value argument of a context clause.
type KV struct {
	Key   string
	Value string
}

// Clause is one typed clause. Which argument fields are populated
// depends on Kind:
//
//	Visited, Exclude:       Refs (exactly one node reference)
//	VisitedAny:             Refs (one or more node references)
//	Context:                Pairs (exactly one)
//	ContextAny:             Pairs (one or more)
//	Case:                   CaseID, Variant
//	Window:                 From, To (either may be empty)
type Clause struct {
	Kind    Kind
	Refs    []string
	Pairs   []KV
	CaseID  string
	Variant string
	From    string
	To      string
}

// Condition is an ordered clause sequence.
type Condition []Clause

// ParseError reports a malformed condition or clause.
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid condition %q: %s", e.Input, e.Message)
}

// SplitTop splits s on sep runes that sit outside parentheses.
// Clause arguments may contain dots, colons and commas inside their
// own parentheses; naive splitting would tear them apart.
func SplitTop(s string, sep rune) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + len(string(r))
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// cutTop splits s at the first top-level occurrence of sep.
func cutTop(s string, sep rune) (string, string, bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				return s[:i], s[i+len(string(r)):], true
			}
		}
	}
	return s, "", false
}

// IsClauseToken reports whether seg has the shape of a recognized
// clause: a known keyword immediately followed by a parenthesized
// argument list.
func IsClauseToken(seg string) bool {
	name, _, ok := splitCall(seg)
	if !ok {
		return false
	}
	_, known := clauseKinds[name]
	return known
}

// splitCall splits "name(body)" into name and body, requiring balanced
// parentheses in the body.
func splitCall(seg string) (name, body string, ok bool) {
	open := strings.IndexByte(seg, '(')
	if open <= 0 || !strings.HasSuffix(seg, ")") {
		return "", "", false
	}
	name = seg[:open]
	body = seg[open+1 : len(seg)-1]
	depth := 0
	for _, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", "", false
			}
		}
	}
	return name, body, depth == 0
}

// ParseClause parses one clause token.
func ParseClause(seg string) (Clause, error) {
	name, body, ok := splitCall(seg)
	if !ok {
		return Clause{}, &ParseError{Input: seg, Message: "not a clause token"}
	}
	kind, known := clauseKinds[name]
	if !known {
		return Clause{}, &ParseError{Input: seg, Message: fmt.Sprintf("unknown clause keyword %q", name)}
	}

	c := Clause{Kind: kind}
	switch kind {
	case KindVisited, KindExclude:
		if strings.TrimSpace(body) == "" {
			return Clause{}, &ParseError{Input: seg, Message: "missing node reference"}
		}
		c.Refs = []string{strings.TrimSpace(body)}

	case KindVisitedAny:
		for _, ref := range SplitTop(body, ',') {
			ref = strings.TrimSpace(ref)
			if ref == "" {
				return Clause{}, &ParseError{Input: seg, Message: "empty node reference"}
			}
			c.Refs = append(c.Refs, ref)
		}
		if len(c.Refs) == 0 {
			return Clause{}, &ParseError{Input: seg, Message: "missing node references"}
		}

	case KindContext:
		k, v, found := cutTop(body, ':')
		if !found {
			return Clause{}, &ParseError{Input: seg, Message: "context requires key:value"}
		}
		c.Pairs = []KV{{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)}}

	case KindContextAny:
		for _, pair := range SplitTop(body, ',') {
			k, v, found := cutTop(pair, ':')
			if !found {
				return Clause{}, &ParseError{Input: seg, Message: "contextAny requires key:value pairs"}
			}
			c.Pairs = append(c.Pairs, KV{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
		}
		if len(c.Pairs) == 0 {
			return Clause{}, &ParseError{Input: seg, Message: "missing key:value pairs"}
		}

	case KindCase:
		id, variant, found := cutTop(body, ':')
		if !found {
			return Clause{}, &ParseError{Input: seg, Message: "case requires caseId:variant"}
		}
		c.CaseID = strings.TrimSpace(id)
		c.Variant = strings.TrimSpace(variant)

	case KindWindow:
		from, to, found := cutTop(body, ':')
		if !found {
			return Clause{}, &ParseError{Input: seg, Message: "window requires from:to"}
		}
		c.From = strings.TrimSpace(from)
		c.To = strings.TrimSpace(to)
	}
	return c, nil
}

// Parse parses a dot-joined clause sequence.
func Parse(cond string) (Condition, error) {
	if strings.TrimSpace(cond) == "" {
		return nil, &ParseError{Input: cond, Message: "empty condition"}
	}
	var out Condition
	for _, seg := range SplitTop(cond, '.') {
		c, err := ParseClause(strings.TrimSpace(seg))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// String renders the clause in canonical textual form.
func (c Clause) String() string {
	switch c.Kind {
	case KindVisited, KindExclude:
		ref := ""
		if len(c.Refs) > 0 {
			ref = c.Refs[0]
		}
		return fmt.Sprintf("%s(%s)", c.Kind, ref)
	case KindVisitedAny:
		return fmt.Sprintf("%s(%s)", c.Kind, strings.Join(c.Refs, ","))
	case KindContext, KindContextAny:
		pairs := make([]string, len(c.Pairs))
		for i, p := range c.Pairs {
			pairs[i] = p.Key + ":" + p.Value
		}
		return fmt.Sprintf("%s(%s)", c.Kind, strings.Join(pairs, ","))
	case KindCase:
		return fmt.Sprintf("case(%s:%s)", c.CaseID, c.Variant)
	case KindWindow:
		return fmt.Sprintf("window(%s:%s)", c.From, c.To)
	}
	return string(c.Kind) + "()"
}

// String renders the condition in canonical textual form.
func (cond Condition) String() string {
	segs := make([]string, len(cond))
	for i, c := range cond {
		segs[i] = c.String()
	}
	return strings.Join(segs, ".")
}

// Normalize rewrites node references inside visited/visitedAny/exclude
// clauses to each entity's preferred key and returns the canonical
// string. Tokens that fail to resolve are kept as written and returned
// in unresolved. A condition that does not parse is returned unchanged
// with no unresolved tokens; the caller's exact-match path handles it.
func Normalize(cond string, snap *graph.Snapshot) (string, []string) {
	if snap == nil {
		return cond, nil
	}
	parsed, err := Parse(cond)
	if err != nil {
		return cond, nil
	}
	var unresolved []string
	for i, c := range parsed {
		switch c.Kind {
		case KindVisited, KindVisitedAny, KindExclude:
			refs := make([]string, len(c.Refs))
			for j, ref := range c.Refs {
				key, ok := snap.PreferredKey(graph.KindNode, ref)
				if !ok {
					unresolved = append(unresolved, ref)
				}
				refs[j] = key
			}
			parsed[i].Refs = refs
		}
	}
	return parsed.String(), unresolved
}
