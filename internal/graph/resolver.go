package graph

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// EntityKind distinguishes the two resolvable entity families.
type EntityKind string

const (
	KindNode EntityKind = "node"
	KindEdge EntityKind = "edge"
)

// ResolutionCode categorizes the outcome of resolving one token.
type ResolutionCode string

const (
	// CodeResolved means the token mapped to exactly one entity.
	CodeResolved ResolutionCode = "RESOLVED"

	// CodeNotFound means the token was well-formed but matched nothing.
	CodeNotFound ResolutionCode = "NOT_FOUND"

	// CodeInvalid means the token contains characters that break the
	// reference grammar ('(', ')', '.', ':', ',') outside a recognized
	// wrapper. Such identifiers are rejected here rather than allowed
	// to silently corrupt derived flat keys downstream.
	CodeInvalid ResolutionCode = "INVALID"
)

// Resolution is the outcome of resolving one entity token.
// It is a value, never an error: callers collect unresolved tokens.
type Resolution struct {
	Code  ResolutionCode
	Kind  EntityKind
	UID   string // set only when Code == CodeResolved
	Token string // the original token, NFC-normalized
}

// Resolved reports whether the token mapped to an entity.
func (r Resolution) Resolved() bool { return r.Code == CodeResolved }

// ValidIdent reports whether id is usable as a plain identifier inside
// the reference grammar. Identifiers carrying grammar characters are
// rejected at this boundary (see CodeInvalid).
func ValidIdent(id string) bool {
	if id == "" {
		return false
	}
	return !strings.ContainsAny(id, "().:,")
}

// unwrapCall matches name(<body>) against the given call name and
// returns the body. The body may itself contain balanced parentheses.
func unwrapCall(token, name string) (string, bool) {
	if !strings.HasPrefix(token, name+"(") || !strings.HasSuffix(token, ")") {
		return "", false
	}
	body := token[len(name)+1 : len(token)-1]
	depth := 0
	for _, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", false
			}
		}
	}
	return body, depth == 0
}

// splitFromTo splits a from(a).to(b) token into its two node tokens.
// The split point is the ").to(" between two balanced argument bodies,
// so node tokens containing parentheses (uuid wrappers) survive.
func splitFromTo(token string) (from, to string, ok bool) {
	if !strings.HasPrefix(token, "from(") || !strings.HasSuffix(token, ")") {
		return "", "", false
	}
	rest := token[len("from("):]
	depth := 1
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				tail := rest[i:]
				if !strings.HasPrefix(tail, ").to(") {
					return "", "", false
				}
				inner := tail[len(").to("):]
				if !strings.HasSuffix(inner, ")") {
					return "", "", false
				}
				return rest[:i], inner[:len(inner)-1], true
			}
		}
	}
	return "", "", false
}

// ResolveNode resolves a node token: a plain id or uuid(<id>).
// Plain ids are tried against human-readable ids first, then against
// generated identifiers.
func (s *Snapshot) ResolveNode(token string) Resolution {
	token = norm.NFC.String(strings.TrimSpace(token))
	res := Resolution{Kind: KindNode, Token: token}

	if body, ok := unwrapCall(token, "uuid"); ok {
		if _, found := s.NodeByUID(body); found {
			res.Code, res.UID = CodeResolved, body
			return res
		}
		res.Code = CodeNotFound
		return res
	}

	if !ValidIdent(token) {
		res.Code = CodeInvalid
		return res
	}
	if i, ok := s.nodeByID[token]; ok {
		res.Code, res.UID = CodeResolved, s.Nodes[i].UID
		return res
	}
	if _, ok := s.NodeByUID(token); ok {
		res.Code, res.UID = CodeResolved, token
		return res
	}
	res.Code = CodeNotFound
	return res
}

// ResolveEdge resolves an edge token: a plain id, uuid(<id>), or a
// from(a).to(b) topology pattern whose arguments are node tokens.
func (s *Snapshot) ResolveEdge(token string) Resolution {
	token = norm.NFC.String(strings.TrimSpace(token))
	res := Resolution{Kind: KindEdge, Token: token}

	if body, ok := unwrapCall(token, "uuid"); ok {
		if _, found := s.EdgeByUID(body); found {
			res.Code, res.UID = CodeResolved, body
			return res
		}
		res.Code = CodeNotFound
		return res
	}

	if from, to, ok := splitFromTo(token); ok {
		fromRes := s.ResolveNode(from)
		toRes := s.ResolveNode(to)
		if fromRes.Code == CodeInvalid || toRes.Code == CodeInvalid {
			res.Code = CodeInvalid
			return res
		}
		if !fromRes.Resolved() || !toRes.Resolved() {
			res.Code = CodeNotFound
			return res
		}
		if i, found := s.edgeByPair[[2]string{fromRes.UID, toRes.UID}]; found {
			res.Code, res.UID = CodeResolved, s.Edges[i].UID
			return res
		}
		res.Code = CodeNotFound
		return res
	}

	if !ValidIdent(token) {
		res.Code = CodeInvalid
		return res
	}
	if i, ok := s.edgeByID[token]; ok {
		res.Code, res.UID = CodeResolved, s.Edges[i].UID
		return res
	}
	if _, ok := s.EdgeByUID(token); ok {
		res.Code, res.UID = CodeResolved, token
		return res
	}
	res.Code = CodeNotFound
	return res
}

// Resolve dispatches to ResolveNode or ResolveEdge by kind.
func (s *Snapshot) Resolve(kind EntityKind, token string) Resolution {
	if kind == KindEdge {
		return s.ResolveEdge(token)
	}
	return s.ResolveNode(token)
}

// PreferredKey resolves a token and returns the canonical key to write
// back into flat maps (id if present, else UID). The second return is
// false when the token did not resolve; the token itself is returned
// unchanged in that case so callers can keep it and record the miss.
func (s *Snapshot) PreferredKey(kind EntityKind, token string) (string, bool) {
	res := s.Resolve(kind, token)
	if !res.Resolved() {
		return token, false
	}
	if kind == KindEdge {
		return s.PreferredEdgeKey(res.UID), true
	}
	return s.PreferredNodeKey(res.UID), true
}
