package hrn

import (
	"strings"

	"github.com/parampack/parampack/internal/condition"
	"github.com/parampack/parampack/internal/graph"
)

// ResolveKeys rewrites every key's entity token, and every node
// reference inside condition clauses, to the entity's preferred key.
// Tokens that fail to resolve are left as written and collected into
// the returned list; the rewrite is best-effort, never an error.
//
// This must run before Unflatten when keys may carry uuid(...) or
// from(a).to(b) entity tokens: the topology form contains top-level
// dots that Unflatten's path splitting does not accept.
func ResolveKeys(flat FlatMap, snap *graph.Snapshot) (FlatMap, []string) {
	out := make(FlatMap, len(flat))
	var unresolved []string
	seen := make(map[string]bool)
	record := func(tokens ...string) {
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				unresolved = append(unresolved, tok)
			}
		}
	}

	for _, key := range flat.SortedKeys() {
		out[resolveKey(key, snap, record)] = flat[key]
	}
	return out, unresolved
}

func resolveKey(key string, snap *graph.Snapshot, record func(...string)) string {
	if snap == nil {
		return key
	}
	segs := condition.SplitTop(key, '.')
	if len(segs) < 3 {
		return key
	}

	var kind graph.EntityKind
	switch segs[0] {
	case "e":
		kind = graph.KindEdge
	case "n":
		kind = graph.KindNode
	default:
		return key
	}

	// A from(a).to(b) entity token spans two top-level segments.
	entity := segs[1]
	restStart := 2
	if kind == graph.KindEdge && strings.HasPrefix(segs[1], "from(") &&
		len(segs) >= 4 && strings.HasPrefix(segs[2], "to(") {
		entity = segs[1] + "." + segs[2]
		restStart = 3
	}

	entityKey, ok := snap.PreferredKey(kind, entity)
	if !ok {
		record(entity)
		entityKey = entity
	}

	rest := append([]string(nil), segs[restStart:]...)
	switch kind {
	case graph.KindEdge:
		nclauses := 0
		for nclauses < len(rest) && condition.IsClauseToken(rest[nclauses]) {
			nclauses++
		}
		if nclauses > 0 {
			cond := strings.Join(rest[:nclauses], ".")
			normalized, unres := condition.Normalize(cond, snap)
			record(unres...)
			rest = append([]string{normalized}, rest[nclauses:]...)
		}
	case graph.KindNode:
		// Case-variant keys carry the owning node's key as the case id;
		// keep it in step with the resolved entity key.
		if ok && len(rest) == 2 && rest[1] == "weight" && condition.IsClauseToken(rest[0]) {
			if clause, err := condition.ParseClause(rest[0]); err == nil && clause.Kind == condition.KindCase {
				clause.CaseID = entityKey
				rest[0] = clause.String()
			}
		}
	}

	return segs[0] + "." + entityKey + "." + strings.Join(rest, ".")
}
