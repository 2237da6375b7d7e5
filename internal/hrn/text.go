package hrn

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parampack/parampack/internal/condition"
	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/params"
)

// Format selects the textual encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	// FormatCSV is export-only: two columns, key and value.
	FormatCSV Format = "csv"
)

// Structure selects between fully-flat keys and entity-grouped nesting.
type Structure string

const (
	StructureFlat   Structure = "flat"
	StructureNested Structure = "nested"
)

// ValidFormats lists the accepted format names.
var ValidFormats = []string{string(FormatYAML), string(FormatJSON), string(FormatCSV)}

// ParseError wraps the underlying decoder failure for a textual
// encoding. Nothing is partially applied when one is returned.
type ParseError struct {
	Format  Format
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Format, e.Message, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ToText renders a diff tree in the given format and structure.
// CSV output is always flat regardless of the requested structure.
func ToText(sp *params.ScenarioParams, format Format, structure Structure) (string, error) {
	flat := Flatten(sp)
	switch format {
	case FormatCSV:
		return toCSV(flat)
	case FormatJSON:
		doc := documentFor(flat, structure)
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case FormatYAML:
		doc := documentFor(flat, structure)
		data, err := yaml.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

// FromText parses a textual encoding back into a diff tree. When a
// snapshot is supplied, entity and clause tokens are resolved to
// preferred keys first; tokens that fail to resolve are returned in
// unresolved and the result is best-effort. Both structures parse
// through the same flat map, so the structure argument only names the
// caller's expectation; nesting is detected from the document itself.
func FromText(text string, format Format, structure Structure, snap *graph.Snapshot) (sp *params.ScenarioParams, unresolved []string, err error) {
	_ = structure

	var doc map[string]any
	switch format {
	case FormatCSV:
		return nil, nil, &ParseError{Format: format, Message: "csv is export-only"}
	case FormatJSON:
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, nil, &ParseError{Format: format, Message: "malformed document", Err: err}
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
			return nil, nil, &ParseError{Format: format, Message: "malformed document", Err: err}
		}
	default:
		return nil, nil, &ParseError{Format: format, Message: "unknown format"}
	}

	flat := make(FlatMap)
	if err := collectFlat(flat, "", doc); err != nil {
		return nil, nil, &ParseError{Format: format, Message: "malformed document", Err: err}
	}
	if snap != nil {
		flat, unresolved = ResolveKeys(flat, snap)
	}
	sp, err = Unflatten(flat)
	if err != nil {
		return nil, unresolved, err
	}
	return sp, unresolved, nil
}

// collectFlat walks a decoded document, joining nested map keys with
// dots. A flat document is the degenerate case with no nested maps.
func collectFlat(out FlatMap, prefix string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := collectFlat(out, key, sub); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		for k, sub := range val {
			ks, ok := k.(string)
			if !ok {
				return fmt.Errorf("non-string key %v under %q", k, prefix)
			}
			key := ks
			if prefix != "" {
				key = prefix + "." + ks
			}
			if err := collectFlat(out, key, sub); err != nil {
				return err
			}
		}
		return nil
	case []any:
		return fmt.Errorf("unexpected list under %q", prefix)
	default:
		out[prefix] = normalizeScalar(val)
		return nil
	}
}

// documentFor shapes the flat map for encoding. Nested structure
// groups keys by entity under the two top-level groups, collapsing
// single-field entities to one dotted line.
func documentFor(flat FlatMap, structure Structure) map[string]any {
	if structure != StructureNested {
		return map[string]any(flat)
	}

	groups := map[string]map[string][]string{"e": {}, "n": {}}
	loose := map[string]any{}
	for _, key := range flat.SortedKeys() {
		segs := condition.SplitTop(key, '.')
		if len(segs) < 3 || (segs[0] != "e" && segs[0] != "n") {
			loose[key] = flat[key]
			continue
		}
		entity := segs[1]
		rest := strings.Join(segs[2:], ".")
		groups[segs[0]][entity] = append(groups[segs[0]][entity], rest)
	}

	doc := map[string]any{}
	for k, v := range loose {
		doc[k] = v
	}
	for prefix, entities := range groups {
		if len(entities) == 0 {
			continue
		}
		group := map[string]any{}
		for entity, rests := range entities {
			if len(rests) == 1 {
				group[entity+"."+rests[0]] = flat[prefix+"."+entity+"."+rests[0]]
				continue
			}
			fields := map[string]any{}
			for _, rest := range rests {
				fields[rest] = flat[prefix+"."+entity+"."+rest]
			}
			group[entity] = fields
		}
		doc[prefix] = group
	}
	return doc
}

func toCSV(flat FlatMap) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"key", "value"}); err != nil {
		return "", err
	}
	for _, key := range flat.SortedKeys() {
		if err := w.Write([]string{key, csvValue(flat[key])}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func csvValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		// Non-scalars are JSON-encoded, per the export contract.
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
