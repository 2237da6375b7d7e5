package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/hrn"
	"github.com/parampack/parampack/internal/params"
)

// LoadError reports an input file that could not be loaded.
type LoadError struct {
	Path    string
	Code    string // ErrCode* constant
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// snapshotDoc is the on-disk shape of a graph snapshot.
type snapshotDoc struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// LoadSnapshot reads a graph snapshot from a JSON file.
func LoadSnapshot(path string) (*graph.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeLoad, Message: "cannot read graph snapshot", Err: err}
	}
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeParse, Message: "malformed graph snapshot", Err: err}
	}
	return graph.NewSnapshot(doc.Nodes, doc.Edges), nil
}

// encodingForPath maps a file extension to a text encoding.
func encodingForPath(path string) (hrn.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return hrn.FormatYAML, nil
	case ".json":
		return hrn.FormatJSON, nil
	case ".csv":
		return hrn.FormatCSV, nil
	default:
		return "", fmt.Errorf("cannot infer encoding from %q: use .yaml, .json or .csv", filepath.Base(path))
	}
}

// LoadParams reads a parameter pack from a YAML or JSON file. When a
// snapshot is supplied, entity tokens are resolved to preferred keys
// and tokens that fail to resolve are returned in unresolved.
func LoadParams(path string, snap *graph.Snapshot) (*params.ScenarioParams, []string, error) {
	format, err := encodingForPath(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Code: ErrCodeLoad, Message: err.Error()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Code: ErrCodeLoad, Message: "cannot read parameter pack", Err: err}
	}
	sp, unresolved, err := hrn.FromText(string(data), format, hrn.StructureFlat, snap)
	if err != nil {
		return nil, unresolved, &LoadError{Path: path, Code: ErrCodeParse, Message: "malformed parameter pack", Err: err}
	}
	return sp, unresolved, nil
}

// writeOutput writes rendered text to a file, or to the formatter's
// writer when path is empty.
func writeOutput(f *OutputFormatter, path, text string) error {
	if path == "" {
		_, err := fmt.Fprint(f.Writer, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &LoadError{Path: path, Code: ErrCodeLoad, Message: "cannot write output", Err: err}
	}
	return nil
}
