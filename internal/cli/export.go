package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/hrn"
)

// ExportResult is the machine-readable summary of an export.
type ExportResult struct {
	Keys      int    `json:"keys"`
	Encoding  string `json:"encoding"`
	Structure string `json:"structure"`
	Out       string `json:"out,omitempty"`
	Content   string `json:"content,omitempty"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		encoding  string
		structure string
		graphPath string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "export <params-file>",
		Short: "Render a parameter pack as YAML, JSON or CSV",
		Long: `Render a parameter pack in a textual encoding.

YAML and JSON support flat and nested structure; CSV is always flat,
two columns key,value. With --graph, entity tokens are canonicalized
against the snapshot first and unresolved tokens fail the export.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, args[0], encoding, structure, graphPath, outPath)
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "yaml", "output encoding (yaml|json|csv)")
	cmd.Flags().StringVar(&structure, "structure", "flat", "output structure (flat|nested)")
	cmd.Flags().StringVar(&graphPath, "graph", "", "graph snapshot to canonicalize entity tokens against")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, paramsPath, encoding, structure, graphPath, outPath string) error {
	formatter := formatterFor(opts, cmd)

	snap, err := loadOptionalSnapshot(graphPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	sp, unresolved, err := LoadParams(paramsPath, snap)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if len(unresolved) > 0 {
		formatter.Error(ErrCodeUnresolved, fmt.Sprintf("%d entity token(s) did not resolve", len(unresolved)), unresolved)
		return NewExitError(ExitFailure, "unresolved entity tokens")
	}

	text, err := hrn.ToText(sp, hrn.Format(encoding), hrn.Structure(structure))
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "export failed", err)
	}

	result := ExportResult{
		Keys:      len(hrn.Flatten(sp)),
		Encoding:  encoding,
		Structure: structure,
		Out:       outPath,
	}

	if outPath != "" {
		if err := writeOutput(formatter, outPath, text); err != nil {
			return reportLoadError(formatter, err)
		}
		formatter.VerboseLog("wrote %d key(s) to %s", result.Keys, outPath)
		return formatter.Success(result)
	}

	if opts.Format == "json" {
		result.Content = text
		return formatter.Success(result)
	}
	return writeOutput(formatter, "", text)
}

func loadOptionalSnapshot(path string) (*graph.Snapshot, error) {
	if path == "" {
		return nil, nil
	}
	return LoadSnapshot(path)
}

// reportLoadError prints a load error through the formatter and turns
// it into a command-error exit.
func reportLoadError(f *OutputFormatter, err error) error {
	code := ErrCodeLoad
	var lerr *LoadError
	if errors.As(err, &lerr) {
		code = lerr.Code
	}
	f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "load failed", err)
}
