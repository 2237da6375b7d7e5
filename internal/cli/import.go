package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parampack/parampack/internal/hrn"
)

// ImportResult is the machine-readable summary of an import.
type ImportResult struct {
	Keys       int      `json:"keys"`
	Unresolved []string `json:"unresolved,omitempty"`
	Out        string   `json:"out,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		graphPath string
		outPath   string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "import <text-file>",
		Short: "Parse a textual parameter pack into canonical form",
		Long: `Parse a YAML or JSON parameter pack (flat or nested), resolve its
entity tokens against a graph snapshot and write the pack back in
canonical flat YAML keyed by preferred entity keys.

Tokens that do not resolve are reported; with --strict they fail the
import, otherwise the result is best-effort and keeps the rest.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd, args[0], graphPath, outPath, strict)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "graph snapshot to resolve entity tokens against")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write canonical pack to file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any entity token does not resolve")

	return cmd
}

func runImport(opts *RootOptions, cmd *cobra.Command, textPath, graphPath, outPath string, strict bool) error {
	formatter := formatterFor(opts, cmd)

	snap, err := loadOptionalSnapshot(graphPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	sp, unresolved, err := LoadParams(textPath, snap)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if strict && len(unresolved) > 0 {
		formatter.Error(ErrCodeUnresolved, fmt.Sprintf("%d entity token(s) did not resolve", len(unresolved)), unresolved)
		return NewExitError(ExitFailure, "unresolved entity tokens")
	}
	for _, token := range unresolved {
		formatter.VerboseLog("unresolved token: %s", token)
	}

	text, err := hrn.ToText(sp, hrn.FormatYAML, hrn.StructureFlat)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "import failed", err)
	}

	result := ImportResult{
		Keys:       len(hrn.Flatten(sp)),
		Unresolved: unresolved,
		Out:        outPath,
	}

	if outPath != "" {
		if err := writeOutput(formatter, outPath, text); err != nil {
			return reportLoadError(formatter, err)
		}
		return formatter.Success(result)
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return writeOutput(formatter, "", text)
}
