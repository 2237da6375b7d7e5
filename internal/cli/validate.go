package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parampack/parampack/internal/fieldmap"
)

// ValidationResult holds fieldmap validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Kinds  int      `json:"kinds,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [fieldmap.cue]",
		Short: "Validate a field-classification document",
		Long: `Compile a CUE field-classification document and report any errors.

With no argument, validates the built-in default classification.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runValidate(rootOpts, cmd, path)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := formatterFor(opts, cmd)

	var table *fieldmap.Table
	var err error
	if path == "" {
		formatter.VerboseLog("validating built-in classification")
		table = fieldmap.Default()
	} else {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			formatter.Error(ErrCodeLoad, readErr.Error(), nil)
			return WrapExitError(ExitCommandError, "read fieldmap", readErr)
		}
		table, err = fieldmap.CompileSource(string(data))
	}

	if err != nil {
		var cerr *fieldmap.CompileError
		detail := err.Error()
		if errors.As(err, &cerr) {
			detail = cerr.Error()
		}
		formatter.Error(ErrCodeFieldmap, "fieldmap document is invalid", detail)
		return NewExitError(ExitFailure, fmt.Sprintf("invalid fieldmap: %s", detail))
	}

	return formatter.Success(ValidationResult{Valid: true, Kinds: len(table.Kinds())})
}
