package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parampack/parampack/internal/hrn"
	"github.com/parampack/parampack/internal/rebalance"
)

// RebalanceSummary is the machine-readable outcome of a rebalance.
type RebalanceSummary struct {
	Target           string                 `json:"target"`
	Origin           string                 `json:"origin"`
	Adjusted         []rebalance.Adjustment `json:"adjusted,omitempty"`
	Untouched        int                    `json:"untouched"`
	ClearedOverrides []string               `json:"cleared_overrides,omitempty"`
	Sum              float64                `json:"sum"`
	Balanced         bool                   `json:"balanced"`
	Out              string                 `json:"out,omitempty"`
}

// NewRebalanceCommand creates the rebalance command.
func NewRebalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		graphPath string
		outPath   string
		target    string
		entity    string
		origin    string
		condition string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "rebalance <params-file>",
		Short: "Redistribute probability mass across a sibling set",
		Long: `Redistribute the probability mass of a sibling set after one member
(the origin) was set to a new value. Targets:

  edges         unconditional probabilities of a node's outgoing edges
  conditionals  conditional entries sharing --condition across a node's edges
  variants      a case node's variant weights

Normal mode leaves locked and overridden siblings untouched; when that
leaves the set off-sum it is reported, not an error. Force mode
bypasses locks and overrides, clearing override flags it touches.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebalance(rootOpts, cmd, args[0], graphPath, outPath, target, entity, origin, condition, mode)
		},
	}

	cmd.Flags().StringVar(&graphPath, "graph", "", "graph snapshot (required for edges and conditionals)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the rebalanced pack to file instead of stdout")
	cmd.Flags().StringVar(&target, "target", "edges", "sibling set shape (edges|conditionals|variants)")
	cmd.Flags().StringVar(&entity, "entity", "", "owning node key (required)")
	cmd.Flags().StringVar(&origin, "origin", "", "origin member: edge key or variant name (required)")
	cmd.Flags().StringVar(&condition, "condition", "", "condition string (conditionals target only)")
	cmd.Flags().StringVar(&mode, "mode", "normal", "rebalance mode (normal|force)")
	cmd.MarkFlagRequired("entity")
	cmd.MarkFlagRequired("origin")

	return cmd
}

func runRebalance(opts *RootOptions, cmd *cobra.Command, paramsPath, graphPath, outPath, target, entity, origin, condition, mode string) error {
	formatter := formatterFor(opts, cmd)

	var rmode rebalance.Mode
	switch mode {
	case "normal":
		rmode = rebalance.ModeNormal
	case "force":
		rmode = rebalance.ModeForce
	default:
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("invalid mode %q: must be normal or force", mode), nil)
		return NewExitError(ExitCommandError, "invalid mode")
	}

	snap, err := loadOptionalSnapshot(graphPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	sp, unresolved, err := LoadParams(paramsPath, snap)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if len(unresolved) > 0 {
		formatter.Error(ErrCodeUnresolved, "parameter pack has unresolved entity tokens", unresolved)
		return NewExitError(ExitFailure, "unresolved entity tokens")
	}

	var rep *rebalance.Report
	var work = sp
	switch rebalance.Target(target) {
	case rebalance.TargetEdges:
		work, rep, err = rebalance.Edges(sp, snap, entity, origin, rmode)
	case rebalance.TargetConditionals:
		if condition == "" {
			formatter.Error(ErrCodeGeneric, "--condition is required for the conditionals target", nil)
			return NewExitError(ExitCommandError, "missing condition")
		}
		work, rep, err = rebalance.Conditionals(sp, snap, entity, condition, origin, rmode)
	case rebalance.TargetVariants:
		work, rep, err = rebalance.Variants(sp, entity, origin, rmode)
	default:
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("invalid target %q: must be edges, conditionals or variants", target), nil)
		return NewExitError(ExitCommandError, "invalid target")
	}
	if err != nil {
		formatter.Error(ErrCodeRebalance, err.Error(), nil)
		return WrapExitError(ExitFailure, "rebalance failed", err)
	}

	summary := RebalanceSummary{
		Target:           string(rep.Target),
		Origin:           rep.Origin,
		Adjusted:         rep.Adjusted,
		Untouched:        rep.Untouched,
		ClearedOverrides: rep.ClearedOverrides,
		Sum:              rep.Sum,
		Balanced:         rep.Balanced(),
		Out:              outPath,
	}

	if outPath != "" {
		text, err := hrn.ToText(work, hrn.FormatYAML, hrn.StructureFlat)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "render result", err)
		}
		if err := writeOutput(formatter, outPath, text); err != nil {
			return reportLoadError(formatter, err)
		}
	}

	return formatter.Success(summary)
}
