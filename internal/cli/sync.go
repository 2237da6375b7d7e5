package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parampack/parampack/internal/graph"
	"github.com/parampack/parampack/internal/hrn"
	"github.com/parampack/parampack/internal/params"
	"github.com/parampack/parampack/internal/rebalance"
	"github.com/parampack/parampack/internal/store"
	syncengine "github.com/parampack/parampack/internal/sync"
)

// SyncSummary is the machine-readable outcome of a sync batch.
type SyncSummary struct {
	Records    int      `json:"records"`
	Changes    int      `json:"changes"`
	Conflicts  int      `json:"conflicts"`
	Rebalances int      `json:"rebalances"`
	Unbalanced int      `json:"unbalanced"` // rebalances left off-sum by locks/overrides
	Unresolved []string `json:"unresolved,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Out        string   `json:"out,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath     string
		source     string
		graphPath  string
		paramsPath string
		outPath    string
		op         string
		validate   bool
		stopOnErr  bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize stored parameter records into a parameter pack",
		Long: `Apply a batch of stored parameter records to a parameter pack, in
logical-clock order. Each record is applied to the tree produced by
the previous one, and sibling sets are rebalanced immediately after
every mass-affecting change, so every intermediate state sums to one.

Overridden destination fields are skipped and reported as conflicts;
evidence fields always sync. --validate-only computes the full report
without writing the tree.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd, syncArgs{
				dbPath:     dbPath,
				source:     source,
				graphPath:  graphPath,
				paramsPath: paramsPath,
				outPath:    outPath,
				op:         op,
				validate:   validate,
				stopOnErr:  stopOnErr,
				force:      force,
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "parameter record database (required)")
	cmd.Flags().StringVar(&source, "source", "", "only apply records with this source tag")
	cmd.Flags().StringVar(&graphPath, "graph", "", "graph snapshot (required)")
	cmd.Flags().StringVar(&paramsPath, "params", "", "destination parameter pack (defaults to an empty tree)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the resulting pack to file instead of stdout")
	cmd.Flags().StringVar(&op, "op", "update", "operation (create|update|append)")
	cmd.Flags().BoolVar(&validate, "validate-only", false, "compute the report without applying changes")
	cmd.Flags().BoolVar(&stopOnErr, "stop-on-error", false, "abort the batch on the first record error")
	cmd.Flags().BoolVar(&force, "force-rebalance", false, "rebalance in force mode, bypassing locks and overrides")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("graph")

	return cmd
}

type syncArgs struct {
	dbPath     string
	source     string
	graphPath  string
	paramsPath string
	outPath    string
	op         string
	validate   bool
	stopOnErr  bool
	force      bool
}

var validOps = map[string]syncengine.Operation{
	"create": syncengine.OpCreate,
	"update": syncengine.OpUpdate,
	"append": syncengine.OpAppend,
}

func runSync(opts *RootOptions, cmd *cobra.Command, args syncArgs) error {
	formatter := formatterFor(opts, cmd)

	op, ok := validOps[args.op]
	if !ok {
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("invalid op %q: must be create, update or append", args.op), nil)
		return NewExitError(ExitCommandError, "invalid op")
	}

	snap, err := LoadSnapshot(args.graphPath)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	current := &params.ScenarioParams{}
	if args.paramsPath != "" {
		var unresolved []string
		current, unresolved, err = LoadParams(args.paramsPath, snap)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		if len(unresolved) > 0 {
			formatter.Error(ErrCodeUnresolved, "destination pack has unresolved entity tokens", unresolved)
			return NewExitError(ExitFailure, "unresolved entity tokens")
		}
	}

	st, err := store.Open(args.dbPath)
	if err != nil {
		formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open record database", err)
	}
	defer st.Close()

	ctx := context.Background()
	var records []store.Record
	if args.source != "" {
		records, err = st.RecordsBySource(ctx, args.source)
	} else {
		records, err = st.AllRecords(ctx)
	}
	if err != nil {
		formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read records", err)
	}

	summary := SyncSummary{Records: len(records), Out: args.outPath}
	engineOpts := syncengine.Options{
		Direction:    syncengine.DirRecordToGraph,
		ValidateOnly: args.validate,
		StopOnError:  args.stopOnErr,
	}
	mode := rebalance.ModeNormal
	if args.force {
		mode = rebalance.ModeForce
	}

	for _, rec := range records {
		src, unresolved, err := recordTree(rec, snap)
		summary.Unresolved = append(summary.Unresolved, unresolved...)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
			if args.stopOnErr {
				break
			}
			continue
		}

		next, res := syncengine.Tree(src, current, op, engineOpts)
		summary.Changes += len(res.Changes)
		summary.Conflicts += len(res.Conflicts)
		formatter.VerboseLog("record %s: %d change(s), %d conflict(s)", rec.ID, len(res.Changes), len(res.Conflicts))

		// Rebalance after every mass-affecting change, before the next
		// record reads the tree.
		if !args.validate {
			for _, req := range res.Metadata.Rebalance {
				rebalanced, rep, err := applyRebalance(next, snap, req, mode)
				if err != nil {
					summary.Errors = append(summary.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
					continue
				}
				next = rebalanced
				summary.Rebalances++
				if !rep.Balanced() {
					summary.Unbalanced++
					formatter.VerboseLog("rebalance %s/%s: %d sibling(s) untouched, sum %.9f",
						req.EntityKey, req.Field, rep.Untouched, rep.Sum)
				}
			}
			current = next
		}
	}

	if len(summary.Errors) > 0 && args.stopOnErr {
		formatter.Error(ErrCodeGeneric, summary.Errors[0], summary)
		return NewExitError(ExitFailure, "sync aborted")
	}

	if !args.validate && args.outPath != "" {
		text, err := hrn.ToText(current, hrn.FormatYAML, hrn.StructureFlat)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "render result", err)
		}
		if err := writeOutput(formatter, args.outPath, text); err != nil {
			return reportLoadError(formatter, err)
		}
	}

	return formatter.Success(summary)
}

// recordTree turns a stored record's flat pack into a diff tree keyed
// by preferred entity keys.
func recordTree(rec store.Record, snap *graph.Snapshot) (*params.ScenarioParams, []string, error) {
	flat, unresolved := hrn.ResolveKeys(rec.Pack, snap)
	sp, err := hrn.Unflatten(flat)
	if err != nil {
		return nil, unresolved, err
	}
	// Stamp the record binding on every probability slot the record
	// touches, so the slots lock against normal rebalancing.
	for _, e := range sp.Edges {
		if e.P != nil {
			stampBinding(e.P, rec)
		}
		for _, p := range e.ConditionalP {
			stampBinding(p, rec)
		}
	}
	return sp, unresolved, nil
}

func stampBinding(p *params.ProbSpec, rec store.Record) {
	if p.RecordID == "" {
		p.RecordID = rec.ID
	}
	if p.Source == "" {
		p.Source = rec.Source
	}
}

// applyRebalance dispatches a rebalance request to the sibling shape
// its field path names.
func applyRebalance(sp *params.ScenarioParams, snap *graph.Snapshot, req syncengine.RebalanceRequest, mode rebalance.Mode) (*params.ScenarioParams, *rebalance.Report, error) {
	switch {
	case req.Field == "p.mean":
		nodeKey, err := owningNodeKey(snap, req.EntityKey)
		if err != nil {
			return nil, nil, err
		}
		return rebalance.Edges(sp, snap, nodeKey, req.EntityKey, mode)

	case strings.HasSuffix(req.Field, ".p.mean"):
		cond := strings.TrimSuffix(req.Field, ".p.mean")
		nodeKey, err := owningNodeKey(snap, req.EntityKey)
		if err != nil {
			return nil, nil, err
		}
		return rebalance.Conditionals(sp, snap, nodeKey, cond, req.EntityKey, mode)

	case strings.HasPrefix(req.Field, "case(") && strings.HasSuffix(req.Field, ").weight"):
		inner := req.Field[len("case(") : len(req.Field)-len(").weight")]
		_, variant, ok := strings.Cut(inner, ":")
		if !ok {
			return nil, nil, fmt.Errorf("malformed case key %q", req.Field)
		}
		return rebalance.Variants(sp, req.EntityKey, variant, mode)

	default:
		return nil, nil, fmt.Errorf("field %q is not mass-constrained", req.Field)
	}
}

// owningNodeKey returns the preferred key of the node an edge leaves.
func owningNodeKey(snap *graph.Snapshot, edgeKey string) (string, error) {
	res := snap.ResolveEdge(edgeKey)
	if !res.Resolved() {
		return "", fmt.Errorf("edge %q not found in snapshot", edgeKey)
	}
	e, ok := snap.EdgeByUID(res.UID)
	if !ok {
		return "", fmt.Errorf("edge %q not found in snapshot", edgeKey)
	}
	return snap.PreferredNodeKey(e.From), nil
}
