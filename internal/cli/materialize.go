package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/metrics"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
	"github.com/dukerupert/chorewheel/internal/server"
)

type MaterializeOptions struct {
	*RootOptions
	ChoreID int64
	From    string
	To      string
	Days    int
	JSON    bool
}

func NewMaterializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaterializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create occurrences for a date window",
		Long: `Materialize occurrences in [from, to) for one recurring chore or all of them.

The window defaults to today plus CHOREWHEEL_MATERIALIZE_DAYS. Running it
twice over the same window creates nothing new.

Example:
  chorewheel materialize --from 2024-01-01 --to 2024-02-01
  chorewheel materialize --chore 3 --days 30 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaterialize(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.ChoreID, "chore", 0, "recurring chore id (default: all)")
	cmd.Flags().StringVar(&opts.From, "from", "", "first date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&opts.To, "to", "", "end date, exclusive, YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "window length when --to is omitted (overrides CHOREWHEEL_MATERIALIZE_DAYS)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print occurrences as JSON")

	return cmd
}

// window resolves the flags against today.
func (o *MaterializeOptions) window(today time.Time) (from, to time.Time, err error) {
	from = today
	if o.From != "" {
		if from, err = time.Parse(time.DateOnly, o.From); err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
	}
	if o.To != "" {
		if to, err = time.Parse(time.DateOnly, o.To); err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
		return from, to, nil
	}
	days := o.Config.MaterializeDays
	if o.Days > 0 {
		days = o.Days
	}
	return from, from.AddDate(0, 0, days), nil
}

func runMaterialize(ctx context.Context, opts *MaterializeOptions, cmd *cobra.Command) error {
	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, opts.Config, metrics.New(), opts.Logger)

	from, to, err := opts.window(recurrence.Day(time.Now().In(opts.Config.Location())))
	if err != nil {
		return err
	}

	var choreID *int64
	if opts.ChoreID != 0 {
		choreID = &opts.ChoreID
	}

	occs, genErr := srv.Materializer().Generate(ctx, choreID, from, to)
	if err := printOccurrences(cmd, opts.JSON, occs); err != nil {
		return err
	}
	if genErr != nil {
		return fmt.Errorf("materialize: %w", genErr)
	}
	return nil
}

func printOccurrences(cmd *cobra.Command, asJSON bool, occs []model.Occurrence) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if occs == nil {
			occs = []model.Occurrence{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(occs)
	}
	for _, o := range occs {
		fmt.Fprintf(out, "%s  chore=%d  seq=%d  %-9s  assigned=%v\n",
			o.DueDate.Format(time.DateOnly), o.RecurringChoreID, o.SequenceNumber, o.Status, o.AssignedTo)
	}
	fmt.Fprintf(out, "%d occurrences\n", len(occs))
	return nil
}
