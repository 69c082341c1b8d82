package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/pollution-reports/internal/domain"
	"github.com/couchcryptid/pollution-reports/internal/observability"
	"github.com/couchcryptid/pollution-reports/internal/store"
	"github.com/couchcryptid/pollution-reports/internal/view"
	"github.com/spf13/cobra"
)

const animationFrame = 16 * time.Millisecond

type addCmd struct {
	app *app
	raw domain.RawInput
}

func newAddCmd(a *app) *cobra.Command {
	ac := &addCmd{app: a}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a pollution report",
		Args:  cobra.NoArgs,
		RunE:  ac.run,
	}
	cmd.Flags().StringVar(&ac.raw.Place, "place", "", "District the observation was made in")
	cmd.Flags().StringVar(&ac.raw.Type, "type", "", "Problem type, e.g. Air, Noise, Water")
	cmd.Flags().StringVar(&ac.raw.Level, "level", "", "Severity from 1 to 100")
	cmd.Flags().StringVar(&ac.raw.Date, "date", "", "Observation date (default today)")
	cmd.Flags().StringVar(&ac.raw.Comment, "comment", "", "Optional note")
	return cmd
}

func (ac *addCmd) run(cmd *cobra.Command, _ []string) error {
	raw := ac.raw
	if raw.Date == "" {
		raw.Date = domain.Now().Format(time.DateOnly)
	}
	in, err := domain.Validate(raw)
	if err != nil {
		return err
	}

	s, err := ac.app.openStore(cmd.Context(), ac.app.logger, observability.NewUnregisteredMetrics())
	if err != nil {
		return err
	}
	r, err := s.Add(cmd.Context(), in)
	if err != nil {
		return notSaved(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report added: %s (%s, %s, level %d)\n", r.ID, r.Place, r.Type, r.Level)
	fmt.Fprint(out, view.RenderSummaryText(view.RenderSummary(s.Summary())))
	return nil
}

type listCmd struct {
	app   *app
	typ   string
	level string
}

func newListCmd(a *app) *cobra.Command {
	lc := &listCmd{app: a}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show reports, optionally filtered",
		Args:  cobra.NoArgs,
		RunE:  lc.run,
	}
	cmd.Flags().StringVar(&lc.typ, "type", domain.FilterAll, "Only this problem type")
	cmd.Flags().StringVar(&lc.level, "level", domain.FilterAll, "Only this severity bucket: low, mid or high")
	return cmd
}

func (lc *listCmd) run(cmd *cobra.Command, _ []string) error {
	f, err := domain.ParseFilter(lc.typ, lc.level)
	if err != nil {
		return err
	}
	s, err := lc.app.openStore(cmd.Context(), lc.app.logger, observability.NewUnregisteredMetrics())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	reports := s.Filtered(f)
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports match the filter.")
	} else {
		rows := make([]view.Row, len(reports))
		for i, r := range reports {
			rows[i] = view.NewRow(r)
		}
		fmt.Fprintln(out, view.RenderText(rows))
	}
	fmt.Fprint(out, view.RenderSummaryText(view.RenderSummary(s.Summary())))
	return nil
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a report by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context(), a.logger, observability.NewUnregisteredMetrics())
			if err != nil {
				return err
			}
			removed, err := s.Remove(cmd.Context(), args[0])
			if err != nil {
				return notSaved(err)
			}

			out := cmd.OutOrStdout()
			if removed {
				fmt.Fprintf(out, "Report removed: %s\n", args[0])
			} else {
				fmt.Fprintf(out, "No report with id %s\n", args[0])
			}
			fmt.Fprint(out, view.RenderSummaryText(view.RenderSummary(s.Summary())))
			return nil
		},
	}
}

type summaryCmd struct {
	app      *app
	animate  bool
	duration time.Duration
}

func newSummaryCmd(a *app) *cobra.Command {
	sc := &summaryCmd{app: a}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the report count, average level and recommendation",
		Args:  cobra.NoArgs,
		RunE:  sc.run,
	}
	cmd.Flags().BoolVar(&sc.animate, "animate", false, "Count the average up before printing the summary")
	cmd.Flags().DurationVar(&sc.duration, "duration", 600*time.Millisecond, "Length of the count-up animation")
	return cmd
}

func (sc *summaryCmd) run(cmd *cobra.Command, _ []string) error {
	s, err := sc.app.openStore(cmd.Context(), sc.app.logger, observability.NewUnregisteredMetrics())
	if err != nil {
		return err
	}
	agg := s.Summary()
	out := cmd.OutOrStdout()

	if sc.animate {
		anim := view.NewAnimator(nil, sc.duration, animationFrame)
		anim.Run(cmd.Context(), 0, agg.MeanLevel, func(v float64) {
			fmt.Fprintf(out, "\rAverage level: %s", view.FormatMean(v))
		})
		fmt.Fprintln(out)
	}

	fmt.Fprint(out, view.RenderSummaryText(view.RenderSummary(agg)))
	return nil
}

// notSaved turns a persistence failure into the notice shown to the user.
func notSaved(err error) error {
	var perr *store.PersistError
	if errors.As(err, &perr) {
		return fmt.Errorf("report not saved, nothing was changed: %w", perr.Err)
	}
	return err
}
