package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Harshitk-cp/kindred/internal/buildconfig"
	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/notify"
	"github.com/Harshitk-cp/kindred/internal/service"
)

type stateView struct {
	Affect       map[string]float64       `json:"affect"`
	Needs        domain.NeedsVector       `json:"needs"`
	Relationship domain.RelationshipState `json:"relationship"`
	Stage        domain.StageProgress     `json:"stage"`
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show affect, needs, relationship and stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			var affect map[string]float64
			if err := load(ctx, s, domain.KeyAffect, &affect); err != nil {
				return err
			}
			needs := domain.NewNeedsVector()
			if err := load(ctx, s, domain.KeyNeeds, &needs); err != nil {
				return err
			}
			needs.Normalize()
			var rel domain.RelationshipState
			if err := load(ctx, s, domain.KeyRelationship, &rel); err != nil {
				return err
			}
			rel.Normalize()

			v := stateView{
				Affect:       domain.RestoreAffectVector(affect).Snapshot(),
				Needs:        needs,
				Relationship: rel,
				Stage:        domain.ProgressFor(rel.Score),
			}
			return opts.render(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "stage:     %s (%s) %d%%\n", v.Stage.Label, v.Stage.Stage, v.Stage.Progress)
				fmt.Fprintf(w, "score:     %.1f\n", rel.Score)
				fmt.Fprintf(w, "chemistry: %.1f\n", rel.Chemistry)
				fmt.Fprintf(w, "tokens:    %d\n", rel.Tokens)
				if line := needs.SummaryLine(); line != "" {
					fmt.Fprintf(w, "needs:     %s\n", line)
				}
				fmt.Fprintln(w, "affect:")
				for _, k := range sortedKeys(v.Affect) {
					fmt.Fprintf(w, "  %-15s %.3f\n", k, v.Affect[k])
				}
			})
		},
	}
}

func newStageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <score>",
		Short: "Show the relationship stage for a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[0], err)
			}
			p := domain.ProgressFor(score)
			band := domain.StageFor(score)
			return opts.render(cmd.OutOrStdout(), map[string]any{"progress": p, "tone": band.Tone, "tokens": band.Tokens}, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s): %d%% of %.0f-%.0f\n", p.Label, p.Stage, p.Progress, p.Min, p.Max)
				fmt.Fprintf(w, "tone: %s\n", band.Tone)
				if p.NextStage != "" {
					fmt.Fprintf(w, "next: %s\n", p.NextStage)
				}
			})
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest conversation exchanges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			h := domain.NewHistory(0)
			if err := load(cmd.Context(), s, domain.KeyHistory, h); err != nil {
				return err
			}
			ex := h.Exchanges
			if n > 0 && len(ex) > n {
				ex = ex[len(ex)-n:]
			}
			persona := opts.personaName()
			return opts.render(cmd.OutOrStdout(), ex, func(w io.Writer) {
				for _, e := range ex {
					fmt.Fprintf(w, "User: %s\n%s: %s\n", e.User, persona, e.AI)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 10, "Number of exchanges to show (0 = all)")
	return cmd
}

func (o *options) openHeart(cmd *cobra.Command) (*service.HeartStore, func(), error) {
	s, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	h := service.NewHeartStore(s, o.personaName(), newRand(), o.logger())
	if err := h.Restore(cmd.Context()); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return h, func() { _ = s.Close() }, nil
}

func newHeartsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hearts",
		Short: "Show the heart balance and ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := opts.openHeart(cmd)
			if err != nil {
				return err
			}
			defer done()

			ledger := h.Hearts()
			return opts.render(cmd.OutOrStdout(), ledger, func(w io.Writer) {
				fmt.Fprintf(w, "total: %d\n", ledger.Total)
				for _, e := range ledger.History {
					fmt.Fprintf(w, "%s  %+d  %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Points, e.Reason)
				}
			})
		},
	}
}

func newRecallCmd(opts *options) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Rank heart memories against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := opts.openHeart(cmd)
			if err != nil {
				return err
			}
			defer done()

			results := h.Recall(strings.Join(args, " "), k)
			return opts.render(cmd.OutOrStdout(), results, func(w io.Writer) {
				if len(results) == 0 {
					fmt.Fprintln(w, "no memories")
					return
				}
				for _, r := range results {
					fmt.Fprintf(w, "[%s %.2f] %s\n", r.Kind, r.Score, domain.Truncate(r.Text, 120))
				}
			})
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of results")
	return cmd
}

func newChurnCmd(opts *options) *cobra.Command {
	var (
		dreams    int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "churn",
		Short: "Run one memory churn: dreams, traumas, fact pruning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, done, err := opts.openHeart(cmd)
			if err != nil {
				return err
			}
			defer done()

			res, err := h.Churn(cmd.Context(), dreams, threshold)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "dreams created:   %d\n", res.DreamsCreated)
				fmt.Fprintf(w, "traumas detected: %d\n", res.TraumasDetected)
				fmt.Fprintf(w, "traumas added:    %d\n", res.TraumasAdded)
				fmt.Fprintf(w, "facts pruned:     %d\n", res.FactsPruned)
			})
		},
	}
	cmd.Flags().IntVar(&dreams, "dreams", service.DefaultMaxDreams, "Maximum dreams to synthesize")
	cmd.Flags().Float64Var(&threshold, "threshold", service.DefaultTraumaThreshold, "Importance at which negative memories become traumas")
	return cmd
}

func newEventsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Show active life events and the scheduler position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			sched := service.NewLifeEventScheduler(cat, s, notify.Discard{}, newRand(), opts.logger())
			if err := sched.Restore(cmd.Context()); err != nil {
				return err
			}
			active, pos := sched.Active(), sched.Position()
			v := map[string]any{"active": active, "position": pos}
			return opts.render(cmd.OutOrStdout(), v, func(w io.Writer) {
				if pos.Exhausted {
					fmt.Fprintln(w, "position: all paths exhausted")
				} else {
					path := cat.Paths[pos.PathIndex]
					fmt.Fprintf(w, "position: %s / %s\n", path.Name, path.Stages[pos.StageIndex].Name)
				}
				if len(active) == 0 {
					fmt.Fprintln(w, "no active events")
				}
				for _, ev := range active {
					fmt.Fprintf(w, "- %s (%s) expires %s\n", ev.Name, ev.Status, ev.ExpiresAt.Format("15:04:05"))
				}
			})
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.render(cmd.OutOrStdout(), buildconfig.VersionInfo(), func(w io.Writer) {
				fmt.Fprintln(w, buildconfig.String())
			})
		},
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
