package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/contract"
)

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show prompt versions and recent evaluations",
		Long: `Show prompt versions and recent evaluations. With --watch the view
is refreshed on client.refresh_schedule until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				if err := app.dashboard.LoadData(ctx); err != nil && !watch {
					renderDashboard(out, app.dashboard.Snapshot())
					return err
				}
				renderDashboard(out, app.dashboard.Snapshot())
				if !watch {
					return nil
				}
				return watchDashboard(ctx, app, out)
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep refreshing on the configured schedule")

	return cmd
}

func watchDashboard(ctx context.Context, app *App, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- app.dashboard.Watch(ctx, app.cfg.Client.RefreshSchedule)
	}()

	for {
		changed := app.dashboard.Changed()
		select {
		case err := <-errc:
			return err
		case <-changed:
			fmt.Fprintln(out)
			renderDashboard(out, app.dashboard.Snapshot())
		}
	}
}

func newImproveCmd(opts *rootOptions) *cobra.Command {
	var (
		rationale   string
		evaluations []string
		target      float64
		noReeval    bool
	)

	cmd := &cobra.Command{
		Use:   "improve",
		Short: "Generate a new prompt version and re-evaluate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := contract.ImproveRequest{
				EvaluationIDs:   evaluations,
				RunReevaluation: !noReeval,
			}
			if cmd.Flags().Changed("rationale") {
				req.Rationale = &rationale
			}
			if cmd.Flags().Changed("target") {
				req.TargetScore = &target
			}

			return opts.run(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				resp, err := app.dashboard.Improve(ctx, req)
				if resp.NewVersion.ID != "" {
					fmt.Fprintf(out, "%s -> %s", resp.PreviousVersion.ID, resp.NewVersion.ID)
					if resp.Message != "" {
						fmt.Fprintf(out, ": %s", resp.Message)
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out)
				}
				renderDashboard(out, app.dashboard.Snapshot())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&rationale, "rationale", "", "why the prompt should change")
	cmd.Flags().StringSliceVar(&evaluations, "evaluation", nil, "evaluation id to learn from (repeatable)")
	cmd.Flags().Float64Var(&target, "target", 0, "target overall score")
	cmd.Flags().BoolVar(&noReeval, "no-reevaluate", false, "skip re-evaluating the new version")

	return cmd
}
