package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/contract"
)

func newProviderCmd(opts *rootOptions) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "provider [name]",
		Short: "Show or select the LLM provider and model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				if len(args) == 1 {
					if err := app.state.SetProvider(ctx, args[0]); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("model") {
					if err := app.state.SetModel(ctx, model); err != nil {
						return err
					}
				}

				m := app.state.Model()
				if m == "" {
					m = "(backend default)"
				}
				p := app.state.Provider()
				fmt.Fprintf(cmd.OutOrStdout(), "provider: %s (%s)\nmodel: %s\n", p, p.Label(), m)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "model name; empty selects the backend default")

	return cmd
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the providers the backend accepts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, p := range contract.Providers() {
				def := ""
				if p == contract.DefaultProvider {
					def = "default"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p, p.Label(), def)
			}
			tw.Flush()
		},
	}
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "steward %s (%s)\n", cfg.Version, cfg.Env())
			return nil
		},
	}
}
