package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/config"
)

type rootOptions struct {
	configDir string
	namespace string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "steward",
		Short:         "Chat with the compliance backend and curate its system prompt",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config", ".", "directory holding config.toml and its overlays")
	root.PersistentFlags().StringVarP(&opts.namespace, "namespace", "n", "", "session namespace (overrides session.namespace)")

	root.AddCommand(
		newChatCmd(opts),
		newSendCmd(opts),
		newHistoryCmd(opts),
		newPromptCmd(opts),
		newGuidelinesCmd(opts),
		newProviderCmd(opts),
		newProvidersCmd(),
		newDashboardCmd(opts),
		newImproveCmd(opts),
		newDocumentsCmd(opts),
		newTranscriptCmd(opts),
		newVersionCmd(opts),
	)

	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadDir(o.configDir)
	if err != nil {
		return nil, err
	}
	if o.namespace != "" {
		cfg.Session.Namespace = o.namespace
	}
	return cfg, nil
}

// run builds an App for the duration of fn. Logs go to the command's
// stderr so stdout carries only command output.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := NewApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runErr := fn(ctx, app)
	if err := app.Close(); err != nil && runErr == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}
