package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/guidelines"
	"github.com/JaimeStill/steward/internal/promptfile"
)

func newPromptCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show or edit the system prompt",
	}

	var file string
	set := &cobra.Command{
		Use:   "set [text]",
		Short: "Replace the system prompt prose",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			switch {
			case file != "":
				content, err := promptfile.Read(file)
				if err != nil {
					return err
				}
				text = content
			case len(args) == 1:
				text = args[0]
			default:
				return errors.New("provide the prompt text or --file")
			}

			return opts.run(cmd, func(ctx context.Context, app *App) error {
				if err := app.guidelines.SetContent(ctx, text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "system prompt updated")
				return nil
			})
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "read the prompt from a file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the system prompt and its guidelines",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					renderPrompt(cmd.OutOrStdout(), app.state.Prompt())
					return nil
				})
			},
		},
		set,
		&cobra.Command{
			Use:   "watch <file>",
			Short: "Mirror a local file into the system prompt until interrupted",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					return promptfile.Watch(ctx, args[0], app.guidelines, app.infra.Logger)
				})
			},
		},
	)

	return cmd
}

func newGuidelinesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "guidelines",
		Aliases: []string{"gl"},
		Short:   "Curate the guideline list",
	}

	var format string
	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the guidelines as YAML or JSON (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				if len(args) == 0 {
					return app.guidelines.Export(cmd.OutOrStdout(), guidelines.Format(format))
				}

				f, err := fileFormat(args[0], format)
				if err != nil {
					return err
				}
				out, err := os.Create(args[0])
				if err != nil {
					return err
				}
				if err := app.guidelines.Export(out, f); err != nil {
					out.Close()
					return err
				}
				return out.Close()
			})
		},
	}
	exportCmd.Flags().StringVar(&format, "format", string(guidelines.FormatYAML), "yaml or json")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print the guidelines in order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					renderGuidelines(cmd.OutOrStdout(), app.guidelines.List())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <text>",
			Short: "Append a guideline",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					if err := app.guidelines.Add(ctx, strings.Join(args, " ")); err != nil {
						return err
					}
					renderGuidelines(cmd.OutOrStdout(), app.guidelines.List())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <number>",
			Short: "Remove the guideline at a 1-based position",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid position %q", args[0])
				}
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					if err := app.guidelines.Remove(ctx, n-1); err != nil {
						return err
					}
					renderGuidelines(cmd.OutOrStdout(), app.guidelines.List())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "extract",
			Short: "Replace the guidelines with those the backend finds in the prompt",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					extracted, err := app.guidelines.ExtractCurrent(ctx)
					if err != nil {
						return err
					}
					if len(extracted) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "no guidelines found, list unchanged")
					}
					renderGuidelines(cmd.OutOrStdout(), app.guidelines.List())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Replace the guidelines from a YAML or JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := guidelines.FormatOf(args[0])
				if err != nil {
					return err
				}
				in, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer in.Close()

				return opts.run(cmd, func(ctx context.Context, app *App) error {
					n, err := app.guidelines.Import(ctx, in, f)
					if err != nil {
						return err
					}
					if n == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "file holds no guidelines, list unchanged")
					}
					renderGuidelines(cmd.OutOrStdout(), app.guidelines.List())
					return nil
				})
			},
		},
		exportCmd,
	)

	return cmd
}

// fileFormat prefers the file extension and falls back to the flag.
func fileFormat(path, flag string) (guidelines.Format, error) {
	if f, err := guidelines.FormatOf(path); err == nil {
		return f, nil
	}
	switch f := guidelines.Format(flag); f {
	case guidelines.FormatYAML, guidelines.FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", guidelines.ErrUnknownFormat, flag)
	}
}
