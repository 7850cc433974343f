package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/conversation"
)

// turn sends text and prints the reply, then waits for its analysis.
// A failed chat call has already recorded the fallback reply, so it is
// printed rather than returned.
func turn(ctx context.Context, app *App, w io.Writer, text string) error {
	err := app.conversation.Send(ctx, text)
	if err != nil && !errors.Is(err, conversation.ErrChatFailed) {
		fmt.Fprintf(w, "warning: %v\n", err)
	}

	renderReply(w, app.conversation.Snapshot())
	if err != nil {
		return nil
	}

	grace := app.cfg.Client.AnalysisDelayDuration() + app.cfg.Client.AnalysisTimeoutDuration() + time.Second
	waitCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	snap, err := app.conversation.Wait(waitCtx, conversation.Idle)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(w, "(analysis still pending)")
		return nil
	}
	renderAnalysis(w, snap)
	return nil
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply with its compliance analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				return turn(ctx, app, cmd.OutOrStdout(), strings.Join(args, " "))
			})
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. Each reply is followed by its
compliance analysis. Type /clear to erase the history and /quit to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				return repl(ctx, app, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func repl(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	snap := app.state.Snapshot()
	fmt.Fprintf(out, "steward chat (%s", snap.Provider.Label())
	if snap.Model != "" {
		fmt.Fprintf(out, ", %s", snap.Model)
	}
	fmt.Fprintf(out, ", %d messages)\n", len(snap.History))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := app.conversation.ClearHistory(ctx); err != nil {
				fmt.Fprintf(out, "warning: %v\n", err)
			}
			fmt.Fprintln(out, "history cleared")
			continue
		}

		if err := turn(ctx, app, out, line); err != nil {
			return nil
		}
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the chat history",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the chat history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					renderMessages(cmd.OutOrStdout(), app.state.History())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Erase the chat history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, app *App) error {
					if err := app.conversation.ClearHistory(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
					return nil
				})
			},
		},
	)

	return cmd
}
