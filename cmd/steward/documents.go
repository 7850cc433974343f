package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/steward/internal/documents"
)

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Add reference documents to the backend's retrieval corpus",
	}

	var (
		blob bool
		meta []string
	)
	upload := &cobra.Command{
		Use:   "upload <path|blob-key>...",
		Short: "Upload local files, or blobs with --blob",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			return opts.run(cmd, func(ctx context.Context, app *App) error {
				var errs []error
				for _, arg := range args {
					upload := app.documents.UploadFile
					if blob {
						upload = app.documents.UploadBlob
					}

					ack, err := upload(ctx, arg, metadata)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", arg, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks added\n", arg, ack.ChunksAdded)
				}
				return errors.Join(errs...)
			})
		},
	}
	upload.Flags().BoolVar(&blob, "blob", false, "treat arguments as blob storage keys")
	upload.Flags().StringArrayVar(&meta, "meta", nil, "metadata key=value (repeatable)")

	list := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List blob keys available for upload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				if app.infra.Storage == nil {
					return documents.ErrStorageDisabled
				}
				keys, err := app.infra.Storage.List(ctx, prefix)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(upload, list)
	return cmd
}

func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newTranscriptCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Export the conversation",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the conversation as JSON to blob storage, or to a file with --out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, app *App) error {
				t := app.conversation.Transcript()

				if out != "" {
					data, err := t.Encode()
					if err != nil {
						return err
					}
					if out == "-" {
						_, err = cmd.OutOrStdout().Write(append(data, '\n'))
						return err
					}
					if err := os.WriteFile(out, data, 0o644); err != nil {
						return fmt.Errorf("write transcript: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), out)
					return nil
				}

				if app.infra.Storage == nil {
					return fmt.Errorf("%w: use --out to write a local file", documents.ErrStorageDisabled)
				}
				key, err := t.Export(ctx, app.infra.Storage, app.cfg.Session.Namespace)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "write to a file instead (- for stdout)")

	cmd.AddCommand(export)
	return cmd
}
