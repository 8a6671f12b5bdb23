package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"audiovault/internal/catalog"
	"audiovault/internal/filestore"
	"audiovault/internal/ingest"
	"audiovault/internal/quota"
)

type ingestedFile struct {
	Source string `json:"source"`
	Name   string `json:"filename"`
	Size   int64  `json:"size"`
	Cover  string `json:"cover,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		email      string
		asCover    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <owner> <file>...",
		Short: "Store local files for an owner through the upload pipeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := strings.TrimSpace(args[0])
			return ctx.withRuntime(func(rt *localRuntime) error {
				if err := rt.catalog.EnsureOwner(cmd.Context(), owner, email); err != nil {
					return err
				}
				var stored []ingestedFile
				for _, path := range args[1:] {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					up := ingest.Upload{
						Owner:       owner,
						Filename:    filepath.Base(path),
						ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
						Data:        data,
					}
					if asCover {
						result, err := rt.pipeline.SaveCover(cmd.Context(), up)
						if err != nil {
							return fmt.Errorf("%s: %w", path, err)
						}
						stored = append(stored, ingestedFile{Source: path, Name: result.Name, Size: result.Size})
						continue
					}
					result, err := rt.pipeline.SaveAudio(cmd.Context(), up)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					entry := ingestedFile{Source: path, Name: result.Name, Size: result.Size}
					entry.Title, _ = result.Metadata["title"].(string)
					entry.Artist, _ = result.Metadata["artist"].(string)
					if result.Cover != nil {
						entry.Cover = result.Cover.Name
					}
					stored = append(stored, entry)
				}

				if jsonOutput {
					return writeJSON(cmd, stored)
				}
				rows := make([][]string, 0, len(stored))
				for _, f := range stored {
					rows = append(rows, []string{f.Source, f.Name, quota.FormatBytes(f.Size), f.Artist, f.Title, yesNo(f.Cover != "")})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Source", "Stored As", "Size", "Artist", "Title", "Cover"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email recorded for a new owner")
	cmd.Flags().BoolVar(&asCover, "cover", false, "Store the files as cover images")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		kind       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ls <owner>",
		Short: "List an owner's stored assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *localRuntime) error {
				assets, err := rt.catalog.ListByOwner(cmd.Context(), args[0], kind)
				if err != nil {
					return err
				}
				if jsonOutput {
					if assets == nil {
						assets = []catalog.Asset{}
					}
					return writeJSON(cmd, assets)
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets stored")
					return nil
				}
				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						a.Name,
						a.Kind,
						quota.FormatBytes(a.Size),
						a.OriginalName,
						a.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Name", "Kind", "Size", "Original", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (audio or cover)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var (
		keepDerived bool
		asCover     bool
	)

	cmd := &cobra.Command{
		Use:   "rm <owner> <name>",
		Short: "Delete a stored track or cover",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name := args[0], args[1]
			return ctx.withRuntime(func(rt *localRuntime) error {
				var (
					result filestore.DeleteResult
					err    error
				)
				if asCover {
					result, err = rt.pipeline.DeleteCover(cmd.Context(), owner, name, !keepDerived)
				} else {
					result, err = rt.pipeline.DeleteAudio(cmd.Context(), owner, name, !keepDerived)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, removed := range result.Removed {
					fmt.Fprintf(out, "removed %s\n", removed)
				}
				for _, failed := range result.Failed {
					fmt.Fprintf(out, "failed  %s: %s\n", failed.Name, failed.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepDerived, "keep-derived", false, "Keep the cover and thumbnails derived from the asset")
	cmd.Flags().BoolVar(&asCover, "cover", false, "Treat name as a cover image")
	return cmd
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "purge <owner>",
		Short: "Delete every track an owner has stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *localRuntime) error {
				report, err := rt.pipeline.DeleteAllForOwner(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, report.Message)
				for _, name := range report.FailedFiles {
					fmt.Fprintf(out, "failed  %s\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
