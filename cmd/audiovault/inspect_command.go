package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"audiovault/internal/coverart"
	"audiovault/internal/quota"
	"audiovault/internal/tags"
)

type inspectReport struct {
	File     string        `json:"file"`
	Size     int64         `json:"size"`
	Metadata tags.Metadata `json:"metadata"`
	Cover    *inspectCover `json:"cover,omitempty"`
}

type inspectCover struct {
	MIME   string `json:"mime"`
	Size   int    `json:"size"`
	Source string `json:"source"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the tags and cover art audiovault would extract from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			logger := ctx.cliLogger(cfg)
			name := filepath.Base(args[0])

			report := inspectReport{
				File:     name,
				Size:     int64(len(data)),
				Metadata: tags.NewExtractor(cfg, logger).Extract(cmd.Context(), data, name),
			}
			if cover := coverart.NewExtractor(logger).Extract(cmd.Context(), data); cover != nil {
				report.Cover = &inspectCover{MIME: cover.MIME, Size: len(cover.Data), Source: string(cover.Source)}
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", report.File, quota.FormatBytes(report.Size))
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, metadataRows(report.Metadata), nil))
			if report.Cover != nil {
				fmt.Fprintf(out, "Cover: %s, %s, from %s\n", report.Cover.MIME, quota.FormatBytes(int64(report.Cover.Size)), report.Cover.Source)
			} else {
				fmt.Fprintln(out, "Cover: none")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// metadataRows flattens nested maps such as custom_tags into dotted keys.
func metadataRows(meta map[string]any) [][]string {
	var rows [][]string
	for _, key := range slices.Sorted(maps.Keys(meta)) {
		if nested, ok := meta[key].(map[string]any); ok {
			for _, sub := range metadataRows(nested) {
				rows = append(rows, []string{key + "." + sub[0], sub[1]})
			}
			continue
		}
		rows = append(rows, []string{key, fmt.Sprint(meta[key])})
	}
	return rows
}
