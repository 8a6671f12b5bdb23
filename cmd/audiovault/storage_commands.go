package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"audiovault/internal/catalog"
	"audiovault/internal/quota"
)

type ownerUsage struct {
	Owner string      `json:"owner"`
	Email string      `json:"email,omitempty"`
	Usage quota.Usage `json:"storage_info"`
}

func newUsageCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "usage [owner]",
		Short: "Show storage usage per owner",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *localRuntime) error {
				owners, err := rt.catalog.Owners(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 1 {
					owners = lo.Filter(owners, func(o catalog.Owner, _ int) bool { return o.ID == args[0] })
					if len(owners) == 0 {
						return fmt.Errorf("owner %s not found", args[0])
					}
				}

				report := make([]ownerUsage, 0, len(owners))
				for _, o := range owners {
					usage, err := rt.pipeline.Usage(cmd.Context(), o.ID)
					if err != nil {
						return err
					}
					report = append(report, ownerUsage{Owner: o.ID, Email: o.Email, Usage: usage})
				}

				if jsonOutput {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				if len(report) == 0 {
					fmt.Fprintln(out, "No owners recorded")
					return nil
				}
				rows := lo.Map(report, func(r ownerUsage, _ int) []string {
					f := r.Usage.Formatted()
					return []string{r.Owner, r.Email, f.Used, f.Quota, f.Available, fmt.Sprintf("%.2f%%", r.Usage.Percentage)}
				})
				fmt.Fprintln(out, renderTable(
					[]string{"Owner", "Email", "Used", "Quota", "Available", "Usage"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Quota administration",
	}
	quotaCmd.AddCommand(&cobra.Command{
		Use:   "set <owner> <size>",
		Short: "Set an owner's storage ceiling (bytes, or with a KB/MB/GB/TB suffix)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(func(rt *localRuntime) error {
				if err := rt.catalog.SetQuota(cmd.Context(), args[0], size); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quota for %s set to %s\n", args[0], quota.FormatBytes(size))
				return nil
			})
		},
	})
	return quotaCmd
}

var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseSize accepts a byte count with an optional binary unit suffix.
func parseSize(raw string) (int64, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	multiplier := int64(1)
	for _, unit := range sizeUnits {
		if strings.HasSuffix(value, unit.suffix) {
			value = strings.TrimSpace(strings.TrimSuffix(value, unit.suffix))
			multiplier = unit.multiplier
			break
		}
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	return int64(n * float64(multiplier)), nil
}
