package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"audiovault/internal/api"
	"audiovault/internal/config"
	"audiovault/internal/preflight"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

type statusReport struct {
	Daemon    *api.StatusResponse `json:"daemon,omitempty"`
	DaemonErr string              `json:"daemon_error,omitempty"`
	Checks    []preflight.Result  `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{Checks: preflight.RunAll(cmd.Context(), cfg)}
			daemonStatus, err := fetchDaemonStatus(cmd.Context(), cfg)
			if err != nil {
				report.DaemonErr = err.Error()
			} else {
				report.Daemon = daemonStatus
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			renderStatus(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*api.StatusResponse, error) {
	addr := dialAddress(cfg.Paths.APIBind)
	if addr == "" {
		return nil, fmt.Errorf("api_bind is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+addr+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s", addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}
	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

// dialAddress turns a listen address into one a local client can dial.
func dialAddress(bind string) string {
	bind = strings.TrimSpace(bind)
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func renderStatus(out io.Writer, report statusReport, colorize bool) {
	if report.Daemon != nil {
		d := report.Daemon
		fmt.Fprintf(out, "Daemon:       running (pid %d)\n", d.PID)
		fmt.Fprintf(out, "Storage root: %s\n", d.StorageRoot)
		fmt.Fprintf(out, "Catalog:      %s\n", d.CatalogPath)
		fmt.Fprintf(out, "Strict quota: %s\n", yesNo(d.StrictQuota))
	} else {
		fmt.Fprintf(out, "Daemon:       %s\n", report.DaemonErr)
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		state := "ok"
		color := ansiGreen
		if !check.Passed {
			state, color = "failed", ansiRed
		}
		if colorize {
			state = color + state + ansiReset
		}
		rows = append(rows, []string{check.Name, state, check.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows, nil))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
