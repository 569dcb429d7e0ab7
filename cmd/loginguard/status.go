// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/control"
)

// ServerStatus holds the status information reported by the status command.
type ServerStatus struct {
	Running       bool   `json:"running"`
	Health        string `json:"health,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	Registered    int    `json:"registered"`
	Online        int    `json:"online"`
	Authenticated int    `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	socketPath string
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running server",
		Long:  `Show health, uptime and session counts of the running loginguard server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.socketPath, "socket", "", "control socket path (default: XDG runtime dir)")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := queryStatus(cmd.Context(), cfg.socketPath)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.Code("CLI_FORMAT").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(formatStatusTable(status))
	return nil
}

// resolveSocket returns path or the default control socket path.
func resolveSocket(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return control.SocketPath()
}

// queryStatus queries the control socket. Failures are reported in the
// returned status rather than as errors.
func queryStatus(ctx context.Context, socketPath string) ServerStatus {
	var status ServerStatus
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := resolveSocket(socketPath)
	if err != nil {
		status.Error = fmt.Sprintf("failed to get socket path: %v", err)
		return status
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		status.Error = "socket not found"
		return status
	}

	client := control.NewClient(path)
	health, err := client.Health(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Running = true
	status.Health = health.Status

	resp, err := client.Status(ctx)
	if err != nil {
		// Health succeeded; report what we have.
		return status
	}
	status.Running = resp.Running
	status.PID = resp.PID
	status.UptimeSeconds = resp.UptimeSeconds
	status.Registered = resp.Sessions.Registered
	status.Online = resp.Sessions.Online
	status.Authenticated = resp.Sessions.Authenticated
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServerStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "STATUS\tHEALTH\tPID\tUPTIME\tREGISTERED\tONLINE\tLOGGED IN")
	_, _ = fmt.Fprintln(w, "------\t------\t---\t------\t----------\t------\t---------")
	if status.Running {
		_, _ = fmt.Fprintf(w, "running\t%s\t%d\t%s\t%d\t%d\t%d\n",
			status.Health, status.PID, formatUptime(status.UptimeSeconds),
			status.Registered, status.Online, status.Authenticated)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "stopped\t-\t-\t%s\t-\t-\t-\n", reason)
	}

	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
