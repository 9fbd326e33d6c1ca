// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// checkStatus holds the result of probing one health endpoint.
type checkStatus struct {
	Check   string `json:"check"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	var addr string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running Crewdeck server",
		Long:  `Probe the observability endpoints of a running server and report liveness and readiness.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, addr, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "observability address of the running server")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, addr string, jsonOutput bool) error {
	client := &http.Client{Timeout: 2 * time.Second}

	statuses := []checkStatus{
		probeCheck(client, addr, "liveness"),
		probeCheck(client, addr, "readiness"),
	}

	if jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
	for _, s := range statuses {
		state := "ok"
		if !s.Healthy {
			state = "failing"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Check, state, s.Error)
	}
	_ = w.Flush()
	cmd.Print(sb.String())
	return nil
}

// probeCheck queries one /healthz endpoint and translates the response
// into a checkStatus. Connection errors are reported, not returned, so
// the command can still print the table for a down server.
func probeCheck(client *http.Client, addr, check string) checkStatus {
	status := checkStatus{Check: check}

	resp, err := client.Get("http://" + addr + "/healthz/" + check)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return status
	}

	status.Healthy = true
	return status
}
