// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStatusCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewStatusCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatus_HealthyServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	addr := strings.TrimPrefix(server.URL, "http://")

	out, err := runStatusCommand(t, "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "liveness")
	assert.Contains(t, out, "readiness")
	assert.Contains(t, out, "ok")
	assert.NotContains(t, out, "failing")
}

func TestStatus_NotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz/readiness" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	addr := strings.TrimPrefix(server.URL, "http://")

	out, err := runStatusCommand(t, "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "failing")
	assert.Contains(t, out, "unexpected status 503")
}

func TestStatus_ServerDown(t *testing.T) {
	// Grab a port that nothing is listening on.
	server := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	out, err := runStatusCommand(t, "--addr", addr)
	require.NoError(t, err, "an unreachable server is a report, not a command failure")
	assert.Contains(t, out, "failed to connect")
}

func TestStatus_JSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	addr := strings.TrimPrefix(server.URL, "http://")

	out, err := runStatusCommand(t, "--addr", addr, "--json")
	require.NoError(t, err)

	var statuses []checkStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "liveness", statuses[0].Check)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "readiness", statuses[1].Check)
	assert.True(t, statuses[1].Healthy)
}
