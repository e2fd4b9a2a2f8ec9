package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutorRecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/users", r.URL.Path)
		io.WriteString(w, `{"users":[]}`)
	}))
	defer srv.Close()

	stats := NewStats()
	exec := NewExecutor(srv.URL, stats, newTestLogger(t))

	oc := exec.Do(context.Background(), "/api/users", http.MethodGet, nil)
	require.NoError(t, oc.Err)
	require.Equal(t, http.StatusOK, oc.Status)
	require.JSONEq(t, `{"users":[]}`, string(oc.Body))
	require.False(t, oc.Failed())
	require.Equal(t, "200", oc.StatusKey())
	require.Positive(t, oc.Duration)

	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Requests)
	require.Zero(t, snap.Errors)
	require.Equal(t, 1, snap.Endpoints["/api/users"].Requests)
	require.Equal(t, 1, snap.StatusCodes["200"])
}

func TestExecutorRecordsHTTPError(t *testing.T) {
	body := strings.Repeat("boom ", 100) // 500 chars, past the truncation limit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, http.StatusInternalServerError)
	}))
	defer srv.Close()

	stats := NewStats()
	exec := NewExecutor(srv.URL, stats, newTestLogger(t))

	oc := exec.Do(context.Background(), "/api/problem/deadlock", http.MethodPost, nil)
	require.NoError(t, oc.Err)
	require.True(t, oc.Failed())
	require.Equal(t, "500", oc.StatusKey())

	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Requests)
	require.Equal(t, 1, snap.Errors)
	require.Equal(t, 1, snap.Endpoints["/api/problem/deadlock"].Errors)
	require.Len(t, snap.ErrorsDetail, 1)
	require.Len(t, snap.ErrorsDetail[0].Message, errorMessageLimit)
}

func TestExecutorRecordsTransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	stats := NewStats()
	exec := NewExecutor(srv.URL, stats, newTestLogger(t))

	oc := exec.Do(context.Background(), "/health", http.MethodGet, nil)
	require.Error(t, oc.Err)
	require.True(t, oc.Failed())
	require.Equal(t, statusException, oc.StatusKey())

	// a transport fault still counts as a request, with the elapsed time
	// until the fault as its duration
	snap := stats.Snapshot()
	require.Equal(t, 1, snap.Requests)
	require.Equal(t, 1, snap.Errors)
	require.Len(t, snap.ResponseTimes, 1)
	require.Equal(t, 1, snap.StatusCodes[statusException])
	require.Len(t, snap.ErrorsDetail, 1)
	require.Equal(t, statusException, snap.ErrorsDetail[0].StatusCode)
}

func TestExecutorPostSendsJSONBody(t *testing.T) {
	type payload struct {
		Iterations int `json:"iterations"`
	}
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	exec := NewExecutor(srv.URL, NewStats(), newTestLogger(t))
	oc := exec.Do(context.Background(), "/api/problem/slow_query", http.MethodPost, payload{Iterations: 3})
	require.Equal(t, http.StatusAccepted, oc.Status)
	require.Equal(t, 3, got.Iterations)
}

func TestExecutorRejectsUnknownMethod(t *testing.T) {
	exec := NewExecutor("http://localhost:0", NewStats(), newTestLogger(t))
	require.Panics(t, func() {
		exec.Do(context.Background(), "/api/users", http.MethodDelete, nil)
	})
}
