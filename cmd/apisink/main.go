package main

// apisink is a stand-in for the service apiload drives: it serves the
// catalog, secondary-resource, per-id action, and liveness endpoints with a
// configurable amount of simulated latency and a configurable error rate, so
// the load generator can be exercised end to end without a real backend.

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
)

// Options defines the command line arguments
type Options struct {
	Port       int           `long:"port" description:"port number to listen on" default:"5001"`
	ErrorRate  float64       `long:"errorrate" description:"probability that a problem action fails with a 500" default:"0.05"`
	MinLatency time.Duration `long:"minlatency" description:"lower bound of the simulated action latency" default:"10ms"`
	MaxLatency time.Duration `long:"maxlatency" description:"upper bound of the simulated action latency" default:"500ms"`
}

var problems = []string{
	"connection_timeout",
	"slow_query",
	"connection_pool_exhaustion",
	"deadlock",
	"table_lock",
	"memory_leak",
	"connection_drop",
	"query_error",
}

type user struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var users = []user{
	{1, "Ada Lovelace", "ada@example.com"},
	{2, "Grace Hopper", "grace@example.com"},
	{3, "Edsger Dijkstra", "edsger@example.com"},
	{4, "Barbara Liskov", "barbara@example.com"},
	{5, "Donald Knuth", "donald@example.com"},
}

// Sink counts what it serves so a summary can be printed at shutdown.
type Sink struct {
	opts     Options
	requests atomic.Int64
	failures atomic.Int64
}

func (s *Sink) jitter() time.Duration {
	span := s.opts.MaxLatency - s.opts.MinLatency
	if span <= 0 {
		return s.opts.MinLatency
	}
	return s.opts.MinLatency + time.Duration(rand.Int63n(int64(span)))
}

func (s *Sink) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Sink) handleProblems(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.writeJSON(w, http.StatusOK, map[string][]string{"problems": problems})
}

func (s *Sink) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	time.Sleep(s.jitter() / 4)
	s.writeJSON(w, http.StatusOK, map[string][]user{"users": users})
}

func (s *Sink) handleProblem(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/problem/")
	time.Sleep(s.jitter())
	if rand.Float64() < s.opts.ErrorRate {
		s.failures.Add(1)
		s.writeJSON(w, http.StatusInternalServerError,
			map[string]string{"error": fmt.Sprintf("simulated failure running %s", id)})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"problem": id, "status": "simulated"})
}

func (s *Sink) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func main() {
	opts := Options{}
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		switch flagsErr := err.(type) {
		case *flags.Error:
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		log.Fatalf("error reading command line: %v", err)
	}

	sink := &Sink{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/problems", sink.handleProblems)
	mux.HandleFunc("/api/problem/", sink.handleProblem)
	mux.HandleFunc("/api/users", sink.handleUsers)
	mux.HandleFunc("/health", sink.handleHealth)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: mux,
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigch
		log.Printf("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("apisink listening on :%d (error rate %.2f)", opts.Port, opts.ErrorRate)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("served %d requests (%d simulated failures)", sink.requests.Load(), sink.failures.Load())
}
