package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// probability that an iteration also hits the liveness endpoint
	healthCheckChance = 0.2
	// pause after a failed iteration before trying again
	iterationBackoff = time.Second
)

// Session simulates one user. Until the deadline it repeatedly lists the
// secondary resource, triggers a randomly chosen catalog action, and
// occasionally checks liveness, pausing for a think time between passes.
type Session struct {
	id       int
	exec     *Executor
	rng      Rng
	paths    Paths
	minThink time.Duration
	maxThink time.Duration
	log      Logger

	// catalog ids, cached after the first successful fetch; per-session,
	// not shared
	problems []string
}

func NewSession(id int, exec *Executor, seed string, paths Paths, minThink, maxThink time.Duration, log Logger) *Session {
	return &Session{
		id:       id,
		exec:     exec,
		rng:      NewRng(fmt.Sprintf("%s-%d", seed, id)),
		paths:    paths,
		minThink: minThink,
		maxThink: maxThink,
		log:      log,
	}
}

// Run loops until the deadline passes or stop is closed. A failed iteration
// is logged and followed by a short backoff; it never ends the session. The
// think-time and backoff sleeps both wake early on stop.
func (s *Session) Run(wg *sync.WaitGroup, deadline time.Time, stop chan struct{}) {
	defer wg.Done()
	for time.Now().Before(deadline) && !stopped(stop) {
		if err := s.iterate(); err != nil {
			s.log.Warn("session %d: %v\n", s.id, err)
			pause(iterationBackoff, stop)
			continue
		}
		pause(s.rng.Duration(s.minThink, s.maxThink), stop)
	}
	s.log.Debug("session %d finished\n", s.id)
}

// iterate performs one pass of the steady-state workload. Each pass is a
// root span so the requests inside it show up as one trace.
func (s *Session) iterate() error {
	ctx, span := s.exec.tracer.Start(context.Background(), "session-iteration")
	defer span.End()

	if len(s.problems) == 0 {
		if err := s.fetchCatalog(ctx); err != nil {
			return err
		}
	}

	s.exec.Do(ctx, s.paths.Resource, http.MethodGet, nil)

	if len(s.problems) > 0 {
		id := s.rng.Choice(s.problems)
		s.exec.Do(ctx, fmt.Sprintf(s.paths.Action, id), http.MethodPost, nil)
	}

	if s.rng.Chance(healthCheckChance) {
		s.exec.Do(ctx, s.paths.Health, http.MethodGet, nil)
	}
	return nil
}

// fetchCatalog loads the problem-id catalog. A failed request is not an
// iteration error (the session just tries again next pass); a catalog
// response that doesn't parse is.
func (s *Session) fetchCatalog(ctx context.Context) error {
	oc := s.exec.Do(ctx, s.paths.Catalog, http.MethodGet, nil)
	if oc.Err != nil || oc.Status != http.StatusOK {
		return nil
	}
	var catalog struct {
		Problems []string `json:"problems"`
	}
	if err := json.Unmarshal(oc.Body, &catalog); err != nil {
		return fmt.Errorf("bad catalog response: %w", err)
	}
	s.problems = catalog.Problems
	s.log.Debug("session %d cached %d catalog ids\n", s.id, len(s.problems))
	return nil
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// pause sleeps for d but wakes early if stop is closed.
func pause(d time.Duration, stop chan struct{}) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-stop:
	}
}
