package main

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"sync"
	"time"
)

const (
	// percentiles are omitted until we have more than this many samples
	percentileMinSamples = 10
	// recorded error messages are truncated to this many characters
	errorMessageLimit = 200
)

// EndpointStats aggregates the requests made against one endpoint path.
type EndpointStats struct {
	Requests  int       `json:"requests"`
	Errors    int       `json:"errors"`
	TotalTime float64   `json:"total_time"`
	Times     []float64 `json:"times"`
}

// ErrorDetail is one recorded failure. StatusCode is the numeric code as a
// string, or "Exception" for transport faults.
type ErrorDetail struct {
	Timestamp  float64 `json:"timestamp"`
	Endpoint   string  `json:"endpoint"`
	StatusCode string  `json:"status_code"`
	Message    string  `json:"message"`
}

// Snapshot is the full statistics aggregate. Readers only ever see deep
// copies produced by Stats.Snapshot, so a Snapshot is safe to inspect,
// serialize, and render without further locking.
type Snapshot struct {
	Requests      int                       `json:"requests"`
	Errors        int                       `json:"errors"`
	TotalTime     float64                   `json:"total_time"`
	MinTime       float64                   `json:"min_time"`
	MaxTime       float64                   `json:"max_time"`
	ResponseTimes []float64                 `json:"response_times"`
	Timestamps    []float64                 `json:"timestamps"`
	Endpoints     map[string]*EndpointStats `json:"endpoints"`
	StatusCodes   map[string]int            `json:"status_codes"`
	ErrorsDetail  []ErrorDetail             `json:"errors_detail"`
}

// Stats is the shared mutable store, written concurrently by every session.
// Record applies the whole compound update for one request under a single
// lock, so a concurrent Snapshot can never observe a request half-recorded
// (e.g. Requests incremented but ResponseTimes not yet appended).
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewStats() *Stats {
	return &Stats{snap: Snapshot{
		MinTime:     math.Inf(1),
		Endpoints:   make(map[string]*EndpointStats),
		StatusCodes: make(map[string]int),
	}}
}

// Record folds one outcome into the store. Transport faults count as
// requests too, with status key "Exception" and the time elapsed until the
// fault as their duration, which keeps Requests == len(ResponseTimes) no
// matter how a call ends.
func (s *Stats) Record(oc Outcome) {
	duration := oc.Duration.Seconds()
	at := unixSeconds(oc.CompletedAt)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.snap
	st.Requests++
	st.TotalTime += duration
	if duration < st.MinTime {
		st.MinTime = duration
	}
	if duration > st.MaxTime {
		st.MaxTime = duration
	}
	st.ResponseTimes = append(st.ResponseTimes, duration)
	st.Timestamps = append(st.Timestamps, at)

	ep := st.Endpoints[oc.Endpoint]
	if ep == nil {
		ep = &EndpointStats{}
		st.Endpoints[oc.Endpoint] = ep
	}
	ep.Requests++
	ep.TotalTime += duration
	ep.Times = append(ep.Times, duration)

	st.StatusCodes[oc.StatusKey()]++

	if oc.Failed() {
		st.Errors++
		ep.Errors++
		st.ErrorsDetail = append(st.ErrorsDetail, ErrorDetail{
			Timestamp:  at,
			Endpoint:   oc.Endpoint,
			StatusCode: oc.StatusKey(),
			Message:    truncate(oc.message(), errorMessageLimit),
		})
	}
}

// Snapshot returns a deep copy of the store. During the run the copy is an
// eventually-consistent view; after the orchestrator has joined all sessions
// it is the quiescent final state. An empty store reports MinTime as 0 (the
// +Inf sentinel is in-memory only; JSON has no representation for it).
func (s *Stats) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.snap
	out.ResponseTimes = append([]float64(nil), s.snap.ResponseTimes...)
	out.Timestamps = append([]float64(nil), s.snap.Timestamps...)
	out.ErrorsDetail = append([]ErrorDetail(nil), s.snap.ErrorsDetail...)
	out.Endpoints = make(map[string]*EndpointStats, len(s.snap.Endpoints))
	for path, ep := range s.snap.Endpoints {
		cp := *ep
		cp.Times = append([]float64(nil), ep.Times...)
		out.Endpoints[path] = &cp
	}
	out.StatusCodes = make(map[string]int, len(s.snap.StatusCodes))
	for code, n := range s.snap.StatusCodes {
		out.StatusCodes[code] = n
	}
	if out.Requests == 0 {
		out.MinTime = 0
	}
	return &out
}

// Percentiles holds the derived latency percentiles, in seconds.
type Percentiles struct {
	P50 float64
	P90 float64
	P99 float64
}

// Percentiles sorts the full sample set at call time and picks
// sorted[n/2], sorted[int(n*0.9)] and sorted[int(n*0.99)]. The second
// return is false when 10 or fewer samples have been collected. This is
// O(n log n) per call and the sample set grows without bound over the run;
// acceptable for test durations this tool is meant for.
func (s *Snapshot) Percentiles() (Percentiles, bool) {
	n := len(s.ResponseTimes)
	if n <= percentileMinSamples {
		return Percentiles{}, false
	}
	sorted := append([]float64(nil), s.ResponseTimes...)
	sort.Float64s(sorted)
	return Percentiles{
		P50: sorted[n/2],
		P90: sorted[int(float64(n)*0.9)],
		P99: sorted[int(float64(n)*0.99)],
	}, true
}

// AvgTime is the mean response time in seconds, 0 when nothing was recorded.
func (s *Snapshot) AvgTime() float64 {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalTime / float64(s.Requests)
}

// ErrorRate is the percentage of requests that failed.
func (s *Snapshot) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Requests) * 100
}

// Save persists the snapshot as JSON so a later --report-only run can
// regenerate the report without re-running the test.
func (s *Snapshot) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(s)
}

// LoadSnapshot restores a snapshot persisted by Save.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap := &Snapshot{}
	if err := json.NewDecoder(f).Decode(snap); err != nil {
		return nil, err
	}
	if snap.Endpoints == nil {
		snap.Endpoints = make(map[string]*EndpointStats)
	}
	if snap.StatusCodes == nil {
		snap.StatusCodes = make(map[string]int)
	}
	return snap, nil
}

// unixSeconds converts a wall-clock time to fractional unix seconds, the
// representation the timestamps sequence and error details are stored in.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
