package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// WriteSummary prints the running totals in the periodic-reporter format.
// The final summary adds the per-endpoint and status-code sections.
func (s *Snapshot) WriteSummary(w io.Writer, final bool) {
	title := "Current"
	if final {
		title = "Final"
	}
	fmt.Fprintf(w, "\n=== %s Load Test Statistics ===\n", title)
	s.writeGeneral(w)
	if final {
		s.writeEndpoints(w)
		s.writeStatusCodes(w)
	}
}

func (s *Snapshot) writeGeneral(w io.Writer) {
	fmt.Fprintf(w, "Total requests: %d\n", s.Requests)
	fmt.Fprintf(w, "Errors: %d (%.2f%%)\n", s.Errors, s.ErrorRate())
	fmt.Fprintf(w, "Average response time: %.4f seconds\n", s.AvgTime())
	if s.Requests > 0 {
		fmt.Fprintf(w, "Min response time: %.4f seconds\n", s.MinTime)
	}
	fmt.Fprintf(w, "Max response time: %.4f seconds\n", s.MaxTime)
	if p, ok := s.Percentiles(); ok {
		fmt.Fprintf(w, "50th percentile: %.4f seconds\n", p.P50)
		fmt.Fprintf(w, "90th percentile: %.4f seconds\n", p.P90)
		fmt.Fprintf(w, "99th percentile: %.4f seconds\n", p.P99)
	}
}

func (s *Snapshot) writeEndpoints(w io.Writer) {
	fmt.Fprintf(w, "\n=== Endpoint Statistics ===\n")
	for _, path := range sortedKeys(s.Endpoints) {
		ep := s.Endpoints[path]
		if ep.Requests == 0 {
			continue
		}
		avg := ep.TotalTime / float64(ep.Requests)
		rate := float64(ep.Errors) / float64(ep.Requests) * 100
		fmt.Fprintf(w, "%s: %d requests, %.4fs avg, %.2f%% errors\n", path, ep.Requests, avg, rate)
	}
}

func (s *Snapshot) writeStatusCodes(w io.Writer) {
	fmt.Fprintf(w, "\n=== Status Code Distribution ===\n")
	for _, code := range sortedKeys(s.StatusCodes) {
		count := s.StatusCodes[code]
		pct := float64(count) / float64(s.Requests) * 100
		fmt.Fprintf(w, "Status %s: %d (%.2f%%)\n", code, count, pct)
	}
}

func (s *Snapshot) writeErrors(w io.Writer) {
	if len(s.ErrorsDetail) == 0 {
		return
	}
	fmt.Fprintf(w, "\n=== Error Details ===\n")
	for i, detail := range s.ErrorsDetail {
		at := time.Unix(0, int64(detail.Timestamp*float64(time.Second)))
		fmt.Fprintf(w, "Error %d:\n", i+1)
		fmt.Fprintf(w, "  Timestamp: %s\n", at.Format("2006-01-02 15:04:05.000"))
		fmt.Fprintf(w, "  Endpoint: %s\n", detail.Endpoint)
		fmt.Fprintf(w, "  Status: %s\n", detail.StatusCode)
		fmt.Fprintf(w, "  Message: %s\n\n", detail.Message)
	}
}

// GenerateReport renders a quiesced snapshot into a timestamped text report
// and, when at least one sample exists, the response-time chart artifacts.
// It never mutates the snapshot; given the same data it always produces the
// same content (only the timestamp in the filenames differs). Returns the
// path of the text report.
func GenerateReport(snap *Snapshot, dir string, log Logger) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	stamp := time.Now().Format("20060102_150405")
	base := fmt.Sprintf("load_test_report_%s", stamp)

	if len(snap.ResponseTimes) > 0 {
		if err := writeCharts(snap, dir, base, log); err != nil {
			log.Warn("unable to render charts: %v\n", err)
		}
	}

	path := filepath.Join(dir, base+".txt")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fmt.Fprintf(f, "=== Load Test Report: %s ===\n\n", stamp)
	fmt.Fprintf(f, "=== General Statistics ===\n")
	snap.writeGeneral(f)
	snap.writeEndpoints(f)
	snap.writeStatusCodes(f)
	snap.writeErrors(f)

	log.Info("report generated: %s\n", path)
	return path, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
