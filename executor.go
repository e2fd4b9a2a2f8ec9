package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestTimeout  = 10 * time.Second
	statusException = "Exception"
)

// Outcome is the result of one HTTP call: either a response with a status
// code and body, or a transport-level fault in Err. The executor never
// returns an error to its caller; faults are part of the outcome.
type Outcome struct {
	Endpoint    string
	Status      int
	Duration    time.Duration
	CompletedAt time.Time
	Body        []byte
	Err         error
}

// Failed reports whether this outcome counts as an error: a transport fault
// or an HTTP status of 400 or above.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.Status >= 400
}

// StatusKey is the status-code distribution key for this outcome.
func (o Outcome) StatusKey() string {
	if o.Err != nil {
		return statusException
	}
	return strconv.Itoa(o.Status)
}

func (o Outcome) message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return string(o.Body)
}

// Executor issues a single HTTP call per Do invocation, times it, and
// records exactly one compound update into the shared stats store. All
// sessions share one executor (and so one connection pool).
type Executor struct {
	client *http.Client
	host   string
	stats  *Stats
	log    Logger
	tracer trace.Tracer
}

func NewExecutor(host string, stats *Stats, log Logger) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		host:   host,
		stats:  stats,
		log:    log,
		tracer: otel.Tracer(ResourceLibrary, trace.WithInstrumentationVersion(ResourceVersion)),
	}
}

// Do issues method against host+endpoint. Only GET and POST are supported;
// any other method is a programming error and panics. A non-nil body is
// marshaled as JSON for POST requests. The elapsed wall-clock time from just
// before the call to just after the response (or fault) is what gets
// recorded, body read included.
func (e *Executor) Do(ctx context.Context, endpoint, method string, body interface{}) Outcome {
	switch method {
	case http.MethodGet, http.MethodPost:
	default:
		panic(fmt.Sprintf("unsupported method: %s", method))
	}

	url := e.host + endpoint
	ctx, span := e.tracer.Start(ctx, method+" "+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reqBody io.Reader
	if method == http.MethodPost && body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("unmarshalable request body for %s: %v", endpoint, err))
		}
		reqBody = bytes.NewReader(buf)
	}

	oc := Outcome{Endpoint: endpoint}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		oc.Err = err
	} else {
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := e.client.Do(req)
		if err != nil {
			oc.Err = err
		} else {
			oc.Status = resp.StatusCode
			oc.Body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
	}

	oc.Duration = time.Since(start)
	oc.CompletedAt = time.Now()

	span.SetAttributes(
		attribute.String("http.url", url),
		attribute.Int("http.status_code", oc.Status),
		attribute.Float64("duration_ms", float64(oc.Duration.Microseconds())/1000.0),
	)
	if oc.Err != nil {
		span.RecordError(oc.Err)
	}

	e.stats.Record(oc)

	if oc.Err != nil {
		e.log.Error("request exception: %v\n", oc.Err)
	} else if oc.Status >= 400 {
		e.log.Error("error: %d - %s\n", oc.Status, truncate(string(oc.Body), 100))
	}
	return oc
}
