package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goware/urlx"
	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

var ResourceLibrary = "apiload"
var ResourceVersion = "dev"

// gracePeriod bounds how long we wait for sessions to finish after the stop
// signal; sessions still inside an HTTP call are abandoned past this point.
const gracePeriod = 5 * time.Second

// Paths is the endpoint surface of the service under test.
type Paths struct {
	Catalog  string `long:"catalog" description:"catalog-listing endpoint returning the problem id list" default:"/api/problems" yaml:"catalog"`
	Resource string `long:"resource" description:"secondary-resource listing endpoint hit on every pass" default:"/api/users" yaml:"resource"`
	Action   string `long:"action" description:"per-id action endpoint, a printf format with one %s" default:"/api/problem/%s" yaml:"action"`
	Health   string `long:"health" description:"liveness endpoint" default:"/health" yaml:"health"`
}

type Options struct {
	Target struct {
		Host     string `long:"host" description:"base url of the service under test" env:"TARGET_HOST" default:"http://localhost:5001"`
		Insecure bool   `long:"insecure" description:"use this for insecure http (not https) connections" yaml:",omitempty"`
		Paths    Paths  `group:"Endpoint Paths" yaml:"paths"`
	} `group:"Target Options" yaml:"target"`
	Load struct {
		Duration time.Duration `long:"duration" description:"test duration" env:"DEFAULT_DURATION" default:"300s"`
		Users    int           `long:"users" description:"number of concurrent users" env:"DEFAULT_USERS" default:"10"`
		MinThink time.Duration `long:"min-think" description:"minimum think time between requests" default:"500ms"`
		MaxThink time.Duration `long:"max-think" description:"maximum think time between requests" default:"3s"`
	} `group:"Load Options" yaml:"load"`
	Report struct {
		Only      bool          `long:"report-only" description:"skip load generation and only regenerate a report from persisted stats(*)" yaml:"-"`
		Dir       string        `long:"reportdir" description:"directory the report artifacts are written to" default:"reports"`
		StatsFile string        `long:"statsfile" description:"file the final stats are persisted to" default:"stats.json"`
		Interval  time.Duration `long:"interval" description:"periodic stats summary interval" default:"5s"`
	} `group:"Report Options" yaml:"report"`
	Telemetry struct {
		Host        string `long:"telemetry-host" description:"url of an otlp endpoint to receive traces (empty disables tracing)" default:"" yaml:",omitempty"`
		Insecure    bool   `long:"telemetry-insecure" description:"use insecure connections for telemetry export" yaml:",omitempty"`
		Protocol    string `long:"protocol" description:"otlp protocol to use" choice:"grpc" choice:"http" default:"grpc"`
		ServiceName string `long:"servicename" description:"service.name on exported spans" default:"apiload"`
	} `group:"Telemetry Options" yaml:"telemetry"`
	Global struct {
		LogLevel  string `long:"loglevel" description:"level of logging" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
		Seed      string `long:"seed" description:"string seed for the workload random number generator" default:"apiload" yaml:",omitempty"`
		DebugPort int    `long:"debugport" description:"port to listen on for pprof(*)" default:"-1" yaml:"-"`
		Config    string `long:"config" description:"name of config file to load(*)" default:"" yaml:"-"`
		WriteCfg  string `long:"writecfg" description:"write effective YAML config to the specified output file and quit(*)" default:"" yaml:"-"`
	} `group:"Global Options" yaml:"global"`

	apihost *url.URL
	telhost *url.URL
}

func newOptions() *Options {
	return &Options{}
}

func (o *Options) CopyStarredFieldsFrom(other *Options) {
	o.Report.Only = other.Report.Only
	o.Global.DebugPort = other.Global.DebugPort
	o.Global.Config = other.Global.Config
	o.Global.WriteCfg = other.Global.WriteCfg
}

func (o *Options) DebugLevel() int {
	switch o.Global.LogLevel {
	case "debug":
		return 3
	case "info":
		return 2
	case "warn":
		return 1
	case "error":
		return 0
	default:
		return 0
	}
}

// parseHost cleans up a host argument so that schemeless values still work;
// the insecure flag picks the default scheme. Exits if it can't make sense
// of it.
func parseHost(log Logger, host string, insecure bool) *url.URL {
	defaultScheme := "https"
	if insecure {
		defaultScheme = "http"
	}
	u, err := urlx.ParseWithDefaultScheme(host, defaultScheme)
	if err != nil {
		log.Fatal("unable to parse host: %s\n", err)
	}
	return u
}

func ReadConfig(opts *Options, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(f)
	err = dec.Decode(opts)
	if err != nil {
		return err
	}
	log.Printf("read config from %s\n", filename)
	return nil
}

func WriteConfig(opts *Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	err = enc.Encode(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote config to %s\n", filename)
	return nil
}

func main() {
	cmdopts := newOptions()

	parser := flags.NewParser(cmdopts, flags.Default)
	parser.Usage = `[OPTIONS]

	apiload drives a simulated-user load against a REST API and reports
	request statistics as it runs. Each simulated user loops over the
	target's endpoint surface (catalog listing, secondary resource, a random
	per-id action, an occasional liveness check) with a randomized think time
	between passes, until the test duration is reached.

	At the end of the run the aggregated statistics are persisted to a JSON
	file and rendered into a text report plus response-time charts in the
	reports directory. Use --report-only to regenerate the report from a
	previous run without generating any load.

	Options can be set in a config file, or on the command line; to specify
	them in the config file, specify it on the command line with
	"--config=FILENAME". The config file format is YAML; see "example.yml"
	for an example.

	Note: If a config file is used, it MUST be used for all options, except
	for the ones marked in the help text with (*) -- these fields CANNOT be
	set in the config file.
	`

	_, err := parser.Parse()
	if err != nil {
		switch flagsErr := err.(type) {
		case *flags.Error:
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		log.Fatalf("error reading command line: %v", err)
	}

	opts := newOptions()
	if cmdopts.Global.Config != "" {
		if err := ReadConfig(opts, cmdopts.Global.Config); err != nil {
			log.Fatalf("err %v -- unable to read config file %s", err, cmdopts.Global.Config)
		}
		opts.CopyStarredFieldsFrom(cmdopts)
	} else {
		opts = cmdopts // we don't have to read from a file
	}

	if opts.Global.WriteCfg != "" {
		if err := WriteConfig(opts, opts.Global.WriteCfg); err != nil {
			log.Fatalf("unable to write config: %s\n", err)
		}
		os.Exit(0)
	}

	log := NewLogger(opts.DebugLevel())

	if opts.Global.DebugPort > 0 {
		go func() {
			http.ListenAndServe(fmt.Sprintf("localhost:%d", opts.Global.DebugPort), nil)
		}()
	}

	if opts.Report.Only {
		snap, err := LoadSnapshot(opts.Report.StatsFile)
		if err != nil {
			log.Fatal("no previous stats found at %s: %v\n", opts.Report.StatsFile, err)
		}
		if _, err := GenerateReport(snap, opts.Report.Dir, log); err != nil {
			log.Fatal("unable to generate report: %v\n", err)
		}
		return
	}

	if opts.Load.Users < 1 {
		log.Fatal("users must be at least 1\n")
	}
	if opts.Load.MaxThink < opts.Load.MinThink {
		log.Fatal("max-think must not be less than min-think\n")
	}

	opts.apihost = parseHost(log, opts.Target.Host, opts.Target.Insecure)

	if opts.Telemetry.Host != "" {
		opts.telhost = parseHost(log, opts.Telemetry.Host, opts.Telemetry.Insecure)
		if opts.telhost.Port() == "" {
			opts.telhost.Host = fmt.Sprintf("%s:4317", opts.telhost.Host) // default GRPC port
		}
		shutdown := setupTracing(log, opts)
		defer shutdown()
	}

	log.Info("starting load test against %s\n", opts.apihost)
	log.Info("duration: %s, users: %d, think time: %s-%s\n",
		opts.Load.Duration, opts.Load.Users, opts.Load.MinThink, opts.Load.MaxThink)

	stats := NewStats()
	executor := NewExecutor(opts.apihost.String(), stats, log)

	// stop channel for cooperative shutdown; closed exactly once, whether
	// the duration elapses first or the operator hits ctrl-c
	stop := make(chan struct{})
	var stopOnce sync.Once
	shutdown := func() { stopOnce.Do(func() { close(stop) }) }

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigch:
			log.Warn("\nshutting down from operating system signal\n")
			shutdown()
		case <-stop:
		}
	}()

	go statsReporter(stats, opts.Report.Interval, stop)

	wg := &sync.WaitGroup{}
	deadline := time.Now().Add(opts.Load.Duration)
	for i := 0; i < opts.Load.Users; i++ {
		session := NewSession(i, executor, opts.Global.Seed, opts.Target.Paths,
			opts.Load.MinThink, opts.Load.MaxThink, log)
		wg.Add(1)
		go session.Run(wg, deadline, stop)
	}

	// block for the test duration (or an early ctrl-c), then request stop
	pause(opts.Load.Duration, stop)
	shutdown()

	// join with a deadline; abandoned sessions may still complete their
	// in-flight call and record it, which the stats store tolerates
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(gracePeriod):
		log.Warn("abandoning sessions still running after %s grace period\n", gracePeriod)
	}

	snap := stats.Snapshot()
	snap.WriteSummary(os.Stdout, true)

	if err := snap.Save(opts.Report.StatsFile); err != nil {
		log.Error("unable to persist stats to %s: %v\n", opts.Report.StatsFile, err)
	}
	if _, err := GenerateReport(snap, opts.Report.Dir, log); err != nil {
		log.Error("unable to generate report: %v\n", err)
	}
}
