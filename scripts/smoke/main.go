// Command smoke probes a running deployment and reports which endpoints are
// healthy. It is a deploy-time check, not a test suite.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type probe struct {
	Name     string
	Method   string
	Path     string
	Want     int
	Critical bool
}

func defaultProbes() []probe {
	return []probe{
		{Name: "health", Method: http.MethodGet, Path: "/health", Want: http.StatusOK, Critical: true},
		{Name: "readiness", Method: http.MethodGet, Path: "/ready", Want: http.StatusOK, Critical: true},
		{Name: "metrics", Method: http.MethodGet, Path: "/metrics", Want: http.StatusOK},
		{Name: "auth guard", Method: http.MethodPost, Path: "/api/v1/advisor/query", Want: http.StatusUnauthorized, Critical: true},
		{Name: "actions guard", Method: http.MethodPost, Path: "/api/v1/actions", Want: http.StatusUnauthorized, Critical: true},
	}
}

type result struct {
	Probe    probe
	Status   int
	OK       bool
	Err      error
	Duration time.Duration
}

func main() {
	var (
		base    string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	results := make([]result, 0, len(defaultProbes()))
	for _, p := range defaultProbes() {
		results = append(results, run(client, base, p))
	}

	criticalFailed := report(results)
	if criticalFailed {
		os.Exit(1)
	}
}

func run(client *http.Client, base string, p probe) result {
	started := time.Now()
	req, err := http.NewRequest(p.Method, base+p.Path, nil)
	if err != nil {
		return result{Probe: p, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return result{Probe: p, Err: err, Duration: time.Since(started)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	return result{
		Probe:    p,
		Status:   resp.StatusCode,
		OK:       resp.StatusCode == p.Want,
		Duration: time.Since(started),
	}
}

func report(results []result) bool {
	criticalFailed := false
	for _, r := range results {
		switch {
		case r.Err != nil:
			log.Printf("FAIL %-14s error: %v", r.Probe.Name, r.Err)
			if r.Probe.Critical {
				criticalFailed = true
			}
		case !r.OK:
			log.Printf("FAIL %-14s got %d want %d (%s)", r.Probe.Name, r.Status, r.Probe.Want, r.Duration.Round(time.Millisecond))
			if r.Probe.Critical {
				criticalFailed = true
			}
		default:
			log.Printf("ok   %-14s %d (%s)", r.Probe.Name, r.Status, r.Duration.Round(time.Millisecond))
		}
	}

	summary := map[string]interface{}{"probes": len(results), "critical_failed": criticalFailed}
	encoded, err := json.Marshal(summary)
	if err == nil {
		fmt.Println(string(encoded))
	}
	return criticalFailed
}
