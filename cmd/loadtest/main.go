// Command loadtest drives concurrent traffic at a running research-api and
// reports latency percentiles and status codes.
//
// The default "search" mode hits the BM25 lookup endpoint and measures the
// index alone. "research" mode runs full pipelines with web sources off, so
// results reflect the generation backend and the per-client rate limit.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8000 -mode search -concurrency 20
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	mode        string
	concurrency int
	duration    time.Duration
	topics      []string
}

type stats struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
	kinds     map[string]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 10000),
		codes:     make(map[int]int64),
		kinds:     make(map[string]int64),
	}
}

// record counts one request. kind is the error kind from a failed JSON
// body, if any.
func (s *stats) record(took time.Duration, code int, kind string, err error) {
	s.total.Add(1)
	if err != nil || code < 200 || code >= 300 {
		s.failed.Add(1)
	} else {
		s.succeeded.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, took)
	s.codes[code]++
	if kind != "" {
		s.kinds[kind]++
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the research api")
	mode := flag.String("mode", "search", "search or research")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	if *mode != "search" && *mode != "research" {
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	opts := options{
		baseURL:     *baseURL,
		mode:        *mode,
		concurrency: *concurrency,
		duration:    *duration,
		topics: []string{
			"coral reef bleaching",
			"ocean acidification",
			"retrieval augmented generation",
			"BM25 ranking",
			"transformer attention",
			"climate tipping points",
			"protein folding",
			"quantum error correction",
			"urban heat islands",
			"antibiotic resistance",
		},
	}

	fmt.Println("=== Research API Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Mode:        %s\n", opts.mode)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Println()

	s := run(opts)
	if !report(os.Stdout, s, opts.duration) {
		os.Exit(1)
	}
}

func run(opts options) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 3 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				topic := opts.topics[i%len(opts.topics)]
				req, err := newRequest(ctx, opts, topic)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				took := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						s.record(took, 0, "", err)
					}
					continue
				}
				s.record(took, resp.StatusCode, errorKind(resp), nil)
				resp.Body.Close()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
	}
	return s
}

func newRequest(ctx context.Context, opts options, topic string) (*http.Request, error) {
	if opts.mode == "search" {
		u := fmt.Sprintf("%s/api/v1/index/search?q=%s&k=4", opts.baseURL, url.QueryEscape(topic))
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
	body, err := json.Marshal(map[string]any{
		"topic":         topic,
		"use_wikipedia": false,
		"use_arxiv":     false,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/api/v1/research", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// errorKind reads the "kind" of an error body and drains the rest.
func errorKind(resp *http.Response) string {
	defer io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 400 {
		return ""
	}
	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "unparsed"
	}
	return body.Kind
}

// report prints the summary and reports whether any request completed.
func report(w io.Writer, s *stats, duration time.Duration) bool {
	total := s.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", s.succeeded.Load())
	fmt.Fprintf(w, "Failed:          %d\n", s.failed.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) > 0 {
		sorted := slices.Clone(s.latencies)
		slices.Sort(sorted)
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", sorted[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(len(sorted)))
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-5.0f %s\n", p, percentile(sorted, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", sorted[len(sorted)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.codes[code])
	}
	if len(s.kinds) > 0 {
		fmt.Fprintln(w, "\n=== Error Kinds ===")
		kinds := make([]string, 0, len(s.kinds))
		for k := range s.kinds {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, s.kinds[k])
		}
	}

	if total == 0 {
		fmt.Fprintln(w, "\nWARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

// percentile expects sorted input and uses the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
