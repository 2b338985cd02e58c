package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	// RankEvery sends every Nth request of a worker to the rank endpoint.
	RankEvery int
	Queries   []string
}

const (
	endpointSearch = "search"
	endpointRank   = "rank"
)

// endpointStats accumulates the outcome of requests to one endpoint.
type endpointStats struct {
	success     int64
	errors      int64
	latencies   []time.Duration
	statusCodes map[int]int64
}

type Stats struct {
	mu        sync.Mutex
	endpoints map[string]*endpointStats
}

func NewStats() *Stats {
	return &Stats{endpoints: make(map[string]*endpointStats)}
}

// Record adds one request. Transport errors carry status 0.
func (s *Stats) Record(endpoint string, d time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.endpoints[endpoint]
	if !ok {
		es = &endpointStats{statusCodes: make(map[int]int64)}
		s.endpoints[endpoint] = es
	}
	if err != nil {
		es.errors++
		return
	}
	if status >= 200 && status < 300 {
		es.success++
	} else {
		es.errors++
	}
	es.latencies = append(es.latencies, d)
	es.statusCodes[status]++
}

func (s *Stats) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, es := range s.endpoints {
		n += es.success + es.errors
	}
	return n
}

// Run drives the search service until cfg.Duration elapses or ctx ends.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if len(cfg.Queries) == 0 {
		return nil, errors.New("no queries configured")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				endpoint := endpointSearch
				if cfg.RankEvery > 0 && i%cfg.RankEvery == cfg.RankEvery-1 {
					endpoint = endpointRank
				}
				query := cfg.Queries[i%len(cfg.Queries)]
				target := fmt.Sprintf("%s/api/v1/%s?q=%s&limit=10", cfg.BaseURL, endpoint, url.QueryEscape(query))

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.Record(endpoint, elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(endpoint, elapsed, resp.StatusCode, nil)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

// Report prints per-endpoint throughput, latency percentiles and status
// codes.
func (s *Stats) Report(w io.Writer, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		es := s.endpoints[name]
		total := es.success + es.errors
		fmt.Fprintf(w, "=== /api/v1/%s ===\n", name)
		fmt.Fprintf(w, "Total Requests:  %d\n", total)
		fmt.Fprintf(w, "Successful:      %d\n", es.success)
		fmt.Fprintf(w, "Errors:          %d\n", es.errors)
		if total > 0 {
			fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(es.errors)/float64(total)*100)
			fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
		}

		latencies := slices.Clone(es.latencies)
		slices.Sort(latencies)
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			fmt.Fprintf(w, "Latency min/avg/max: %s / %s / %s\n",
				latencies[0], sum/time.Duration(len(latencies)), latencies[len(latencies)-1])
			fmt.Fprintf(w, "Latency p50/p90/p99: %s / %s / %s\n",
				percentile(latencies, 50), percentile(latencies, 90), percentile(latencies, 99))
		}

		codes := make([]int, 0, len(es.statusCodes))
		for code := range es.statusCodes {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d: %d\n", code, es.statusCodes[code])
		}
		fmt.Fprintln(w)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
