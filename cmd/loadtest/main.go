package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var defaultQueries = []string{
	"storm coast",
	"election AND NOT poll",
	"market OR shares",
	`"interest rates"`,
	"#5(court ruling)",
	"(flood OR storm) AND damage",
	"budget vote",
	"strike AND (union OR workers)",
	`"central bank" AND inflation`,
	"harvest",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rankEvery := flag.Int("rank-every", 4, "send every Nth request to /api/v1/rank (0 disables)")
	queriesFile := flag.String("queries", "", "file with one query per line (default: built-in news queries)")
	flag.Parse()

	queries := defaultQueries
	if *queriesFile != "" {
		loaded, err := readQueries(*queriesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     strings.TrimSuffix(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		RankEvery:   *rankEvery,
		Queries:     queries,
	}

	fmt.Println("=== newsdex Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	stats.Report(os.Stdout, cfg.Duration)
	if stats.Total() == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" && !strings.HasPrefix(q, "#!") {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s contains no queries", path)
	}
	return queries, nil
}
