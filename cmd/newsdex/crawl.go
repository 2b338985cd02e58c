package main

import (
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/newsdex/newsdex/internal/indexer"
	"github.com/newsdex/newsdex/internal/indexer/crawler"
	"github.com/newsdex/newsdex/internal/indexer/index"
	"github.com/newsdex/newsdex/internal/ingestion/publisher"
	"github.com/newsdex/newsdex/pkg/config"
	"github.com/newsdex/newsdex/pkg/kafka"
)

var crawlPublish bool

type documentProducer interface {
	publisher.Producer
	Close() error
}

// newProducer is replaced in tests.
var newProducer = func(cfg config.KafkaConfig) documentProducer {
	return kafka.NewProducer(cfg, cfg.Topics.DocumentIngest)
}

type crawlSummary struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Removed   int `json:"removed"`
	Published int `json:"published"`
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Report new and changed articles",
	Long: `Walk the configured roots and compare every article against the stored
fingerprints. New fingerprints are recorded, so each change is reported once.
With --publish a change is only recorded once it has been published.

With --publish the new and changed articles are sent to the ingest topic,
where a running indexer picks them up.`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlPublish, "publish", false, "publish changed articles to Kafka")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := indexer.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	c := crawler.New(crawler.Config{Roots: cfg.Crawler.Roots, Extension: cfg.Crawler.Extension}, store)
	report, err := c.Crawl(ctx)
	var partial *multierror.Error
	if errors.As(err, &partial) {
		slog.Warn("crawl finished with errors", "errors", len(partial.Errors), "error", partial)
	} else if err != nil {
		return err
	}

	summary := crawlSummary{
		Added:    len(report.Added),
		Modified: len(report.Modified),
		Removed:  len(report.Removed),
	}
	var failed []string
	if crawlPublish {
		if summary.Published, failed, err = publishChanged(cmd, cfg, report.Changed()); err != nil {
			return err
		}
	}
	if err := c.Commit(ctx, report, failed...); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd, summary)
	}
	cmd.Printf("Added: %d  Modified: %d  Removed: %d\n", summary.Added, summary.Modified, summary.Removed)
	if crawlPublish {
		cmd.Printf("Published %d documents to %s\n", summary.Published, cfg.Kafka.Topics.DocumentIngest)
	}
	return nil
}

// publishChanged returns the number of documents published and the paths
// that could not be extracted.
func publishChanged(cmd *cobra.Command, cfg *config.Config, sources []crawler.Source) (int, []string, error) {
	x := crawler.NewExtractor()
	docs := make([]index.Document, 0, len(sources))
	var failed []string
	for _, src := range sources {
		doc, err := x.ExtractFile(src.Path, src.DocID)
		if err != nil {
			slog.Warn("skipping unreadable page", "path", src.Path, "error", err)
			failed = append(failed, src.Path)
			continue
		}
		docs = append(docs, doc)
	}
	producer := newProducer(cfg.Kafka)
	defer producer.Close()
	n, err := publisher.New(producer).Publish(cmd.Context(), docs)
	return n, failed, err
}
