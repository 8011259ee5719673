package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusPath := flag.String("corpus", "scifact/corpus.jsonl", "corpus JSONL file")
	prefix := flag.String("prefix", "", "artifact prefix (overrides storage.prefix)")
	fields := flag.String("fields", "", "comma-separated fields to index (overrides index.fields)")
	smooth := flag.Bool("smooth-idf", false, "use ln((N+1)/(df+1))+1 instead of ln(N/df)")
	workers := flag.Int("workers", 0, "build goroutines (overrides index.buildWorkers)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *prefix != "" {
		cfg.Storage.Prefix = *prefix
	}
	if *fields != "" {
		cfg.Index.Fields = strings.Split(*fields, ",")
	}
	if *smooth {
		cfg.Index.SmoothIDF = true
	}
	if *workers > 0 {
		cfg.Index.BuildWorkers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, *corpusPath); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, corpusPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := corpus.LoadRecords(corpusPath, cfg.Index.DocIDField)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "path", corpusPath, "records", len(records))
	docs := corpus.ToDocuments(records, tokenizer.Terms)

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished)
		defer producer.Close()
		publisher = producer
	}

	engine := indexer.NewEngine(indexer.Config{
		Store:   st,
		Backend: cfg.Storage.Backend,
		Options: index.Options{
			Fields:    cfg.Index.Fields,
			SmoothIDF: cfg.Index.SmoothIDF,
		},
		Workers:   cfg.Index.BuildWorkers,
		Publisher: publisher,
		Metrics:   metrics.New(),
	})
	if _, err := engine.Run(ctx, cfg.Storage.Prefix, docs); err != nil {
		return err
	}
	slog.Info("indexer finished", "prefix", cfg.Storage.Prefix)
	return nil
}
