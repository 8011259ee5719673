// Command retrieve ranks a query set against a saved index and writes a
// TREC run file, optionally re-ranking the candidates with a model server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/rerank"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/runfile"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
)

type options struct {
	queries  string
	corpus   string
	output   string
	allQs    bool
	k        int
	runTag   string
	rerankEP string
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	prefix := flag.String("prefix", "", "artifact prefix (overrides storage.prefix)")
	var opts options
	flag.StringVar(&opts.queries, "queries", "scifact/queries.jsonl", "queries JSONL file")
	flag.StringVar(&opts.corpus, "corpus", "scifact/corpus.jsonl", "corpus JSONL file, read only when re-ranking")
	flag.StringVar(&opts.output, "out", "Results", "run file path, - for stdout")
	flag.BoolVar(&opts.allQs, "all", false, "rank every query instead of only odd-numbered ones")
	flag.IntVar(&opts.k, "k", 0, "results per query (default search.defaultLimit)")
	flag.StringVar(&opts.runTag, "tag", "", "run tag (default search.runTag)")
	flag.StringVar(&opts.rerankEP, "rerank", "", "model server URL; enables re-ranking (overrides rerank.endpoint)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *prefix != "" {
		cfg.Storage.Prefix = *prefix
	}
	if opts.k <= 0 {
		opts.k = cfg.Search.DefaultLimit
	}
	if opts.runTag == "" {
		opts.runTag = cfg.Search.RunTag
	}
	if opts.rerankEP != "" {
		cfg.Rerank.Endpoint = opts.rerankEP
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, opts); err != nil {
		slog.Error("retrieval failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := executor.New(st, cfg.Storage.Prefix, tokenizer.Terms, nil)
	if err := exec.Reload(ctx); err != nil {
		return err
	}

	queries, err := corpus.LoadQueries(opts.queries)
	if err != nil {
		return err
	}
	if !opts.allQs {
		queries = corpus.FilterOddIDs(queries)
	}
	corpus.SortQueries(queries)

	var scorer rerank.Scorer
	var texts map[string]string
	if cfg.Rerank.Endpoint != "" {
		records, err := corpus.LoadRecords(opts.corpus, cfg.Index.DocIDField)
		if err != nil {
			return err
		}
		texts = corpus.Texts(records)
		scorer = rerank.NewHTTPScorer(cfg.Rerank)
		slog.Info("re-ranking enabled", "endpoint", cfg.Rerank.Endpoint, "docs", len(texts))
	}

	var w *runfile.Writer
	if opts.output == "-" {
		w, err = runfile.NewWriter(os.Stdout, opts.runTag)
	} else {
		w, err = runfile.Create(opts.output, opts.runTag)
	}
	if err != nil {
		return err
	}
	defer w.Close()

	for _, q := range queries {
		res, err := exec.Execute(ctx, executor.Query{ID: q.ID, Text: q.Text}, opts.k)
		if err != nil {
			return fmt.Errorf("query %s: %w", q.ID, err)
		}
		ranking := res.Results
		if scorer != nil {
			ranking, err = rerank.Rerank(ctx, scorer, q.Text, ranking, texts)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
		}
		if err := w.WriteQuery(q.ID, ranking); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	slog.Info("run file written",
		"path", opts.output,
		"queries", len(queries),
		"lines", w.Lines(),
		"tag", opts.runTag,
	)
	return nil
}
