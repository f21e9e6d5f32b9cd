package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/fx"

	"github.com/hubenschmidt/go-docsrag"
	"github.com/hubenschmidt/go-docsrag/config"
	"github.com/hubenschmidt/go-docsrag/docs"
	"github.com/hubenschmidt/go-docsrag/indexer"
	"github.com/hubenschmidt/go-docsrag/llm"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/vector"
)

func main() {
	cfgPath := flag.String("config", "docsrag.yaml", "Path to YAML config (optional)")
	slugFile := flag.String("slugs", "", "File with one document slug per line")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: docsrag-index [--config=docsrag.yaml] [--slugs=file] [slug ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	slugs, err := collectSlugs(*slugFile, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if len(slugs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateForIndexing(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	var (
		fetcher *docs.Fetcher
		client  *llm.UnifiedClient
		store   vector.Store
		zlog    *logger.Logger
	)
	app := fx.New(
		fx.Supply(cfg),
		fx.NopLogger,
		docsrag.Module,
		fx.Populate(&fetcher, &client, &store, &zlog),
	)
	if err := app.Err(); err != nil {
		log.Fatalf("start: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}

	ix := indexer.New(fetcher, client, store, cfg.Pipeline.EmbeddingModel, zlog)
	n, runErr := ix.Index(ctx, slugs)

	if err := app.Stop(ctx); err != nil {
		log.Printf("stop: %v", err)
	}
	if runErr != nil {
		log.Fatalf("indexed %d of %d documents: %v", n, len(slugs), runErr)
	}
	fmt.Printf("indexed %d documents\n", n)
}

func collectSlugs(path string, args []string) ([]string, error) {
	slugs := append([]string(nil), args...)
	if path == "" {
		return slugs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open slug file: %w", err)
	}
	defer f.Close()

	fromFile, err := indexer.ReadSlugs(f)
	if err != nil {
		return nil, err
	}
	return append(slugs, fromFile...), nil
}
