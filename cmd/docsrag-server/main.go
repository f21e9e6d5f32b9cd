package main

import (
	"flag"
	"log"

	"go.uber.org/fx"

	"github.com/hubenschmidt/go-docsrag"
	"github.com/hubenschmidt/go-docsrag/config"
)

func main() {
	cfgPath := flag.String("config", "docsrag.yaml", "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	fx.New(
		fx.Supply(cfg),
		fx.NopLogger,
		docsrag.Module,
		docsrag.ServerModule,
	).Run()
}
