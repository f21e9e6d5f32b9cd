// Package docsrag answers documentation questions with retrieval-augmented
// generation.
//
// The binaries assemble the pipeline with fx:
//
//	cfg, _ := config.Load("docsrag.yaml")
//	fx.New(fx.Supply(cfg), docsrag.Module, docsrag.ServerModule).Run()
//
// Library users can wire the pieces by hand:
//
//	client := llm.NewUnifiedClient(llm.UnifiedConfig{OpenAIKey: os.Getenv("OPENAI_API_KEY")})
//	eng := engine.NewEngine(engine.DefaultConfig(), engine.EngineConfig{
//	    Embedder:  client,
//	    Retriever: vector.NewSupabaseStore(url, key, 0, 2),
//	    Fetcher:   docs.NewFetcher(docs.NewHTTPSource("", 0, 2)),
//	    Completer: client,
//	})
//	result, err := eng.Run(ctx, "How do I use Expo Router?")
package docsrag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/hubenschmidt/go-docsrag/config"
	"github.com/hubenschmidt/go-docsrag/docs"
	"github.com/hubenschmidt/go-docsrag/engine"
	"github.com/hubenschmidt/go-docsrag/llm"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/monitor"
	"github.com/hubenschmidt/go-docsrag/server"
	"github.com/hubenschmidt/go-docsrag/tracing"
	"github.com/hubenschmidt/go-docsrag/vector"
)

const connectTimeout = 30 * time.Second

// Module provides everything shared by the server and the indexer. It
// expects a *config.Config in the graph.
var Module = fx.Module("docsrag",
	fx.Provide(
		NewLogger,
		NewMetrics,
		NewTracer,
		NewLLMClient,
		NewStore,
		NewSource,
		docs.NewFetcher,
	),
)

// ServerModule adds the engine and the HTTP listener.
var ServerModule = fx.Module("docsrag-server",
	fx.Provide(
		NewEngine,
		NewServer,
		NewHTTPServer,
	),
	fx.Invoke(func(*http.Server) {}),
)

func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Sync on stderr reports EINVAL on some platforms.
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func NewMetrics(cfg *config.Config) *monitor.Metrics {
	return monitor.NewMetrics(monitor.Config{
		Namespace:               cfg.Metrics.Namespace,
		ServiceName:             cfg.Log.ServiceName,
		EnableDefaultCollectors: cfg.Metrics.EnableDefaultCollectors,
	})
}

func NewTracer(lc fx.Lifecycle, cfg *config.Config) (*tracing.Tracer, error) {
	tr, err := tracing.New(context.Background(), tracing.Config{
		ServiceName:  cfg.Log.ServiceName,
		Environment:  cfg.Tracing.Environment,
		EnableExport: cfg.Tracing.EnableExport,
		Endpoint:     cfg.Tracing.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tr.Shutdown})
	return tr, nil
}

func NewLLMClient(cfg *config.Config) *llm.UnifiedClient {
	return llm.NewUnifiedClient(llm.UnifiedConfig{
		OpenAIKey:     cfg.LLM.OpenAIKey,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		AnthropicKey:  cfg.LLM.AnthropicKey,
		OllamaURL:     cfg.LLM.OllamaURL,
		Timeout:       cfg.LLM.Timeout,
		MaxRetries:    cfg.LLM.MaxRetries,
	})
}

// NewStore opens the configured vector store and closes it on shutdown.
func NewStore(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (vector.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := openStore(ctx, cfg.Store, cfg.LLM.Timeout)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	log.Info("vector store ready", nil, map[string]any{"type": cfg.Store.Type})
	if cfg.Store.Type == config.StoreMemory {
		log.Warn("memory store starts empty and is not shared with docsrag-index; every query retrieves zero documents", nil,
			map[string]any{"type": cfg.Store.Type})
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, timeout time.Duration) (vector.Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return vector.NewMemoryStore(), nil
	case config.StoreSQLite:
		return vector.NewSQLiteStore(cfg.SQLitePath)
	case config.StorePgVector:
		return vector.NewPgVectorStore(ctx, cfg.DatabaseURL, cfg.Dimension)
	case config.StoreSupabase:
		return vector.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, timeout, cfg.MaxRetries), nil
	case config.StoreQdrant:
		return vector.NewQdrantStore(ctx, vector.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			Dimension:  cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

func NewSource(cfg *config.Config) (docs.Source, error) {
	switch cfg.Source.Type {
	case config.SourceHTTP:
		return docs.NewHTTPSource(cfg.Source.URLTemplate, cfg.Source.Timeout, cfg.Source.MaxRetries), nil
	case config.SourceMinIO:
		m := cfg.Source.MinIO
		return docs.NewObjectSource(docs.ObjectConfig{
			Endpoint:        m.Endpoint,
			AccessKeyID:     m.AccessKeyID,
			SecretAccessKey: m.SecretAccessKey,
			UseSSL:          m.UseSSL,
			Region:          m.Region,
			Bucket:          m.Bucket,
			Prefix:          m.Prefix,
			Extension:       m.Extension,
		})
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func NewEngine(
	cfg *config.Config,
	client *llm.UnifiedClient,
	store vector.Store,
	fetcher *docs.Fetcher,
	metrics *monitor.Metrics,
	tracer *tracing.Tracer,
	log *logger.Logger,
) *engine.Engine {
	return engine.NewEngine(cfg.EngineConfig(), engine.EngineConfig{
		Embedder:  client,
		Retriever: store,
		Fetcher:   fetcher,
		Completer: client,
		Collector: metrics,
		Tracer:    tracer,
		Logger:    log,
	})
}

func NewServer(cfg *config.Config, eng *engine.Engine, metrics *monitor.Metrics, log *logger.Logger) *server.Server {
	return server.New(server.Config{
		Engine:         eng,
		Collector:      metrics,
		MetricsHandler: metrics.Handler(),
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})
}

// NewHTTPServer listens on start and drains in-flight requests on stop.
func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, srv *server.Server, log *logger.Logger) *http.Server {
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	// Leave room to write the 504 body after the pipeline deadline.
	if cfg.Pipeline.Timeout > 0 {
		httpServer.WriteTimeout = cfg.Pipeline.Timeout + 5*time.Second
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", httpServer.Addr, err)
			}
			log.Info("docsrag server listening", nil, map[string]any{"addr": ln.Addr().String()})
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", err)
				}
			}()
			return nil
		},
		OnStop: httpServer.Shutdown,
	})
	return httpServer
}
