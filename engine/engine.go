// Package engine runs the query-to-answer pipeline.
package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/llm"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/monitor"
	"github.com/hubenschmidt/go-docsrag/prompt"
	"github.com/hubenschmidt/go-docsrag/tracing"
	"github.com/hubenschmidt/go-docsrag/vector"
)

type Engine struct {
	cfg       Config
	embedder  llm.EmbeddingClient
	retriever vector.Retriever
	fetcher   DocumentFetcher
	completer llm.Completer
	collector monitor.Collector
	tracer    *tracing.Tracer
	logger    *logger.Logger
}

// EngineConfig holds the capabilities a run is built from. Collector,
// Tracer and Logger are optional.
type EngineConfig struct {
	Embedder  llm.EmbeddingClient
	Retriever vector.Retriever
	Fetcher   DocumentFetcher
	Completer llm.Completer
	Collector monitor.Collector
	Tracer    *tracing.Tracer
	Logger    *logger.Logger
}

func NewEngine(cfg Config, deps EngineConfig) *Engine {
	collector := deps.Collector
	if collector == nil {
		collector = monitor.NewNoOpCollector()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = tracing.NewNoop()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		embedder:  deps.Embedder,
		retriever: deps.Retriever,
		fetcher:   deps.Fetcher,
		completer: deps.Completer,
		collector: collector,
		tracer:    tracer,
		logger:    log,
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Run answers query. It returns either a result or a *core.PipelineError
// naming the failed stage, never both. Empty queries are not rejected.
func (e *Engine) Run(ctx context.Context, query string) (*core.AnswerResult, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ctx, span := e.tracer.StartSpan(ctx, "pipeline")
	defer span.End()

	log := e.logger.WithContext(ctx).With(map[string]any{"query": query})
	start := time.Now()

	result, err := e.run(ctx, query, log)
	if err != nil {
		e.tracer.RecordError(span, err)
		return nil, err
	}

	log.Info("pipeline complete", nil, map[string]any{
		"docs":        len(result.Docs),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (e *Engine) run(ctx context.Context, query string, log *logger.Logger) (*core.AnswerResult, error) {
	var embedding []float64
	err := e.stage(ctx, core.StageEmbed, log, func(ctx context.Context) error {
		e.annotate(ctx, map[string]any{"model": e.cfg.Models.Embedding})
		resp, err := e.embedder.Embed(ctx, e.cfg.Models.Embedding, query)
		if err != nil {
			return err
		}
		embedding = resp.Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	var matches []core.Match
	err = e.stage(ctx, core.StageRetrieve, log, func(ctx context.Context) error {
		m, err := e.retriever.Match(ctx, embedding, e.cfg.Threshold, e.cfg.Limit)
		if err != nil {
			return err
		}
		matches = m
		e.annotate(ctx, map[string]any{
			"threshold": e.cfg.Threshold,
			"limit":     e.cfg.Limit,
			"matches":   len(m),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.collector.ObserveRetrieved(len(matches))

	var slots []fetched
	err = e.stage(ctx, core.StageFetch, log, func(ctx context.Context) error {
		e.annotate(ctx, map[string]any{"documents": len(matches), "fetch_policy": string(e.cfg.FetchPolicy)})
		var err error
		slots, err = e.fetchAll(ctx, matches)
		return err
	})
	if err != nil {
		return nil, err
	}

	docs := make([]core.Match, 0, len(slots))
	bodies := make([]string, 0, len(slots))
	for _, s := range slots {
		if s.err != nil {
			log.Warn("document dropped", s.err, map[string]any{"doc_id": s.match.ID, "stage": string(core.StageFetch)})
			continue
		}
		docs = append(docs, s.match)
		bodies = append(bodies, s.doc.Body)
	}

	var filled string
	err = e.stage(ctx, core.StageCompose, log, func(ctx context.Context) error {
		filled = prompt.Compose(query, prompt.JoinBodies(bodies, e.cfg.Separator))
		e.annotate(ctx, map[string]any{"documents": len(bodies), "prompt_chars": len(filled)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug("prompt composed", nil, map[string]any{"prompt": filled})

	var message string
	err = e.stage(ctx, core.StageComplete, log, func(ctx context.Context) error {
		e.annotate(ctx, map[string]any{"model": e.cfg.Models.Completion})
		resp, err := e.completer.Complete(ctx, e.cfg.Models.Completion, filled)
		if err != nil {
			return err
		}
		message = resp.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &core.AnswerResult{Message: message, Docs: docs}, nil
}

// stage wraps fn with a span, a duration observation and failure logging.
// Any error it returns is a *core.PipelineError.
func (e *Engine) stage(ctx context.Context, stage core.Stage, log *logger.Logger, fn func(context.Context) error) error {
	ctx, span := e.tracer.StartSpan(ctx, string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	e.collector.ObserveStage(stage, time.Since(start))
	if err == nil {
		return nil
	}

	var pe *core.PipelineError
	if !errors.As(err, &pe) {
		pe = core.NewPipelineError(stage, err)
	}
	e.tracer.RecordError(span, pe)
	fields := map[string]any{"stage": string(stage)}
	if pe.DocID != "" {
		fields["doc_id"] = pe.DocID
	}
	log.Error("pipeline stage failed", pe.Err, fields)
	return pe
}

// annotate sets attrs on the span carried by ctx.
func (e *Engine) annotate(ctx context.Context, attrs map[string]any) {
	e.tracer.SetAttributes(trace.SpanFromContext(ctx), attrs)
}

// fetchAll fetches every match concurrently. Each goroutine writes only its
// own rank slot, so the returned order is the retrieval order regardless of
// completion order. Under FetchStrict the first failure cancels the rest.
func (e *Engine) fetchAll(ctx context.Context, matches []core.Match) ([]fetched, error) {
	slots := make([]fetched, len(matches))
	g, gctx := errgroup.WithContext(ctx)

	for i, m := range matches {
		g.Go(func() error {
			doc, err := e.fetcher.FetchAndParse(gctx, m.ID)
			slots[i] = fetched{match: m, doc: doc, err: err}
			if err != nil && e.cfg.FetchPolicy != FetchDegraded {
				return core.WithDoc(core.NewPipelineError(core.StageFetch, err), m.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}
