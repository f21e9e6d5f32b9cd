package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/llm"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/tracing"
)

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls atomic.Int32
	input string
	model string
}

func (f *fakeEmbedder) Embed(_ context.Context, model, input string) (*llm.EmbeddingResponse, error) {
	f.calls.Add(1)
	f.model, f.input = model, input
	if f.err != nil {
		return nil, f.err
	}
	return &llm.EmbeddingResponse{Embedding: f.vec}, nil
}

type fakeRetriever struct {
	matches   []core.Match
	err       error
	calls     atomic.Int32
	threshold float64
	limit     int
}

func (f *fakeRetriever) Match(_ context.Context, _ []float64, threshold float64, limit int) ([]core.Match, error) {
	f.calls.Add(1)
	f.threshold, f.limit = threshold, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
	// wait blocks a fetch until the channel is closed.
	wait map[string]chan struct{}
	// done is closed when the fetch for the key finishes.
	done map[string]chan struct{}
}

func (f *fakeFetcher) FetchAndParse(ctx context.Context, id string) (core.ParsedDocument, error) {
	if ch, ok := f.done[id]; ok {
		defer close(ch)
	}
	if ch, ok := f.wait[id]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return core.ParsedDocument{}, ctx.Err()
		}
	}
	if err := f.errs[id]; err != nil {
		return core.ParsedDocument{}, err
	}
	return core.ParsedDocument{Metadata: map[string]any{}, Body: f.bodies[id]}, nil
}

type fakeCompleter struct {
	content string
	err     error
	block   bool
	calls   atomic.Int32
	mu      sync.Mutex
	prompt  string
	model   string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, p string) (*llm.ChatResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompt, f.model = p, model
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content}, nil
}

type fixture struct {
	embedder  *fakeEmbedder
	retriever *fakeRetriever
	fetcher   *fakeFetcher
	completer *fakeCompleter
}

func expoFixture() *fixture {
	return &fixture{
		embedder: &fakeEmbedder{vec: []float64{0.1, 0.2, 0.3}},
		retriever: &fakeRetriever{matches: []core.Match{
			{ID: "router/introduction", Similarity: 0.81},
			{ID: "router/installation", Similarity: 0.47},
		}},
		fetcher: &fakeFetcher{bodies: map[string]string{
			"router/introduction": "B1",
			"router/installation": "B2",
		}},
		completer: &fakeCompleter{content: "T"},
	}
}

func (f *fixture) engine(cfg Config, opts ...func(*EngineConfig)) *Engine {
	deps := EngineConfig{
		Embedder:  f.embedder,
		Retriever: f.retriever,
		Fetcher:   f.fetcher,
		Completer: f.completer,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewEngine(cfg, deps)
}

func TestRunExpoRouter(t *testing.T) {
	f := expoFixture()
	query := "How do I use Expo Router?"

	result, err := f.engine(DefaultConfig()).Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, &core.AnswerResult{
		Message: "T",
		Docs: []core.Match{
			{ID: "router/introduction", Similarity: 0.81},
			{ID: "router/installation", Similarity: 0.47},
		},
	}, result)

	assert.Equal(t, query, f.embedder.input)
	assert.Equal(t, "text-embedding-3-small", f.embedder.model)
	assert.Equal(t, 0.3, f.retriever.threshold)
	assert.Equal(t, 2, f.retriever.limit)
	assert.Equal(t, "gpt-4o", f.completer.model)
	assert.Contains(t, f.completer.prompt, "USER QUERY: "+query)
	assert.Contains(t, f.completer.prompt, "CONTEXT: B1B2\n")
}

func TestRunKeepsRankOrderWhenFetchesFinishOutOfOrder(t *testing.T) {
	f := expoFixture()
	secondDone := make(chan struct{})
	f.fetcher.wait = map[string]chan struct{}{"router/introduction": secondDone}
	f.fetcher.done = map[string]chan struct{}{"router/installation": secondDone}

	result, err := f.engine(DefaultConfig()).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Contains(t, f.completer.prompt, "CONTEXT: B1B2\n")
	assert.Equal(t, "router/introduction", result.Docs[0].ID)
}

func TestRunSeparator(t *testing.T) {
	f := expoFixture()
	cfg := DefaultConfig()
	cfg.Separator = "\n\n"

	_, err := f.engine(cfg).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Contains(t, f.completer.prompt, "CONTEXT: B1\n\nB2\n")
}

func TestRunZeroMatches(t *testing.T) {
	f := expoFixture()
	f.retriever.matches = []core.Match{}

	result, err := f.engine(DefaultConfig()).Run(context.Background(), "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "T", result.Message)
	assert.NotNil(t, result.Docs)
	assert.Empty(t, result.Docs)
	assert.Contains(t, f.completer.prompt, "CONTEXT: \n")
}

func TestRunEmptyQuery(t *testing.T) {
	f := expoFixture()

	result, err := f.engine(DefaultConfig()).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "T", result.Message)
	assert.Equal(t, int32(1), f.embedder.calls.Load())
	assert.Equal(t, "", f.embedder.input)
}

func TestRunStageFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*fixture)
		stage core.Stage
		kind  string
	}{
		{"embed", func(f *fixture) { f.embedder.err = boom }, core.StageEmbed, core.KindEmbedding},
		{"retrieve", func(f *fixture) { f.retriever.err = boom }, core.StageRetrieve, core.KindRetrieval},
		{"fetch", func(f *fixture) { f.fetcher.errs = map[string]error{"router/installation": boom} }, core.StageFetch, core.KindDocumentFetch},
		{"complete", func(f *fixture) { f.completer.err = core.ErrEmptyCompletion }, core.StageComplete, core.KindCompletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := expoFixture()
			tt.setup(f)

			result, err := f.engine(DefaultConfig()).Run(context.Background(), "q")
			assert.Nil(t, result)
			var pe *core.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.stage, pe.Stage)
			assert.Equal(t, tt.kind, core.KindOf(err))
		})
	}
}

func TestRunStopsAfterFailedStage(t *testing.T) {
	f := expoFixture()
	f.embedder.err = errors.New("down")

	_, err := f.engine(DefaultConfig()).Run(context.Background(), "q")
	require.Error(t, err)
	assert.Zero(t, f.retriever.calls.Load())
	assert.Zero(t, f.completer.calls.Load())
}

func TestRunStrictFetchFailureNamesDocument(t *testing.T) {
	f := expoFixture()
	f.fetcher.errs = map[string]error{"router/installation": core.ErrNotFound}

	_, err := f.engine(DefaultConfig()).Run(context.Background(), "q")
	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "router/installation", pe.DocID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, f.completer.calls.Load())
}

func TestRunDegradedFetchDropsDocument(t *testing.T) {
	f := expoFixture()
	f.fetcher.errs = map[string]error{"router/introduction": core.ErrNotFound}
	cfg := DefaultConfig()
	cfg.FetchPolicy = FetchDegraded

	result, err := f.engine(cfg).Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.Match{{ID: "router/installation", Similarity: 0.47}}, result.Docs)
	assert.Contains(t, f.completer.prompt, "CONTEXT: B2\n")
}

func TestRunTimeout(t *testing.T) {
	f := expoFixture()
	f.completer.block = true
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond

	_, err := f.engine(cfg).Run(context.Background(), "q")
	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.StageComplete, pe.Stage)
	assert.True(t, core.IsTimeout(err))
}

func TestRunLogsFailureWithQueryAndStage(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{Zap: zap.New(obsCore)}

	f := expoFixture()
	f.retriever.err = errors.New("rpc down")
	ctx := logger.ContextWithRequestID(context.Background(), "req-7")

	_, err := f.engine(DefaultConfig(), func(d *EngineConfig) { d.Logger = log }).Run(ctx, "how?")
	require.Error(t, err)

	failures := logs.FilterMessage("pipeline stage failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "how?", fields["query"])
	assert.Equal(t, "retrieve", fields["stage"])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "rpc down", fields["error"])
}

func TestRunCreatesStageSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tr, err := tracing.New(context.Background(), tracing.Config{ServiceName: "test"}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)

	f := expoFixture()
	_, err = f.engine(DefaultConfig(), func(d *EngineConfig) { d.Tracer = tr }).Run(context.Background(), "q")
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"embed", "retrieve", "fetch_docs", "compose_prompt", "complete", "pipeline"}, names)
}

func TestRunAnnotatesRetrieveSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tr, err := tracing.New(context.Background(), tracing.Config{ServiceName: "test"}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)

	f := expoFixture()
	_, err = f.engine(DefaultConfig(), func(d *EngineConfig) { d.Tracer = tr }).Run(context.Background(), "q")
	require.NoError(t, err)

	attrs := map[string]attribute.Value{}
	for _, s := range recorder.Ended() {
		if s.Name() != "retrieve" {
			continue
		}
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value
		}
	}
	require.Contains(t, attrs, "matches")
	assert.Equal(t, 0.3, attrs["threshold"].AsFloat64())
	assert.Equal(t, int64(2), attrs["limit"].AsInt64())
	assert.Equal(t, int64(2), attrs["matches"].AsInt64())
}

func TestStageFailureBecomesPipelineError(t *testing.T) {
	e := expoFixture().engine(DefaultConfig())
	cause := errors.New("template broke")

	err := e.stage(context.Background(), core.StageCompose, logger.NewNop(), func(context.Context) error {
		return cause
	})

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.StageCompose, pe.Stage)
	assert.ErrorIs(t, err, cause)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Limit = 0
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Threshold = 1.5
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.FetchPolicy = "lenient"
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidConfig)
}
