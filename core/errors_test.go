package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"embed", NewPipelineError(StageEmbed, errors.New("boom")), KindEmbedding},
		{"retrieve", NewPipelineError(StageRetrieve, errors.New("boom")), KindRetrieval},
		{"fetch", WithDoc(NewPipelineError(StageFetch, ErrNotFound), "router/introduction"), KindDocumentFetch},
		{"complete", NewPipelineError(StageComplete, ErrEmptyCompletion), KindCompletion},
		{"compose is internal", NewPipelineError(StageCompose, errors.New("boom")), KindInternal},
		{"wrapped", fmt.Errorf("handle: %w", NewPipelineError(StageComplete, errors.New("x"))), KindCompletion},
		{"invalid request", fmt.Errorf("decode: %w", ErrInvalidRequest), KindInvalidRequest},
		{"plain", errors.New("plain"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestPipelineErrorMessageAndUnwrap(t *testing.T) {
	err := WithDoc(NewPipelineError(StageFetch, ErrNotFound), "router/installation")

	assert.Equal(t, "fetch_docs [doc=router/installation]: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "complete: completion returned no choices", NewPipelineError(StageComplete, ErrEmptyCompletion).Error())
}

func TestIsTimeout(t *testing.T) {
	err := NewPipelineError(StageEmbed, fmt.Errorf("request failed: %w", context.DeadlineExceeded))
	assert.True(t, IsTimeout(err))
	assert.False(t, IsTimeout(NewPipelineError(StageEmbed, context.Canceled)))
}

func TestDefaultModelConfig(t *testing.T) {
	m := DefaultModelConfig()
	assert.Equal(t, "text-embedding-3-small", m.Embedding)
	assert.Equal(t, "gpt-4o", m.Completion)

	m2 := m.WithCompletion("claude-sonnet-4-5").WithEmbedding("ollama/nomic-embed-text")
	assert.Equal(t, "claude-sonnet-4-5", m2.Completion)
	assert.Equal(t, "ollama/nomic-embed-text", m2.Embedding)
	assert.Equal(t, "gpt-4o", m.Completion)
}
