package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyCompletion = errors.New("completion returned no choices")
	ErrEmptyEmbedding  = errors.New("embedding response was empty")
	ErrNoProvider      = errors.New("no provider configured for model")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Stage identifies one step of the query-to-answer pipeline.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageRetrieve Stage = "retrieve"
	StageFetch    Stage = "fetch_docs"
	StageCompose  Stage = "compose_prompt"
	StageComplete Stage = "complete"
)

// Kinds reported to callers in the errorKind field.
const (
	KindEmbedding      = "EmbeddingFailure"
	KindRetrieval      = "RetrievalFailure"
	KindDocumentFetch  = "DocumentFetchFailure"
	KindCompletion     = "CompletionFailure"
	KindInvalidRequest = "InvalidRequest"
	KindInternal       = "InternalFailure"
)

var stageKinds = map[Stage]string{
	StageEmbed:    KindEmbedding,
	StageRetrieve: KindRetrieval,
	StageFetch:    KindDocumentFetch,
	StageComplete: KindCompletion,
}

// Kind returns the failure kind reported for a stage.
func (s Stage) Kind() string {
	if k, ok := stageKinds[s]; ok {
		return k
	}
	return KindInternal
}

// PipelineError is the single failure surfaced by a pipeline run.
type PipelineError struct {
	Stage Stage
	DocID string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("%s [doc=%s]: %v", e.Stage, e.DocID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewPipelineError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}

func WithDoc(err *PipelineError, id string) *PipelineError {
	err.DocID = id
	return err
}

// KindOf maps an error returned by the pipeline to its reported kind.
func KindOf(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return KindInvalidRequest
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage.Kind()
	}
	return KindInternal
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
