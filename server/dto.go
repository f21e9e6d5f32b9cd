package server

import "github.com/hubenschmidt/go-docsrag/core"

// PromptRequest is the body of POST /prompt. Query is a pointer so a
// missing field can be told apart from an empty question.
type PromptRequest struct {
	Query *string `json:"query"`
}

type PromptResponse struct {
	Message string       `json:"message"`
	Docs    []core.Match `json:"docs"`
}

type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Detail    string `json:"detail"`
}
