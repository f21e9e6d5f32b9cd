package core

// Match is a single retrieval hit. ID is the corpus key, a documentation
// path slug such as "router/introduction".
type Match struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarityScore"`
}

// ParsedDocument is fetched document content split at its front matter.
type ParsedDocument struct {
	Metadata map[string]any `json:"metadata"`
	Body     string         `json:"body"`
}

// AnswerResult is the terminal output of a pipeline run. Docs keeps the
// retriever's ranking order.
type AnswerResult struct {
	Message string  `json:"message"`
	Docs    []Match `json:"docs"`
}

// ModelConfig names the models used for one pipeline.
type ModelConfig struct {
	Embedding  string `json:"embedding" yaml:"embedding"`
	Completion string `json:"completion" yaml:"completion"`
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Embedding:  "text-embedding-3-small",
		Completion: "gpt-4o",
	}
}

func (m ModelConfig) WithEmbedding(name string) ModelConfig {
	m.Embedding = name
	return m
}

func (m ModelConfig) WithCompletion(name string) ModelConfig {
	m.Completion = name
	return m
}
