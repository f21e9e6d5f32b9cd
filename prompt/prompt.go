// Package prompt builds the grounding prompt sent to the completion model.
package prompt

import "strings"

const (
	Instruction      = "Answer the question posed in the user query section using the provided context"
	UserQueryLabel   = "USER QUERY: "
	ContextLabel     = "CONTEXT: "
	FinalAnswerLabel = "Final Answer: "
)

// Compose fills the fixed template with the query and the concatenated
// document bodies. Neither input is escaped or truncated.
func Compose(query, context string) string {
	var b strings.Builder
	b.Grow(len(Instruction) + len(query) + len(context) + 64)
	b.WriteString(Instruction)
	b.WriteString("\n")
	b.WriteString(UserQueryLabel)
	b.WriteString(query)
	b.WriteString("\n")
	b.WriteString(ContextLabel)
	b.WriteString(context)
	b.WriteString("\n")
	b.WriteString(FinalAnswerLabel)
	return b.String()
}

// JoinBodies concatenates bodies in rank order. An empty separator
// reproduces the historical join, where adjacent documents run together.
func JoinBodies(bodies []string, sep string) string {
	return strings.Join(bodies, sep)
}
