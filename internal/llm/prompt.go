// ABOUTME: RAG prompt assembly from retrieved evidence and a question
// ABOUTME: Evidence blocks are numbered in relevance order and labelled with their source
package llm

import (
	"fmt"
	"strings"

	"github.com/harper/ragcore/internal/models"
)

// InsufficientEvidenceAnswer is the sentence the default template asks the
// model to use when the evidence does not answer the question
const InsufficientEvidenceAnswer = "The provided documents do not contain enough information to answer this question."

// DefaultPromptTemplate restricts the model to the supplied evidence
const DefaultPromptTemplate = `You are a careful assistant. Answer the user's question using only the evidence below.

Evidence:
{context}

Question:
{question}

Instructions:
1. Base the answer only on the evidence above and cite evidence numbers like [1].
2. If the evidence is insufficient, say exactly: "` + InsufficientEvidenceAnswer + `"
3. When the answer involves steps, give concrete commands or actions.

Answer:`

// BuildPrompt substitutes numbered evidence blocks and the question into
// template. An empty template selects DefaultPromptTemplate.
func BuildPrompt(template, question string, chunks []models.Chunk) string {
	if template == "" {
		template = DefaultPromptTemplate
	}

	var b strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if name := sourceName(ch); name != "" {
			fmt.Fprintf(&b, "[%d] (source: %s)\n", i+1, name)
		} else {
			fmt.Fprintf(&b, "[%d]\n", i+1)
		}
		b.WriteString(strings.TrimSpace(ch.Content))
	}

	// Single pass: placeholders inside the evidence or question stay literal
	return strings.NewReplacer("{context}", b.String(), "{question}", question).Replace(template)
}

func sourceName(ch models.Chunk) string {
	if name := ch.MetaString(models.MetaFileName); name != "" {
		return name
	}
	return ch.MetaString(models.MetaSource)
}
