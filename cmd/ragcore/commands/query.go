// ABOUTME: CLI command to ask a question of the knowledge base
// ABOUTME: Prints the answer with confidence and sources, optionally streaming tokens
package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/models"
)

var (
	queryTopK        int
	queryStream      bool
	queryMaxTokens   int
	queryTemperature float64
	querySystem      string
)

// NewQueryCmd creates the query command
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the knowledge base",
		Long: `Answer a question using only the retrieved passages.

Without an API key the answer is extractive: the most relevant
passages are quoted instead of generated.

Examples:
  ragcore query "What is the refund policy?"
  ragcore query --stream --top-k 8 "How do I reset my password?"
  ragcore query --format json "Who approves expenses?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().IntVar(&queryTopK, "top-k", 0, "Passages to retrieve (default: configured top_k)")
	cmd.Flags().BoolVar(&queryStream, "stream", false, "Print the answer as it is generated")
	cmd.Flags().IntVar(&queryMaxTokens, "max-tokens", 0, "Maximum answer tokens (default: configured max_tokens)")
	cmd.Flags().Float64Var(&queryTemperature, "temperature", 0, "Sampling temperature (default: configured temperature)")
	cmd.Flags().StringVar(&querySystem, "system", "", "System prompt for this question")

	return cmd
}

type queryOutput struct {
	Answer           string         `json:"answer"`
	Confidence       float64        `json:"confidence"`
	Sources          []sourceOutput `json:"sources"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

type sourceOutput struct {
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryTopK < 0 {
		return validatePositiveInt(queryTopK, "top-k")
	}
	question := strings.Join(args, " ")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	out := cmd.OutOrStdout()
	opts := engine.QueryOptions{
		TopK:         queryTopK,
		MaxTokens:    queryMaxTokens,
		Temperature:  queryTemperature,
		SystemPrompt: querySystem,
	}
	streamed := false
	if queryStream && !jsonOutput() {
		opts.OnToken = func(tok string) {
			streamed = true
			fmt.Fprint(out, tok)
		}
	}

	result := a.Engine.Query(cmd.Context(), question, opts)
	if !result.Success {
		if result.Cancelled {
			return errors.New(result.ErrorMessage)
		}
		if result.Err != nil {
			return result.Err
		}
		return errors.New(result.ErrorMessage)
	}

	if jsonOutput() {
		o := queryOutput{
			Answer:           result.Answer,
			Confidence:       result.Confidence,
			Sources:          make([]sourceOutput, len(result.Sources)),
			ProcessingTimeMS: result.ProcessingTime.Milliseconds(),
			Metadata:         result.Metadata,
		}
		for i, ch := range result.Sources {
			src := ch.MetaString(models.MetaFileName)
			if src == "" {
				src = ch.MetaString(models.MetaSource)
			}
			o.Sources[i] = sourceOutput{ChunkID: ch.ID, Source: src, Content: ch.Content}
		}
		return printJSON(out, o)
	}

	if streamed {
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, result.Answer)
	}
	if quiet {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %.2f %s\n", heading("Confidence:"), result.Confidence,
		dim(fmt.Sprintf("(%d sources, %s)", len(result.Sources), result.ProcessingTime.Round(time.Millisecond))))
	if sources := engine.FormatSources(result.Sources); sources != "" {
		fmt.Fprintln(out, dim(sources))
	}
	return nil
}
