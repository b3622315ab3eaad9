// ABOUTME: CLI command to show knowledge base statistics
// ABOUTME: Reports vector and document counts, storage and retrieval settings
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/config"
)

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Long: `Show knowledge base statistics.

Lists the number of vectors and documents, chunks waiting for an
embedding, the storage backend and the active retrieval settings.`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	stats, err := a.Engine.KnowledgeBaseStats()
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, heading("Knowledge base"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Vectors:\t%d\n", stats.Index.VectorCount)
	fmt.Fprintf(w, "  Documents:\t%d\n", stats.Index.DocumentCount)
	if stats.Index.UnembeddedCount > 0 {
		fmt.Fprintf(w, "  Unembedded:\t%s\n", warnMark(stats.Index.UnembeddedCount))
	}
	fmt.Fprintf(w, "  Dimension:\t%d (%s)\n", stats.Index.Dimension, stats.Index.Metric)
	fmt.Fprintf(w, "  Storage:\t%s\n", stats.Index.StorageType)
	switch a.Config.Backend {
	case config.BackendSQLite:
		fmt.Fprintf(w, "  Database:\t%s\n", a.Config.DBPath)
	default:
		fmt.Fprintf(w, "  File:\t%s\n", a.Config.KnowledgeBase)
	}
	fmt.Fprintf(w, "  Memory:\t%.2f MB\n", stats.Index.EstimatedMemoryMB)
	if stats.Index.VectorCount > 0 {
		fmt.Fprintf(w, "  Last added:\t%s\n", formatTime(stats.Index.NewestEntry))
	}
	_ = w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("Retrieval"))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Top K:\t%d\n", stats.Config.TopK)
	fmt.Fprintf(w, "  Threshold:\t%.2f\n", stats.Config.SimilarityThreshold)
	fmt.Fprintf(w, "  Reranking:\t%v\n", stats.Config.UseReranking)
	fmt.Fprintf(w, "  Chunking:\t%s, %d tokens, %d overlap\n", stats.Config.Chunking.Strategy, stats.Config.Chunking.ChunkSize, stats.Config.Chunking.OverlapSize)
	generator := "none (extractive answers)"
	if stats.HasGenerator {
		generator = stats.GeneratorModel
	}
	fmt.Fprintf(w, "  Generator:\t%s\n", generator)
	_ = w.Flush()
	return nil
}
