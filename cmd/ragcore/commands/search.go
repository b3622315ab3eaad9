// ABOUTME: CLI command to search the knowledge base
// ABOUTME: Semantic similarity search without answer generation
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/models"
)

var (
	searchLimit int
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Find the passages most similar to a query.

Results above the configured similarity threshold are listed with
their score; keyword reranking applies when enabled.

Examples:
  ragcore search "vacation policy"
  ragcore search --limit 10 "deployment checklist"
  ragcore search --format json "API keys"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	query := strings.Join(args, " ")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	results, err := a.Engine.SearchDocuments(cmd.Context(), query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching knowledge base: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), results)
	}

	if len(results) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No passages found for query: %s\n", query)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tSOURCE\tCHUNK\tPREVIEW\n")
	fmt.Fprintf(w, "-----\t------\t-----\t-------\n")
	for _, r := range results {
		source := r.Chunk.MetaString(models.MetaFileName)
		if source == "" {
			source = r.Chunk.MetaString(models.MetaSource)
		}
		if source == "" {
			source = "(inline)"
		}
		preview := strings.Join(strings.Fields(r.Chunk.Content), " ")
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n",
			r.Similarity,
			truncate(source, 24),
			truncate(r.ID, 20),
			truncate(preview, 60))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d result(s)\n", len(results))
	}
	return nil
}
