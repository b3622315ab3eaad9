// ABOUTME: CLI command to verify configuration and endpoint connectivity
// ABOUTME: Embeds a probe text and lists models on the chat endpoint
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/app"
)

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check configuration and API connectivity",
		Long: `Check configuration and API connectivity.

Validates the configuration, embeds a probe sentence and asks the
chat endpoint whether the configured model is available.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Configuration valid (backend %s, embedder %s)\n", okMark("✓"), cfg.Backend, cfg.Embedder)

	logger := newLogger()
	embedder, err := app.NewEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := embedder.Embed(cmd.Context(), "connectivity check"); err != nil {
		return fmt.Errorf("embedding endpoint: %w", err)
	}
	fmt.Fprintf(out, "%s Embeddings working (dimension %d)\n", okMark("✓"), embedder.Dimension())

	gen, err := app.NewGenerator(cfg, logger)
	if err != nil {
		return err
	}
	if gen == nil {
		fmt.Fprintf(out, "%s No API key: answers will be extractive\n", warnMark("!"))
		return nil
	}
	found, err := gen.CheckConnection(cmd.Context())
	if err != nil {
		return err
	}
	if found {
		fmt.Fprintf(out, "%s Chat model %s available\n", okMark("✓"), gen.Model())
	} else {
		fmt.Fprintf(out, "%s Endpoint reachable but model %s is not listed\n", warnMark("!"), gen.Model())
	}
	return nil
}
