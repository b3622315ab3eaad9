// ABOUTME: CLI command to export the knowledge base for reading or backup
// ABOUTME: Writes YAML, Markdown or a JSON snapshot
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/index"
)

var (
	exportType string
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export the knowledge base",
		Long: `Export the knowledge base to a file.

YAML and Markdown exports list documents and their chunks for reading.
A snapshot export is the JSON format that 'ragcore --kb <file>' loads.

Examples:
  ragcore export kb.yaml
  ragcore export --type markdown kb.md
  ragcore export --type snapshot backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportType, "type", "", "Export type: yaml, markdown or snapshot (default: from extension)")

	return cmd
}

// exportTypeFor picks the export type from the flag or the file extension
func exportTypeFor(path, flag string) string {
	if flag != "" {
		return flag
	}
	switch {
	case strings.HasSuffix(path, ".md"), strings.HasSuffix(path, ".markdown"):
		return "markdown"
	case strings.HasSuffix(path, ".json"):
		return "snapshot"
	default:
		return "yaml"
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	kind := exportTypeFor(path, exportType)

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	switch kind {
	case "snapshot", "json":
		data, err := a.Snapshot()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	default:
		if err := index.ExportToFile(a.Engine.Index(), path, kind); err != nil {
			return err
		}
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d vectors to %s (%s)\n", okMark("✓"), a.Engine.Index().Count(), path, kind)
	}
	return nil
}
