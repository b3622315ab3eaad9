// ABOUTME: CLI commands to remove documents or clear the knowledge base
// ABOUTME: Removal is by document id, source, file path or chunk id
package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|source|path>",
		Short: "Remove a document from the knowledge base",
		Long: `Remove a document's chunks, or a single chunk.

The argument is matched against chunk ids first, then document ids
and sources. File paths are resolved to absolute paths when the
relative form does not match.

Examples:
  ragcore remove ./docs/handbook.pdf
  ragcore remove doc_8c1f0e6a-6b7e-4e0a-9a53-2b8f2d0c9d11`,
		Args: cobra.ExactArgs(1),
		RunE: runRemove,
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	key := args[0]
	n, err := a.Engine.RemoveDocument(key)
	if err != nil {
		// Files are ingested under their absolute path
		abs, absErr := filepath.Abs(key)
		if absErr != nil || abs == key {
			return err
		}
		if n, err = a.Engine.RemoveDocument(abs); err != nil {
			return err
		}
	}
	if err := a.Persist(); err != nil {
		return fmt.Errorf("saving knowledge base: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), map[string]any{"id": key, "removed": n})
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %d chunk(s) for %s\n", okMark("✓"), n, key)
	}
	return nil
}

// NewClearCmd creates the clear command
func NewClearCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document from the knowledge base",
		Long: `Remove every document from the knowledge base.

WARNING: This cannot be undone locally. Push a snapshot with
'ragcore sync push' first if you may want the data back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				fmt.Fprintln(cmd.OutOrStdout(), "This will remove ALL documents!")
				fmt.Fprintln(cmd.OutOrStdout(), "Run with --confirm to proceed")
				return nil
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Engine.ClearKnowledgeBase(); err != nil {
				return err
			}
			if err := a.Persist(); err != nil {
				return fmt.Errorf("saving knowledge base: %w", err)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Knowledge base cleared\n", okMark("✓"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the clear operation")

	return cmd
}
