// ABOUTME: CLI command to add documents to the knowledge base
// ABOUTME: Accepts files, directories, inline text or stdin
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/loader"
)

var (
	ingestText   string
	ingestSource string
	ingestTitle  string
	ingestRetry  bool
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Add documents to the knowledge base",
		Long: `Add documents to the knowledge base.

Files (.txt, .md, .pdf) are loaded, chunked, embedded and indexed.
Directories are walked for supported files. Re-ingesting a file
replaces the chunks it produced last time.

Examples:
  ragcore ingest handbook.pdf notes.md
  ragcore ingest ./docs
  ragcore ingest --text "Support hours are 9 to 5" --source support
  cat faq.txt | ragcore ingest --source faq
  ragcore ingest --pending`,
		RunE: runIngest,
	}

	cmd.Flags().StringVar(&ingestText, "text", "", "Ingest inline text instead of files")
	cmd.Flags().StringVar(&ingestSource, "source", "", "Source name for inline or stdin text")
	cmd.Flags().StringVar(&ingestTitle, "title", "", "Title stored with inline or stdin text")
	cmd.Flags().BoolVar(&ingestRetry, "pending", false, "Retry embedding chunks stored without a vector")

	return cmd
}

// expandPaths replaces directories with the supported files they contain
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := loader.Walk(arg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 && verbose {
			fmt.Fprintf(os.Stderr, "No supported files (%s) in %s\n", strings.Join(loader.Extensions(), ", "), arg)
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestRetry {
		if len(args) > 0 || ingestText != "" {
			return errors.New("--pending takes no documents")
		}
		return runEmbedPending(cmd)
	}
	if ingestText != "" && len(args) > 0 {
		return errors.New("use either --text or file paths, not both")
	}

	var (
		paths []string
		text  string
	)
	if len(args) > 0 {
		var err error
		if paths, err = expandPaths(args); err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no supported files found")
		}
	} else {
		text = ingestText
		if text == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("no text provided")
		}
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	var reports []engine.IngestReport
	var ingestErr error
	if len(paths) > 0 {
		reports, ingestErr = a.Engine.IngestFiles(cmd.Context(), paths)
	} else {
		meta := map[string]any{}
		if ingestSource != "" {
			meta["source"] = ingestSource
		}
		if ingestTitle != "" {
			meta["title"] = ingestTitle
		}
		var report engine.IngestReport
		report, ingestErr = a.Engine.IngestText(cmd.Context(), text, meta)
		if ingestErr == nil {
			reports = append(reports, report)
		}
	}

	// Persist whatever succeeded even when some files failed
	if len(reports) > 0 {
		if err := a.Persist(); err != nil {
			return fmt.Errorf("saving knowledge base: %w", err)
		}
	}

	if jsonOutput() {
		if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
		return ingestErr
	}

	if !quiet {
		out := cmd.OutOrStdout()
		for _, r := range reports {
			if r.Chunks() == 0 {
				continue
			}
			line := fmt.Sprintf("%s Ingested %s: %d chunks", okMark("✓"), r.Source, r.Chunks())
			if r.Replaced > 0 {
				line += dim(fmt.Sprintf(" (replaced %d)", r.Replaced))
			}
			fmt.Fprintln(out, line)
			if r.Unembedded > 0 {
				fmt.Fprintf(out, "  %s %d chunks could not be embedded; run 'ragcore ingest --pending' to retry\n", warnMark("!"), r.Unembedded)
			}
		}
	}
	return ingestErr
}

func runEmbedPending(cmd *cobra.Command) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)

	report, err := a.Engine.EmbedPending(cmd.Context())
	if err != nil {
		return err
	}
	if report.Embedded > 0 {
		if err := a.Persist(); err != nil {
			return fmt.Errorf("saving knowledge base: %w", err)
		}
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), report)
	}
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Embedded %d pending chunks", okMark("✓"), report.Embedded)
		if report.Unembedded > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %s still pending", warnMark(report.Unembedded))
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
