// ABOUTME: Root command, global flags and shared setup for the ragcore CLI
// ABOUTME: Loads configuration and opens the engine for subcommands
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/app"
	"github.com/harper/ragcore/internal/config"
	"github.com/harper/ragcore/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
	kbPath       string
	backendFlag  string
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
	heading  = color.New(color.Bold, color.FgCyan).SprintFunc()
)

const banner = `
 ██████   █████   ██████   ██████  ██████  ██████  ███████
 ██   ██ ██   ██ ██       ██      ██    ██ ██   ██ ██
 ██████  ███████ ██   ███ ██      ██    ██ ██████  █████
 ██   ██ ██   ██ ██    ██ ██      ██    ██ ██   ██ ██
 ██   ██ ██   ██  ██████   ██████  ██████  ██   ██ ███████
`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragcore",
		Short: "Retrieval-augmented question answering over your documents",
		Long: banner + `
ragcore chunks documents, embeds them into a vector index and answers
questions using only the passages it retrieves.

Configuration comes from RAGCORE_* environment variables, an optional
.env file and an optional YAML file passed with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}
			if !containsString([]string{"auto", "text", "json"}, outputFormat) {
				return fmt.Errorf("--format must be auto, text or json, got %q", outputFormat)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text or json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&kbPath, "kb", "", "Knowledge base file (overrides RAGCORE_KB_PATH)")
	cmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: memory or sqlite (overrides RAGCORE_BACKEND)")

	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewQueryCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewRemoveCmd())
	cmd.AddCommand(NewClearCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewInstallSkillCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == "json"
}

func newLogger() *log.Logger {
	return logging.ForCLI(os.Stderr, verbose, quiet)
}

// loadConfig reads .env, the environment and the --config file, then applies flag overrides
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if kbPath != "" {
		cfg.KnowledgeBase = kbPath
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openApp loads configuration and opens the engine; the caller must close it
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg, newLogger())
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
