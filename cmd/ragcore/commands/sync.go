// ABOUTME: Sync commands for sharing knowledge-base snapshots through Charm cloud
// ABOUTME: Provides push, pull, list, delete and status
package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/charm"
	"github.com/harper/ragcore/internal/config"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Share knowledge base snapshots through Charm cloud",
		Long: `Share knowledge base snapshots through Charm cloud.

The local knowledge base (JSON file or SQLite database) is pushed as
a named snapshot to Charm KV, authenticated by your SSH keys. Pull a
snapshot on another machine to replace its local knowledge base.`,
	}

	cmd.AddCommand(newSyncPushCmd())
	cmd.AddCommand(newSyncPullCmd())
	cmd.AddCommand(newSyncListCmd())
	cmd.AddCommand(newSyncDeleteCmd())
	cmd.AddCommand(newSyncStatusCmd())

	return cmd
}

func charmConfig(cfg *config.Config) charm.Config {
	return charm.Config{Host: cfg.CharmHost, DBName: cfg.CharmDBName, AutoSync: cfg.AutoSync}
}

// snapshotName defaults to the collection name
func snapshotName(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Collection
}

func openCharm(cfg *config.Config) (*charm.Client, error) {
	client, err := charm.NewClient(charmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Charm: %w", err)
	}
	return client, nil
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [name]",
		Short: "Push the knowledge base as a snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			data, err := a.Snapshot()
			if err != nil {
				return err
			}

			client, err := openCharm(a.Config)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			info, err := client.PushSnapshot(snapshotName(a.Config, args), data)
			if err != nil {
				return err
			}
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), info)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Pushed %s (%d bytes, %d vectors)\n", okMark("✓"), info.Name, info.Size, a.Engine.Index().Count())
			}
			return nil
		},
	}
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [name]",
		Short: "Replace the knowledge base with a pushed snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			client, err := openCharm(a.Config)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			name := snapshotName(a.Config, args)
			data, err := client.PullSnapshot(name)
			if err != nil {
				return err
			}
			if err := a.Restore(data); err != nil {
				return fmt.Errorf("restoring snapshot %s: %w", name, err)
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Pulled %s (%d vectors)\n", okMark("✓"), name, a.Engine.Index().Count())
			}
			return nil
		},
	}
}

func newSyncListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pushed snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := openCharm(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Sync(); err != nil && verbose {
				fmt.Fprintf(os.Stderr, "Warning: sync failed, listing local copy: %v\n", err)
			}
			snapshots, err := client.ListSnapshots()
			if err != nil {
				return err
			}

			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), snapshots)
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "NAME\tSIZE\tPUSHED\tSHA256\n")
			for _, s := range snapshots {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Name, s.Size, formatTime(s.PushedAt), truncate(s.SHA256, 12))
			}
			return w.Flush()
		},
	}
}

func newSyncDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a pushed snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := openCharm(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.DeleteSnapshot(args[0]); err != nil {
				return err
			}
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted snapshot %s\n", okMark("✓"), args[0])
			}
			return nil
		},
	}
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status and connection info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := openCharm(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			id, err := client.ID()
			if err != nil {
				fmt.Fprintln(out, "Status: Not connected")
				fmt.Fprintln(out, "Check that your SSH keys are linked to a Charm account")
				return nil
			}

			fmt.Fprintf(out, "Status: %s\n", okMark("Connected"))
			fmt.Fprintf(out, "User ID: %s\n", id)
			fmt.Fprintf(out, "Host: %s\n", cfg.CharmHost)
			fmt.Fprintf(out, "Database: %s\n", cfg.CharmDBName)
			fmt.Fprintf(out, "Auto sync: %v\n", cfg.AutoSync)
			return nil
		},
	}
}
