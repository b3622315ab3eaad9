// ABOUTME: Version command reporting the build and the knowledge-base format it reads
// ABOUTME: Text by default, a JSON object with --format json
package commands

import (
	"fmt"
	"runtime"

	"github.com/harper/ragcore/internal/index"
	"github.com/spf13/cobra"
)

// BuildInfo identifies a ragcore binary
type BuildInfo struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Date            string `json:"date"`
	GoVersion       string `json:"go_version"`
	SnapshotVersion string `json:"snapshot_version"`
}

var build = BuildInfo{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
}

// SetVersion records the ldflags-injected build values (called from main)
func SetVersion(version, commit, date string) {
	build.Version = version
	build.Commit = commit
	build.Date = date
}

func currentBuild() BuildInfo {
	b := build
	b.GoVersion = runtime.Version()
	b.SnapshotVersion = index.SnapshotVersion
	return b
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Print the ragcore release, commit and build date, the Go toolchain it was
built with, and the knowledge-base snapshot format version it reads and writes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := currentBuild()
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, b)
			}
			_, _ = fmt.Fprintf(out, "ragcore %s (%s, built %s)\n", b.Version, b.Commit, b.Date)
			_, _ = fmt.Fprintf(out, "go:       %s\n", b.GoVersion)
			_, _ = fmt.Fprintf(out, "snapshot: v%s\n", b.SnapshotVersion)
			return nil
		},
	}
}
