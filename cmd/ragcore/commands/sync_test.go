// ABOUTME: Tests for sync command structure
// ABOUTME: Verifies snapshot subcommands and default snapshot naming

package commands

import (
	"strings"
	"testing"

	"github.com/harper/ragcore/internal/config"
)

func TestNewSyncCmd(t *testing.T) {
	cmd := NewSyncCmd()

	if cmd.Use != "sync" {
		t.Errorf("Use = %q, want %q", cmd.Use, "sync")
	}
	if !strings.Contains(cmd.Long, "Charm") {
		t.Error("Long description should mention Charm")
	}
}

func TestSyncCmd_Subcommands(t *testing.T) {
	cmd := NewSyncCmd()

	for _, name := range []string{"push", "pull", "list", "delete", "status"} {
		t.Run(name, func(t *testing.T) {
			found := false
			for _, sub := range cmd.Commands() {
				if sub.Name() == name {
					found = true
					if sub.RunE == nil {
						t.Errorf("%s should have RunE", name)
					}
					break
				}
			}
			if !found {
				t.Errorf("Subcommand %q not found", name)
			}
		})
	}
}

func TestSnapshotName(t *testing.T) {
	cfg := &config.Config{Collection: "team_docs"}

	if got := snapshotName(cfg, nil); got != "team_docs" {
		t.Errorf("default name = %q, want collection name", got)
	}
	if got := snapshotName(cfg, []string{"release"}); got != "release" {
		t.Errorf("explicit name = %q, want release", got)
	}
}

func TestCharmConfig(t *testing.T) {
	cfg := &config.Config{CharmHost: "charm.example.com", CharmDBName: "kb", AutoSync: true}
	cc := charmConfig(cfg)
	if cc.Host != "charm.example.com" || cc.DBName != "kb" || !cc.AutoSync {
		t.Errorf("charmConfig = %+v", cc)
	}
}
