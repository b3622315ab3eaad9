// ABOUTME: Tests for the version command
// ABOUTME: Checks text and JSON build output and argument handling

package commands

import (
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/harper/ragcore/internal/index"
)

// withBuild swaps the package build info for the duration of a test
func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	saved := build
	t.Cleanup(func() { build = saved })
	SetVersion(version, commit, date)
}

func runVersion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd_Text(t *testing.T) {
	withBuild(t, "0.4.1", "f00dcafe", "2026-09-30")

	out, err := runVersion(t)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{
		"ragcore 0.4.1 (f00dcafe, built 2026-09-30)",
		"go:       " + runtime.Version(),
		"snapshot: v" + index.SnapshotVersion,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	withBuild(t, "0.5.0-rc.1", "0badf00d", "2026-10-01T08:00:00Z")
	saved := outputFormat
	outputFormat = "json"
	t.Cleanup(func() { outputFormat = saved })

	out, err := runVersion(t)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var got BuildInfo
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := BuildInfo{
		Version:         "0.5.0-rc.1",
		Commit:          "0badf00d",
		Date:            "2026-10-01T08:00:00Z",
		GoVersion:       runtime.Version(),
		SnapshotVersion: index.SnapshotVersion,
	}
	if got != want {
		t.Errorf("build = %+v, want %+v", got, want)
	}
}

func TestVersionCmd_DefaultsBeforeSetVersion(t *testing.T) {
	withBuild(t, "dev", "none", "unknown")

	out, err := runVersion(t)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out, "ragcore dev (none, built unknown)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	if _, err := runVersion(t, "extra"); err == nil {
		t.Error("version should reject positional arguments")
	}
}
