// ABOUTME: End-to-end tests for the knowledge base commands
// ABOUTME: Runs the CLI against a temp data dir with the offline hashing embedder

package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupCLI points the CLI at a fresh data dir with the hashing embedder and no API key
func setupCLI(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	env := map[string]string{
		"RAGCORE_API_KEY":              "",
		"OPENAI_API_KEY":               "",
		"RAGCORE_EMBEDDER":             "hash",
		"RAGCORE_DIMENSION":            "512",
		"RAGCORE_BACKEND":              backend,
		"RAGCORE_DATA_DIR":             dir,
		"RAGCORE_KB_PATH":              "",
		"RAGCORE_DB_PATH":              "",
		"RAGCORE_SIMILARITY_THRESHOLD": "0.05",
		"RAGCORE_USE_RERANKING":        "",
		"RAGCORE_LOG_LEVEL":            "",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestQueryRemove(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			setupCLI(t, backend)
			docs := t.TempDir()
			refunds := writeDoc(t, docs, "refunds.md", "# Refunds\n\nUnused items are refunded within thirty days of delivery.")
			writeDoc(t, docs, "shipping.txt", "Parcels leave the warehouse every weekday morning.")

			out, err := runCLI(t, "ingest", docs)
			if err != nil {
				t.Fatalf("ingest: %v\n%s", err, out)
			}
			if !strings.Contains(out, "refunds.md") || !strings.Contains(out, "shipping.txt") {
				t.Errorf("ingest output should list both files, got:\n%s", out)
			}

			out, err = runCLI(t, "query", "when", "are", "unused", "items", "refunded")
			if err != nil {
				t.Fatalf("query: %v\n%s", err, out)
			}
			if !strings.Contains(out, "thirty days") {
				t.Errorf("extractive answer should quote the passage, got:\n%s", out)
			}
			if !strings.Contains(out, "Sources:") {
				t.Errorf("query output should list sources, got:\n%s", out)
			}

			out, err = runCLI(t, "--format", "json", "search", "warehouse parcels")
			if err != nil {
				t.Fatalf("search: %v\n%s", err, out)
			}
			var results []map[string]any
			if err := json.Unmarshal([]byte(out), &results); err != nil {
				t.Fatalf("search JSON: %v\n%s", err, out)
			}
			if len(results) == 0 {
				t.Error("search should find the shipping passage")
			}

			out, err = runCLI(t, "remove", refunds)
			if err != nil {
				t.Fatalf("remove: %v\n%s", err, out)
			}

			out, err = runCLI(t, "--format", "json", "stats")
			if err != nil {
				t.Fatalf("stats: %v\n%s", err, out)
			}
			var stats struct {
				Index struct {
					Documents int `json:"document_count"`
				} `json:"index"`
			}
			if err := json.Unmarshal([]byte(out), &stats); err != nil {
				t.Fatalf("stats JSON: %v\n%s", err, out)
			}
			if stats.Index.Documents != 1 {
				t.Errorf("document_count after remove = %d, want 1", stats.Index.Documents)
			}
		})
	}
}

func TestIngestInlineText(t *testing.T) {
	setupCLI(t, "memory")

	out, err := runCLI(t, "ingest", "--text", "The cafeteria serves lunch from noon.", "--source", "cafeteria")
	if err != nil {
		t.Fatalf("ingest --text: %v\n%s", err, out)
	}
	if !strings.Contains(out, "cafeteria") {
		t.Errorf("output should name the source, got:\n%s", out)
	}

	if _, err := runCLI(t, "ingest", "--text", "x", "file.txt"); err == nil {
		t.Error("--text with paths should fail")
	}
	if _, err := runCLI(t, "ingest"); err == nil {
		t.Error("ingest with empty stdin should fail")
	}
}

func TestQueryEmptyKnowledgeBase(t *testing.T) {
	setupCLI(t, "memory")

	out, err := runCLI(t, "query", "anything at all")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "could not find any information") {
		t.Errorf("expected the no-evidence answer, got:\n%s", out)
	}
}

func TestClearAndExport(t *testing.T) {
	setupCLI(t, "memory")
	if _, err := runCLI(t, "ingest", "--text", "Solar panels convert sunlight into electricity.", "--source", "solar"); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	for _, name := range []string{"kb.yaml", "kb.md", "kb.json"} {
		path := filepath.Join(outDir, name)
		if out, err := runCLI(t, "export", path); err != nil {
			t.Fatalf("export %s: %v\n%s", name, err, out)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if !strings.Contains(string(data), "Solar panels") {
			t.Errorf("%s should contain the chunk text", name)
		}
	}

	out, _ := runCLI(t, "clear")
	if !strings.Contains(out, "--confirm") {
		t.Errorf("clear without --confirm should explain itself, got:\n%s", out)
	}
	if _, err := runCLI(t, "clear", "--confirm"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	out, err := runCLI(t, "--format", "json", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"vector_count": 0`) {
		t.Errorf("stats after clear should be empty, got:\n%s", out)
	}

	// The JSON export is a loadable snapshot
	out, err = runCLI(t, "--kb", filepath.Join(outDir, "kb.json"), "--format", "json", "stats")
	if err != nil {
		t.Fatalf("stats from snapshot: %v\n%s", err, out)
	}
	if strings.Contains(out, `"vector_count": 0`) {
		t.Errorf("snapshot export should load with its vectors, got:\n%s", out)
	}
}

func TestRemoveUnknownDocument(t *testing.T) {
	setupCLI(t, "memory")
	if _, err := runCLI(t, "remove", "doc_missing"); err == nil {
		t.Error("removing an unknown document should fail")
	}
}

func TestInvalidBackendFlag(t *testing.T) {
	setupCLI(t, "memory")
	if _, err := runCLI(t, "--backend", "postgres", "stats"); err == nil {
		t.Error("unknown backend should fail validation")
	}
}
