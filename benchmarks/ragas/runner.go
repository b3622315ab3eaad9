// ABOUTME: Test runner for RAGAS benchmarks - executes scenarios and collects results
// ABOUTME: Ingests each scenario into a fresh engine, asks the question and scores the answer

package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
)

// BenchmarkRunner executes RAGAS benchmark tests
type BenchmarkRunner struct {
	embedder  embedding.Provider
	generator engine.Generator
	cfg       models.RagConfig
	metrics   *MetricsCalculator
	logger    *log.Logger
	out       io.Writer
	verbose   bool
}

// NewBenchmarkRunner creates a runner. generator may be nil, in which case
// answers are extractive.
func NewBenchmarkRunner(embedder embedding.Provider, generator engine.Generator, cfg models.RagConfig, verbose bool) (*BenchmarkRunner, error) {
	if embedder == nil {
		return nil, models.Validationf("an embedding provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Discard()
	if verbose {
		logger = logging.New(os.Stderr, "debug")
	}
	return &BenchmarkRunner{
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		metrics:   NewMetricsCalculator(),
		logger:    logger,
		out:       os.Stdout,
		verbose:   verbose,
	}, nil
}

// SetOutput redirects progress output
func (r *BenchmarkRunner) SetOutput(w io.Writer) {
	r.out = w
}

// RunTest executes a single benchmark test against a fresh in-memory engine
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario TestScenario) (TestResult, error) {
	if r.verbose {
		fmt.Fprintf(r.out, "\n========================================\n")
		fmt.Fprintf(r.out, "RUNNING: %s\n", scenario.Name)
		fmt.Fprintf(r.out, "========================================\n")
		fmt.Fprintf(r.out, "Description: %s\n\n", scenario.Description)
	}

	eng := engine.New(engine.Options{
		Embedder:  r.embedder,
		Generator: r.generator,
		Logger:    r.logger,
	})
	if err := eng.Initialize(ctx, r.cfg); err != nil {
		return TestResult{}, fmt.Errorf("engine setup failed: %w", err)
	}
	defer func() { _ = eng.Shutdown(context.Background()) }()

	for i, doc := range scenario.Documents {
		report, err := eng.IngestText(ctx, doc.Text, map[string]any{models.MetaSource: doc.Source})
		if err != nil {
			return TestResult{}, fmt.Errorf("document %d (%s) failed: %w", i+1, doc.Source, err)
		}
		if r.verbose {
			fmt.Fprintf(r.out, "[Doc %d] %s: %d chunks (replaced %d)\n", i+1, doc.Source, report.Chunks(), report.Replaced)
		}
	}

	result := eng.Query(ctx, scenario.Question, engine.QueryOptions{})
	if !result.Success {
		return TestResult{
			TestID:       scenario.ID,
			TestName:     scenario.Name,
			Status:       "FAIL",
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	retrieved := make([]string, len(result.Sources))
	for i, ch := range result.Sources {
		retrieved[i] = ch.Content
	}
	if r.verbose {
		fmt.Fprintf(r.out, "Q: %s\n", scenario.Question)
		fmt.Fprintf(r.out, "A: %s\n", engine.Snippet(result.Answer, 150))
	}

	tr := r.metrics.EvaluateTest(scenario, result.Answer, retrieved, result.Confidence)
	tr.Details["processing_time_ms"] = result.ProcessingTime.Milliseconds()

	if r.verbose {
		fmt.Fprintf(r.out, "\nFaithfulness: %.2f\n", tr.FaithfulnessScore)
		fmt.Fprintf(r.out, "Context Recall: %.2f\n", tr.ContextRecallScore)
		fmt.Fprintf(r.out, "Overall Score: %.2f\n", tr.OverallScore)
		fmt.Fprintf(r.out, "Status: %s\n", tr.Status)
	}
	return tr, nil
}

// RunAllTests executes all benchmark tests
func (r *BenchmarkRunner) RunAllTests(ctx context.Context) ([]TestResult, error) {
	scenarios := GetAllTests()
	results := make([]TestResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		result, err := r.RunTest(ctx, scenario)
		if err != nil {
			return nil, fmt.Errorf("test %s failed: %w", scenario.ID, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// ExportResults exports test results to JSON
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	passed := 0
	for _, result := range results {
		if result.Status == "PASS" {
			passed++
		}
	}
	summary := map[string]interface{}{
		"timestamp":   time.Now().Format(time.RFC3339),
		"total_tests": len(results),
		"passed":      passed,
		"failed":      len(results) - passed,
		"config":      r.cfg,
		"results":     results,
	}

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	fmt.Fprintf(r.out, "✓ Results exported to: %s\n", outputPath)
	return nil
}
