// ABOUTME: Command-line benchmark runner for RAGAS tests
// ABOUTME: Executes RAGAS benchmarks and outputs JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/harper/ragcore/benchmarks/ragas"
	"github.com/harper/ragcore/internal/app"
	"github.com/harper/ragcore/internal/config"
	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/logging"
)

func main() {
	testID := flag.String("test", "", "Run specific test (policy, rotation, no-evidence). If empty, runs all tests.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	logger := logging.New(os.Stderr, "info")
	if err := config.LoadEnvFiles(); err != nil {
		logger.Warn("could not load .env", "err", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	embedder, err := app.NewEmbedder(cfg, nil)
	if err != nil {
		logger.Fatal("failed to create embedder", "err", err)
	}
	gen, err := app.NewGenerator(cfg, nil)
	if err != nil {
		logger.Fatal("failed to create generator", "err", err)
	}
	var generator engine.Generator
	if gen != nil {
		generator = gen
	} else {
		logger.Warn("no API key: scoring extractive answers")
	}

	fmt.Println("========================================")
	fmt.Println("ragcore RAGAS Benchmarks")
	fmt.Println("========================================")
	fmt.Println()

	runner, err := ragas.NewBenchmarkRunner(embedder, generator, cfg.RAG, *verbose)
	if err != nil {
		logger.Fatal("failed to create benchmark runner", "err", err)
	}

	ctx := context.Background()
	var results []ragas.TestResult
	if *testID == "" {
		fmt.Println("Running all RAGAS benchmark tests...")
		fmt.Println()

		results, err = runner.RunAllTests(ctx)
		if err != nil {
			logger.Fatal("benchmark failed", "err", err)
		}
	} else {
		var scenario *ragas.TestScenario
		for _, s := range ragas.GetAllTests() {
			if s.ID == *testID {
				scenario = &s
				break
			}
		}
		if scenario == nil {
			logger.Fatal("unknown test ID (valid options: policy, rotation, no-evidence)", "test", *testID)
		}

		fmt.Printf("Running test: %s\n\n", scenario.Name)
		result, err := runner.RunTest(ctx, *scenario)
		if err != nil {
			logger.Fatal("test failed", "err", err)
		}
		results = []ragas.TestResult{result}
	}

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	passed := 0
	failed := 0
	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.TestID, result.TestName)
		fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Printf("  Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		fmt.Printf("  Confidence: %.2f\n", result.Confidence)
		fmt.Printf("  Status: %s\n", result.Status)

		if result.Status == "PASS" {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n========================================")
	fmt.Printf("Total Tests: %d\n", len(results))
	fmt.Printf("Passed: %d\n", passed)
	fmt.Printf("Failed: %d\n", failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		logger.Fatal("failed to export results", "err", err)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
