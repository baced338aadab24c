package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/evaluation"
	appLogger "github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

func main() {
	datasetPath := flag.String("dataset", "internal/evaluation/testdata/crisis_regression.json", "labeled crisis dataset (JSON)")
	minRecall := flag.Float64("min-recall", 1.0, "fail when recall drops below this value")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := appLogger.Init(*logLevel, "console", "stdout"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	dataset, err := evaluation.LoadDatasetFile(*datasetPath)
	if err != nil {
		appLogger.Fatal("Failed to load dataset", zap.Error(err))
	}

	report := evaluation.NewEvaluator(nil).Run(dataset)
	fmt.Print(evaluation.GenerateReport(report))

	if !report.Passes(*minRecall) {
		appLogger.Error("Crisis regression failed",
			zap.Float64("recall", report.Recall),
			zap.Float64("min_recall", *minRecall),
			zap.Int("category_mismatches", report.CategoryMismatches),
		)
		os.Exit(1)
	}
}
