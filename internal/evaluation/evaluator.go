// Package evaluation scores the crisis detector against a labeled set of
// messages so pattern changes can be checked before they ship.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/safety"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
)

type Evaluator struct {
	detector *safety.Detector
}

type Dataset struct {
	Items []Item `json:"items"`
}

type Item struct {
	Text     string          `json:"text"`
	Expected safety.Category `json:"expected"`
	Note     string          `json:"note,omitempty"`
}

// Miss is an item the detector got wrong.
type Miss struct {
	Index    int             `json:"index"`
	Text     string          `json:"text"`
	Expected safety.Category `json:"expected"`
	Got      safety.Category `json:"got"`
}

type Report struct {
	Total              int     `json:"total"`
	TruePositives      int     `json:"truePositives"`
	FalsePositives     int     `json:"falsePositives"`
	FalseNegatives     int     `json:"falseNegatives"`
	TrueNegatives      int     `json:"trueNegatives"`
	CategoryMismatches int     `json:"categoryMismatches"`
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	Misses             []Miss  `json:"misses"`
}

func NewEvaluator(detector *safety.Detector) *Evaluator {
	if detector == nil {
		detector = safety.NewDetector(safety.DefaultPatterns())
	}
	return &Evaluator{detector: detector}
}

// Run classifies every item. A detection with the wrong category still
// counts as a true positive for recall but is reported as a mismatch.
func (e *Evaluator) Run(dataset *Dataset) *Report {
	logger.Info("Running crisis regression", zap.Int("items", len(dataset.Items)))

	report := &Report{
		Total:  len(dataset.Items),
		Misses: []Miss{},
	}

	for i, item := range dataset.Items {
		got := e.detector.Classify(item.Text)
		expectCrisis := item.Expected != safety.CategoryNone && item.Expected != ""

		switch {
		case expectCrisis && got.Detected:
			report.TruePositives++
			if got.Category != item.Expected {
				report.CategoryMismatches++
				report.Misses = append(report.Misses, Miss{Index: i, Text: item.Text, Expected: item.Expected, Got: got.Category})
			}
		case expectCrisis && !got.Detected:
			report.FalseNegatives++
			report.Misses = append(report.Misses, Miss{Index: i, Text: item.Text, Expected: item.Expected, Got: got.Category})
		case !expectCrisis && got.Detected:
			report.FalsePositives++
			report.Misses = append(report.Misses, Miss{Index: i, Text: item.Text, Expected: safety.CategoryNone, Got: got.Category})
		default:
			report.TrueNegatives++
		}
	}

	if n := report.TruePositives + report.FalsePositives; n > 0 {
		report.Precision = float64(report.TruePositives) / float64(n)
	}
	if n := report.TruePositives + report.FalseNegatives; n > 0 {
		report.Recall = float64(report.TruePositives) / float64(n)
	}

	logger.Info("Crisis regression completed",
		zap.Int("total", report.Total),
		zap.Int("false_negatives", report.FalseNegatives),
		zap.Int("false_positives", report.FalsePositives),
		zap.Int("category_mismatches", report.CategoryMismatches),
	)

	return report
}

// Passes reports whether recall reaches minRecall with no category
// mismatches. Precision is informational only.
func (r *Report) Passes(minRecall float64) bool {
	return r.Recall >= minRecall && r.CategoryMismatches == 0
}

func LoadDatasetFromJSON(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	for i, item := range dataset.Items {
		switch item.Expected {
		case safety.CategoryNone, safety.CategorySelf, safety.CategoryOthers:
		default:
			return nil, fmt.Errorf("item %d: unknown expected category %q", i, item.Expected)
		}
	}
	return &dataset, nil
}

func LoadDatasetFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return LoadDatasetFromJSON(data)
}

func GenerateReport(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Crisis Detection Regression
===========================

Total Items: %d

Detections:
- True Positives: %d
- False Negatives: %d
- False Positives: %d
- True Negatives: %d
- Category Mismatches: %d

Precision: %.3f
Recall: %.3f
`,
		report.Total,
		report.TruePositives,
		report.FalseNegatives,
		report.FalsePositives,
		report.TrueNegatives,
		report.CategoryMismatches,
		report.Precision,
		report.Recall,
	)

	if len(report.Misses) > 0 {
		b.WriteString("\nMisses:\n")
		for _, m := range report.Misses {
			fmt.Fprintf(&b, "- #%d expected %s, got %s: %q\n", m.Index, m.Expected, m.Got, m.Text)
		}
	}

	return b.String()
}
