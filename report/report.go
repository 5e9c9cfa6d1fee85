// Package report renders the outcome of a pipeline run as diagnostic text,
// YAML, or a Prometheus textfile for the node-exporter textfile collector.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/harness"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// StageRows is the row count after a pipeline stage.
type StageRows struct {
	Stage string `yaml:"stage"`
	Rows  int    `yaml:"rows"`
}

// StepTiming is the wall time of one pipeline step.
type StepTiming struct {
	Step     string        `yaml:"step"`
	Duration time.Duration `yaml:"duration"`
}

// Report collects everything a run produced.
type Report struct {
	RunID      string                 `yaml:"run_id"`
	Dataset    string                 `yaml:"dataset"`
	CreatedAt  time.Time              `yaml:"created_at"`
	Rows       []StageRows            `yaml:"rows"`
	Features   []string               `yaml:"features,omitempty"`
	Audit      *dataset.QualityReport `yaml:"audit,omitempty"`
	Thresholds map[string]float64     `yaml:"thresholds,omitempty"`
	Skewness   map[string]float64     `yaml:"skewness,omitempty"`
	Steps      []StepTiming           `yaml:"steps,omitempty"`
	Result     *harness.Result        `yaml:"result,omitempty"`

	// ZScores counts trtbps rows above each z-score threshold.
	ZScores []dataset.ZScoreExceedance `yaml:"trtbps_z_scores,omitempty"`
}

// New starts a report for a run over the dataset at path.
func New(path string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Dataset:   path,
		CreatedAt: time.Now().UTC(),
	}
}

// AddRows records the row count after stage.
func (r *Report) AddRows(stage string, n int) {
	r.Rows = append(r.Rows, StageRows{Stage: stage, Rows: n})
}

// AddStep records the duration of a pipeline step.
func (r *Report) AddStep(step string, d time.Duration) {
	r.Steps = append(r.Steps, StepTiming{Step: step, Duration: d})
}

// WriteText prints the split sizes, then accuracy and CV accuracy for
// every model.
func (r *Report) WriteText(w io.Writer) error {
	if r.Result == nil {
		return errors.NewValueError("Report.WriteText", "report has no model results")
	}
	res := r.Result
	ew := &errWriter{w: w}
	ew.printf("X_train: %d\n", res.TrainSize)
	ew.printf("X_test: %d\n", res.TestSize)
	ew.printf("y_train: %d\n", res.TrainSize)
	ew.printf("y_test: %d\n", res.TestSize)
	for _, m := range res.Models {
		ew.printf("\n%s\n", m.Name)
		ew.printf("  Test accuracy:             %.4f\n", m.Accuracy)
		ew.printf("  Cross-validation accuracy: %.4f (std %.4f, %d folds on %s)\n",
			m.CVAccuracy, m.CVStd, len(m.CVScores), res.CVPartition)
		ew.printf("  ROC AUC:                   %.4f\n", m.ROC.AUC)
		c := m.Confusion
		ew.printf("  Confusion [[TN FP] [FN TP]]: [[%d %d] [%d %d]]\n", c.TN, c.FP, c.FN, c.TP)
		if m.LogLoss != nil {
			ew.printf("  Log loss:                  %.4f\n", *m.LogLoss)
		}
	}
	if len(res.Charts) > 0 {
		ew.printf("\nCharts:\n")
		for _, p := range res.Charts {
			ew.printf("  %s\n", p)
		}
	}
	return ew.err
}

// WriteAudit prints the missing and distinct-value counts per column.
func (r *Report) WriteAudit(w io.Writer) error {
	if r.Audit == nil {
		return errors.NewValueError("Report.WriteAudit", "report has no audit")
	}
	ew := &errWriter{w: w}
	ew.printf("rows: %d\n", r.Audit.Rows)
	ew.printf("%-10s %8s %8s\n", "column", "missing", "unique")
	for _, c := range r.Audit.Columns {
		ew.printf("%-10s %8d %8d\n", c.Column, c.Missing, c.Unique)
	}
	if len(r.ZScores) > 0 {
		ew.printf("\ntrtbps z-score exceedances:\n")
		for _, z := range r.ZScores {
			ew.printf("  > %g: %d\n", z.Threshold, z.Count)
		}
	}
	if len(r.Skewness) > 0 {
		ew.printf("\nskewness:\n")
		for _, k := range sortedKeys(r.Skewness) {
			ew.printf("  %-26s %8.4f\n", k, r.Skewness[k])
		}
	}
	return ew.err
}

// WriteYAML encodes the whole report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(enc.Close(), "encode report")
}

// SaveYAML writes the YAML report to path, creating its directory.
func (r *Report) SaveYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create report directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create report %s", path)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close report %s", path)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
