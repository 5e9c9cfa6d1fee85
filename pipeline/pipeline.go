// Package pipeline runs the heart-attack analysis end to end as an explicit,
// ordered list of steps driven by config.Config.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/heartrisk/cleaning"
	"github.com/YuminosukeSato/heartrisk/config"
	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/features"
	"github.com/YuminosukeSato/heartrisk/harness"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/preprocessing"
	"github.com/YuminosukeSato/heartrisk/report"
	"github.com/YuminosukeSato/heartrisk/visualize"
)

// State is what the steps hand to one another.
type State struct {
	Config  *config.Config
	Report  *report.Report
	Raw     *dataset.Table
	Clean   *dataset.Table
	Dataset *features.Dataset
}

// Step is one named unit of the pipeline.
type Step struct {
	Name string
	Fn   func(ctx context.Context, s *State) error
}

// RunSteps are the steps of a full run, in order.
var RunSteps = []Step{
	{Name: "load", Fn: loadStep},
	{Name: "audit", Fn: auditStep},
	{Name: "normalize", Fn: normalizeStep},
	{Name: "encode", Fn: encodeStep},
	{Name: "train", Fn: trainStep},
}

// AuditSteps load and audit the dataset only.
var AuditSteps = RunSteps[:2]

// Run executes RunSteps and returns the report.
func Run(cfg *config.Config) (*report.Report, error) {
	return Execute(context.Background(), cfg, RunSteps)
}

// Audit executes AuditSteps and returns the report.
func Audit(cfg *config.Config) (*report.Report, error) {
	return Execute(context.Background(), cfg, AuditSteps)
}

// Execute runs steps in order. Each step is timed, logged and shielded from
// panics. The first error aborts the run.
func Execute(ctx context.Context, cfg *config.Config, steps []Step) (*report.Report, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st := &State{Config: cfg, Report: report.New(cfg.Dataset)}
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, st.Report.RunID)
	logger.Info("run started", log.PathKey, cfg.Dataset)

	for _, step := range steps {
		start := time.Now()
		err := errors.SafeExecute(step.Name, func() error { return step.Fn(ctx, st) })
		elapsed := time.Since(start)
		st.Report.AddStep(step.Name, elapsed)
		if err != nil {
			logger.Error("step failed", log.StageKey, step.Name, log.ErrAttrKey, err)
			return st.Report, errors.Wrapf(err, "step %s", step.Name)
		}
		logger.Info("step finished", log.StageKey, step.Name, log.DurationMsKey, elapsed.Milliseconds())
	}
	return st.Report, nil
}

func loadStep(_ context.Context, s *State) error {
	t, err := dataset.LoadFile(s.Config.Dataset, dataset.WithSheet(s.Config.Sheet))
	if err != nil {
		return err
	}
	s.Raw = t
	s.Report.AddRows("load", t.NRows())
	return nil
}

func numericColumns(t *dataset.Table) []string {
	var cols []string
	for _, spec := range dataset.Schema {
		if spec.Kind == dataset.KindNumeric && t.Has(spec.Name) {
			cols = append(cols, spec.Name)
		}
	}
	return cols
}

func auditStep(_ context.Context, s *State) error {
	q, err := dataset.Audit(s.Raw)
	if err != nil {
		return err
	}
	s.Report.Audit = q

	numeric := numericColumns(s.Raw)
	if s.Report.Skewness, err = dataset.Skewness(s.Raw, numeric...); err != nil {
		return err
	}
	if s.Report.ZScores, err = dataset.ZScoreExceedances(s.Raw, dataset.ColTrtbps, 1, 2, 3); err != nil {
		return err
	}

	if dir := s.Config.ChartsDir; dir != "" {
		if _, err := visualize.Histograms(dir, s.Raw, numeric...); err != nil {
			return err
		}
		names := s.Raw.Names()
		corr, err := dataset.Correlation(s.Raw, names...)
		if err != nil {
			return err
		}
		if err := visualize.CorrelationHeatmap(filepath.Join(dir, "correlation.png"), names, corr); err != nil {
			return err
		}
	}
	return nil
}

func normalizeStep(_ context.Context, s *State) error {
	cc := s.Config.Cleaning
	mode, err := preprocessing.ParseFenceMode(cc.Fence)
	if err != nil {
		return err
	}
	n := cleaning.NewNormalizer(
		cleaning.WithThallFill(cc.ThallFill),
		cleaning.WithDropColumns(cc.DropColumns...),
		cleaning.WithCutoffs(cc.TrtbpsCutoff, cc.OldpeakCutoff),
		cleaning.WithFence(mode, cc.FenceK),
	)
	clean, err := n.FitTransform(s.Raw)
	if err != nil {
		return err
	}
	s.Clean = clean
	s.Report.AddRows("normalize", clean.NRows())
	s.Report.Thresholds = n.Thresholds()
	if s.Report.Skewness == nil {
		s.Report.Skewness = map[string]float64{}
	}
	for k, v := range n.Skewness() {
		s.Report.Skewness[k] = v
	}
	return nil
}

func encodeStep(_ context.Context, s *State) error {
	ds, err := features.NewEncoder(features.WithScaler(s.Config.Features.Scaler)).FitTransform(s.Clean)
	if err != nil {
		return err
	}
	s.Dataset = ds
	s.Report.Features = ds.FeatureNames
	s.Report.AddRows("encode", ds.NSamples())
	return nil
}

func trainStep(ctx context.Context, s *State) error {
	hc := s.Config.Harness
	partition, err := harness.ParsePartition(hc.CVPartition)
	if err != nil {
		return err
	}
	h := harness.New(
		harness.WithTestSize(hc.TestSize),
		harness.WithSplitSeed(hc.SplitSeed),
		harness.WithCVFolds(hc.CVFolds),
		harness.WithCVPartition(partition),
		harness.WithNJobs(hc.NJobs),
		harness.WithModels(harness.DefaultModels(hc.ModelSeed, hc.NJobs)...),
		harness.WithChartsDir(s.Config.ChartsDir),
	)
	res, err := h.Run(ctx, s.Dataset)
	if err != nil {
		return err
	}
	s.Report.Result = res
	s.Report.AddRows("train", res.TrainSize)
	s.Report.AddRows("test", res.TestSize)
	return nil
}
