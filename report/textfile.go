package report

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

const namespace = "heartrisk"

// Registry returns a registry holding one gauge per reported figure:
//
//	heartrisk_model_accuracy{model}
//	heartrisk_model_cv_accuracy{model}
//	heartrisk_model_roc_auc{model}
//	heartrisk_model_log_loss{model}
//	heartrisk_rows{stage}
//	heartrisk_step_duration_seconds{step}
//	heartrisk_run_info{run_id,dataset}
func (r *Report) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	modelGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "model", Name: name, Help: help,
		}, []string{"model"})
	}
	accuracy := modelGauge("accuracy", "Test-partition accuracy.")
	cvAccuracy := modelGauge("cv_accuracy", "Mean stratified cross-validation accuracy.")
	auc := modelGauge("roc_auc", "Area under the ROC curve on the test partition.")
	logLoss := modelGauge("log_loss", "Binary log-loss on the test partition.")
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "rows", Help: "Rows remaining after each pipeline stage.",
	}, []string{"stage"})
	steps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "step_duration_seconds", Help: "Wall time of each pipeline step.",
	}, []string{"step"})
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "run_info", Help: "Identifies the run that wrote this file.",
	}, []string{"run_id", "dataset"})

	for _, c := range []prometheus.Collector{accuracy, cvAccuracy, auc, logLoss, rows, steps, info} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register report gauge")
		}
	}

	info.WithLabelValues(r.RunID, r.Dataset).Set(1)
	for _, s := range r.Rows {
		rows.WithLabelValues(s.Stage).Set(float64(s.Rows))
	}
	for _, s := range r.Steps {
		steps.WithLabelValues(s.Step).Set(s.Duration.Seconds())
	}
	if r.Result != nil {
		for _, m := range r.Result.Models {
			accuracy.WithLabelValues(m.Name).Set(m.Accuracy)
			cvAccuracy.WithLabelValues(m.Name).Set(m.CVAccuracy)
			if m.ROC != nil {
				auc.WithLabelValues(m.Name).Set(m.ROC.AUC)
			}
			if m.LogLoss != nil {
				logLoss.WithLabelValues(m.Name).Set(*m.LogLoss)
			}
		}
	}
	return reg, nil
}

// WriteTextfile writes the report gauges to path in the Prometheus text
// exposition format. The file is replaced atomically.
func (r *Report) WriteTextfile(path string) error {
	reg, err := r.Registry()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create textfile directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "write textfile %s", path)
	}
	return nil
}
