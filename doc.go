// Package heartrisk analyses the heart-attack dataset and compares four
// classifiers on it.
//
// The pipeline is a fixed sequence of stages. Each stage returns a new
// table and never mutates its input:
//
//  1. load: read the 14-column CSV (or XLSX) into a dataset.Table, validating
//     every row against the typed dataset.Record schema
//  2. audit: per-column missing and distinct-value counts, skewness,
//     z-score exceedances and the correlation matrix
//  3. normalize: sentinel replacement, imputation, column drop,
//     winsorization, IQR-fence row removal and a square-root transform
//  4. encode: drop-first one-hot encoding and robust scaling into a numeric
//     design matrix
//  5. train: an 80/20 split, then accuracy, 10-fold stratified CV and ROC
//     for logistic regression, a decision tree, an SVC and a random forest
//
// # Quick Start
//
//	cfg := config.Default()
//	cfg.Dataset = "heart.csv"
//	rep, err := pipeline.Run(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep.WriteText(os.Stdout)
//
// or from the command line:
//
//	heartrisk run --dataset heart.csv --charts-dir charts --report report.yaml
//
// # Packages
//
//   - dataset: loader, schema and quality auditor
//   - cleaning: the outlier and missing-value normalizer
//   - features: one-hot encoding and scaling into features.Dataset
//   - preprocessing: scalers, one-hot encoder, quantiles and winsorization
//   - sklearn/linear_model, sklearn/tree, sklearn/svm, sklearn/ensemble: classifiers
//   - model_selection: train/test split, k-fold splitters and cross-validation
//   - metrics: accuracy, ROC/AUC, confusion matrix and log-loss
//   - harness: the split-and-train loop over the four models
//   - visualize: ROC, histogram and correlation charts (gonum/plot)
//   - report: text, YAML and Prometheus textfile output
//   - config, pipeline: configuration and the stage list
//   - core/model: capability interfaces and fitted-state bookkeeping
//   - core/parallel: bounded errgroup-based parallel loops
//   - pkg/errors, pkg/log: structured errors, warnings and logging
//
// # Errors
//
// All errors carry stack traces. Precondition failures (a missing column,
// a schema violation, an empty table) are fatal; nothing is retried.
// Warnings such as ConvergenceWarning or MethodologyWarning go through
// errors.Warn and never stop a run.
package heartrisk
