// Package log defines standard attribute keys for pipeline and model logging.
//
// The keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") so that records from every stage can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "LogisticRegression", "RobustScaler", "RandomForestClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "dataset", "cleaning", "harness"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Pipeline Context
const (
	// RunIDKey carries the uuid of the current pipeline run.
	RunIDKey = "run.id"

	// StageKey names the pipeline step or normalizer stage.
	// Examples: "load", "winsorize_trtbps", "split_train"
	StageKey = "pipeline.stage"

	// ColumnKey names the table column a record is about.
	ColumnKey = "data.column"

	// RowsInKey and RowsOutKey record table size around a stage.
	RowsInKey  = "data.rows_in"
	RowsOutKey = "data.rows_out"

	// RowsDroppedKey records how many rows a stage removed.
	RowsDroppedKey = "data.rows_dropped"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// PathKey is the file a loader or writer works on.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// CVAccuracyKey records the mean cross-validated accuracy.
	CVAccuracyKey = "metrics.cv_accuracy"

	// AUCKey records the area under the ROC curve.
	AUCKey = "metrics.roc_auc"

	// LossKey records a loss value during training or evaluation.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"

	// ThresholdKey records a fitted cutoff such as a winsorization limit.
	ThresholdKey = "preds.threshold"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Configuration
const (
	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
