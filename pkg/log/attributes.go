// Package log defines standard attribute keys for the pipeline's log lines.
//
// The keys follow a hierarchical naming convention (e.g. "ml.operation",
// "data.samples") so that JSON output can be filtered per stage.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "RandomForestClassifier", "StandardScaler", "LabelEncoder"
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies a specific estimator instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies the pipeline stage emitting the log line.
	// Examples: "loader", "encoder", "splitter", "tuner", "evaluator", "reporter"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// RunIDKey carries the uuid generated once per pipeline run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// ColumnKey names the column a log line refers to.
	ColumnKey = "data.column"

	// ClassesKey records the number of distinct values of a categorical column.
	ClassesKey = "data.classes"

	// PathKey records the file a stage reads or writes.
	PathKey = "data.path"

	// TrainSamplesKey and TestSamplesKey record partition sizes.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// ScoreKey records a cross-validation score.
	ScoreKey = "metrics.score"

	// MeanScoreKey records the mean cross-validation score of a candidate.
	MeanScoreKey = "metrics.mean_score"
)

// Search Context
const (
	// CandidateKey is the index of a parameter candidate in grid order.
	CandidateKey = "search.candidate"

	// CandidatesKey is the total number of parameter candidates.
	CandidatesKey = "search.candidates"

	// FoldKey is the index of a cross-validation fold.
	FoldKey = "search.fold"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "search.folds"

	// WorkersKey is the number of concurrent fits.
	WorkersKey = "search.workers"
)

// Error and Warning Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// WarningKey carries a structured warning object.
	WarningKey = "warning"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants for common operations.
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
