// Package log defines standard attribute keys for model fitting and
// cross-validation runs.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples", "cv.fold") so that fold-level logs of a long evaluation can
// be filtered and aggregated.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model. Examples: "GLM", "Bootstrap"
	ModelNameKey = "model.name"

	// FamilyKey identifies the GLM family and link. Example: "binomial(logit)"
	FamilyKey = "model.family"

	// FormulaKey records the model formula.
	FormulaKey = "model.formula"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of observations in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of design matrix columns.
	FeaturesKey = "data.features"

	// TrainSamplesKey indicates the number of rows a fold was trained on.
	TrainSamplesKey = "data.train_samples"
)

// Cross-validation
const (
	// FoldKey is the zero-based fold number.
	FoldKey = "cv.fold"

	// FoldsKey is the total number of folds.
	FoldsKey = "cv.folds"

	// HeldOutKey lists the held-out observation indices of a fold.
	HeldOutKey = "cv.held_out"

	// WorkersKey is the number of concurrent fold workers.
	WorkersKey = "cv.workers"

	// PartialKey reports whether partial-results mode is enabled.
	PartialKey = "cv.partial"

	// FailedKey lists indices without a held-out error.
	FailedKey = "cv.failed"

	// MeanErrorKey is the aggregated held-out error.
	MeanErrorKey = "cv.mean_error"

	// ReplicatesKey is the number of bootstrap replicates.
	ReplicatesKey = "resample.replicates"
)

// Performance and fit metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the IRLS iteration number.
	IterationKey = "training.iteration"

	// DevianceKey records the model deviance.
	DevianceKey = "metrics.deviance"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationRefit     = "refit"
	OperationEvaluate  = "evaluate"
	OperationBootstrap = "bootstrap"
	OperationSimulate  = "simulate"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorRefit          = "REFIT_FAILURE"
	ErrorCostFunction   = "COST_FUNCTION_FAILURE"
	ErrorInvalidData    = "INVALID_DATA"
	ErrorConvergence    = "CONVERGENCE_FAILURE"
	ErrorRankDeficiency = "RANK_DEFICIENT"
)
