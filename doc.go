// Package diabetesrisk trains and evaluates a random-forest classifier for
// early-stage diabetes risk from a CSV of patient symptoms.
//
// The run is a fixed sequence of stages:
//
//   - dataset: load the CSV into a column-oriented Frame
//   - preprocessing: LabelEncoder for the 16 Yes/No style columns (the class
//     included) and StandardScaler for Age
//   - model_selection: 70/30 TrainTestSplit, then GridSearchCV with 5-fold
//     StratifiedKFold over 216 RandomForestClassifier candidates
//   - metrics: accuracy, confusion matrix and classification report on the
//     held-out rows
//   - report: confusion-matrix heatmap (gonum/plot) and the ranked
//     feature-importance table
//
// # Quick Start
//
//	diabetes-risk --data ./diabetes_data_upload1.csv
//
// or from Go:
//
//	cfg := config.Default()
//	res, err := pipeline.New(cfg).Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.BestParams(), res.Evaluation.Accuracy)
//
// # Packages
//
//   - sklearn/tree, sklearn/ensemble: CART decision tree and random forest
//   - model_selection: splits, k-fold splitters, grid search, cross_val_score
//   - core/model: estimator interfaces and StateManager
//   - core/parallel: bounded worker helpers over errgroup
//   - pkg/errors, pkg/log: typed errors, warnings and zerolog-backed logging
//   - internal/config, internal/pipeline: viper config and stage wiring
//   - cmd/diabetes-risk: cobra command line
//
// Results are deterministic for a fixed configuration: the split, the fold
// assignment, every bootstrap sample and every feature subset derive from
// the configured seeds, and concurrent fits write to fixed slots.
package diabetesrisk
