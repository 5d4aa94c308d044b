// Package pipeline wires the stages of the diabetes-risk run: load the CSV,
// encode categorical columns, split, tune a random forest with a grid
// search, evaluate on the held-out rows and report.
//
// Stages run sequentially and every error aborts the run; nothing is printed
// for a stage that did not complete.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/internal/config"
	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/model_selection"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/report"
)

// Pipeline runs the stages with one configuration.
type Pipeline struct {
	cfg    *config.Config
	logger log.Logger
	out    io.Writer
	viewer report.Viewer
	runID  string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger; the run id is attached to it.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithOutput sets where results are printed (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithViewer sets how the heatmap is displayed.
func WithViewer(v report.Viewer) Option {
	return func(p *Pipeline) { p.viewer = v }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: log.GetLogger(),
		out:    os.Stdout,
		viewer: report.SystemViewer{Command: cfg.Report.Viewer},
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(log.RunIDKey, p.runID)
	return p
}

// RunID identifies this run in the logs.
func (p *Pipeline) RunID() string { return p.runID }

// Result collects the outputs of every stage.
type Result struct {
	RunID       string
	Encoded     *Encoded
	Split       *Split
	Search      *model_selection.GridSearchCV
	Evaluation  *Evaluation
	Importances report.ImportanceTable
	HeatmapPath string
}

// BestParams returns the winning hyperparameters.
func (r *Result) BestParams() map[string]interface{} { return r.Search.BestParams() }

// Run executes all stages in order.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: p.runID}

	frame, err := p.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load stage")
	}
	if err := p.printf("Data preview:\n"); err != nil {
		return nil, err
	}
	if err := frame.Preview(p.out, p.cfg.Report.PreviewRows); err != nil {
		return nil, errors.Wrap(err, "print preview")
	}

	if res.Encoded, err = p.Encode(frame); err != nil {
		return nil, errors.Wrap(err, "encode stage")
	}
	if err := p.printf("\nEncoded data preview:\n"); err != nil {
		return nil, err
	}
	if err := res.Encoded.Frame.Preview(p.out, p.cfg.Report.PreviewRows); err != nil {
		return nil, errors.Wrap(err, "print preview")
	}

	if res.Split, err = p.Split(res.Encoded); err != nil {
		return nil, errors.Wrap(err, "split stage")
	}

	if res.Search, err = p.Tune(ctx, res.Split); err != nil {
		return nil, errors.Wrap(err, "tune stage")
	}
	if err := p.printf("\nBest parameters: %s\n", model_selection.FormatParams(res.Search.BestParams())); err != nil {
		return nil, err
	}

	if res.Evaluation, err = p.Evaluate(res.Search, res.Split, res.Encoded); err != nil {
		return nil, errors.Wrap(err, "evaluate stage")
	}
	ev := res.Evaluation
	if err := p.printf("Accuracy: %v\nConfusion matrix:\n%s\nClassification report:\n%s\n",
		ev.Accuracy, ev.Confusion, ev.Report); err != nil {
		return nil, err
	}

	if res.HeatmapPath, res.Importances, err = p.Report(ctx, res); err != nil {
		return nil, errors.Wrap(err, "report stage")
	}

	p.logger.Info("pipeline finished",
		log.AccuracyKey, ev.Accuracy,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Load reads the configured CSV. Continuous columns are forced numeric so a
// malformed Age value fails here with its row and column.
func (p *Pipeline) Load() (*dataset.Frame, error) {
	l := p.logger.With(log.ComponentKey, "loader")
	frame, err := dataset.ReadCSVFile(p.cfg.Data.Path, dataset.WithContinuous(p.cfg.Data.ContinuousColumns...))
	if err != nil {
		return nil, err
	}
	l.Info("dataset loaded",
		log.PathKey, p.cfg.Data.Path,
		log.SamplesKey, frame.NRows(),
		log.FeaturesKey, frame.NCols(),
	)
	return frame, nil
}

func (p *Pipeline) printf(format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(p.out, format, args...); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}

// evaluationLabels returns every class code the label encoder knows, with its
// name, including classes absent from the holdout. A label column that was
// numeric in the file has no encoder; the values seen in y are used instead.
func evaluationLabels(enc *Encoded, label string, yTrue, yPred *mat.VecDense) ([]float64, []string, error) {
	if le, ok := enc.Encoders[label]; ok {
		names := le.Classes()
		codes := make([]float64, len(names))
		for i := range codes {
			codes[i] = float64(i)
		}
		return codes, names, nil
	}
	cm, err := metrics.NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(cm.Labels))
	for i, c := range cm.Labels {
		names[i] = fmt.Sprint(c)
	}
	return cm.Labels, names, nil
}

// Evaluation holds the held-out metrics.
type Evaluation struct {
	Predictions *mat.Dense
	Accuracy    float64
	Confusion   *metrics.ConfusionMatrix
	Report      *metrics.Report
	ClassNames  []string
}

// Evaluate predicts the test rows with the refitted best forest.
func (p *Pipeline) Evaluate(search *model_selection.GridSearchCV, split *Split, enc *Encoded) (*Evaluation, error) {
	l := p.logger.With(log.ComponentKey, "evaluator")
	pred, err := search.Predict(split.Partition.XTest)
	if err != nil {
		return nil, err
	}
	yTrue := mat.VecDenseCopyOf(split.Partition.YTest.ColView(0))
	yPred := mat.NewVecDense(yTrue.Len(), mat.Col(nil, 0, pred))

	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	codes, names, err := evaluationLabels(enc, p.cfg.Data.LabelColumn, yTrue, yPred)
	if err != nil {
		return nil, err
	}
	cm, err := metrics.NewConfusionMatrixWithLabels(yTrue, yPred, codes)
	if err != nil {
		return nil, err
	}
	rep, err := metrics.ClassificationReportWithLabels(yTrue, yPred, codes, names, 2)
	if err != nil {
		return nil, err
	}

	l.Info("evaluation finished",
		log.PhaseKey, log.PhaseTesting,
		log.TestSamplesKey, yTrue.Len(),
		log.AccuracyKey, acc,
	)
	return &Evaluation{
		Predictions: mat.DenseCopyOf(pred),
		Accuracy:    acc,
		Confusion:   cm,
		Report:      rep,
		ClassNames:  names,
	}, nil
}

// Report draws the confusion heatmap, shows it when configured, and prints
// the feature-importance table.
func (p *Pipeline) Report(ctx context.Context, res *Result) (string, report.ImportanceTable, error) {
	l := p.logger.With(log.ComponentKey, "reporter")

	path := p.cfg.Report.HeatmapPath
	if path == "" {
		f, err := os.CreateTemp("", "confusion-matrix-*.png")
		if err != nil {
			return "", nil, errors.Wrap(err, "create heatmap file")
		}
		path = f.Name()
		if err := f.Close(); err != nil {
			return "", nil, errors.Wrap(err, "create heatmap file")
		}
	}
	if err := report.RenderConfusionHeatmap(res.Evaluation.Confusion, res.Evaluation.ClassNames, path); err != nil {
		return "", nil, err
	}
	l.Info("confusion matrix heatmap written", log.PathKey, path)

	if p.cfg.Report.Show {
		if err := p.viewer.Show(ctx, path); err != nil {
			if !errors.Is(err, report.ErrNoViewer) {
				return "", nil, err
			}
			l.Warn("no image viewer available; open the heatmap manually", log.PathKey, path)
		}
	}

	fi, ok := res.Search.BestEstimator().(model.FeatureImportancer)
	if !ok {
		return "", nil, errors.NewValueError("Report", "best estimator does not expose feature importances")
	}
	scores, err := fi.FeatureImportances()
	if err != nil {
		return "", nil, err
	}
	table, err := report.FeatureImportances(res.Split.Features, scores)
	if err != nil {
		return "", nil, err
	}
	if err := p.printf("Feature importances:\n"); err != nil {
		return "", nil, err
	}
	if err := table.WriteTable(p.out); err != nil {
		return "", nil, errors.Wrap(err, "write feature importances")
	}
	return path, table, nil
}
