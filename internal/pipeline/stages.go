package pipeline

import (
	"context"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/internal/config"
	"github.com/YuminosukeSato/diabetes-risk/model_selection"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/preprocessing"
	"github.com/YuminosukeSato/diabetes-risk/sklearn/ensemble"
)

// Encoded is the frame after label encoding and scaling, with the fitted
// transformers kept for inverse mapping.
type Encoded struct {
	Frame    *dataset.Frame
	Encoders map[string]*preprocessing.LabelEncoder
	// Scalers は列ごとの StandardScaler。scale_after_split の場合は Split で埋まる
	Scalers map[string]*preprocessing.StandardScaler
}

// Encode label-encodes the categorical columns and standardises the
// continuous ones in place. Configured columns missing from the frame are
// skipped with a warning.
func (p *Pipeline) Encode(frame *dataset.Frame) (*Encoded, error) {
	l := p.logger.With(log.ComponentKey, "encoder", log.PhaseKey, log.PhasePreprocessing)
	enc := &Encoded{
		Frame:    frame,
		Encoders: make(map[string]*preprocessing.LabelEncoder),
		Scalers:  make(map[string]*preprocessing.StandardScaler),
	}

	for _, name := range p.cfg.Data.CategoricalColumns {
		col, err := frame.Column(name)
		if err != nil {
			l.Warn("categorical column not found; skipping", log.ColumnKey, name)
			continue
		}
		if col.Kind != dataset.Categorical {
			l.Warn("column is already numeric; skipping label encoding", log.ColumnKey, name)
			continue
		}
		le := preprocessing.NewLabelEncoder()
		codes, err := le.FitTransform(col.Strings)
		if err != nil {
			return nil, errors.Wrapf(err, "encode column %q", name)
		}
		if err := frame.SetFloats(name, codes); err != nil {
			return nil, err
		}
		enc.Encoders[name] = le
		l.Debug("column encoded", log.ColumnKey, name, log.ClassesKey, len(le.Classes()))
	}

	if p.cfg.Split.ScaleAfterSplit {
		return enc, nil
	}
	for _, name := range p.cfg.Data.ContinuousColumns {
		col, err := frame.Column(name)
		if err != nil {
			l.Warn("continuous column not found; skipping", log.ColumnKey, name)
			continue
		}
		if col.Kind != dataset.Continuous {
			return nil, errors.NewValueError("Encode", "column "+name+" is not numeric")
		}
		s := preprocessing.NewStandardScalerDefault()
		if err := s.Fit(mat.NewDense(len(col.Floats), 1, slices.Clone(col.Floats))); err != nil {
			return nil, errors.Wrapf(err, "scale column %q", name)
		}
		scaled, err := s.TransformColumn(col.Floats)
		if err != nil {
			return nil, errors.Wrapf(err, "scale column %q", name)
		}
		if err := frame.SetFloats(name, scaled); err != nil {
			return nil, err
		}
		enc.Scalers[name] = s
		l.Debug("column standardised", log.ColumnKey, name, log.OperationKey, log.OperationFitTransform)
	}
	return enc, nil
}

// Split is the feature/label separation plus the train/test partition.
type Split struct {
	Features  []string
	Partition *model_selection.Partition
}

// Split separates the label column and partitions the rows. A missing
// label column is fatal.
func (p *Pipeline) Split(enc *Encoded) (*Split, error) {
	l := p.logger.With(log.ComponentKey, "splitter")
	label := p.cfg.Data.LabelColumn
	if !enc.Frame.Has(label) {
		return nil, errors.NewColumnNotFoundError("split", label)
	}
	features, err := enc.Frame.Drop(label)
	if err != nil {
		return nil, err
	}
	X, err := features.Matrix()
	if err != nil {
		return nil, err
	}
	y, err := enc.Frame.ColumnVector(label)
	if err != nil {
		return nil, err
	}
	part, err := model_selection.TrainTestSplit(X, y, p.cfg.Split.TestSize, p.cfg.Split.RandomState)
	if err != nil {
		return nil, err
	}

	names := features.Names()
	if p.cfg.Split.ScaleAfterSplit {
		if err := scaleAfterSplit(enc, part, names, p.cfg.Data.ContinuousColumns); err != nil {
			return nil, err
		}
	}

	l.Info("train/test split",
		log.TrainSamplesKey, len(part.TrainIdx),
		log.TestSamplesKey, len(part.TestIdx),
		log.FeaturesKey, len(names),
		log.RandomSeedKey, p.cfg.Split.RandomState,
	)
	return &Split{Features: names, Partition: part}, nil
}

// scaleAfterSplit fits each continuous column's scaler on the training rows
// only and applies it to both partitions.
func scaleAfterSplit(enc *Encoded, part *model_selection.Partition, features, continuous []string) error {
	for _, name := range continuous {
		j := slices.Index(features, name)
		if j < 0 {
			continue
		}
		train := mat.Col(nil, j, part.XTrain)
		s := preprocessing.NewStandardScalerDefault()
		if err := s.Fit(mat.NewDense(len(train), 1, slices.Clone(train))); err != nil {
			return errors.Wrapf(err, "scale column %q", name)
		}
		scaledTrain, err := s.TransformColumn(train)
		if err != nil {
			return errors.Wrapf(err, "scale column %q", name)
		}
		scaledTest, err := s.TransformColumn(mat.Col(nil, j, part.XTest))
		if err != nil {
			return errors.Wrapf(err, "scale column %q", name)
		}
		part.XTrain.SetCol(j, scaledTrain)
		part.XTest.SetCol(j, scaledTest)
		enc.Scalers[name] = s
	}
	return nil
}

// Tune runs the grid search over the training partition.
func (p *Pipeline) Tune(ctx context.Context, split *Split) (*model_selection.GridSearchCV, error) {
	l := p.logger.With(log.ComponentKey, "tuner", log.PhaseKey, log.PhaseTraining)
	rf := ensemble.NewRandomForestClassifier(ensemble.WithRandomState(p.cfg.Model.RandomState))
	gs := model_selection.NewGridSearchCV(rf, ParamGrid(p.cfg.Search.ParamGrid),
		model_selection.WithCV(p.cfg.Search.CV),
		model_selection.WithNJobs(p.cfg.Search.NJobs),
		model_selection.WithLogger(l),
	)
	if err := gs.Fit(ctx, split.Partition.XTrain, split.Partition.YTrain); err != nil {
		return nil, err
	}
	return gs, nil
}

// ParamGrid converts the configured grid to the search's form. A max_depth
// of 0 and an empty or "None" max_features become nil.
func ParamGrid(g config.ParamGrid) model_selection.ParamGrid {
	ints := func(values []int, zeroIsNone bool) []interface{} {
		out := make([]interface{}, len(values))
		for i, v := range values {
			if zeroIsNone && v == 0 {
				out[i] = nil
				continue
			}
			out[i] = v
		}
		return out
	}
	features := make([]interface{}, len(g.MaxFeatures))
	for i, v := range g.MaxFeatures {
		if v == "" || v == "None" {
			features[i] = nil
			continue
		}
		features[i] = v
	}
	return model_selection.ParamGrid{
		"n_estimators":      ints(g.NEstimators, false),
		"max_depth":         ints(g.MaxDepth, true),
		"min_samples_split": ints(g.MinSamplesSplit, false),
		"min_samples_leaf":  ints(g.MinSamplesLeaf, false),
		"max_features":      features,
	}
}
