package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/core/parallel"
	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
)

// CVResults holds the per-candidate outcome of a grid search, indexed by
// candidate position in grid order (scikit-learn's cv_results_).
type CVResults struct {
	Params        []map[string]interface{}
	SplitScores   [][]float64 // [candidate][fold]
	MeanTestScore []float64
	StdTestScore  []float64
	RankTestScore []int
	MeanFitTime   []time.Duration
}

// GridSearchCV はハイパーパラメータの全組み合わせを交差検証で評価し、
// 平均スコアが最大の組み合わせで訓練データ全体に再学習する
//
// 各 (候補, fold) の学習は独立したタスクとして最大 NJobs 並列で実行される。
// スコアは (候補, fold) の位置に書き込まれるので、実行順は結果に影響しない
type GridSearchCV struct {
	estimator model.Classifier
	paramGrid ParamGrid
	cv        Splitter
	nJobs     int
	refit     bool
	logger    log.Logger

	state          *model.StateManager
	cvResults_     *CVResults
	bestIndex_     int
	bestParams_    map[string]interface{}
	bestScore_     float64
	bestEstimator_ model.Classifier
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// NewGridSearchCV creates a grid search over paramGrid for estimator.
// Defaults: 5-fold StratifiedKFold without shuffling, one worker, refit.
func NewGridSearchCV(estimator model.Classifier, paramGrid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		estimator: estimator,
		paramGrid: paramGrid,
		cv:        NewStratifiedKFold(5, false, 0),
		nJobs:     1,
		refit:     true,
		state:     model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(gs)
	}
	if gs.logger == nil {
		gs.logger = log.GetLogger()
	}
	return gs
}

// WithCV は層化 k-fold の分割数を設定する
func WithCV(k int) GridSearchOption {
	return func(gs *GridSearchCV) { gs.cv = NewStratifiedKFold(k, false, 0) }
}

// WithSplitter は任意の分割器を設定する
func WithSplitter(s Splitter) GridSearchOption {
	return func(gs *GridSearchCV) { gs.cv = s }
}

// WithNJobs は同時に実行する学習の数を設定する。0以下はCPUコア数
func WithNJobs(n int) GridSearchOption {
	return func(gs *GridSearchCV) { gs.nJobs = n }
}

// WithRefit は最良パラメータで再学習するかを設定する
func WithRefit(refit bool) GridSearchOption {
	return func(gs *GridSearchCV) { gs.refit = refit }
}

// WithLogger sets the logger used for progress lines.
func WithLogger(l log.Logger) GridSearchOption {
	return func(gs *GridSearchCV) { gs.logger = l }
}

// foldData holds the materialised rows of one fold. It is shared read-only
// by every candidate evaluated on that fold.
type foldData struct {
	xTrain, yTrain *mat.Dense
	xTest, yTest   *mat.Dense
}

func materialiseFolds(X, y mat.Matrix, folds []Fold) []foldData {
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			xTrain: TakeRows(X, f.TrainIndices),
			yTrain: TakeRows(y, f.TrainIndices),
			xTest:  TakeRows(X, f.TestIndices),
			yTest:  TakeRows(y, f.TestIndices),
		}
	}
	return data
}

// fitAndScore clones prototype, applies params, fits on the fold's training
// rows and returns the accuracy on its test rows. Panics become errors.
func fitAndScore(prototype model.Classifier, params map[string]interface{}, fd foldData, op string) (score float64, elapsed time.Duration, err error) {
	start := time.Now()
	err = errors.SafeExecute(op, func() error {
		est := prototype.CloneClassifier()
		if params != nil {
			if err := est.SetParams(params); err != nil {
				return err
			}
		}
		if err := est.Fit(fd.xTrain, fd.yTrain); err != nil {
			return err
		}
		pred, err := est.Predict(fd.xTest)
		if err != nil {
			return err
		}
		score, err = metrics.AccuracyMatrix(fd.yTest, pred)
		return err
	})
	return score, time.Since(start), err
}

// Fit は全候補を交差検証で評価する
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	if gs.estimator == nil {
		return errors.NewValueError("GridSearchCV.Fit", "estimator is nil")
	}
	if err := gs.paramGrid.Validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if yRows, _ := y.Dims(); yRows != nSamples {
		return errors.NewDimensionError("GridSearchCV.Fit", nSamples, yRows, 0)
	}

	folds, err := gs.cv.Split(X, y)
	if err != nil {
		return errors.Wrap(err, "GridSearchCV.Fit")
	}
	data := materialiseFolds(X, y, folds)
	candidates := gs.paramGrid.Candidates()
	nFolds := len(folds)
	nTasks := len(candidates) * nFolds

	gs.state.Reset()
	gs.logger.Info(fmt.Sprintf("Fitting %d folds for each of %d candidates, totalling %d fits", nFolds, len(candidates), nTasks),
		log.FoldsKey, nFolds,
		log.CandidatesKey, len(candidates),
		log.WorkersKey, parallel.Workers(gs.nJobs),
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)

	scores := make([]float64, nTasks)
	times := make([]time.Duration, nTasks)
	err = parallel.ForEach(ctx, nTasks, gs.nJobs, func(_ context.Context, t int) error {
		ci, fi := t/nFolds, t%nFolds
		op := fmt.Sprintf("GridSearchCV candidate %d fold %d", ci, fi)
		score, elapsed, err := fitAndScore(gs.estimator, candidates[ci], data[fi], op)
		if err != nil {
			return errors.Wrapf(err, "fit %s", FormatParams(candidates[ci]))
		}
		scores[t], times[t] = score, elapsed
		gs.logger.Debug(fmt.Sprintf("[CV %d/%d] END %s; score=%.3f; total time=%.1fs",
			fi+1, nFolds, FormatParams(candidates[ci]), score, elapsed.Seconds()),
			log.CandidateKey, ci,
			log.FoldKey, fi,
			log.ScoreKey, score,
			log.DurationMsKey, elapsed.Milliseconds(),
		)
		return nil
	})
	if err != nil {
		return err
	}

	res := summarise(candidates, scores, times, nFolds)
	best := 0
	for i, r := range res.RankTestScore {
		if r == 1 {
			best = i
			break
		}
	}
	gs.cvResults_ = res
	gs.bestIndex_ = best
	gs.bestParams_ = candidates[best]
	gs.bestScore_ = res.MeanTestScore[best]

	gs.logger.Info("grid search finished",
		log.CandidateKey, best,
		log.MeanScoreKey, gs.bestScore_,
		log.HyperParamsKey, FormatParams(gs.bestParams_),
	)

	if gs.refit {
		est := gs.estimator.CloneClassifier()
		if err := est.SetParams(gs.bestParams_); err != nil {
			return err
		}
		if err := errors.SafeExecute("GridSearchCV refit", func() error { return est.Fit(X, y) }); err != nil {
			return errors.Wrap(err, "refit best estimator")
		}
		gs.bestEstimator_ = est
	}

	gs.state.SetDimensions(nFeatures, nSamples)
	gs.state.SetFitted()
	return nil
}

// summarise computes mean, population std and "min" rank per candidate.
func summarise(candidates []map[string]interface{}, scores []float64, times []time.Duration, nFolds int) *CVResults {
	n := len(candidates)
	res := &CVResults{
		Params:        candidates,
		SplitScores:   make([][]float64, n),
		MeanTestScore: make([]float64, n),
		StdTestScore:  make([]float64, n),
		RankTestScore: make([]int, n),
		MeanFitTime:   make([]time.Duration, n),
	}
	for c := 0; c < n; c++ {
		split := scores[c*nFolds : (c+1)*nFolds]
		res.SplitScores[c] = split

		var sum float64
		var total time.Duration
		for f, s := range split {
			sum += s
			total += times[c*nFolds+f]
		}
		mean := sum / float64(nFolds)
		var sq float64
		for _, s := range split {
			sq += (s - mean) * (s - mean)
		}
		res.MeanTestScore[c] = mean
		res.StdTestScore[c] = math.Sqrt(sq / float64(nFolds))
		res.MeanFitTime[c] = total / time.Duration(nFolds)
	}
	for c := 0; c < n; c++ {
		rank := 1
		for _, other := range res.MeanTestScore {
			if other > res.MeanTestScore[c] {
				rank++
			}
		}
		res.RankTestScore[c] = rank
	}
	return res
}

// BestParams は最良の候補を返す
func (gs *GridSearchCV) BestParams() map[string]interface{} {
	out := make(map[string]interface{}, len(gs.bestParams_))
	for k, v := range gs.bestParams_ {
		out[k] = v
	}
	return out
}

// BestScore は最良候補の平均検証スコアを返す
func (gs *GridSearchCV) BestScore() float64 { return gs.bestScore_ }

// BestIndex は最良候補の grid 内の位置を返す
func (gs *GridSearchCV) BestIndex() int { return gs.bestIndex_ }

// BestEstimator は再学習したモデルを返す（refit=false の場合は nil）
func (gs *GridSearchCV) BestEstimator() model.Classifier { return gs.bestEstimator_ }

// CVResults は全候補の結果を返す
func (gs *GridSearchCV) CVResults() *CVResults { return gs.cvResults_ }

// Predict は最良モデルで予測する
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gs.state.RequireFitted("GridSearchCV", "Predict"); err != nil {
		return nil, err
	}
	if gs.bestEstimator_ == nil {
		return nil, errors.NewValueError("GridSearchCV.Predict", "refit=false; no best estimator is available")
	}
	return gs.bestEstimator_.Predict(X)
}

// CrossValScore evaluates estimator with its current parameters on every
// fold of cv and returns the per-fold accuracy (scikit-learn's cross_val_score).
func CrossValScore(ctx context.Context, estimator model.Classifier, X, y mat.Matrix, cv Splitter, nJobs int) ([]float64, error) {
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, errors.Wrap(err, "CrossValScore")
	}
	data := materialiseFolds(X, y, folds)
	scores := make([]float64, len(folds))
	err = parallel.ForEach(ctx, len(folds), nJobs, func(_ context.Context, i int) error {
		s, _, err := fitAndScore(estimator, nil, data[i], fmt.Sprintf("CrossValScore fold %d", i))
		if err != nil {
			return err
		}
		scores[i] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}
