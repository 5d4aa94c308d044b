// Package ensemble implements a random forest classifier compatible with
// scikit-learn's RandomForestClassifier.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/core/parallel"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/sklearn/tree"
)

// RandomForestClassifier is a bagged ensemble of CART trees. Each tree is
// grown on a bootstrap sample with a random feature subset per split, and
// predictions average the trees' class probabilities.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int         // 0 means None
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     interface{} // "sqrt" by default
	bootstrap       bool
	randomState     int64
	nJobs           int

	// Learned attributes
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []float64
	nFeatures_          int
	featureImportances_ []float64
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// NewRandomForestClassifier はランダムフォレスト分類器を作成する
//
// デフォルトは scikit-learn と同じ: n_estimators=100, criterion="gini",
// max_depth=None, min_samples_split=2, min_samples_leaf=1,
// max_features="sqrt", bootstrap=true
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators は木の本数を設定する
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion は分割基準を設定する
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth は木の最大深さを設定する。0 は無制限
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesSplit sets min_samples_split.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets max_features (nil, "sqrt", "log2", "auto", int or float64).
func WithMaxFeatures(v interface{}) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = v }
}

// WithBootstrap は bootstrap サンプリングの有無を設定する
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs は木を並列に学習するワーカー数を設定する。0以下はCPUコア数
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

func (rf *RandomForestClassifier) validate() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	return nil
}

// Fit は bootstrap サンプルごとに決定木を学習する
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if _, err := tree.ResolveMaxFeatures(rf.maxFeatures, nFeatures); err != nil {
		return err
	}
	if rf.maxFeatures == "auto" {
		errors.Warn(errors.NewDeprecationWarning("max_features", "auto", "sqrt"))
	}

	rf.state.Reset()

	// 全ての木のシードを先に引いておく（並列実行でも結果が変わらない）
	rng := rand.New(rand.NewPCG(uint64(rf.randomState), uint64(rf.randomState)))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Int64N(math.MaxInt32)
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.Parallelize(rf.nEstimators, rf.nJobs, func(start, end int) {
		for i := start; i < end; i++ {
			trees[i], errs[i] = rf.fitTree(X, y, nSamples, seeds[i])
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "RandomForestClassifier.Fit: tree %d", i)
		}
	}

	rf.estimators_ = trees
	rf.classes_ = trees[0].Classes()
	rf.nFeatures_ = nFeatures
	rf.featureImportances_ = rf.meanImportances()

	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	return nil
}

func (rf *RandomForestClassifier) fitTree(X, y mat.Matrix, nSamples int, seed int64) (t *tree.DecisionTreeClassifier, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.fitTree")

	t = tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(rf.maxFeatures),
		tree.WithRandomState(seed),
	)

	var weights []float64
	if rf.bootstrap {
		// 復元抽出の回数をサンプル重みとして渡す
		r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
		weights = make([]float64, nSamples)
		for i := 0; i < nSamples; i++ {
			weights[r.IntN(nSamples)]++
		}
	}
	if err := t.FitWeighted(X, y, weights); err != nil {
		return nil, err
	}
	return t, nil
}

// meanImportances averages the normalised importances of trees that split at
// least once and renormalises the result.
func (rf *RandomForestClassifier) meanImportances() []float64 {
	imp := make([]float64, rf.nFeatures_)
	used := 0
	for _, t := range rf.estimators_ {
		if t.NodeCount() <= 1 {
			continue
		}
		used++
		for j, v := range t.GetFeatureImportances() {
			imp[j] += v
		}
	}
	if used == 0 {
		return imp
	}
	total := 0.0
	for j := range imp {
		imp[j] /= float64(used)
		total += imp[j]
	}
	for j := range imp {
		imp[j] /= total
	}
	return imp
}

// PredictProba は全ての木のクラス確率の平均を返す
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	sum := mat.NewDense(nSamples, len(rf.classes_), nil)
	for _, t := range rf.estimators_ {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict は平均確率が最大のクラスを返す
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, rf.classes_[best])
	}
	return predictions, nil
}

// Score は正解率を返す。未学習や次元不一致の場合は 0
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// FeatureImportances returns the MDI importance of every input feature.
// The values are non-negative and sum to 1 unless no tree split at all.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return slices.Clone(rf.featureImportances_), nil
}

// Estimators は学習済みの木を返す
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return slices.Clone(rf.estimators_)
}

// Classes は学習時に見たクラスラベルをソート順で返す
func (rf *RandomForestClassifier) Classes() []float64 { return slices.Clone(rf.classes_) }

// IsFitted は学習済みかどうかを返す
func (rf *RandomForestClassifier) IsFitted() bool { return rf.state.IsFitted() }

// GetParams はハイパーパラメータを scikit-learn の名前で返す
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	var maxDepth interface{}
	if rf.maxDepth > 0 {
		maxDepth = rf.maxDepth
	}
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーはエラー
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = tree.RequiredInt(key, value)
		case "criterion":
			s, ok := value.(string)
			if !ok {
				err = errors.NewValidationError(key, "must be a string", value)
			}
			rf.criterion = s
		case "max_depth":
			rf.maxDepth, err = tree.OptionalInt(key, value)
		case "min_samples_split":
			rf.minSamplesSplit, err = tree.RequiredInt(key, value)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = tree.RequiredInt(key, value)
		case "max_features":
			rf.maxFeatures = value
		case "bootstrap":
			b, ok := value.(bool)
			if !ok {
				err = errors.NewValidationError(key, "must be a bool", value)
			}
			rf.bootstrap = b
		case "random_state":
			var n int
			n, err = tree.RequiredInt(key, value)
			rf.randomState = int64(n)
		case "n_jobs":
			rf.nJobs, err = tree.RequiredInt(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	rf.state.Reset()
	return nil
}

// CloneClassifier returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) CloneClassifier() model.Classifier {
	clone := *rf
	clone.state = model.NewStateManager()
	clone.estimators_ = nil
	clone.classes_ = nil
	clone.featureImportances_ = nil
	return &clone
}

// String returns the estimator in scikit-learn repr style.
func (rf *RandomForestClassifier) String() string {
	depth := "None"
	if rf.maxDepth > 0 {
		depth = fmt.Sprint(rf.maxDepth)
	}
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_depth=%s, min_samples_split=%d, min_samples_leaf=%d, max_features=%v, random_state=%d)",
		rf.nEstimators, depth, rf.minSamplesSplit, rf.minSamplesLeaf, rf.maxFeatures, rf.randomState)
}

var (
	_ model.Classifier         = (*RandomForestClassifier)(nil)
	_ model.FeatureImportancer = (*RandomForestClassifier)(nil)
)
