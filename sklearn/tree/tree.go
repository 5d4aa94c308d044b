// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier. It is the base learner of the
// random forest in sklearn/ensemble.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

const (
	// featureThreshold は同じ値とみなす特徴量の差（scikit-learn と同じ値）
	featureThreshold = 1e-7
	epsilon          = 1e-12
)

// leaf marks a node without children.
const leaf = -1

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // 重み付きクラス別サンプル数
	impurity  float64
	nSamples  int
	weighted  float64
	depth     int
}

// DecisionTreeClassifier is a CART classification tree.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string      // "gini" or "entropy"
	maxDepth        int         // 0 means unlimited
	minSamplesSplit int         // Minimum samples required to split an internal node
	minSamplesLeaf  int         // Minimum samples required at a leaf
	maxFeatures     interface{} // nil, "sqrt", "log2", "auto", int or float64
	randomState     int64

	// Learned attributes
	nodes               []node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	maxFeatures_        int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier は新しい決定木分類器を作成する
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion は分割基準を設定する ("gini" or "entropy")
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth は木の最大深さを設定する。0 は無制限
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit は内部ノードを分割するのに必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures は各分割で考慮する特徴量の数を設定する
func WithMaxFeatures(v interface{}) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = v }
}

// WithRandomState は特徴量の走査順を決める乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// ResolveMaxFeatures converts a max_features setting into a feature count
// for nFeatures input columns. "auto" is resolved like "sqrt".
func ResolveMaxFeatures(v interface{}, nFeatures int) (int, error) {
	switch mf := v.(type) {
	case nil:
		return nFeatures, nil
	case string:
		switch mf {
		case "", "None":
			return nFeatures, nil
		case "sqrt", "auto":
			return max(1, int(math.Sqrt(float64(nFeatures)))), nil
		case "log2":
			return max(1, int(math.Log2(float64(nFeatures)))), nil
		}
	case int:
		if mf > 0 && mf <= nFeatures {
			return mf, nil
		}
	case float64:
		if mf > 0 && mf <= 1 {
			return max(1, int(mf*float64(nFeatures))), nil
		}
	}
	return 0, errors.NewValidationError("max_features",
		fmt.Sprintf("must be None, 'sqrt', 'log2', an int in [1, %d] or a float in (0, 1]", nFeatures), v)
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 1 or None", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	return nil
}

// Fit はモデルを訓練データで学習させる
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted fits the tree with per-sample weights. Rows with zero weight
// do not take part in the tree but their labels still define classes_, so
// trees grown on bootstrap samples share the forest's class set.
// A nil sampleWeight means every row has weight 1.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}
	maxFeatures, err := ResolveMaxFeatures(dt.maxFeatures, nFeatures)
	if err != nil {
		return err
	}

	// クラスを抽出してインデックスに変換
	labels := mat.Col(nil, 0, y)
	classes := slices.Clone(labels)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	yIdx := make([]int, nSamples)
	for i, l := range labels {
		yIdx[i], _ = slices.BinarySearch(classes, l)
	}

	// 列ごとに連続したデータを用意する（分割探索はこの形の方が速い）
	cols := make([][]float64, nFeatures)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
		if err := errors.CheckNumericalStability("DecisionTreeClassifier.Fit", cols[j]); err != nil {
			return err
		}
	}

	samples := make([]int, 0, nSamples)
	weights := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		weights[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "sample weights are all zero")
	}

	dt.state.Reset()
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.nFeatures_ = nFeatures
	dt.maxFeatures_ = maxFeatures

	b := &builder{
		dt:      dt,
		cols:    cols,
		y:       yIdx,
		w:       weights,
		rng:     rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState))),
		feats:   make([]int, nFeatures),
		nClass:  len(classes),
		scratch: make([]int, len(samples)),
	}
	for j := range b.feats {
		b.feats[j] = j
	}
	dt.nodes = dt.nodes[:0]
	b.build(samples, 0)

	dt.computeSummary()
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

type builder struct {
	dt      *DecisionTreeClassifier
	cols    [][]float64
	y       []int
	w       []float64
	rng     *rand.Rand
	feats   []int
	nClass  int
	scratch []int
}

type split struct {
	feature   int
	threshold float64
	pos       int // 左側のサンプル数（ソート済み samples 内の位置）
	proxy     float64
}

// build grows the subtree for samples depth-first and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	value := make([]float64, b.nClass)
	var weighted float64
	for _, s := range samples {
		value[b.y[s]] += b.w[s]
		weighted += b.w[s]
	}
	impurity := b.impurity(value, weighted)

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{
		feature:  leaf,
		left:     leaf,
		right:    leaf,
		value:    value,
		impurity: impurity,
		nSamples: len(samples),
		weighted: weighted,
		depth:    depth,
	})

	n := len(samples)
	if (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		impurity <= epsilon {
		return id
	}

	best, ok := b.bestSplit(samples, value, weighted)
	if !ok {
		return id
	}

	// 最良の特徴量で並べ替えて左右に分ける
	col := b.cols[best.feature]
	sortByFeature(samples, col)
	left := slices.Clone(samples[:best.pos])
	right := slices.Clone(samples[best.pos:])

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	nd := &dt.nodes[id]
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = l
	nd.right = r
	return id
}

// bestSplit searches a random subset of max_features features for the split
// with the lowest weighted child impurity. Constant features do not count
// toward the budget, so a valid split is found whenever one exists.
func (b *builder) bestSplit(samples []int, total []float64, weighted float64) (split, bool) {
	dt := b.dt
	best := split{proxy: math.Inf(-1)}
	found := false

	b.rng.Shuffle(len(b.feats), func(i, j int) { b.feats[i], b.feats[j] = b.feats[j], b.feats[i] })

	work := b.scratch[:len(samples)]
	copy(work, samples)
	leftVal := make([]float64, b.nClass)
	rightVal := make([]float64, b.nClass)

	visited := 0
	for _, f := range b.feats {
		if visited >= dt.maxFeatures_ && found {
			break
		}
		col := b.cols[f]
		sortByFeature(work, col)
		if col[work[len(work)-1]] <= col[work[0]]+featureThreshold {
			continue // 定数特徴量
		}
		visited++

		clear(leftVal)
		var leftW float64
		for i, s := range work[:len(work)-1] {
			leftVal[b.y[s]] += b.w[s]
			leftW += b.w[s]

			cur, next := col[s], col[work[i+1]]
			if next <= cur+featureThreshold {
				continue
			}
			nLeft := i + 1
			if nLeft < dt.minSamplesLeaf || len(work)-nLeft < dt.minSamplesLeaf {
				continue
			}
			rightW := weighted - leftW
			for c := range rightVal {
				rightVal[c] = total[c] - leftVal[c]
			}

			proxy := -leftW*b.impurity(leftVal, leftW) - rightW*b.impurity(rightVal, rightW)
			if proxy > best.proxy {
				threshold := cur/2 + next/2
				if threshold == next || math.IsInf(threshold, 0) {
					threshold = cur
				}
				best = split{feature: f, threshold: threshold, pos: nLeft, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) impurity(value []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch b.dt.criterion {
	case "entropy":
		e := 0.0
		for _, v := range value {
			if v > 0 {
				p := v / total
				e -= p * math.Log2(p)
			}
		}
		return e
	default:
		g := 1.0
		for _, v := range value {
			p := v / total
			g -= p * p
		}
		return g
	}
}

// sortByFeature orders samples by col, breaking ties by sample index so the
// split search is deterministic.
func sortByFeature(samples []int, col []float64) {
	sort.Slice(samples, func(i, j int) bool {
		a, b := col[samples[i]], col[samples[j]]
		if a != b {
			return a < b
		}
		return samples[i] < samples[j]
	})
}

// computeSummary fills depth, leaf count and MDI feature importances.
func (dt *DecisionTreeClassifier) computeSummary() {
	dt.depth_ = 0
	dt.nLeaves_ = 0
	imp := make([]float64, dt.nFeatures_)
	for _, nd := range dt.nodes {
		dt.depth_ = max(dt.depth_, nd.depth)
		if nd.feature == leaf {
			dt.nLeaves_++
			continue
		}
		l, r := dt.nodes[nd.left], dt.nodes[nd.right]
		imp[nd.feature] += nd.weighted*nd.impurity - l.weighted*l.impurity - r.weighted*r.impurity
	}

	total := 0.0
	for j := range imp {
		imp[j] /= dt.nodes[0].weighted
		total += imp[j]
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	dt.featureImportances_ = imp
}

func (dt *DecisionTreeClassifier) leafFor(X mat.Matrix, i int) *node {
	nd := &dt.nodes[0]
	for nd.feature != leaf {
		if X.At(i, nd.feature) <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

// PredictProba returns class probabilities (n_samples × n_classes), columns
// in the order of Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		nd := dt.leafFor(X, i)
		for c, v := range nd.value {
			probas.Set(i, c, v/nd.weighted)
		}
	}
	return probas, nil
}

// Predict は入力データに対するクラスを予測する
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, dt.classes_[argmax(mat.Row(nil, i, probas))])
	}
	return predictions, nil
}

// Score は正解率を返す。未学習や次元不一致の場合は 0
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
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

// GetFeatureImportances は正規化された不純度減少量 (MDI) を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return slices.Clone(dt.featureImportances_)
}

// FeatureImportances implements model.FeatureImportancer.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return dt.GetFeatureImportances(), nil
}

// GetDepth は木の深さを返す（根のみの場合は0）
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// NodeCount は全ノード数を返す
func (dt *DecisionTreeClassifier) NodeCount() int { return len(dt.nodes) }

// Classes は学習時に見たクラスラベルをソート順で返す
func (dt *DecisionTreeClassifier) Classes() []float64 { return slices.Clone(dt.classes_) }

// IsFitted は学習済みかどうかを返す
func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

// GetParams はハイパーパラメータを返す
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	var maxDepth interface{}
	if dt.maxDepth > 0 {
		maxDepth = dt.maxDepth
	}
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams はハイパーパラメータを設定する。max_depth=nil は無制限
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = s
		case "max_depth":
			d, err := OptionalInt(key, value)
			if err != nil {
				return err
			}
			dt.maxDepth = d
		case "min_samples_split":
			n, err := RequiredInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesSplit = n
		case "min_samples_leaf":
			n, err := RequiredInt(key, value)
			if err != nil {
				return err
			}
			dt.minSamplesLeaf = n
		case "max_features":
			dt.maxFeatures = value
		case "random_state":
			n, err := RequiredInt(key, value)
			if err != nil {
				return err
			}
			dt.randomState = int64(n)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	dt.state.Reset()
	return nil
}

// OptionalInt converts a parameter value that may be None (nil) to an int,
// mapping nil to 0.
func OptionalInt(key string, value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	return RequiredInt(key, value)
}

// RequiredInt converts an integer parameter value of any integer type.
func RequiredInt(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, errors.NewValidationError(key, "must be an integer", value)
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
