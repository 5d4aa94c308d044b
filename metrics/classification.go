// Package metrics provides scikit-learn compatible classification metrics:
// accuracy, confusion matrix, per-class precision/recall/F1 and the
// classification report text.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkVectors("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	n := yTrue.Len()
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は行列形式 (n×1) の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ConfusionMatrix は混同行列
// Counts[i][j] は真のラベルが Labels[i]、予測が Labels[j] のサンプル数
type ConfusionMatrix struct {
	Labels []float64
	Counts [][]int
}

// NewConfusionMatrix は混同行列を計算する
// ラベルは yTrue と yPred に現れる値の和集合をソートしたもの
func NewConfusionMatrix(yTrue, yPred *mat.VecDense) (*ConfusionMatrix, error) {
	if err := checkVectors("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, err
	}
	labels := uniqueLabels(yTrue, yPred)
	return NewConfusionMatrixWithLabels(yTrue, yPred, labels)
}

// NewConfusionMatrixWithLabels は指定したラベル順で混同行列を計算する
// labels に含まれない値のサンプルは数えない
func NewConfusionMatrixWithLabels(yTrue, yPred *mat.VecDense, labels []float64) (*ConfusionMatrix, error) {
	if err := checkVectors("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}

	pos := make(map[float64]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := 0; i < yTrue.Len(); i++ {
		ti, ok1 := pos[yTrue.AtVec(i)]
		pi, ok2 := pos[yPred.AtVec(i)]
		if ok1 && ok2 {
			counts[ti][pi]++
		}
	}
	return &ConfusionMatrix{Labels: append([]float64(nil), labels...), Counts: counts}, nil
}

// Total は全サンプル数を返す
func (cm *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range cm.Counts {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Accuracy は対角成分から正解率を計算する
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	diag := 0
	for i := range cm.Counts {
		diag += cm.Counts[i][i]
	}
	return float64(diag) / float64(total)
}

// Dense は混同行列を gonum の行列として返す（ヒートマップ描画用）
func (cm *ConfusionMatrix) Dense() *mat.Dense {
	k := len(cm.Labels)
	d := mat.NewDense(k, k, nil)
	for i, row := range cm.Counts {
		for j, v := range row {
			d.Set(i, j, float64(v))
		}
	}
	return d
}

// String は numpy 風の表記で混同行列を返す
//
//	[[25  2]
//	 [ 1 32]]
func (cm *ConfusionMatrix) String() string {
	width := 1
	for _, row := range cm.Counts {
		for _, v := range row {
			width = max(width, len(fmt.Sprint(v)))
		}
	}
	var b strings.Builder
	b.WriteString("[")
	for i, row := range cm.Counts {
		if i > 0 {
			b.WriteString("\n ")
		}
		b.WriteString("[")
		for j, v := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%*d", width, v)
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

// PRFS はクラスごとの適合率・再現率・F1・サポート
type PRFS struct {
	Labels    []float64
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int
}

// PrecisionRecallFSupport はクラスごとの指標を計算する
// 分母が0になる指標は0とし、UndefinedMetricWarning を発行する
func PrecisionRecallFSupport(yTrue, yPred *mat.VecDense) (*PRFS, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return prfsFromConfusion(cm), nil
}

func prfsFromConfusion(cm *ConfusionMatrix) *PRFS {
	k := len(cm.Labels)
	res := &PRFS{
		Labels:    cm.Labels,
		Precision: make([]float64, k),
		Recall:    make([]float64, k),
		F1:        make([]float64, k),
		Support:   make([]int, k),
	}

	var noPred, noTrue, noF bool
	for c := 0; c < k; c++ {
		tp := cm.Counts[c][c]
		predicted, actual := 0, 0
		for i := 0; i < k; i++ {
			predicted += cm.Counts[i][c]
			actual += cm.Counts[c][i]
		}
		res.Support[c] = actual

		if predicted == 0 {
			noPred = true
		} else {
			res.Precision[c] = float64(tp) / float64(predicted)
		}
		if actual == 0 {
			noTrue = true
		} else {
			res.Recall[c] = float64(tp) / float64(actual)
		}
		// F1 = 2tp / (2tp + fp + fn)
		if denom := predicted + actual; denom == 0 {
			noF = true
		} else {
			res.F1[c] = 2 * float64(tp) / float64(denom)
		}
	}

	if noPred {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples in some labels", 0))
	}
	if noTrue {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples in some labels", 0))
	}
	if noF {
		errors.Warn(errors.NewUndefinedMetricWarning("f1-score", "no true nor predicted samples in some labels", 0))
	}
	return res
}

// ReportRow は分類レポートの1行
type ReportRow struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report は scikit-learn の classification_report 相当
type Report struct {
	Classes     []ReportRow
	Accuracy    float64
	MacroAvg    ReportRow
	WeightedAvg ReportRow
	Digits      int
}

// ClassificationReport は分類レポートを作成する
//
// targetNames はラベル（ソート順）ごとの表示名。nil の場合はラベル値をそのまま使う。
// digits は小数点以下の桁数（scikit-learn のデフォルトは 2）
func ClassificationReport(yTrue, yPred *mat.VecDense, targetNames []string, digits int) (*Report, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return reportFromConfusion(cm, targetNames, digits)
}

// ClassificationReportWithLabels は labels の順で全クラスの行を出す
// テストデータに現れないクラスも support 0 の行になる
func ClassificationReportWithLabels(yTrue, yPred *mat.VecDense, labels []float64, targetNames []string, digits int) (*Report, error) {
	cm, err := NewConfusionMatrixWithLabels(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	return reportFromConfusion(cm, targetNames, digits)
}

func reportFromConfusion(cm *ConfusionMatrix, targetNames []string, digits int) (*Report, error) {
	if targetNames != nil && len(targetNames) != len(cm.Labels) {
		return nil, errors.NewValueError("ClassificationReport",
			fmt.Sprintf("number of classes, %d, does not match size of target_names, %d", len(cm.Labels), len(targetNames)))
	}
	if digits <= 0 {
		digits = 2
	}

	prfs := prfsFromConfusion(cm)
	rep := &Report{Accuracy: cm.Accuracy(), Digits: digits}

	total := 0
	for _, s := range prfs.Support {
		total += s
	}
	k := float64(len(cm.Labels))
	macro := ReportRow{Name: "macro avg", Support: total}
	weighted := ReportRow{Name: "weighted avg", Support: total}
	for i, l := range cm.Labels {
		name := fmt.Sprint(l)
		if targetNames != nil {
			name = targetNames[i]
		}
		rep.Classes = append(rep.Classes, ReportRow{
			Name:      name,
			Precision: prfs.Precision[i],
			Recall:    prfs.Recall[i],
			F1:        prfs.F1[i],
			Support:   prfs.Support[i],
		})

		macro.Precision += prfs.Precision[i] / k
		macro.Recall += prfs.Recall[i] / k
		macro.F1 += prfs.F1[i] / k
		if total > 0 {
			w := float64(prfs.Support[i]) / float64(total)
			weighted.Precision += prfs.Precision[i] * w
			weighted.Recall += prfs.Recall[i] * w
			weighted.F1 += prfs.F1[i] * w
		}
	}
	rep.MacroAvg = macro
	rep.WeightedAvg = weighted
	return rep, nil
}

// String は scikit-learn と同じレイアウトでレポートを整形する
func (r *Report) String() string {
	width := len("weighted avg")
	for _, row := range r.Classes {
		width = max(width, len(row.Name))
	}
	width = max(width, r.Digits)

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	writeRow := func(row ReportRow) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n",
			width, row.Name, r.Digits, row.Precision, r.Digits, row.Recall, r.Digits, row.F1, row.Support)
	}
	for _, row := range r.Classes {
		writeRow(row)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", r.Digits, r.Accuracy, r.MacroAvg.Support)
	writeRow(r.MacroAvg)
	writeRow(r.WeightedAvg)
	return b.String()
}

func checkVectors(op string, yTrue, yPred *mat.VecDense) error {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != yTrue.Len() {
		return errors.NewDimensionError(op, yTrue.Len(), yPred.Len(), 0)
	}
	return nil
}

func columnVectors(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)), nil
}

func uniqueLabels(vs ...*mat.VecDense) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[v.AtVec(i)] = struct{}{}
		}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels
}
