package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// 文字列ラベルを 0..k-1 の整数コードに変換する。
// コードはソート済みのユニーク値の順に割り当てられる
type LabelEncoder struct {
	state *model.StateManager

	classes_ []string
	index    map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewLabelEncoder()
//	codes, err := enc.FitTransform([]string{"No", "Yes", "No"})
//	// codes == [0 1 0]
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はラベルの一覧を学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{}, 8)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	e.classes_ = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}

	e.state.SetDimensions(1, len(labels))
	e.state.SetFitted()
	return nil
}

// Transform はラベルを整数コードに変換する
// 学習時に見ていないラベルはエラー
func (e *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	codes := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform",
				fmt.Sprintf("y contains previously unseen label %q", l))
		}
		codes[i] = float64(code)
	}
	return codes, nil
}

// FitTransform は学習と変換を同時に行う
func (e *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if err := e.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.classes_) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %v is not in [0, %d)", c, len(e.classes_)))
		}
		labels[i] = e.classes_[k]
	}
	return labels, nil
}

// Classes は学習したラベルをコード順で返す
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes_))
	copy(out, e.classes_)
	return out
}

// IsFitted は学習済みかどうかを返す
func (e *LabelEncoder) IsFitted() bool {
	return e.state.IsFitted()
}

// String はエンコーダーの文字列表現を返す
func (e *LabelEncoder) String() string {
	if !e.state.IsFitted() {
		return "LabelEncoder()"
	}
	return fmt.Sprintf("LabelEncoder(classes=%v)", e.classes_)
}
