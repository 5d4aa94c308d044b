package metrics

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
		{
			name:    "Length mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracyMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{0, 1, 1, 0})
	yPred := mat.NewDense(4, 1, []float64{0, 1, 0, 0})

	got, err := AccuracyMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("AccuracyMatrix: %v", err)
	}
	if got != 0.75 {
		t.Errorf("AccuracyMatrix() = %v, want 0.75", got)
	}

	if _, err := AccuracyMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for non column-vector input")
	}
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 1, 1, 1, 0})
	yPred := mat.NewVecDense(6, []float64{0, 1, 1, 1, 0, 0})

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewConfusionMatrix: %v", err)
	}

	want := [][]int{{2, 1}, {1, 2}}
	for i := range want {
		for j := range want[i] {
			if cm.Counts[i][j] != want[i][j] {
				t.Fatalf("Counts = %v, want %v", cm.Counts, want)
			}
		}
	}

	if cm.Total() != 6 {
		t.Errorf("Total() = %d, want 6", cm.Total())
	}

	acc, _ := Accuracy(yTrue, yPred)
	if math.Abs(cm.Accuracy()-acc) > 1e-12 {
		t.Errorf("diagonal accuracy %v != Accuracy %v", cm.Accuracy(), acc)
	}

	if got := cm.String(); got != "[[2 1]\n [1 2]]" {
		t.Errorf("String() = %q", got)
	}
	if d := cm.Dense(); d.At(1, 0) != 1 {
		t.Errorf("Dense()[1][0] = %v, want 1", d.At(1, 0))
	}
}

func TestConfusionMatrix_LabelsFromPredictions(t *testing.T) {
	// 予測にしか現れないラベルも行列に含まれる
	yTrue := mat.NewVecDense(3, []float64{0, 0, 0})
	yPred := mat.NewVecDense(3, []float64{0, 1, 0})

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if len(cm.Labels) != 2 {
		t.Fatalf("Labels = %v, want [0 1]", cm.Labels)
	}
	if cm.Counts[1][0] != 0 || cm.Counts[0][1] != 1 {
		t.Errorf("Counts = %v", cm.Counts)
	}
}

func TestPrecisionRecallFSupport_ZeroDivision(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	// クラス1は一度も予測されない
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yPred := mat.NewVecDense(4, []float64{0, 0, 0, 0})

	prfs, err := PrecisionRecallFSupport(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	if prfs.Precision[1] != 0 {
		t.Errorf("precision[1] = %v, want 0", prfs.Precision[1])
	}
	if math.Abs(prfs.Precision[0]-0.5) > 1e-12 || prfs.Recall[0] != 1 {
		t.Errorf("class 0: precision=%v recall=%v", prfs.Precision[0], prfs.Recall[0])
	}
	if math.Abs(prfs.F1[0]-2.0/3.0) > 1e-12 {
		t.Errorf("f1[0] = %v, want 2/3", prfs.F1[0])
	}
	if prfs.Support[0] != 2 || prfs.Support[1] != 2 {
		t.Errorf("support = %v", prfs.Support)
	}

	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	var umw *errors.UndefinedMetricWarning
	if !errors.As(warnings[0], &umw) || umw.Metric != "precision" {
		t.Errorf("unexpected warning %v", warnings[0])
	}
}

func TestClassificationReport(t *testing.T) {
	yTrue := mat.NewVecDense(6, []float64{0, 0, 1, 1, 1, 0})
	yPred := mat.NewVecDense(6, []float64{0, 1, 1, 1, 0, 0})

	rep, err := ClassificationReport(yTrue, yPred, []string{"Negative", "Positive"}, 2)
	if err != nil {
		t.Fatalf("ClassificationReport: %v", err)
	}

	want := "" +
		"              precision    recall  f1-score   support\n" +
		"\n" +
		"    Negative       0.67      0.67      0.67         3\n" +
		"    Positive       0.67      0.67      0.67         3\n" +
		"\n" +
		"    accuracy                           0.67         6\n" +
		"   macro avg       0.67      0.67      0.67         6\n" +
		"weighted avg       0.67      0.67      0.67         6\n"

	if got := rep.String(); got != want {
		t.Errorf("String() mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	if _, err := ClassificationReport(yTrue, yPred, []string{"only"}, 2); err == nil {
		t.Error("expected error for wrong number of target names")
	}
}

func TestClassificationReport_WeightedAverage(t *testing.T) {
	yTrue := mat.NewVecDense(5, []float64{0, 1, 1, 1, 1})
	yPred := mat.NewVecDense(5, []float64{0, 1, 1, 1, 0})

	rep, err := ClassificationReport(yTrue, yPred, nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	// class0: p=0.5 r=1  class1: p=1 r=0.75
	if math.Abs(rep.MacroAvg.Precision-0.75) > 1e-12 {
		t.Errorf("macro precision = %v, want 0.75", rep.MacroAvg.Precision)
	}
	wantWeighted := 0.5*0.2 + 1*0.8
	if math.Abs(rep.WeightedAvg.Precision-wantWeighted) > 1e-12 {
		t.Errorf("weighted precision = %v, want %v", rep.WeightedAvg.Precision, wantWeighted)
	}
	if rep.Classes[0].Name != "0" {
		t.Errorf("default class name = %q, want 0", rep.Classes[0].Name)
	}
	if !strings.Contains(rep.String(), "0.8000") {
		t.Errorf("digits not honoured:\n%s", rep.String())
	}
}

func TestClassificationReportWithLabels_AbsentClass(t *testing.T) {
	errors.SetWarningHandler(func(error) {})

	// ホールドアウトに Negative が一件もない
	yTrue := mat.NewVecDense(3, []float64{1, 1, 1})
	yPred := mat.NewVecDense(3, []float64{1, 0, 1})
	labels := []float64{0, 1}

	cm, err := NewConfusionMatrixWithLabels(yTrue, yPred, labels)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{0, 0}, {1, 2}}
	for i := range want {
		for j := range want[i] {
			if cm.Counts[i][j] != want[i][j] {
				t.Errorf("Counts[%d][%d] = %d, want %d", i, j, cm.Counts[i][j], want[i][j])
			}
		}
	}

	rep, err := ClassificationReportWithLabels(yTrue, yPred, labels, []string{"Negative", "Positive"}, 2)
	if err != nil {
		t.Fatalf("ClassificationReportWithLabels: %v", err)
	}
	if len(rep.Classes) != 2 {
		t.Fatalf("got %d class rows, want 2", len(rep.Classes))
	}
	neg, pos := rep.Classes[0], rep.Classes[1]
	if neg.Name != "Negative" || neg.Support != 0 || neg.Precision != 0 || neg.Recall != 0 {
		t.Errorf("Negative row = %+v", neg)
	}
	if pos.Support != 3 || pos.Precision != 1 || math.Abs(pos.Recall-2.0/3) > 1e-12 || math.Abs(pos.F1-0.8) > 1e-12 {
		t.Errorf("Positive row = %+v", pos)
	}
	if math.Abs(rep.Accuracy-2.0/3) > 1e-12 {
		t.Errorf("Accuracy = %v, want 2/3", rep.Accuracy)
	}

	// 片方のクラスしか現れなくても 2x2 のまま
	same := mat.NewVecDense(2, []float64{1, 1})
	cm, err = NewConfusionMatrixWithLabels(same, same, labels)
	if err != nil {
		t.Fatal(err)
	}
	if len(cm.Counts) != 2 || cm.Counts[1][1] != 2 || cm.Total() != 2 {
		t.Errorf("Counts = %v, want [[0 0] [0 2]]", cm.Counts)
	}

	if _, err := ClassificationReportWithLabels(yTrue, yPred, labels, []string{"only"}, 2); err == nil {
		t.Error("expected error for wrong number of target names")
	}
}

func BenchmarkConfusionMatrix(b *testing.B) {
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		yTrue[i] = float64(i % 2)
		yPred[i] = float64((i / 3) % 2)
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewConfusionMatrix(yTrueVec, yPredVec)
	}
}
