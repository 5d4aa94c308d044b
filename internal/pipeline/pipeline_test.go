package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diabetes-risk/internal/config"
	"github.com/YuminosukeSato/diabetes-risk/model_selection"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/report"
)

var symptomColumns = []string{
	"Polyuria", "Polydipsia", "sudden weight loss", "weakness",
	"Polyphagia", "Genital thrush", "visual blurring", "Itching",
	"Irritability", "delayed healing", "partial paresis", "muscle stiffness",
	"Alopecia", "Obesity",
}

// fixtureCSV builds a 20-row file in the diabetes dataset layout. Polyuria
// follows the class exactly; the other symptoms cycle independently.
func fixtureCSV(t *testing.T, withClass bool) string {
	t.Helper()
	return fixtureCSVWith(t, withClass, func(i int) bool { return i%2 == 0 })
}

func fixtureCSVWith(t *testing.T, withClass bool, isPositive func(row int) bool) string {
	t.Helper()
	var b strings.Builder
	header := append([]string{"Age", "Gender"}, symptomColumns...)
	if withClass {
		header = append(header, "class")
	}
	b.WriteString(strings.Join(header, ",") + "\n")

	for i := 0; i < 20; i++ {
		positive := isPositive(i)
		row := []string{fmt.Sprint(30 + 2*i), []string{"Male", "Female"}[i%3%2]}
		for j, name := range symptomColumns {
			yes := (i+j)%(j%4+2) == 0
			if name == "Polyuria" {
				yes = positive
			}
			row = append(row, map[bool]string{true: "Yes", false: "No"}[yes])
		}
		if withClass {
			row = append(row, map[bool]string{true: "Positive", false: "Negative"}[positive])
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}

	path := filepath.Join(t.TempDir(), "diabetes.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T, dataPath string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Path = dataPath
	cfg.Report.Show = false
	cfg.Report.HeatmapPath = filepath.Join(t.TempDir(), "cm.png")
	cfg.Search.ParamGrid = config.ParamGrid{
		NEstimators:     []int{5, 10},
		MaxDepth:        []int{0, 3},
		MinSamplesSplit: []int{2},
		MinSamplesLeaf:  []int{1},
		MaxFeatures:     []string{"sqrt"},
	}
	return cfg
}

func quietLogger() *log.TestLogger {
	l, _ := log.NewTestLogger(log.LevelWarn)
	return l
}

type recordingViewer struct {
	paths []string
	err   error
}

func (v *recordingViewer) Show(_ context.Context, path string) error {
	v.paths = append(v.paths, path)
	return v.err
}

func TestRun_TwentyRowScenario(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, true))
	cfg.Search.ParamGrid = config.Default().Search.ParamGrid

	var out bytes.Buffer
	res, err := New(cfg, WithLogger(quietLogger()), WithOutput(&out)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, res.Evaluation.Confusion.Total())
	assert.Len(t, res.Evaluation.Confusion.Counts, 2)
	assert.Len(t, res.Importances, 16)
	assert.InDelta(t, 1.0, res.Importances.Total(), 1e-9)
	for i := 1; i < len(res.Importances); i++ {
		assert.GreaterOrEqual(t, res.Importances[i-1].Importance, res.Importances[i].Importance)
	}

	grid := ParamGrid(cfg.Search.ParamGrid)
	assert.Equal(t, 216, grid.Size())
	assert.True(t, grid.Contains(res.BestParams()), "best params %v not in grid", res.BestParams())
	assert.Equal(t, []string{"Negative", "Positive"}, res.Evaluation.ClassNames)

	info, err := os.Stat(res.HeatmapPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	text := out.String()
	last := -1
	for _, marker := range []string{
		"Data preview:", "Encoded data preview:", "Best parameters:", "Accuracy:",
		"Confusion matrix:", "Classification report:", "Feature importances:",
	} {
		idx := strings.Index(text, marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q", marker)
		assert.Greater(t, idx, last, "%q out of order", marker)
		last = idx
	}
	assert.Contains(t, text, "weighted avg")
}

func TestRun_SingleClassHoldoutKeepsBothClasses(t *testing.T) {
	// rows drawn into the seed-42 holdout are all Positive; the training
	// rows alternate so both classes are learned
	cfgDefaults := config.Default()
	n := 20
	nTest := 6
	perm := model_selection.Permutation(n, cfgDefaults.Split.RandomState)
	inTest := make(map[int]bool, nTest)
	for _, r := range perm[:nTest] {
		inTest[r] = true
	}
	trainPos := make(map[int]bool)
	for k, r := range perm[nTest:] {
		trainPos[r] = k%2 == 0
	}
	path := fixtureCSVWith(t, true, func(i int) bool { return inTest[i] || trainPos[i] })

	cfg := testConfig(t, path)
	var out bytes.Buffer
	res, err := New(cfg, WithLogger(quietLogger()), WithOutput(&out)).Run(context.Background())
	require.NoError(t, err)

	cm := res.Evaluation.Confusion
	assert.Equal(t, []float64{0, 1}, cm.Labels)
	require.Len(t, cm.Counts, 2)
	assert.Equal(t, []int{0, 0}, cm.Counts[0], "no Negative rows in the holdout")
	assert.Equal(t, 6, cm.Counts[1][0]+cm.Counts[1][1])
	assert.Equal(t, []string{"Negative", "Positive"}, res.Evaluation.ClassNames)

	require.Len(t, res.Evaluation.Report.Classes, 2)
	assert.Equal(t, "Negative", res.Evaluation.Report.Classes[0].Name)
	assert.Equal(t, 0, res.Evaluation.Report.Classes[0].Support)
	assert.Equal(t, 6, res.Evaluation.Report.Classes[1].Support)

	info, err := os.Stat(res.HeatmapPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_MissingClassFailsAtSplit(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, false))
	logger := quietLogger()

	var out bytes.Buffer
	res, err := New(cfg, WithLogger(logger), WithOutput(&out)).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)

	var colErr *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &colErr), "got %v", err)
	assert.Equal(t, "class", colErr.Column)
	assert.Contains(t, err.Error(), "split stage")

	assert.Contains(t, out.String(), "Encoded data preview:")
	assert.NotContains(t, out.String(), "Best parameters:")
	assert.NotContains(t, out.String(), "Feature importances:")
	_, statErr := os.Stat(cfg.Report.HeatmapPath)
	assert.True(t, os.IsNotExist(statErr), "no heatmap should be written")
	assert.True(t, logger.ContainsMessage("categorical column not found; skipping"))
}

func TestRun_Deterministic(t *testing.T) {
	path := fixtureCSV(t, true)
	run := func() *Result {
		cfg := testConfig(t, path)
		res, err := New(cfg, WithLogger(quietLogger()), WithOutput(&bytes.Buffer{})).Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()

	assert.NotEqual(t, a.RunID, b.RunID)
	if diff := cmp.Diff(a.BestParams(), b.BestParams()); diff != "" {
		t.Errorf("best params differ (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Split.Partition.TestIdx, b.Split.Partition.TestIdx); diff != "" {
		t.Errorf("test rows differ (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Importances, b.Importances); diff != "" {
		t.Errorf("importances differ (-a +b):\n%s", diff)
	}
	assert.True(t, mat.Equal(a.Evaluation.Predictions, b.Evaluation.Predictions))
}

func TestSplit_PartitionCompleteness(t *testing.T) {
	p := New(testConfig(t, fixtureCSV(t, true)), WithLogger(quietLogger()))
	frame, err := p.Load()
	require.NoError(t, err)
	enc, err := p.Encode(frame)
	require.NoError(t, err)
	split, err := p.Split(enc)
	require.NoError(t, err)

	part := split.Partition
	assert.Len(t, part.TestIdx, 6)
	assert.Len(t, part.TrainIdx, 14)
	all := append(slices.Clone(part.TrainIdx), part.TestIdx...)
	slices.Sort(all)
	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, all)

	assert.Len(t, split.Features, 16)
	assert.NotContains(t, split.Features, "class")
	r, c := part.XTrain.Dims()
	assert.Equal(t, 14, r)
	assert.Equal(t, 16, c)
}

func TestEncode_RoundTripAndScaling(t *testing.T) {
	path := fixtureCSV(t, true)
	p := New(testConfig(t, path), WithLogger(quietLogger()))
	frame, err := p.Load()
	require.NoError(t, err)
	original, err := frame.Column("Gender")
	require.NoError(t, err)
	genders := slices.Clone(original.Strings)

	enc, err := p.Encode(frame)
	require.NoError(t, err)
	assert.Len(t, enc.Encoders, 16)

	gender, err := enc.Frame.Column("Gender")
	require.NoError(t, err)
	back, err := enc.Encoders["Gender"].InverseTransform(gender.Floats)
	require.NoError(t, err)
	assert.Equal(t, genders, back)
	assert.Equal(t, []string{"Female", "Male"}, enc.Encoders["Gender"].Classes())

	age, err := enc.Frame.Column("Age")
	require.NoError(t, err)
	mean, std := stat.PopMeanStdDev(age.Floats, nil)
	assert.InDelta(t, 0, mean, 1e-9)
	assert.InDelta(t, 1, std, 1e-9)
	assert.Contains(t, enc.Scalers, "Age")
}

func TestSplit_ScaleAfterSplit(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, true))
	cfg.Split.ScaleAfterSplit = true
	p := New(cfg, WithLogger(quietLogger()))

	frame, err := p.Load()
	require.NoError(t, err)
	enc, err := p.Encode(frame)
	require.NoError(t, err)
	assert.Empty(t, enc.Scalers, "scaling is deferred to the split")

	split, err := p.Split(enc)
	require.NoError(t, err)
	require.Contains(t, enc.Scalers, "Age")

	j := slices.Index(split.Features, "Age")
	require.GreaterOrEqual(t, j, 0)
	mean, std := stat.PopMeanStdDev(mat.Col(nil, j, split.Partition.XTrain), nil)
	assert.InDelta(t, 0, mean, 1e-9)
	assert.InDelta(t, 1, std, 1e-9)
}

func TestEncode_MissingContinuousColumnWarns(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, true))
	cfg.Data.ContinuousColumns = []string{"Age", "BMI"}
	logger := quietLogger()
	p := New(cfg, WithLogger(logger))

	frame, err := p.Load()
	require.NoError(t, err)
	_, err = p.Encode(frame)
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("continuous column not found; skipping"))
	assert.True(t, logger.ContainsField(log.ColumnKey, "BMI"))
}

func TestReport_ShowsHeatmap(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, true))
	cfg.Report.Show = true
	viewer := &recordingViewer{}

	res, err := New(cfg, WithLogger(quietLogger()), WithOutput(&bytes.Buffer{}), WithViewer(viewer)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.HeatmapPath}, viewer.paths)
}

func TestReport_NoViewerIsNotFatal(t *testing.T) {
	cfg := testConfig(t, fixtureCSV(t, true))
	cfg.Report.Show = true
	logger := quietLogger()
	viewer := &recordingViewer{err: errors.Wrap(report.ErrNoViewer, "xdg-open")}

	_, err := New(cfg, WithLogger(logger), WithOutput(&bytes.Buffer{}), WithViewer(viewer)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("no image viewer available"))
}

func TestRun_LoadErrorIsFatal(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))
	var out bytes.Buffer
	_, err := New(cfg, WithLogger(quietLogger()), WithOutput(&out)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, fs.ErrNotExist))
	assert.Empty(t, out.String())
}

func TestParamGrid_Conversion(t *testing.T) {
	grid := ParamGrid(config.ParamGrid{
		NEstimators:     []int{50},
		MaxDepth:        []int{0, 10},
		MinSamplesSplit: []int{2},
		MinSamplesLeaf:  []int{1},
		MaxFeatures:     []string{"auto", "None"},
	})
	assert.Equal(t, []interface{}{nil, 10}, grid["max_depth"])
	assert.Equal(t, []interface{}{"auto", nil}, grid["max_features"])
	assert.Equal(t, 4, grid.Size())
}
