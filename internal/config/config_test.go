package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./diabetes_data_upload1.csv", c.Data.Path)
	assert.Equal(t, "class", c.Data.LabelColumn)
	assert.Len(t, c.Data.CategoricalColumns, 16)
	assert.Equal(t, []string{"Age"}, c.Data.ContinuousColumns)
	assert.InDelta(t, 0.3, c.Split.TestSize, 1e-12)
	assert.Equal(t, uint64(42), c.Split.RandomState)
	assert.False(t, c.Split.ScaleAfterSplit)
	assert.Equal(t, 5, c.Search.CV)
	assert.Equal(t, -1, c.Search.NJobs)
	assert.Equal(t, []int{50, 100, 200}, c.Search.ParamGrid.NEstimators)
	assert.Equal(t, []int{0, 10, 20, 30}, c.Search.ParamGrid.MaxDepth)
	assert.Equal(t, []string{"auto", "sqrt"}, c.Search.ParamGrid.MaxFeatures)
	assert.Equal(t, int64(42), c.Model.RandomState)
	assert.True(t, c.Report.Show)
	assert.Equal(t, 5, c.Report.PreviewRows)
	assert.True(t, c.Warnings.Suppress)
	assert.Equal(t, "info", c.Log.Level)

	assert.Equal(t, Default(), c)
}

func TestDefault_MatchesLoad(t *testing.T) {
	var d *Config
	require.NotPanics(t, func() { d = Default() })

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, loaded, d)
	assert.NoError(t, d.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	body := []byte(`data:
  path: /tmp/other.csv
search:
  cv: 3
  param_grid:
    n_estimators: [10]
report:
  show: false
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("DIABETES_RISK_SEARCH_N_JOBS", "2")
	t.Setenv("DIABETES_RISK_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.csv", c.Data.Path)
	assert.Equal(t, 3, c.Search.CV)
	assert.Equal(t, []int{10}, c.Search.ParamGrid.NEstimators)
	assert.Equal(t, []int{2, 5, 10}, c.Search.ParamGrid.MinSamplesSplit, "untouched keys keep defaults")
	assert.False(t, c.Report.Show)
	assert.Equal(t, 2, c.Search.NJobs)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.Data.Path = "" }},
		{"empty label", func(c *Config) { c.Data.LabelColumn = "" }},
		{"test size", func(c *Config) { c.Split.TestSize = 1 }},
		{"cv", func(c *Config) { c.Search.CV = 1 }},
		{"preview rows", func(c *Config) { c.Report.PreviewRows = -1 }},
		{"empty grid axis", func(c *Config) { c.Search.ParamGrid.MaxFeatures = nil }},
		{"negative depth", func(c *Config) { c.Search.ParamGrid.MaxDepth = []int{-1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diabetes-risk.yaml")
	want := Default()
	want.Search.NJobs = 4
	want.Report.HeatmapPath = "cm.png"
	require.NoError(t, Save(want, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
