// Package config loads the pipeline settings from defaults, an optional yaml
// file and DIABETES_RISK_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// EnvPrefix は環境変数の接頭辞 (DIABETES_RISK_SEARCH_N_JOBS など)
const EnvPrefix = "DIABETES_RISK"

// DefaultFile is read from the working directory when no --config is given.
const DefaultFile = "diabetes-risk.yaml"

// Config is the complete pipeline configuration.
type Config struct {
	Data     Data     `mapstructure:"data" yaml:"data"`
	Split    Split    `mapstructure:"split" yaml:"split"`
	Search   Search   `mapstructure:"search" yaml:"search"`
	Model    Model    `mapstructure:"model" yaml:"model"`
	Report   Report   `mapstructure:"report" yaml:"report"`
	Log      Log      `mapstructure:"log" yaml:"log"`
	Warnings Warnings `mapstructure:"warnings" yaml:"warnings"`
}

type Data struct {
	Path               string   `mapstructure:"path" yaml:"path"`
	LabelColumn        string   `mapstructure:"label_column" yaml:"label_column"`
	CategoricalColumns []string `mapstructure:"categorical_columns" yaml:"categorical_columns"`
	ContinuousColumns  []string `mapstructure:"continuous_columns" yaml:"continuous_columns"`
}

type Split struct {
	TestSize        float64 `mapstructure:"test_size" yaml:"test_size"`
	RandomState     uint64  `mapstructure:"random_state" yaml:"random_state"`
	ScaleAfterSplit bool    `mapstructure:"scale_after_split" yaml:"scale_after_split"`
}

type Search struct {
	CV        int       `mapstructure:"cv" yaml:"cv"`
	NJobs     int       `mapstructure:"n_jobs" yaml:"n_jobs"`
	ParamGrid ParamGrid `mapstructure:"param_grid" yaml:"param_grid"`
}

// ParamGrid lists the searched forest hyperparameters. A max_depth of 0
// stands for None (unlimited depth).
type ParamGrid struct {
	NEstimators     []int    `mapstructure:"n_estimators" yaml:"n_estimators"`
	MaxDepth        []int    `mapstructure:"max_depth" yaml:"max_depth"`
	MinSamplesSplit []int    `mapstructure:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  []int    `mapstructure:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures     []string `mapstructure:"max_features" yaml:"max_features"`
}

type Model struct {
	RandomState int64 `mapstructure:"random_state" yaml:"random_state"`
}

type Report struct {
	Show        bool     `mapstructure:"show" yaml:"show"`
	HeatmapPath string   `mapstructure:"heatmap_path" yaml:"heatmap_path"`
	Viewer      []string `mapstructure:"viewer" yaml:"viewer"`
	PreviewRows int      `mapstructure:"preview_rows" yaml:"preview_rows"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type Warnings struct {
	Suppress bool `mapstructure:"suppress" yaml:"suppress"`
}

// CategoricalColumns are the label-encoded columns of the diabetes dataset,
// the target included.
var CategoricalColumns = []string{
	"Gender", "Polyuria", "Polydipsia", "sudden weight loss", "weakness",
	"Polyphagia", "Genital thrush", "visual blurring", "Itching",
	"Irritability", "delayed healing", "partial paresis", "muscle stiffness",
	"Alopecia", "Obesity", "class",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "./diabetes_data_upload1.csv")
	v.SetDefault("data.label_column", "class")
	v.SetDefault("data.categorical_columns", CategoricalColumns)
	v.SetDefault("data.continuous_columns", []string{"Age"})

	v.SetDefault("split.test_size", 0.3)
	v.SetDefault("split.random_state", 42)
	v.SetDefault("split.scale_after_split", false)

	v.SetDefault("search.cv", 5)
	v.SetDefault("search.n_jobs", -1)
	v.SetDefault("search.param_grid.n_estimators", []int{50, 100, 200})
	v.SetDefault("search.param_grid.max_depth", []int{0, 10, 20, 30})
	v.SetDefault("search.param_grid.min_samples_split", []int{2, 5, 10})
	v.SetDefault("search.param_grid.min_samples_leaf", []int{1, 2, 4})
	v.SetDefault("search.param_grid.max_features", []string{"auto", "sqrt"})

	v.SetDefault("model.random_state", 42)

	v.SetDefault("report.show", true)
	v.SetDefault("report.heatmap_path", "")
	v.SetDefault("report.viewer", []string{})
	v.SetDefault("report.preview_rows", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("warnings.suppress", true)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. An explicit cfgFile must exist;
// the implicit ./diabetes-risk.yaml is optional.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfgFile)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges that would otherwise fail deep inside the run.
func (c *Config) Validate() error {
	switch {
	case c.Data.Path == "":
		return errors.NewValidationError("data.path", "must not be empty", c.Data.Path)
	case c.Data.LabelColumn == "":
		return errors.NewValidationError("data.label_column", "must not be empty", c.Data.LabelColumn)
	case c.Split.TestSize <= 0 || c.Split.TestSize >= 1:
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	case c.Search.CV < 2:
		return errors.NewValidationError("search.cv", "must be at least 2", c.Search.CV)
	case c.Report.PreviewRows < 0:
		return errors.NewValidationError("report.preview_rows", "must not be negative", c.Report.PreviewRows)
	}
	g := c.Search.ParamGrid
	for key, n := range map[string]int{
		"search.param_grid.n_estimators":      len(g.NEstimators),
		"search.param_grid.max_depth":         len(g.MaxDepth),
		"search.param_grid.min_samples_split": len(g.MinSamplesSplit),
		"search.param_grid.min_samples_leaf":  len(g.MinSamplesLeaf),
		"search.param_grid.max_features":      len(g.MaxFeatures),
	} {
		if n == 0 {
			return errors.NewValidationError(key, "needs at least one value", n)
		}
	}
	for _, d := range g.MaxDepth {
		if d < 0 {
			return errors.NewValidationError("search.param_grid.max_depth", "must be 0 (None) or positive", d)
		}
	}
	return nil
}

// Save writes the configuration to path as yaml.
func Save(c *Config, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
