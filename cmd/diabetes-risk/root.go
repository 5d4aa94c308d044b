package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/diabetes-risk/internal/config"
	"github.com/YuminosukeSato/diabetes-risk/internal/pipeline"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
)

// rootFlags holds the global flags; they override the loaded config only
// when set on the command line.
type rootFlags struct {
	cfgFile         string
	dataPath        string
	logLevel        string
	noShow          bool
	heatmapPath     string
	nJobs           int
	scaleAfterSplit bool
}

// newRootCommand builds the command tree. stdout receives results, stderr
// receives logs.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "diabetes-risk",
		Short: "Train and evaluate a random-forest diabetes risk classifier",
		Long: `diabetes-risk loads the early-stage diabetes symptom dataset, encodes it,
tunes a random forest with an exhaustive grid search and 5-fold
cross-validation, and reports accuracy, the confusion matrix, a
classification report and the feature importances.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logger, err := log.SetupLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			log.RouteWarnings(logger, cfg.Warnings.Suppress)

			_, err = pipeline.New(cfg,
				pipeline.WithLogger(logger),
				pipeline.WithOutput(cmd.OutOrStdout()),
			).Run(cmd.Context())
			return err
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&flags.cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+")")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.Flags().StringVar(&flags.dataPath, "data", "", "dataset CSV path (overrides config)")
	root.Flags().BoolVar(&flags.noShow, "no-show", false, "write the heatmap without opening a viewer")
	root.Flags().StringVar(&flags.heatmapPath, "heatmap", "", "confusion-matrix heatmap output path (default: temp file)")
	root.Flags().IntVar(&flags.nJobs, "n-jobs", 0, "concurrent grid-search fits, -1 for all CPUs (overrides config)")
	root.Flags().BoolVar(&flags.scaleAfterSplit, "scale-after-split", false, "fit the Age scaler on the training rows only")

	root.AddCommand(newConfigCommand(flags))
	return root
}

// load reads the config file and applies the flags that were set.
func (rf *rootFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rf.cfgFile)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("data") {
		cfg.Data.Path = rf.dataPath
	}
	if f.Changed("log-level") {
		cfg.Log.Level = rf.logLevel
	}
	if f.Changed("no-show") && rf.noShow {
		cfg.Report.Show = false
	}
	if f.Changed("heatmap") {
		cfg.Report.HeatmapPath = rf.heatmapPath
	}
	if f.Changed("n-jobs") {
		cfg.Search.NJobs = rf.nJobs
	}
	if f.Changed("scale-after-split") {
		cfg.Split.ScaleAfterSplit = rf.scaleAfterSplit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		log.GetLogger().Debug("run failed", err)
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
