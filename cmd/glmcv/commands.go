package main

import (
	"time"

	"github.com/YuminosukeSato/glmcv/pkg/config"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"github.com/YuminosukeSato/glmcv/report"
	"github.com/spf13/cobra"
)

// cli holds the flag values of one command tree. Flags that were set on the
// command line override the config file.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config

	// model
	dataPath string
	formula  string
	family   string
	weights  string
	lenient  bool
	condLim  float64
	export   string

	// cv
	folds     int
	shuffle   bool
	workers   int
	partial   bool
	timeout   time.Duration
	cost      string
	histogram string
	perRow    bool

	// bootstrap / simulate
	replicates int
	draws      int
	seed       uint64
	level      float64
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "glmcv",
		Short: "Fit binomial GLMs and estimate their prediction error by cross-validation",
		Long: `glmcv fits generalized linear models by iteratively reweighted least squares
and estimates their prediction error by leave-one-out or K-fold
cross-validation. Without --data it uses the built-in lizard perch data.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML run file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the model on the full data and print the coefficient table",
		Args:  cobra.NoArgs,
		RunE:  c.runFit,
	}
	addModelFlags(fitCmd, c)
	fitCmd.Flags().StringVar(&c.export, "export", "", "write the fitted coefficients as JSON to this file")

	cvCmd := &cobra.Command{
		Use:   "cv",
		Short: "Estimate the prediction error by leave-one-out or K-fold cross-validation",
		Args:  cobra.NoArgs,
		RunE:  c.runCV,
	}
	addModelFlags(cvCmd, c)
	cvCmd.Flags().IntVarP(&c.folds, "folds", "k", 0, "number of folds (0: leave-one-out)")
	cvCmd.Flags().BoolVar(&c.shuffle, "shuffle", false, "shuffle rows before K-fold splitting")
	cvCmd.Flags().Uint64Var(&c.seed, "seed", 0, "shuffle seed")
	cvCmd.Flags().IntVarP(&c.workers, "workers", "j", 1, "concurrent refits (< 1: one per CPU)")
	cvCmd.Flags().BoolVar(&c.partial, "partial", false, "keep going when a fold fails")
	cvCmd.Flags().DurationVar(&c.timeout, "timeout", 0, "abort the evaluation after this duration")
	cvCmd.Flags().StringVar(&c.cost, "cost", "absolute", "absolute, squared or logloss")
	cvCmd.Flags().StringVar(&c.histogram, "histogram", "", "save a histogram of the errors to this image")
	cvCmd.Flags().BoolVar(&c.perRow, "per-row", false, "print one line per observation")

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Case-resampling bootstrap of the coefficients",
		Args:  cobra.NoArgs,
		RunE:  c.runBootstrap,
	}
	addModelFlags(bootstrapCmd, c)
	bootstrapCmd.Flags().IntVarP(&c.replicates, "replicates", "B", 1000, "number of resamples")
	bootstrapCmd.Flags().Uint64Var(&c.seed, "seed", 1, "random seed")
	bootstrapCmd.Flags().IntVarP(&c.workers, "workers", "j", 1, "concurrent refits (< 1: one per CPU)")
	bootstrapCmd.Flags().Float64Var(&c.level, "level", 0.95, "percentile interval level")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Posterior predictive check: simulate responses from the fitted model",
		Args:  cobra.NoArgs,
		RunE:  c.runSimulate,
	}
	addModelFlags(simulateCmd, c)
	simulateCmd.Flags().IntVarP(&c.draws, "draws", "n", 1000, "number of simulated data sets")
	simulateCmd.Flags().Uint64Var(&c.seed, "seed", 1, "random seed")
	simulateCmd.Flags().Float64Var(&c.level, "level", 0.95, "predictive interval level")
	simulateCmd.Flags().StringVar(&c.histogram, "histogram", "", "save a histogram of the simulated means to this image")

	rootCmd.AddCommand(fitCmd, cvCmd, bootstrapCmd, simulateCmd)
	return rootCmd
}

func addModelFlags(cmd *cobra.Command, c *cli) {
	cmd.Flags().StringVarP(&c.dataPath, "data", "d", "", "CSV file (default: built-in lizards data)")
	cmd.Flags().StringVarP(&c.formula, "formula", "f", "", "model formula, e.g. \"y ~ x + g\"")
	cmd.Flags().StringVar(&c.family, "family", "", "binomial, poisson or gaussian")
	cmd.Flags().StringVarP(&c.weights, "weights", "w", "", "prior weight column (binomial trials)")
	cmd.Flags().BoolVar(&c.lenient, "lenient", false, "accept non-converged fits with a warning")
	cmd.Flags().Float64Var(&c.condLim, "condition-limit", 1e12, "largest accepted condition number of X'WX")
}

// setup loads the config file, applies the flags that were set and
// configures logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	set := func(name string, apply func()) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("log-level", func() { cfg.LogLevel = c.logLevel })
	set("data", func() { cfg.Data.Path = c.dataPath })
	set("formula", func() { cfg.Model.Formula = c.formula })
	set("family", func() { cfg.Model.Family = c.family })
	set("weights", func() { cfg.Model.Weights = c.weights })
	set("lenient", func() { cfg.Model.Lenient = c.lenient })
	set("condition-limit", func() { cfg.Model.ConditionLimit = c.condLim })
	set("folds", func() { cfg.CV.Folds = c.folds })
	set("shuffle", func() { cfg.CV.Shuffle = c.shuffle })
	set("partial", func() { cfg.CV.Partial = c.partial })
	set("timeout", func() { cfg.CV.Timeout = c.timeout })
	set("cost", func() { cfg.CV.Cost = c.cost })
	set("histogram", func() { cfg.Report.Histogram = c.histogram })
	set("per-row", func() { cfg.Report.PerRow = c.perRow })
	set("replicates", func() { cfg.Bootstrap.Replicates = c.replicates })
	set("draws", func() { cfg.Simulation.Draws = c.draws })
	set("level", func() { cfg.Report.Level = c.level })
	set("workers", func() {
		cfg.CV.Workers = c.workers
		cfg.Bootstrap.Workers = c.workers
	})
	set("seed", func() {
		cfg.CV.Seed = c.seed
		cfg.Bootstrap.Seed = c.seed
		cfg.Simulation.Seed = c.seed
	})
	if cfg.Report.Bins <= 0 {
		cfg.Report.Bins = report.DefaultBins
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.SetupLogger(cfg.LogLevel)
	c.cfg = cfg
	return nil
}
