package main

import (
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/YuminosukeSato/glmcv/cv"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/glm"
	"github.com/YuminosukeSato/glmcv/pkg/config"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"github.com/YuminosukeSato/glmcv/report"
	"github.com/YuminosukeSato/glmcv/resample"
	"github.com/spf13/cobra"
)

func loadData(cfg *config.Config) (*dataset.Dataset, error) {
	var (
		ds  *dataset.Dataset
		err error
	)
	if cfg.Data.Path == "" {
		ds, err = dataset.LoadLizards()
	} else {
		ds, err = dataset.LoadCSV(cfg.Data.Path, dataset.WithCategorical(cfg.Data.Categorical...))
	}
	if err != nil {
		return nil, err
	}
	if p := cfg.Data.Proportion; p != nil {
		return ds.WithProportion(p.Response, p.Successes, p.Failures, p.Trials)
	}
	return ds, nil
}

func buildSpec(cfg *config.Config) (*glm.Spec, error) {
	family, err := glm.FamilyByName(cfg.Model.Family)
	if err != nil {
		return nil, err
	}
	opts := []glm.Option{
		glm.WithMaxIter(cfg.Model.MaxIter),
		glm.WithTolerance(cfg.Model.Tolerance),
		glm.WithConditionLimit(cfg.Model.ConditionLimit),
		glm.WithStrictConvergence(!cfg.Model.Lenient),
	}
	if cfg.Model.Weights != "" {
		opts = append(opts, glm.WithWeights(cfg.Model.Weights))
	}
	return glm.NewSpec(cfg.Model.Formula, family, opts...)
}

func (c *cli) prepare() (*glm.Spec, *dataset.Dataset, error) {
	ds, err := loadData(c.cfg)
	if err != nil {
		return nil, nil, err
	}
	spec, err := buildSpec(c.cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Data loaded",
		slog.Int(log.SamplesKey, ds.Len()),
		slog.String(log.FormulaKey, spec.Formula().String()),
		slog.String(log.FamilyKey, spec.Family().Name()))
	return spec, ds, nil
}

func (c *cli) runFit(cmd *cobra.Command, _ []string) error {
	spec, ds, err := c.prepare()
	if err != nil {
		return err
	}
	m, err := spec.Fit(cmd.Context(), ds)
	if err != nil {
		return err
	}
	if err := report.WriteModelSummary(cmd.OutOrStdout(), m); err != nil {
		return err
	}

	if c.export != "" {
		data, err := m.ExportWeights().ToJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.export, data, 0o644); err != nil {
			return errors.Wrapf(err, "write coefficients to %s", c.export)
		}
		slog.Info("Coefficients exported", slog.String("path", c.export))
	}
	return nil
}

func (c *cli) runCV(cmd *cobra.Command, _ []string) error {
	spec, ds, err := c.prepare()
	if err != nil {
		return err
	}
	cost, err := cv.CostByName(c.cfg.CV.Cost)
	if err != nil {
		return err
	}

	opts := []cv.Option{
		cv.WithFolds(c.cfg.CV.Folds),
		cv.WithWorkers(c.cfg.CV.Workers),
		cv.WithPartialResults(c.cfg.CV.Partial),
		cv.WithTimeout(c.cfg.CV.Timeout),
	}
	if c.cfg.CV.Shuffle && c.cfg.CV.Folds > 0 {
		opts = append(opts, cv.WithSplitter(cv.NewKFold(c.cfg.CV.Folds, true, c.cfg.CV.Seed)))
	}

	res, evalErr := cv.Evaluate(cmd.Context(), spec, ds, cost, opts...)
	if res == nil {
		return evalErr
	}

	out := cmd.OutOrStdout()
	if err := report.WriteSummary(out, res); err != nil {
		return err
	}
	if c.cfg.Report.PerRow {
		if err := report.WriteErrors(out, res); err != nil {
			return err
		}
	}
	if evalErr != nil {
		return evalErr
	}

	if path := c.cfg.Report.Histogram; path != "" {
		if err := report.SaveHistogram(res.Errors, c.cfg.Report.Bins, "Cross-validation errors", path); err != nil {
			return err
		}
		slog.Info("Histogram saved", slog.String("path", path))
	}
	slog.Info("Cross-validation finished",
		slog.Int(log.FoldsKey, res.Folds),
		slog.Int(log.FailedKey, len(res.Failed)),
		slog.Float64(log.MeanErrorKey, res.Mean()),
		slog.Int64(log.DurationMsKey, res.Elapsed.Milliseconds()))
	return nil
}

func (c *cli) runBootstrap(cmd *cobra.Command, _ []string) error {
	spec, ds, err := c.prepare()
	if err != nil {
		return err
	}
	res, err := resample.Bootstrap(cmd.Context(), spec, ds,
		resample.WithReplicates(c.cfg.Bootstrap.Replicates),
		resample.WithSeed(c.cfg.Bootstrap.Seed),
		resample.WithWorkers(c.cfg.Bootstrap.Workers))
	if err != nil {
		return err
	}
	return report.WriteBootstrap(cmd.OutOrStdout(), res, c.cfg.Report.Level)
}

func (c *cli) runSimulate(cmd *cobra.Command, _ []string) error {
	spec, ds, err := c.prepare()
	if err != nil {
		return err
	}
	m, err := spec.Fit(cmd.Context(), ds)
	if err != nil {
		return err
	}
	seed := c.cfg.Simulation.Seed
	sim, err := m.Simulate(ds, c.cfg.Simulation.Draws, rand.NewPCG(seed, seed+1))
	if err != nil {
		return err
	}
	if err := report.WriteSimulation(cmd.OutOrStdout(), sim, m.Observed(), c.cfg.Report.Level); err != nil {
		return err
	}
	if path := c.cfg.Report.Histogram; path != "" {
		if err := report.SaveHistogram(sim.Mean(), c.cfg.Report.Bins, "Simulated means", path); err != nil {
			return err
		}
		slog.Info("Histogram saved", slog.String("path", path))
	}
	return nil
}
