package resample

import (
	"context"
	"testing"

	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/glm"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lizardSpec(t *testing.T) (*glm.Spec, *dataset.Dataset) {
	t.Helper()
	ds, err := dataset.LoadLizards()
	require.NoError(t, err)
	spec, err := glm.NewSpec("gfrac ~ height + diameter + light + time", glm.Binomial(),
		glm.WithWeights(dataset.LizardTrials))
	require.NoError(t, err)
	return spec, ds
}

func TestBootstrapReproducibleAcrossWorkers(t *testing.T) {
	spec, ds := lizardSpec(t)

	seq, err := Bootstrap(context.Background(), spec, ds, WithReplicates(40), WithSeed(7))
	require.NoError(t, err)
	par, err := Bootstrap(context.Background(), spec, ds, WithReplicates(40), WithSeed(7), WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, seq.Failed, par.Failed)
	assert.Equal(t, seq.Replicates.RawMatrix().Data, par.Replicates.RawMatrix().Data)
	assert.Equal(t, 40, seq.Requested)
	assert.Equal(t, 40, seq.Len()+len(seq.Failed))

	other, err := Bootstrap(context.Background(), spec, ds, WithReplicates(40), WithSeed(8))
	require.NoError(t, err)
	assert.NotEqual(t, seq.Replicates.RawMatrix().Data, other.Replicates.RawMatrix().Data)
}

func TestBootstrapSummaries(t *testing.T) {
	spec, ds := lizardSpec(t)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := Bootstrap(context.Background(), spec, ds,
		WithReplicates(60), WithSeed(1), WithWorkers(2), WithLogger(logger))
	require.NoError(t, err)

	full, err := spec.Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, full.Names(), res.Names)
	assert.Equal(t, full.Coefficients(), res.Estimate)

	se := res.StdErrors()
	require.Len(t, se, len(res.Names))
	for _, s := range se {
		assert.Greater(t, s, 0.0)
	}
	assert.Len(t, res.Bias(), len(res.Names))

	lo, hi, err := res.PercentileInterval(0.9)
	require.NoError(t, err)
	for j := range lo {
		assert.LessOrEqual(t, lo[j], hi[j])
	}
	_, _, err = res.PercentileInterval(0)
	assert.Error(t, err)

	assert.True(t, logger.ContainsMessage("Bootstrap finished"))
}

func TestBootstrapCountsFailedReplicates(t *testing.T) {
	g, err := dataset.CategoricalColumn("g", []string{"A", "A", "B", "B"})
	require.NoError(t, err)
	ds, err := dataset.New(
		dataset.NumericColumn("y", []float64{0.25, 0.5, 0.75, 0.5}),
		dataset.NumericColumn("w", []float64{4, 4, 4, 2}),
		g,
	)
	require.NoError(t, err)
	spec, err := glm.NewSpec("y ~ g", glm.Binomial(), glm.WithWeights("w"))
	require.NoError(t, err)

	res, err := Bootstrap(context.Background(), spec, ds, WithReplicates(100), WithSeed(3))
	require.NoError(t, err)
	// resamples without any "B" row lose the g[B] column
	assert.NotEmpty(t, res.Failed)
	assert.Equal(t, 100, res.Len()+len(res.Failed))
}

func TestBootstrapValidation(t *testing.T) {
	spec, ds := lizardSpec(t)

	_, err := Bootstrap(context.Background(), nil, ds)
	assert.Error(t, err)
	_, err = Bootstrap(context.Background(), spec, ds, WithReplicates(0))
	assert.Error(t, err)

	one, err := ds.Subset([]int{0})
	require.NoError(t, err)
	_, err = Bootstrap(context.Background(), spec, one)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Bootstrap(ctx, spec, ds, WithReplicates(5))
	assert.ErrorIs(t, err, context.Canceled)
}
