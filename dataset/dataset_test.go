package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallDataset(t *testing.T) *Dataset {
	t.Helper()
	color, err := CategoricalColumn("color", []string{"red", "blue", "red", "green"})
	require.NoError(t, err)
	d, err := New(
		NumericColumn("x", []float64{1, 2, 3, 4}),
		color,
	)
	require.NoError(t, err)
	return d
}

func TestCategoricalColumnLevels(t *testing.T) {
	t.Run("sorted distinct levels by default", func(t *testing.T) {
		c, err := CategoricalColumn("color", []string{"red", "blue", "red", "green"})
		require.NoError(t, err)
		assert.Equal(t, []string{"blue", "green", "red"}, c.Levels())
		assert.Equal(t, 2, c.Code(0))
		assert.Equal(t, "blue", c.String(1))
	})

	t.Run("explicit level order", func(t *testing.T) {
		c, err := CategoricalColumn("light", []string{"shady", "sunny"}, "sunny", "shady")
		require.NoError(t, err)
		assert.Equal(t, []string{"sunny", "shady"}, c.Levels())
		assert.Equal(t, 1, c.Code(0))
	})

	t.Run("value outside levels", func(t *testing.T) {
		_, err := CategoricalColumn("light", []string{"dusk"}, "sunny", "shady")
		var dataErr *errors.DataError
		require.True(t, errors.As(err, &dataErr))
		assert.Equal(t, "light", dataErr.Field)
	})

	t.Run("duplicate level", func(t *testing.T) {
		_, err := CategoricalColumn("light", nil, "sunny", "sunny")
		assert.Error(t, err)
	})
}

func TestNewRejectsMismatchedLengths(t *testing.T) {
	_, err := New(
		NumericColumn("a", []float64{1, 2}),
		NumericColumn("b", []float64{1, 2, 3}),
	)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = New(NumericColumn("a", nil), NumericColumn("a", nil))
	assert.Error(t, err)
}

func TestSubsetIsFreshCopy(t *testing.T) {
	d := smallDataset(t)

	sub, err := d.Subset([]int{3, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Len())

	x, err := sub.Float("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1, 1}, x)

	// mutating the returned slice must not affect either dataset
	x[0] = 100
	again, _ := sub.Float("x")
	assert.Equal(t, 4.0, again[0])
	orig, _ := d.Float("x")
	assert.Equal(t, []float64{1, 2, 3, 4}, orig)

	// level set survives even though "blue" is absent from the subset
	col, err := sub.Column("color")
	require.NoError(t, err)
	assert.Equal(t, []string{"blue", "green", "red"}, col.Levels())

	_, err = d.Subset([]int{4})
	assert.Error(t, err)
}

func TestWithoutExcludesExactlyOnce(t *testing.T) {
	d := smallDataset(t)

	for i := 0; i < d.Len(); i++ {
		train, err := d.Without([]int{i})
		require.NoError(t, err)
		require.Equal(t, d.Len()-1, train.Len())

		x, _ := train.Float("x")
		assert.NotContains(t, x, float64(i+1), "row %d must be excluded", i)
	}

	train, err := d.Without([]int{1, 1, 2})
	require.NoError(t, err)
	x, _ := train.Float("x")
	assert.Equal(t, []float64{1, 4}, x)
}

func TestColumnAccessErrors(t *testing.T) {
	d := smallDataset(t)

	_, err := d.Float("missing")
	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "missing", dataErr.Field)

	_, err = d.Float("color")
	assert.Error(t, err)

	s, err := d.Strings("color")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue", "red", "green"}, s)
	assert.True(t, d.Has("x"))
	assert.Equal(t, []string{"x", "color"}, d.Names())
}

func TestWithProportion(t *testing.T) {
	d, err := New(
		NumericColumn("succ", []float64{3, 0, 5}),
		NumericColumn("fail", []float64{1, 2, 0}),
	)
	require.NoError(t, err)

	out, err := d.WithProportion("p", "succ", "fail", "trials")
	require.NoError(t, err)

	p, _ := out.Float("p")
	n, _ := out.Float("trials")
	assert.InDeltaSlice(t, []float64{0.75, 0, 1}, p, 1e-12)
	assert.Equal(t, []float64{4, 2, 5}, n)
	assert.NoError(t, out.ValidateBinomial("p", "trials"))
	assert.False(t, d.Has("p"), "receiver must not be modified")

	zero, _ := New(NumericColumn("succ", []float64{0}), NumericColumn("fail", []float64{0}))
	_, err = zero.WithProportion("p", "succ", "fail", "trials")
	assert.Error(t, err)
}

func TestValidateBinomial(t *testing.T) {
	tests := []struct {
		name    string
		y       []float64
		w       []float64
		wantErr bool
	}{
		{name: "valid", y: []float64{0, 0.5, 1}, w: []float64{1, 2, 3}},
		{name: "response above one", y: []float64{0.5, 1.2}, w: []float64{1, 1}, wantErr: true},
		{name: "negative response", y: []float64{-0.1}, w: []float64{1}, wantErr: true},
		{name: "fractional weight", y: []float64{0.5}, w: []float64{2.5}, wantErr: true},
		{name: "zero weight", y: []float64{0.5}, w: []float64{0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(NumericColumn("y", tt.y), NumericColumn("w", tt.w))
			require.NoError(t, err)
			err = d.ValidateBinomial("y", "w")
			if tt.wantErr {
				var dataErr *errors.DataError
				assert.True(t, errors.As(err, &dataErr))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "site,count,zone\nA,3,1\nB,4,2\nA,5,1\n"

	d, err := ReadCSV(strings.NewReader(input), WithCategorical("zone"))
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	site, _ := d.Column("site")
	assert.Equal(t, Categorical, site.Kind())
	count, _ := d.Column("count")
	assert.Equal(t, Numeric, count.Kind())
	zone, _ := d.Column("zone")
	assert.Equal(t, Categorical, zone.Kind())
	assert.Equal(t, []string{"1", "2"}, zone.Levels())

	var buf bytes.Buffer
	require.NoError(t, d.WriteCSV(&buf))
	assert.Equal(t, input, buf.String())

	_, err = ReadCSV(strings.NewReader(input), WithCategorical("absent"))
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadLizards(t *testing.T) {
	d, err := LoadLizards()
	require.NoError(t, err)
	assert.Equal(t, 23, d.Len())
	require.NoError(t, d.ValidateBinomial(LizardResponse, LizardTrials))

	time, err := d.Column("time")
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "midday", "late"}, time.Levels())

	n, _ := d.Float(LizardTrials)
	assert.Equal(t, 22.0, n[0])
	g, _ := d.Float(LizardResponse)
	assert.InDelta(t, 20.0/22.0, g[0], 1e-12)
}
