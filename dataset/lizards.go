package dataset

import (
	"bytes"
	_ "embed"
)

//go:embed data/lizards.csv
var lizardsCSV []byte

// Lizard column names.
const (
	LizardResponse = "gfrac"
	LizardTrials   = "n"
)

// LoadLizards returns the 23-row perch-site dataset: counts of two anole
// species (grahami, opalinus) observed per combination of perch height,
// perch diameter, light and time of day. The derived column gfrac is the
// proportion of grahami and n the number of lizards observed, which is the
// binomial trial weight.
func LoadLizards() (*Dataset, error) {
	d, err := ReadCSV(bytes.NewReader(lizardsCSV),
		WithLevels("height", "<5ft", ">=5ft"),
		WithLevels("diameter", "<=2in", ">2in"),
		WithLevels("light", "sunny", "shady"),
		WithLevels("time", "early", "midday", "late"),
	)
	if err != nil {
		return nil, err
	}
	return d.WithProportion(LizardResponse, "grahami", "opalinus", LizardTrials)
}
