package validation

import (
	"github.com/montanaflynn/stats"
)

// Summary describes the distribution of one cohort's values.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Median float64
	Min    float64
	Max    float64
}

// Describe summarizes values. StdDev is the sample standard deviation and is
// zero for a single value.
func Describe(values []float64) (Summary, error) {
	data := stats.Float64Data(values)

	mean, err := data.Mean()
	if err != nil {
		return Summary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, err
	}
	min, err := data.Min()
	if err != nil {
		return Summary{}, err
	}
	max, err := data.Max()
	if err != nil {
		return Summary{}, err
	}

	var sd float64
	if len(values) > 1 {
		if sd, err = data.StandardDeviationSample(); err != nil {
			return Summary{}, err
		}
	}

	return Summary{
		N:      len(values),
		Mean:   mean,
		StdDev: sd,
		Median: median,
		Min:    min,
		Max:    max,
	}, nil
}
