package domain

import "fmt"

// NormalizedDifference computes (a − b) / (a + b) per pixel. Pixels where
// a + b == 0 are set to NoData instead of dividing.
func NormalizedDifference(a, b *Raster) (*Raster, error) {
	if err := checkSameGrid(a, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexComputation, err)
	}

	av, bv := a.Values(), b.Values()
	out := make([]float64, len(av))
	for i := range av {
		sum := av[i] + bv[i]
		if sum == 0 {
			out[i] = NoData
			continue
		}
		out[i] = (av[i] - bv[i]) / sum
	}
	return a.derive(out), nil
}
