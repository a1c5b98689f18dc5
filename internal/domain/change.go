package domain

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// FilterSize is the side of the median filter window.
const FilterSize = 5

// Difference subtracts the post-fire index from the pre-fire index.
func Difference(pre, post *Raster) (*Raster, error) {
	if err := checkSameGrid(pre, post); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexComputation, err)
	}

	pv, qv := pre.Values(), post.Values()
	out := make([]float64, len(pv))
	for i := range pv {
		out[i] = pv[i] - qv[i]
	}
	return pre.derive(out), nil
}

// MedianFilter smooths r with a size×size median window. Windows overhanging
// the edge are completed by reflection (d c b a | a b c d | d c b a). NoData
// pixels take part like any other value. size must be odd and positive.
func MedianFilter(r *Raster, size int) (*Raster, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("median filter size must be odd and positive, got %d", size)
	}

	rows, cols := r.Dims()
	half := size / 2
	window := make([]float64, size*size)
	out := make([]float64, rows*cols)

	for row := range rows {
		for col := range cols {
			n := 0
			for dr := -half; dr <= half; dr++ {
				rr := reflect(row+dr, rows)
				for dc := -half; dc <= half; dc++ {
					window[n] = r.At(rr, reflect(col+dc, cols))
					n++
				}
			}
			slices.Sort(window)
			out[row*cols+col] = stat.Quantile(0.5, stat.Empirical, window, nil)
		}
	}
	return r.derive(out), nil
}

// reflect maps an index outside [0, n) back inside by mirroring about the
// edges, edge pixel included.
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// Reclassify returns a mask holding 1 where r is strictly greater than
// threshold and 0 elsewhere.
func Reclassify(r *Raster, threshold float64) *Raster {
	values := r.Values()
	out := make([]float64, len(values))
	for i, v := range values {
		if v > threshold {
			out[i] = 1
		}
	}
	return r.derive(out)
}

// MaskSummary counts burned pixels in a mask and converts them to hectares
// using the grid's pixel area.
func MaskSummary(mask *Raster) (pixels int, hectares float64) {
	for _, v := range mask.Values() {
		if v == 1 {
			pixels++
		}
	}
	return pixels, float64(pixels) * mask.Geo.PixelArea() / 10_000
}
