package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NoData marks pixels with no valid measurement.
const NoData = -9999.0

// Fixed grid parameters of every aligned raster.
const (
	PixelSize  = 10.0  // metres
	SourceEPSG = 32629 // WGS 84 / UTM zone 29N, the sensor's native grid
	TargetEPSG = 3763  // ETRS89 / Portugal TM06
)

// GeoReference places a pixel grid in a coordinate reference system.
type GeoReference struct {
	Transform  [6]float64 // GDAL affine geotransform
	Projection string     // WKT
}

// PixelArea returns the area covered by one pixel in squared CRS units.
func (g GeoReference) PixelArea() float64 {
	t := g.Transform
	return math.Abs(t[1]*t[5] - t[2]*t[4])
}

// Raster is a single-band floating-point image held in memory.
type Raster struct {
	Geo    GeoReference
	Pixels *mat.Dense
}

// NewRaster wraps row-major pixel values. data is used directly, not copied.
func NewRaster(geo GeoReference, rows, cols int, data []float64) (*Raster, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("raster must have positive dimensions, got %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("raster %dx%d needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	return &Raster{Geo: geo, Pixels: mat.NewDense(rows, cols, data)}, nil
}

// Dims returns the raster's rows and columns.
func (r *Raster) Dims() (rows, cols int) {
	return r.Pixels.Dims()
}

func (r *Raster) At(row, col int) float64 {
	return r.Pixels.At(row, col)
}

// Values returns the backing row-major pixel slice.
func (r *Raster) Values() []float64 {
	return r.Pixels.RawMatrix().Data
}

// SameGrid reports whether both rasters share dimensions, geotransform and
// projection.
func (r *Raster) SameGrid(other *Raster) bool {
	ar, ac := r.Dims()
	br, bc := other.Dims()
	return ar == br && ac == bc &&
		r.Geo.Transform == other.Geo.Transform &&
		r.Geo.Projection == other.Geo.Projection
}

// derive returns a raster on r's grid holding data.
func (r *Raster) derive(data []float64) *Raster {
	rows, cols := r.Dims()
	return &Raster{Geo: r.Geo, Pixels: mat.NewDense(rows, cols, data)}
}

func checkSameGrid(a, b *Raster) error {
	if a == nil || b == nil {
		return errors.New("missing raster")
	}
	if !a.SameGrid(b) {
		ar, ac := a.Dims()
		br, bc := b.Dims()
		return fmt.Errorf("raster grids differ: %dx%d %v vs %dx%d %v",
			ar, ac, a.Geo.Transform, br, bc, b.Geo.Transform)
	}
	return nil
}
