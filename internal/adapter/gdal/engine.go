// Package gdal performs the raster and vector work of an analysis through
// the GDAL/OGR library: warping, raster I/O, polygonizing, projection files
// and administrative boundary lookup.
package gdal

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"

	gdalgo "github.com/lukeroth/gdal"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// Engine implements the pipeline's clip/mosaic, raster store and vectorizer
// stages on top of GDAL.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// warpOptions reprojects from the sensor grid to the municipal CRS at 10 m,
// crops to the cutline and marks outside pixels through an alpha band.
func warpOptions(boundary string) []string {
	res := strconv.FormatFloat(domain.PixelSize, 'f', -1, 64)
	return []string{
		"-s_srs", fmt.Sprintf("EPSG:%d", domain.SourceEPSG),
		"-t_srs", fmt.Sprintf("EPSG:%d", domain.TargetEPSG),
		"-tr", res, res,
		"-cutline", boundary,
		"-crop_to_cutline",
		"-dstalpha",
		"-ot", "Float32",
		"-dstnodata", strconv.FormatFloat(domain.NoData, 'f', -1, 64),
		"-of", "GTiff",
	}
}

// ClipMosaic warps each band's images, in order, into one clipped raster per
// band. Where sources overlap the last image wins.
func (e *Engine) ClipMosaic(ctx context.Context, period domain.Period, images domain.ExtractedBands, boundary, dir string) (domain.AlignedRasterSet, error) {
	bands := make([]domain.BandID, 0, len(images))
	for b := range images {
		bands = append(bands, b)
	}
	slices.Sort(bands)

	paths := make(map[domain.BandID]string, len(bands))
	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return domain.AlignedRasterSet{}, err
		}
		out := filepath.Join(dir, fmt.Sprintf("%s_%s_10m_clip.tif", period, band))
		if err := e.warp(images.Paths(band), boundary, out); err != nil {
			return domain.AlignedRasterSet{}, fmt.Errorf("%w: %s %s: %w", domain.ErrClip, period, band, err)
		}
		paths[band] = out
		e.logger.Debug("band clipped", "period", period, "band", band, "sources", len(images[band]), "path", out)
	}
	return domain.NewAlignedRasterSet(period, paths), nil
}

func (e *Engine) warp(sources []string, boundary, out string) error {
	if len(sources) == 0 {
		return fmt.Errorf("no source images")
	}

	want := gdalgo.CreateSpatialReference("")
	defer want.Destroy()
	if err := want.FromEPSG(domain.SourceEPSG); err != nil {
		return fmt.Errorf("source CRS: %w", err)
	}

	srcs := make([]gdalgo.Dataset, 0, len(sources))
	defer func() {
		for _, ds := range srcs {
			ds.Close()
		}
	}()
	for _, path := range sources {
		ds, err := gdalgo.Open(path, gdalgo.ReadOnly)
		if err != nil {
			return fmt.Errorf("open %s: %w", filepath.Base(path), err)
		}
		srcs = append(srcs, ds)
		if err := checkCRS(ds, want); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}

	dst, err := gdalgo.Warp(out, nil, srcs, warpOptions(boundary))
	if err != nil {
		return fmt.Errorf("warp: %w", err)
	}
	defer dst.Close()

	return checkCoverage(dst)
}

// checkCRS rejects a source whose declared CRS is not want. Sources without a
// declared CRS are taken to be on want.
func checkCRS(ds gdalgo.Dataset, want gdalgo.SpatialReference) error {
	wkt := ds.Projection()
	if wkt == "" {
		return nil
	}
	got := gdalgo.CreateSpatialReference(wkt)
	defer got.Destroy()
	if !got.IsSame(want) {
		return fmt.Errorf("CRS is not EPSG:%d", domain.SourceEPSG)
	}
	return nil
}

// checkCoverage fails when the alpha band marks no pixel as valid, meaning
// the boundary and the imagery do not intersect.
func checkCoverage(ds gdalgo.Dataset) error {
	n := ds.RasterCount()
	if n < 2 {
		return fmt.Errorf("warp produced %d bands, want data and alpha", n)
	}
	alpha := ds.RasterBand(n)
	cols, rows := alpha.XSize(), alpha.YSize()
	if cols == 0 || rows == 0 {
		return fmt.Errorf("boundary does not intersect the imagery")
	}
	buf := make([]uint8, cols*rows)
	if err := alpha.IO(gdalgo.Read, 0, 0, cols, rows, buf, cols, rows, 0, 0); err != nil {
		return fmt.Errorf("read alpha band: %w", err)
	}
	if !slices.ContainsFunc(buf, func(v uint8) bool { return v > 0 }) {
		return fmt.Errorf("boundary does not intersect the imagery")
	}
	return nil
}
