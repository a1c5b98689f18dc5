// Package fixture generates small synthetic Sentinel-2 scenes: product
// archives for a pre-fire and a post-fire acquisition, an administrative
// boundary index and the exported boundary of one area. The scenes drive
// the end-to-end tests and the burnscan fixture command.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/couchcryptid/burn-area-service/internal/adapter/archive"
	"github.com/couchcryptid/burn-area-service/internal/adapter/gdal"
	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// Scene geometry in EPSG:32629.
const (
	OriginX = 540000.0
	OriginY = 4129000.0
	Size    = 100 // pixels per side at 10 m

	// BurnFirst..BurnLast are the rows and columns of the burned block.
	BurnFirst = 40
	BurnLast  = 59

	// AreaCode is the boundary the analysis is clipped to.
	AreaCode = "0808"
	AreaName = "Monchique"

	// poison fills the coarse decoy bands; it must never reach an output.
	poison = 9.0
)

// Surface reflectance of the scene.
var (
	healthy = map[domain.BandID]float64{
		domain.BandBlue:  0.05,
		domain.BandGreen: 0.07,
		domain.BandRed:   0.10,
		domain.BandNIR:   0.50,
		domain.BandSWIR:  0.20,
	}
	burned = map[domain.BandID]float64{
		domain.BandBlue:  0.05,
		domain.BandGreen: 0.06,
		domain.BandRed:   0.30,
		domain.BandNIR:   0.20,
		domain.BandSWIR:  0.40,
	}
	// nativeResolution is the finest resolution each band is delivered at.
	nativeResolution = map[domain.BandID]int{
		domain.BandBlue:  10,
		domain.BandGreen: 10,
		domain.BandRed:   10,
		domain.BandNIR:   10,
		domain.BandSWIR:  20,
	}
)

// Options shapes the generated scene.
type Options struct {
	FireDate time.Time
	// Split delivers each acquisition as two overlapping tiles instead of one.
	Split bool
	// NoBurn leaves the post-fire acquisition unchanged.
	NoBurn bool
}

// Scene lists the generated inputs.
type Scene struct {
	FireDate      time.Time
	Pre           []domain.ArchiveRef
	Post          []domain.ArchiveRef
	BoundaryIndex string // all areas, code field DICO
	Boundary      string // AreaCode only
}

// tile is a column range of the scene delivered as one product.
type tile struct {
	name           string
	firstCol, cols int
}

// Generate writes a scene under dir.
func Generate(ctx context.Context, dir string, opts Options, logger *slog.Logger) (Scene, error) {
	if opts.FireDate.IsZero() {
		opts.FireDate = time.Date(2020, 8, 20, 0, 0, 0, 0, time.UTC)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Scene{}, err
	}
	wkt, err := gdal.ProjectionWKT(domain.SourceEPSG)
	if err != nil {
		return Scene{}, err
	}

	tiles := []tile{{name: "T29SNB", firstCol: 0, cols: Size}}
	if opts.Split {
		tiles = []tile{
			{name: "T29SNB", firstCol: 0, cols: 60},
			{name: "T29SNC", firstCol: 40, cols: 60},
		}
	}

	g := generator{
		dir:    dir,
		wkt:    wkt,
		engine: gdal.NewEngine(logger),
	}
	scene := Scene{FireDate: opts.FireDate}
	for _, period := range []struct {
		sensed time.Time
		burn   bool
		refs   *[]domain.ArchiveRef
	}{
		{opts.FireDate.AddDate(0, 0, -10), false, &scene.Pre},
		{opts.FireDate.AddDate(0, 0, 10), !opts.NoBurn, &scene.Post},
	} {
		for _, t := range tiles {
			if err := ctx.Err(); err != nil {
				return Scene{}, err
			}
			ref, err := g.product(period.sensed, t, period.burn)
			if err != nil {
				return Scene{}, err
			}
			*period.refs = append(*period.refs, ref)
		}
	}

	scene.BoundaryIndex, scene.Boundary, err = writeBoundaries(ctx, dir, logger)
	if err != nil {
		return Scene{}, err
	}
	logger.Info("fixture scene generated", "dir", dir, "tiles", len(tiles), "burn", !opts.NoBurn)
	return scene, nil
}

type generator struct {
	dir    string
	wkt    string
	engine *gdal.Engine
}

// product writes one L2A archive with 10 m bands, a 20 m SWIR band and
// coarse decoys of the 10 m bands.
func (g generator) product(sensed time.Time, t tile, burn bool) (domain.ArchiveRef, error) {
	stamp := sensed.Format("20060102") + "T112121"
	product := fmt.Sprintf("S2A_MSIL2A_%s_N0214_R037_%s_%sT131012", stamp, t.name, sensed.Format("20060102"))
	imgData := path.Join(product+".SAFE", "GRANULE", "L2A_"+t.name+"_A026851_"+stamp, "IMG_DATA")

	staging, err := os.MkdirTemp(g.dir, ".staging-*")
	if err != nil {
		return domain.ArchiveRef{}, err
	}
	defer os.RemoveAll(staging)

	entries := []archive.Entry{
		{Name: product + ".SAFE/MTD_MSIL2A.xml", Data: []byte("<Level-2A_User_Product/>")},
	}
	for _, band := range domain.CompositeBands {
		res := nativeResolution[band]
		r, err := g.bandRaster(t, band, res, burn)
		if err != nil {
			return domain.ArchiveRef{}, err
		}
		entry, err := g.stage(staging, imgData, t, stamp, band, res, r)
		if err != nil {
			return domain.ArchiveRef{}, err
		}
		entries = append(entries, entry)

		if res == 10 {
			decoy, err := g.uniform(t, 20, poison)
			if err != nil {
				return domain.ArchiveRef{}, err
			}
			entry, err := g.stage(staging, imgData, t, stamp, band, 20, decoy)
			if err != nil {
				return domain.ArchiveRef{}, err
			}
			entries = append(entries, entry)
		}
	}

	dst := filepath.Join(g.dir, product+".zip")
	if err := archive.Write(dst, entries); err != nil {
		return domain.ArchiveRef{}, err
	}
	return domain.ArchiveRef{Path: dst}, nil
}

func (g generator) stage(staging, imgData string, t tile, stamp string, band domain.BandID, res int, r *domain.Raster) (archive.Entry, error) {
	file := fmt.Sprintf("%s_%s_%s_%dm.jp2", t.name, stamp, band, res)
	local := filepath.Join(staging, file)
	if err := g.engine.WriteRaster(local, r); err != nil {
		return archive.Entry{}, err
	}
	return archive.Entry{
		Name:   path.Join(imgData, fmt.Sprintf("R%dm", res), file),
		Source: local,
	}, nil
}

// bandRaster renders band over tile t at res metres.
func (g generator) bandRaster(t tile, band domain.BandID, res int, burn bool) (*domain.Raster, error) {
	step := res / 10
	rows, cols := Size/step, t.cols/step
	data := make([]float64, rows*cols)
	for row := range rows {
		for col := range cols {
			// Top-left scene pixel of this cell.
			sr, sc := row*step, t.firstCol+col*step
			v := healthy[band]
			if burn && inBurn(sr) && inBurn(sc) {
				v = burned[band]
			}
			data[row*cols+col] = v
		}
	}
	return domain.NewRaster(g.geo(t, res), rows, cols, data)
}

func (g generator) uniform(t tile, res int, v float64) (*domain.Raster, error) {
	step := res / 10
	rows, cols := Size/step, t.cols/step
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return domain.NewRaster(g.geo(t, res), rows, cols, data)
}

func (g generator) geo(t tile, res int) domain.GeoReference {
	px := float64(res)
	return domain.GeoReference{
		Transform:  [6]float64{OriginX + float64(t.firstCol)*domain.PixelSize, px, 0, OriginY, 0, -px},
		Projection: g.wkt,
	}
}

func inBurn(i int) bool {
	return i >= BurnFirst && i <= BurnLast
}

// BurnedAreaM2 is the burned block's area on the source grid.
func BurnedAreaM2() float64 {
	side := float64(BurnLast-BurnFirst+1) * domain.PixelSize
	return side * side
}

// writeBoundaries creates a two-area boundary index in the sensor CRS and
// exports AreaCode from it.
func writeBoundaries(ctx context.Context, dir string, logger *slog.Logger) (index, boundary string, err error) {
	index = filepath.Join(dir, "CAOP.shp")
	areas := []gdal.Area{
		{Code: AreaCode, Name: AreaName, WKT: square(OriginX+100, OriginY-900, OriginX+900, OriginY-100)},
		{Code: "0801", Name: "Aljezur", WKT: square(OriginX-5000, OriginY-5000, OriginX-4000, OriginY-4000)},
	}
	if err := gdal.WriteBoundaries(index, gdal.DefaultCodeField, domain.SourceEPSG, areas); err != nil {
		return "", "", fmt.Errorf("write boundary index: %w", err)
	}

	boundary = filepath.Join(dir, "boundary", AreaCode+".shp")
	idx := gdal.NewBoundaryIndex(index, gdal.DefaultCodeField, logger)
	if err := idx.Export(ctx, AreaCode, boundary); err != nil {
		return "", "", fmt.Errorf("export boundary: %w", err)
	}
	return index, boundary, nil
}

func square(minX, minY, maxX, maxY float64) string {
	return fmt.Sprintf("POLYGON ((%[1].1f %[2].1f, %[3].1f %[2].1f, %[3].1f %[4].1f, %[1].1f %[4].1f, %[1].1f %[2].1f))",
		minX, minY, maxX, maxY)
}
