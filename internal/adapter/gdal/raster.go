package gdal

import (
	"fmt"

	gdalgo "github.com/lukeroth/gdal"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// ReadRaster loads the first band of a raster with its georeference.
func (e *Engine) ReadRaster(path string) (*domain.Raster, error) {
	ds, err := gdalgo.Open(path, gdalgo.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer ds.Close()

	cols, rows := ds.RasterXSize(), ds.RasterYSize()
	data := make([]float64, cols*rows)
	if err := ds.RasterBand(1).IO(gdalgo.Read, 0, 0, cols, rows, data, cols, rows, 0, 0); err != nil {
		return nil, fmt.Errorf("read raster %s: %w", path, err)
	}
	geo := domain.GeoReference{Transform: ds.GeoTransform(), Projection: ds.Projection()}
	return domain.NewRaster(geo, rows, cols, data)
}

// WriteRaster stores r as a single-band Float32 GeoTIFF with the NoData
// sentinel set.
func (e *Engine) WriteRaster(path string, r *domain.Raster) error {
	if err := writeGeoTIFF(path, r.Geo, []*domain.Raster{r}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
	}
	return nil
}

// WriteComposite stores three rasters as the bands of one Float32 GeoTIFF on
// the grid of the first.
func (e *Engine) WriteComposite(path string, bands [3]*domain.Raster) error {
	if err := writeGeoTIFF(path, bands[0].Geo, bands[:]); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
	}
	e.logger.Debug("composite written", "path", path)
	return nil
}

func writeGeoTIFF(path string, geo domain.GeoReference, bands []*domain.Raster) error {
	rows, cols := bands[0].Dims()
	for i, b := range bands[1:] {
		if r, c := b.Dims(); r != rows || c != cols {
			return fmt.Errorf("band %d is %dx%d, want %dx%d", i+2, r, c, rows, cols)
		}
	}

	driver, err := gdalgo.GetDriverByName("GTiff")
	if err != nil {
		return fmt.Errorf("GTiff driver: %w", err)
	}
	ds := driver.Create(path, cols, rows, len(bands), gdalgo.Float32, nil)
	defer ds.Close()

	if err := ds.SetGeoTransform(geo.Transform); err != nil {
		return fmt.Errorf("set geotransform on %s: %w", path, err)
	}
	if geo.Projection != "" {
		if err := ds.SetProjection(geo.Projection); err != nil {
			return fmt.Errorf("set projection on %s: %w", path, err)
		}
	}
	for i, b := range bands {
		band := ds.RasterBand(i + 1)
		if err := band.IO(gdalgo.Write, 0, 0, cols, rows, b.Values(), cols, rows, 0, 0); err != nil {
			return fmt.Errorf("write band %d of %s: %w", i+1, path, err)
		}
		if err := band.SetNoDataValue(domain.NoData); err != nil {
			return fmt.Errorf("set nodata on %s: %w", path, err)
		}
	}
	ds.FlushCache()
	return nil
}

// ProjectionWKT returns the OGC WKT of an EPSG coordinate reference system.
func ProjectionWKT(epsg int) (string, error) {
	sr := gdalgo.CreateSpatialReference("")
	defer sr.Destroy()
	if err := sr.FromEPSG(epsg); err != nil {
		return "", fmt.Errorf("EPSG:%d: %w", epsg, err)
	}
	return sr.ToWKT()
}
