package gdal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gdalgo "github.com/lukeroth/gdal"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

const (
	shapefileDriver = "ESRI Shapefile"
	dnField         = "DN"
)

// shapefileParts are the sidecar extensions replaced when a layer is rewritten.
var shapefileParts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg", ".qix"}

func noProgress(float64, string, any) int { return 1 }

// Polygonize writes one polygon per connected region of burned pixels in the
// mask to a new shapefile at dstPath. The layer takes the boundary layer's
// name and an integer DN field. The mask band doubles as its own validity
// mask, so unburned regions produce no features.
func (e *Engine) Polygonize(ctx context.Context, maskPath, boundary, dstPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := e.polygonize(maskPath, boundary, dstPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrVectorization, err)
	}
	e.logger.Info("burn mask polygonized", "path", dstPath, "features", n)
	return n, nil
}

func (e *Engine) polygonize(maskPath, boundary, dstPath string) (int, error) {
	layerName, err := boundaryLayerName(boundary)
	if err != nil {
		return 0, err
	}

	src, err := gdalgo.Open(maskPath, gdalgo.ReadOnly)
	if err != nil {
		return 0, fmt.Errorf("open mask: %w", err)
	}
	defer src.Close()
	band := src.RasterBand(1)

	if err := removeShapefile(dstPath); err != nil {
		return 0, err
	}
	ds, ok := gdalgo.OGRDriverByName(shapefileDriver).Create(dstPath, nil)
	if !ok {
		return 0, fmt.Errorf("create %s", dstPath)
	}
	defer ds.Destroy()

	sr := gdalgo.CreateSpatialReference(src.Projection())
	defer sr.Destroy()
	layer := ds.CreateLayer(layerName, sr, gdalgo.GT_Polygon, nil)

	fd := gdalgo.CreateFieldDefinition(dnField, gdalgo.FT_Integer)
	defer fd.Destroy()
	if err := layer.CreateField(fd, true); err != nil {
		return 0, fmt.Errorf("create %s field: %w", dnField, err)
	}

	if err := band.Polygonize(band, layer, 0, nil, noProgress, nil); err != nil {
		return 0, fmt.Errorf("polygonize: %w", err)
	}
	count, _ := layer.FeatureCount(true)
	return count, nil
}

// WriteProjection writes the ESRI-flavoured WKT of an EPSG CRS to path.
func (e *Engine) WriteProjection(path string, epsg int) error {
	wkt, err := ProjectionESRI(epsg)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
	}
	if err := os.WriteFile(path, []byte(wkt), 0o644); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrArtifactWrite, err)
	}
	return nil
}

// ProjectionESRI returns the ESRI WKT of an EPSG CRS as written to .prj files.
func ProjectionESRI(epsg int) (string, error) {
	sr := gdalgo.CreateSpatialReference("")
	defer sr.Destroy()
	if err := sr.FromEPSG(epsg); err != nil {
		return "", fmt.Errorf("EPSG:%d: %w", epsg, err)
	}
	if err := sr.MorphToESRI(); err != nil {
		return "", fmt.Errorf("morph EPSG:%d to ESRI: %w", epsg, err)
	}
	return sr.ToWKT()
}

// Polygon is one feature of a burn layer.
type Polygon struct {
	DN   int
	Area float64 // squared CRS units
	WKT  string
}

// Layer summarizes a polygon shapefile.
type Layer struct {
	Name     string
	Polygons []Polygon
}

// ReadPolygons loads every feature of a burn layer.
func ReadPolygons(path string) (Layer, error) {
	ds, err := openDataSource(path)
	if err != nil {
		return Layer{}, err
	}
	defer ds.Destroy()

	layer := ds.LayerByIndex(0)
	out := Layer{Name: layer.Name()}
	layer.ResetReading()
	for f := layer.NextFeature(); f != nil; f = layer.NextFeature() {
		idx := f.FieldIndex(dnField)
		if idx < 0 {
			f.Destroy()
			return Layer{}, fmt.Errorf("%s has no %s field", path, dnField)
		}
		geom := f.Geometry()
		wkt, err := geom.ToWKT()
		if err != nil {
			f.Destroy()
			return Layer{}, fmt.Errorf("geometry of %s: %w", path, err)
		}
		out.Polygons = append(out.Polygons, Polygon{DN: f.FieldAsInteger(idx), Area: geom.Area(), WKT: wkt})
		f.Destroy()
	}
	return out, nil
}

func boundaryLayerName(path string) (string, error) {
	ds, err := openDataSource(path)
	if err != nil {
		return "", err
	}
	defer ds.Destroy()
	return ds.LayerByIndex(0).Name(), nil
}

// openDataSource opens a vector file read-only and checks it has a layer.
func openDataSource(path string) (gdalgo.DataSource, error) {
	if _, err := os.Stat(path); err != nil {
		return gdalgo.DataSource{}, fmt.Errorf("open vector %s: %w", path, err)
	}
	ds := gdalgo.OpenDataSource(path, 0)
	if ds.LayerCount() == 0 {
		ds.Destroy()
		return gdalgo.DataSource{}, fmt.Errorf("vector %s has no layers", path)
	}
	return ds, nil
}

// removeShapefile deletes every part of the shapefile at path.
func removeShapefile(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range shapefileParts {
		if err := os.Remove(base + ext); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove old %s: %w", ext, err)
		}
	}
	return nil
}
