package gdal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"

	gdalgo "github.com/lukeroth/gdal"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

// ErrAreaNotFound is returned when no boundary carries the requested code.
var ErrAreaNotFound = errors.New("administrative area not found")

// DefaultCodeField is the municipality code attribute of the CAOP boundaries.
const DefaultCodeField = "DICO"

var validCode = regexp.MustCompile(`^[0-9A-Za-z]+$`)

// BoundaryIndex looks up administrative areas in a polygon shapefile by code.
type BoundaryIndex struct {
	path      string
	codeField string
	logger    *slog.Logger
}

// NewBoundaryIndex indexes the shapefile at path by codeField.
func NewBoundaryIndex(path, codeField string, logger *slog.Logger) *BoundaryIndex {
	if codeField == "" {
		codeField = DefaultCodeField
	}
	return &BoundaryIndex{path: path, codeField: codeField, logger: logger}
}

// Lookup returns the WGS-84 envelope of every polygon with the given code.
func (b *BoundaryIndex) Lookup(ctx context.Context, code string) (domain.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return domain.BoundingBox{}, err
	}
	ds, layer, err := b.filtered(code)
	if err != nil {
		return domain.BoundingBox{}, err
	}
	defer ds.Destroy()

	wgs84 := gdalgo.CreateSpatialReference("")
	defer wgs84.Destroy()
	if err := wgs84.FromProj4("+proj=longlat +datum=WGS84 +no_defs"); err != nil {
		return domain.BoundingBox{}, fmt.Errorf("WGS84: %w", err)
	}

	box := domain.BoundingBox{MinLon: math.Inf(1), MinLat: math.Inf(1), MaxLon: math.Inf(-1), MaxLat: math.Inf(-1)}
	found := 0
	for f := layer.NextFeature(); f != nil; f = layer.NextFeature() {
		geom := f.Geometry()
		if err := geom.TransformTo(wgs84); err != nil {
			f.Destroy()
			return domain.BoundingBox{}, fmt.Errorf("reproject area %s: %w", code, err)
		}
		env := geom.Envelope()
		box.MinLon = math.Min(box.MinLon, env.MinX())
		box.MaxLon = math.Max(box.MaxLon, env.MaxX())
		box.MinLat = math.Min(box.MinLat, env.MinY())
		box.MaxLat = math.Max(box.MaxLat, env.MaxY())
		found++
		f.Destroy()
	}
	if found == 0 {
		return domain.BoundingBox{}, fmt.Errorf("%w: %s=%s", ErrAreaNotFound, b.codeField, code)
	}
	return box, nil
}

// Export writes the polygons with the given code to a new shapefile at dst,
// keeping the source layer name and attributes. The result serves as the
// analysis cutline.
func (b *BoundaryIndex) Export(ctx context.Context, code, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds, layer, err := b.filtered(code)
	if err != nil {
		return err
	}
	defer ds.Destroy()

	if count, _ := layer.FeatureCount(true); count == 0 {
		return fmt.Errorf("%w: %s=%s", ErrAreaNotFound, b.codeField, code)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := removeShapefile(dst); err != nil {
		return err
	}
	out, ok := gdalgo.OGRDriverByName(shapefileDriver).Create(dst, nil)
	if !ok {
		return fmt.Errorf("create %s", dst)
	}
	defer out.Destroy()
	out.CopyLayer(layer, layer.Name(), nil)

	b.logger.Info("boundary exported", "code", code, "path", dst)
	return nil
}

func (b *BoundaryIndex) filtered(code string) (gdalgo.DataSource, gdalgo.Layer, error) {
	if !validCode.MatchString(code) {
		return gdalgo.DataSource{}, gdalgo.Layer{}, fmt.Errorf("invalid area code %q", code)
	}
	ds, err := openDataSource(b.path)
	if err != nil {
		return gdalgo.DataSource{}, gdalgo.Layer{}, err
	}
	layer := ds.LayerByIndex(0)
	if err := layer.SetAttributeFilter(fmt.Sprintf("%s = '%s'", b.codeField, code)); err != nil {
		ds.Destroy()
		return gdalgo.DataSource{}, gdalgo.Layer{}, fmt.Errorf("filter %s: %w", b.codeField, err)
	}
	layer.ResetReading()
	return ds, layer, nil
}

// Area is one administrative polygon for WriteBoundaries.
type Area struct {
	Code string
	Name string
	WKT  string
}

// WriteBoundaries creates a polygon shapefile holding areas in the given CRS,
// with string fields codeField and NAME.
func WriteBoundaries(path, codeField string, epsg int, areas []Area) error {
	if err := removeShapefile(path); err != nil {
		return err
	}
	ds, ok := gdalgo.OGRDriverByName(shapefileDriver).Create(path, nil)
	if !ok {
		return fmt.Errorf("create %s", path)
	}
	defer ds.Destroy()

	sr := gdalgo.CreateSpatialReference("")
	defer sr.Destroy()
	if err := sr.FromEPSG(epsg); err != nil {
		return fmt.Errorf("EPSG:%d: %w", epsg, err)
	}

	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	layer := ds.CreateLayer(name, sr, gdalgo.GT_Polygon, nil)
	for _, field := range []string{codeField, "NAME"} {
		fd := gdalgo.CreateFieldDefinition(field, gdalgo.FT_String)
		err := layer.CreateField(fd, true)
		fd.Destroy()
		if err != nil {
			return fmt.Errorf("create field %s: %w", field, err)
		}
	}

	for _, a := range areas {
		if err := addArea(layer, sr, a); err != nil {
			return fmt.Errorf("area %s: %w", a.Code, err)
		}
	}
	return nil
}

func addArea(layer gdalgo.Layer, sr gdalgo.SpatialReference, a Area) error {
	geom, err := gdalgo.CreateFromWKT(a.WKT, sr)
	if err != nil {
		return err
	}
	defer geom.Destroy()

	f := layer.Definition().Create()
	defer f.Destroy()
	f.SetFieldString(0, a.Code)
	f.SetFieldString(1, a.Name)
	if err := f.SetGeometry(geom); err != nil {
		return err
	}
	return layer.Create(f)
}
