package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/burn-area-service/internal/adapter/gdal"
	"github.com/couchcryptid/burn-area-service/internal/domain"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <result.shp>",
		Short: "Check the artifacts of a finished analysis",
		Long: `Check that a result layer only holds DN values 0 and 1, that its .prj
file describes the output CRS, and that the three composites exist on a
common grid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := gdal.NewEngine(slog.New(slog.DiscardHandler))
			report, err := verifyResult(args[0], engine)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			if !report.passed() {
				return fmt.Errorf("%d check(s) failed", len(report.failures))
			}
			return nil
		},
	}
}

// rasterReader loads a composite for inspection.
type rasterReader interface {
	ReadRaster(path string) (*domain.Raster, error)
}

type verifyReport struct {
	features int
	burned   int
	burnedM2 float64
	failures []string
	checked  []string
}

func (r *verifyReport) failf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *verifyReport) okf(format string, args ...any) {
	r.checked = append(r.checked, fmt.Sprintf(format, args...))
}

func (r *verifyReport) passed() bool { return len(r.failures) == 0 }

func (r *verifyReport) print(w io.Writer) {
	for _, c := range r.checked {
		fmt.Fprintln(w, "  ok  ", c)
	}
	for _, f := range r.failures {
		fmt.Fprintln(w, "  FAIL", f)
	}
	fmt.Fprintf(w, "%d features, %d burned, %.2f ha burned\n", r.features, r.burned, r.burnedM2/10_000)
}

func verifyResult(shp string, rasters rasterReader) (*verifyReport, error) {
	layer, err := gdal.ReadPolygons(shp)
	if err != nil {
		return nil, err
	}
	report := &verifyReport{features: len(layer.Polygons)}

	bad := 0
	for _, p := range layer.Polygons {
		switch p.DN {
		case 1:
			report.burned++
			report.burnedM2 += p.Area
		case 0:
		default:
			bad++
		}
	}
	if bad > 0 {
		report.failf("%d feature(s) with DN outside {0,1}", bad)
	} else {
		report.okf("DN values within {0,1} (layer %q)", layer.Name)
	}

	base := strings.TrimSuffix(shp, filepath.Ext(shp))
	verifyProjection(report, base+".prj")
	verifyComposites(report, base, rasters)
	return report, nil
}

func verifyProjection(report *verifyReport, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.failf("projection file: %v", err)
		return
	}
	want, err := gdal.ProjectionESRI(domain.TargetEPSG)
	if err != nil {
		report.failf("projection EPSG:%d: %v", domain.TargetEPSG, err)
		return
	}
	if strings.TrimSpace(string(data)) != strings.TrimSpace(want) {
		report.failf("%s does not describe EPSG:%d", filepath.Base(path), domain.TargetEPSG)
		return
	}
	report.okf("%s describes EPSG:%d", filepath.Base(path), domain.TargetEPSG)
}

func verifyComposites(report *verifyReport, base string, rasters rasterReader) {
	var first *domain.Raster
	for _, c := range domain.Composites {
		path := c.FileName(base)
		r, err := rasters.ReadRaster(path)
		if err != nil {
			report.failf("composite %s: %v", filepath.Base(path), err)
			continue
		}
		if first == nil {
			first = r
		} else if !first.SameGrid(r) {
			report.failf("composite %s is not on the grid of the others", filepath.Base(path))
			continue
		}
		report.okf("composite %s", filepath.Base(path))
	}
}
