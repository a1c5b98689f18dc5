package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/burn-area-service/internal/adapter/stac"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

const defaultMaxCloudCover = 20

type searchFlags struct {
	area     string
	bbox     string
	fireDate string
	maxCloud float64
	perSide  int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.area, "area", "", "administrative area code to look up in BOUNDARY_INDEX")
	fl.StringVar(&f.bbox, "bbox", "", "search envelope as min_lon,min_lat,max_lon,max_lat")
	fl.StringVar(&f.fireDate, "fire-date", "", "fire date (YYYY-MM-DD)")
	fl.Float64Var(&f.maxCloud, "max-cloud", defaultMaxCloudCover, "maximum cloud cover percentage")
	fl.IntVar(&f.perSide, "per-side", 10, "products to keep either side of the fire date")
	_ = cmd.MarkFlagRequired("fire-date")
	cmd.MarkFlagsMutuallyExclusive("area", "bbox")
	cmd.MarkFlagsOneRequired("area", "bbox")
}

// selection is the outcome of a catalog search around a fire date.
type selection struct {
	fireDate      time.Time
	before, after []domain.Product
}

// validate checks the flags that need no catalog access.
func (f *searchFlags) validate() (time.Time, error) {
	fireDate, err := time.Parse(time.DateOnly, f.fireDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("fire date %q: want YYYY-MM-DD", f.fireDate)
	}
	if f.perSide < 1 {
		return time.Time{}, fmt.Errorf("--per-side must be at least 1, got %d", f.perSide)
	}
	if f.maxCloud < 0 || f.maxCloud > 100 {
		return time.Time{}, fmt.Errorf("--max-cloud must be between 0 and 100, got %g", f.maxCloud)
	}
	return fireDate, nil
}

func (f *searchFlags) search(ctx context.Context, a *app) (selection, error) {
	fireDate, err := f.validate()
	if err != nil {
		return selection{}, err
	}

	var bbox domain.BoundingBox
	if f.area != "" {
		if bbox, err = a.boundaryIndex().Lookup(ctx, f.area); err != nil {
			return selection{}, err
		}
	} else if bbox, err = parseBBox(f.bbox); err != nil {
		return selection{}, err
	}

	catalog := stac.NewCachedCatalog(a.newCatalog(), a.cfg.CatalogCacheSize, a.metrics)
	products, err := catalog.Search(ctx, bbox, domain.SearchWindow(fireDate), f.maxCloud)
	if err != nil {
		return selection{}, err
	}
	before, after := domain.SelectAroundFireDate(products, fireDate, f.perSide)
	return selection{fireDate: fireDate, before: before, after: after}, nil
}

func parseBBox(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, fmt.Errorf("bbox %q: want min_lon,min_lat,max_lon,max_lat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	box := domain.BoundingBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if box.MinLon >= box.MaxLon || box.MinLat >= box.MaxLat {
		return domain.BoundingBox{}, fmt.Errorf("bbox %q is empty", s)
	}
	return box, nil
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "List catalog products around a fire date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := f.validate(); err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			sel, err := f.search(cmd.Context(), a)
			if err != nil {
				return err
			}
			return printSelection(cmd.OutOrStdout(), sel)
		},
	}
	f.register(cmd)
	return cmd
}

func printSelection(w io.Writer, sel selection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tSENSED\tCLOUD\tTITLE")
	for _, group := range []struct {
		label    string
		products []domain.Product
	}{{"pre", sel.before}, {"post", sel.after}} {
		for _, p := range group.products {
			fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\n",
				group.label, p.SensedAt.UTC().Format(time.DateOnly), p.CloudCover, p.Title)
		}
	}
	return tw.Flush()
}

func newFetchCmd() *cobra.Command {
	var (
		f       searchFlags
		out     string
		prefix  string
		variant string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the products around a fire date and write a request file",
		Long: `Search the catalog like "search", download every selected product that is
not already in ARCHIVE_DIR, and write a YAML request for "run".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := domain.ParseVariant(variant)
			if err != nil {
				return err
			}
			if _, err := f.validate(); err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sel, err := f.search(ctx, a)
			if err != nil {
				return err
			}
			if len(sel.before) == 0 || len(sel.after) == 0 {
				return errors.New("the catalog has no products on one side of the fire date")
			}

			ledger, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer ledger.Close()

			client := a.newCatalog()
			fetcher := stac.NewFetcher(client, client, ledger, a.cfg.ArchiveDir, a.logger)
			refs, err := fetcher.Fetch(ctx, append(sel.before, sel.after...))
			if err != nil {
				return err
			}

			rf := requestFile{
				Request:  pipeline.Request{Variant: v},
				Archives: absolute(refs),
				FireDate: sel.fireDate.Format(time.DateOnly),
				Prefix:   prefix,
				Area:     f.area,
			}
			if err := writeRequestFile(out, rf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d archives ready; request written to %s\n", len(refs), out)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "request.yaml", "request file to write")
	cmd.Flags().StringVar(&prefix, "prefix", "burned_area", "output prefix")
	cmd.Flags().StringVar(&variant, "variant", string(domain.BurnIndex), "vegetation-index (dndvi) or burn-index (dnbr)")
	return cmd
}

// absolute makes archive paths independent of where the request file lives.
func absolute(refs []domain.ArchiveRef) []domain.ArchiveRef {
	out := make([]domain.ArchiveRef, len(refs))
	for i, r := range refs {
		out[i] = r
		if abs, err := filepath.Abs(r.Path); err == nil {
			out[i].Path = abs
		}
	}
	return out
}
