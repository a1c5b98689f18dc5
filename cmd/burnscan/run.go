package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/burn-area-service/internal/domain"
)

type runFlags struct {
	request    string
	pre, post  []string
	archives   []string
	fireDate   string
	prefix     string
	outputName string
	boundary   string
	area       string
	variant    string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one burned-area analysis",
		Long: `Run one analysis and write the burn polygons, projection file and
composites to RESULTS_DIR.

The analysis is read from --request (YAML) and then overridden by any flags
given. Archives passed with --archives are split into pre-fire and post-fire
sets on --fire-date; an archive sensed on the fire day is used in both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.request, "request", "r", "", "YAML analysis request")
	fl.StringSliceVar(&f.pre, "pre", nil, "pre-fire product archives, in mosaic order")
	fl.StringSliceVar(&f.post, "post", nil, "post-fire product archives, in mosaic order")
	fl.StringSliceVar(&f.archives, "archives", nil, "archives to split on --fire-date")
	fl.StringVar(&f.fireDate, "fire-date", "", "fire date (YYYY-MM-DD)")
	fl.StringVar(&f.prefix, "prefix", "", "output prefix; the name becomes <prefix>_<YYYYMMDD>_<dndvi|dnbr>")
	fl.StringVarP(&f.outputName, "output", "o", "", "output name (overrides --prefix)")
	fl.StringVarP(&f.boundary, "boundary", "b", "", "boundary polygon file")
	fl.StringVar(&f.area, "area", "", "administrative area code to look up in BOUNDARY_INDEX")
	fl.StringVar(&f.variant, "variant", "", "vegetation-index (dndvi) or burn-index (dnbr)")
	return cmd
}

// merge applies the flags that were set on top of rf.
func (f runFlags) merge(cmd *cobra.Command, rf requestFile) requestFile {
	changed := cmd.Flags().Changed
	toRefs := func(paths []string) []domain.ArchiveRef {
		refs := make([]domain.ArchiveRef, len(paths))
		for i, p := range paths {
			refs[i] = domain.ArchiveRef{Path: p}
		}
		return refs
	}
	if changed("pre") {
		rf.Pre = toRefs(f.pre)
	}
	if changed("post") {
		rf.Post = toRefs(f.post)
	}
	if changed("archives") {
		rf.Archives = toRefs(f.archives)
	}
	if changed("fire-date") {
		rf.FireDate = f.fireDate
	}
	if changed("prefix") {
		rf.Prefix = f.prefix
		rf.OutputName = ""
	}
	if changed("output") {
		rf.OutputName = f.outputName
	}
	if changed("boundary") {
		rf.Boundary = f.boundary
		rf.Area = ""
	}
	if changed("area") {
		rf.Area = f.area
		rf.Boundary = ""
	}
	if changed("variant") {
		rf.Variant = domain.Variant(f.variant)
	}
	return rf
}

func runAnalysis(cmd *cobra.Command, f runFlags) error {
	var rf requestFile
	if f.request != "" {
		var err error
		if rf, err = loadRequestFile(f.request); err != nil {
			return err
		}
	}
	rf = f.merge(cmd, rf)

	a, err := loadApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	req, err := rf.resolve(ctx, a.boundaryIndex(), filepath.Join(a.cfg.ResultsDir, "boundaries"))
	if err != nil {
		return err
	}

	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()

	publisher := a.newPublisher()
	if publisher != nil {
		defer publisher.Close()
	}

	out := cmd.OutOrStdout()
	sink := domain.ProgressFunc(func(percent int, message string) {
		fmt.Fprintf(out, "[%3d%%] %s\n", percent, message)
	})

	result, err := a.newPipeline(ledger, publisher).Run(ctx, req, sink)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
