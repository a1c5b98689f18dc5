package main

import (
	"fmt"
	"path/filepath"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/fixture"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

func newFixtureCmd() *cobra.Command {
	var (
		dir      string
		fireDate string
		opts     fixture.Options
	)
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Generate a synthetic scene with a burned block",
		Long: `Write two small synthetic Sentinel-2 L2A acquisitions around a fire date,
a boundary index (CAOP.shp) and the exported boundary of area 0808, plus a
request.yaml that "run" accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := time.Parse(time.DateOnly, fireDate)
			if err != nil {
				return fmt.Errorf("fire date %q: want YYYY-MM-DD", fireDate)
			}
			opts.FireDate = d
			logger := sharedobs.NewLogger("info", "text")

			scene, err := fixture.Generate(cmd.Context(), dir, opts, logger)
			if err != nil {
				return err
			}

			rel := func(refs []domain.ArchiveRef) []domain.ArchiveRef {
				out := make([]domain.ArchiveRef, len(refs))
				for i, r := range refs {
					out[i] = domain.ArchiveRef{Path: filepath.Base(r.Path)}
				}
				return out
			}
			boundary, err := filepath.Rel(dir, scene.Boundary)
			if err != nil {
				return err
			}
			rf := requestFile{
				Request: pipeline.Request{
					Pre:      rel(scene.Pre),
					Post:     rel(scene.Post),
					Boundary: boundary,
					Variant:  domain.BurnIndex,
				},
				FireDate: fireDate,
				Prefix:   "fixture",
			}
			path := filepath.Join(dir, "request.yaml")
			if err := writeRequestFile(path, rf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scene written to %s; run it with: burnscan run -r %s\n", dir, path)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "fixture", "output directory")
	fl.StringVar(&fireDate, "fire-date", "2020-08-20", "fire date (YYYY-MM-DD)")
	fl.BoolVar(&opts.Split, "split", false, "deliver each acquisition as two overlapping tiles")
	fl.BoolVar(&opts.NoBurn, "no-burn", false, "leave the post-fire scene unburned")
	return cmd
}
