// Command burnscan detects burned areas from Sentinel-2 product archives.
//
// Usage:
//
//	burnscan run --request monchique.yaml
//	burnscan run --area 0808 --archives images/*.zip --fire-date 2018-08-03 --prefix monchique --variant dnbr
//	burnscan serve
//	burnscan search --area 0808 --fire-date 2018-08-03
//	burnscan fetch --area 0808 --fire-date 2018-08-03 --out monchique.yaml
//	burnscan fixture --dir testdata/scene
//	burnscan verify results/monchique_20180803_dnbr.shp
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "burnscan",
		Short: "Detect burned areas from Sentinel-2 imagery",
		Long: `burnscan compares a pre-fire and a post-fire Sentinel-2 L2A acquisition over
an administrative area and writes the burned area as polygons, together with
false-colour composites of the post-fire scene.

Configuration is read from the environment (WORK_ROOT, RESULTS_DIR,
ARCHIVE_DIR, BOUNDARY_INDEX, DB_PATH, KAFKA_*, CATALOG_*, LOG_*).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newSearchCmd(),
		newFetchCmd(),
		newFixtureCmd(),
		newVerifyCmd(),
	)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
