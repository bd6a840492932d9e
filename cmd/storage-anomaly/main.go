// Command storage-anomaly runs the regional water storage pipeline described
// by a TOML manifest and writes per-region anomaly tables and grids.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"go.ngs.io/storage-anomaly/internal/adapter/region"
	"go.ngs.io/storage-anomaly/internal/adapter/store/gridded"
	"go.ngs.io/storage-anomaly/internal/config"
	"go.ngs.io/storage-anomaly/internal/observability"
	"go.ngs.io/storage-anomaly/internal/spatial"
	"go.ngs.io/storage-anomaly/internal/usecase"
)

func main() {
	manifestPath := flag.String("manifest", "./data/run.toml", "Path to the run manifest (TOML)")
	outDir := flag.String("out", "", "Output directory (overrides output.dir)")
	writeGrids := flag.Bool("gridded", false, "Also write gridded anomaly NetCDF files")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "Log format: json or text")
	showHelp := flag.Bool("help", false, "Show usage information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if err := run(*manifestPath, *outDir, *writeGrids, *logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(manifestPath, outDir string, griddedOut bool, logLevel, logFormat string) error {
	logger := observability.NewLogger(logLevel, logFormat)
	metrics := observability.NewMetrics()

	manifest, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = manifest.Output.Dir
	}

	regions := make([]*spatial.Region, 0, len(manifest.Regions))
	for _, ri := range manifest.Regions {
		r, err := region.Load(ri.Path, ri.Name)
		if err != nil {
			return fmt.Errorf("failed to load region %s: %w", ri.Name, err)
		}
		regions = append(regions, r)
	}
	log.Printf("Loaded %d regions from %s", len(regions), manifestPath)

	loader := gridded.NewStore(manifest.Sources()...)
	anomalyUC := usecase.NewAnomalyUseCase(loader, logger, metrics)
	groundwaterUC := usecase.NewGroundwaterUseCase(anomalyUC, logger, metrics)
	runner := usecase.NewBatchRunner(groundwaterUC, gridded.NewWriter(clockwork.NewRealClock()), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx, usecase.BatchRequest{
		Regions:   regions,
		GRACE:     config.GRACESourceName,
		Models:    manifest.Models(),
		Policy:    manifest.Policy,
		OutputDir: outDir,
		Gridded:   griddedOut || manifest.Output.Gridded,
		Workers:   manifest.Workers,
	})
	if err != nil {
		return err
	}

	log.Printf("\n=== Run %s Complete ===", report.RunID)
	for _, rr := range report.Regions {
		log.Printf("%s: %d cells, %d files", rr.Region, rr.Cells, len(rr.Files))
	}
	for _, serr := range report.Errors {
		log.Printf("Warning: %v", serr)
	}
	log.Printf("Files created in: %s", outDir)
	return nil
}

// printUsage prints usage information.
func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  storage-anomaly -manifest <run.toml> [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("MANIFEST:")
	fmt.Println(`  missing_policy = "zero"          # or "exclude"`)
	fmt.Println(`  workers = 4`)
	fmt.Println(`  [grace]`)
	fmt.Println(`  path = "GRC_mascon.nc"`)
	fmt.Println(`  scale_path = "CLM4_scale.nc"     # optional`)
	fmt.Println(`  [[ldas]]`)
	fmt.Println(`  model = "NOAH"                   # CLM, MOS, NOAH or VIC`)
	fmt.Println(`  path = "GLDAS_NOAH.nc"`)
	fmt.Println(`  [[region]]`)
	fmt.Println(`  path = "shp/basin.shp"           # or .geojson`)
	fmt.Println(`  [output]`)
	fmt.Println(`  dir = "output"`)
	fmt.Println()
}
