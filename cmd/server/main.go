// Package main provides the storage anomaly HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"go.ngs.io/storage-anomaly/internal/adapter/store"
	"go.ngs.io/storage-anomaly/internal/adapter/store/gridded"
	"go.ngs.io/storage-anomaly/internal/config"
	httpHandler "go.ngs.io/storage-anomaly/internal/http"
	"go.ngs.io/storage-anomaly/internal/observability"
	"go.ngs.io/storage-anomaly/internal/usecase"
)

const version = "0.1.0"

func main() {
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("storage-anomaly-server version %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	log.Printf("Starting storage anomaly server...")
	log.Printf("Port: %s", cfg.Port)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Manifest: %s", cfg.ManifestPath)

	// The manifest names the gridded inputs; its regions are not used here.
	manifest, err := config.LoadManifest(cfg.ManifestPath)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}
	var loader store.DatasetLoader = gridded.NewStore(manifest.Sources()...)
	for _, name := range loader.Names() {
		log.Printf("  Source: %s", name)
	}

	anomalyUC := usecase.NewAnomalyUseCase(loader, logger, metrics)
	anomalyUC.Workers = manifest.Workers
	groundwaterUC := usecase.NewGroundwaterUseCase(anomalyUC, logger, metrics)

	router := httpHandler.SetupRouter(anomalyUC, groundwaterUC, cfg.CORSAllowedOrigins, clockwork.NewRealClock())

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("API endpoints:")
	log.Printf("  - GET  /v1/sources")
	log.Printf("  - POST /v1/anomalies")
	log.Printf("  - POST /v1/groundwater")
	log.Printf("  - POST /v1/regions/cells")
	log.Printf("  - GET  /metrics")

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Storage Anomaly Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  storage-anomaly-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  DATA_DIR                Data directory (default: ./data)")
	fmt.Println("  MANIFEST_PATH           Run manifest naming the gridded inputs (default: ./data/run.toml)")
	fmt.Println("  LOG_LEVEL               debug, info, warn or error (default: info)")
	fmt.Println("  LOG_FORMAT              json or text (default: json)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  storage-anomaly-server")
	fmt.Println()
	fmt.Println("  # Start server on custom port with text logs")
	fmt.Println("  PORT=3000 LOG_FORMAT=text storage-anomaly-server")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                        Health check")
	fmt.Println("  GET  /v1/sources                    List gridded sources and models")
	fmt.Println("  POST /v1/anomalies?source=GRC       Regional anomalies of a GeoJSON region")
	fmt.Println("  POST /v1/groundwater?models=NOAH    Groundwater anomaly of a GeoJSON region")
	fmt.Println("  POST /v1/regions/cells?source=GRC   Grid cells matched to a GeoJSON region")
	fmt.Println("  GET  /metrics                       Prometheus metrics")
	fmt.Println()
}
