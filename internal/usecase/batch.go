package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/storage-anomaly/internal/adapter/store/csv"
	"go.ngs.io/storage-anomaly/internal/adapter/store/gridded"
	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/observability"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// BatchRequest describes one batch run over several regions.
type BatchRequest struct {
	Regions   []*spatial.Region
	GRACE     string
	Models    []domain.Model
	Policy    domain.MissingPolicy
	OutputDir string
	Gridded   bool

	// Workers bounds the regions processed concurrently (0 means 1).
	Workers int
}

// Validate checks if the request is valid.
func (r *BatchRequest) Validate() error {
	if len(r.Regions) == 0 {
		return fmt.Errorf("%w: at least one region is required", domain.ErrInputValidation)
	}
	if r.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", domain.ErrInputValidation)
	}
	return nil
}

// RegionReport lists what a batch run produced for one region.
type RegionReport struct {
	Region string
	Cells  int
	Files  []string
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	RunID   string
	Regions []RegionReport
	Errors  []*domain.SeriesError
}

// BatchRunner computes and writes the outputs of every region of a run.
type BatchRunner struct {
	groundwater *GroundwaterUseCase
	writer      *gridded.Writer
	logger      *slog.Logger
	metrics     *observability.Metrics
	newID       func() string
}

// NewBatchRunner creates a new batch runner.
func NewBatchRunner(groundwater *GroundwaterUseCase, writer *gridded.Writer, logger *slog.Logger, metrics *observability.Metrics) *BatchRunner {
	return &BatchRunner{
		groundwater: groundwater,
		writer:      writer,
		logger:      logger,
		metrics:     metrics,
		newID:       func() string { return uuid.NewString() },
	}
}

// Run processes every region. Validation, spatial and alignment errors
// abort the run; reconstruction failures are collected in the report and
// the region's combined table is skipped.
func (b *BatchRunner) Run(ctx context.Context, req BatchRequest) (*BatchReport, error) {
	if req.GRACE == "" {
		req.GRACE = DefaultGRACESource
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	report := &BatchReport{
		RunID:   b.newID(),
		Regions: make([]RegionReport, len(req.Regions)),
	}
	logger := b.logger.With("run_id", report.RunID)
	logger.Info("batch run started", "regions", len(req.Regions), "models", len(req.Models), "policy", req.Policy.String())

	errs := make([][]*domain.SeriesError, len(req.Regions))
	g, ctx := errgroup.WithContext(ctx)
	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, region := range req.Regions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rr, serrs, err := b.runRegion(req, region, report.RunID)
			if err != nil {
				return err
			}
			report.Regions[i] = rr
			errs[i] = serrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("batch run aborted", "error", err)
		return nil, err
	}

	for _, e := range errs {
		report.Errors = append(report.Errors, e...)
	}
	logger.Info("batch run finished", "regions", len(report.Regions), "series_errors", len(report.Errors))
	return report, nil
}

func (b *BatchRunner) runRegion(req BatchRequest, region *spatial.Region, runID string) (RegionReport, []*domain.SeriesError, error) {
	res, err := b.groundwater.Execute(GroundwaterRequest{
		Region:      region,
		GRACE:       req.GRACE,
		Models:      req.Models,
		Policy:      req.Policy,
		IncludeGrid: req.Gridded,
	})
	if err != nil {
		return RegionReport{}, nil, err
	}

	timer := prometheus.NewTimer(b.metrics.StageDuration.WithLabelValues("write"))
	defer timer.ObserveDuration()

	rr := RegionReport{Region: region.Name, Cells: len(res.GRACE.Cells)}
	write := func(name string, t *csv.Table) error {
		path := filepath.Join(req.OutputDir, fmt.Sprintf("timeseries_%s_%s.csv", region.Name, name))
		if err := csv.SaveTable(path, t); err != nil {
			return err
		}
		rr.Files = append(rr.Files, path)
		return nil
	}

	graceTable, err := csv.FromSeries(res.GRACE.Variables[0].Series)
	if err != nil {
		return RegionReport{}, nil, err
	}
	if err := write(req.GRACE, graceTable); err != nil {
		return RegionReport{}, nil, err
	}

	for _, ma := range res.Models {
		series := make([]domain.Series, len(ma.Variables))
		for i, c := range domain.Components() {
			series[i] = ma.Variables[i].Series
			series[i].Name = string(c)
		}
		t, err := csv.FromSeries(series...)
		if err != nil {
			return RegionReport{}, nil, err
		}
		if err := write(ma.Source, t); err != nil {
			return RegionReport{}, nil, err
		}
	}

	if res.Combined != nil {
		t, err := csv.FromSeries(res.Combined.Columns()...)
		if err != nil {
			return RegionReport{}, nil, err
		}
		if err := write("ALLa", t); err != nil {
			return RegionReport{}, nil, err
		}
	}

	if req.Gridded {
		for _, ra := range append([]*RegionAnomalies{res.GRACE}, res.Models...) {
			path := filepath.Join(req.OutputDir, fmt.Sprintf("map_%s_%s.nc", region.Name, ra.Source))
			if err := b.writer.Write(path, gridOutput(ra, runID)); err != nil {
				return RegionReport{}, nil, err
			}
			rr.Files = append(rr.Files, path)
		}
	}

	b.logger.Info("region written", "run_id", runID, "region", region.Name, "files", len(rr.Files))
	return rr, res.Errors, nil
}

func gridOutput(ra *RegionAnomalies, runID string) gridded.Output {
	out := gridded.Output{Dataset: ra.Dataset, RunID: runID, Region: ra.Region}
	for _, va := range ra.Variables {
		src, _ := ra.Dataset.Field(va.Variable)
		out.Variables = append(out.Variables, gridded.OutputVariable{
			Name:   va.Variable,
			Values: va.Grid,
			Source: src,
		})
	}
	return out
}
