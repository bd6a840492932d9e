package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/observability"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// DefaultGRACESource is the source name of the GRACE dataset.
const DefaultGRACESource = "GRC"

// GroundwaterRequest asks for the groundwater anomaly of a region.
type GroundwaterRequest struct {
	Region *spatial.Region

	// GRACE names the total water storage source (default "GRC").
	GRACE string

	// Models are the land surface models whose components are averaged.
	// Each model is loaded from the source named after it.
	Models []domain.Model

	Policy      domain.MissingPolicy
	IncludeGrid bool
}

// Validate checks if the request is valid.
func (r *GroundwaterRequest) Validate() error {
	if r.Region == nil {
		return fmt.Errorf("%w: region is required", domain.ErrInputValidation)
	}
	if len(r.Models) == 0 {
		return fmt.Errorf("%w: at least one land surface model is required", domain.ErrInputValidation)
	}
	seen := make(map[domain.Model]bool, len(r.Models))
	for _, m := range r.Models {
		if _, err := domain.ParseModel(string(m)); err != nil {
			return err
		}
		if seen[m] {
			return fmt.Errorf("%w: model %s requested twice", domain.ErrInputValidation, m)
		}
		seen[m] = true
	}
	return nil
}

// GroundwaterResult holds every stage of a region's groundwater computation.
type GroundwaterResult struct {
	Region         string                   `json:"region"`
	GRACE          *RegionAnomalies         `json:"grace"`
	Models         []*RegionAnomalies       `json:"models"`
	Reconstruction *domain.Reconstruction   `json:"-"`
	Combined       *domain.CombinedResult   `json:"-"`
	Columns        map[string][]SeriesPoint `json:"columns,omitempty"`
	Errors         []*domain.SeriesError    `json:"-"`
	ErrorMessages  []string                 `json:"errors,omitempty"`
}

// GroundwaterUseCase reconstructs GRACE, aggregates the model components
// and derives the groundwater residual.
type GroundwaterUseCase struct {
	anomaly *AnomalyUseCase
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewGroundwaterUseCase creates a new groundwater use case.
func NewGroundwaterUseCase(anomaly *AnomalyUseCase, logger *slog.Logger, metrics *observability.Metrics) *GroundwaterUseCase {
	return &GroundwaterUseCase{anomaly: anomaly, logger: logger, metrics: metrics}
}

// Execute runs the full chain for one region. A GRACE series that cannot be
// reconstructed is reported in Errors and leaves Combined nil; validation,
// spatial and alignment errors are returned.
func (uc *GroundwaterUseCase) Execute(req GroundwaterRequest) (*GroundwaterResult, error) {
	if req.GRACE == "" {
		req.GRACE = DefaultGRACESource
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	grace, err := uc.anomaly.Execute(AnomalyRequest{
		Region:      req.Region,
		Source:      req.GRACE,
		Policy:      req.Policy,
		IncludeGrid: req.IncludeGrid,
	})
	if err != nil {
		return nil, err
	}
	if len(grace.Variables) != 1 {
		return nil, fmt.Errorf("%w: GRACE source %s must hold exactly one variable, has %d",
			domain.ErrInputValidation, req.GRACE, len(grace.Variables))
	}
	res := &GroundwaterResult{Region: req.Region.Name, GRACE: grace}

	components := make(map[domain.Component][]domain.Series)
	for _, model := range req.Models {
		vars := make([]string, 0, len(domain.Components()))
		for _, c := range domain.Components() {
			vars = append(vars, c.VariableName(model))
		}
		ma, err := uc.anomaly.Execute(AnomalyRequest{
			Region:      req.Region,
			Source:      string(model),
			Variables:   vars,
			Policy:      req.Policy,
			IncludeGrid: req.IncludeGrid,
		})
		if err != nil {
			return nil, err
		}
		res.Models = append(res.Models, ma)
		for i, c := range domain.Components() {
			s := ma.Variables[i].Series
			s.Name = fmt.Sprintf("%s_%s", c, model)
			components[c] = append(components[c], s)
		}
	}

	timer := prometheus.NewTimer(uc.metrics.StageDuration.WithLabelValues("reconstruct"))
	rec, err := domain.Reconstruct(grace.Variables[0].Series)
	timer.ObserveDuration()
	if err != nil {
		if !errors.Is(err, domain.ErrTemporalReconstruction) {
			return nil, err
		}
		uc.metrics.ReconstructionFailures.WithLabelValues(req.GRACE).Inc()
		serr := &domain.SeriesError{Region: req.Region.Name, Source: req.GRACE, Err: err}
		res.Errors = append(res.Errors, serr)
		res.ErrorMessages = append(res.ErrorMessages, serr.Error())
		uc.logger.Warn("reconstruction failed", "region", req.Region.Name, "source", req.GRACE, "error", err)
		return res, nil
	}
	res.Reconstruction = rec
	if undefined := rec.UndefinedClimatology(); len(undefined) > 0 {
		uc.logger.Warn("climatology undefined for some calendar months",
			"region", req.Region.Name, "months", undefined)
	}

	combineTimer := prometheus.NewTimer(uc.metrics.StageDuration.WithLabelValues("combine"))
	combined, err := domain.Combine(rec.Series(domain.ColumnTotal, "cm"), components)
	combineTimer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", req.Region.Name, err)
	}
	res.Combined = combined
	res.Columns = make(map[string][]SeriesPoint)
	for _, col := range combined.Columns() {
		res.Columns[col.Name] = toPoints(col)
	}

	uc.logger.Info("groundwater anomaly computed",
		"region", req.Region.Name,
		"months", len(combined.Months),
		"models", len(req.Models),
	)
	return res, nil
}
