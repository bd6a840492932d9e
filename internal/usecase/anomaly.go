package usecase

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"go.ngs.io/storage-anomaly/internal/adapter/store"
	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/observability"
	"go.ngs.io/storage-anomaly/internal/spatial"
)

// AnomalyRequest asks for the regional anomalies of one gridded source.
type AnomalyRequest struct {
	Region *spatial.Region
	Source string

	// Variables to aggregate; empty means every variable of the source.
	Variables []string

	Policy domain.MissingPolicy

	// IncludeGrid keeps the per-cell anomaly grids for gridded output.
	IncludeGrid bool
}

// VariableAnomaly is the regional series of one variable.
type VariableAnomaly struct {
	Variable  string           `json:"variable"`
	Series    domain.Series    `json:"-"`
	Points    []SeriesPoint    `json:"points"`
	ActiveM2  float64          `json:"active_area_m2"`
	Masked    int              `json:"masked_cells"`
	Grid      [][][]float64    `json:"-"`
	Baselines domain.Baselines `json:"-"`
}

// SeriesPoint is one value of a series in a response. Missing values are null.
type SeriesPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// RegionAnomalies contains the anomalies of every requested variable of a source.
type RegionAnomalies struct {
	Region    string            `json:"region"`
	Source    string            `json:"source"`
	Policy    string            `json:"policy"`
	Cells     []domain.Cell     `json:"cells"`
	AreaM2    float64           `json:"area_m2"`
	Variables []VariableAnomaly `json:"variables"`

	Dataset *domain.Dataset `json:"-"`
}

// Variable returns the anomaly of the named variable.
func (r *RegionAnomalies) Variable(name string) (*VariableAnomaly, bool) {
	for i := range r.Variables {
		if r.Variables[i].Variable == name {
			return &r.Variables[i], true
		}
	}
	return nil, false
}

// Validate checks if the request is valid.
func (r *AnomalyRequest) Validate() error {
	if r.Region == nil {
		return fmt.Errorf("%w: region is required", domain.ErrInputValidation)
	}
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", domain.ErrInputValidation)
	}
	switch r.Policy {
	case domain.ZeroFillMissing, domain.ExcludeMissing:
	default:
		return fmt.Errorf("%w: unknown missing policy %v", domain.ErrInputValidation, r.Policy)
	}
	return nil
}

// AnomalyUseCase orchestrates regional anomaly aggregation.
type AnomalyUseCase struct {
	loader  store.DatasetLoader
	logger  *slog.Logger
	metrics *observability.Metrics

	// Workers is passed to every matcher.
	Workers int

	matchers map[string]*spatial.Matcher // Matchers per source grid.
	mu       sync.Mutex                  // Protect matchers.
}

// NewAnomalyUseCase creates a new anomaly use case.
func NewAnomalyUseCase(loader store.DatasetLoader, logger *slog.Logger, metrics *observability.Metrics) *AnomalyUseCase {
	return &AnomalyUseCase{
		loader:   loader,
		logger:   logger,
		metrics:  metrics,
		matchers: make(map[string]*spatial.Matcher),
	}
}

// Sources lists the datasets the use case can aggregate.
func (uc *AnomalyUseCase) Sources() []string {
	return uc.loader.Names()
}

// Dataset loads a source dataset.
func (uc *AnomalyUseCase) Dataset(name string) (*domain.Dataset, error) {
	timer := prometheus.NewTimer(uc.metrics.StageDuration.WithLabelValues("load"))
	defer timer.ObserveDuration()
	return uc.loader.Load(name)
}

// Execute matches the region to the source grid and aggregates every
// requested variable.
func (uc *AnomalyUseCase) Execute(req AnomalyRequest) (*RegionAnomalies, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	ds, err := uc.Dataset(req.Source)
	if err != nil {
		return nil, err
	}

	fields := ds.Fields
	if len(req.Variables) > 0 {
		fields = make([]*domain.Field, 0, len(req.Variables))
		for _, name := range req.Variables {
			f, ok := ds.Field(name)
			if !ok {
				return nil, fmt.Errorf("%w: source %s has no variable %s", domain.ErrInputValidation, req.Source, name)
			}
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: source %s has no variables", domain.ErrInputValidation, req.Source)
	}

	cells, err := uc.match(req.Region, req.Source, ds.Grid)
	if err != nil {
		return nil, err
	}
	area := cellArea(cells)

	out := &RegionAnomalies{
		Region:  req.Region.Name,
		Source:  req.Source,
		Policy:  req.Policy.String(),
		Cells:   cells,
		AreaM2:  area,
		Dataset: ds,
	}

	aggTimer := prometheus.NewTimer(uc.metrics.StageDuration.WithLabelValues("anomaly"))
	defer aggTimer.ObserveDuration()
	for _, f := range fields {
		baselines := domain.ComputeBaselines(f, cells)
		series, err := domain.AggregateAnomaly(f, ds.Times, cells, baselines, req.Policy)
		if err != nil {
			return nil, fmt.Errorf("region %s, %s %s: %w", req.Region.Name, req.Source, f.Name, err)
		}
		active, err := domain.TotalArea(f, cells, baselines)
		if err != nil {
			return nil, err
		}
		va := VariableAnomaly{
			Variable:  f.Name,
			Series:    series,
			Points:    toPoints(series),
			ActiveM2:  active,
			Masked:    len(cells) - baselines.Active(),
			Baselines: baselines,
		}
		if req.IncludeGrid {
			va.Grid, err = domain.AnomalyGrid(f, cells, baselines)
			if err != nil {
				return nil, err
			}
		}
		out.Variables = append(out.Variables, va)
		uc.metrics.SeriesProduced.WithLabelValues(req.Source).Inc()
	}

	uc.logger.Debug("region anomalies computed",
		"region", req.Region.Name,
		"source", req.Source,
		"cells", len(cells),
		"variables", len(out.Variables),
		"policy", req.Policy.String(),
	)
	return out, nil
}

// Match returns the cells of a source grid that fall inside region.
func (uc *AnomalyUseCase) Match(region *spatial.Region, source string) ([]domain.Cell, error) {
	if region == nil {
		return nil, fmt.Errorf("%w: region is required", domain.ErrInputValidation)
	}
	ds, err := uc.Dataset(source)
	if err != nil {
		return nil, err
	}
	return uc.match(region, source, ds.Grid)
}

func (uc *AnomalyUseCase) match(region *spatial.Region, source string, g domain.Grid) ([]domain.Cell, error) {
	m, err := uc.matcher(source, g)
	if err != nil {
		return nil, err
	}
	timer := prometheus.NewTimer(uc.metrics.StageDuration.WithLabelValues("match"))
	cells, err := m.Match(region)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("region %s on %s: %w", region.Name, source, err)
	}
	uc.metrics.CellsMatched.WithLabelValues(region.Name).Add(float64(len(cells)))
	return cells, nil
}

func cellArea(cells []domain.Cell) float64 {
	var area float64
	for _, c := range cells {
		area += c.AreaM2
	}
	return area
}

// matcher returns the cached matcher for a source grid.
func (uc *AnomalyUseCase) matcher(source string, g domain.Grid) (*spatial.Matcher, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if m, ok := uc.matchers[source]; ok && m.Index().Grid().Equal(g) {
		return m, nil
	}
	idx, err := spatial.NewIndex(g)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}
	m := spatial.NewMatcher(idx)
	m.Workers = uc.Workers
	uc.matchers[source] = m
	return m, nil
}

func toPoints(s domain.Series) []SeriesPoint {
	pts := make([]SeriesPoint, len(s.Times))
	for i, t := range s.Times {
		pts[i] = SeriesPoint{Date: t.UTC().Format("2006-01-02")}
		if !domain.IsMissing(s.Values[i]) {
			v := s.Values[i]
			pts[i].Value = &v
		}
	}
	return pts
}
