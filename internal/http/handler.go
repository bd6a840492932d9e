package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"go.ngs.io/storage-anomaly/internal/adapter/region"
	"go.ngs.io/storage-anomaly/internal/domain"
	"go.ngs.io/storage-anomaly/internal/spatial"
	"go.ngs.io/storage-anomaly/internal/usecase"
)

// maxRegionBytes bounds the GeoJSON body of a request.
const maxRegionBytes = 8 << 20

// Handler handles HTTP requests for regional anomalies.
type Handler struct {
	anomalyUC     *usecase.AnomalyUseCase
	groundwaterUC *usecase.GroundwaterUseCase
	clock         clockwork.Clock
}

// NewHandler creates a new HTTP handler.
func NewHandler(anomalyUC *usecase.AnomalyUseCase, groundwaterUC *usecase.GroundwaterUseCase, clock clockwork.Clock) *Handler {
	return &Handler{
		anomalyUC:     anomalyUC,
		groundwaterUC: groundwaterUC,
		clock:         clock,
	}
}

// GetSources handles GET /v1/sources.
func (h *Handler) GetSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources":  h.anomalyUC.Sources(),
		"models":   domain.Models(),
		"policies": []string{domain.ZeroFillMissing.String(), domain.ExcludeMissing.String()},
		"units":    domain.SupportedUnits(),
	})
}

// PostAnomalies handles POST /v1/anomalies.
// The body is a GeoJSON polygon, multipolygon, feature or feature collection.
func (h *Handler) PostAnomalies(c *gin.Context) {
	r, ok := h.bindRegion(c)
	if !ok {
		return
	}
	policy, err := domain.ParseMissingPolicy(c.Query("policy"))
	if err != nil {
		writeError(c, err)
		return
	}

	req := usecase.AnomalyRequest{
		Region:    r,
		Source:    c.Query("source"),
		Variables: splitList(c.Query("variables")),
		Policy:    policy,
	}
	response, err := h.anomalyUC.Execute(req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// PostGroundwater handles POST /v1/groundwater.
func (h *Handler) PostGroundwater(c *gin.Context) {
	r, ok := h.bindRegion(c)
	if !ok {
		return
	}
	policy, err := domain.ParseMissingPolicy(c.Query("policy"))
	if err != nil {
		writeError(c, err)
		return
	}

	// Default to every supported model.
	models := domain.Models()
	if names := splitList(c.Query("models")); len(names) > 0 {
		models = nil
		for _, name := range names {
			m, err := domain.ParseModel(name)
			if err != nil {
				writeError(c, err)
				return
			}
			models = append(models, m)
		}
	}

	response, err := h.groundwaterUC.Execute(usecase.GroundwaterRequest{
		Region: r,
		GRACE:  c.Query("grace"),
		Models: models,
		Policy: policy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// PostRegionCells handles POST /v1/regions/cells.
func (h *Handler) PostRegionCells(c *gin.Context) {
	r, ok := h.bindRegion(c)
	if !ok {
		return
	}
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source parameter is required"})
		return
	}

	cells, err := h.anomalyUC.Match(r, source)
	if err != nil {
		writeError(c, err)
		return
	}

	var area float64
	for _, cell := range cells {
		area += cell.AreaM2
	}
	c.JSON(http.StatusOK, gin.H{
		"region":  r.Name,
		"source":  source,
		"count":   len(cells),
		"area_m2": area,
		"cells":   cells,
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   h.clock.Now().UTC().Format(time.RFC3339),
	})
}

// bindRegion parses the request body as a GeoJSON region named by the
// "region" query parameter. It writes the error response itself.
func (h *Handler) bindRegion(c *gin.Context) (*spatial.Region, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRegionBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read body: %v", err)})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "GeoJSON region body is required"})
		return nil, false
	}
	r, err := region.ParseGeoJSON(c.Query("region"), body)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return r, true
}

// writeError maps pipeline error classes to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInputValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSpatialMatch), errors.Is(err, domain.ErrAlignment):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
