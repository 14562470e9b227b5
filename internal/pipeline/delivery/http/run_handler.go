package http

import (
	"context"
	"net/http"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/service"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"

	"github.com/labstack/echo/v4"
)

// RunHandler exposes the operational surface: health, run history and
// manual run triggers. Reads of pipeline entities stay with the
// separate query layer.
type RunHandler struct {
	orchestrator service.Orchestrator
	runs         RunHistory
	logger       *logger.Logger
}

// RunHistory is the slice of run persistence the handler reads.
type RunHistory interface {
	FindRecent(ctx context.Context, stage string, limit int) ([]entity.PipelineRun, error)
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(orchestrator service.Orchestrator, runs RunHistory, logger *logger.Logger) *RunHandler {
	return &RunHandler{orchestrator: orchestrator, runs: runs, logger: logger}
}

// RegisterRoutes registers the run routes to the Echo instance.
func (h *RunHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api/v1/runs")
	g.GET("", h.GetRecentRuns)
	g.POST("/pipeline", h.TriggerPipeline)
	g.POST("/digest", h.TriggerDigest)
}

// Health godoc
// @Summary Health check
// @Produce  json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *RunHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// GetRecentRuns godoc
// @Summary List recent pipeline runs
// @Description List recent run records, optionally filtered by stage
// @Tags runs
// @Produce  json
// @Param   stage  query   string false   "Stage filter"
// @Success 200 {array} entity.PipelineRun
// @Failure 500 {object} map[string]string
// @Router /runs [get]
func (h *RunHandler) GetRecentRuns(c echo.Context) error {
	runs, err := h.runs.FindRecent(c.Request().Context(), c.QueryParam("stage"), 50)
	if err != nil {
		h.logger.Error("Failed to list runs", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list runs"})
	}
	return c.JSON(http.StatusOK, runs)
}

// TriggerPipeline godoc
// @Summary Trigger a pipeline run
// @Description Start a full pipeline run in the background
// @Tags runs
// @Produce  json
// @Success 202 {object} map[string]string
// @Router /runs/pipeline [post]
func (h *RunHandler) TriggerPipeline(c echo.Context) error {
	utils.GoSafe(func() {
		if _, err := h.orchestrator.RunPipeline(context.Background()); err != nil {
			h.logger.Error("Manual pipeline run failed", logger.ErrorField(err))
		}
	})
	return c.JSON(http.StatusAccepted, echo.Map{"status": "started"})
}

// TriggerDigest godoc
// @Summary Trigger a digest compilation
// @Description Compile the digest for the current period
// @Tags runs
// @Produce  json
// @Param   type  query   string false   "daily or weekly (default daily)"
// @Success 200 {object} entity.Digest
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /runs/digest [post]
func (h *RunHandler) TriggerDigest(c echo.Context) error {
	digestType := entity.DigestType(c.QueryParam("type"))
	if digestType == "" {
		digestType = entity.DigestDaily
	}
	if digestType != entity.DigestDaily && digestType != entity.DigestWeekly {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid digest type"})
	}

	digest, err := h.orchestrator.RunDigest(c.Request().Context(), digestType)
	if err != nil {
		h.logger.Error("Manual digest run failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, digest)
}
