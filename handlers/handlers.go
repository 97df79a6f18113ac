package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"factorylens/database"
	"factorylens/logger"
	"factorylens/models"
	"factorylens/services"
	"factorylens/websocket"
)

// Exporter writes the dataset to an external store
type Exporter interface {
	ExportDataset(ctx context.Context, ds *models.Dataset) (*database.ExportResult, error)
	LatestExport(ctx context.Context) (*database.ExportResult, error)
}

// Handler contains all the dependencies needed for HTTP handlers
type Handler struct {
	dashboard   *services.Dashboard
	hub         *websocket.Hub
	exporter    Exporter
	defaultSeed int64
	log         *logger.Logger
}

// New creates a new handler instance. exporter may be nil when no database is configured.
func New(dashboard *services.Dashboard, hub *websocket.Hub, exporter Exporter, defaultSeed int64, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		dashboard:   dashboard,
		hub:         hub,
		exporter:    exporter,
		defaultSeed: defaultSeed,
		log:         log,
	}
}

// RegisterRoutes mounts every endpoint on router
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.GET("/catalog", h.GetCatalog)

		api.GET("/selection", h.GetSelection)
		api.PUT("/selection", h.UpdateSelection)

		api.GET("/dashboard", h.GetDashboard)
		api.GET("/qc", h.GetQC)
		api.GET("/oee", h.GetOEE)
		api.GET("/downtime", h.GetDowntime)
		api.GET("/energy", h.GetEnergy)
		api.GET("/alerts", h.GetAlerts)
		api.GET("/benchmark", h.GetBenchmark)

		api.POST("/dataset/reset", h.ResetDataset)

		api.GET("/thresholds", h.GetThresholds)
		api.PUT("/thresholds", h.UpdateThresholds)

		api.GET("/export", h.GetExport)
		api.POST("/export", h.RunExport)

		api.GET("/system/health", h.GetSystemHealth)
	}

	router.GET("/ws", h.WebSocketEndpoint)
}

// respondError maps validation errors to 400 and everything else to 500
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, models.ErrInvalidSelection) || errors.Is(err, models.ErrInvalidThresholds) {
		status = http.StatusBadRequest
	} else {
		h.log.Error(msg, "error", err, "path", c.FullPath())
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// Health is the liveness probe
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
	})
}

// GetCatalog returns the static reference entities
func (h *Handler) GetCatalog(c *gin.Context) {
	ds := h.dashboard.Dataset()
	c.JSON(http.StatusOK, gin.H{
		"factories": ds.Factories,
		"lines":     ds.Lines,
		"products":  ds.Products,
		"recipes":   ds.Recipes,
		"models":    ds.Models,
		"tariffs":   ds.Tariffs,
	})
}

// GetSelection returns the current selection
func (h *Handler) GetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"selection": h.dashboard.Selection()})
}

// UpdateSelection merges a partial selection into the current one
func (h *Handler) UpdateSelection(c *gin.Context) {
	var patch models.SelectionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	snapshot, err := h.dashboard.UpdateSelection(patch)
	if err != nil {
		h.respondError(c, "Failed to update selection", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Selection updated successfully",
		"selection": snapshot.Selection,
	})
}

// snapshot computes the view for the current selection with query overrides applied
func (h *Handler) snapshot(c *gin.Context) (services.Snapshot, bool) {
	var patch models.SelectionPatch
	if v, ok := c.GetQuery("factory_id"); ok {
		patch.FactoryID = &v
	}
	if v, ok := c.GetQuery("range"); ok {
		r := models.RangeKey(v)
		patch.Range = &r
	}
	if v, ok := c.GetQuery("shift"); ok {
		s := models.ShiftCode(v)
		patch.Shift = &s
	}
	if v, ok := c.GetQuery("product"); ok {
		p := models.ProductCode(v)
		patch.Product = &p
	}

	sel, err := patch.Apply(h.dashboard.Selection())
	if err != nil {
		h.respondError(c, "Invalid selection", err)
		return services.Snapshot{}, false
	}
	s, err := h.dashboard.Compute(sel)
	if err != nil {
		h.respondError(c, "Failed to compute dashboard", err)
		return services.Snapshot{}, false
	}
	return s, true
}

// GetDashboard returns the full snapshot
func (h *Handler) GetDashboard(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetQC returns the quality summary
func (h *Handler) GetQC(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection":    s.Selection,
		"window_start": s.WindowStart,
		"summary":      s.QC,
	})
}

// GetOEE returns line, factory and trend OEE
func (h *Handler) GetOEE(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection":    s.Selection,
		"window_start": s.WindowStart,
		"lines":        s.OEE.Lines,
		"overall":      s.OEE.Overall,
		"trend":        s.OEE.Trend,
	})
}

// GetDowntime returns the Pareto table and the hourly scatter
func (h *Handler) GetDowntime(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection":    s.Selection,
		"window_start": s.WindowStart,
		"pareto":       s.Pareto,
		"scatter":      s.Scatter,
	})
}

// GetEnergy returns the trend, the cost breakdown and the live reading
func (h *Handler) GetEnergy(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection":    s.Selection,
		"window_start": s.WindowStart,
		"trend":        s.EnergyTrend,
		"cost":         s.Cost,
		"live":         s.LiveEnergy,
	})
}

// GetAlerts returns the recent generated alerts and the monitor alerts
func (h *Handler) GetAlerts(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection": s.Selection,
		"recent":    s.RecentAlerts,
		"monitor":   s.MonitorAlerts,
		"count":     len(s.RecentAlerts) + len(s.MonitorAlerts),
	})
}

// GetBenchmark returns the cross-factory comparison
func (h *Handler) GetBenchmark(c *gin.Context) {
	s, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"selection": s.Selection,
		"benchmark": s.Benchmark,
	})
}

// ResetDataset regenerates the dataset, optionally from a new seed
func (h *Handler) ResetDataset(c *gin.Context) {
	var req struct {
		Seed *int64 `json:"seed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	seed := h.defaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}

	s := h.dashboard.Reset(seed)
	ds := h.dashboard.Dataset()

	c.JSON(http.StatusOK, gin.H{
		"message":      "Dataset regenerated successfully",
		"seed":         s.Seed,
		"generated_at": s.GeneratedAt,
		"counts":       datasetCounts(ds),
	})
}

func datasetCounts(ds *models.Dataset) gin.H {
	return gin.H{
		"qc_records":      len(ds.QCRecords),
		"oee_samples":     len(ds.OEE),
		"downtime_events": len(ds.Downtime),
		"energy_samples":  len(ds.Energy),
		"alerts":          len(ds.Alerts),
	}
}

// GetThresholds retrieves current KPI thresholds
func (h *Handler) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"thresholds": h.dashboard.Monitor().GetThresholds(),
	})
}

// UpdateThresholds replaces the KPI thresholds
func (h *Handler) UpdateThresholds(c *gin.Context) {
	var thresholds models.KPIThresholds
	if err := c.ShouldBindJSON(&thresholds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid threshold data",
			"details": err.Error(),
		})
		return
	}

	if err := h.dashboard.Monitor().UpdateThresholds(thresholds); err != nil {
		h.respondError(c, "Invalid thresholds", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "KPI thresholds updated successfully",
		"thresholds": thresholds,
	})
}

func (h *Handler) exportUnavailable(c *gin.Context) bool {
	if h.exporter != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": "Snapshot export is disabled",
	})
	return true
}

// GetExport reports the latest snapshot export
func (h *Handler) GetExport(c *gin.Context) {
	if h.exportUnavailable(c) {
		return
	}
	latest, err := h.exporter.LatestExport(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to retrieve export status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": latest})
}

// RunExport writes the current dataset to the database
func (h *Handler) RunExport(c *gin.Context) {
	if h.exportUnavailable(c) {
		return
	}
	result, err := h.exporter.ExportDataset(c.Request.Context(), h.dashboard.Dataset())
	if err != nil {
		h.respondError(c, "Failed to export dataset", err)
		return
	}
	h.log.Info("Dataset exported", "batch_id", result.BatchID, "rows", result.Rows)
	c.JSON(http.StatusOK, gin.H{
		"message": "Dataset exported successfully",
		"export":  result,
	})
}

// GetSystemHealth returns overall system health information
func (h *Handler) GetSystemHealth(c *gin.Context) {
	ds := h.dashboard.Dataset()
	sel := h.dashboard.Selection()

	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"websocket": gin.H{
			"connected_clients": h.hub.GetClientCount(),
		},
		"dataset": gin.H{
			"seed":         ds.Seed,
			"generated_at": ds.GeneratedAt,
			"counts":       datasetCounts(ds),
		},
		"selection":  sel,
		"export":     gin.H{"enabled": h.exporter != nil},
		"thresholds": h.dashboard.Monitor().GetThresholds(),
	}
	if stats, ok := h.dashboard.Monitor().GetFactoryStats(sel.FactoryID); ok {
		health["monitor"] = stats
	}

	c.JSON(http.StatusOK, health)
}

// WebSocketEndpoint handles WebSocket connections
func (h *Handler) WebSocketEndpoint(c *gin.Context) {
	h.hub.HandleWebSocket(c.Writer, c.Request)
}
