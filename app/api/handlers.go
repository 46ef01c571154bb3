package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/content-comb/app/database"
	"github.com/lysyi3m/content-comb/app/ingest"
	"github.com/lysyi3m/content-comb/app/source"
)

const (
	defaultItemsLimit = 20
	maxItemsLimit     = 200
)

func NewHandler(registry SourceRegistry, itemRepo database.ItemRepository, scheduler RunScheduler,
	db Pinger, version string, incrementalDays, backfillDays int) *Handler {
	return &Handler{
		registry:        registry,
		itemRepo:        itemRepo,
		scheduler:       scheduler,
		db:              db,
		version:         version,
		incrementalDays: incrementalDays,
		backfillDays:    backfillDays,
		now:             time.Now,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":             h.now().In(time.Local).Format(time.RFC3339),
		"version":               h.version,
		"loaded_configurations": h.registry.GetSourceCount(),
		"database":              "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		health["database"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs, err := h.registry.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, sourceConfig := range configs {
		sourceInfo := map[string]interface{}{
			"name":           sourceConfig.Name,
			"kind":           sourceConfig.Kind,
			"endpoint":       sourceConfig.Endpoint(),
			"enabled":        sourceConfig.Settings.Enabled,
			"max_items":      sourceConfig.Settings.MaxItems,
			"retention_days": sourceConfig.Settings.RetentionDays,
			"filters":        len(sourceConfig.Filters),
			"checkpoint": map[string]interface{}{
				"etag":              sourceConfig.Checkpoint.ETag,
				"last_modified":     sourceConfig.Checkpoint.LastModified,
				"last_seen_item_id": sourceConfig.Checkpoint.LastSeenItemID,
				"last_fetched_at":   sourceConfig.Checkpoint.LastFetchedAt,
			},
		}

		if itemCount, err := h.itemRepo.GetItemCount(c.Request.Context(), sourceConfig.Name); err == nil {
			sourceInfo["item_count"] = itemCount
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIGetSourceItems(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.registry.GetSource(c.Request.Context(), name); err != nil {
		h.sourceError(c, name, err)
		return
	}

	limit := defaultItemsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxItemsLimit)
	}

	items, err := h.itemRepo.GetRecentItems(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]itemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, itemResponse{
			IdentityKey:  item.IdentityKey,
			Title:        item.Title,
			Excerpt:      item.Excerpt,
			PublishedAt:  item.PublishedAt,
			CanonicalURL: item.CanonicalURL,
			MediaURL:     item.MediaURL,
			ImageURL:     item.ImageURL,
			ImageSource:  item.ImageSource,
			CreatedAt:    item.CreatedAt,
			UpdatedAt:    item.UpdatedAt,
		})
	}

	c.Header("X-Source-Items", strconv.Itoa(len(response)))
	c.JSON(http.StatusOK, gin.H{
		"source": name,
		"items":  response,
	})
}

func (h *Handler) APIReloadSources(c *gin.Context) {
	if err := h.registry.Reload(c.Request.Context()); err != nil {
		slog.Error("Error reloading configuration", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sources": h.registry.GetSourceCount(),
	})
}

// APIStartRun runs every active source synchronously and returns the run
// summary. The run stops when the client disconnects.
func (h *Handler) APIStartRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parameters", "details": err.Error()})
		return
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	mode, err := h.buildMode(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.scheduler.RunOnce(c.Request.Context(), mode)
	if err != nil {
		h.runError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// APIResyncSource re-scans one source in backfill mode.
func (h *Handler) APIResyncSource(c *gin.Context) {
	name := c.Param("name")

	var req resyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}
	if req.DaysBack < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days_back must be positive"})
		return
	}

	days := req.DaysBack
	if days == 0 {
		days = h.backfillDays
	}

	summary, err := h.scheduler.RunSource(c.Request.Context(), name, ingest.BackfillDays(h.now(), days))
	if err != nil {
		if errors.Is(err, source.ErrSourceNotFound) {
			h.sourceError(c, name, err)
			return
		}
		h.runError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) buildMode(req runRequest) (ingest.Mode, error) {
	switch ingest.ModeKind(req.Mode) {
	case "", ingest.ModeIncremental:
		return ingest.Incremental(h.now(), h.incrementalDays), nil
	case ingest.ModeBackfill:
		if req.Date != "" {
			date, err := time.ParseInLocation(time.DateOnly, req.Date, time.Local)
			if err != nil {
				return ingest.Mode{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", req.Date)
			}
			return ingest.BackfillDate(date), nil
		}
		if req.Days < 0 {
			return ingest.Mode{}, fmt.Errorf("days must be positive")
		}
		days := req.Days
		if days == 0 {
			days = h.backfillDays
		}
		return ingest.BackfillDays(h.now(), days), nil
	default:
		return ingest.Mode{}, fmt.Errorf("unknown mode %q", req.Mode)
	}
}

func (h *Handler) runError(c *gin.Context, err error) {
	if errors.Is(err, ingest.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "Run in progress", "message": err.Error()})
		return
	}

	slog.Error("Run failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Run failed", "message": err.Error()})
}

func (h *Handler) sourceError(c *gin.Context, name string, err error) {
	if errors.Is(err, source.ErrSourceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	slog.Error("Database error", "operation", "get_source", "source", name, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}
