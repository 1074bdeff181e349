package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"face-door-lock/internal/access"
	"face-door-lock/internal/core/workerpool"
	"face-door-lock/internal/db/repository"
	"face-door-lock/internal/sse"
	"face-door-lock/internal/util/timezone"
	"face-door-lock/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StatusSource provides the live control loop state
type StatusSource interface {
	Status() access.Status
}

// APIHandler serves the read-only status API
type APIHandler struct {
	status StatusSource
	repo   repository.Repository
	hub    *sse.Hub
	pool   *workerpool.WorkerPool
}

// NewAPIHandler creates the API handler. hub and pool may be nil.
func NewAPIHandler(status StatusSource, repo repository.Repository, hub *sse.Hub, pool *workerpool.WorkerPool) *APIHandler {
	return &APIHandler{
		status: status,
		repo:   repo,
		hub:    hub,
		pool:   pool,
	}
}

// RegisterRoutes registers the API routes on router
func (h *APIHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/status", h.GetStatus)
	router.GET("/events", h.ListEvents)
	router.GET("/identities", h.ListIdentities)
	router.GET("/stats", h.GetStatistics)
	router.GET("/system", h.GetSystem)
	if h.hub != nil {
		router.GET("/stream", h.Stream)
	}
}

// GetStatus returns the door, session and alert state of the last tick
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Status())
}

type eventResponse struct {
	Events     []access.Event `json:"events"`
	Pagination gin.H          `json:"pagination"`
}

// ListEvents returns audit events newest first
func (h *APIHandler) ListEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	filter := repository.EventFilter{
		Type:   c.Query("type"),
		Limit:  limit,
		Offset: offset,
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid since: %v", err)})
			return
		}
		filter.Since = t
	}

	rows, total, err := h.repo.GetEvents(filter)
	if err != nil {
		log.WithError(err).Error("Failed to list access events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}

	events := make([]access.Event, 0, len(rows))
	for _, row := range rows {
		ev := repository.FromModel(row)
		ev.Time = timezone.In(ev.Time)
		events = append(events, ev)
	}
	c.JSON(http.StatusOK, eventResponse{
		Events: events,
		Pagination: gin.H{
			"limit":  limit,
			"offset": offset,
			"total":  total,
		},
	})
}

type identityResponse struct {
	Name      string    `json:"name"`
	Encodings int       `json:"encodings"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListIdentities returns the enrolled identities without their vectors
func (h *APIHandler) ListIdentities(c *gin.Context) {
	identities, err := h.repo.GetIdentities()
	if err != nil {
		log.WithError(err).Error("Failed to list identities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch identities"})
		return
	}

	out := make([]identityResponse, 0, len(identities))
	for _, identity := range identities {
		out = append(out, identityResponse{
			Name:      identity.Name,
			Encodings: len(identity.Encodings),
			Source:    identity.Source,
			CreatedAt: timezone.In(identity.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GetStatistics returns store counters
func (h *APIHandler) GetStatistics(c *gin.Context) {
	stats, err := h.repo.GetStatistics()
	if err != nil {
		log.WithError(err).Error("Failed to compute statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSystem returns process and worker pool statistics
func (h *APIHandler) GetSystem(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetSystemStats(h.pool))
}
