// Package api provides the HTTP surface of the fare scanner: batch
// search, progress polling, and session cancellation.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/farescout/farescout/pkg/progress"
	"github.com/farescout/farescout/pkg/scan"
	"github.com/farescout/farescout/pkg/station"
)

// SearchRequest is the JSON body of POST /api/v1/search.
type SearchRequest struct {
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`

	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Dates     []string `json:"dates"`

	AgeGroup      string `json:"age_group"`
	DiscountType  string `json:"discount_type"`
	DiscountClass int    `json:"discount_class"`
	TravelClass   int    `json:"travel_class"`
	MaxTransfers  int    `json:"max_transfers"`
	FastOnly      bool   `json:"fast_only"`
	RegionalOnly  bool   `json:"regional_only"`

	EarliestDeparture string `json:"earliest_departure"`
	LatestArrival     string `json:"latest_arrival"`

	SessionID string `json:"session_id"`
}

// Handler serves the scan API.
type Handler struct {
	orchestrator *scan.Orchestrator
	tracker      *progress.Tracker
	logger       zerolog.Logger
}

// NewHandler creates an API handler.
func NewHandler(orchestrator *scan.Orchestrator, tracker *progress.Tracker, logger zerolog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		tracker:      tracker,
		logger:       logger,
	}
}

// Search handles POST /api/v1/search. The batch runs to completion and
// the aggregate per-day result map is returned; progress can be polled
// concurrently under the session id.
func (h *Handler) Search(c *gin.Context) {
	var body SearchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := body.toScanRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orchestrator.Run(c.Request.Context(), req, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scan.ErrInvalidDateRange) ||
			errors.Is(err, scan.ErrBatchTooLarge) ||
			errors.Is(err, station.ErrStationNotFound) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Progress handles GET /api/v1/progress/:session.
func (h *Handler) Progress(c *gin.Context) {
	sessionID := c.Param("session")

	p, ok := h.tracker.Read(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// Cancel handles POST /api/v1/cancel/:session.
func (h *Handler) Cancel(c *gin.Context) {
	sessionID := c.Param("session")

	if err := h.orchestrator.Cancel(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "session_id": sessionID})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (b *SearchRequest) toScanRequest() (scan.Request, error) {
	req := scan.Request{
		SessionID:         b.SessionID,
		Origin:            b.Origin,
		Destination:       b.Destination,
		AgeGroup:          b.AgeGroup,
		DiscountType:      b.DiscountType,
		DiscountClass:     b.DiscountClass,
		TravelClass:       b.TravelClass,
		MaxTransfers:      b.MaxTransfers,
		FastOnly:          b.FastOnly,
		RegionalOnly:      b.RegionalOnly,
		EarliestDeparture: b.EarliestDeparture,
		LatestArrival:     b.LatestArrival,
	}

	for _, raw := range b.Dates {
		d, err := parseDate(raw)
		if err != nil {
			return req, err
		}
		req.Dates = append(req.Dates, d)
	}

	if b.StartDate != "" {
		d, err := parseDate(b.StartDate)
		if err != nil {
			return req, err
		}
		req.StartDate = d
	}
	if b.EndDate != "" {
		d, err := parseDate(b.EndDate)
		if err != nil {
			return req, err
		}
		req.EndDate = d
	}

	return req, nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}
