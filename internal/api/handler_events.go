package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/message"
	"pencil-me-in-backend/internal/mw"
	"pencil-me-in-backend/internal/planner"
)

type createEventRequest struct {
	Name      string   `json:"name"`
	Dates     []string `json:"dates" binding:"required,min=1"`
	StartTime *int     `json:"startTime" binding:"required"`
	EndTime   *int     `json:"endTime" binding:"required"`
	TimeZone  string   `json:"timeZone"`
}

// CreateEvent handles POST /api/events.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw))
			return
		}
		dates = append(dates, d)
	}

	ev, err := h.planner.Create(c.Request.Context(), planner.CreateInput{
		Name:      req.Name,
		Dates:     dates,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		TimeZone:  req.TimeZone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// ListEvents handles GET /api/events.
func (h *Handler) ListEvents(c *gin.Context) {
	c.JSON(http.StatusOK, h.planner.List(c.Request.Context(), mw.DeviceID(c)))
}

// GetEvent handles GET /api/events/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.planner.Get(c.Request.Context(), c.Param("id"), mw.DeviceID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type renameEventRequest struct {
	Name string `json:"name"`
}

// RenameEvent handles PATCH /api/events/:id.
func (h *Handler) RenameEvent(c *gin.Context) {
	var req renameEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ev, err := h.planner.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// DeleteEvent handles DELETE /api/events/:id.
func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.planner.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type submitAvailabilityRequest struct {
	Name  string      `json:"name"`
	Slots []time.Time `json:"slots"`
}

// SubmitAvailability handles PUT /api/events/:id/availability. The body replaces
// everything the calling device submitted before.
func (h *Handler) SubmitAvailability(c *gin.Context) {
	var req submitAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ev, err := h.planner.Submit(c.Request.Context(), c.Param("id"), planner.Submission{
		DeviceID: mw.DeviceID(c),
		Name:     req.Name,
		Slots:    toSlots(req.Slots),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

type setAvailabilityRequest struct {
	Participant string      `json:"participant"`
	Slots       []time.Time `json:"slots" binding:"required"`
	Available   *bool       `json:"available" binding:"required"`
}

// SetAvailability handles POST /api/events/:id/availability. Participant defaults to
// the caller's device id.
func (h *Handler) SetAvailability(c *gin.Context) {
	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	participant := req.Participant
	if participant == "" {
		participant = mw.DeviceID(c)
	}
	ev, err := h.planner.SetAvailability(c.Request.Context(), c.Param("id"), participant, toSlots(req.Slots), *req.Available)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// BestSlots handles GET /api/events/:id/best.
func (h *Handler) BestSlots(c *gin.Context) {
	limit := h.events.DefaultBestLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	if h.events.MaxBestLimit > 0 && limit > h.events.MaxBestLimit {
		limit = h.events.MaxBestLimit
	}

	best, err := h.planner.BestSlots(c.Request.Context(), c.Param("id"), mw.DeviceID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, best)
}

// Heatmap handles GET /api/events/:id/heatmap.
func (h *Handler) Heatmap(c *gin.Context) {
	hm, err := h.planner.Heatmap(c.Request.Context(), c.Param("id"), mw.DeviceID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hm)
}

// Participants handles GET /api/events/:id/participants.
func (h *Handler) Participants(c *gin.Context) {
	ps, err := h.planner.Participants(c.Request.Context(), c.Param("id"), mw.DeviceID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// ParticipantSlots handles GET /api/events/:id/participants/:pid/slots. With ?at=<RFC3339>
// it answers whether the participant is available in the slot starting then.
func (h *Handler) ParticipantSlots(c *gin.Context) {
	ctx := c.Request.Context()
	id, pid, localID := c.Param("id"), c.Param("pid"), mw.DeviceID(c)

	if raw := c.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid 'at' timestamp format, use RFC3339"))
			return
		}
		ok, err := h.planner.IsAvailable(ctx, id, pid, event.NewTimeSlot(at), localID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": ok})
		return
	}

	slots, err := h.planner.SlotsFor(ctx, id, pid, localID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

type shareResponse struct {
	message.Message
	Query string `json:"query"`
}

// Share handles GET /api/events/:id/share?kind=invitation|update.
func (h *Handler) Share(c *gin.Context) {
	msg, err := h.planner.Share(c.Request.Context(), c.Param("id"), message.Kind(c.Query("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shareResponse{Message: msg, Query: msg.Payload.Encode()})
}

func toSlots(starts []time.Time) []event.TimeSlot {
	slots := make([]event.TimeSlot, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, event.NewTimeSlot(s))
	}
	return slots
}
