package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"pencil-me-in-backend/config"
	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/planner"
	"pencil-me-in-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	planner *planner.Service
	subs    store.SubscriptionStore
	webpush *webpush.Options
	events  config.EventsConfig
}

// NewHandler creates a new API handler.
func NewHandler(p *planner.Service, subs store.SubscriptionStore, webpushOptions *webpush.Options, events config.EventsConfig) *Handler {
	return &Handler{
		planner: p,
		subs:    subs,
		webpush: webpushOptions,
		events:  events,
	}
}

// respondError maps domain errors onto status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, event.ErrInvalidSlot),
		errors.Is(err, planner.ErrInvalidWindow),
		errors.Is(err, planner.ErrMissingParticipant),
		errors.Is(err, planner.ErrInvalidDeviceID),
		errors.Is(err, planner.ErrUnknownKind):
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
