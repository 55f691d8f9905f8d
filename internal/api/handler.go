package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"equipment-twin-backend/internal/mw"
	"equipment-twin-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// statusClientClosedRequest is the nginx convention for a request whose
// client went away before the response was ready.
const statusClientClosedRequest = 499

// respondError maps a store error onto an HTTP status and {"message": ...} body.
// notFound is the message used for ErrNotFound.
func (h *Handler) respondError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": notFound})
	case errors.Is(err, store.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": store.ErrConflict.Error()})
	case errors.Is(err, store.ErrStoreUnavailable):
		h.logger.WarnContext(c.Request.Context(), "store unavailable",
			slog.String("error", err.Error()),
			slog.String("request_id", mw.GetRequestID(c)))
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "store temporarily unavailable"})
	case errors.Is(err, store.ErrCanceled):
		h.logger.DebugContext(c.Request.Context(), "request canceled by client",
			slog.String("path", c.FullPath()),
			slog.String("request_id", mw.GetRequestID(c)))
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("path", c.FullPath()),
			slog.String("request_id", mw.GetRequestID(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
