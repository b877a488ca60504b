package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dairy-market-lab/internal/domain"
	"dairy-market-lab/internal/negotiation"
	"dairy-market-lab/internal/storage"
	"dairy-market-lab/internal/summary"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var invalid *domain.InvalidInputError
	var external *negotiation.ExternalSourceError

	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &external), errors.Is(err, summary.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, negotiation.ErrPriceTooHigh):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the mapped status. notFound replaces the
// message of 404 responses when set. Internal errors are not echoed.
func (h *Handler) writeError(c *gin.Context, err error, notFound string) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	switch {
	case status == http.StatusNotFound && notFound != "":
		msg = notFound
	case status == http.StatusInternalServerError:
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request error")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
