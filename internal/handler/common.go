package handler

import (
	"errors"
	"net/http"

	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// actorID extracts the authenticated user id set by the auth middleware.
// Nil when the subject claim is absent or malformed; audit rows then record
// an anonymous actor rather than failing the request.
func actorID(c *gin.Context) *uuid.UUID {
	raw := c.GetString("userID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// writeError maps service errors onto HTTP status codes. Business outcomes
// get 4xx, lock contention gets 409 so clients retry, everything else is 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrReturnNotEligible),
		errors.Is(err, service.ErrQuantityExceedsSold):
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
	case errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, "stock is being modified concurrently, please retry"))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "resource not found"))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

// parseID parses a :id path parameter, writing the 400 itself on failure.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+name+" parameter"))
		return uuid.Nil, false
	}
	return id, true
}
