// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/scope"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/pkg/logger"
)

// Gin context keys shared with the idempotency middleware.
const (
	IdempotencyKeyCtx   = "idempotency_key"
	IdempotencyStoreCtx = "idempotency_store"
)

const contentTypeJSON = "application/json; charset=utf-8"

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds the request body. An empty body is accepted for optional payloads.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParamID parses a uuid path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewFieldValidation(name, "invalid id format"))
		return id.Nil(), false
	}
	return v, true
}

// Actor returns the authenticated caller.
func (h *BaseHandler) Actor(c *gin.Context) (movement.Actor, bool) {
	actor, err := scope.ActorFromContext(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return movement.Actor{}, false
	}
	return actor, true
}

// CompleteIdempotency stores the exact response for replay under the request's idempotency key.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	key, ok := c.Get(IdempotencyKeyCtx)
	if !ok {
		return
	}
	v, _ := c.Get(IdempotencyStoreCtx)
	store, ok := v.(*postgres.IdempotencyStore)
	if !ok || store == nil {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), key.(string), statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "key", key, "error", err)
	}
}

func (h *BaseHandler) respond(c *gin.Context, statusCode int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.CompleteIdempotency(c, statusCode, contentTypeJSON, body)
	c.Data(statusCode, contentTypeJSON, body)
}

// Created sends 201 with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// OK sends 200 with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// NoContent sends 204.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}
