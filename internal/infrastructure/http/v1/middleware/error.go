package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"storeflow/internal/core/apperror"
	"storeflow/internal/infrastructure/http/v1/dto"
	"storeflow/internal/infrastructure/http/v1/handlers"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		body := dto.FromAppError(appErr)
		if appErr.Code == apperror.CodeInternal {
			body.Details = map[string]any{"request_id": c.GetString(ctxRequestID)}
		}

		settleIdempotency(c, appErr, body)
		c.JSON(appErr.HTTPStatus, body)
	}
}

// settleIdempotency records the failure for replay. Retryable failures release the key
// so the client can repeat the request with the same key.
func settleIdempotency(c *gin.Context, appErr *apperror.AppError, body dto.ErrorResponse) {
	key, exists := c.Get(handlers.IdempotencyKeyCtx)
	if !exists {
		return
	}
	v, _ := c.Get(handlers.IdempotencyStoreCtx)
	store, ok := v.(*postgres.IdempotencyStore)
	if !ok || store == nil {
		return
	}
	ctx := c.Request.Context()

	if retryable(appErr) {
		if err := store.ReleaseKey(ctx, key.(string)); err != nil {
			logger.Warn(ctx, "release idempotency key", "key", key, "error", err)
		}
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := store.FailKey(ctx, key.(string), appErr.HTTPStatus, "application/json; charset=utf-8", raw); err != nil {
		logger.Warn(ctx, "fail idempotency key", "key", key, "error", err)
	}
}

func retryable(appErr *apperror.AppError) bool {
	if r, ok := appErr.Details["retryable"].(bool); ok && r {
		return true
	}
	return appErr.HTTPStatus >= http.StatusInternalServerError ||
		appErr.Code == apperror.CodeConcurrentModification
}
