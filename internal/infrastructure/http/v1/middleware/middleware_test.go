package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeflow/internal/core/apperror"
	appctx "storeflow/internal/core/context"
	"storeflow/internal/infrastructure/http/v1/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Trace(), ErrorHandler())
	r.Use(mw...)
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "app error",
			err:        apperror.NewOverIssue("p1", "10", "6", "5"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperror.CodeOverIssue,
		},
		{
			name:       "wrapped app error",
			err:        errors.Join(errors.New("context"), apperror.NewNotFound("movement", "x")),
			wantStatus: http.StatusNotFound,
			wantCode:   apperror.CodeNotFound,
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("pq: relation does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperror.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			r.GET("/x", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			rec := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Trace(), ErrorHandler(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: "u-1", Roles: []string{"clerk"}}, nil
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth(fakeValidator{}))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "missing header", path: "/me", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", path: "/me", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", path: "/me", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "valid token", path: "/me", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", path: "/me", header: "bearer good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := do(r, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u-1", rec.Body.String())
			}
		})
	}
}

func TestTrace_PropagatesRequestID(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := do(r, req)

	assert.Equal(t, "req-42", rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(HeaderTraceID))
}

type httpCall struct {
	method, route string
	status        int
}

type fakeHTTPObserver struct{ calls []httpCall }

func (f *fakeHTTPObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	f.calls = append(f.calls, httpCall{method, route, status})
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	obs := &fakeHTTPObserver{}
	r := newEngine(Metrics(obs))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, httptest.NewRequest(http.MethodGet, "/items/123", nil))
	do(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, obs.calls, 2)
	assert.Equal(t, httpCall{http.MethodGet, "/items/:id", http.StatusOK}, obs.calls[0])
	assert.Equal(t, "unmatched", obs.calls[1].route)
	assert.Equal(t, http.StatusNotFound, obs.calls[1].status)
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestIdempotency_BodyRejectedBeforeKeyIsTaken(t *testing.T) {
	tests := []struct {
		name       string
		body       io.Reader
		wantStatus int
	}{
		{"unreadable body", failingBody{}, http.StatusBadRequest},
		{"oversized body", strings.NewReader(strings.Repeat("x", maxIdempotencyBodyBytes+1)), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// a nil store panics if the key is ever acquired
			r := newEngine(Idempotency(nil))
			reached := false
			r.POST("/x", func(c *gin.Context) { reached = true })

			req := httptest.NewRequest(http.MethodPost, "/x", tt.body)
			req.Header.Set(HeaderIdempotencyKey, "k-1")
			rec := do(r, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, apperror.CodeValidation, decodeError(t, rec).Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
			assert.False(t, reached)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(apperror.NewSideEffectFailed(errors.New("ledger down"))))
	assert.True(t, retryable(apperror.NewConcurrentModification("movement", "x")))
	assert.True(t, retryable(apperror.NewInternal(errors.New("x"))))
	assert.False(t, retryable(apperror.NewOverIssue("p", 1, 1, 1)))
	assert.False(t, retryable(apperror.NewValidation("bad")))
}
