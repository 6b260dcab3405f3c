package handlers_test

import (
	"context"
	"encoding/json"
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
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/fulfillment"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/stats"
	"storeflow/internal/domain/workflow"
	"storeflow/internal/infrastructure/http/v1/dto"
	"storeflow/internal/infrastructure/http/v1/handlers"
	"storeflow/internal/infrastructure/http/v1/middleware"
)

var (
	storeA   = id.MustParse("0b7c3f2e-5d7a-4c4b-9a59-1f2d8e6c0a11")
	testTime = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
)

// stubService records the last call and returns canned results.
type stubService struct {
	handlers.MovementService

	rec     *movement.Record
	err     error
	page    *approval.ListPage
	filter  movement.ListFilter
	actor   movement.Actor
	issues  []fulfillment.LineQuantity
	reason  string
	deleted id.ID
}

func (s *stubService) Get(_ context.Context, actor movement.Actor, _ movement.Kind, _ id.ID) (*movement.Record, error) {
	s.actor = actor
	return s.rec, s.err
}

func (s *stubService) List(_ context.Context, _ movement.Actor, f movement.ListFilter) (*approval.ListPage, error) {
	s.filter = f
	return s.page, s.err
}

func (s *stubService) Fulfill(_ context.Context, _ movement.Actor, _ id.ID, issues []fulfillment.LineQuantity) (*movement.Record, error) {
	s.issues = issues
	return s.rec, s.err
}

func (s *stubService) Reject(_ context.Context, _ movement.Actor, _ movement.Kind, _ id.ID, reason string) (*movement.Record, error) {
	s.reason = reason
	return s.rec, s.err
}

func (s *stubService) Delete(_ context.Context, _ movement.Actor, _ movement.Kind, recordID id.ID) error {
	s.deleted = recordID
	return s.err
}

func (s *stubService) History(context.Context, movement.Actor, movement.Kind, id.ID) ([]*workflow.Transition, error) {
	return nil, s.err
}

func (s *stubService) AvailableActions(movement.Actor, *movement.Record) []movement.Action {
	return []movement.Action{movement.ActionFulfill}
}

func newRouter(svc handlers.MovementService, authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Trace(), middleware.ErrorHandler())
	if authenticated {
		r.Use(func(c *gin.Context) {
			user := &appctx.UserContext{UserID: "u-1", Roles: []string{"clerk"}, StoreIDs: []string{storeA.String()}}
			c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		})
	}

	h := handlers.NewMovementHandler(handlers.NewBaseHandler(), svc, movement.KindStoreRequestIssue)
	g := r.Group("/store-requests")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/history", h.History)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/fulfill", h.Fulfill)
	g.POST("/:id/reject", h.Reject)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sampleRecord() *movement.Record {
	rec := movement.New(movement.KindStoreRequestIssue, "u-1", testTime)
	rec.ReferenceNumber = "SR-2026-00001"
	rec.Status = movement.StatusApproved
	return rec
}

func TestGet(t *testing.T) {
	svc := &stubService{rec: sampleRecord()}
	r := newRouter(svc, true)

	rec := serve(r, http.MethodGet, "/store-requests/"+svc.rec.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SR-2026-00001", body["referenceNumber"])
	assert.Equal(t, []any{"fulfill"}, body["availableActions"])
	assert.Equal(t, []id.ID{storeA}, svc.actor.StoreIDs)
}

func TestGet_Errors(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		path          string
		err           error
		wantStatus    int
		wantCode      string
	}{
		{name: "unauthenticated", path: "/store-requests/" + storeA.String(), wantStatus: http.StatusUnauthorized, wantCode: apperror.CodeUnauthorized},
		{name: "malformed id", authenticated: true, path: "/store-requests/abc", wantStatus: http.StatusBadRequest, wantCode: apperror.CodeValidation},
		{
			name: "not found", authenticated: true, path: "/store-requests/" + storeA.String(),
			err: apperror.NewNotFound("movement", storeA.String()), wantStatus: http.StatusNotFound, wantCode: apperror.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubService{err: tt.err}, tt.authenticated)
			rec := serve(r, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestList(t *testing.T) {
	svc := &stubService{page: &approval.ListPage{
		ListResult: movement.ListResult{TotalCount: 0, Limit: 10, Offset: 0},
		Stats:      stats.Empty(movement.KindStoreRequestIssue),
	}}
	r := newRouter(svc, true)

	rec := serve(r, http.MethodGet, "/store-requests?view=issue&status=approved,partial_issued&limit=10&orderBy=-priority", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, movement.ViewIssue, svc.filter.View)
	assert.Equal(t, []movement.Status{movement.StatusApproved, movement.StatusPartialIssued}, svc.filter.Statuses)
	assert.Equal(t, 10, svc.filter.Limit)
	assert.Equal(t, "-priority", svc.filter.OrderBy)

	var body dto.MovementListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Records)
	assert.Equal(t, 10, body.Pagination.Limit)
}

func TestList_RejectsBadLimit(t *testing.T) {
	r := newRouter(&stubService{}, true)
	rec := serve(r, http.MethodGet, "/store-requests?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFulfill_ParsesQuantities(t *testing.T) {
	svc := &stubService{rec: sampleRecord()}
	r := newRouter(svc, true)
	product := id.New()

	rec := serve(r, http.MethodPost, "/store-requests/"+svc.rec.ID.String()+"/fulfill",
		`{"lines":[{"productId":"`+product.String()+`","quantity":"2.5"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.issues, 1)
	assert.Equal(t, product, svc.issues[0].ProductID)
	assert.Equal(t, types.Quantity(25_000), svc.issues[0].Quantity)

	rec = serve(r, http.MethodPost, "/store-requests/"+svc.rec.ID.String()+"/fulfill", `{"lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReject_PassesReason(t *testing.T) {
	svc := &stubService{rec: sampleRecord()}
	r := newRouter(svc, true)

	rec := serve(r, http.MethodPost, "/store-requests/"+svc.rec.ID.String()+"/reject", `{"reason":"duplicate"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", svc.reason)
}

func TestDelete_NoContent(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, true)
	target := id.New()

	rec := serve(r, http.MethodDelete, "/store-requests/"+target.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, target, svc.deleted)
}

func TestHistory_EmptyIsArray(t *testing.T) {
	r := newRouter(&stubService{}, true)
	rec := serve(r, http.MethodGet, "/store-requests/"+storeA.String()+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}
