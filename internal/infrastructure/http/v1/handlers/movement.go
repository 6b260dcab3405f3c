package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/fulfillment"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/workflow"
	"storeflow/internal/infrastructure/http/v1/dto"
)

// MovementService is the subset of approval.Service used over HTTP.
type MovementService interface {
	CreateDraft(ctx context.Context, actor movement.Actor, kind movement.Kind, in approval.DraftInput) (*movement.Record, error)
	UpdateDraft(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, in approval.DraftInput) (*movement.Record, error)
	Delete(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) error
	Submit(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) (*movement.Record, error)
	Approve(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, notes string) (*movement.Record, error)
	Reject(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, reason string) (*movement.Record, error)
	ReturnForCorrection(ctx context.Context, actor movement.Actor, recordID id.ID, reason string) (*movement.Record, error)
	AcceptVariance(ctx context.Context, actor movement.Actor, recordID id.ID, in approval.VarianceInput) (*movement.Record, error)
	Fulfill(ctx context.Context, actor movement.Actor, recordID id.ID, issues []fulfillment.LineQuantity) (*movement.Record, error)
	Receive(ctx context.Context, actor movement.Actor, recordID id.ID, receipts []fulfillment.LineQuantity) (*movement.Record, error)
	Cancel(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, reason string) (*movement.Record, error)
	Get(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) (*movement.Record, error)
	History(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) ([]*workflow.Transition, error)
	Snapshot(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, seq int) (*movement.Record, error)
	List(ctx context.Context, actor movement.Actor, filter movement.ListFilter) (*approval.ListPage, error)
	AvailableActions(actor movement.Actor, rec *movement.Record) []movement.Action
}

// MovementHandler serves one movement kind.
type MovementHandler struct {
	*BaseHandler
	service MovementService
	kind    movement.Kind
}

// NewMovementHandler creates a handler for kind.
func NewMovementHandler(base *BaseHandler, service MovementService, kind movement.Kind) *MovementHandler {
	return &MovementHandler{BaseHandler: base, service: service, kind: kind}
}

func (h *MovementHandler) present(actor movement.Actor, rec *movement.Record) dto.MovementResponse {
	actions := h.service.AvailableActions(actor, rec)
	if actions == nil {
		actions = []movement.Action{}
	}
	return dto.MovementResponse{Record: rec, AvailableActions: actions}
}

// List handles GET /
func (h *MovementHandler) List(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(h.kind)
	if err != nil {
		h.Error(c, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListPage(page))
}

// Get handles GET /:id
func (h *MovementHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), actor, h.kind, recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.present(actor, rec))
}

// History handles GET /:id/history
func (h *MovementHandler) History(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	items, err := h.service.History(c.Request.Context(), actor, h.kind, recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []*workflow.Transition{}
	}
	h.OK(c, dto.HistoryResponse{Items: items})
}

// Snapshot handles GET /:id/history/:seq
func (h *MovementHandler) Snapshot(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var uri struct {
		Seq int `uri:"seq" binding:"min=1"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		h.Error(c, apperror.NewFieldValidation("seq", "seq must be a positive integer"))
		return
	}

	rec, err := h.service.Snapshot(c.Request.Context(), actor, h.kind, recordID, uri.Seq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Create handles POST /
func (h *MovementHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.DraftRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.CreateDraft(c.Request.Context(), actor, h.kind, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, h.present(actor, rec))
}

// Update handles PUT /:id
func (h *MovementHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DraftRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Version < 1 {
		h.Error(c, apperror.NewFieldValidation("version", "version is required"))
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.UpdateDraft(c.Request.Context(), actor, h.kind, recordID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.present(actor, rec))
}

// Delete handles DELETE /:id
func (h *MovementHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, h.kind, recordID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// action runs a transition that needs only the actor and the record id.
func (h *MovementHandler) action(c *gin.Context, run func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error)) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	recordID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	rec, err := run(c.Request.Context(), actor, recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.present(actor, rec))
}

// Submit handles POST /:id/submit
func (h *MovementHandler) Submit(c *gin.Context) {
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Submit(ctx, actor, h.kind, recordID)
	})
}

// Approve handles POST /:id/approve
func (h *MovementHandler) Approve(c *gin.Context) {
	var req dto.ApproveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Approve(ctx, actor, h.kind, recordID, req.Notes)
	})
}

// Reject handles POST /:id/reject
func (h *MovementHandler) Reject(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Reject(ctx, actor, h.kind, recordID, req.Reason)
	})
}

// Cancel handles POST /:id/cancel
func (h *MovementHandler) Cancel(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Cancel(ctx, actor, h.kind, recordID, req.Reason)
	})
}

// ReturnForCorrection handles POST /:id/return
func (h *MovementHandler) ReturnForCorrection(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.ReturnForCorrection(ctx, actor, recordID, req.Reason)
	})
}

// AcceptVariance handles POST /:id/accept-variance
func (h *MovementHandler) AcceptVariance(c *gin.Context) {
	var req dto.VarianceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.AcceptVariance(ctx, actor, recordID, in)
	})
}

// Fulfill handles POST /:id/fulfill
func (h *MovementHandler) Fulfill(c *gin.Context) {
	var req dto.QuantitiesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	issues, err := req.ToLineQuantities()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Fulfill(ctx, actor, recordID, issues)
	})
}

// Receive handles POST /:id/receive
func (h *MovementHandler) Receive(c *gin.Context) {
	var req dto.QuantitiesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	receipts, err := req.ToLineQuantities()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.action(c, func(ctx context.Context, actor movement.Actor, recordID id.ID) (*movement.Record, error) {
		return h.service.Receive(ctx, actor, recordID, receipts)
	})
}
