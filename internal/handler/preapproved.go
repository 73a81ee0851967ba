package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/middleware"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/repository"
)

// PreApprovedHandler serves the visit records materialized by code
// redemption.  They follow the same guard-gate and exit lifecycle as
// walk-in entries, except their approval rows were settled at
// redemption time so the gate is immediately resolvable.
type PreApprovedHandler struct {
	Visits    *repository.PreApprovedRepo
	Approvals *repository.ApprovalRepo
	Lifecycle *gate.Lifecycle
	Dispatch  gate.Dispatcher
}

// NewPreApprovedHandler constructs a PreApprovedHandler.
func NewPreApprovedHandler(visits *repository.PreApprovedRepo, approvals *repository.ApprovalRepo, lifecycle *gate.Lifecycle, dispatch gate.Dispatcher) *PreApprovedHandler {
	if visits == nil || approvals == nil || lifecycle == nil {
		panic("nil dependency passed to NewPreApprovedHandler")
	}
	return &PreApprovedHandler{Visits: visits, Approvals: approvals, Lifecycle: lifecycle, Dispatch: dispatch}
}

type preApprovedResp struct {
	ID          uint64         `json:"id"`
	CodeID      uint64         `json:"code_id"`
	Society     string         `json:"society"`
	Kind        string         `json:"kind"`
	Visitor     visitorBody    `json:"visitor"`
	GuardID     uint64         `json:"guard_id"`
	GuardStatus string         `json:"guard_status"`
	HasExited   bool           `json:"has_exited"`
	EntryTime   *time.Time     `json:"entry_time,omitempty"`
	ExitTime    *time.Time     `json:"exit_time,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Approvals   []approvalPart `json:"approvals,omitempty"`
}

func preApprovedOf(p model.PreApproved, states []model.ApprovalState) preApprovedResp {
	resp := preApprovedResp{
		ID:          p.ID,
		CodeID:      p.CodeID,
		Society:     p.Society,
		Kind:        p.Kind,
		Visitor:     visitorOf(p.Visitor),
		GuardID:     p.GuardID,
		GuardStatus: p.GuardStatus,
		HasExited:   p.HasExited,
		EntryTime:   p.EntryTime,
		ExitTime:    p.ExitTime,
		CreatedAt:   p.CreatedAt,
	}
	for _, s := range states {
		resp.Approvals = append(resp.Approvals, approvalPart{
			Block:       s.Apartment.Block,
			Apartment:   s.Apartment.Apartment,
			Status:      s.Status,
			RespondedAt: s.RespondedAt,
		})
	}
	return resp
}

// Get handles GET /v1/preapproved/:id.
func (h *PreApprovedHandler) Get(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	p, err := h.Visits.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if p.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	states, err := h.Approvals.States(ctx, model.ParentPreApproved, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load approvals failed"})
	}
	return c.JSON(http.StatusOK, preApprovedOf(p, states))
}

// GuardDecision handles POST /v1/preapproved/:id/guard.
func (h *PreApprovedHandler) GuardDecision(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	decision, ok := parseDecision(body.Decision)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "decision must be APPROVE or REJECT"})
	}

	ctx := c.Request().Context()
	p, err := h.Visits.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if p.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := h.Lifecycle.GuardResolve(ctx, id, actor.UserID, decision); err != nil {
		return domainError(c, err)
	}
	status, _ := decision.Status()
	return c.JSON(http.StatusOK, echo.Map{"guard_status": status})
}

// Exit handles POST /v1/preapproved/:id/exit.
func (h *PreApprovedHandler) Exit(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	p, err := h.Visits.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if p.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := h.Lifecycle.MarkExited(ctx, id); err != nil {
		return domainError(c, err)
	}

	approvers, err := h.Approvals.RecipientsByStatus(ctx, actor.Society, model.ParentPreApproved, id, model.StatusApproved)
	if err != nil {
		c.Logger().Warnf("preapproved %d: approver lookup for exit notice failed: %v", id, err)
	}
	for _, r := range approvers {
		if r.DeviceToken == "" {
			continue
		}
		if err := h.Dispatch.Notify(ctx, r.DeviceToken, gate.ActionEntryExited, entryNotification{
			EntryID:     id,
			Kind:        p.Kind,
			VisitorName: p.Visitor.Name,
			Message:     p.Visitor.Name + " has exited",
		}); err != nil {
			c.Logger().Warnf("preapproved %d: exit notice to user %d failed: %v", id, r.UserID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"has_exited": true})
}
