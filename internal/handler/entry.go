package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/middleware"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/repository"
	"github.com/iliyamo/society-gate-access/internal/utils"
)

// EntryHandler serves the walk-in entry workflow: a guard records the
// visitor, every target apartment is asked to respond, and the guard
// gate opens once at least one apartment has answered.  All methods
// assume JWT authentication, role validation and actor resolution have
// already been performed by middleware.  Creation runs the entry insert
// and its approval rows inside one transaction; notification fan-out
// happens after commit and never fails the request.
type EntryHandler struct {
	DB        *sql.DB
	Entries   *repository.EntryRepo
	Approvals *repository.ApprovalRepo
	Users     *repository.UserRepo
	Ledger    *gate.Ledger
	Lifecycle *gate.Lifecycle
	Dispatch  gate.Dispatcher
}

// NewEntryHandler constructs an EntryHandler with the provided dependencies.
func NewEntryHandler(db *sql.DB, entries *repository.EntryRepo, approvals *repository.ApprovalRepo, users *repository.UserRepo, ledger *gate.Ledger, lifecycle *gate.Lifecycle, dispatch gate.Dispatcher) *EntryHandler {
	if db == nil || entries == nil || approvals == nil || users == nil || ledger == nil || lifecycle == nil {
		panic("nil dependency passed to NewEntryHandler")
	}
	return &EntryHandler{DB: db, Entries: entries, Approvals: approvals, Users: users, Ledger: ledger, Lifecycle: lifecycle, Dispatch: dispatch}
}

// ----- DTOs -----

type createEntryReq struct {
	Kind       string               `json:"kind"`
	Visitor    visitorBody          `json:"visitor"`
	Apartments []model.ApartmentRef `json:"apartments"`
}

type approvalPart struct {
	Block       string     `json:"block"`
	Apartment   string     `json:"apartment"`
	Status      string     `json:"status"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type entryResp struct {
	ID             uint64         `json:"id"`
	Society        string         `json:"society"`
	Kind           string         `json:"kind"`
	Visitor        visitorBody    `json:"visitor"`
	GuardID        uint64         `json:"guard_id"`
	GuardStatus    string         `json:"guard_status"`
	NotificationID string         `json:"notification_id"`
	HasExited      bool           `json:"has_exited"`
	EntryTime      *time.Time     `json:"entry_time,omitempty"`
	ExitTime       *time.Time     `json:"exit_time,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Approvals      []approvalPart `json:"approvals,omitempty"`
}

func entryOf(e model.Entry, states []model.ApprovalState) entryResp {
	resp := entryResp{
		ID:             e.ID,
		Society:        e.Society,
		Kind:           e.Kind,
		Visitor:        visitorOf(e.Visitor),
		GuardID:        e.GuardID,
		GuardStatus:    e.GuardStatus,
		NotificationID: e.NotificationID,
		HasExited:      e.HasExited,
		EntryTime:      e.EntryTime,
		ExitTime:       e.ExitTime,
		CreatedAt:      e.CreatedAt,
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

// entryNotification is the payload delivered with entry fan-outs.
type entryNotification struct {
	EntryID        uint64 `json:"entry_id"`
	NotificationID string `json:"notification_id,omitempty"`
	Kind           string `json:"kind"`
	VisitorName    string `json:"visitor_name"`
	Block          string `json:"block,omitempty"`
	Apartment      string `json:"apartment,omitempty"`
	Status         string `json:"status,omitempty"`
	Message        string `json:"message"`
}

// Create handles POST /v1/entries.  The guard records the visitor and
// the target apartments; one PENDING approval row per apartment is
// created in the same transaction as the entry, then every resident of
// those apartments is notified.
func (h *EntryHandler) Create(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createEntryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kind, ok := normalizeKind(req.Kind)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown entry kind"})
	}
	visitor := req.Visitor.toModel()
	if visitor.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "visitor name is required"})
	}
	apts := dedupeApartments(req.Apartments)
	if len(apts) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one target apartment is required"})
	}

	notifID, err := utils.NewNotificationID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	ctx := c.Request().Context()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	entry := model.Entry{
		Society:        actor.Society,
		Kind:           kind,
		Visitor:        visitor,
		GuardID:        actor.UserID,
		NotificationID: notifID,
	}
	id, err := h.Entries.CreateTx(ctx, tx, &entry)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create entry failed"})
	}
	if err := h.Approvals.CreateBulkTx(ctx, tx, model.ParentEntry, id, apts); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create approvals failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	// Fan out after commit.  Notification trouble is logged, never
	// surfaced: the entry exists and residents can still respond from
	// the app's pending list.
	recipients, err := h.Users.ResidentsOfApartments(ctx, actor.Society, apts)
	if err != nil {
		c.Logger().Warnf("entry %d: resident lookup for fan-out failed: %v", id, err)
	}
	for _, r := range recipients {
		if r.DeviceToken == "" {
			continue
		}
		if err := h.Dispatch.Notify(ctx, r.DeviceToken, gate.ActionEntryRequest, entryNotification{
			EntryID:        id,
			NotificationID: notifID,
			Kind:           kind,
			VisitorName:    visitor.Name,
			Message:        visitor.Name + " is at the gate",
		}); err != nil {
			c.Logger().Warnf("entry %d: notify user %d failed: %v", id, r.UserID, err)
		}
	}

	created, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load entry failed"})
	}
	states, _ := h.Approvals.States(ctx, model.ParentEntry, id)
	return c.JSON(http.StatusCreated, entryOf(created, states))
}

// Get handles GET /v1/entries/:id.
func (h *EntryHandler) Get(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	ctx := c.Request().Context()
	e, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if e.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	states, err := h.Approvals.States(ctx, model.ParentEntry, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load approvals failed"})
	}
	return c.JSON(http.StatusOK, entryOf(e, states))
}

// List handles GET /v1/entries with optional kind/status filters.
func (h *EntryHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	f := repository.EntryFilter{
		Kind:        c.QueryParam("kind"),
		GuardStatus: c.QueryParam("status"),
	}
	if v := c.QueryParam("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}
	entries, err := h.Entries.List(c.Request().Context(), actor.Society, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list entries failed"})
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryOf(e, nil))
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}

// Respond handles POST /v1/entries/:id/approvals.  A resident approves
// or rejects on behalf of their apartment; only the first response per
// apartment is recorded.  On success the stale approval prompt of the
// household's other devices is cancelled and the guard is told which
// apartment answered.
func (h *EntryHandler) Respond(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok || actor.Block == "" || actor.Apartment == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only residents can respond"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
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
	e, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if e.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	apt := model.ApartmentRef{Block: actor.Block, Apartment: actor.Apartment}
	if err := h.Ledger.Resolve(ctx, model.ParentEntry, id, apt, actor.UserID, decision); err != nil {
		return domainError(c, err)
	}
	status, _ := decision.Status()

	// Remove the now-stale prompt from the household's other devices.
	if e.NotificationID != "" {
		household, err := h.Users.ResidentsOfApartments(ctx, actor.Society, []model.ApartmentRef{apt})
		if err != nil {
			c.Logger().Warnf("entry %d: household lookup failed: %v", id, err)
		}
		for _, r := range household {
			if r.UserID == actor.UserID || r.DeviceToken == "" {
				continue
			}
			if err := h.Dispatch.Cancel(ctx, r.DeviceToken, e.NotificationID); err != nil {
				c.Logger().Warnf("entry %d: cancel prompt for user %d failed: %v", id, r.UserID, err)
			}
		}
	}

	// Tell the guard which apartment answered so the gate can act.
	if guard, err := h.Users.GetByID(ctx, e.GuardID); err == nil && guard.DeviceToken != "" {
		if err := h.Dispatch.Notify(ctx, guard.DeviceToken, gate.ActionEntryResponse, entryNotification{
			EntryID:     id,
			Kind:        e.Kind,
			VisitorName: e.Visitor.Name,
			Block:       apt.Block,
			Apartment:   apt.Apartment,
			Status:      status,
			Message:     apt.Block + "-" + apt.Apartment + " " + status,
		}); err != nil {
			c.Logger().Warnf("entry %d: notify guard failed: %v", id, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// ApprovalStatus handles GET /v1/entries/:id/approvals/status.
// Residents get their own apartment's row; guards and admins get every
// apartment's state.
func (h *EntryHandler) ApprovalStatus(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	ctx := c.Request().Context()
	e, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if e.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	if actor.Role == model.RoleResident {
		status, err := h.Ledger.StatusFor(ctx, model.ParentEntry, id, model.ApartmentRef{Block: actor.Block, Apartment: actor.Apartment})
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"status": status})
	}

	states, err := h.Ledger.States(ctx, model.ParentEntry, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load approvals failed"})
	}
	out := make([]approvalPart, 0, len(states))
	for _, s := range states {
		out = append(out, approvalPart{
			Block:       s.Apartment.Block,
			Apartment:   s.Apartment.Apartment,
			Status:      s.Status,
			RespondedAt: s.RespondedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"approvals": out})
}

// GuardDecision handles POST /v1/entries/:id/guard.  The gate decision
// requires at least one apartment to have responded.
func (h *EntryHandler) GuardDecision(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
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
	e, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if e.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := h.Lifecycle.GuardResolve(ctx, id, actor.UserID, decision); err != nil {
		return domainError(c, err)
	}
	status, _ := decision.Status()
	return c.JSON(http.StatusOK, echo.Map{"guard_status": status})
}

// Exit handles POST /v1/entries/:id/exit.  The residents who approved
// the visit are told the visitor left.
func (h *EntryHandler) Exit(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	ctx := c.Request().Context()
	e, err := h.Entries.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if e.Society != actor.Society {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := h.Lifecycle.MarkExited(ctx, id); err != nil {
		return domainError(c, err)
	}

	approvers, err := h.Approvals.RecipientsByStatus(ctx, actor.Society, model.ParentEntry, id, model.StatusApproved)
	if err != nil {
		c.Logger().Warnf("entry %d: approver lookup for exit notice failed: %v", id, err)
	}
	for _, r := range approvers {
		if r.DeviceToken == "" {
			continue
		}
		if err := h.Dispatch.Notify(ctx, r.DeviceToken, gate.ActionEntryExited, entryNotification{
			EntryID:     id,
			Kind:        e.Kind,
			VisitorName: e.Visitor.Name,
			Message:     e.Visitor.Name + " has exited",
		}); err != nil {
			c.Logger().Warnf("entry %d: exit notice to user %d failed: %v", id, r.UserID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"has_exited": true})
}
