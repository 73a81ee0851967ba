package handler

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/middleware"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/repository"
	"github.com/iliyamo/society-gate-access/internal/utils"
)

// CodeHandler serves check-in codes and gate passes.  A resident issues
// a six digit code ahead of a visit; the guard later redeems it, which
// consumes the code and materializes a pre-approved visit record.
// SERVICE codes are gate passes: they target several apartments, fan
// out approval prompts, and auto-resolve when their approval deadline
// passes without a guard decision.
type CodeHandler struct {
	DB          *sql.DB
	Codes       *repository.CheckInCodeRepo
	Approvals   *repository.ApprovalRepo
	Users       *repository.UserRepo
	PreApproved *repository.PreApprovedRepo
	Gen         *gate.CodeGenerator
	Ledger      *gate.Ledger
	Window      *gate.WindowValidator
	Scheduler   *gate.Scheduler
	Dispatch    gate.Dispatcher
	ResolveMin  int // minutes before an unanswered gate pass auto-resolves
}

// NewCodeHandler constructs a CodeHandler with the provided dependencies.
func NewCodeHandler(db *sql.DB, codes *repository.CheckInCodeRepo, approvals *repository.ApprovalRepo, users *repository.UserRepo, pre *repository.PreApprovedRepo, gen *gate.CodeGenerator, ledger *gate.Ledger, window *gate.WindowValidator, sched *gate.Scheduler, dispatch gate.Dispatcher, resolveMin int) *CodeHandler {
	if db == nil || codes == nil || approvals == nil || users == nil || pre == nil || gen == nil || ledger == nil || window == nil || sched == nil {
		panic("nil dependency passed to NewCodeHandler")
	}
	return &CodeHandler{
		DB: db, Codes: codes, Approvals: approvals, Users: users, PreApproved: pre,
		Gen: gen, Ledger: ledger, Window: window, Scheduler: sched, Dispatch: dispatch,
		ResolveMin: resolveMin,
	}
}

// ----- DTOs -----

type createCodeReq struct {
	Kind       string               `json:"kind"`
	Visitor    visitorBody          `json:"visitor"`
	ValidFrom  *time.Time           `json:"valid_from"`
	ValidUntil *time.Time           `json:"valid_until"` // null means the code never expires
	Apartments []model.ApartmentRef `json:"apartments"`  // gate passes only
}

type codeResp struct {
	ID              uint64      `json:"id"`
	Society         string      `json:"society"`
	Kind            string      `json:"kind"`
	Visitor         visitorBody `json:"visitor"`
	Code            string      `json:"code"`
	Block           string      `json:"block,omitempty"`
	Apartment       string      `json:"apartment,omitempty"`
	ValidFrom       *time.Time  `json:"valid_from,omitempty"`
	ValidUntil      *time.Time  `json:"valid_until,omitempty"`
	Consumed        bool        `json:"consumed"`
	GuardStatus     string      `json:"guard_status,omitempty"`
	ResolveDeadline *time.Time  `json:"resolve_deadline,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

func codeOf(m model.CheckInCode) codeResp {
	return codeResp{
		ID:              m.ID,
		Society:         m.Society,
		Kind:            m.Kind,
		Visitor:         visitorOf(m.Visitor),
		Code:            m.Code,
		Block:           m.Block,
		Apartment:       m.Apartment,
		ValidFrom:       m.ValidFrom,
		ValidUntil:      m.ValidUntil,
		Consumed:        m.Consumed,
		GuardStatus:     m.GuardStatus,
		ResolveDeadline: m.ResolveDeadline,
		CreatedAt:       m.CreatedAt,
	}
}

// passNotification is the payload delivered with gate pass fan-outs.
type passNotification struct {
	PassID         uint64 `json:"pass_id"`
	NotificationID string `json:"notification_id,omitempty"`
	VisitorName    string `json:"visitor_name"`
	Message        string `json:"message"`
}

// Create handles POST /v1/codes.  Residents issue codes for their own
// apartment; a SERVICE kind issues a gate pass targeting the given
// apartments, arms its resolution deadline and fans out approval
// prompts.
func (h *CodeHandler) Create(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createCodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kind, ok := normalizeKind(req.Kind)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown code kind"})
	}
	visitor := req.Visitor.toModel()
	if visitor.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "visitor name is required"})
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && req.ValidUntil.Before(*req.ValidFrom) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid_until precedes valid_from"})
	}

	isPass := kind == model.KindService
	var apts []model.ApartmentRef
	if isPass {
		apts = dedupeApartments(req.Apartments)
		if len(apts) == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "gate pass requires target apartments"})
		}
	} else {
		if actor.Block == "" || actor.Apartment == "" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only residents can issue codes"})
		}
	}

	ctx := c.Request().Context()
	value, err := h.Gen.Issue(ctx, actor.Society)
	if err != nil {
		return domainError(c, err)
	}
	notifID, err := utils.NewNotificationID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	code := model.CheckInCode{
		Society:        actor.Society,
		Kind:           kind,
		Visitor:        visitor,
		Code:           value,
		IssuedBy:       actor.UserID,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
		GuardStatus:    model.StatusApproved, // issuer's own codes need no gate approval
		NotificationID: notifID,
	}
	if isPass {
		deadline := time.Now().UTC().Add(time.Duration(h.ResolveMin) * time.Minute)
		code.GuardStatus = model.StatusPending
		code.ResolveDeadline = &deadline
	} else {
		code.Block = actor.Block
		code.Apartment = actor.Apartment
	}

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

	id, err := h.Codes.CreateTx(ctx, tx, &code)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create code failed"})
	}
	if isPass {
		if err := h.Approvals.CreateBulkTx(ctx, tx, model.ParentCode, id, apts); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create approvals failed"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	if isPass {
		// The deadline is durable in the row; the timer is merely the
		// in-process echo of it.
		h.Scheduler.Schedule(id, *code.ResolveDeadline)

		recipients, err := h.Users.ResidentsOfApartments(ctx, actor.Society, apts)
		if err != nil {
			c.Logger().Warnf("pass %d: resident lookup for fan-out failed: %v", id, err)
		}
		for _, r := range recipients {
			if r.DeviceToken == "" {
				continue
			}
			if err := h.Dispatch.Notify(ctx, r.DeviceToken, gate.ActionGatePassRequest, passNotification{
				PassID:         id,
				NotificationID: notifID,
				VisitorName:    visitor.Name,
				Message:        visitor.Name + " requests gate access",
			}); err != nil {
				c.Logger().Warnf("pass %d: notify user %d failed: %v", id, r.UserID, err)
			}
		}
	}

	created, err := h.Codes.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load code failed"})
	}
	return c.JSON(http.StatusCreated, codeOf(created))
}

// List handles GET /v1/codes, returning the caller's issued codes.
func (h *CodeHandler) List(c echo.Context) error {
	actor, _ := middleware.ActorFrom(c)
	codes, err := h.Codes.ListByIssuer(c.Request().Context(), actor.UserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list codes failed"})
	}
	out := make([]codeResp, 0, len(codes))
	for _, m := range codes {
		out = append(out, codeOf(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"codes": out})
}

// PassRespond handles POST /v1/passes/:id/approvals.  One response per
// apartment; the aggregate outcome reaches the issuer when the pass
// deadline fires.
func (h *CodeHandler) PassRespond(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok || actor.Block == "" || actor.Apartment == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only residents can respond"})
	}
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pass id"})
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
	pass, err := h.Codes.GetByID(ctx, id)
	if err != nil {
		return domainError(c, err)
	}
	if pass.Society != actor.Society || !pass.IsGatePass() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if pass.Consumed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "gate pass already redeemed"})
	}

	apt := model.ApartmentRef{Block: actor.Block, Apartment: actor.Apartment}
	if err := h.Ledger.Resolve(ctx, model.ParentCode, id, apt, actor.UserID, decision); err != nil {
		return domainError(c, err)
	}
	status, _ := decision.Status()

	if pass.NotificationID != "" {
		household, err := h.Users.ResidentsOfApartments(ctx, actor.Society, []model.ApartmentRef{apt})
		if err != nil {
			c.Logger().Warnf("pass %d: household lookup failed: %v", id, err)
		}
		for _, r := range household {
			if r.UserID == actor.UserID || r.DeviceToken == "" {
				continue
			}
			if err := h.Dispatch.Cancel(ctx, r.DeviceToken, pass.NotificationID); err != nil {
				c.Logger().Warnf("pass %d: cancel prompt for user %d failed: %v", id, r.UserID, err)
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// Redeem handles POST /v1/codes/redeem.  The guard presents the six
// digit value; the code is checked against its validity window at the
// society's fixed offset, consumed exactly once, and turned into a
// pre-approved visit carrying the code's approval rows.
func (h *CodeHandler) Redeem(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	value := strings.TrimSpace(body.Code)
	if len(value) != 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code must be 6 digits"})
	}

	ctx := c.Request().Context()
	code, err := h.Codes.GetUnconsumedByCode(ctx, actor.Society, value)
	if err != nil {
		return domainError(c, err)
	}
	if err := h.Window.CheckWindow(time.Now(), code.ValidFrom, code.ValidUntil); err != nil {
		return domainError(c, err)
	}
	if code.IsGatePass() {
		switch code.GuardStatus {
		case model.StatusApproved:
		case model.StatusRejected:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "gate pass was rejected"})
		default:
			return c.JSON(http.StatusConflict, echo.Map{"error": "gate pass is awaiting approval"})
		}
	}

	notifID, err := utils.NewNotificationID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

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

	consumed, err := h.Codes.ConsumeTx(ctx, tx, code.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "consume code failed"})
	}
	if !consumed {
		// Another gate won the race; this redemption never happened.
		return c.JSON(http.StatusConflict, echo.Map{"error": "code already redeemed"})
	}

	visit := model.PreApproved{
		CodeID:         code.ID,
		Society:        code.Society,
		Kind:           code.Kind,
		Visitor:        code.Visitor,
		GuardID:        actor.UserID,
		GuardStatus:    model.StatusPending,
		NotificationID: notifID,
	}
	visitID, err := h.PreApproved.CreateTx(ctx, tx, &visit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create visit failed"})
	}
	if code.IsGatePass() {
		err = h.Approvals.CopyForRedemptionTx(ctx, tx, code.ID, visitID)
	} else {
		err = h.Approvals.CreateResolvedTx(ctx, tx, model.ParentPreApproved, visitID,
			model.ApartmentRef{Block: code.Block, Apartment: code.Apartment}, code.IssuedBy)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "copy approvals failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	if issuer, err := h.Users.GetByID(ctx, code.IssuedBy); err == nil && issuer.DeviceToken != "" {
		if err := h.Dispatch.Notify(ctx, issuer.DeviceToken, gate.ActionCodeRedeemed, passNotification{
			PassID:      code.ID,
			VisitorName: code.Visitor.Name,
			Message:     code.Visitor.Name + " checked in with code " + code.Code,
		}); err != nil {
			c.Logger().Warnf("code %d: redeem notice failed: %v", code.ID, err)
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"preapproved_id": visitID,
		"code_id":        code.ID,
		"kind":           code.Kind,
		"visitor":        visitorOf(code.Visitor),
	})
}
