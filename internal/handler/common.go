package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/repository"
)

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// domainError translates workflow and repository errors into HTTP
// responses so every handler maps them the same way.  Window denials
// keep their reason code alongside the human message because gate
// clients branch on it.
func domainError(c echo.Context, err error) error {
	var werr *gate.WindowError
	switch {
	case errors.As(err, &werr):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":  werr.Error(),
			"reason": werr.Reason,
		})
	case errors.Is(err, gate.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, gate.ErrAlreadyResolved):
		return c.JSON(http.StatusConflict, echo.Map{"error": gate.ErrAlreadyResolved.Error()})
	case errors.Is(err, gate.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, gate.ErrCodeExhausted):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "no code available, retry later"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// visitorBody is the request/response shape of the visitor descriptor.
type visitorBody struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Company string `json:"company,omitempty"`
	Vehicle string `json:"vehicle,omitempty"`
}

func (v visitorBody) toModel() model.Visitor {
	return model.Visitor{
		Name:    strings.TrimSpace(v.Name),
		Phone:   strings.TrimSpace(v.Phone),
		Company: strings.TrimSpace(v.Company),
		Vehicle: strings.TrimSpace(v.Vehicle),
	}
}

func visitorOf(m model.Visitor) visitorBody {
	return visitorBody{Name: m.Name, Phone: m.Phone, Company: m.Company, Vehicle: m.Vehicle}
}

// normalizeKind validates the entry kind, defaulting to OTHER.
func normalizeKind(kind string) (string, bool) {
	k := strings.ToUpper(strings.TrimSpace(kind))
	switch k {
	case model.KindDelivery, model.KindGuest, model.KindCab, model.KindService, model.KindOther:
		return k, true
	case "":
		return model.KindOther, true
	default:
		return "", false
	}
}

// parseDecision validates an APPROVE/REJECT request body value.
func parseDecision(raw string) (gate.Decision, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(gate.DecisionApprove):
		return gate.DecisionApprove, true
	case string(gate.DecisionReject):
		return gate.DecisionReject, true
	default:
		return "", false
	}
}

// dedupeApartments drops repeated (block, apartment) pairs while
// preserving order; repeated rows would violate the approvals unique
// key.
func dedupeApartments(in []model.ApartmentRef) []model.ApartmentRef {
	seen := make(map[model.ApartmentRef]struct{}, len(in))
	out := make([]model.ApartmentRef, 0, len(in))
	for _, a := range in {
		a.Block = strings.TrimSpace(a.Block)
		a.Apartment = strings.TrimSpace(a.Apartment)
		if a.Block == "" || a.Apartment == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
