package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // SQL database interactions
    "net/http"     // HTTP status codes and primitives
    "strings"      // string manipulation utilities
    "time"         // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/iliyamo/society-gate-access/internal/config"     // app configuration
    "github.com/iliyamo/society-gate-access/internal/model"      // shared domain models
    "github.com/iliyamo/society-gate-access/internal/repository" // DB repositories
    "github.com/iliyamo/society-gate-access/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

// ----- DTOs -----

type registerReq struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	Role        string `json:"role"` // RESIDENT | GUARD | ADMIN
	Society     string `json:"society"`
	Block       string `json:"block"`
	Apartment   string `json:"apartment"`
	Gate        string `json:"gate"`
	DeviceToken string `json:"device_token"`
}
type loginReq struct {
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	DeviceToken string `json:"device_token"` // refreshed on every login
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Society   string `json:"society"`
	Block     string `json:"block,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Gate      string `json:"gate,omitempty"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register: create user and return an access token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Society = strings.TrimSpace(req.Society)
	if req.Phone == "" || req.Password == "" || req.Name == "" || req.Society == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/phone/password/society required"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	switch role {
	case model.RoleGuard, model.RoleAdmin:
	default:
		role = model.RoleResident
	}
	if role == model.RoleResident && (req.Block == "" || req.Apartment == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "block/apartment required for residents"})
	}
	if role == model.RoleGuard && req.Gate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "gate required for guards"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, model.User{
		Name:        strings.TrimSpace(req.Name),
		Phone:       req.Phone,
		Role:        role,
		Society:     req.Society,
		Block:       strings.TrimSpace(req.Block),
		Apartment:   strings.TrimSpace(req.Apartment),
		Gate:        strings.TrimSpace(req.Gate),
		DeviceToken: req.DeviceToken,
	}, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrPhoneExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		User: userPart{
			ID: uid, Name: req.Name, Phone: req.Phone, Role: role,
			Society: req.Society, Block: req.Block, Apartment: req.Apartment, Gate: req.Gate,
		},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login: verify credentials, refresh the device token, return a new
// access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByPhone(ctx, req.Phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
	}

	// The latest login owns the push channel; stale devices stop
	// receiving approval prompts.
	if req.DeviceToken != "" && req.DeviceToken != u.DeviceToken {
		if err := h.Users.UpdateDeviceToken(ctx, u.ID, req.DeviceToken); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update device failed"})
		}
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User: userPart{
			ID: u.ID, Name: u.Name, Phone: u.Phone, Role: u.Role,
			Society: u.Society, Block: u.Block, Apartment: u.Apartment, Gate: u.Gate,
		},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}
