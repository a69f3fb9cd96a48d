package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/config"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/utils"
)

// GuardianHandler bundles dependencies for guardian account endpoints.
type GuardianHandler struct {
	Cfg       config.Config
	Guardians *repository.GuardianRepo
	Pairings  repository.PairingStore
	Reg       *registry.Registry
}

// NewGuardianHandler constructs a GuardianHandler.
func NewGuardianHandler(cfg config.Config, g *repository.GuardianRepo, p repository.PairingStore, reg *registry.Registry) *GuardianHandler {
	return &GuardianHandler{Cfg: cfg, Guardians: g, Pairings: p, Reg: reg}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a guardian account and returns its token immediately.
// POST /api/guardian/register {name, email, password} -> {guardianId, token}
func (h *GuardianHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "name/email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gid, err := h.Guardians.Create(ctx, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return fail(c, http.StatusConflict, "EMAIL_TAKEN", "email already registered")
		}
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not create account")
	}

	tok, err := utils.NewGuardianToken(h.Cfg.JWTSecret, gid, req.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not issue token")
	}
	return ok(c, http.StatusCreated, echo.Map{
		"guardianId": gid,
		"token":      tok.Token,
		"expires":    tok.Exp.Format(time.RFC3339),
	})
}

// Login exchanges credentials for a fresh guardian token.
// POST /api/guardian/login {email, password} -> {guardianId, token}
func (h *GuardianHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	g, err := h.Guardians.FindByEmail(ctx, req.Email)
	if err != nil || !utils.VerifyPassword(g.PasswordHash, req.Password) {
		// One message for both cases; do not leak which part was wrong.
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	}

	tok, err := utils.NewGuardianToken(h.Cfg.JWTSecret, g.ID, g.Name, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not issue token")
	}
	return ok(c, http.StatusOK, echo.Map{
		"guardianId": g.ID,
		"token":      tok.Token,
		"expires":    tok.Exp.Format(time.RFC3339),
	})
}

// Elders lists the elders paired with the authenticated guardian along with
// their live connection status.
// GET /api/guardian/elders (Bearer token)
func (h *GuardianHandler) Elders(c echo.Context) error {
	gid, _ := c.Get("guardian_id").(string)
	if gid == "" {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing guardian identity")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pairings, err := h.Pairings.ListByGuardian(ctx, gid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not list elders")
	}

	elders := make([]echo.Map, 0, len(pairings))
	for _, p := range pairings {
		elders = append(elders, echo.Map{
			"elderId":  p.ElderID,
			"pairedAt": p.PairedAt.Format(time.RFC3339),
			"online":   h.Reg.IsOnline(p.ElderID),
		})
	}
	return ok(c, http.StatusOK, echo.Map{"elders": elders})
}
