package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/relay"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
)

// PairingHandler bundles dependencies for the out-of-band pairing surface.
type PairingHandler struct {
	Codes    repository.CodeStore
	Pairings repository.PairingStore
	Fanout   *relay.Fanout
	CodeTTL  time.Duration
}

// NewPairingHandler constructs a PairingHandler.
func NewPairingHandler(codes repository.CodeStore, pairings repository.PairingStore, fanout *relay.Fanout, codeTTL time.Duration) *PairingHandler {
	return &PairingHandler{Codes: codes, Pairings: pairings, Fanout: fanout, CodeTTL: codeTTL}
}

// ----- DTOs -----
// The {success, data|error} wrapper matches what the elder launcher and
// guardian app already parse.

type generateCodeReq struct {
	ElderID string `json:"elderId"`
}
type pairReq struct {
	Code         string `json:"code"`
	GuardianID   string `json:"guardianId"`
	GuardianName string `json:"guardianName"`
}
type unpairReq struct {
	ElderID    string `json:"elderId"`
	GuardianID string `json:"guardianId"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "error": echo.Map{"code": code, "message": message}})
}

// GenerateCode issues a fresh single-use pairing code for an elder.
// POST /api/elder/generate-code {elderId} -> {code, expiresAt}
func (h *PairingHandler) GenerateCode(c echo.Context) error {
	var req generateCodeReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
	}
	req.ElderID = strings.TrimSpace(req.ElderID)
	if req.ElderID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "elderId required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	code, err := h.Codes.Generate(ctx, req.ElderID, h.CodeTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not generate code")
	}
	return ok(c, http.StatusOK, echo.Map{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt.Format(time.RFC3339),
	})
}

// Pair redeems a pairing code for a guardian. Redemption is atomic in the
// code store, so two guardians racing on the same code produce exactly one
// pairing. On success the elder is notified with GUARDIAN_PAIRED if it is
// connected; the pairing row is durable either way.
// POST /api/pair {code, guardianId, guardianName} -> Pairing
func (h *PairingHandler) Pair(c echo.Context) error {
	var req pairReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
	}
	req.Code = strings.TrimSpace(req.Code)
	req.GuardianID = strings.TrimSpace(req.GuardianID)
	if req.Code == "" || req.GuardianID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "code and guardianId required")
	}
	if req.GuardianName == "" {
		req.GuardianName = "Guardian"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	elderID, err := h.Codes.Redeem(ctx, req.Code)
	switch {
	case errors.Is(err, repository.ErrCodeExpired):
		return fail(c, http.StatusGone, protocol.CodeExpired, "pairing code expired")
	case errors.Is(err, repository.ErrCodeConsumed):
		return fail(c, http.StatusConflict, protocol.CodeAlreadyConsumed, "pairing code already used")
	case errors.Is(err, repository.ErrCodeNotFound):
		return fail(c, http.StatusNotFound, protocol.CodeNotFound, "pairing code not found")
	case err != nil:
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not redeem code")
	}

	pairing := model.Pairing{
		ElderID:      elderID,
		GuardianID:   req.GuardianID,
		GuardianName: req.GuardianName,
		PairedAt:     time.Now().UTC(),
	}
	if err := h.Pairings.Upsert(ctx, pairing); err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not persist pairing")
	}

	env, err := protocol.NewEnvelope(protocol.TypeGuardianPaired, "server", elderID, protocol.NewRequestID(),
		protocol.GuardianPairedPayload{GuardianID: req.GuardianID, GuardianName: req.GuardianName})
	if err == nil {
		h.Fanout.NotifyElder(elderID, env)
	}

	return ok(c, http.StatusOK, echo.Map{
		"elderId":      pairing.ElderID,
		"guardianId":   pairing.GuardianID,
		"guardianName": pairing.GuardianName,
		"pairedAt":     pairing.PairedAt.Format(time.RFC3339),
	})
}

// Unpair removes an existing pairing and notifies the elder.
// POST /api/unpair {elderId, guardianId}
func (h *PairingHandler) Unpair(c echo.Context) error {
	var req unpairReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
	}
	if req.ElderID == "" || req.GuardianID == "" {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "elderId and guardianId required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Pairings.Delete(ctx, req.ElderID, req.GuardianID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, protocol.CodeNotFound, "pairing not found")
		}
		return fail(c, http.StatusInternalServerError, "INTERNAL", "could not remove pairing")
	}

	env, err := protocol.NewEnvelope(protocol.TypeGuardianUnpaired, "server", req.ElderID, protocol.NewRequestID(),
		protocol.GuardianUnpairedPayload{GuardianID: req.GuardianID})
	if err == nil {
		h.Fanout.NotifyElder(req.ElderID, env)
	}

	return ok(c, http.StatusOK, echo.Map{"elderId": req.ElderID, "guardianId": req.GuardianID})
}
