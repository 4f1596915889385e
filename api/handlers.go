/*
handlers.go - HTTP API handlers for the loyalty progression engine

PURPOSE:
  Exposes the ledger service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates all domain decisions to the service.

ENDPOINTS:
  Mutations:
    POST   /api/progress             Grant achievement progress
    POST   /api/redeem               Redeem a reward

  Queries:
    GET    /api/state/{userID}       Full derived state for a user
    GET    /api/events/{userID}      Raw event ledger for a user

  Catalog (read-only):
    GET    /api/catalog/achievements
    GET    /api/catalog/badges
    GET    /api/catalog/tiers
    GET    /api/catalog/rewards

  Ops:
    GET    /api/healthz

REQUEST FLOW:
  1. Decode and sanity-check the body
  2. Call the service (which validates against the projection)
  3. Serialize the projection back out

ERROR HANDLING:
  Errors are returned as JSON with a machine-readable reason code:
  - 400: Malformed body, missing fields
  - 409: Domain rejection (unknown id, insufficient points, duplicate)
  - 500: Storage errors

  A retried request id is NOT an error: the handler replies 200 with the
  already-produced result.

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - service/service.go: the mutation boundary behind these handlers
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression"
	"github.com/wandertrip/loyalty-engine/service"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *service.Service
}

// NewHandler creates a new handler over the given service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

// =============================================================================
// MUTATION HANDLERS
// =============================================================================

// SubmitProgress grants progress on an achievement.
func (h *Handler) SubmitProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "malformed_body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "missing_user_id", nil)
		return
	}

	p, err := h.Service.SubmitProgress(r.Context(), req.UserID, catalog.AchievementID(req.AchievementID), req.Delta, req.RequestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStateDTO(p, h.Service.Catalog()))
}

// SubmitRedemption spends points on a reward.
func (h *Handler) SubmitRedemption(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "malformed_body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "missing_user_id", nil)
		return
	}

	p, rec, err := h.Service.SubmitRedemption(r.Context(), req.UserID, catalog.RewardID(req.RewardID), req.RequestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := RedeemResponseDTO{State: toStateDTO(p, h.Service.Catalog())}
	if rec != nil {
		d := toRedemptionDTO(rec, h.Service.Catalog())
		resp.Redemption = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// GetState returns the full derived state for a user. Unknown users get the
// empty state, not a 404: a user with no events is simply at level 1.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	p, err := h.Service.GetState(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load state", "internal", err)
		return
	}

	writeJSON(w, http.StatusOK, toStateDTO(p, h.Service.Catalog()))
}

// GetEvents returns the raw event ledger for a user, oldest first.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	events, err := h.Service.History(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", "internal", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i := range events {
		dtos[i] = toEventDTO(&events[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"events":  dtos,
	})
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListAchievements returns all achievement definitions.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	cat := h.Service.Catalog()
	achievements := cat.Achievements()

	dtos := make([]AchievementDTO, len(achievements))
	for i, a := range achievements {
		dtos[i] = AchievementDTO{
			ID:       string(a.ID),
			Name:     a.Name,
			Category: string(a.Category),
			Target:   a.Target,
			XPReward: a.XPReward,
			MaxLevel: a.MaxLevel,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBadges returns all badge definitions with their unlock rules.
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges := h.Service.Catalog().Badges()

	dtos := make([]BadgeDefDTO, len(badges))
	for i, b := range badges {
		ids := make([]string, len(b.Rule.AchievementIDs))
		for j, id := range b.Rule.AchievementIDs {
			ids[j] = string(id)
		}
		dtos[i] = BadgeDefDTO{
			ID:           string(b.ID),
			Name:         b.Name,
			Tier:         b.Tier,
			Achievements: ids,
			Required:     b.Rule.RequiredCompletions,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTiers returns the reward tier ladder.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.Service.Catalog().Tiers()

	dtos := make([]TierDTO, len(tiers))
	for i, t := range tiers {
		dtos[i] = TierDTO{
			Level:     t.Level,
			Threshold: t.Threshold,
			Benefits:  t.Benefits,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRewards returns the redeemable rewards.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.Service.Catalog().Rewards()

	dtos := make([]RewardDTO, len(rewards))
	for i, rw := range rewards {
		dtos[i] = RewardDTO{
			ID:        string(rw.ID),
			Name:      rw.Name,
			Cost:      rw.Cost,
			Available: rw.Available,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, reason string, err error) {
	resp := ErrorResponse{Error: message, Reason: reason}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps service errors onto HTTP statuses. Validation
// rejections are 409: the request was well-formed but the ledger refuses it.
func writeDomainError(w http.ResponseWriter, err error) {
	reason := progression.Reason(err)
	switch {
	case progression.IsValidation(err):
		writeError(w, http.StatusConflict, "Request rejected", reason, err)
	case progression.IsConflict(err):
		writeError(w, http.StatusConflict, "Concurrent conflict, retry", reason, err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", reason, err)
	}
}
