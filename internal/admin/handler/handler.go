// Package handler exposes the admin endpoints: voter listing, role
// elevation, voter purge, and the audit trail.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ballotbox/internal/audit"
	"ballotbox/internal/http/shared"
	"ballotbox/internal/identity/models"
	"ballotbox/internal/platform/middleware"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

// IdentityService defines the voter administration operations.
type IdentityService interface {
	List(ctx context.Context) ([]*models.Voter, error)
	SetRole(ctx context.Context, voterID id.VoterID, role models.Role) (*models.Voter, error)
}

// AdminService defines the purge and audit-trail operations.
type AdminService interface {
	PurgeVoter(ctx context.Context, voterID id.VoterID) error
	AuditLogs(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error)
}

type Handler struct {
	identity IdentityService
	admin    AdminService
	logger   *slog.Logger
}

func New(identity IdentityService, admin AdminService, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, admin: admin, logger: logger}
}

// RegisterAdmin registers the admin-gated routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/voters", h.handleListVoters)
	r.Get("/admin/audit-logs", h.handleAuditLogs)
}

// RegisterSuperAdmin registers the routes only super admins may call.
func (h *Handler) RegisterSuperAdmin(r chi.Router) {
	r.Put("/admin/voters/{voterID}/role", h.handleSetRole)
	r.Delete("/admin/voters/{voterID}", h.handlePurgeVoter)
}

type voterSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	MatricNumber string `json:"matricNumber"`
	Verified     bool   `json:"verified"`
	Role         string `json:"role"`
}

func (h *Handler) handleListVoters(w http.ResponseWriter, r *http.Request) {
	voters, err := h.identity.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list voters", "error", err)
		shared.WriteError(w, err)
		return
	}

	out := make([]voterSummary, 0, len(voters))
	for _, voter := range voters {
		out = append(out, voterSummary{
			ID:           voter.ID.String(),
			Name:         voter.Name,
			Email:        voter.Email,
			MatricNumber: voter.MatricNumber,
			Verified:     voter.Verified,
			Role:         string(voter.Role),
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	voterID, err := id.ParseVoterID(chi.URLParam(r, "voterID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid voter ID"))
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	voter, err := h.identity.SetRole(r.Context(), voterID, models.Role(req.Role))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, voterSummary{
		ID:           voter.ID.String(),
		Name:         voter.Name,
		Email:        voter.Email,
		MatricNumber: voter.MatricNumber,
		Verified:     voter.Verified,
		Role:         string(voter.Role),
	})
}

func (h *Handler) handlePurgeVoter(w http.ResponseWriter, r *http.Request) {
	voterID, err := id.ParseVoterID(chi.URLParam(r, "voterID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid voter ID"))
		return
	}

	// A super admin cannot purge their own account.
	if actor := middleware.GetVoterID(r.Context()); actor == voterID {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "cannot delete your own account"))
		return
	}

	if err := h.admin.PurgeVoter(r.Context(), voterID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEventResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type auditLogsResponse struct {
	Events []auditEventResponse `json:"events"`
	Total  int                  `json:"total"`
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
}

func (h *Handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	events, total, err := h.admin.AuditLogs(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list audit logs", "error", err)
		shared.WriteError(w, err)
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		resp := auditEventResponse{
			ID:         ev.ID.String(),
			Action:     ev.Action,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			OldValues:  ev.OldValues,
			NewValues:  ev.NewValues,
			IP:         ev.Origin.IP,
			UserAgent:  ev.Origin.UserAgent,
			Timestamp:  ev.Timestamp,
		}
		if ev.ActorID != nil {
			resp.ActorID = ev.ActorID.String()
		}
		out = append(out, resp)
	}

	shared.WriteJSON(w, http.StatusOK, auditLogsResponse{
		Events: out,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	q := r.URL.Query()

	if actor := q.Get("actorId"); actor != "" {
		actorID, err := id.ParseVoterID(actor)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid actorId")
		}
		filter.ActorID = &actorID
	}
	filter.Action = q.Get("action")

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp, want RFC3339")
		}
		filter.From = &t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp, want RFC3339")
		}
		filter.To = &t
	}

	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid offset")
		}
		filter.Offset = n
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid limit")
		}
		filter.Limit = n
	}

	return filter, nil
}
