// Package handler exposes the election catalog endpoints. Reads are public;
// mutations are registered on the admin-gated router.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ballotbox/internal/election/models"
	"ballotbox/internal/election/service"
	"ballotbox/internal/http/shared"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	CreateElection(ctx context.Context, req service.CreateElectionRequest) (*models.Election, error)
	AddCandidate(ctx context.Context, req service.AddCandidateRequest) (*models.Candidate, error)
	Get(ctx context.Context, electionID id.ElectionID) (*models.Election, error)
	List(ctx context.Context) ([]*models.Election, error)
}

// AdminService defines the destructive catalog operations.
type AdminService interface {
	DeleteElection(ctx context.Context, electionID id.ElectionID) error
	DeleteCandidate(ctx context.Context, electionID id.ElectionID, candidateID id.CandidateID) error
}

type Handler struct {
	catalog Service
	admin   AdminService
	logger  *slog.Logger
}

func New(catalog Service, admin AdminService, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, admin: admin, logger: logger}
}

// RegisterPublic registers the unauthenticated read routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/elections", h.handleList)
	r.Get("/elections/{electionID}", h.handleGet)
}

// RegisterAdmin registers the mutations. The router applies the admin gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/elections", h.handleCreate)
	r.Post("/elections/{electionID}/candidates", h.handleAddCandidate)
	r.Delete("/elections/{electionID}", h.handleDelete)
	r.Delete("/elections/{electionID}/candidates/{candidateID}", h.handleDeleteCandidate)
}

type candidateResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Party    string `json:"party,omitempty"`
	Position string `json:"position"`
	Tally    int    `json:"votesCount"`
}

type electionResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	Candidates  []candidateResponse `json:"candidates"`
}

func toCandidateResponse(candidate *models.Candidate) candidateResponse {
	return candidateResponse{
		ID:       candidate.ID.String(),
		Name:     candidate.Name,
		Party:    candidate.Party,
		Position: candidate.Position,
		Tally:    candidate.Tally,
	}
}

func toElectionResponse(election *models.Election) electionResponse {
	candidates := make([]candidateResponse, 0, len(election.Candidates))
	for _, candidate := range election.Candidates {
		candidates = append(candidates, toCandidateResponse(candidate))
	}
	return electionResponse{
		ID:          election.ID.String(),
		Name:        election.Name,
		Description: election.Description,
		CreatedAt:   election.CreatedAt,
		Candidates:  candidates,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	elections, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list elections", "error", err)
		shared.WriteError(w, err)
		return
	}

	out := make([]electionResponse, 0, len(elections))
	for _, election := range elections {
		out = append(out, toElectionResponse(election))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid election ID"))
		return
	}

	election, err := h.catalog.Get(r.Context(), electionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toElectionResponse(election))
}

type createElectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	election, err := h.catalog.CreateElection(r.Context(), service.CreateElectionRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toElectionResponse(election))
}

type addCandidateRequest struct {
	Name     string `json:"name"`
	Party    string `json:"party"`
	Position string `json:"position"`
}

func (h *Handler) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid election ID"))
		return
	}

	var req addCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	candidate, err := h.catalog.AddCandidate(r.Context(), service.AddCandidateRequest{
		ElectionID: electionID,
		Name:       req.Name,
		Party:      req.Party,
		Position:   req.Position,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toCandidateResponse(candidate))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid election ID"))
		return
	}

	if err := h.admin.DeleteElection(r.Context(), electionID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	electionID, err := id.ParseElectionID(chi.URLParam(r, "electionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid election ID"))
		return
	}
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid candidate ID"))
		return
	}

	if err := h.admin.DeleteCandidate(r.Context(), electionID, candidateID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
