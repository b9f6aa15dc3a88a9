// Package handler exposes the voting endpoints. The captcha challenge is
// checked here, before the engine is reached.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ballotmodels "ballotbox/internal/ballot/models"
	"ballotbox/internal/captcha"
	electionservice "ballotbox/internal/election/service"
	"ballotbox/internal/http/shared"
	"ballotbox/internal/platform/middleware"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

// Service defines the voting engine operations the handler needs.
type Service interface {
	CastVote(ctx context.Context, voterID id.VoterID, electionID id.ElectionID, candidateID id.CandidateID) (*ballotmodels.Ballot, error)
	VoterVotes(ctx context.Context, voterID id.VoterID) ([]*ballotmodels.Ballot, error)
}

// ResultsService provides the tally read path.
type ResultsService interface {
	Results(ctx context.Context, electionID id.ElectionID) ([]electionservice.PositionResult, error)
}

type Handler struct {
	voting   Service
	results  ResultsService
	verifier captcha.Verifier
	logger   *slog.Logger
}

func New(voting Service, results ResultsService, verifier captcha.Verifier, logger *slog.Logger) *Handler {
	return &Handler{voting: voting, results: results, verifier: verifier, logger: logger}
}

// RegisterAuthed registers the routes that require a logged-in voter.
func (h *Handler) RegisterAuthed(r chi.Router) {
	r.Post("/vote", h.handleCastVote)
	r.Get("/vote/me", h.handleMyVotes)
}

// RegisterPublic registers the tally read path.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/vote/results", h.handleResults)
}

type castVoteRequest struct {
	ElectionID   string `json:"electionId"`
	CandidateID  string `json:"candidateId"`
	CaptchaToken string `json:"captchaToken"`
}

type ballotResponse struct {
	ID         string    `json:"id"`
	ElectionID string    `json:"electionId"`
	Position   string    `json:"position"`
	CastAt     time.Time `json:"castAt"`
}

func toBallotResponse(ballot *ballotmodels.Ballot) ballotResponse {
	return ballotResponse{
		ID:         ballot.ID.String(),
		ElectionID: ballot.ElectionID.String(),
		Position:   ballot.Position,
		CastAt:     ballot.CastAt,
	}
}

func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	voterID := middleware.GetVoterID(ctx)
	if voterID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ok, err := h.verifier.Verify(ctx, req.CaptchaToken)
	if err != nil {
		h.logger.ErrorContext(ctx, "captcha verification unavailable", "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeChallengeFailed, "captcha verification failed"))
		return
	}
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeChallengeFailed, "captcha verification failed"))
		return
	}

	electionID, err := id.ParseElectionID(req.ElectionID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid election ID"))
		return
	}
	candidateID, err := id.ParseCandidateID(req.CandidateID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid candidate ID"))
		return
	}

	ballot, err := h.voting.CastVote(ctx, voterID, electionID, candidateID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "cast vote failed", "error", err)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Vote recorded.",
		"ballot":  toBallotResponse(ballot),
	})
}

func (h *Handler) handleMyVotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	voterID := middleware.GetVoterID(ctx)
	if voterID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	ballots, err := h.voting.VoterVotes(ctx, voterID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]ballotResponse, 0, len(ballots))
	for _, ballot := range ballots {
		out = append(out, toBallotResponse(ballot))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type positionResultResponse struct {
	Position   string            `json:"position"`
	Candidates []candidateResult `json:"candidates"`
}

type candidateResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Party string `json:"party,omitempty"`
	Tally int    `json:"votesCount"`
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	electionID, err := id.ParseElectionID(r.URL.Query().Get("electionId"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "electionId query parameter is required"))
		return
	}

	results, err := h.results.Results(r.Context(), electionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]positionResultResponse, 0, len(results))
	for _, result := range results {
		candidates := make([]candidateResult, 0, len(result.Candidates))
		for _, candidate := range result.Candidates {
			candidates = append(candidates, candidateResult{
				ID:    candidate.ID.String(),
				Name:  candidate.Name,
				Party: candidate.Party,
				Tally: candidate.Tally,
			})
		}
		out = append(out, positionResultResponse{Position: result.Position, Candidates: candidates})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}
