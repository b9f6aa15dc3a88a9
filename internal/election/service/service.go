// Package service implements the Election Catalog operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ballotbox/internal/audit"
	"ballotbox/internal/election/models"
	"ballotbox/internal/election/store"
	"ballotbox/internal/platform/metrics"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
	"ballotbox/pkg/platform/sentinel"
	"ballotbox/pkg/requestcontext"
)

type Service struct {
	elections store.ElectionStore
	auditor   audit.Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(elections store.ElectionStore, auditor audit.Recorder, logger *slog.Logger) *Service {
	return &Service{elections: elections, auditor: auditor, logger: logger}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// CreateElectionRequest carries the validated creation payload.
type CreateElectionRequest struct {
	Name        string
	Description string
}

func (s *Service) CreateElection(ctx context.Context, req CreateElectionRequest) (*models.Election, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "election name is required")
	}

	election := &models.Election{
		ID:          id.NewElectionID(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.elections.CreateElection(ctx, election); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create election")
	}

	if s.metrics != nil {
		s.metrics.ElectionsCreated.Inc()
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionCreateElection,
		EntityType: "Election",
		EntityID:   election.ID.String(),
		NewValues:  map[string]any{"name": election.Name},
	})

	return election, nil
}

// AddCandidateRequest carries the validated candidate payload. Several
// candidates may contest the same position; there is no position-uniqueness
// check here.
type AddCandidateRequest struct {
	ElectionID id.ElectionID
	Name       string
	Party      string
	Position   string
}

func (s *Service) AddCandidate(ctx context.Context, req AddCandidateRequest) (*models.Candidate, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Position = strings.TrimSpace(req.Position)
	if req.Name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "candidate name is required")
	}
	if req.Position == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "position is required")
	}

	// Verify the election exists before inserting so the caller gets a clean
	// not-found instead of a foreign-key error.
	if _, err := s.elections.GetElection(ctx, req.ElectionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up election")
	}

	candidate := &models.Candidate{
		ID:         id.NewCandidateID(),
		ElectionID: req.ElectionID,
		Name:       req.Name,
		Party:      strings.TrimSpace(req.Party),
		Position:   req.Position,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.elections.AddCandidate(ctx, candidate); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add candidate")
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionAddCandidate,
		EntityType: "Candidate",
		EntityID:   candidate.ID.String(),
		NewValues: map[string]any{
			"name":        candidate.Name,
			"position":    candidate.Position,
			"election_id": req.ElectionID.String(),
		},
	})

	return candidate, nil
}

func (s *Service) Get(ctx context.Context, electionID id.ElectionID) (*models.Election, error) {
	election, err := s.elections.GetElection(ctx, electionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "election not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
	}
	return election, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Election, error) {
	elections, err := s.elections.ListElections(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list elections")
	}
	return elections, nil
}

// PositionResult groups one position's candidates with their tallies.
type PositionResult struct {
	Position   string
	Candidates []*models.Candidate
}

// Results returns the election's candidates grouped by position, tallies
// included, in the store's position ordering.
func (s *Service) Results(ctx context.Context, electionID id.ElectionID) ([]PositionResult, error) {
	election, err := s.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}

	var results []PositionResult
	for _, candidate := range election.Candidates {
		if n := len(results); n > 0 && results[n-1].Position == candidate.Position {
			results[n-1].Candidates = append(results[n-1].Candidates, candidate)
			continue
		}
		results = append(results, PositionResult{
			Position:   candidate.Position,
			Candidates: []*models.Candidate{candidate},
		})
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionViewResults,
		EntityType: "Election",
		EntityID:   electionID.String(),
	})

	return results, nil
}
