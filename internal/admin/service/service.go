// Package service implements the Admin Mutation Guard: destructive cascades
// that must run in dependency order inside one transaction, plus the audit
// trail listing.
package service

import (
	"context"
	"errors"
	"log/slog"

	"ballotbox/internal/audit"
	ballotstore "ballotbox/internal/ballot/store"
	electionmodels "ballotbox/internal/election/models"
	electionstore "ballotbox/internal/election/store"
	identitystore "ballotbox/internal/identity/store"
	"ballotbox/internal/platform/metrics"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
	"ballotbox/pkg/platform/sentinel"
)

type Service struct {
	voters   identitystore.VoterStore
	catalog  electionstore.ElectionStore
	ballots  ballotstore.BallotStore
	auditLog audit.Store
	runner   StoreTx
	auditor  audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(
	voters identitystore.VoterStore,
	catalog electionstore.ElectionStore,
	ballots ballotstore.BallotStore,
	auditLog audit.Store,
	runner StoreTx,
	auditor audit.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		voters:   voters,
		catalog:  catalog,
		ballots:  ballots,
		auditLog: auditLog,
		runner:   runner,
		auditor:  auditor,
		logger:   logger,
	}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// DeleteCandidate removes a candidate and every ballot cast for them, ballots
// first. A missing candidate aborts before anything is touched.
func (s *Service) DeleteCandidate(ctx context.Context, electionID id.ElectionID, candidateID id.CandidateID) error {
	var before *electionmodels.Candidate

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		candidate, err := s.catalog.GetCandidate(txCtx, candidateID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "candidate not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
		}
		if candidate.ElectionID != electionID {
			return dErrors.New(dErrors.CodeNotFound, "candidate not found in this election")
		}
		before = candidate

		if _, err := s.ballots.DeleteByCandidate(txCtx, candidateID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete candidate ballots")
		}
		if err := s.catalog.DeleteCandidate(txCtx, candidateID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete candidate")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CascadeDeletes.WithLabelValues("candidate").Inc()
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionDeleteCandidate,
		EntityType: "Candidate",
		EntityID:   candidateID.String(),
		OldValues: map[string]any{
			"name":     before.Name,
			"position": before.Position,
			"tally":    before.Tally,
		},
	})
	return nil
}

// DeleteElection removes an election with all its candidates and ballots.
// Order matters: ballots, then candidates, then the election row.
func (s *Service) DeleteElection(ctx context.Context, electionID id.ElectionID) error {
	var before *electionmodels.Election

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		election, err := s.catalog.GetElection(txCtx, electionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "election not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
		}
		before = election

		if _, err := s.ballots.DeleteByElection(txCtx, electionID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete election ballots")
		}
		if err := s.catalog.DeleteCandidatesByElection(txCtx, electionID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete election candidates")
		}
		if err := s.catalog.DeleteElection(txCtx, electionID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete election")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CascadeDeletes.WithLabelValues("election").Inc()
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionDeleteElection,
		EntityType: "Election",
		EntityID:   electionID.String(),
		OldValues: map[string]any{
			"name":       before.Name,
			"candidates": len(before.Candidates),
		},
	})
	return nil
}

// PurgeVoter removes a voter and their ballots, and subtracts the removed
// ballots from the affected candidate tallies so every tally still equals the
// count of ballots referencing it.
func (s *Service) PurgeVoter(ctx context.Context, voterID id.VoterID) error {
	var (
		email       string
		ballotCount int
	)

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		voter, err := s.voters.FindByID(txCtx, voterID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "voter not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter")
		}
		email = voter.Email

		ballots, err := s.ballots.ListByVoter(txCtx, voterID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list voter ballots")
		}
		ballotCount = len(ballots)
		perCandidate := make(map[id.CandidateID]int)
		for _, ballot := range ballots {
			perCandidate[ballot.CandidateID]++
		}

		if _, err := s.ballots.DeleteByVoter(txCtx, voterID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete voter ballots")
		}
		for candidateID, n := range perCandidate {
			if err := s.catalog.DecrementTally(txCtx, candidateID, n); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to adjust candidate tally")
			}
		}
		if err := s.voters.Delete(txCtx, voterID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete voter")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CascadeDeletes.WithLabelValues("voter").Inc()
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionVoterPurged,
		EntityType: "Voter",
		EntityID:   voterID.String(),
		OldValues:  map[string]any{"email": email, "ballots": ballotCount},
	})
	return nil
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditLogs lists recorded events, newest first, with optional actor, action
// and date-range filters.
func (s *Service) AuditLogs(ctx context.Context, filter audit.Filter) ([]audit.Event, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditPageSize
	}
	if filter.Limit > maxAuditPageSize {
		filter.Limit = maxAuditPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	events, total, err := s.auditLog.ListFiltered(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, total, nil
}
