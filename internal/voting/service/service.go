// Package service implements the Voting Engine. CastVote is the integrity
// core: at most one ballot per (voter, election, position), with the
// storage-level uniqueness constraint as the backstop against races the
// application-level check cannot close.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ballotbox/internal/audit"
	ballotmodels "ballotbox/internal/ballot/models"
	ballotstore "ballotbox/internal/ballot/store"
	electionstore "ballotbox/internal/election/store"
	identitystore "ballotbox/internal/identity/store"
	"ballotbox/internal/platform/metrics"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
	"ballotbox/pkg/platform/sentinel"
	"ballotbox/pkg/requestcontext"
)

type Service struct {
	voters  identitystore.VoterStore
	catalog electionstore.ElectionStore
	ballots ballotstore.BallotStore
	runner  StoreTx
	auditor audit.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

func New(
	voters identitystore.VoterStore,
	catalog electionstore.ElectionStore,
	ballots ballotstore.BallotStore,
	runner StoreTx,
	auditor audit.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		voters:  voters,
		catalog: catalog,
		ballots: ballots,
		runner:  runner,
		auditor: auditor,
		logger:  logger,
		tracer:  otel.Tracer("ballotbox/voting"),
	}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// CastVote records one ballot for the voter. Inside a single transaction the
// engine checks for a prior ballot on the position, appends the ballot, and
// increments the candidate tally; a uniqueness conflict from a concurrent
// duplicate is retried once so the loser observes the committed ballot and
// gets the duplicate-vote error instead of a raw conflict.
func (s *Service) CastVote(ctx context.Context, voterID id.VoterID, electionID id.ElectionID, candidateID id.CandidateID) (*ballotmodels.Ballot, error) {
	ctx, span := s.tracer.Start(ctx, "voting.CastVote", trace.WithAttributes(
		attribute.String("election.id", electionID.String()),
	))
	defer span.End()

	voter, err := s.voters.FindByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter")
	}
	if !voter.Verified {
		return nil, dErrors.New(dErrors.CodeUnverified, "email not verified")
	}

	candidate, err := s.catalog.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load candidate")
	}
	if candidate.ElectionID != electionID {
		return nil, dErrors.New(dErrors.CodeNotFound, "candidate does not belong to this election")
	}

	ballot, err := s.castOnce(ctx, voterID, electionID, candidateID, candidate.Position)
	if errors.Is(err, sentinel.ErrConflict) {
		// The backstop constraint fired: a concurrent request committed
		// first. One retry lets the pre-check observe the committed ballot.
		ballot, err = s.castOnce(ctx, voterID, electionID, candidateID, candidate.Position)
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.Wrap(err, dErrors.CodeConflict, "vote could not be recorded, please retry")
		}
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicateVote) && s.metrics != nil {
			s.metrics.DuplicateVotes.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VotesCast.Inc()
	}

	// The audit record deliberately omits the chosen candidate: the trail
	// proves the voter voted for the position, not how.
	s.auditor.Emit(ctx, audit.Event{
		ActorID:    audit.Actor(voterID),
		Action:     audit.ActionCastVote,
		EntityType: "Ballot",
		EntityID:   ballot.ID.String(),
		NewValues: map[string]any{
			"election_id": electionID.String(),
			"position":    candidate.Position,
		},
	})

	return ballot, nil
}

// castOnce runs one transactional cast attempt. It returns
// sentinel.ErrConflict unwrapped when the store constraint rejects the
// append so the caller can decide to retry.
func (s *Service) castOnce(ctx context.Context, voterID id.VoterID, electionID id.ElectionID, candidateID id.CandidateID, position string) (*ballotmodels.Ballot, error) {
	ballot := &ballotmodels.Ballot{
		ID:          id.NewBallotID(),
		VoterID:     voterID,
		ElectionID:  electionID,
		CandidateID: candidateID,
		Position:    position,
		CastAt:      requestcontext.Now(ctx),
	}

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		voted, err := s.ballots.HasVoted(txCtx, voterID, electionID, position)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check prior ballot")
		}
		if voted {
			return dErrors.Newf(dErrors.CodeDuplicateVote, "Already voted for %s", position)
		}

		// The increment runs first: it re-establishes inside the transaction
		// that the candidate still exists, and a failure here leaves nothing
		// to undo. The lock-based runner has no rollback, so a failed append
		// must compensate the increment itself; under SQL the rollback
		// discards both.
		if err := s.catalog.IncrementTally(txCtx, candidateID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "candidate no longer exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment tally")
		}
		if err := s.ballots.Append(txCtx, ballot); err != nil {
			_ = s.catalog.DecrementTally(txCtx, candidateID, 1)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ballot, nil
}

// VoterVotes returns the voter's own ballots.
func (s *Service) VoterVotes(ctx context.Context, voterID id.VoterID) ([]*ballotmodels.Ballot, error) {
	ballots, err := s.ballots.ListByVoter(ctx, voterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ballots")
	}

	s.auditor.Emit(ctx, audit.Event{
		ActorID:    audit.Actor(voterID),
		Action:     audit.ActionViewUserVotes,
		EntityType: "Voter",
		EntityID:   voterID.String(),
	})

	return ballots, nil
}
