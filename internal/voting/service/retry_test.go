package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ballotmodels "ballotbox/internal/ballot/models"
	ballotstore "ballotbox/internal/ballot/store"
	electionmodels "ballotbox/internal/election/models"
	electionstore "ballotbox/internal/election/store"
	identitymodels "ballotbox/internal/identity/models"
	identitystore "ballotbox/internal/identity/store"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
	"ballotbox/pkg/platform/sentinel"
)

// racingBallotStore simulates a concurrent request committing between this
// request's pre-check and its append: the first append hits the uniqueness
// constraint, and a rival ballot with its tally increment materializes.
type racingBallotStore struct {
	*ballotstore.Memory
	catalog electionstore.ElectionStore
	rival   *ballotmodels.Ballot
	tripped bool
}

func (s *racingBallotStore) Append(ctx context.Context, ballot *ballotmodels.Ballot) error {
	if !s.tripped {
		s.tripped = true
		if err := s.Memory.Append(ctx, s.rival); err != nil {
			return err
		}
		if err := s.catalog.IncrementTally(ctx, s.rival.CandidateID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return s.Memory.Append(ctx, ballot)
}

func TestCastVoteRetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	voters := identitystore.NewMemory()
	catalog := electionstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	voter := &identitymodels.Voter{
		ID:           id.NewVoterID(),
		Name:         "Racer",
		Email:        "racer@example.edu",
		MatricNumber: "MAT-900",
		Verified:     true,
		Role:         identitymodels.RoleVoter,
	}
	require.NoError(t, voters.Create(ctx, voter))

	election := &electionmodels.Election{ID: id.NewElectionID(), Name: "Race"}
	require.NoError(t, catalog.CreateElection(ctx, election))
	candidate := &electionmodels.Candidate{
		ID:         id.NewCandidateID(),
		ElectionID: election.ID,
		Name:       "Alice",
		Position:   "President",
	}
	require.NoError(t, catalog.AddCandidate(ctx, candidate))

	rival := &ballotmodels.Ballot{
		ID:          id.NewBallotID(),
		VoterID:     voter.ID,
		ElectionID:  election.ID,
		CandidateID: candidate.ID,
		Position:    "President",
	}
	ballots := &racingBallotStore{Memory: ballotstore.NewMemory(), catalog: catalog, rival: rival}

	svc := New(voters, catalog, ballots, NewMemoryTx(), &captureAuditor{}, logger)

	// The retry must observe the rival's committed ballot and report a
	// duplicate vote, not a storage conflict.
	_, err := svc.CastVote(ctx, voter.ID, election.ID, candidate.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateVote), "got %v", err)
	assert.Contains(t, dErrors.MessageOf(err), "President")

	// Exactly the rival's ballot remains, and the tally matches it: the
	// losing attempt's increment was undone with its failed append.
	count, err2 := ballots.CountByCandidate(ctx, candidate.ID)
	require.NoError(t, err2)
	assert.Equal(t, 1, count)
	got, err3 := catalog.GetCandidate(ctx, candidate.ID)
	require.NoError(t, err3)
	assert.Equal(t, count, got.Tally)
}

// vanishingCatalog simulates an admin cascade deleting the candidate between
// the engine's catalog lookup and the transactional cast.
type vanishingCatalog struct {
	*electionstore.Memory
	served bool
}

func (c *vanishingCatalog) GetCandidate(ctx context.Context, candidateID id.CandidateID) (*electionmodels.Candidate, error) {
	candidate, err := c.Memory.GetCandidate(ctx, candidateID)
	if err != nil || c.served {
		return candidate, err
	}
	c.served = true
	if err := c.Memory.DeleteCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	return candidate, nil
}

func TestCastVoteCandidateDeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	voters := identitystore.NewMemory()
	catalog := &vanishingCatalog{Memory: electionstore.NewMemory()}
	ballots := ballotstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	voter := &identitymodels.Voter{
		ID:           id.NewVoterID(),
		Name:         "Racer",
		Email:        "racer@example.edu",
		MatricNumber: "MAT-901",
		Verified:     true,
		Role:         identitymodels.RoleVoter,
	}
	require.NoError(t, voters.Create(ctx, voter))

	election := &electionmodels.Election{ID: id.NewElectionID(), Name: "Race"}
	require.NoError(t, catalog.CreateElection(ctx, election))
	candidate := &electionmodels.Candidate{
		ID:         id.NewCandidateID(),
		ElectionID: election.ID,
		Name:       "Alice",
		Position:   "President",
	}
	require.NoError(t, catalog.AddCandidate(ctx, candidate))

	svc := New(voters, catalog, ballots, NewMemoryTx(), &captureAuditor{}, logger)

	// The tally increment inside the transaction observes the deletion, so
	// the cast aborts before any ballot is written.
	_, err := svc.CastVote(ctx, voter.ID, election.ID, candidate.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)

	list, err2 := ballots.ListByVoter(ctx, voter.ID)
	require.NoError(t, err2)
	assert.Empty(t, list)
}
