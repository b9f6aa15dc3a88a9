package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotbox/internal/ballot/models"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
)

func newBallot(voterID id.VoterID, electionID id.ElectionID, position string) *models.Ballot {
	return &models.Ballot{
		ID:          id.NewBallotID(),
		VoterID:     voterID,
		ElectionID:  electionID,
		CandidateID: id.NewCandidateID(),
		Position:    position,
		CastAt:      time.Now(),
	}
}

func TestMemoryAppendUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	voterID := id.NewVoterID()
	electionID := id.NewElectionID()

	require.NoError(t, store.Append(ctx, newBallot(voterID, electionID, "President")))

	// Same voter, same election, same position: rejected even for a
	// different candidate.
	err := store.Append(ctx, newBallot(voterID, electionID, "President"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	// A different position is a separate contest.
	assert.NoError(t, store.Append(ctx, newBallot(voterID, electionID, "Secretary")))

	// A different election starts fresh.
	assert.NoError(t, store.Append(ctx, newBallot(voterID, id.NewElectionID(), "President")))
}

func TestMemoryAppendConcurrentDuplicates(t *testing.T) {
	for _, attempts := range []int{2, 10, 100} {
		ctx := context.Background()
		store := NewMemory()
		voterID := id.NewVoterID()
		electionID := id.NewElectionID()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.Append(ctx, newBallot(voterID, electionID, "President")); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded, "attempts=%d", attempts)
	}
}

func TestMemoryHasVoted(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	voterID := id.NewVoterID()
	electionID := id.NewElectionID()

	voted, err := store.HasVoted(ctx, voterID, electionID, "President")
	require.NoError(t, err)
	assert.False(t, voted)

	require.NoError(t, store.Append(ctx, newBallot(voterID, electionID, "President")))

	voted, err = store.HasVoted(ctx, voterID, electionID, "President")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestMemoryDeleteByCandidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	electionID := id.NewElectionID()
	candidateID := id.NewCandidateID()

	for range 3 {
		ballot := newBallot(id.NewVoterID(), electionID, "President")
		ballot.CandidateID = candidateID
		require.NoError(t, store.Append(ctx, ballot))
	}
	require.NoError(t, store.Append(ctx, newBallot(id.NewVoterID(), electionID, "Secretary")))

	deleted, err := store.DeleteByCandidate(ctx, candidateID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	count, err := store.CountByCandidate(ctx, candidateID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryDeleteFreesTheSlot(t *testing.T) {
	// After a cascade removes a voter's ballot, the voter may vote again for
	// the same position.
	ctx := context.Background()
	store := NewMemory()
	voterID := id.NewVoterID()
	electionID := id.NewElectionID()

	ballot := newBallot(voterID, electionID, "President")
	require.NoError(t, store.Append(ctx, ballot))

	deleted, err := store.DeleteByCandidate(ctx, ballot.CandidateID)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	assert.NoError(t, store.Append(ctx, newBallot(voterID, electionID, "President")))
}
