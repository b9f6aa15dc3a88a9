// Package store persists the append-only ballot ledger.
package store

import (
	"context"

	"ballotbox/internal/ballot/models"
	id "ballotbox/pkg/domain"
)

// BallotStore is the ledger persistence contract. Append must enforce
// uniqueness of (voter_id, election_id, position) and return
// sentinel.ErrConflict on violation: the application-level HasVoted check is
// racy under concurrency and the store constraint is the backstop.
type BallotStore interface {
	Append(ctx context.Context, ballot *models.Ballot) error
	HasVoted(ctx context.Context, voterID id.VoterID, electionID id.ElectionID, position string) (bool, error)
	ListByVoter(ctx context.Context, voterID id.VoterID) ([]*models.Ballot, error)
	CountByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteByCandidate(ctx context.Context, candidateID id.CandidateID) (int, error)
	DeleteByElection(ctx context.Context, electionID id.ElectionID) (int, error)
	DeleteByVoter(ctx context.Context, voterID id.VoterID) (int, error)
}
