// Package store persists elections and candidates.
package store

import (
	"context"

	"ballotbox/internal/election/models"
	id "ballotbox/pkg/domain"
)

// ElectionStore is the catalog persistence contract. Stores return
// sentinel.ErrNotFound for missing rows; services translate.
type ElectionStore interface {
	CreateElection(ctx context.Context, election *models.Election) error
	GetElection(ctx context.Context, electionID id.ElectionID) (*models.Election, error)
	ListElections(ctx context.Context) ([]*models.Election, error)
	DeleteElection(ctx context.Context, electionID id.ElectionID) error

	AddCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	ListCandidates(ctx context.Context, electionID id.ElectionID) ([]*models.Candidate, error)
	DeleteCandidate(ctx context.Context, candidateID id.CandidateID) error
	DeleteCandidatesByElection(ctx context.Context, electionID id.ElectionID) error

	// IncrementTally must be atomic: concurrent increments may not lose
	// updates. It runs inside the cast-vote transaction.
	IncrementTally(ctx context.Context, candidateID id.CandidateID) error

	// DecrementTally subtracts n from the candidate tally. It runs inside
	// the voter-purge transaction so tallies keep matching the ledger after
	// the voter's ballots are removed.
	DecrementTally(ctx context.Context, candidateID id.CandidateID, n int) error
}
