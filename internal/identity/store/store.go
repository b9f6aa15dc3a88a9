// Package store persists voter records. Uniqueness of email and matric
// number is enforced at this layer; violations surface sentinel.ErrConflict.
package store

import (
	"context"

	"ballotbox/internal/identity/models"
	id "ballotbox/pkg/domain"
)

// VoterStore is the Identity Store contract.
type VoterStore interface {
	Create(ctx context.Context, voter *models.Voter) error
	FindByID(ctx context.Context, voterID id.VoterID) (*models.Voter, error)
	FindByEmail(ctx context.Context, email string) (*models.Voter, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.Voter, error)

	// MarkVerified flips the verified flag and clears the single-use token in
	// one mutation.
	MarkVerified(ctx context.Context, voterID id.VoterID) error

	UpdateRole(ctx context.Context, voterID id.VoterID, role models.Role) error
	RecordLogin(ctx context.Context, voterID id.VoterID, ip string) error

	// ListDescriptors returns every enrolled biometric descriptor with its
	// owner, for the pre-registration duplicate scan and biometric login.
	ListDescriptors(ctx context.Context) (map[id.VoterID][]float64, error)

	List(ctx context.Context) ([]*models.Voter, error)
	Delete(ctx context.Context, voterID id.VoterID) error
}
