package models

import (
	"time"

	id "ballotbox/pkg/domain"
)

// Role controls what a voter may do. Elevation is a gated, audited operation
// reserved to super admins.
type Role string

const (
	RoleVoter      Role = "voter"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVoter, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CanAdminister reports whether the role may manage elections and candidates.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Voter is the identity record. The password hash is opaque here; hashing and
// comparison live behind the credential verifier.
type Voter struct {
	ID           id.VoterID
	Name         string
	Email        string
	MatricNumber string
	PasswordHash string
	Verified     bool

	// VerificationToken is single-use: cleared the moment it is redeemed so
	// it cannot be replayed.
	VerificationToken string

	Role Role

	// FaceDescriptor is the fixed-length biometric vector, empty when the
	// voter registered without biometrics.
	FaceDescriptor []float64

	LastLoginIP string
	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// HasDescriptor reports whether a biometric descriptor is enrolled.
func (v *Voter) HasDescriptor() bool {
	return len(v.FaceDescriptor) > 0
}
