// Package domain holds identifiers and small value types shared across
// components. Typed IDs keep voter/election/candidate references from being
// mixed up at compile time.
package domain

import "github.com/google/uuid"

type VoterID uuid.UUID

type ElectionID uuid.UUID

type CandidateID uuid.UUID

type BallotID uuid.UUID

func NewVoterID() VoterID         { return VoterID(uuid.New()) }
func NewElectionID() ElectionID   { return ElectionID(uuid.New()) }
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }
func NewBallotID() BallotID       { return BallotID(uuid.New()) }

func (id VoterID) String() string     { return uuid.UUID(id).String() }
func (id ElectionID) String() string  { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id BallotID) String() string    { return uuid.UUID(id).String() }

func (id VoterID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ElectionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BallotID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func ParseVoterID(s string) (VoterID, error) {
	u, err := uuid.Parse(s)
	return VoterID(u), err
}

func ParseElectionID(s string) (ElectionID, error) {
	u, err := uuid.Parse(s)
	return ElectionID(u), err
}

func ParseCandidateID(s string) (CandidateID, error) {
	u, err := uuid.Parse(s)
	return CandidateID(u), err
}

func ParseBallotID(s string) (BallotID, error) {
	u, err := uuid.Parse(s)
	return BallotID(u), err
}
