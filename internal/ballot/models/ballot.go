// Package models defines the append-only ballot record.
package models

import (
	"time"

	id "ballotbox/pkg/domain"
)

// Ballot records one cast vote. Position is denormalized at cast time so the
// one-ballot-per-position constraint holds even if the candidate row later
// disappears. Ballots are never updated.
type Ballot struct {
	ID          id.BallotID
	VoterID     id.VoterID
	ElectionID  id.ElectionID
	CandidateID id.CandidateID
	Position    string
	CastAt      time.Time
}
