// Package models defines the election catalog entities.
package models

import (
	"time"

	id "ballotbox/pkg/domain"
)

// Election groups the positions being contested in one poll.
type Election struct {
	ID          id.ElectionID
	Name        string
	Description string
	CreatedAt   time.Time
	Candidates  []*Candidate
}

// Candidate contests one position in one election. Tally is the denormalized
// ballot count; it must always equal the number of ballots referencing the
// candidate.
type Candidate struct {
	ID         id.CandidateID
	ElectionID id.ElectionID
	Name       string
	Party      string
	Position   string
	Tally      int
	CreatedAt  time.Time
}
