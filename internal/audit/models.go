// Package audit records structured events for every state-changing operation.
// Emission is best-effort and never blocks or fails the triggering operation.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "ballotbox/pkg/domain"
)

// Action names mirror the operations they record.
const (
	ActionVoterRegistered = "VOTER_REGISTERED"
	ActionEmailVerified   = "EMAIL_VERIFIED"
	ActionLogin           = "LOGIN"
	ActionRoleUpdated     = "ROLE_UPDATED"
	ActionVoterPurged     = "VOTER_PURGED"
	ActionCreateElection  = "CREATE_ELECTION"
	ActionAddCandidate    = "ADD_CANDIDATE"
	ActionDeleteCandidate = "DELETE_CANDIDATE"
	ActionDeleteElection  = "DELETE_ELECTION"
	ActionCastVote        = "CAST_VOTE"
	ActionViewResults     = "VIEW_RESULTS"
	ActionViewUserVotes   = "VIEW_USER_VOTES"
)

// Origin captures where a request came from.
type Origin struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. OldValues carries the
// before-image for destructive operations, captured prior to deletion since
// it is unavailable afterward.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    *id.VoterID    `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	Origin     Origin         `json:"origin"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Filter narrows audit log listings.
type Filter struct {
	ActorID *id.VoterID
	Action  string
	From    *time.Time
	To      *time.Time
	Offset  int
	Limit   int
}
