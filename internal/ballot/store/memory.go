package store

import (
	"context"
	"sort"
	"sync"

	"ballotbox/internal/ballot/models"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
)

type ledgerKey struct {
	voterID    id.VoterID
	electionID id.ElectionID
	position   string
}

// Memory is the in-memory BallotStore. It enforces the same
// (voter, election, position) uniqueness the Postgres constraint does.
type Memory struct {
	mu      sync.RWMutex
	ballots map[id.BallotID]*models.Ballot
	byKey   map[ledgerKey]id.BallotID
}

func NewMemory() *Memory {
	return &Memory{
		ballots: make(map[id.BallotID]*models.Ballot),
		byKey:   make(map[ledgerKey]id.BallotID),
	}
}

func keyOf(ballot *models.Ballot) ledgerKey {
	return ledgerKey{voterID: ballot.VoterID, electionID: ballot.ElectionID, position: ballot.Position}
}

func (s *Memory) Append(_ context.Context, ballot *models.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(ballot)
	if _, taken := s.byKey[key]; taken {
		return sentinel.ErrConflict
	}

	cp := *ballot
	s.ballots[ballot.ID] = &cp
	s.byKey[key] = ballot.ID
	return nil
}

func (s *Memory) HasVoted(_ context.Context, voterID id.VoterID, electionID id.ElectionID, position string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, taken := s.byKey[ledgerKey{voterID: voterID, electionID: electionID, position: position}]
	return taken, nil
}

func (s *Memory) ListByVoter(_ context.Context, voterID id.VoterID) ([]*models.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Ballot
	for _, ballot := range s.ballots {
		if ballot.VoterID == voterID {
			cp := *ballot
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CastAt.Before(out[j].CastAt) })
	return out, nil
}

func (s *Memory) CountByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ballot := range s.ballots {
		if ballot.CandidateID == candidateID {
			count++
		}
	}
	return count, nil
}

func (s *Memory) DeleteByCandidate(_ context.Context, candidateID id.CandidateID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhereLocked(func(b *models.Ballot) bool { return b.CandidateID == candidateID }), nil
}

func (s *Memory) DeleteByElection(_ context.Context, electionID id.ElectionID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhereLocked(func(b *models.Ballot) bool { return b.ElectionID == electionID }), nil
}

func (s *Memory) DeleteByVoter(_ context.Context, voterID id.VoterID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhereLocked(func(b *models.Ballot) bool { return b.VoterID == voterID }), nil
}

func (s *Memory) deleteWhereLocked(match func(*models.Ballot) bool) int {
	deleted := 0
	for ballotID, ballot := range s.ballots {
		if match(ballot) {
			delete(s.byKey, keyOf(ballot))
			delete(s.ballots, ballotID)
			deleted++
		}
	}
	return deleted
}
