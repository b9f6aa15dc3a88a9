package store

import (
	"context"
	"sort"
	"sync"

	"ballotbox/internal/election/models"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
)

// Memory is the in-memory ElectionStore used in tests and development.
type Memory struct {
	mu         sync.RWMutex
	elections  map[id.ElectionID]*models.Election
	candidates map[id.CandidateID]*models.Candidate
}

func NewMemory() *Memory {
	return &Memory{
		elections:  make(map[id.ElectionID]*models.Election),
		candidates: make(map[id.CandidateID]*models.Candidate),
	}
}

func (s *Memory) CreateElection(_ context.Context, election *models.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *election
	cp.Candidates = nil
	s.elections[election.ID] = &cp
	return nil
}

func (s *Memory) GetElection(_ context.Context, electionID id.ElectionID) (*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	election, ok := s.elections[electionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *election
	cp.Candidates = s.candidatesOfLocked(electionID)
	return &cp, nil
}

func (s *Memory) ListElections(_ context.Context) ([]*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Election, 0, len(s.elections))
	for electionID, election := range s.elections {
		cp := *election
		cp.Candidates = s.candidatesOfLocked(electionID)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) DeleteElection(_ context.Context, electionID id.ElectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elections[electionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.elections, electionID)
	return nil
}

func (s *Memory) AddCandidate(_ context.Context, candidate *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elections[candidate.ElectionID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *candidate
	s.candidates[candidate.ID] = &cp
	return nil
}

func (s *Memory) GetCandidate(_ context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidate, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *candidate
	return &cp, nil
}

func (s *Memory) ListCandidates(_ context.Context, electionID id.ElectionID) ([]*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidatesOfLocked(electionID), nil
}

func (s *Memory) DeleteCandidate(_ context.Context, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.candidates[candidateID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.candidates, candidateID)
	return nil
}

func (s *Memory) DeleteCandidatesByElection(_ context.Context, electionID id.ElectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for candidateID, candidate := range s.candidates {
		if candidate.ElectionID == electionID {
			delete(s.candidates, candidateID)
		}
	}
	return nil
}

func (s *Memory) IncrementTally(_ context.Context, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, ok := s.candidates[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	candidate.Tally++
	return nil
}

func (s *Memory) DecrementTally(_ context.Context, candidateID id.CandidateID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, ok := s.candidates[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	candidate.Tally -= n
	return nil
}

// candidatesOfLocked requires at least a read lock to be held.
func (s *Memory) candidatesOfLocked(electionID id.ElectionID) []*models.Candidate {
	var out []*models.Candidate
	for _, candidate := range s.candidates {
		if candidate.ElectionID == electionID {
			cp := *candidate
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}
