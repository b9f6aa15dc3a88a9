package store

import (
	"context"
	"strings"
	"sync"

	"ballotbox/internal/identity/models"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/platform/sentinel"
	"ballotbox/pkg/requestcontext"
)

// Memory is the in-memory VoterStore used in tests and development. It
// enforces the same email/matric uniqueness the Postgres schema does.
type Memory struct {
	mu     sync.RWMutex
	voters map[id.VoterID]*models.Voter
}

func NewMemory() *Memory {
	return &Memory{voters: make(map[id.VoterID]*models.Voter)}
}

func (s *Memory) Create(_ context.Context, voter *models.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.voters {
		if strings.EqualFold(existing.Email, voter.Email) || existing.MatricNumber == voter.MatricNumber {
			return sentinel.ErrConflict
		}
	}

	cp := *voter
	s.voters[voter.ID] = &cp
	return nil
}

func (s *Memory) FindByID(_ context.Context, voterID id.VoterID) (*models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voter, ok := s.voters[voterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *voter
	return &cp, nil
}

func (s *Memory) FindByEmail(_ context.Context, email string) (*models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, voter := range s.voters {
		if strings.EqualFold(voter.Email, email) {
			cp := *voter
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) FindByVerificationToken(_ context.Context, token string) (*models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, voter := range s.voters {
		if voter.VerificationToken == token {
			cp := *voter
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) MarkVerified(_ context.Context, voterID id.VoterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voter, ok := s.voters[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	voter.Verified = true
	voter.VerificationToken = ""
	return nil
}

func (s *Memory) UpdateRole(_ context.Context, voterID id.VoterID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voter, ok := s.voters[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	voter.Role = role
	return nil
}

func (s *Memory) RecordLogin(ctx context.Context, voterID id.VoterID, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voter, ok := s.voters[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := requestcontext.Now(ctx)
	voter.LastLoginIP = ip
	voter.LastLoginAt = &now
	return nil
}

func (s *Memory) ListDescriptors(_ context.Context) (map[id.VoterID][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[id.VoterID][]float64)
	for voterID, voter := range s.voters {
		if voter.HasDescriptor() {
			out[voterID] = append([]float64(nil), voter.FaceDescriptor...)
		}
	}
	return out, nil
}

func (s *Memory) List(_ context.Context) ([]*models.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Voter, 0, len(s.voters))
	for _, voter := range s.voters {
		cp := *voter
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) Delete(_ context.Context, voterID id.VoterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.voters[voterID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.voters, voterID)
	return nil
}
