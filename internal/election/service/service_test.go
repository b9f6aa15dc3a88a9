package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"ballotbox/internal/audit"
	"ballotbox/internal/election/models"
	"ballotbox/internal/election/store"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

type noopAuditor struct{}

func (noopAuditor) Emit(context.Context, audit.Event) {}

// =============================================================================
// Election Catalog Test Suite
// =============================================================================

type ElectionServiceSuite struct {
	suite.Suite
	store   *store.Memory
	service *Service
}

func TestElectionServiceSuite(t *testing.T) {
	suite.Run(t, new(ElectionServiceSuite))
}

func (s *ElectionServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.store, noopAuditor{}, logger)
}

func (s *ElectionServiceSuite) createElection(name string) *models.Election {
	election, err := s.service.CreateElection(context.Background(), CreateElectionRequest{Name: name})
	s.Require().NoError(err)
	return election
}

func (s *ElectionServiceSuite) addCandidate(electionID id.ElectionID, name, position string) *models.Candidate {
	candidate, err := s.service.AddCandidate(context.Background(), AddCandidateRequest{
		ElectionID: electionID,
		Name:       name,
		Position:   position,
	})
	s.Require().NoError(err)
	return candidate
}

func (s *ElectionServiceSuite) TestCreateElection() {
	s.Run("rejects empty name", func() {
		_, err := s.service.CreateElection(context.Background(), CreateElectionRequest{Name: "  "})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("creates and lists", func() {
		s.createElection("Student Union 2026")

		elections, err := s.service.List(context.Background())
		s.NoError(err)
		s.Len(elections, 1)
		s.Equal("Student Union 2026", elections[0].Name)
	})
}

func (s *ElectionServiceSuite) TestAddCandidate() {
	ctx := context.Background()

	s.Run("unknown election is not found", func() {
		_, err := s.service.AddCandidate(ctx, AddCandidateRequest{
			ElectionID: id.NewElectionID(),
			Name:       "Nobody",
			Position:   "President",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("two candidates may share a position", func() {
		election := s.createElection("Shared Position")
		s.addCandidate(election.ID, "Alice", "President")
		s.addCandidate(election.ID, "Bob", "President")

		loaded, err := s.service.Get(ctx, election.ID)
		s.NoError(err)
		s.Len(loaded.Candidates, 2)
	})

	s.Run("position is required", func() {
		election := s.createElection("No Position")
		_, err := s.service.AddCandidate(ctx, AddCandidateRequest{
			ElectionID: election.ID,
			Name:       "Floater",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ElectionServiceSuite) TestResults() {
	ctx := context.Background()

	s.Run("groups candidates by position", func() {
		election := s.createElection("Grouped")
		s.addCandidate(election.ID, "Alice", "President")
		s.addCandidate(election.ID, "Bob", "President")
		s.addCandidate(election.ID, "Carol", "Secretary")

		results, err := s.service.Results(ctx, election.ID)
		s.NoError(err)
		s.Len(results, 2)
		s.Equal("President", results[0].Position)
		s.Len(results[0].Candidates, 2)
		s.Equal("Secretary", results[1].Position)
		s.Len(results[1].Candidates, 1)
	})

	s.Run("unknown election is not found", func() {
		_, err := s.service.Results(ctx, id.NewElectionID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("tallies survive the grouping", func() {
		election := s.createElection("Tallied")
		candidate := s.addCandidate(election.ID, "Alice", "President")

		for range 3 {
			s.Require().NoError(s.store.IncrementTally(ctx, candidate.ID))
		}

		results, err := s.service.Results(ctx, election.ID)
		s.NoError(err)
		s.Equal(3, results[0].Candidates[0].Tally)
	})
}
