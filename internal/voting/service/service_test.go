package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"ballotbox/internal/audit"
	ballotstore "ballotbox/internal/ballot/store"
	electionmodels "ballotbox/internal/election/models"
	electionstore "ballotbox/internal/election/store"
	identitymodels "ballotbox/internal/identity/models"
	identitystore "ballotbox/internal/identity/store"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

type captureAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *captureAuditor) Emit(_ context.Context, ev audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

// =============================================================================
// Voting Engine Test Suite
// =============================================================================
// Justification for unit tests: the one-ballot-per-position guarantee and the
// tally/ledger consistency are concurrency properties that E2E tests cannot
// exercise deterministically.

type VotingEngineSuite struct {
	suite.Suite
	voters  *identitystore.Memory
	catalog *electionstore.Memory
	ballots *ballotstore.Memory
	auditor *captureAuditor
	service *Service
}

func TestVotingEngineSuite(t *testing.T) {
	suite.Run(t, new(VotingEngineSuite))
}

func (s *VotingEngineSuite) SetupTest() {
	s.voters = identitystore.NewMemory()
	s.catalog = electionstore.NewMemory()
	s.ballots = ballotstore.NewMemory()
	s.auditor = &captureAuditor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.voters, s.catalog, s.ballots, NewMemoryTx(), s.auditor, logger)
}

func (s *VotingEngineSuite) newVoter(verified bool) *identitymodels.Voter {
	voter := &identitymodels.Voter{
		ID:           id.NewVoterID(),
		Name:         "Test Voter",
		Email:        fmt.Sprintf("%s@example.edu", id.NewVoterID()),
		MatricNumber: id.NewVoterID().String(),
		Verified:     verified,
		Role:         identitymodels.RoleVoter,
	}
	s.Require().NoError(s.voters.Create(context.Background(), voter))
	return voter
}

func (s *VotingEngineSuite) newElection() *electionmodels.Election {
	election := &electionmodels.Election{ID: id.NewElectionID(), Name: "Student Union"}
	s.Require().NoError(s.catalog.CreateElection(context.Background(), election))
	return election
}

func (s *VotingEngineSuite) newCandidate(electionID id.ElectionID, name, position string) *electionmodels.Candidate {
	candidate := &electionmodels.Candidate{
		ID:         id.NewCandidateID(),
		ElectionID: electionID,
		Name:       name,
		Position:   position,
	}
	s.Require().NoError(s.catalog.AddCandidate(context.Background(), candidate))
	return candidate
}

func (s *VotingEngineSuite) tallyOf(candidateID id.CandidateID) int {
	candidate, err := s.catalog.GetCandidate(context.Background(), candidateID)
	s.Require().NoError(err)
	return candidate.Tally
}

func (s *VotingEngineSuite) ledgerCountOf(candidateID id.CandidateID) int {
	count, err := s.ballots.CountByCandidate(context.Background(), candidateID)
	s.Require().NoError(err)
	return count
}

// =============================================================================
// CastVote Tests
// =============================================================================

func (s *VotingEngineSuite) TestCastVote() {
	ctx := context.Background()

	s.Run("records ballot and increments tally", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		candidate := s.newCandidate(election.ID, "Alice", "President")

		ballot, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.NoError(err)
		s.Equal("President", ballot.Position)
		s.Equal(1, s.tallyOf(candidate.ID))
		s.Equal(1, s.ledgerCountOf(candidate.ID))
	})

	s.Run("unverified voter is rejected", func() {
		voter := s.newVoter(false)
		election := s.newElection()
		candidate := s.newCandidate(election.ID, "Alice", "President")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnverified))
		s.Zero(s.tallyOf(candidate.ID))
	})

	s.Run("unknown candidate is not found", func() {
		voter := s.newVoter(true)
		election := s.newElection()

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, id.NewCandidateID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("candidate from another election is not found", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		other := s.newElection()
		candidate := s.newCandidate(other.ID, "Stray", "President")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Zero(s.tallyOf(candidate.ID))
	})

	s.Run("audit record omits the chosen candidate", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		candidate := s.newCandidate(election.ID, "Alice", "President")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.Require().NoError(err)

		var found bool
		for _, ev := range s.auditor.events {
			if ev.Action == audit.ActionCastVote {
				found = true
				s.NotContains(ev.NewValues, "candidate_id")
				s.Equal("President", ev.NewValues["position"])
			}
		}
		s.True(found)
	})
}

func (s *VotingEngineSuite) TestCastVoteDuplicates() {
	ctx := context.Background()

	s.Run("second vote for the same position is rejected by name", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		alice := s.newCandidate(election.ID, "Alice", "President")
		bob := s.newCandidate(election.ID, "Bob", "President")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, alice.ID)
		s.Require().NoError(err)

		// Switching candidates does not help: the constraint is on the
		// position.
		_, err = s.service.CastVote(ctx, voter.ID, election.ID, bob.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateVote))
		s.Contains(dErrors.MessageOf(err), "President")

		s.Equal(1, s.tallyOf(alice.ID))
		s.Zero(s.tallyOf(bob.ID))
	})

	s.Run("rejected duplicate leaves no partial mutation", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		candidate := s.newCandidate(election.ID, "Alice", "President")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.Require().NoError(err)
		_, err = s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
		s.Require().Error(err)

		s.Equal(1, s.tallyOf(candidate.ID))
		s.Equal(1, s.ledgerCountOf(candidate.ID))

		ballots, err := s.ballots.ListByVoter(ctx, voter.ID)
		s.Require().NoError(err)
		s.Len(ballots, 1)
	})

	s.Run("different positions in one election are independent contests", func() {
		voter := s.newVoter(true)
		election := s.newElection()
		president := s.newCandidate(election.ID, "Alice", "President")
		secretary := s.newCandidate(election.ID, "Carol", "Secretary")

		_, err := s.service.CastVote(ctx, voter.ID, election.ID, president.ID)
		s.NoError(err)
		_, err = s.service.CastVote(ctx, voter.ID, election.ID, secretary.ID)
		s.NoError(err)

		s.Equal(1, s.tallyOf(president.ID))
		s.Equal(1, s.tallyOf(secretary.ID))
	})

	s.Run("same position in another election starts fresh", func() {
		voter := s.newVoter(true)
		first := s.newElection()
		second := s.newElection()
		inFirst := s.newCandidate(first.ID, "Alice", "President")
		inSecond := s.newCandidate(second.ID, "Dana", "President")

		_, err := s.service.CastVote(ctx, voter.ID, first.ID, inFirst.ID)
		s.NoError(err)
		_, err = s.service.CastVote(ctx, voter.ID, second.ID, inSecond.ID)
		s.NoError(err)
	})
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func (s *VotingEngineSuite) TestCastVoteConcurrentDuplicates() {
	for _, attempts := range []int{2, 10, 100} {
		s.Run(fmt.Sprintf("attempts=%d", attempts), func() {
			ctx := context.Background()
			voter := s.newVoter(true)
			election := s.newElection()
			candidate := s.newCandidate(election.ID, "Alice", "President")

			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				succeeded  int
				duplicates int
			)
			for range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.service.CastVote(ctx, voter.ID, election.ID, candidate.ID)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						succeeded++
					case dErrors.HasCode(err, dErrors.CodeDuplicateVote):
						duplicates++
					default:
						s.T().Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			s.Equal(1, succeeded)
			s.Equal(attempts-1, duplicates)
			s.Equal(1, s.tallyOf(candidate.ID))
			s.Equal(1, s.ledgerCountOf(candidate.ID))
		})
	}
}

func (s *VotingEngineSuite) TestTallyMatchesLedgerUnderLoad() {
	ctx := context.Background()
	election := s.newElection()
	alice := s.newCandidate(election.ID, "Alice", "President")
	bob := s.newCandidate(election.ID, "Bob", "President")

	const voterCount = 50
	var wg sync.WaitGroup
	for i := range voterCount {
		voter := s.newVoter(true)
		choice := alice.ID
		if i%2 == 1 {
			choice = bob.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CastVote(ctx, voter.ID, election.ID, choice)
			if err != nil {
				s.T().Errorf("cast failed: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(s.ledgerCountOf(alice.ID), s.tallyOf(alice.ID))
	s.Equal(s.ledgerCountOf(bob.ID), s.tallyOf(bob.ID))
	s.Equal(voterCount, s.tallyOf(alice.ID)+s.tallyOf(bob.ID))
}

// =============================================================================
// VoterVotes Tests
// =============================================================================

func (s *VotingEngineSuite) TestVoterVotes() {
	ctx := context.Background()
	voter := s.newVoter(true)
	election := s.newElection()
	president := s.newCandidate(election.ID, "Alice", "President")
	secretary := s.newCandidate(election.ID, "Carol", "Secretary")

	_, err := s.service.CastVote(ctx, voter.ID, election.ID, president.ID)
	s.Require().NoError(err)
	_, err = s.service.CastVote(ctx, voter.ID, election.ID, secretary.ID)
	s.Require().NoError(err)

	ballots, err := s.service.VoterVotes(ctx, voter.ID)
	s.NoError(err)
	s.Len(ballots, 2)

	other := s.newVoter(true)
	ballots, err = s.service.VoterVotes(ctx, other.ID)
	s.NoError(err)
	s.Empty(ballots)
}
