package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotbox/internal/audit"
	ballotstore "ballotbox/internal/ballot/store"
	"ballotbox/internal/captcha"
	electionmodels "ballotbox/internal/election/models"
	electionservice "ballotbox/internal/election/service"
	electionstore "ballotbox/internal/election/store"
	identitymodels "ballotbox/internal/identity/models"
	identitystore "ballotbox/internal/identity/store"
	votingservice "ballotbox/internal/voting/service"
	id "ballotbox/pkg/domain"
	"ballotbox/pkg/testutil"
)

type discardRecorder struct{}

func (discardRecorder) Emit(context.Context, audit.Event) {}

type fixture struct {
	router    chi.Router
	voterID   id.VoterID
	election  id.ElectionID
	candidate id.CandidateID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	voters := identitystore.NewMemory()
	catalog := electionstore.NewMemory()
	ballots := ballotstore.NewMemory()

	voter := &identitymodels.Voter{
		ID:           id.NewVoterID(),
		Name:         "Handler Voter",
		Email:        "handler@example.edu",
		MatricNumber: "MAT-700",
		Verified:     true,
		Role:         identitymodels.RoleVoter,
	}
	require.NoError(t, voters.Create(ctx, voter))

	election := &electionmodels.Election{ID: id.NewElectionID(), Name: "Handler Test"}
	require.NoError(t, catalog.CreateElection(ctx, election))
	candidate := &electionmodels.Candidate{
		ID:         id.NewCandidateID(),
		ElectionID: election.ID,
		Name:       "Alice",
		Position:   "President",
	}
	require.NoError(t, catalog.AddCandidate(ctx, candidate))

	auditor := discardRecorder{}
	voting := votingservice.New(voters, catalog, ballots, votingservice.NewMemoryTx(), auditor, logger)
	elections := electionservice.New(catalog, auditor, logger)

	h := New(voting, elections, captcha.Always{}, logger)
	router := chi.NewRouter()
	h.RegisterAuthed(router)
	h.RegisterPublic(router)

	return &fixture{
		router:    router,
		voterID:   voter.ID,
		election:  election.ID,
		candidate: candidate.ID,
	}
}

func TestHandleCastVote(t *testing.T) {
	t.Run("records the ballot", func(t *testing.T) {
		f := newFixture(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/vote", map[string]any{
			"electionId":   f.election.String(),
			"candidateId":  f.candidate.String(),
			"captchaToken": "token",
		})
		req = testutil.WithVoter(req, f.voterID, string(identitymodels.RoleVoter))

		rec := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("missing captcha token fails the challenge", func(t *testing.T) {
		f := newFixture(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/vote", map[string]any{
			"electionId":  f.election.String(),
			"candidateId": f.candidate.String(),
		})
		req = testutil.WithVoter(req, f.voterID, string(identitymodels.RoleVoter))

		rec := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		testutil.AssertErrorCode(t, rec, "challenge_failed")
	})

	t.Run("malformed candidate id is a bad request", func(t *testing.T) {
		f := newFixture(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/vote", map[string]any{
			"electionId":   f.election.String(),
			"candidateId":  "not-a-uuid",
			"captchaToken": "token",
		})
		req = testutil.WithVoter(req, f.voterID, string(identitymodels.RoleVoter))

		rec := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		testutil.AssertErrorCode(t, rec, "bad_request")
	})

	t.Run("duplicate cast reports the position", func(t *testing.T) {
		f := newFixture(t)
		body := map[string]any{
			"electionId":   f.election.String(),
			"candidateId":  f.candidate.String(),
			"captchaToken": "token",
		}

		req := testutil.WithVoter(testutil.NewJSONRequest(t, http.MethodPost, "/vote", body), f.voterID, string(identitymodels.RoleVoter))
		require.Equal(t, http.StatusCreated, testutil.DoRequest(f.router, req).Code)

		req = testutil.WithVoter(testutil.NewJSONRequest(t, http.MethodPost, "/vote", body), f.voterID, string(identitymodels.RoleVoter))
		rec := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		testutil.AssertErrorCode(t, rec, "duplicate_vote")
	})
}

func TestHandleResults(t *testing.T) {
	f := newFixture(t)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/vote/results?electionId="+f.election.String(), nil)
	rec := testutil.DoRequest(f.router, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var results []struct {
		Position string `json:"position"`
	}
	testutil.DecodeJSON(t, rec, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "President", results[0].Position)
}
