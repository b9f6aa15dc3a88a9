package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"ballotbox/internal/audit"
	"ballotbox/internal/identity/models"
	"ballotbox/internal/identity/store"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
)

// =============================================================================
// Test Doubles
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, recipient, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, recipient)
	return nil
}

type staticIssuer struct{}

func (staticIssuer) Issue(id.VoterID, string, string) (string, error) {
	return "signed-token", nil
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAuditor) Emit(_ context.Context, ev audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, ev := range a.events {
		out = append(out, ev.Action)
	}
	return out
}

// =============================================================================
// Identity Service Test Suite
// =============================================================================

type IdentityServiceSuite struct {
	suite.Suite
	voters  *store.Memory
	mailer  *recordingMailer
	auditor *recordingAuditor
	service *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.voters = store.NewMemory()
	s.mailer = &recordingMailer{}
	s.auditor = &recordingAuditor{}
	s.service = New(s.voters, s.mailer, staticIssuer{}, s.auditor, discardLogger())
}

func (s *IdentityServiceSuite) register(email, matric string, descriptor []float64) *models.Voter {
	voter, err := s.service.Register(context.Background(), RegisterRequest{
		Name:           "Ada Lovelace",
		Email:          email,
		MatricNumber:   matric,
		Password:       "hunter22",
		FaceDescriptor: descriptor,
	})
	s.Require().NoError(err)
	return voter
}

// =============================================================================
// Register Tests
// =============================================================================

func (s *IdentityServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("creates unverified voter and sends mail", func() {
		voter := s.register("ada@example.edu", "MAT-001", nil)

		s.False(voter.Verified)
		s.NotEmpty(voter.VerificationToken)
		s.Equal(models.RoleVoter, voter.Role)
		s.NotEqual("hunter22", voter.PasswordHash)
		s.Equal([]string{"ada@example.edu"}, s.mailer.sent)
		s.Contains(s.auditor.actions(), audit.ActionVoterRegistered)
	})

	s.Run("normalizes email casing", func() {
		voter := s.register("Grace@Example.EDU", "MAT-002", nil)
		s.Equal("grace@example.edu", voter.Email)
	})

	s.Run("duplicate email is rejected", func() {
		s.register("dup@example.edu", "MAT-010", nil)

		_, err := s.service.Register(ctx, RegisterRequest{
			Name:         "Impostor",
			Email:        "dup@example.edu",
			MatricNumber: "MAT-011",
			Password:     "hunter22",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
	})

	s.Run("duplicate matric number is rejected", func() {
		s.register("first@example.edu", "MAT-020", nil)

		_, err := s.service.Register(ctx, RegisterRequest{
			Name:         "Impostor",
			Email:        "second@example.edu",
			MatricNumber: "MAT-020",
			Password:     "hunter22",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
	})

	s.Run("face too close to an enrolled one is rejected", func() {
		s.register("face@example.edu", "MAT-030", []float64{0.1, 0.2, 0.3})

		_, err := s.service.Register(ctx, RegisterRequest{
			Name:           "Twin",
			Email:          "twin@example.edu",
			MatricNumber:   "MAT-031",
			Password:       "hunter22",
			FaceDescriptor: []float64{0.1, 0.2, 0.31},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
	})

	s.Run("distant face is accepted", func() {
		s.register("near@example.edu", "MAT-040", []float64{0.0, 0.0, 0.0})

		_, err := s.service.Register(ctx, RegisterRequest{
			Name:           "Stranger",
			Email:          "far@example.edu",
			MatricNumber:   "MAT-041",
			Password:       "hunter22",
			FaceDescriptor: []float64{5.0, 5.0, 5.0},
		})
		s.NoError(err)
	})

	s.Run("invalid email is rejected", func() {
		_, err := s.service.Register(ctx, RegisterRequest{
			Name:         "No At Sign",
			Email:        "not-an-email",
			MatricNumber: "MAT-050",
			Password:     "hunter22",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("short password is rejected", func() {
		_, err := s.service.Register(ctx, RegisterRequest{
			Name:         "Short",
			Email:        "short@example.edu",
			MatricNumber: "MAT-060",
			Password:     "abc",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("mail delivery failure does not fail registration", func() {
		s.mailer.err = context.DeadlineExceeded

		voter, err := s.service.Register(ctx, RegisterRequest{
			Name:         "Patient",
			Email:        "patient@example.edu",
			MatricNumber: "MAT-070",
			Password:     "hunter22",
		})
		s.NoError(err)
		s.NotNil(voter)
		s.mailer.err = nil
	})
}

func (s *IdentityServiceSuite) TestRegisterDomainRestriction() {
	svc := New(s.voters, s.mailer, staticIssuer{}, s.auditor, discardLogger(),
		WithAllowedEmailDomain("@school.edu"))

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:         "Outsider",
		Email:        "outsider@gmail.com",
		MatricNumber: "MAT-080",
		Password:     "hunter22",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = svc.Register(context.Background(), RegisterRequest{
		Name:         "Insider",
		Email:        "insider@school.edu",
		MatricNumber: "MAT-081",
		Password:     "hunter22",
	})
	s.NoError(err)
}

// =============================================================================
// VerifyEmail Tests
// =============================================================================

func (s *IdentityServiceSuite) TestVerifyEmail() {
	ctx := context.Background()

	s.Run("redeems the token exactly once", func() {
		voter := s.register("verify@example.edu", "MAT-100", nil)

		verified, err := s.service.VerifyEmail(ctx, voter.VerificationToken)
		s.NoError(err)
		s.True(verified.Verified)
		s.Empty(verified.VerificationToken)

		// Second redemption of the same token must fail.
		_, err = s.service.VerifyEmail(ctx, voter.VerificationToken)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("unknown token is invalid", func() {
		_, err := s.service.VerifyEmail(ctx, "deadbeef")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("empty token is a bad request", func() {
		_, err := s.service.VerifyEmail(ctx, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

// =============================================================================
// Login Tests
// =============================================================================

func (s *IdentityServiceSuite) TestLogin() {
	ctx := context.Background()

	s.Run("unverified voter cannot log in", func() {
		s.register("pending@example.edu", "MAT-200", nil)

		_, err := s.service.Login(ctx, "pending@example.edu", "hunter22")
		s.True(dErrors.HasCode(err, dErrors.CodeUnverified))
	})

	s.Run("verified voter with correct password gets a token", func() {
		voter := s.register("ready@example.edu", "MAT-201", nil)
		_, err := s.service.VerifyEmail(ctx, voter.VerificationToken)
		s.Require().NoError(err)

		result, err := s.service.Login(ctx, "ready@example.edu", "hunter22")
		s.NoError(err)
		s.Equal("signed-token", result.Token)
		s.Equal(voter.ID, result.Voter.ID)
		s.Contains(s.auditor.actions(), audit.ActionLogin)
	})

	s.Run("wrong password is unauthorized", func() {
		voter := s.register("wrongpw@example.edu", "MAT-202", nil)
		_, err := s.service.VerifyEmail(ctx, voter.VerificationToken)
		s.Require().NoError(err)

		_, err = s.service.Login(ctx, "wrongpw@example.edu", "not-the-password")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown email is unauthorized, not not-found", func() {
		_, err := s.service.Login(ctx, "ghost@example.edu", "hunter22")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// BiometricLogin Tests
// =============================================================================

func (s *IdentityServiceSuite) TestBiometricLogin() {
	ctx := context.Background()

	enroll := func(email, matric string, descriptor []float64) *models.Voter {
		voter := s.register(email, matric, descriptor)
		_, err := s.service.VerifyEmail(ctx, voter.VerificationToken)
		s.Require().NoError(err)
		return voter
	}

	s.Run("closest enrolled match under threshold wins", func() {
		near := enroll("near-bio@example.edu", "MAT-300", []float64{1.0, 1.0, 1.0})
		enroll("far-bio@example.edu", "MAT-301", []float64{9.0, 9.0, 9.0})

		result, err := s.service.BiometricLogin(ctx, []float64{1.0, 1.0, 1.1})
		s.NoError(err)
		s.Equal(near.ID, result.Voter.ID)
	})

	s.Run("no descriptor under threshold is unauthorized", func() {
		enroll("lonely@example.edu", "MAT-310", []float64{0.0, 0.0, 0.0})

		_, err := s.service.BiometricLogin(ctx, []float64{100.0, 100.0, 100.0})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty descriptor is a bad request", func() {
		_, err := s.service.BiometricLogin(ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("matched but unverified voter is rejected", func() {
		s.register("bio-pending@example.edu", "MAT-320", []float64{50.0, 50.0, 50.0})

		_, err := s.service.BiometricLogin(ctx, []float64{50.0, 50.0, 50.0})
		s.True(dErrors.HasCode(err, dErrors.CodeUnverified))
	})
}

// =============================================================================
// SetRole Tests
// =============================================================================

func (s *IdentityServiceSuite) TestSetRole() {
	ctx := context.Background()

	s.Run("elevation is audited with old and new values", func() {
		voter := s.register("future-admin@example.edu", "MAT-400", nil)

		updated, err := s.service.SetRole(ctx, voter.ID, models.RoleAdmin)
		s.NoError(err)
		s.Equal(models.RoleAdmin, updated.Role)

		var found bool
		for _, ev := range s.auditor.events {
			if ev.Action == audit.ActionRoleUpdated {
				found = true
				s.Equal(map[string]any{"role": "voter"}, ev.OldValues)
				s.Equal(map[string]any{"role": "admin"}, ev.NewValues)
			}
		}
		s.True(found)
	})

	s.Run("unknown voter is not found", func() {
		_, err := s.service.SetRole(ctx, id.NewVoterID(), models.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid role is a bad request", func() {
		voter := s.register("roleless@example.edu", "MAT-410", nil)
		_, err := s.service.SetRole(ctx, voter.ID, models.Role("emperor"))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
