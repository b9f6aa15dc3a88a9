// Package service implements the Identity Store operations: registration with
// duplicate-identity checks (including biometric), single-use email
// verification, login, and gated role elevation.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"ballotbox/internal/audit"
	"ballotbox/internal/identity/biometric"
	"ballotbox/internal/identity/models"
	"ballotbox/internal/identity/store"
	"ballotbox/internal/mailer"
	"ballotbox/internal/platform/metrics"
	id "ballotbox/pkg/domain"
	dErrors "ballotbox/pkg/domain-errors"
	"ballotbox/pkg/platform/sentinel"
	"ballotbox/pkg/requestcontext"
)

// TokenIssuer signs login tokens. Implemented by internal/token.
type TokenIssuer interface {
	Issue(voterID id.VoterID, email, role string) (string, error)
}

// Service orchestrates identity operations over the voter store.
type Service struct {
	voters  store.VoterStore
	mail    mailer.Sender
	tokens  TokenIssuer
	matcher biometric.Matcher
	auditor audit.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger

	allowedEmailDomain string
	biometricThreshold float64
	frontendURL        string
}

type Option func(*Service)

func WithAllowedEmailDomain(domain string) Option {
	return func(s *Service) { s.allowedEmailDomain = domain }
}

func WithBiometricThreshold(threshold float64) Option {
	return func(s *Service) { s.biometricThreshold = threshold }
}

func WithFrontendURL(url string) Option {
	return func(s *Service) { s.frontendURL = url }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	voters store.VoterStore,
	mail mailer.Sender,
	tokens TokenIssuer,
	auditor audit.Recorder,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		voters:             voters,
		mail:               mail,
		tokens:             tokens,
		matcher:            biometric.Euclidean{},
		auditor:            auditor,
		logger:             logger,
		biometricThreshold: biometric.DefaultThreshold,
		frontendURL:        "http://localhost:3000",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest carries the validated registration payload.
type RegisterRequest struct {
	Name           string
	Email          string
	MatricNumber   string
	Password       string
	FaceDescriptor []float64
}

// Register creates an unverified voter after the duplicate-identity checks
// pass and sends the verification mail best-effort.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Voter, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.MatricNumber = strings.TrimSpace(req.MatricNumber)

	if req.Name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if req.MatricNumber == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "matric number is required")
	}
	if len(req.Password) < 6 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "password must be at least 6 characters")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email format")
	}
	if s.allowedEmailDomain != "" && !strings.HasSuffix(req.Email, s.allowedEmailDomain) {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "only %s emails are allowed", s.allowedEmailDomain)
	}

	// Biometric duplicate check runs before the insert: a new face that is
	// too close to an enrolled one is a duplicate-person attempt regardless
	// of the stated email or matric number.
	if len(req.FaceDescriptor) > 0 {
		if err := s.rejectEnrolledFace(ctx, req.FaceDescriptor); err != nil {
			return nil, err
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	verificationToken, err := newVerificationToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
	}

	voter := &models.Voter{
		ID:                id.NewVoterID(),
		Name:              req.Name,
		Email:             req.Email,
		MatricNumber:      req.MatricNumber,
		PasswordHash:      hash,
		Verified:          false,
		VerificationToken: verificationToken,
		Role:              models.RoleVoter,
		FaceDescriptor:    req.FaceDescriptor,
		CreatedAt:         requestcontext.Now(ctx),
	}

	if err := s.voters.Create(ctx, voter); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateIdentity, "a voter with this email or matric number already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create voter")
	}

	if s.metrics != nil {
		s.metrics.VotersRegistered.Inc()
	}

	s.auditor.Emit(ctx, audit.Event{
		ActorID:    audit.Actor(voter.ID),
		Action:     audit.ActionVoterRegistered,
		EntityType: "Voter",
		EntityID:   voter.ID.String(),
		NewValues:  map[string]any{"email": voter.Email, "matric_number": voter.MatricNumber},
	})

	s.sendVerificationMail(ctx, voter)

	return voter, nil
}

// rejectEnrolledFace scans all enrolled descriptors and rejects when the
// closest one is under the threshold.
func (s *Service) rejectEnrolledFace(ctx context.Context, descriptor []float64) error {
	enrolled, err := s.voters.ListDescriptors(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan enrolled descriptors")
	}
	for _, existing := range enrolled {
		if s.matcher.Distance(descriptor, existing) < s.biometricThreshold {
			return dErrors.New(dErrors.CodeDuplicateIdentity, "a voter with this face is already registered")
		}
	}
	return nil
}

// sendVerificationMail delivers the verification link. Delivery failure is
// logged, never returned: the registration already committed.
func (s *Service) sendVerificationMail(ctx context.Context, voter *models.Voter) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, voter.VerificationToken)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Click <a href=%q>here</a> to verify your email address.</p>",
		voter.Name, link,
	)
	if err := s.mail.Send(ctx, voter.Email, "Verify Your Email", body); err != nil {
		s.logger.ErrorContext(ctx, "verification mail delivery failed",
			"error", err,
			"voter_id", voter.ID.String(),
		)
	}
}

// VerifyEmail redeems a single-use verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.Voter, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verification token is required")
	}

	voter, err := s.voters.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid or expired token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up token")
	}

	if err := s.voters.MarkVerified(ctx, voter.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark voter verified")
	}
	voter.Verified = true
	voter.VerificationToken = ""

	s.auditor.Emit(ctx, audit.Event{
		ActorID:    audit.Actor(voter.ID),
		Action:     audit.ActionEmailVerified,
		EntityType: "Voter",
		EntityID:   voter.ID.String(),
	})

	return voter, nil
}

// LoginResult is returned by both credential and biometric login.
type LoginResult struct {
	Token string
	Voter *models.Voter
}

// Login authenticates by email and password. Only verified voters may log in.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "email and password are required")
	}

	voter, err := s.voters.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up voter")
	}

	if !voter.Verified {
		return nil, dErrors.New(dErrors.CodeUnverified, "email not verified")
	}

	if !VerifyPassword(password, voter.PasswordHash) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	return s.completeLogin(ctx, voter)
}

// BiometricLogin returns the single voter whose enrolled descriptor is the
// closest match under the threshold, or no-match.
func (s *Service) BiometricLogin(ctx context.Context, descriptor []float64) (*LoginResult, error) {
	if len(descriptor) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "face descriptor is required")
	}

	enrolled, err := s.voters.ListDescriptors(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan enrolled descriptors")
	}

	var (
		bestID   id.VoterID
		bestDist = s.biometricThreshold
		found    bool
	)
	for voterID, existing := range enrolled {
		if dist := s.matcher.Distance(descriptor, existing); dist < bestDist {
			bestID, bestDist, found = voterID, dist, true
		}
	}
	if !found {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no matching voter")
	}

	voter, err := s.voters.FindByID(ctx, bestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load matched voter")
	}
	if !voter.Verified {
		return nil, dErrors.New(dErrors.CodeUnverified, "email not verified")
	}

	return s.completeLogin(ctx, voter)
}

func (s *Service) completeLogin(ctx context.Context, voter *models.Voter) (*LoginResult, error) {
	if err := s.voters.RecordLogin(ctx, voter.ID, requestcontext.ClientIP(ctx)); err != nil {
		// Login bookkeeping is not worth failing the login over.
		s.logger.WarnContext(ctx, "failed to record login",
			"error", err,
			"voter_id", voter.ID.String(),
		)
	}

	signed, err := s.tokens.Issue(voter.ID, voter.Email, string(voter.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.auditor.Emit(ctx, audit.Event{
		ActorID:    audit.Actor(voter.ID),
		Action:     audit.ActionLogin,
		EntityType: "Voter",
		EntityID:   voter.ID.String(),
	})

	return &LoginResult{Token: signed, Voter: voter}, nil
}

// SetRole elevates or demotes a voter. The transport layer restricts this to
// super admins; the mutation itself is audited with old and new values.
func (s *Service) SetRole(ctx context.Context, voterID id.VoterID, role models.Role) (*models.Voter, error) {
	if voterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "voter ID is required")
	}
	if !role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid role %q", role)
	}

	voter, err := s.voters.FindByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up voter")
	}

	oldRole := voter.Role
	if err := s.voters.UpdateRole(ctx, voterID, role); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update role")
	}
	voter.Role = role

	s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionRoleUpdated,
		EntityType: "Voter",
		EntityID:   voterID.String(),
		OldValues:  map[string]any{"role": string(oldRole)},
		NewValues:  map[string]any{"role": string(role)},
	})

	return voter, nil
}

// GetByID loads a single voter.
func (s *Service) GetByID(ctx context.Context, voterID id.VoterID) (*models.Voter, error) {
	voter, err := s.voters.FindByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voter not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up voter")
	}
	return voter, nil
}

// List returns all voters for the admin listing.
func (s *Service) List(ctx context.Context) ([]*models.Voter, error) {
	voters, err := s.voters.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list voters")
	}
	return voters, nil
}

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
