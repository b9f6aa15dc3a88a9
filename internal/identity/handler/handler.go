// Package handler exposes the auth endpoints: registration, email
// verification, and the two login flows.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ballotbox/internal/http/shared"
	"ballotbox/internal/identity/models"
	"ballotbox/internal/identity/service"
	dErrors "ballotbox/pkg/domain-errors"
)

// Service defines the identity operations the handler needs.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*models.Voter, error)
	VerifyEmail(ctx context.Context, token string) (*models.Voter, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	BiometricLogin(ctx context.Context, descriptor []float64) (*service.LoginResult, error)
}

type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Get("/auth/verify-email", h.handleVerifyEmail)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/biometric-login", h.handleBiometricLogin)
}

type registerRequest struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	MatricNumber   string    `json:"matricNumber"`
	Password       string    `json:"password"`
	FaceDescriptor []float64 `json:"faceDescriptor,omitempty"`
}

type voterResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MatricNumber string    `json:"matricNumber"`
	Verified     bool      `json:"verified"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toVoterResponse(voter *models.Voter) voterResponse {
	return voterResponse{
		ID:           voter.ID.String(),
		Name:         voter.Name,
		Email:        voter.Email,
		MatricNumber: voter.MatricNumber,
		Verified:     voter.Verified,
		Role:         string(voter.Role),
		CreatedAt:    voter.CreatedAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	voter, err := h.identity.Register(ctx, service.RegisterRequest{
		Name:           req.Name,
		Email:          req.Email,
		MatricNumber:   req.MatricNumber,
		Password:       req.Password,
		FaceDescriptor: req.FaceDescriptor,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "registration failed", "error", err)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Please verify your email.",
		"voter":   toVoterResponse(voter),
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	voter, err := h.identity.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully.",
		"voter":   toVoterResponse(voter),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string        `json:"token"`
	Voter voterResponse `json:"voter"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		Voter: toVoterResponse(result.Voter),
	})
}

type biometricLoginRequest struct {
	FaceDescriptor []float64 `json:"faceDescriptor"`
}

func (h *Handler) handleBiometricLogin(w http.ResponseWriter, r *http.Request) {
	var req biometricLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.identity.BiometricLogin(r.Context(), req.FaceDescriptor)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		Voter: toVoterResponse(result.Voter),
	})
}
