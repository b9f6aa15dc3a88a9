// Package captcha verifies challenge tokens before vote casting reaches the
// voting engine. A failed challenge short-circuits with no state touched.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ballotbox/internal/platform/config"
)

// Verifier checks a challenge token supplied by the client.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// Recaptcha verifies tokens against the Google reCAPTCHA siteverify endpoint.
type Recaptcha struct {
	cfg    config.CaptchaConfig
	client *http.Client
}

func NewRecaptcha(cfg config.CaptchaConfig) *Recaptcha {
	return &Recaptcha{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type siteverifyResponse struct {
	Success bool `json:"success"`
}

func (r *Recaptcha) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", r.cfg.SecretKey)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify request: %w", err)
	}
	defer resp.Body.Close()

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}

	return result.Success, nil
}

// Always accepts any non-empty token. Used when no secret key is configured
// and in tests.
type Always struct{}

func (Always) Verify(_ context.Context, token string) (bool, error) {
	return token != "", nil
}
