package social

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/weauth/weauth/internal/observability/logger"
)

// ErrStartAuthURLFailed reporta que no se pudo construir la URL de
// autorización (firma de state o construcción de URL).
var ErrStartAuthURLFailed = errors.New("failed to build authorization url")

// StartDeps contains dependencies for the start service.
type StartDeps struct {
	OAuth        OAuthClient
	Signer       StateSigner
	Attempts     *AttemptStore
	Variant      Variant
	DefaultScope []string
}

type startService struct {
	oauth        OAuthClient
	signer       StateSigner
	attempts     *AttemptStore
	variant      Variant
	defaultScope []string
}

// NewStartService creates a new StartService.
func NewStartService(d StartDeps) StartService {
	return &startService{
		oauth:        d.OAuth,
		signer:       d.Signer,
		attempts:     d.Attempts,
		variant:      d.Variant,
		defaultScope: d.DefaultScope,
	}
}

// Start runs the request phase: pick scopes, sign the round-trip state,
// build the authorization URL and issue the attempt.
func (s *startService) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.start"))

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = s.defaultScope
	}

	attempt := NewAttempt(s.variant)
	attempt.Scopes = scopes
	attempt.Echo = req.Echo

	nonce, err := generateNonce(16)
	if err != nil {
		log.Error("failed to generate nonce", logger.Err(err))
		return nil, ErrStartAuthURLFailed
	}

	state, err := s.signer.SignState(StateClaims{
		AttemptID:   attempt.ID,
		Variant:     s.variant,
		Nonce:       nonce,
		Echo:        req.Echo,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		log.Error("failed to sign state", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrStartAuthURLFailed, err)
	}

	authURL, err := s.oauth.AuthURL(state, scopes)
	if err != nil {
		log.Error("failed to build auth URL", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrStartAuthURLFailed, err)
	}

	attempt.RedirectURL = authURL
	attempt.Phase = PhaseRequestIssued
	s.attempts.Save(attempt)

	log.Info("authentication started",
		logger.AttemptID(attempt.ID),
		logger.Variant(string(s.variant)),
		logger.Int("scopes", len(scopes)),
	)

	return &StartResult{RedirectURL: authURL, AttemptID: attempt.ID}, nil
}

// generateNonce generates a random base64url-encoded string.
func generateNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
