package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weauth/weauth/internal/oauth/wechat"
	"github.com/weauth/weauth/internal/observability/logger"
	"github.com/weauth/weauth/internal/security/wxcrypt"
	"go.uber.org/zap"
)

// CallbackDeps contains dependencies for the callback service.
type CallbackDeps struct {
	OAuth    OAuthClient
	Signer   StateSigner
	Attempts *AttemptStore
	Recorder Recorder
	Variant  Variant
	Provider string // provider slug for AuthResult, e.g. "wechat"
	UIDField string // "openid" or "unionid"
}

type callbackService struct {
	oauth    OAuthClient
	signer   StateSigner
	attempts *AttemptStore
	recorder Recorder
	variant  Variant
	provider string
	uidField string
}

// NewCallbackService creates a new CallbackService.
func NewCallbackService(d CallbackDeps) CallbackService {
	return &callbackService{
		oauth:    d.OAuth,
		signer:   d.Signer,
		attempts: d.Attempts,
		recorder: d.Recorder,
		variant:  d.Variant,
		provider: d.Provider,
		uidField: d.UIDField,
	}
}

// Callback runs the callback phase. The returned CallbackResult always
// carries the attempt in a terminal phase, even when an error is returned;
// Result is set only on a real (non-sentinel) success.
func (s *callbackService) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.callback"))

	attempt, err := s.resumeAttempt(req.State)
	if err != nil {
		attempt.Fail("invalid_state", "State validation failed")
		return s.finishFailed(log, attempt, err)
	}
	attempt.Phase = PhaseCallbackReceived
	s.attempts.Save(attempt)

	// Provider sent the user back with an error instead of a code.
	if req.ErrorCode != "" {
		perr := &wechat.ProviderError{Code: req.ErrorCode, Description: req.ErrorDescription}
		attempt.Fail(perr.Code, perr.Description)
		return s.finishFailed(log, attempt, perr)
	}

	// Short-circuit for the fixed test code: authenticated, no network,
	// no normalized result.
	if req.Code == SentinelTestCode {
		attempt.Phase = PhaseAuthenticated
		s.attempts.Save(attempt)
		s.record("authenticated")
		log.Info("sentinel code accepted", logger.AttemptID(attempt.ID))
		return &CallbackResult{Attempt: attempt}, nil
	}

	if req.Code == "" {
		attempt.Fail("missing_code", "No code received")
		return s.finishFailed(log, attempt, wechat.ErrMissingCode)
	}

	exchangeStart := time.Now()
	token, err := s.oauth.ExchangeCode(ctx, req.Code)
	if s.recorder != nil {
		s.recorder.ExchangeObserved(time.Since(exchangeStart))
	}
	if err != nil {
		attempt.Fail(classifyExchangeError(err))
		return s.finishFailed(log, attempt, err)
	}

	// The provider sometimes answers 200 with an error body that parses
	// as a token without an access_token. Surface it as a provider error.
	if token.AccessToken == "" {
		perr := &wechat.ProviderError{
			Code:        token.Extra("error"),
			Description: token.Extra("error_description"),
		}
		if perr.Code == "" {
			perr.Code = "invalid_token_response"
			perr.Description = "Token response carried no access token"
		}
		attempt.Fail(perr.Code, perr.Description)
		return s.finishFailed(log, attempt, perr)
	}
	attempt.Token = token

	var profile map[string]any
	switch s.variant {
	case VariantMiniapp:
		profile, err = s.miniappProfile(token, req)
	default:
		profile, err = s.oauth.FetchUserInfo(ctx, token)
	}
	if err != nil {
		attempt.Fail(classifyProfileError(err))
		return s.finishFailed(log, attempt, err)
	}
	attempt.Profile = profile

	uid := ResolveUID(profile, s.uidField)
	if uid == "" {
		derr := &wechat.DataInvalidError{Reason: fmt.Sprintf("profile is missing the %q identifier", s.uidField)}
		attempt.Fail("data_invalid", derr.Reason)
		return s.finishFailed(log, attempt, derr)
	}

	result := &AuthResult{
		Provider:    s.provider,
		UID:         uid,
		Credentials: BuildCredentials(token),
		Info:        BuildProfile(profile, s.variant),
		Raw:         BuildRawInfo(token, profile),
	}

	attempt.Phase = PhaseAuthenticated
	s.attempts.Save(attempt)
	s.record("authenticated")
	log.Info("authentication completed",
		logger.AttemptID(attempt.ID),
		logger.Variant(string(s.variant)),
	)
	return &CallbackResult{Attempt: attempt, Result: result}, nil
}

// Cleanup discards the attempt's token and profile. Unknown ids and
// repeated calls are no-ops.
func (s *callbackService) Cleanup(ctx context.Context, attemptID string) {
	attempt, ok := s.attempts.Load(attemptID)
	if !ok {
		return
	}
	attempt.Cleanup()
	s.attempts.Save(attempt)
	logger.From(ctx).Debug("attempt cleaned up",
		logger.Component("social.callback"),
		logger.AttemptID(attemptID),
	)
}

// resumeAttempt validates the signed state and loads the attempt it names.
// A valid state whose attempt expired out of the store gets a fresh record
// under the same id, so the cycle still finishes in a terminal phase.
func (s *callbackService) resumeAttempt(state string) (*AuthAttempt, error) {
	claims, err := s.signer.ParseState(state)
	if err != nil {
		return NewAttempt(s.variant), err
	}
	if attempt, ok := s.attempts.Load(claims.AttemptID); ok {
		return attempt, nil
	}
	attempt := NewAttempt(s.variant)
	attempt.ID = claims.AttemptID
	attempt.Echo = claims.Echo
	return attempt, nil
}

// miniappProfile verifies the signed payload and decrypts the profile for
// the Mini Program variant. Token extras are merged under the decrypted
// payload so uid resolution can fall back to open_id from the exchange.
func (s *callbackService) miniappProfile(token *wechat.Token, req CallbackRequest) (map[string]any, error) {
	sessionKey := token.Extra("session_key")
	if sessionKey == "" {
		return nil, &wechat.DataInvalidError{Reason: "token response carried no session_key"}
	}
	if err := wxcrypt.VerifySignature(req.RawData, sessionKey, req.Signature); err != nil {
		return nil, err
	}
	payload, err := wxcrypt.DecryptUserData(sessionKey, req.IV, req.EncryptedData)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(token.Raw)+len(payload))
	for k, v := range token.Raw {
		merged[k] = v
	}
	for k, v := range payload {
		merged[k] = v
	}
	return merged, nil
}

func (s *callbackService) finishFailed(log *zap.Logger, attempt *AuthAttempt, cause error) (*CallbackResult, error) {
	s.attempts.Save(attempt)
	s.record("failed")
	code := ""
	if n := len(attempt.Errors); n > 0 {
		code = attempt.Errors[n-1].Code
	}
	log.Warn("authentication failed",
		logger.AttemptID(attempt.ID),
		logger.Variant(string(s.variant)),
		logger.String("reason", code),
		logger.Err(cause),
	)
	return &CallbackResult{Attempt: attempt}, cause
}

func (s *callbackService) record(result string) {
	if s.recorder != nil {
		s.recorder.AttemptResult(string(s.variant), result)
	}
}

// classifyExchangeError maps a code-exchange failure onto an attempt error.
func classifyExchangeError(err error) (code, description string) {
	var perr *wechat.ProviderError
	if errors.As(err, &perr) {
		return perr.Code, perr.Description
	}
	var terr *wechat.TransportError
	if errors.As(err, &terr) {
		return "transport_error", terr.Error()
	}
	if errors.Is(err, wechat.ErrMissingCode) {
		return "missing_code", "No code received"
	}
	return "exchange_failed", err.Error()
}

// classifyProfileError maps a profile-acquisition failure onto an attempt
// error, covering both the direct fetch and the Mini Program payload path.
func classifyProfileError(err error) (code, description string) {
	if errors.Is(err, wxcrypt.ErrSignatureMismatch) {
		return "signature_mismatch", "Signed payload verification failed"
	}
	var cerr *wxcrypt.DataCorruptedError
	if errors.As(err, &cerr) {
		return "data_corrupted", cerr.Error()
	}
	var derr *wechat.DataInvalidError
	if errors.As(err, &derr) {
		return "data_invalid", derr.Reason
	}
	var terr *wechat.TransportError
	if errors.As(err, &terr) {
		return "transport_error", terr.Error()
	}
	var perr *wechat.ProviderError
	if errors.As(err, &perr) {
		return perr.Code, perr.Description
	}
	return "profile_failed", err.Error()
}
