// Package social implements the authentication strategy for third-party
// identity login: the request phase that sends the user to the provider,
// and the callback phase that exchanges the authorization code, obtains
// the profile (directly or via the signed Mini Program payload) and
// normalizes everything into provider-agnostic credentials.
package social

import (
	"context"
	"time"

	"github.com/weauth/weauth/internal/oauth/wechat"
)

// Variant selects how the profile is obtained after the code exchange.
type Variant string

const (
	VariantDirect  Variant = "direct"
	VariantMiniapp Variant = "miniapp"
)

// SentinelTestCode bypasses the network exchange entirely: a callback with
// this exact code marks the attempt authenticated without touching the
// provider. The rest of the pipeline is short-circuited by the caller.
const SentinelTestCode = "test_code"

// OAuthClient is the slice of the provider client this strategy needs.
// *wechat.Client satisfies it; tests plug in fakes.
type OAuthClient interface {
	AuthURL(state string, scopes []string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*wechat.Token, error)
	FetchUserInfo(ctx context.Context, token *wechat.Token) (map[string]any, error)
}

// Recorder receives the outcome of every finished attempt and the latency
// of each code exchange. internal/metrics implements it; a nil Recorder
// disables recording.
type Recorder interface {
	AttemptResult(variant, result string)
	ExchangeObserved(d time.Duration)
}

// StartRequest is the request-phase input.
type StartRequest struct {
	// Scopes requested by the caller; empty falls back to the configured
	// default scope.
	Scopes []string

	// Echo is an opaque value the caller wants round-tripped through the
	// provider redirect.
	Echo string

	// RedirectURI optionally overrides where the host sends the browser
	// after the callback completes. Carried inside the signed state.
	RedirectURI string
}

// StartResult is the request-phase output: where to send the browser.
type StartResult struct {
	RedirectURL string
	AttemptID   string
}

// StartService runs the request phase.
type StartService interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
}

// CallbackRequest carries the host-decoded callback parameters.
type CallbackRequest struct {
	Code  string
	State string

	// Provider-reported error redirect.
	ErrorCode        string
	ErrorDescription string

	// Mini Program signed payload (required together in that variant).
	Signature     string
	RawData       string
	IV            string
	EncryptedData string
}

// CallbackResult is the callback-phase output. Attempt is always present
// and has reached a terminal phase; Result is populated only on success
// (and deliberately left nil for the sentinel test code).
type CallbackResult struct {
	Attempt *AuthAttempt
	Result  *AuthResult
}

// CallbackService runs the callback phase and the cleanup phase.
type CallbackService interface {
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)

	// Cleanup discards the attempt's token and profile. Idempotent; safe
	// to call for unknown ids.
	Cleanup(ctx context.Context, attemptID string)
}
