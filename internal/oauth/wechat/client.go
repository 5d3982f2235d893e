// Package wechat implements the outbound OAuth 2.0 client for WeChat.
// WeChat names its OAuth parameters app_id / app_secret rather than
// client_id / client_secret, and the Mini Program variant returns a
// session_key next to the token instead of exposing a user-info endpoint.
package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authEndpoint     = "https://open.weixin.qq.com/connect/oauth2/authorize"
	tokenEndpoint    = "https://api.weixin.qq.com/sns/oauth2/access_token"
	userInfoEndpoint = "https://api.weixin.qq.com/sns/userinfo"
)

// Config carries the provider settings the client needs. Endpoints default
// to the production WeChat URLs and exist as fields for tests.
type Config struct {
	AppID     string
	AppSecret string

	// RedirectURL is sent as redirect_uri only when SendRedirectURI is set;
	// otherwise the provider falls back to the pre-registered URI.
	RedirectURL     string
	SendRedirectURI bool

	AuthorizeEndpoint string
	TokenEndpoint     string
	UserInfoEndpoint  string
}

// Client is the WeChat OAuth 2.0 client. The HTTP transport is injected;
// timeouts and retries are its responsibility, not ours.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a WeChat OAuth client around the given transport.
// A nil transport gets a conservative default, mirroring how callers that
// do not care about tuning are expected to use it.
func New(cfg Config, hc *http.Client) *Client {
	if cfg.AuthorizeEndpoint == "" {
		cfg.AuthorizeEndpoint = authEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = tokenEndpoint
	}
	if cfg.UserInfoEndpoint == "" {
		cfg.UserInfoEndpoint = userInfoEndpoint
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}
}

// AuthURL builds the authorization URL. Pure construction, no network call.
// state and redirect_uri are optional; scope is the comma-joined scope list.
func (c *Client) AuthURL(state string, scopes []string) (string, error) {
	u, err := url.Parse(c.cfg.AuthorizeEndpoint)
	if err != nil {
		return "", fmt.Errorf("parse authorize endpoint: %w", err)
	}
	q := u.Query()
	q.Set("appid", c.cfg.AppID)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(scopes, ","))
	if c.cfg.SendRedirectURI && c.cfg.RedirectURL != "" {
		q.Set("redirect_uri", c.cfg.RedirectURL)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Token is the parsed result of a code exchange. Immutable once returned:
// the normalizer and the decryption path only read it. Raw keeps every
// provider field (openid, scope, session_key, ...) for extra lookups.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time // zero when the provider sent no expiry
	Raw          map[string]any
}

// Extra returns a provider-specific extra parameter as a string.
// Missing or non-string values come back as "".
func (t *Token) Extra(key string) string {
	if t == nil || t.Raw == nil {
		return ""
	}
	if v, ok := t.Raw[key].(string); ok {
		return v
	}
	return ""
}

// ExchangeCode swaps an authorization code for a token.
//
// Error classification, in order:
//   - ErrMissingCode when code is empty
//   - TransportError on network failure or non-2xx without a parseable body
//   - ProviderError when the body carries error/error_description (or the
//     WeChat-style errcode/errmsg pair) instead of an access token
//
// A parseable body without an access token and without error fields is
// returned as a Token with an empty AccessToken; the caller decides how to
// report it (the extras still carry whatever the provider said).
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
		"code":       code,
	})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "code exchange", Err: err}
	}
	defer resp.Body.Close()

	var raw map[string]any
	decodeErr := json.NewDecoder(resp.Body).Decode(&raw)

	if resp.StatusCode/100 != 2 && (decodeErr != nil || !hasProviderError(raw)) {
		return nil, &TransportError{Op: "code exchange", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: "code exchange", Err: fmt.Errorf("decode token response: %w", decodeErr)}
	}
	if perr := providerErrorFrom(raw); perr != nil {
		return nil, perr
	}

	return tokenFrom(raw), nil
}

// FetchUserInfo performs the bearer GET against the user-info endpoint and
// returns the body's "data" object merged over the token's extras, so
// profile lookups can fall back to token-level fields such as open_id.
func (c *Client) FetchUserInfo(ctx context.Context, token *Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build user-info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "user-info fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{Op: "user-info fetch", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &DataInvalidError{Reason: "response is not valid JSON"}
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		return nil, &DataInvalidError{Reason: "response lacks a data object"}
	}

	merged := make(map[string]any, len(token.Raw)+len(data))
	for k, v := range token.Raw {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	return merged, nil
}

func hasProviderError(raw map[string]any) bool {
	return providerErrorFrom(raw) != nil
}

// providerErrorFrom reads error/error_description, accepting the
// errcode/errmsg pair some WeChat endpoints still answer with.
func providerErrorFrom(raw map[string]any) *ProviderError {
	if raw == nil {
		return nil
	}
	if code, ok := raw["error"]; ok {
		desc, _ := raw["error_description"].(string)
		return &ProviderError{Code: asString(code), Description: desc}
	}
	if code, ok := raw["errcode"]; ok && asString(code) != "0" && asString(code) != "" {
		desc, _ := raw["errmsg"].(string)
		return &ProviderError{Code: asString(code), Description: desc}
	}
	return nil
}

func tokenFrom(raw map[string]any) *Token {
	t := &Token{Raw: raw}
	t.AccessToken, _ = raw["access_token"].(string)
	t.RefreshToken, _ = raw["refresh_token"].(string)
	t.TokenType, _ = raw["token_type"].(string)
	if v, ok := raw["expires_in"].(float64); ok && v > 0 {
		t.ExpiresAt = time.Now().Add(time.Duration(v) * time.Second)
	}
	return t
}

// asString renders provider codes that arrive as JSON numbers or strings.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
