package social

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/weauth/weauth/internal/cache"
	"github.com/weauth/weauth/internal/oauth/wechat"
)

// Phase is the attempt lifecycle position. Transitions only move forward:
// Idle -> RequestIssued -> CallbackReceived -> Authenticated|Failed -> CleanedUp.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseRequestIssued    Phase = "request_issued"
	PhaseCallbackReceived Phase = "callback_received"
	PhaseAuthenticated    Phase = "authenticated"
	PhaseFailed           Phase = "failed"
	PhaseCleanedUp        Phase = "cleaned_up"
)

// AttemptError is one recorded failure, in arrival order.
type AttemptError struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// AuthAttempt is the per-cycle state. Exclusively owned by the request
// handling one authentication cycle; never shared across attempts.
type AuthAttempt struct {
	ID          string         `json:"id"`
	Variant     Variant        `json:"variant"`
	Phase       Phase          `json:"phase"`
	Scopes      []string       `json:"scopes,omitempty"`
	Echo        string         `json:"echo,omitempty"`
	RedirectURL string         `json:"redirect_url,omitempty"`
	Token       *wechat.Token  `json:"token,omitempty"`
	Profile     map[string]any `json:"profile,omitempty"`
	Errors      []AttemptError `json:"errors,omitempty"`
}

// NewAttempt creates an attempt in the Idle phase.
func NewAttempt(variant Variant) *AuthAttempt {
	return &AuthAttempt{
		ID:      uuid.NewString(),
		Variant: variant,
		Phase:   PhaseIdle,
	}
}

// Fail records an error and moves the attempt to Failed.
func (a *AuthAttempt) Fail(code, description string) {
	a.Errors = append(a.Errors, AttemptError{Code: code, Description: description})
	a.Phase = PhaseFailed
}

// Cleanup discards the token and profile. Idempotent.
func (a *AuthAttempt) Cleanup() {
	a.Token = nil
	a.Profile = nil
	a.Phase = PhaseCleanedUp
}

const attemptKeyPrefix = "auth:attempt:"

// AttemptStore keeps serialized attempts between the request and callback
// phases. The cache TTL bounds how long a started attempt stays resumable.
type AttemptStore struct {
	c   cache.Cache
	ttl time.Duration
}

func NewAttemptStore(c cache.Cache, ttl time.Duration) *AttemptStore {
	return &AttemptStore{c: c, ttl: ttl}
}

func (s *AttemptStore) Save(a *AuthAttempt) {
	if s == nil || s.c == nil || a == nil {
		return
	}
	b, err := json.Marshal(a)
	if err != nil {
		return
	}
	s.c.Set(attemptKeyPrefix+a.ID, b, s.ttl)
}

func (s *AttemptStore) Load(id string) (*AuthAttempt, bool) {
	if s == nil || s.c == nil || id == "" {
		return nil, false
	}
	b, ok := s.c.Get(attemptKeyPrefix + id)
	if !ok {
		return nil, false
	}
	var a AuthAttempt
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (s *AttemptStore) Delete(id string) {
	if s == nil || s.c == nil || id == "" {
		return
	}
	s.c.Delete(attemptKeyPrefix + id)
}
