package social

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// StateClaims binds the provider round-trip to one attempt: the callback
// phase trusts nothing from the query string except what the signed state
// vouches for.
type StateClaims struct {
	AttemptID   string
	Variant     Variant
	Nonce       string
	Echo        string // caller-provided opaque echo value
	RedirectURI string
}

// StateAudience is the expected audience for state tokens.
const StateAudience = "weauth-state"

// StateSigner signs and validates round-trip state tokens.
type StateSigner interface {
	SignState(claims StateClaims) (string, error)
	ParseState(tokenString string) (*StateClaims, error)
}

// Errors for state operations.
var (
	ErrStateInvalid = errors.New("invalid state token")
	ErrStateExpired = errors.New("state token expired")
)

// HSSigner signs state with HS256. The secret is service-local: the state
// only needs to round-trip through the provider, nobody else verifies it.
type HSSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewHSSigner(secret, issuer string, ttl time.Duration) *HSSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HSSigner{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// SignState signs a state JWT.
func (s *HSSigner) SignState(claims StateClaims) (string, error) {
	now := time.Now().UTC()
	mapClaims := jwtv5.MapClaims{
		"iss":        s.issuer,
		"aud":        StateAudience,
		"exp":        now.Add(s.ttl).Unix(),
		"iat":        now.Unix(),
		"nbf":        now.Unix(),
		"attempt_id": claims.AttemptID,
		"variant":    string(claims.Variant),
		"nonce":      claims.Nonce,
	}
	if claims.Echo != "" {
		mapClaims["echo"] = claims.Echo
	}
	if claims.RedirectURI != "" {
		mapClaims["redir"] = claims.RedirectURI
	}

	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mapClaims).SignedString(s.secret)
}

// ParseState parses and validates a state JWT.
func (s *HSSigner) ParseState(tokenString string) (*StateClaims, error) {
	tk, err := jwtv5.Parse(tokenString,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithoutClaimsValidation(),
	)
	if err != nil || !tk.Valid {
		return nil, ErrStateInvalid
	}

	mapClaims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrStateInvalid
	}

	if iss, _ := mapClaims["iss"].(string); iss != s.issuer {
		return nil, ErrStateInvalid
	}
	if aud, _ := mapClaims["aud"].(string); aud != StateAudience {
		return nil, ErrStateInvalid
	}

	// Expiration check with 30s grace
	if expf, ok := mapClaims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(time.Now().Add(-30 * time.Second)) {
			return nil, ErrStateExpired
		}
	}

	return &StateClaims{
		AttemptID:   getString(mapClaims, "attempt_id"),
		Variant:     Variant(getString(mapClaims, "variant")),
		Nonce:       getString(mapClaims, "nonce"),
		Echo:        getString(mapClaims, "echo"),
		RedirectURI: getString(mapClaims, "redir"),
	}, nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
