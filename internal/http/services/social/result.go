package social

import (
	"strings"
	"time"

	"github.com/weauth/weauth/internal/oauth/wechat"
)

// Credentials is the normalized token block of an AuthResult.
type Credentials struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	TokenType    string         `json:"token_type,omitempty"`
	NoExpiry     bool           `json:"no_expiry"`
	Scopes       []string       `json:"scopes"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Profile is the normalized profile block. Fields the provider did not
// send stay nil and serialize as absent, never as "".
type Profile struct {
	Nickname  *string `json:"nickname,omitempty"`
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// RawInfo keeps the untouched provider data for auditability.
// Never mutated after construction.
type RawInfo struct {
	Token   map[string]any `json:"token"`
	Profile map[string]any `json:"profile"`
}

// AuthResult is the final, provider-agnostic outcome of an attempt.
type AuthResult struct {
	Provider    string      `json:"provider"`
	UID         string      `json:"uid"`
	Credentials Credentials `json:"credentials"`
	Info        Profile     `json:"info"`
	Raw         RawInfo     `json:"raw"`
}

// BuildCredentials normalizes a token. Scopes come from the token's
// comma-joined "scope" extra; an empty scope string yields an empty slice,
// not [""].
func BuildCredentials(t *wechat.Token) Credentials {
	c := Credentials{
		Token:        t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Scopes:       splitScopes(t.Extra("scope")),
		Extra:        t.Raw,
	}
	if t.ExpiresAt.IsZero() {
		c.NoExpiry = true
	} else {
		exp := t.ExpiresAt
		c.ExpiresAt = &exp
	}
	return c
}

func splitScopes(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// profile field names per variant: the direct user-info endpoint speaks
// snake_case, the Mini Program payload camelCase.
var profileFields = map[Variant]struct{ nickname, name, avatar, email string }{
	VariantDirect:  {nickname: "nickname", name: "name", avatar: "avatar_url", email: "email"},
	VariantMiniapp: {nickname: "nickName", name: "nickName", avatar: "avatarUrl", email: ""},
}

// BuildProfile maps provider profile fields into the normalized shape for
// the given variant.
func BuildProfile(raw map[string]any, v Variant) Profile {
	f, ok := profileFields[v]
	if !ok {
		f = profileFields[VariantDirect]
	}
	return Profile{
		Nickname:  lookupString(raw, f.nickname),
		Name:      lookupString(raw, f.name),
		AvatarURL: lookupString(raw, f.avatar),
		Email:     lookupString(raw, f.email),
	}
}

// BuildRawInfo snapshots the original token and profile mappings.
func BuildRawInfo(t *wechat.Token, raw map[string]any) RawInfo {
	return RawInfo{Token: t.Raw, Profile: raw}
}

// uidFallbacks: providers and payloads disagree on casing for the unique
// identifier, so each configured uid field tolerates the known spellings.
var uidFallbacks = map[string][]string{
	"openid":  {"openid", "open_id", "openId"},
	"unionid": {"unionid", "unionId", "union_id"},
}

// ResolveUID extracts the provider-unique identifier from the profile
// mapping (which already contains the token extras merged in).
func ResolveUID(raw map[string]any, uidField string) string {
	keys, ok := uidFallbacks[uidField]
	if !ok {
		keys = []string{uidField}
	}
	for _, k := range keys {
		if v := lookupString(raw, k); v != nil {
			return *v
		}
	}
	return ""
}

// lookupString returns nil for missing or empty values so normalized
// profiles never carry fabricated empty strings.
func lookupString(m map[string]any, key string) *string {
	if key == "" || m == nil {
		return nil
	}
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}
