package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weauth/weauth/internal/oauth/wechat"
)

func TestBuildCredentials_SplitsScopes(t *testing.T) {
	cases := []struct {
		name  string
		scope string
		want  []string
	}{
		{"two scopes", "read,write", []string{"read", "write"}},
		{"single scope", "snsapi_userinfo", []string{"snsapi_userinfo"}},
		{"empty yields empty slice", "", []string{}},
		{"surrounding whitespace", " read , write ", []string{"read", "write"}},
		{"dangling comma", "read,", []string{"read"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tok := &wechat.Token{AccessToken: "a", Raw: map[string]any{"scope": tc.scope}}
			got := BuildCredentials(tok)
			assert.Equal(t, tc.want, got.Scopes)
			assert.NotNil(t, got.Scopes, "scopes must never be nil")
		})
	}
}

func TestBuildCredentials_Expiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	withExp := BuildCredentials(&wechat.Token{AccessToken: "a", ExpiresAt: exp})
	require.NotNil(t, withExp.ExpiresAt)
	assert.Equal(t, exp, *withExp.ExpiresAt)
	assert.False(t, withExp.NoExpiry)

	without := BuildCredentials(&wechat.Token{AccessToken: "a"})
	assert.Nil(t, without.ExpiresAt)
	assert.True(t, without.NoExpiry)
}

func TestBuildProfile_DirectFields(t *testing.T) {
	p := BuildProfile(map[string]any{
		"nickname":   "Alice",
		"avatar_url": "https://cdn.example/a.png",
		"email":      "alice@example.com",
	}, VariantDirect)

	require.NotNil(t, p.Nickname)
	assert.Equal(t, "Alice", *p.Nickname)
	require.NotNil(t, p.AvatarURL)
	assert.Equal(t, "https://cdn.example/a.png", *p.AvatarURL)
	require.NotNil(t, p.Email)
	assert.Equal(t, "alice@example.com", *p.Email)
}

func TestBuildProfile_MiniappFields(t *testing.T) {
	p := BuildProfile(map[string]any{
		"nickName":  "Bob",
		"avatarUrl": "https://cdn.example/b.png",
		"email":     "should-be-ignored@example.com",
	}, VariantMiniapp)

	require.NotNil(t, p.Nickname)
	assert.Equal(t, "Bob", *p.Nickname)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Bob", *p.Name, "the payload has no separate name, the nickname doubles for it")
	assert.Nil(t, p.Email, "the miniapp mapping never exposes an email")
}

func TestBuildProfile_AbsentFieldsStayNil(t *testing.T) {
	p := BuildProfile(map[string]any{"nickname": ""}, VariantDirect)
	assert.Nil(t, p.Nickname, "empty provider strings must not become present fields")
	assert.Nil(t, p.AvatarURL)
	assert.Nil(t, p.Email)
}

func TestResolveUID_Fallbacks(t *testing.T) {
	cases := []struct {
		name     string
		uidField string
		raw      map[string]any
		want     string
	}{
		{"openid direct", "openid", map[string]any{"openid": "O1"}, "O1"},
		{"openid snake fallback", "openid", map[string]any{"open_id": "O2"}, "O2"},
		{"openid camel fallback", "openid", map[string]any{"openId": "O3"}, "O3"},
		{"unionid camel fallback", "unionid", map[string]any{"unionId": "U1"}, "U1"},
		{"primary wins over fallback", "openid", map[string]any{"openid": "A", "open_id": "B"}, "A"},
		{"missing", "unionid", map[string]any{"openid": "O1"}, ""},
		{"non-string ignored", "openid", map[string]any{"openid": 42}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveUID(tc.raw, tc.uidField))
		})
	}
}

func TestBuildRawInfo_KeepsOriginals(t *testing.T) {
	tok := &wechat.Token{AccessToken: "a", Raw: map[string]any{"access_token": "a", "scope": "read"}}
	profile := map[string]any{"openid": "O1", "nickname": "Alice"}

	raw := BuildRawInfo(tok, profile)
	assert.Equal(t, tok.Raw, raw.Token)
	assert.Equal(t, profile, raw.Profile)
}
