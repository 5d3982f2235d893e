package wechat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthURL(t *testing.T) {
	c := New(Config{
		AppID:           "wx123",
		AppSecret:       "secret",
		RedirectURL:     "https://app.example.com/cb",
		SendRedirectURI: true,
	}, nil)

	got, err := c.AuthURL("st8", []string{"snsapi_userinfo", "snsapi_base"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "wx123", q.Get("appid"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "snsapi_userinfo,snsapi_base", q.Get("scope"))
	assert.Equal(t, "https://app.example.com/cb", q.Get("redirect_uri"))
	assert.Equal(t, "st8", q.Get("state"))
}

func TestAuthURL_NoRedirectNoState(t *testing.T) {
	// provider pre-registers the redirect URI; nothing optional is sent
	c := New(Config{AppID: "wx123", AppSecret: "s", RedirectURL: "https://ignored"}, nil)

	got, err := c.AuthURL("", []string{"snsapi_base"})
	require.NoError(t, err)

	u, _ := url.Parse(got)
	q := u.Query()
	assert.Empty(t, q.Get("redirect_uri"))
	assert.False(t, q.Has("state"))
}

func TestExchangeCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "wx123", req["app_id"])
		assert.Equal(t, "shh", req["app_secret"])
		assert.Equal(t, "authcode", req["code"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "AT",
			"refresh_token": "RT",
			"token_type":    "Bearer",
			"expires_in":    7200,
			"openid":        "O1",
			"scope":         "snsapi_userinfo",
		})
	}))
	defer srv.Close()

	c := New(Config{AppID: "wx123", AppSecret: "shh", TokenEndpoint: srv.URL}, srv.Client())
	tok, err := c.ExchangeCode(context.Background(), "authcode")
	require.NoError(t, err)

	assert.Equal(t, "AT", tok.AccessToken)
	assert.Equal(t, "RT", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.False(t, tok.ExpiresAt.IsZero())
	assert.Equal(t, "O1", tok.Extra("openid"))
	assert.Equal(t, "snsapi_userinfo", tok.Extra("scope"))
}

func TestExchangeCode_MissingCode(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := New(Config{AppID: "wx", AppSecret: "s", TokenEndpoint: srv.URL}, srv.Client())
	_, err := c.ExchangeCode(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCode)
	assert.Zero(t, calls, "no network call without a code")
}

func TestExchangeCode_ProviderError(t *testing.T) {
	cases := []struct {
		name     string
		body     map[string]any
		wantCode string
		wantDesc string
	}{
		{
			"error/error_description",
			map[string]any{"error": "invalid_grant", "error_description": "code expired"},
			"invalid_grant", "code expired",
		},
		{
			"errcode/errmsg",
			map[string]any{"errcode": 40029, "errmsg": "invalid code"},
			"40029", "invalid code",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.body)
			}))
			defer srv.Close()

			c := New(Config{AppID: "wx", AppSecret: "s", TokenEndpoint: srv.URL}, srv.Client())
			_, err := c.ExchangeCode(context.Background(), "code")

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.wantCode, perr.Code)
			assert.Equal(t, tc.wantDesc, perr.Description)
		})
	}
}

func TestExchangeCode_TransportFailures(t *testing.T) {
	t.Run("non-2xx without error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>upstream down</html>"))
		}))
		defer srv.Close()

		c := New(Config{AppID: "wx", AppSecret: "s", TokenEndpoint: srv.URL}, srv.Client())
		_, err := c.ExchangeCode(context.Background(), "code")

		var terr *TransportError
		assert.ErrorAs(t, err, &terr)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listens anymore

		c := New(Config{AppID: "wx", AppSecret: "s", TokenEndpoint: srv.URL}, nil)
		_, err := c.ExchangeCode(context.Background(), "code")

		var terr *TransportError
		assert.ErrorAs(t, err, &terr)
	})
}

func TestExchangeCode_EmptyAccessToken(t *testing.T) {
	// parseable body, no error fields, no access token: the token comes back
	// and the caller classifies it
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"scope": "snsapi_base"})
	}))
	defer srv.Close()

	c := New(Config{AppID: "wx", AppSecret: "s", TokenEndpoint: srv.URL}, srv.Client())
	tok, err := c.ExchangeCode(context.Background(), "code")
	require.NoError(t, err)
	assert.Empty(t, tok.AccessToken)
	assert.Equal(t, "snsapi_base", tok.Extra("scope"))
}

func TestFetchUserInfo_MergesTokenExtras(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer AT", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"name": "Ada", "avatar_url": "https://a/v.png"},
		})
	}))
	defer srv.Close()

	c := New(Config{AppID: "wx", AppSecret: "s", UserInfoEndpoint: srv.URL}, srv.Client())
	tok := &Token{AccessToken: "AT", Raw: map[string]any{"open_id": "O1", "name": "from-token"}}

	profile, err := c.FetchUserInfo(context.Background(), tok)
	require.NoError(t, err)

	assert.Equal(t, "Ada", profile["name"], "profile fields win over token extras")
	assert.Equal(t, "https://a/v.png", profile["avatar_url"])
	assert.Equal(t, "O1", profile["open_id"], "token extras remain as fallback")
}

func TestFetchUserInfo_InvalidShape(t *testing.T) {
	t.Run("missing data object", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"name": "Ada"})
		}))
		defer srv.Close()

		c := New(Config{AppID: "wx", AppSecret: "s", UserInfoEndpoint: srv.URL}, srv.Client())
		_, err := c.FetchUserInfo(context.Background(), &Token{AccessToken: "AT"})

		var derr *DataInvalidError
		assert.ErrorAs(t, err, &derr)
	})

	t.Run("not json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("nope"))
		}))
		defer srv.Close()

		c := New(Config{AppID: "wx", AppSecret: "s", UserInfoEndpoint: srv.URL}, srv.Client())
		_, err := c.FetchUserInfo(context.Background(), &Token{AccessToken: "AT"})

		var derr *DataInvalidError
		assert.ErrorAs(t, err, &derr)
	})
}
