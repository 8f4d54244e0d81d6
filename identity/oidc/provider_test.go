package oidc_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/crm-session/identity"
	"github.com/jrsteele09/crm-session/identity/oidc"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "crm-web"
	testKeyID    = "test-key"
)

// fakeIssuer is a minimal OpenID Connect issuer: discovery, JWKS and a token
// endpoint that accepts the password and refresh_token grants.
type fakeIssuer struct {
	server   *httptest.Server
	key      *rsa.PrivateKey
	password string
	disabled bool
	limited  bool
	issued   int
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fi := &fakeIssuer{key: key, password: "Sup3rSecret"}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", fi.discovery)
	mux.HandleFunc("/keys", fi.jwks)
	mux.HandleFunc("/token", fi.token)
	fi.server = httptest.NewServer(mux)
	t.Cleanup(fi.server.Close)
	return fi
}

func (fi *fakeIssuer) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                fi.server.URL,
		"authorization_endpoint":                fi.server.URL + "/authorize",
		"token_endpoint":                        fi.server.URL + "/token",
		"jwks_uri":                              fi.server.URL + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (fi *fakeIssuer) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := fi.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (fi *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if fi.limited {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "slow_down"})
		return
	}
	switch r.PostForm.Get("grant_type") {
	case "password":
		if fi.disabled {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Account disabled"})
			return
		}
		if r.PostForm.Get("password") != fi.password {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid user credentials"})
			return
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	fi.issued++
	now := time.Now()
	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   fi.server.URL,
		"aud":   testClientID,
		"sub":   "uid-42",
		"email": "dana@example.com",
		"name":  "Dana Reyes",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"jti":   fmt.Sprintf("id-%d", fi.issued),
	})
	idToken.Header["kid"] = testKeyID
	raw, err := idToken.SignedString(fi.key)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  "access",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-1",
		"id_token":      raw,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newProvider(t *testing.T, fi *fakeIssuer) *oidc.Provider {
	t.Helper()
	p, err := oidc.NewProvider(context.Background(), oidc.Config{
		IssuerURL:    fi.server.URL,
		ClientID:     testClientID,
		ClientSecret: "secret",
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := oidc.NewProvider(context.Background(), oidc.Config{ClientID: "x"})
	require.Error(t, err)
	_, err = oidc.NewProvider(context.Background(), oidc.Config{IssuerURL: "http://example.invalid"})
	require.Error(t, err)
}

func TestSignIn_VerifiesIDToken(t *testing.T) {
	fi := newFakeIssuer(t)
	p := newProvider(t, fi)

	id, err := p.SignIn(context.Background(), "dana@example.com", "Sup3rSecret")
	require.NoError(t, err)
	require.Equal(t, "uid-42", id.UID)
	require.Equal(t, "dana@example.com", id.Email)
	require.Equal(t, "Dana Reyes", id.DisplayName)

	cached, err := p.IDToken(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, fi.issued)

	refreshed, err := p.IDToken(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, fi.issued)
	require.NotEqual(t, cached, refreshed)
}

func TestSignIn_MapsTokenErrors(t *testing.T) {
	fi := newFakeIssuer(t)
	p := newProvider(t, fi)
	ctx := context.Background()

	_, err := p.SignIn(ctx, "dana@example.com", "wrong")
	require.Equal(t, identity.CodeInvalidCredential, identity.CodeOf(err))

	fi.disabled = true
	_, err = p.SignIn(ctx, "dana@example.com", "Sup3rSecret")
	require.Equal(t, identity.CodeUserDisabled, identity.CodeOf(err))

	fi.limited = true
	_, err = p.SignIn(ctx, "dana@example.com", "Sup3rSecret")
	require.Equal(t, identity.CodeTooManyRequests, identity.CodeOf(err))
}

func TestSignOut_ClearsIdentity(t *testing.T) {
	fi := newFakeIssuer(t)
	p := newProvider(t, fi)
	ctx := context.Background()

	_, err := p.SignIn(ctx, "dana@example.com", "Sup3rSecret")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	_, err = p.IDToken(ctx, false)
	require.Equal(t, identity.CodeNoCurrentUser, identity.CodeOf(err))
}

func TestFork_HasIndependentState(t *testing.T) {
	fi := newFakeIssuer(t)
	p := newProvider(t, fi)
	ctx := context.Background()

	fork := p.Fork()
	t.Cleanup(fork.Close)

	_, err := p.SignIn(ctx, "dana@example.com", "Sup3rSecret")
	require.NoError(t, err)

	_, err = fork.IDToken(ctx, false)
	require.Equal(t, identity.CodeNoCurrentUser, identity.CodeOf(err))

	id, err := fork.SignIn(ctx, "dana@example.com", "Sup3rSecret")
	require.NoError(t, err)
	require.Equal(t, "uid-42", id.UID)
}
