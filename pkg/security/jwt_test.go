package security

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&JWTConfig{SecretKey: "test-secret", Issuer: "cargorelay"})
	require.NoError(t, err)
	return m
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&JWTConfig{})
	assert.ErrorIs(t, err, ErrSecretKeyEmpty)
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, err := m.GenerateToken(&Principal{
		UserID:      "u-1",
		Role:        "operations",
		Permissions: []string{"view_containers", "view_alerts"},
	})
	require.NoError(t, err)

	p, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "operations", p.Role)
	assert.True(t, p.Has("view_alerts"))
	assert.False(t, p.Has("broadcast"))
}

func TestJWTManager_UserIDClaimFallback(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cargorelay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "legacy-7",
		Role:   "admin",
	})
	require.NoError(t, err)

	p, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", p.UserID)
}

func TestJWTManager_Failures(t *testing.T) {
	m := newTestManager(t)

	expired, err := m.Sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "cargorelay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	require.NoError(t, err)
	_, err = m.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = m.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	_, err = m.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenMissing)

	other, err := NewJWTManager(&JWTConfig{SecretKey: "other-secret", Issuer: "cargorelay"})
	require.NoError(t, err)
	forged, err := other.GenerateToken(&Principal{UserID: "u-1"})
	require.NoError(t, err)
	_, err = m.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	noSubject, err := m.Sign(&Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "cargorelay",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	require.NoError(t, err)
	_, err = m.Verify(context.Background(), noSubject)
	assert.ErrorIs(t, err, ErrSubjectMissing)
}

func TestPrincipal_Wildcard(t *testing.T) {
	p := &Principal{Permissions: []string{"*"}}
	assert.True(t, p.Has("anything"))

	var nilP *Principal
	assert.False(t, nilP.Has("anything"))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrTokenMissing)

	r.Header.Set("Authorization", "bearer abc")
	tok, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	r = httptest.NewRequest("GET", "/ws?token=q1", nil)
	tok, _ = TokenFromRequest(r)
	assert.Equal(t, "q1", tok)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Sec-WebSocket-Protocol", "p1, p2")
	tok, _ = TokenFromRequest(r)
	assert.Equal(t, "p1", tok)
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &Principal{UserID: "u"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", p.UserID)
}
