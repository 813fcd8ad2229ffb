package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(subject string) SessionClaims {
	now := time.Now()
	return SessionClaims{
		SessionID: "sess_1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestVerifierHS256(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: testSecret})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		id, err := v.Verify(signHS256(t, testSecret, validClaims("user_123")))
		require.NoError(t, err)
		assert.Equal(t, "user_123", id.UserID)
		assert.Equal(t, "sess_1", id.SessionID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify(signHS256(t, "other", validClaims("user_123")))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		claims := validClaims("user_123")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.Verify(signHS256(t, testSecret, claims))
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := v.Verify(signHS256(t, testSecret, validClaims("")))
		assert.ErrorIs(t, err, ErrNoSubject)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifierIssuer(t *testing.T) {
	v, err := NewVerifier(VerifierConfig{Secret: testSecret, Issuer: "https://clerk.example.com"})
	require.NoError(t, err)

	claims := validClaims("user_123")
	claims.Issuer = "https://evil.example.com"
	_, err = v.Verify(signHS256(t, testSecret, claims))
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims.Issuer = "https://clerk.example.com"
	id, err := v.Verify(signHS256(t, testSecret, claims))
	require.NoError(t, err)
	assert.Equal(t, "user_123", id.UserID)
}

func TestVerifierRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(VerifierConfig{PublicKeyPEM: string(pemKey)})
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user_rsa")).SignedString(key)
	require.NoError(t, err)

	id, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user_rsa", id.UserID)

	// An HMAC token must not be accepted by an RSA verifier
	_, err = v.Verify(signHS256(t, string(pemKey), validClaims("user_rsa")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifierRequiresKey(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = NewVerifier(VerifierConfig{PublicKeyPEM: "nope"})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	assert.True(t, FromContext(context.Background()).IsAnonymous())
	assert.Nil(t, Anonymous.Author())

	ctx := WithIdentity(context.Background(), Identity{UserID: "user_123"})
	id := FromContext(ctx)
	require.NotNil(t, id.Author())
	assert.Equal(t, "user_123", *id.Author())
}
