package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoSubject    = errors.New("token has no subject")
	ErrNoKey        = errors.New("no verification key configured")
)

// SessionClaims are the claims of an identity provider session token.
// The subject is the provider's user id, sid the provider session.
type SessionClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig selects the verification key. PublicKeyPEM takes precedence
// over Secret when both are set.
type VerifierConfig struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
}

// Verifier validates session tokens and resolves identities
type Verifier struct {
	hmacKey   []byte
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier creates a verifier for HS256 secrets or RS256 public keys
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer}

	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity provider public key: %w", err)
		}
		v.publicKey = key
	case cfg.Secret != "":
		v.hmacKey = []byte(cfg.Secret)
	default:
		return nil, ErrNoKey
	}

	return v, nil
}

// Verify validates a token and returns the identity it carries
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods())}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Anonymous, ErrExpiredToken
		}
		return Anonymous, ErrInvalidToken
	}
	if !token.Valid {
		return Anonymous, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Anonymous, ErrNoSubject
	}

	return Identity{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

func (v *Verifier) methods() []string {
	if v.publicKey != nil {
		return []string{jwt.SigningMethodRS256.Alg()}
	}
	return []string{jwt.SigningMethodHS256.Alg()}
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.publicKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return v.hmacKey, nil
}
