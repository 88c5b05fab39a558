// ABOUTME: Tests for JWT token generation and verification
// ABOUTME: Covers round-trips, expiry, wrong secrets, and missing claims

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("operator-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", subject)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("operator-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := NewJWTVerifier([]byte("secret-a"))
	verifier := NewJWTVerifier([]byte("secret-b"))

	token, err := signer.Generate("operator-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbageToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)

	claims := jwt.MapClaims{
		"iss": Issuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)

	// Same secret, but minted by a different service
	claims := jwt.MapClaims{
		"iss": "some-other-service",
		"sub": "operator-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingIssuer(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret)

	claims := jwt.MapClaims{
		"sub": "operator-1",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	// alg=none tokens must never pass
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "operator-1",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
