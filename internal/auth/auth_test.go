package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	id := Identity{Email: "a.khan@khi.iba.edu.pk", Role: RoleStudent, ERP: "10001", Name: "Ayesha"}
	token, expires, err := tokens.Generate(id)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "10001", claims.Subject)

	got := claims.Identity()
	assert.Equal(t, id.Email, got.Email)
	assert.True(t, got.IsStudent())
	assert.NotEmpty(t, got.TokenID)
}

func TestTokensRevoke(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	token, expires, err := tokens.Generate(Identity{Email: "ta@iba.edu.pk", Role: RoleTA})
	require.NoError(t, err)
	claims, err := tokens.Parse(token)
	require.NoError(t, err)

	tokens.Revoke(claims.ID, expires)
	_, err = tokens.Parse(token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestTokensRejects(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Minute)
	require.NoError(t, err)
	other, err := NewTokens("other-secret", time.Minute)
	require.NoError(t, err)

	foreign, _, err := other.Generate(Identity{Email: "ta@iba.edu.pk", Role: RoleTA})
	require.NoError(t, err)
	_, err = tokens.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	stale, _, err := tokens.Generate(Identity{Email: "ta@iba.edu.pk", Role: RoleTA})
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tokens.Parse(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectUnknownRole(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Minute)
	require.NoError(t, err)

	now := time.Now()
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:  "admin",
		Email: "x@iba.edu.pk",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "x@iba.edu.pk",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	signed, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensValidation(t *testing.T) {
	_, err := NewTokens(" ", time.Hour)
	assert.Error(t, err)
	_, err = NewTokens("secret", 0)
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), Identity{Email: "ta@iba.edu.pk", Role: RoleTA})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.IsTA())
	assert.False(t, id.IsStudent())
}

func TestPasswordCipher(t *testing.T) {
	c, err := NewPasswordCipher("password-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("s3cret-pass")
	require.NoError(t, err)
	assert.NotContains(t, enc, "s3cret")

	again, err := c.Encrypt("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonce must differ per encryption")

	plain, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", plain)

	assert.True(t, c.Matches(enc, "s3cret-pass"))
	assert.False(t, c.Matches(enc, "wrong"))
	assert.False(t, c.Matches("", "s3cret-pass"))
}

func TestPasswordCipher_WrongKey(t *testing.T) {
	a, err := NewPasswordCipher("one")
	require.NoError(t, err)
	b, err := NewPasswordCipher("two")
	require.NoError(t, err)

	enc, err := a.Encrypt("hello")
	require.NoError(t, err)
	_, err = b.Decrypt(enc)
	assert.Error(t, err)

	_, err = a.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = a.Decrypt(strings.Repeat("!", 8))
	assert.Error(t, err)
}

func TestCodes_SingleUse(t *testing.T) {
	codes, err := NewCodes(10*time.Minute, 3)
	require.NoError(t, err)

	code, expires, err := codes.Issue("10001")
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, expires.After(time.Now()))

	assert.ErrorIs(t, codes.Verify("10002", code), ErrCodeInvalid, "codes are bound to their subject")
	require.NoError(t, codes.Verify("10001", code))
	assert.ErrorIs(t, codes.Verify("10001", code), ErrCodeInvalid)
}

func TestCodes_AttemptsAndExpiry(t *testing.T) {
	codes, err := NewCodes(time.Minute, 2)
	require.NoError(t, err)
	now := time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC)
	codes.now = func() time.Time { return now }

	code, _, err := codes.Issue("10001")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	assert.ErrorIs(t, codes.Verify("10001", wrong), ErrCodeInvalid)
	assert.ErrorIs(t, codes.Verify("10001", wrong), ErrCodeExhausted)
	assert.ErrorIs(t, codes.Verify("10001", code), ErrCodeInvalid, "exhausted code is dropped")

	code, _, err = codes.Issue("10001")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, codes.Verify("10001", code), ErrCodeExpired)

	code, _, err = codes.Issue("10001")
	require.NoError(t, err)
	codes.Discard("10001")
	assert.ErrorIs(t, codes.Verify("10001", code), ErrCodeInvalid)
}

func TestNewCodesValidation(t *testing.T) {
	_, err := NewCodes(0, 3)
	assert.Error(t, err)
	_, err = NewCodes(time.Minute, 0)
	assert.Error(t, err)
}
