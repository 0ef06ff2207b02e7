package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, "eventboard", time.Hour)
	require.NoError(t, err)
	return svc
}

// TestPurpose: Validates that an issued token verifies and carries identity claims.
// Scope: Unit Test
// Expected: Subject, email and name round-trip.
// Test Case ID: AUTH-01
func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Issue("user-1", "u@example.com", "User One")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "u@example.com", claims.Email)
	assert.Equal(t, "User One", claims.Name)
	assert.Equal(t, "eventboard", claims.Issuer)
}

// TestPurpose: Validates rejection of tampered, foreign, expired and unsigned tokens.
// Scope: Unit Test
// Security: Token forgery and algorithm confusion (CWE-347)
// Expected: Verify returns ErrInvalidToken.
// Test Case ID: AUTH-02
func TestTokenService_RejectsInvalidTokens(t *testing.T) {
	svc := newTestService(t)

	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", "eventboard", time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", "", "")
	require.NoError(t, err)

	otherIssuer, err := NewTokenService(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := otherIssuer.Issue("user-1", "", "")
	require.NoError(t, err)

	expiredSvc := newTestService(t)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.Issue("user-1", "", "")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"iss": "eventboard",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := svc.Issue("", "", "")
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":       "not-a-jwt",
		"foreign key":   foreign,
		"wrong issuer":  wrongIssuer,
		"expired":       expired,
		"alg none":      none,
		"empty subject": noSubject,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

// TestPurpose: Validates Authorization header parsing.
// Scope: Unit Test
// Expected: Only a non-empty Bearer credential is accepted.
// Test Case ID: AUTH-03
func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
		{"Bearerabc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := ParseBearer(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

// TestPurpose: Validates that an empty signing secret is refused.
// Scope: Unit Test
// Expected: ErrMissingSecret.
// Test Case ID: AUTH-04
func TestNewTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService("", "eventboard", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
