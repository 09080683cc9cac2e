package service

import (
	"testing"
	"time"

	"course-enrollment/internal/domain/user"
	appErrors "course-enrollment/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", "course-enrollment")

	token, err := tokens.Issue(studentActor, time.Minute)
	require.NoError(t, err)

	actor, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, studentActor, actor)
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := NewTokenService("secret", "course-enrollment")

	expired, err := tokens.Issue(adminActor, -time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewTokenService("secret", "someone-else").Issue(adminActor, time.Minute)
	require.NoError(t, err)

	wrongKey, err := NewTokenService("other", "course-enrollment").Issue(adminActor, time.Minute)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: user.Role(42),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "course-enrollment",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"other issuer": otherIssuer,
		"wrong key":    wrongKey,
		"bad role":     badRole,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Validate(token)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}

func TestTokenService_RequiresSecret(t *testing.T) {
	_, err := NewTokenService("", "").Issue(adminActor, time.Minute)
	assert.Error(t, err)
	_, err = NewTokenService("", "").Validate("x")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
