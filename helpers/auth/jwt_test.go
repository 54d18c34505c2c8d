package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	m := NewTokenManager("secret")

	token, err := m.Generate("student-1", time.Hour)
	require.NoError(t, err)

	id, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", id)
}

func TestParseRejects(t *testing.T) {
	m := NewTokenManager("secret")

	expired, err := m.Generate("student-1", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewTokenManager("other").Generate("student-1", time.Hour)
	require.NoError(t, err)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"missing id":  noID,
		"not a token": "abc.def",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(token)
			assert.Error(t, err)
		})
	}
}
