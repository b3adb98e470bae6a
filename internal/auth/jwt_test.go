package auth

import (
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return s
}

func TestExtractUserNameFromToken(t *testing.T) {
	t.Run("name and email exists", func(t *testing.T) {
		token := signed(t, jwt.MapClaims{"name": "John Doe", "email": "john.doe@example.com"})
		assert.Equal(t, "John Doe<john.doe@example.com>", ExtractUserNameFromToken(token, ""))
	})

	t.Run("email replaced by phone_number", func(t *testing.T) {
		token := signed(t, jwt.MapClaims{"name": "John Doe", "phone_number": "13800138000"})
		assert.Equal(t, "John Doe<13800138000>", ExtractUserNameFromToken("Bearer "+token, "name"))
	})

	t.Run("custom name claim", func(t *testing.T) {
		token := signed(t, jwt.MapClaims{"preferred_username": "jdoe"})
		assert.Equal(t, "jdoe", ExtractUserNameFromToken(token, "preferred_username"))
	})

	t.Run("no valid claims", func(t *testing.T) {
		assert.Equal(t, "unknown", ExtractUserNameFromToken(signed(t, jwt.MapClaims{}), ""))
	})

	t.Run("plain api key", func(t *testing.T) {
		assert.Equal(t, "unknown", ExtractUserNameFromToken("sk-plain-key", ""))
	})
}
