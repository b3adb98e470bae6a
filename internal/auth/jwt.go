package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
)

const unknownUser = "unknown"

// ExtractUserNameFromToken reads display claims from a JWT without verifying
// it. nameClaim defaults to "name"; email falls back to phone_number.
// Anything that does not parse yields "unknown".
func ExtractUserNameFromToken(tokenString, nameClaim string) string {
	if nameClaim == "" {
		nameClaim = "name"
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if strings.Count(tokenString, ".") != 2 {
		return unknownUser
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		logger.Debug("token is not a parsable JWT", zap.Error(err))
		return unknownUser
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unknownUser
	}

	var name, email string
	if n, ok := claims[nameClaim].(string); ok && n != "" {
		name = n
	}
	if e, ok := claims["email"].(string); ok && e != "" {
		email = e
	} else if p, ok := claims["phone_number"].(string); ok && p != "" {
		email = p
	}

	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s<%s>", name, email)
	case name != "":
		return name
	case email != "":
		return email
	default:
		return unknownUser
	}
}
