package wsgateway

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultUser is assigned to connections when no JWT secret is configured
const DefaultUser = "default"

// AuthManager handles JWT authentication
type AuthManager struct {
	jwtSecret []byte
}

// NewAuthManager creates a new auth manager. An empty secret disables
// authentication.
func NewAuthManager(jwtSecret string) *AuthManager {
	return &AuthManager{jwtSecret: []byte(jwtSecret)}
}

// Enabled reports whether tokens are required
func (a *AuthManager) Enabled() bool {
	return len(a.jwtSecret) > 0
}

// ValidateToken validates an HMAC-signed JWT and returns the user from
// the "user_id" claim, falling back to "sub"
func (a *AuthManager) ValidateToken(tokenString string) (string, error) {
	if !a.Enabled() {
		return DefaultUser, nil
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("user_id not found in token")
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func (a *AuthManager) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	// "Bearer <token>" or a bare token
	parts := strings.Fields(authHeader)
	switch len(parts) {
	case 1:
		return parts[0], nil
	case 2:
		if !strings.EqualFold(parts[0], "bearer") {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	}
	return "", fmt.Errorf("invalid authorization header format")
}
