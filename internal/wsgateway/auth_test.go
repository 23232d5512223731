package wsgateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthManager_ValidateToken(t *testing.T) {
	auth := NewAuthManager(testSecret)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"user_id claim", signToken(t, testSecret, jwt.MapClaims{"user_id": "user-1", "exp": exp}), "user-1", false},
		{"sub fallback", signToken(t, testSecret, jwt.MapClaims{"sub": "user-2", "exp": exp}), "user-2", false},
		{"no user", signToken(t, testSecret, jwt.MapClaims{"exp": exp}), "", true},
		{"wrong secret", signToken(t, "wrong-secret", jwt.MapClaims{"user_id": "user-1", "exp": exp}), "", true},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}), "", true},
		{"garbage", "not-a-jwt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.ValidateToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthManager_NoSecret(t *testing.T) {
	auth := NewAuthManager("")
	assert.False(t, auth.Enabled())

	user, err := auth.ValidateToken("anything")
	require.NoError(t, err)
	assert.Equal(t, DefaultUser, user)
}

func TestAuthManager_ExtractTokenFromHeader(t *testing.T) {
	auth := NewAuthManager(testSecret)

	token, err := auth.ExtractTokenFromHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	token, err = auth.ExtractTokenFromHeader("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = auth.ExtractTokenFromHeader("")
	assert.Error(t, err)

	_, err = auth.ExtractTokenFromHeader("Basic abc")
	assert.Error(t, err)

	_, err = auth.ExtractTokenFromHeader("Bearer a b")
	assert.Error(t, err)
}
