package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencydesk/support-chat-service/internal/models"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestValidateHS256(t *testing.T) {
	v, err := NewValidator("HS256", "", testSecret)
	require.NoError(t, err)

	id, err := v.Validate(signHS256(t, jwt.MapClaims{
		"sub":  "user-1",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, models.RoleAdmin, id.Role)
}

func TestValidateFallsBackToUserIDClaim(t *testing.T) {
	v, err := NewValidator("HS256", "", testSecret)
	require.NoError(t, err)

	id, err := v.Validate(signHS256(t, jwt.MapClaims{
		"user_id": "user-2",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.UserID)
	assert.Equal(t, models.RoleUser, id.Role, "missing or unknown role defaults to user")
}

func TestValidateRejectsBadTokens(t *testing.T) {
	v, err := NewValidator("HS256", "", testSecret)
	require.NoError(t, err)

	_, err = v.Validate("not-a-token")
	assert.Error(t, err)

	expired := signHS256(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = v.Validate(expired)
	assert.Error(t, err)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	s, err := wrongKey.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = v.Validate(s)
	assert.Error(t, err)
}

func TestValidateRequiresSubject(t *testing.T) {
	v, err := NewValidator("HS256", "", testSecret)
	require.NoError(t, err)

	_, err = v.Validate(signHS256(t, jwt.MapClaims{
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewValidatorRejectsUnknownAlg(t *testing.T) {
	_, err := NewValidator("none", "", "")
	assert.Error(t, err)

	_, err = NewValidator("HS256", "", "")
	assert.Error(t, err, "HS256 needs a secret")
}
