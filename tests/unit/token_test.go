package unit

import (
	"testing"

	"daycare_realtime_service/pkg/token"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAndParseJWT(t *testing.T) {
	signed, err := token.GenerateJWT("parent-1", "parent", "realtime_service")
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)

	claims, err := token.ParseJWT(signed)
	assert.NoError(t, err)
	assert.Equal(t, "parent-1", claims.UserID)
	assert.Equal(t, "parent", claims.Role)
}

func TestParseJWTRejectsGarbage(t *testing.T) {
	_, err := token.ParseJWT("not.a.token")
	assert.Error(t, err)
}
