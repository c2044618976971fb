package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/auth"
	"questions/internal/config"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3,4", " 5 ", "6,"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5, 6}, ids)

	_, err = parseIDs([]string{"7,x"})
	assert.EqualError(t, err, `invalid id "x"`)

	_, err = parseIDs([]string{"-1"})
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("JWT_ISSUER", "questions-cli")

	var out bytes.Buffer
	cmd := TokenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "42", "--email", "ops@example.org", "--admin"})
	require.NoError(t, cmd.Execute())

	svc := auth.NewService(&config.JWTConfig{Secret: "cli-test-secret", Issuer: "questions-cli"})
	claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ops@example.org", claims.Email)
	assert.True(t, claims.Admin)
}

func TestTokenCmdRequiresUser(t *testing.T) {
	cmd := TokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--email", "ops@example.org"})
	assert.Error(t, cmd.Execute())
}
