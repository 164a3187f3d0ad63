package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := runCommand(t, "token", "--company", "3", "--user", "9", "--role", "contact", "--secret", "s3cret", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", time.Minute).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{CompanyID: 3, UserID: 9, Role: domain.RoleContact}, claims.Actor())
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing company", []string{"token", "--user", "9", "--secret", "x"}},
		{"non-positive user", []string{"token", "--company", "1", "--user", "0", "--secret", "x"}},
		{"unknown role", []string{"token", "--company", "1", "--user", "2", "--role", "owner", "--secret", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMigrateSubcommands(t *testing.T) {
	root := NewRootCommand("test")
	migrate, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)

	var names []string
	for _, sub := range migrate.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "status"}, names)
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	_, err := runCommand(t, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}
