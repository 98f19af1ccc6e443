package check_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailprobe/check"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/types"
)

func TestDomainChecker_RejectsDisposable(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{RejectDisposable: true})
	ctx := context.Background()

	tests := []struct {
		name  string
		email string
		want  types.Outcome
	}{
		{"disposable", "user@mailinator.com", types.Invalid},
		{"disposable uppercase", "user@MAILINATOR.COM", types.Invalid},
		{"disposable guerrilla", "user@guerrillamail.com", types.Invalid},
		// example.com ships on the embedded list.
		{"documentation domain", "user@example.com", types.Invalid},
		{"regular provider", "user@gmail.com", types.Valid},
		{"corporate domain", "user@corp.example", types.Valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := parse.NewEmail(tt.email)
			result, err := c.Check(ctx, parsed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Outcome, "Details: %s", result.Details)
			assert.Equal(t, types.StageDomain, result.Stage)
		})
	}
}

func TestDomainChecker_DisposableAllowedByDefault(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{})

	parsed := parse.NewEmail("user@mailinator.com")
	result, err := c.Check(context.Background(), parsed)
	require.NoError(t, err)
	assert.Equal(t, types.Valid, result.Outcome)
}

func TestDomainChecker_InvalidEmailSkipped(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{RejectDisposable: true})

	parsed := parse.NewEmail("not-an-address")
	result, err := c.Check(context.Background(), parsed)
	require.NoError(t, err)
	assert.Equal(t, types.Invalid, result.Outcome)
	assert.Contains(t, result.Details, "skipped")
}
