package check_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailprobe/cache"
	"github.com/optimode/mailprobe/check"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/mx"
	"github.com/optimode/mailprobe/types"
)

// resolverFunc adapts a function to the mx.Resolver interface.
type resolverFunc func(ctx context.Context, domain string) ([]mx.Record, error)

func (f resolverFunc) LookupMX(ctx context.Context, domain string) ([]mx.Record, error) {
	return f(ctx, domain)
}

// directoryFunc adapts a function to the directory.Source interface.
type directoryFunc func(ctx context.Context, domain string) ([]types.Route, error)

func (f directoryFunc) Lookup(ctx context.Context, domain string) ([]types.Route, error) {
	return f(ctx, domain)
}

func TestMXChecker_RoutesSortedByPreference(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		return []mx.Record{
			{Host: "mx2.example.com", Pref: 20},
			{Host: "mx1.example.com", Pref: 10},
			{Host: "mx0.example.com", Pref: 10},
		}, nil
	})
	c := check.NewMXChecker(check.MXConfig{}, resolver)

	res, err := c.Resolve(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, types.Found, res.Status)
	require.Len(t, res.Routes, 3)
	assert.Equal(t, "mx0.example.com", res.Routes[0].Exchanger)
	assert.Equal(t, "mx1.example.com", res.Routes[1].Exchanger)
	assert.Equal(t, "mx2.example.com", res.Routes[2].Exchanger)
	for _, route := range res.Routes {
		assert.Equal(t, "example.com", route.Domain)
		assert.Equal(t, 25, route.Port)
		assert.False(t, route.UseTLS)
		assert.False(t, route.HasCredentials())
	}
}

func TestMXChecker_CheckOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		records []mx.Record
		lookErr error
		want    types.Outcome
	}{
		{
			name:    "routes found",
			records: []mx.Record{{Host: "mx.example.com", Pref: 10}},
			want:    types.Valid,
		},
		{
			name:    "no such domain",
			lookErr: fmt.Errorf("%w: example.com", mx.ErrNotFound),
			want:    types.Invalid,
		},
		{
			name:    "empty answer",
			records: []mx.Record{},
			want:    types.Invalid,
		},
		{
			name:    "timeout",
			lookErr: mx.ErrTimeout,
			want:    types.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
				return tt.records, tt.lookErr
			})
			c := check.NewMXChecker(check.MXConfig{}, resolver)

			parsed := parse.NewEmail("user@example.com")
			result, err := c.Check(context.Background(), parsed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Outcome, "Details: %s", result.Details)
			assert.Equal(t, types.StageMX, result.Stage)
		})
	}
}

func TestMXChecker_HardResolverErrorSurfaces(t *testing.T) {
	cause := errors.New("servfail")
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		return nil, cause
	})
	c := check.NewMXChecker(check.MXConfig{}, resolver)

	parsed := parse.NewEmail("user@example.com")
	_, err := c.Check(context.Background(), parsed)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestMXChecker_NegativeResultCached(t *testing.T) {
	lookups := 0
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		lookups++
		return nil, fmt.Errorf("%w: %s", mx.ErrNotFound, domain)
	})
	store := cache.NewMemory[types.Resolution](16, time.Minute)
	defer func() { _ = store.Close() }()
	c := check.NewMXChecker(check.MXConfig{Cache: store}, resolver)

	for i := 0; i < 3; i++ {
		res, err := c.Resolve(context.Background(), "gone.example")
		require.NoError(t, err)
		assert.Equal(t, types.NoSuchDomain, res.Status)
	}
	assert.Equal(t, 1, lookups)
}

func TestMXChecker_TimeoutNotCached(t *testing.T) {
	lookups := 0
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		lookups++
		return nil, mx.ErrTimeout
	})
	store := cache.NewMemory[types.Resolution](16, time.Minute)
	defer func() { _ = store.Close() }()
	c := check.NewMXChecker(check.MXConfig{Cache: store}, resolver)

	for i := 0; i < 2; i++ {
		res, err := c.Resolve(context.Background(), "slow.example")
		require.NoError(t, err)
		assert.Equal(t, types.Indeterminate, res.Status)
	}
	assert.Equal(t, 2, lookups)
	assert.Equal(t, 0, store.Len())
}

func TestMXChecker_DirectoryShortCircuitsDNS(t *testing.T) {
	lookups := 0
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		lookups++
		return []mx.Record{{Host: "mx.example.com", Pref: 10}}, nil
	})
	dirCalls := 0
	dir := directoryFunc(func(_ context.Context, domain string) ([]types.Route, error) {
		dirCalls++
		if domain == "gmail.com" {
			return []types.Route{{
				Domain:    "gmail.com",
				Exchanger: "smtp.gmail.com",
				Username:  "probe@gmail.com",
				Secret:    "hunter2",
				UseTLS:    true,
				Port:      465,
			}}, nil
		}
		return nil, nil
	})
	store := cache.NewMemory[types.Resolution](16, time.Minute)
	defer func() { _ = store.Close() }()
	c := check.NewMXChecker(check.MXConfig{Directory: dir, Cache: store}, resolver)

	for i := 0; i < 2; i++ {
		res, err := c.Resolve(context.Background(), "gmail.com")
		require.NoError(t, err)
		assert.Equal(t, types.Found, res.Status)
		require.Len(t, res.Routes, 1)
		assert.Equal(t, "smtp.gmail.com", res.Routes[0].Exchanger)
		assert.Equal(t, 465, res.Routes[0].Port)
		assert.True(t, res.Routes[0].UseTLS)
		assert.True(t, res.Routes[0].HasCredentials())
	}

	assert.Equal(t, 0, lookups, "directory hit must skip DNS")
	assert.Equal(t, 2, dirCalls, "directory hits are never cached")
	assert.Equal(t, 0, store.Len())
}

func TestMXChecker_ExchangerProviderShortCircuits(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		return []mx.Record{
			{Host: "aspmx.l.google.com", Pref: 1},
			{Host: "alt1.aspmx.l.google.com", Pref: 5},
		}, nil
	})
	dir := directoryFunc(func(_ context.Context, domain string) ([]types.Route, error) {
		if domain == "google.com" {
			return []types.Route{{
				Domain:    "google.com",
				Exchanger: "smtp.gmail.com",
				UseTLS:    true,
				Port:      465,
			}}, nil
		}
		return nil, nil
	})
	store := cache.NewMemory[types.Resolution](16, time.Minute)
	defer func() { _ = store.Close() }()
	c := check.NewMXChecker(check.MXConfig{Directory: dir, Cache: store}, resolver)

	res, err := c.Resolve(context.Background(), "corp.example")
	require.NoError(t, err)
	assert.Equal(t, types.Found, res.Status)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "smtp.gmail.com", res.Routes[0].Exchanger)
	assert.Equal(t, 0, store.Len(), "provider short-circuit must not be cached")
}

func TestMXChecker_DirectoryErrorIsFatal(t *testing.T) {
	cause := errors.New("database locked")
	dir := directoryFunc(func(_ context.Context, domain string) ([]types.Route, error) {
		return nil, cause
	})
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		return nil, nil
	})
	c := check.NewMXChecker(check.MXConfig{Directory: dir}, resolver)

	parsed := parse.NewEmail("user@example.com")
	_, err := c.Check(context.Background(), parsed)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestMXChecker_InvalidEmailSkipped(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, domain string) ([]mx.Record, error) {
		return nil, errors.New("should not be called")
	})
	c := check.NewMXChecker(check.MXConfig{}, resolver)

	parsed := parse.NewEmail("invalid")
	result, err := c.Check(context.Background(), parsed)
	require.NoError(t, err)
	assert.Equal(t, types.Invalid, result.Outcome)
	assert.Contains(t, result.Details, "skipped")
}
