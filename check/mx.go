package check

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/optimode/mailprobe/cache"
	"github.com/optimode/mailprobe/directory"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/mx"
	"github.com/optimode/mailprobe/types"
)

// MXConfig is the exchanger checker configuration.
type MXConfig struct {
	// DefaultPort is used for routes discovered via DNS, which carry no
	// connection options of their own. Default: 25.
	DefaultPort int

	// Directory is consulted before DNS. Optional.
	Directory directory.Source

	// Cache stores finished resolutions keyed by domain. Directory hits
	// and timeouts are never cached. Optional.
	Cache cache.Store[types.Resolution]

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// MXChecker resolves the delivery routes for a domain. The directory
// is consulted first and a hit short-circuits resolution entirely,
// including hits on an exchanger's registrable domain found mid-walk;
// these carry server, port, TLS mode and credentials, where DNS-derived
// routes carry only the exchanger host and the default port.
type MXChecker struct {
	cfg      MXConfig
	resolver mx.Resolver
	group    singleflight.Group
	logger   *zap.Logger
}

func NewMXChecker(cfg MXConfig, resolver mx.Resolver) *MXChecker {
	if cfg.DefaultPort <= 0 {
		cfg.DefaultPort = 25
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MXChecker{cfg: cfg, resolver: resolver, logger: logger}
}

func (c *MXChecker) Check(ctx context.Context, email parse.Email) (types.CheckResult, error) {
	stage := types.StageMX

	if !email.Valid {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "skipped: invalid email"}, nil
	}

	res, err := c.Resolve(ctx, email.Domain)
	if err != nil {
		return types.CheckResult{}, err
	}
	switch res.Status {
	case types.Found:
		return types.CheckResult{
			Stage:     stage,
			Outcome:   types.Valid,
			Details:   fmt.Sprintf("%d delivery route(s)", len(res.Routes)),
			Exchanger: res.Routes[0].Exchanger,
		}, nil
	case types.NoSuchDomain:
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "no mail exchanger for domain"}, nil
	default:
		return types.CheckResult{Stage: stage, Outcome: types.Unknown, Details: "exchanger lookup timed out"}, nil
	}
}

// Resolve produces the delivery routes for domain. Concurrent calls
// for the same domain share one DNS query.
func (c *MXChecker) Resolve(ctx context.Context, domain string) (types.Resolution, error) {
	// Directory hits are never cached so credential edits take effect
	// immediately.
	if res, ok, err := c.fromDirectory(ctx, domain); err != nil {
		return types.Resolution{}, err
	} else if ok {
		return res, nil
	}

	if c.cfg.Cache != nil {
		if res, ok := c.cfg.Cache.Get(domain); ok {
			return res, nil
		}
	}

	v, err, _ := c.group.Do(domain, func() (interface{}, error) {
		return c.resolve(ctx, domain)
	})
	if err != nil {
		return types.Resolution{}, err
	}
	return v.(types.Resolution), nil
}

func (c *MXChecker) resolve(ctx context.Context, domain string) (types.Resolution, error) {
	// Re-check under the flight: an earlier flight may have filled the
	// cache between the caller's miss and this call.
	if c.cfg.Cache != nil {
		if res, ok := c.cfg.Cache.Get(domain); ok {
			return res, nil
		}
	}

	records, err := c.resolver.LookupMX(ctx, domain)
	switch {
	case errors.Is(err, mx.ErrTimeout):
		// Transient. Report indeterminate and leave the cache alone.
		c.logger.Debug("mx lookup timed out", zap.String("domain", domain))
		return types.Resolution{Status: types.Indeterminate}, nil
	case errors.Is(err, mx.ErrNotFound):
		return c.store(domain, types.Resolution{Status: types.NoSuchDomain}), nil
	case err != nil:
		return types.Resolution{}, err
	}
	if len(records) == 0 {
		return c.store(domain, types.Resolution{Status: types.NoSuchDomain}), nil
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Pref != records[j].Pref {
			return records[i].Pref < records[j].Pref
		}
		return records[i].Host < records[j].Host
	})

	routes := make([]types.Route, 0, len(records))
	for _, rec := range records {
		// A directory entry for the exchanger's registrable domain takes
		// over the whole resolution: the provider runs this domain's mail.
		if res, ok, err := c.fromDirectory(ctx, parse.RegistrableDomain(rec.Host)); err != nil {
			return types.Resolution{}, err
		} else if ok {
			c.logger.Debug("exchanger matched known provider",
				zap.String("domain", domain),
				zap.String("exchanger", rec.Host))
			return res, nil
		}
		routes = append(routes, types.Route{
			Domain:    domain,
			Exchanger: rec.Host,
			Port:      c.cfg.DefaultPort,
		})
	}
	return c.store(domain, types.Resolution{Status: types.Found, Routes: routes}), nil
}

func (c *MXChecker) fromDirectory(ctx context.Context, domain string) (types.Resolution, bool, error) {
	if c.cfg.Directory == nil {
		return types.Resolution{}, false, nil
	}
	routes, err := c.cfg.Directory.Lookup(ctx, domain)
	if err != nil {
		return types.Resolution{}, false, err
	}
	if len(routes) == 0 {
		return types.Resolution{}, false, nil
	}
	return types.Resolution{Status: types.Found, Routes: routes}, true, nil
}

func (c *MXChecker) store(domain string, res types.Resolution) types.Resolution {
	if c.cfg.Cache != nil {
		c.cfg.Cache.Set(domain, res)
	}
	return res
}
