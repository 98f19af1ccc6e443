package check

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/mailprobe/cache"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/internal/smtpconn"
	"github.com/optimode/mailprobe/types"
)

// RouteResolver yields the delivery routes to probe, normally an
// *MXChecker shared with the exchanger stage.
type RouteResolver interface {
	Resolve(ctx context.Context, domain string) (types.Resolution, error)
}

// SMTPConfig is the delivery probe configuration.
type SMTPConfig struct {
	// Deliver walks the full envelope (HELO, MAIL FROM, RCPT TO) and
	// judges the recipient. When false the probe stops after the
	// exchanger accepts the connection.
	Deliver bool

	// HeloDomain is the HELO/EHLO argument. Defaults to the local
	// hostname.
	HeloDomain string

	// Sender is the MAIL FROM address. A route's own username wins over
	// it; when both are empty, admin@<address domain> is used.
	Sender string

	// Timeout bounds connecting and each command exchange. Default: 10s.
	Timeout time.Duration

	// TLSConfig is used for routes with implicit TLS.
	TLSConfig *tls.Config

	// Dial is injectable for testing. Defaults to net.DialTimeout.
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)

	// Cache remembers which exchangers answered, keyed by host. Only
	// consulted when Deliver is false; always written. Optional.
	Cache cache.Store[bool]

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// SMTPChecker contacts a domain's exchangers in route order. Every
// exchanger gets a fresh connection; the first decisive reply wins and
// anything ambiguous moves on to the next route.
type SMTPChecker struct {
	cfg    SMTPConfig
	routes RouteResolver
	dialer *smtpconn.Dialer
	logger *zap.Logger
}

func NewSMTPChecker(cfg SMTPConfig, routes RouteResolver) *SMTPChecker {
	if cfg.HeloDomain == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.HeloDomain = host
		} else {
			cfg.HeloDomain = "localhost"
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPChecker{
		cfg:    cfg,
		routes: routes,
		dialer: smtpconn.NewDialer(smtpconn.Config{
			ConnectTimeout: cfg.Timeout,
			CommandTimeout: cfg.Timeout,
			TLSConfig:      cfg.TLSConfig,
			Dial:           cfg.Dial,
		}),
		logger: logger,
	}
}

func (c *SMTPChecker) Check(ctx context.Context, email parse.Email) (types.CheckResult, error) {
	stage := types.StageSMTP

	if !email.Valid {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "skipped: invalid email"}, nil
	}

	res, err := c.routes.Resolve(ctx, email.Domain)
	if err != nil {
		return types.CheckResult{}, err
	}
	switch res.Status {
	case types.NoSuchDomain:
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "no mail exchanger for domain"}, nil
	case types.Indeterminate:
		return types.CheckResult{Stage: stage, Outcome: types.Unknown, Details: "exchanger lookup timed out"}, nil
	}

	for _, route := range res.Routes {
		select {
		case <-ctx.Done():
			return types.CheckResult{}, ctx.Err()
		default:
		}

		if !c.cfg.Deliver && c.cfg.Cache != nil {
			if reachable, ok := c.cfg.Cache.Get(route.Exchanger); ok {
				if reachable {
					return types.CheckResult{
						Stage:     stage,
						Outcome:   types.Valid,
						Details:   "exchanger reachable (cached)",
						Exchanger: route.Exchanger,
					}, nil
				}
				return types.CheckResult{
					Stage:     stage,
					Outcome:   types.Invalid,
					Details:   "exchanger unreachable (cached)",
					Exchanger: route.Exchanger,
				}, nil
			}
		}

		if result, decisive := c.probeRoute(route, email); decisive {
			return result, nil
		}
	}

	return types.CheckResult{Stage: stage, Outcome: types.Unknown, Details: "all exchangers exhausted"}, nil
}

// probeRoute contacts one exchanger. decisive=false means this route
// could not settle the address and the next one should be tried.
func (c *SMTPChecker) probeRoute(route types.Route, email parse.Email) (result types.CheckResult, decisive bool) {
	stage := types.StageSMTP
	address := net.JoinHostPort(route.Exchanger, strconv.Itoa(route.Port))

	c.logger.Debug("probing exchanger",
		zap.String("exchanger", route.Exchanger),
		zap.Int("port", route.Port),
		zap.Bool("tls", route.UseTLS),
		zap.Bool("deliver", c.cfg.Deliver))

	conn, err := c.dialer.Open(address, route.UseTLS)
	if err != nil {
		c.logger.Debug("exchanger unreachable",
			zap.String("exchanger", route.Exchanger),
			zap.Error(err))
		return types.CheckResult{}, false
	}
	defer func() { _ = conn.Quit() }()

	if route.HasCredentials() {
		if code, _, err := conn.Ehlo(c.cfg.HeloDomain); err != nil || code != 250 {
			return types.CheckResult{}, false
		}
		code, reply, err := conn.Auth(route.Username, route.Secret)
		if err != nil || code != 235 {
			c.logger.Warn("authentication failed",
				zap.String("exchanger", route.Exchanger),
				zap.Int("code", code),
				zap.String("reply", reply),
				zap.Error(err))
			return types.CheckResult{}, false
		}
	}

	// The exchanger answered and let us in; remember that before any
	// envelope command can fail.
	if c.cfg.Cache != nil {
		c.cfg.Cache.Set(route.Exchanger, true)
	}

	if !c.cfg.Deliver {
		return types.CheckResult{
			Stage:     stage,
			Outcome:   types.Valid,
			Details:   "exchanger reachable",
			Exchanger: route.Exchanger,
		}, true
	}

	sender := route.Username
	if sender == "" {
		sender = c.cfg.Sender
	}
	if sender == "" {
		sender = "admin@" + email.Domain
	}

	if code, _, err := conn.Hello(c.cfg.HeloDomain); err != nil || code != 250 {
		return types.CheckResult{}, false
	}
	if code, _, err := conn.Mail(sender); err != nil || code != 250 {
		return types.CheckResult{}, false
	}
	code, reply, err := conn.Rcpt(email.Raw)
	if err != nil {
		return types.CheckResult{}, false
	}
	switch code {
	case 250:
		return types.CheckResult{
			Stage:     stage,
			Outcome:   types.Valid,
			Details:   "recipient accepted",
			Exchanger: route.Exchanger,
			SMTPCode:  code,
		}, true
	case 550:
		return types.CheckResult{
			Stage:     stage,
			Outcome:   types.Invalid,
			Details:   "recipient rejected: " + reply,
			Exchanger: route.Exchanger,
			SMTPCode:  code,
		}, true
	default:
		c.logger.Debug("ambiguous rcpt reply",
			zap.String("exchanger", route.Exchanger),
			zap.Int("code", code),
			zap.String("reply", reply))
		return types.CheckResult{}, false
	}
}
