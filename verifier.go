package mailprobe

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/optimode/mailprobe/cache"
	"github.com/optimode/mailprobe/check"
	"github.com/optimode/mailprobe/directory"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/mx"
	"github.com/optimode/mailprobe/types"
)

// checker is the internal interface for all verification stages.
// Every check/ package type implements this. A non-nil error is an
// infrastructure failure (directory unreachable, resolver broken) and
// aborts verification without a verdict.
type checker interface {
	Check(ctx context.Context, email parse.Email) (types.CheckResult, error)
}

// Verifier is the main fluent builder struct.
// Instantiate with the New() function.
// The stage pipeline is assembled on first use, so configuration
// methods may be chained in any order. Call Close() when done to
// release caches the Verifier created itself.
type Verifier struct {
	rejectDisposable bool
	exchanger        *ExchangerOptions
	delivery         *DeliveryOptions
	source           directory.Source
	resolver         mx.Resolver
	resolutions      cache.Store[types.Resolution]
	reachables       cache.Store[bool]
	logger           *zap.Logger
	err              error // configuration error, returned on Verify()

	buildOnce sync.Once
	checkers  []checker
	owned     []io.Closer
}

// New creates a new Verifier. By default it only performs syntax
// checking. Syntax checking always runs and cannot be disabled, because
// a well-formed address is a prerequisite for the other stages.
func New() *Verifier {
	return &Verifier{}
}

// WithDisposableCheck makes addresses on known disposable-mailbox
// domains come back Invalid.
func (v *Verifier) WithDisposableCheck() *Verifier {
	v.rejectDisposable = true
	return v
}

// WithExchangerCheck adds route resolution and a reachability probe to
// the pipeline: the domain must publish a mail exchanger (or appear in
// the directory), and at least one exchanger must accept a connection.
// Optionally overrides the default ExchangerOptions.
func (v *Verifier) WithExchangerCheck(opts ...ExchangerOptions) *Verifier {
	o := defaultExchangerOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	v.exchanger = &o
	return v
}

// WithDelivery extends the probe to a full delivery attempt: the
// envelope is walked up to RCPT TO and the recipient verdict decides.
// Implies WithExchangerCheck.
func (v *Verifier) WithDelivery(opts ...DeliveryOptions) *Verifier {
	o := defaultDeliveryOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	v.delivery = &o
	return v
}

// WithDirectory consults src for preconfigured routes before any DNS
// query. Directory routes carry host, port, TLS mode and credentials.
func (v *Verifier) WithDirectory(src directory.Source) *Verifier {
	if src == nil {
		v.err = ErrNilDirectory
		return v
	}
	v.source = src
	return v
}

// WithResolver replaces the platform DNS resolver, for example with an
// mx.Client pinned to a specific upstream.
func (v *Verifier) WithResolver(r mx.Resolver) *Verifier {
	if r == nil {
		v.err = ErrNilResolver
		return v
	}
	v.resolver = r
	return v
}

// WithCaches injects the resolution and reachability caches, for
// example cache.Redis stores shared between processes. Either may be
// nil to keep the in-memory default. Injected caches are not closed by
// Close().
func (v *Verifier) WithCaches(resolutions cache.Store[types.Resolution], reachables cache.Store[bool]) *Verifier {
	if resolutions != nil {
		v.resolutions = resolutions
	}
	if reachables != nil {
		v.reachables = reachables
	}
	return v
}

// WithLogger sets the logger for all stages. Defaults to a no-op
// logger.
func (v *Verifier) WithLogger(logger *zap.Logger) *Verifier {
	v.logger = logger
	return v
}

// Close releases resources held by the Verifier, currently the caches
// it created itself. Safe to call multiple times.
func (v *Verifier) Close() error {
	var firstErr error
	for _, c := range v.owned {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// build assembles the stage pipeline from the collected configuration.
func (v *Verifier) build() {
	logger := v.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	v.checkers = append(v.checkers, check.NewSyntaxChecker())
	if v.rejectDisposable {
		v.checkers = append(v.checkers, check.NewDomainChecker(check.DomainConfig{
			RejectDisposable: true,
		}))
	}
	if v.exchanger == nil && v.delivery == nil {
		return
	}

	exo := defaultExchangerOptions()
	if v.exchanger != nil {
		exo = *v.exchanger
	}
	timeout := exo.Timeout
	helo := exo.HeloDomain
	tlsConf := exo.TLSConfig
	dial := exo.Dial
	sender := ""
	if v.delivery != nil {
		// Delivery options win over exchanger options where both are set.
		if v.delivery.Timeout > 0 {
			timeout = v.delivery.Timeout
		}
		if v.delivery.HeloDomain != "" {
			helo = v.delivery.HeloDomain
		}
		if v.delivery.TLSConfig != nil {
			tlsConf = v.delivery.TLSConfig
		}
		if v.delivery.Dial != nil {
			dial = v.delivery.Dial
		}
		sender = v.delivery.Sender
	}

	resolver := v.resolver
	if resolver == nil {
		resolver = mx.NewStdResolver(nil)
	}
	resolver = mx.WithTimeout(resolver, timeout)

	resolutions := v.resolutions
	if resolutions == nil {
		m := cache.NewMemory[types.Resolution](0, 0)
		resolutions = m
		v.owned = append(v.owned, m)
	}
	reachables := v.reachables
	if reachables == nil {
		m := cache.NewMemory[bool](0, 0)
		reachables = m
		v.owned = append(v.owned, m)
	}

	// The exchanger stage doubles as the route source for the probe
	// stage, so resolutions are shared between them.
	mxc := check.NewMXChecker(check.MXConfig{
		DefaultPort: exo.DefaultPort,
		Directory:   v.source,
		Cache:       resolutions,
		Logger:      logger,
	}, resolver)
	v.checkers = append(v.checkers, mxc)

	v.checkers = append(v.checkers, check.NewSMTPChecker(check.SMTPConfig{
		Deliver:    v.delivery != nil,
		HeloDomain: helo,
		Sender:     sender,
		Timeout:    timeout,
		TLSConfig:  tlsConf,
		Dial:       dial,
		Cache:      reachables,
		Logger:     logger,
	}, mxc))
}

// Verify runs the configured stages on the given address. The pipeline
// short-circuits: the first stage that does not come back Valid
// decides the overall Outcome and subsequent stages are skipped.
// Context can be used for timeout or cancellation.
func (v *Verifier) Verify(ctx context.Context, email string) (Result, error) {
	if v.err != nil {
		return Result{}, v.err
	}
	v.buildOnce.Do(v.build)

	parsed := parse.NewEmail(email)
	result := Result{Email: email}

	for _, c := range v.checkers {
		cr, err := c.Check(ctx, parsed)
		if err != nil {
			return Result{}, fmt.Errorf("mailprobe: verifying %q: %w", email, err)
		}
		result.Checks = append(result.Checks, cr)

		if cr.Outcome != types.Valid {
			result.Outcome = cr.Outcome
			return result, nil // short-circuit
		}
	}

	result.Outcome = types.Valid
	return result, nil
}

// VerifyAll runs all stages without short-circuiting, useful when you
// want to know exactly which stages fail. The overall Outcome is the
// worst one seen: Invalid beats Unknown beats Valid.
func (v *Verifier) VerifyAll(ctx context.Context, email string) (Result, error) {
	if v.err != nil {
		return Result{}, v.err
	}
	v.buildOnce.Do(v.build)

	parsed := parse.NewEmail(email)
	result := Result{Email: email, Outcome: types.Valid}

	for _, c := range v.checkers {
		cr, err := c.Check(ctx, parsed)
		if err != nil {
			return Result{}, fmt.Errorf("mailprobe: verifying %q: %w", email, err)
		}
		result.Checks = append(result.Checks, cr)

		switch {
		case cr.Outcome == types.Invalid:
			result.Outcome = types.Invalid
		case cr.Outcome == types.Unknown && result.Outcome == types.Valid:
			result.Outcome = types.Unknown
		}
	}

	return result, nil
}
