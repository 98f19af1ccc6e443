// Package mx is the DNS capability behind mail route resolution: an MX
// query for a domain yields an ordered list of exchanger records or a
// classified failure. Two implementations ship: StdResolver on top of the
// platform resolver, and Client, which pins queries to a configured
// upstream server.
package mx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	// ErrNotFound reports that the queried name does not exist.
	ErrNotFound = errors.New("mx: no such domain")

	// ErrTimeout reports that the query ran out of time. Unlike ErrNotFound
	// this outcome may change on retry and is never cached.
	ErrTimeout = errors.New("mx: lookup timed out")
)

// Record is one mail exchanger for a domain, final dot trimmed.
type Record struct {
	Host string
	Pref uint16
}

// Resolver answers MX queries. Errors must be classified: name-not-found
// as ErrNotFound, expired queries as ErrTimeout, anything else wrapped
// unmodified. Classify does this for implementations built on the net
// package.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]Record, error)
}

// StdResolver resolves through a *net.Resolver, by default the
// platform's.
type StdResolver struct {
	r *net.Resolver
}

// NewStdResolver wraps r. A nil r selects the default platform resolver.
func NewStdResolver(r *net.Resolver) *StdResolver {
	if r == nil {
		r = &net.Resolver{}
	}
	return &StdResolver{r: r}
}

func (s *StdResolver) LookupMX(ctx context.Context, domain string) ([]Record, error) {
	mxs, err := s.r.LookupMX(ctx, domain)
	if err != nil {
		return nil, Classify(domain, err)
	}
	records := make([]Record, 0, len(mxs))
	for _, m := range mxs {
		records = append(records, Record{
			Host: strings.TrimSuffix(m.Host, "."),
			Pref: m.Pref,
		})
	}
	return records, nil
}

// WithTimeout bounds every lookup made through r by d. A non-positive d
// returns r unchanged.
func WithTimeout(r Resolver, d time.Duration) Resolver {
	if d <= 0 {
		return r
	}
	return &timeoutResolver{r: r, d: d}
}

type timeoutResolver struct {
	r Resolver
	d time.Duration
}

func (t *timeoutResolver) LookupMX(ctx context.Context, domain string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.r.LookupMX(ctx, domain)
}

// Classify maps a transport-level lookup failure onto the package's
// sentinel errors. Custom Resolver implementations can reuse it.
func Classify(domain string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, domain)
		}
		if dnsErr.IsTimeout {
			return fmt.Errorf("%w: %s", ErrTimeout, domain)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, domain)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, domain)
	}
	return fmt.Errorf("mx: lookup %s: %w", domain, err)
}
