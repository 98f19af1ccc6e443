package mx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Client is a Resolver that sends MX queries to one configured upstream
// server instead of the platform resolver, for deployments that must pin
// DNS to a known recursor. Response codes are classified explicitly:
// NXDOMAIN maps to ErrNotFound, an expired exchange to ErrTimeout, any
// other non-success rcode to a plain error.
type Client struct {
	upstream string
	client   *dns.Client

	// exchange is injectable for tests.
	exchange func(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// NewClient creates a Client querying the given upstream ("ip:port"; a
// bare IP gets port 53). timeout bounds each exchange.
func NewClient(upstream string, timeout time.Duration) *Client {
	if !strings.Contains(upstream, ":") {
		upstream += ":53"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cl := &dns.Client{Timeout: timeout}
	return &Client{
		upstream: upstream,
		client:   cl,
		exchange: cl.ExchangeContext,
	}
}

func (c *Client) LookupMX(ctx context.Context, domain string) ([]Record, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	resp, _, err := c.exchange(ctx, m, c.upstream)
	if err != nil {
		return nil, Classify(domain, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, domain)
	default:
		return nil, fmt.Errorf("mx: lookup %s: upstream %s answered %s",
			domain, c.upstream, dns.RcodeToString[resp.Rcode])
	}

	var records []Record
	for _, rr := range resp.Answer {
		if mxRR, ok := rr.(*dns.MX); ok {
			records = append(records, Record{
				Host: strings.TrimSuffix(mxRR.Mx, "."),
				Pref: mxRR.Preference,
			})
		}
	}
	return records, nil
}
