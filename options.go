package mailprobe

import (
	"crypto/tls"
	"net"
	"time"
)

// ExchangerOptions configures route resolution and the reachability
// probe added by WithExchangerCheck.
type ExchangerOptions struct {
	// Timeout bounds each DNS query and each step of the probe
	// (connecting, one command exchange). Default: 10s
	Timeout time.Duration
	// DefaultPort is the port assumed for routes discovered via DNS,
	// which carry no connection options of their own. Directory routes
	// bring their own port. Default: 25
	DefaultPort int
	// HeloDomain is the HELO/EHLO argument. The probe only speaks it on
	// authenticated routes unless delivery is enabled. Default: the
	// local hostname
	HeloDomain string
	// TLSConfig is used for routes with implicit TLS.
	TLSConfig *tls.Config
	// Dial is injectable for testing. Default: net.DialTimeout
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

func defaultExchangerOptions() ExchangerOptions {
	return ExchangerOptions{
		Timeout:     10 * time.Second,
		DefaultPort: 25,
	}
}

// DeliveryOptions configures the full delivery attempt added by
// WithDelivery. Fields set here win over their ExchangerOptions
// counterparts.
type DeliveryOptions struct {
	// Sender is the MAIL FROM address, e.g. "verify@myapp.com". A
	// route's own username wins over it; when both are empty,
	// admin@<address domain> is used.
	Sender string
	// HeloDomain is the HELO/EHLO argument. Default: the local hostname
	HeloDomain string
	// Timeout bounds connecting and each command exchange. Default: 10s
	Timeout time.Duration
	// TLSConfig is used for routes with implicit TLS.
	TLSConfig *tls.Config
	// Dial is injectable for testing. Default: net.DialTimeout
	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

func defaultDeliveryOptions() DeliveryOptions {
	return DeliveryOptions{
		Timeout: 10 * time.Second,
	}
}
