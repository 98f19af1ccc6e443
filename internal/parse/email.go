// Package parse splits raw address input into the pieces the verification
// stages operate on. Grammar acceptance is not decided here; that is the
// syntax stage's job. This package only extracts the local part and the
// domain, and normalizes internationalized domains to their DNS form.
package parse

import (
	"strings"

	"golang.org/x/net/idna"
)

// Email is the internal representation of a split email address.
// The check/ packages receive this as parameter.
type Email struct {
	Raw           string // the original, trimmed input
	Local         string // the part before the last @
	Domain        string // the part after the last @, ASCII/Punycode form (for DNS/SMTP)
	DomainUnicode string // the part after the last @, Unicode form (for display)
	Valid         bool   // false if Raw cannot be split into local@domain
}

// NewEmail splits the given email string at the last @.
// If splitting fails, Valid=false but Raw is always populated.
// Internationalized domain names (IDNA2008) are converted to Punycode so
// the resolution and probe stages always see a DNS-safe domain.
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)

	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 || atIdx >= len(raw)-1 {
		return Email{Raw: raw, Valid: false}
	}

	local := raw[:atIdx]
	domain := strings.ToLower(raw[atIdx+1:])

	asciiDomain, unicodeDomain, ok := convertDomain(domain)
	if !ok {
		return Email{Raw: raw, Valid: false}
	}

	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        asciiDomain,
		DomainUnicode: unicodeDomain,
		Valid:         true,
	}
}

// RegistrableDomain returns the last two labels of an exchanger host,
// the granularity at which the known-domain directory indexes provider
// ecosystems. Hosts with fewer than two labels are returned unchanged.
func RegistrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// convertDomain converts a domain to both ASCII/Punycode and Unicode forms.
// Returns (ascii, unicode, ok). ok is false if the domain contains
// non-ASCII characters that fail IDNA2008 validation.
func convertDomain(domain string) (ascii, unicode string, ok bool) {
	hasNonASCII := false
	for _, r := range domain {
		if r > 127 {
			hasNonASCII = true
			break
		}
	}

	if hasNonASCII {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}

	// Pure ASCII domain: try to get Unicode display form
	// (handles existing Punycode like xn--mnchen-3ya.de → münchen.de)
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}
