// Package types contains the shared types for mailprobe.
// This package does not import anything from other mailprobe packages
// to avoid circular imports.
package types

// Outcome is the tri-state verdict of a verification.
type Outcome string

const (
	// Valid means the address is well-formed and, at the requested depth,
	// deliverable.
	Valid Outcome = "valid"
	// Invalid means the address is malformed, disallowed by policy, or
	// positively rejected by its domain's mail infrastructure.
	Invalid Outcome = "invalid"
	// Unknown means the network was too uncertain to decide either way.
	Unknown Outcome = "unknown"
)

// Stage identifies one step of the verification pipeline.
type Stage = string

const (
	StageSyntax Stage = "syntax"
	StageDomain Stage = "domain"
	StageMX     Stage = "mx"
	StageSMTP   Stage = "smtp"
)

// Route is one resolved way to deliver mail for a domain: the exchanger
// host to contact, the port and TLS mode, and optional credentials when
// the route came out of a known-domain directory.
type Route struct {
	Domain    string `json:"domain"`
	Exchanger string `json:"exchanger"`
	Username  string `json:"username,omitempty"`
	Secret    string `json:"-"`
	UseTLS    bool   `json:"useTLS"`
	Port      int    `json:"port"`
}

// HasCredentials reports whether the route carries a full credential pair.
func (r Route) HasCredentials() bool {
	return r.Username != "" && r.Secret != ""
}

// ResolutionStatus classifies the terminal outcome of MX resolution.
type ResolutionStatus string

const (
	// Found means resolution produced at least one route.
	Found ResolutionStatus = "found"
	// NoSuchDomain means the name does not exist or has no mail exchangers.
	NoSuchDomain ResolutionStatus = "noSuchDomain"
	// Indeterminate means the query timed out; the outcome may differ on retry.
	Indeterminate ResolutionStatus = "indeterminate"
)

// Resolution is the tagged result of resolving a domain's mail routes.
// Routes is populated only when Status == Found and preserves probe order:
// directory order for directory-derived routes, MX preference order for
// DNS-derived ones.
type Resolution struct {
	Status ResolutionStatus `json:"status"`
	Routes []Route          `json:"routes,omitempty"`
}

// CheckResult is the outcome of a single verification stage.
type CheckResult struct {
	Stage     Stage   `json:"stage"`
	Outcome   Outcome `json:"outcome"`
	Details   string  `json:"details,omitempty"`
	Exchanger string  `json:"exchanger,omitempty"`
	SMTPCode  int     `json:"smtpCode,omitempty"`
}
