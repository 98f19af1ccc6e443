// Package mailprobe verifies email addresses without sending mail. An
// address passes through up to four stages: syntax (RFC 2822
// addr-spec), disposable-domain rejection, mail route resolution and a
// live SMTP probe. Every stage answers Valid, Invalid or Unknown;
// Unknown means the question could not be settled and retrying later
// may succeed.
//
// Basic usage:
//
//	result, err := mailprobe.New().Verify(ctx, "user@example.com")
//
// Full pipeline:
//
//	result, err := mailprobe.New().
//	    WithDisposableCheck().
//	    WithDelivery(mailprobe.DeliveryOptions{
//	        Sender: "verify@myapp.com",
//	    }).
//	    Verify(ctx, "user@example.com")
package mailprobe

import "github.com/optimode/mailprobe/types"

// CheckResult is a re-export from the types package so that consumers
// don't need to import the types package directly.
type CheckResult = types.CheckResult

// Outcome is a re-export.
type Outcome = types.Outcome

// Stage is a re-export.
type Stage = types.Stage

// Route is a re-export.
type Route = types.Route

// Resolution is a re-export.
type Resolution = types.Resolution

// Outcome constants re-exported.
const (
	Valid   = types.Valid
	Invalid = types.Invalid
	Unknown = types.Unknown
)

// Stage constants re-exported.
const (
	StageSyntax = types.StageSyntax
	StageDomain = types.StageDomain
	StageMX     = types.StageMX
	StageSMTP   = types.StageSMTP
)
