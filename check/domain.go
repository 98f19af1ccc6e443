package check

import (
	"context"

	"github.com/optimode/mailprobe/internal/disposable"
	"github.com/optimode/mailprobe/internal/parse"
	"github.com/optimode/mailprobe/types"
)

// DomainConfig is the domain checker configuration.
type DomainConfig struct {
	// RejectDisposable turns addresses on throwaway mail providers into
	// an Invalid verdict. When false the stage always passes.
	RejectDisposable bool
}

// DomainChecker applies domain policy, currently the disposable
// provider filter.
type DomainChecker struct {
	cfg DomainConfig
}

func NewDomainChecker(cfg DomainConfig) *DomainChecker {
	return &DomainChecker{cfg: cfg}
}

func (c *DomainChecker) Check(_ context.Context, email parse.Email) (types.CheckResult, error) {
	stage := types.StageDomain

	if !email.Valid {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "skipped: invalid email"}, nil
	}
	if c.cfg.RejectDisposable && disposable.IsDisposable(email.Domain) {
		return types.CheckResult{Stage: stage, Outcome: types.Invalid, Details: "disposable email domain"}, nil
	}
	return types.CheckResult{Stage: stage, Outcome: types.Valid, Details: "domain ok"}, nil
}
