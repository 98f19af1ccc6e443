package mailprobe

// Result is the full outcome of verifying one address.
// Outcome is the first non-Valid stage verdict, or Valid when every
// configured stage passed. Unknown means the question could not be
// settled (lookup timed out, every exchanger was exhausted) and the
// address may well exist.
type Result struct {
	Email   string        `json:"email"`
	Outcome Outcome       `json:"outcome"`
	Checks  []CheckResult `json:"checks"`
}

// FailedChecks returns those CheckResults that did not come back Valid.
func (r Result) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Outcome != Valid {
			out = append(out, c)
		}
	}
	return out
}

// CheckFor returns the CheckResult for the given stage, if it exists.
// The second return value indicates whether the given stage was
// executed.
func (r Result) CheckFor(stage Stage) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Stage == stage {
			return c, true
		}
	}
	return CheckResult{}, false
}
