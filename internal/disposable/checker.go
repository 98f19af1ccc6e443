package disposable

import "strings"

// IsDisposable returns whether the given domain is a known disposable
// domain. The lookup is case-insensitive.
func IsDisposable(domain string) bool {
	_, ok := domainSet[strings.ToLower(domain)]
	return ok
}

// Count returns the number of domains in the embedded set.
func Count() int {
	return len(domainSet)
}
