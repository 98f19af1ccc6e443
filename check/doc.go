// Package check contains the individual verification stages for mailprobe.
// Each type implements the checker interface defined in verifier.go.
// These types can be used directly, but the recommended approach is
// to use the fluent builder API from the github.com/optimode/mailprobe package.
package check
