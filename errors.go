package mailprobe

import "errors"

var (
	// ErrNilDirectory is returned from Verify when WithDirectory was
	// given a nil source.
	ErrNilDirectory = errors.New("mailprobe: nil directory source")

	// ErrNilResolver is returned from Verify when WithResolver was
	// given a nil resolver.
	ErrNilResolver = errors.New("mailprobe: nil resolver")
)
