package signal

import "errors"

var (
	// ErrInvalidParameter is wrapped by every parameter validation failure.
	ErrInvalidParameter = errors.New("signal: invalid parameter")
	// ErrIllConditioned is returned together with a best-effort result when
	// the baseline least squares problem is near singular.
	ErrIllConditioned = errors.New("signal: ill-conditioned baseline fit")
)
