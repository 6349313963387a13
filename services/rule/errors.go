package rule

import (
	"errors"

	"salescamp-controlplane/pkg/errutil"
)

// Sentinel errors discriminating the failure taxonomy. Every error returned
// by this package wraps one of these (or is an errutil persistence error),
// so callers can branch with errors.Is.
var (
	// ErrInvalidTransition indicates a state change that violates the
	// lifecycle table, usually a race or a stale client; refetch and retry.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrExtraction indicates the remote extraction call failed or timed
	// out; recoverable through an explicit retry.
	ErrExtraction = errors.New("rule extraction failed")

	// ErrReconstruction indicates the stored artifact cannot be decoded.
	// Not recoverable by retrying; the user must re-upload the original.
	ErrReconstruction = errors.New("stored artifact cannot be decoded")
)

func invalidTransition(msg string) error {
	return errutil.Conflict(msg, errutil.WithErr(ErrInvalidTransition))
}

func persistence(msg string, err error) error {
	return errutil.Internal(msg, errutil.WithErr(err))
}
