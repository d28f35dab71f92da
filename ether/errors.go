package ether

import (
	"errors"

	"main/utils"
)

// Structural attach failures. All of them are fatal: the host must not
// start a dispatcher over a ring that failed Initialize.
var (
	ErrSignatureMismatch = errors.New("ether: signature mismatch")
	ErrCapacityMismatch  = errors.New("ether: capacity mismatch")
	ErrRegionTooSmall    = errors.New("ether: backing region too small")
)

type attachError struct {
	kind error
	msg  string
}

func (e *attachError) Error() string { return e.msg }
func (e *attachError) Unwrap() error { return e.kind }

func errSignatureMismatch(name string, got, want uint64) error {
	return &attachError{
		kind: ErrSignatureMismatch,
		msg: "ether: signature mismatch for '" + name + "': region " +
			utils.Utoa64(got) + ", schema " + utils.Utoa64(want),
	}
}

func errCapacityMismatch(name string, got, want uint64) error {
	return &attachError{
		kind: ErrCapacityMismatch,
		msg: "ether: capacity mismatch for '" + name + "': region " +
			utils.Utoa64(got) + ", compiled " + utils.Utoa64(want),
	}
}

func errRegionTooSmall(name string, got, need int) error {
	return &attachError{
		kind: ErrRegionTooSmall,
		msg: "ether: region for '" + name + "' is " + utils.Itoa(got) +
			" bytes, need " + utils.Itoa(need),
	}
}
