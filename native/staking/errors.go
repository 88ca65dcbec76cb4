package staking

import (
	"errors"

	"nftstake/native/common"
)

// Error classes. Every sentinel below unwraps to exactly one of them.
var (
	// ErrPolicy marks requests that are valid but not allowed yet; the caller
	// may retry later.
	ErrPolicy = errors.New("staking: policy violation")
	// ErrDerivation marks supplied accounts that do not match their expected
	// derived identities.
	ErrDerivation = errors.New("staking: account derivation mismatch")
	// ErrCustodyRejected wraps any refusal from the custody service. The
	// service's own error stays in the chain.
	ErrCustodyRejected = errors.New("staking: custody call rejected")
)

var (
	ErrFreezePeriodNotPassed = classed(ErrPolicy, "staking: freeze period not passed")

	ErrAccountNotInitialized = classed(ErrDerivation, "staking: account not initialized")
	ErrSeedsConstraint       = classed(ErrDerivation, "staking: seeds constraint violated")
	ErrAccountKindMismatch   = classed(ErrDerivation, "staking: account kind mismatch")
	ErrOwnerMismatch         = classed(ErrDerivation, "staking: stake owner mismatch")
	ErrInvalidProgramID      = classed(ErrDerivation, "staking: invalid custody program id")

	ErrAccountExists = errors.New("staking: account already initialized")
	errUninitialised = errors.New("staking: engine not initialised")
)

type classedError struct {
	class error
	msg   string
}

func classed(class error, msg string) error {
	return &classedError{class: class, msg: msg}
}

func (e *classedError) Error() string { return e.msg }

func (e *classedError) Unwrap() error { return e.class }

// ErrorClass returns a stable label for err suitable for metrics and logs.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPolicy):
		return "policy"
	case errors.Is(err, ErrDerivation):
		return "derivation"
	case errors.Is(err, ErrCustodyRejected):
		return "custody"
	case errors.Is(err, common.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}
