package mktintf

import (
	"errors"
	"fmt"

	"github.com/KarpelesLab/apirouter"
)

// Precondition errors, resolved before any ledger call is made.
var (
	ErrNoAccount       = errors.New("no wallet connected")
	ErrNetworkMismatch = errors.New("incorrect network, please switch to the Magma Testnet")
)

// ErrUserDeclined is returned when the wallet holder rejects a signing
// request. Code 4001 per EIP-1193.
var ErrUserDeclined = &apirouter.Error{Code: 4001, Message: "User rejected the request."}

// ErrReverted is returned when the ledger accepted a transaction but the
// receipt came back with a failure status.
var ErrReverted = errors.New("transaction reverted by the ledger")

// ValidationError is bad user input, caught locally.
type ValidationError struct {
	Reason string
}

func (v *ValidationError) Error() string {
	return v.Reason
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RemoteReadError aggregates the failure of a remote read (metadata fetch or
// contract call). A bulk scope pass reports at most one of these.
type RemoteReadError struct {
	Op  string
	Err error
}

func (r *RemoteReadError) Error() string {
	return fmt.Sprintf("remote read %s failed: %s", r.Op, r.Err)
}

func (r *RemoteReadError) Unwrap() error {
	return r.Err
}
