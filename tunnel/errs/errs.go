// Package errs defines the typed failure kinds shared by the tunnel's
// handshake, multiplexing, and liveness layers.
package errs

import "fmt"

// Kind enumerates tunnel failure categories.
type Kind string

const (
	HandshakeTimedOut    Kind = "handshake_timed_out"
	BadBindingProof       Kind = "bad_binding_proof"
	UnexpectedState       Kind = "unexpected_state"
	DecryptFailed         Kind = "decrypt_failed"
	MalformedEnvelope     Kind = "malformed_envelope"
	RequestTimedOut       Kind = "request_timed_out"
	TunnelDisconnected    Kind = "tunnel_disconnected"
	PortMismatch          Kind = "port_mismatch"
	ReservedPath          Kind = "reserved_path"
	UnknownConnection     Kind = "unknown_connection"
	NoValidationStrategy  Kind = "no_validation_strategy"
	AttestationFailed     Kind = "attestation_failed"
)

// TunnelError is the concrete error type returned by the tunnel's
// handshake, mux, and liveness packages.
type TunnelError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *TunnelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// New builds a *TunnelError with no wrapped cause.
func New(kind Kind, msg string) *TunnelError {
	return &TunnelError{Kind: kind, Msg: msg}
}

// Wrap builds a *TunnelError that wraps an underlying cause.
func Wrap(kind Kind, msg string, err error) *TunnelError {
	return &TunnelError{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a *TunnelError of the given kind.
func Is(err error, kind Kind) bool {
	te, ok := err.(*TunnelError)
	return ok && te.Kind == kind
}
