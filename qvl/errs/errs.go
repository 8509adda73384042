// Package errs defines the typed failure kinds shared by every quote and
// report verifier in qvl. Verifiers never panic on malformed input; they
// return a *VerifyError carrying one of the Kind values below.
package errs

import "fmt"

// Kind enumerates the verification failure categories. Callers that need
// to branch on failure reason should switch on Kind rather than parse
// error strings.
type Kind string

const (
	// Parse failures.
	TruncatedInput       Kind = "truncated_input"
	UnsupportedVersion   Kind = "unsupported_version"
	UnsupportedAlgorithm Kind = "unsupported_algorithm"
	MalformedField       Kind = "malformed_field"

	// Chain failures.
	ChainExpired Kind = "chain_expired"
	ChainRevoked Kind = "chain_revoked"
	ChainInvalid Kind = "chain_invalid"
	UnknownRoot  Kind = "unknown_root"

	// Signature failures.
	BadQeReportSignature Kind = "bad_qe_report_signature"
	BadQeBinding          Kind = "bad_qe_binding"
	BadQuoteSignature     Kind = "bad_quote_signature"
	BadSevSnpSignature    Kind = "bad_sevsnp_signature"

	// Policy failures.
	TcbRejected          Kind = "tcb_rejected"
	MeasurementMismatch  Kind = "measurement_mismatch"
	DebugEnabled         Kind = "debug_enabled"
	VmplTooLow           Kind = "vmpl_too_low"
	SmtPolicyViolation   Kind = "smt_policy_violation"

	// Binding failures.
	X25519BindingFailed Kind = "x25519_binding_failed"
	HclBindingFailed    Kind = "hcl_binding_failed"

	// Format failures.
	MissingCertData  Kind = "missing_cert_data"
	UnsupportedFormat Kind = "unsupported_format"

	// X.509 helper failures.
	UnparseableCertificate Kind = "unparseable_certificate"
	UnsupportedCurve       Kind = "unsupported_curve"
	MalformedExtension     Kind = "malformed_extension"
)

// VerifyError is the concrete error type returned by every qvl verifier.
type VerifyError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// New builds a *VerifyError with no wrapped cause.
func New(kind Kind, msg string) *VerifyError {
	return &VerifyError{Kind: kind, Msg: msg}
}

// Wrap builds a *VerifyError that wraps an underlying cause.
func Wrap(kind Kind, msg string, err error) *VerifyError {
	return &VerifyError{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a *VerifyError of the given kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*VerifyError)
	return ok && ve.Kind == kind
}
