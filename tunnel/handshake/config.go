package handshake

import (
	"github.com/attestgate/attestgate/qvl/sevsnp"
	"github.com/attestgate/attestgate/qvl/tdx"
)

// VerifierNonce is the client-chosen binding material that a verifier
// folds into a quote's report_data, tying an attestation to this
// specific handshake attempt.
type VerifierNonce struct {
	Val []byte
	Iat []byte
}

// CustomVerifyQuoteFunc lets a client supply arbitrary quote validation
// logic (e.g. SGX enclaves the QVL's measurement model doesn't cover).
type CustomVerifyQuoteFunc func(quote []byte) error

// X25519BindingFunc overrides the default report_data binding check.
type X25519BindingFunc func(quote []byte, serverPub [32]byte) error

// ClientConfig is the client's attestation-verification policy for a
// handshake.
type ClientConfig struct {
	Measurements       tdx.MeasurementConfig
	CustomVerifyQuote  CustomVerifyQuoteFunc
	X25519Binding      X25519BindingFunc
	SGX                bool
	SevSNP             bool
	TdxVerifyConfig    tdx.Config
	SevSnpVerifyConfig sevsnp.Config
	Nonce              VerifierNonce
}

// validationConfigured reports whether the client has a way to validate
// a presented quote: either a measurement policy or custom verification
// logic. A handshake with neither is rejected with NoValidationStrategy
// before any network I/O happens. SGX mode carries no QVL measurement
// model of its own, so it additionally requires CustomVerifyQuote: without
// it there is no verification logic for an SGX quote to run at all.
func (c ClientConfig) validationConfigured() bool {
	if c.SGX && c.CustomVerifyQuote == nil {
		return false
	}
	return !c.Measurements.IsZero() || c.CustomVerifyQuote != nil
}
