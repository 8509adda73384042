// Package sevsnp verifies AMD SEV-SNP attestation reports: the signature
// algorithm and version checks, the guest policy and platform-info gates,
// the VCEK→ASK→ARK chain and ECDSA-P384/SHA-384 report signature, and
// measurement matching.
package sevsnp

import "time"

const (
	policyBitSMT   = 1 << 16
	policyBitDebug = 1 << 19
	platformBitSMT = 1 << 0
)

// VerifyTcbFunc evaluates TCB policy for a report's reported TCB value.
type VerifyTcbFunc func(reportedTCB uint64) bool

// Config is the verification policy for VerifySevSnp.
type Config struct {
	// VcekCert, AskCert, ArkCert are the PEM-or-DER leaf/intermediate/root
	// of the VCEK chain. VcekCert is required whenever signature
	// verification is wanted. When ArkCert is omitted, the topmost
	// certificate supplied (AskCert, or VcekCert alone) is the one whose
	// SHA-256 fingerprint must appear in PinnedARK; its issuer is not
	// looked up among the pinned roots.
	VcekCert []byte
	AskCert  []byte
	ArkCert  []byte

	// PinnedARK is the set of trusted AMD root fingerprints (SHA-256 of
	// DER), required whenever VcekCert is set. A nil or empty set is a
	// hard UnknownRoot error, never a silent accept-any-root fallback.
	PinnedARK [][32]byte

	// Date is the verification time; nil disables validity-window checks.
	Date *time.Time
	// CRLs is the DER CRL set applied during chain validation.
	CRLs [][]byte

	// AllowDebug permits policy.DEBUG_ALLOWED; default false.
	AllowDebug bool
	// MaxVMPL rejects reports whose VMPL exceeds it when non-zero.
	MaxVMPL uint32
	// EnforceSMTPolicy defaults to true (reject when policy disallows SMT
	// but the platform reports SMT enabled). Set to false to disable.
	EnforceSMTPolicy *bool

	VerifyTCB          VerifyTcbFunc
	VerifyMeasurements MeasurementConfig
}

// enforceSMT reports the effective EnforceSMTPolicy value, true by default.
func (c Config) enforceSMT() bool {
	if c.EnforceSMTPolicy == nil {
		return true
	}
	return *c.EnforceSMTPolicy
}
