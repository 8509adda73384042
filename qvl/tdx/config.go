package tdx

import (
	"time"

	"github.com/attestgate/attestgate/qvl/roots"
)

// VerifyTcbFunc evaluates TCB policy for a quote. fmspc is the 6-byte
// FMSPC as a lowercase hex string; cpuSvn comes from the quote body (the
// SGX report's CPUSVN, or TDX's TEE_TCB_SVN, which doubles as the cpu_svn
// input here); pceSvn is the PCESVN from the PCK leaf's SGX extension.
type VerifyTcbFunc func(fmspc string, cpuSvn [16]byte, pceSvn int) bool

// Config is the verification policy for VerifyTdx/VerifySgx, mirroring
// the QVL's documented configuration surface.
type Config struct {
	// PinnedRoots is required: VerifyTdx/VerifySgx refuse to trust any
	// PCK root unless it is present in this set (matched by SHA-256 of
	// DER). Load the current Intel SGX Root CA via roots.LoadFromPEM and
	// pass it here; a nil or empty set is a hard UnknownRoot error, never
	// a silent accept-any-root fallback.
	PinnedRoots *roots.Set
	// Date is the verification time. A nil Date disables time validation.
	Date *time.Time
	// ExtraCertData is used only if the quote embeds no cert data.
	ExtraCertData []byte
	// CRLs is the DER CRL set applied during chain validation.
	CRLs [][]byte
	// VerifyTCB, when set, is consulted after the chain-of-trust checks.
	VerifyTCB VerifyTcbFunc
	// VerifyMeasurements, when set, is evaluated after VerifyTCB.
	VerifyMeasurements MeasurementConfig
}
