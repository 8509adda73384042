package chain

import (
	"crypto/x509"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/errs"
	"github.com/attestgate/attestgate/qvl/x509util"
)

// ValidatePck validates an ordered Intel PCK chain (leaf first) and
// returns its status plus the FMSPC/PCESVN extracted from the leaf's SGX
// extension. Pinned-root matching is the caller's responsibility (see
// qvl/tdx), since the pinned set is a per-call verification option.
func ValidatePck(certs []*x509.Certificate, opts Options) (*PckResult, error) {
	if len(certs) == 0 {
		metrics.ChainValidations.WithLabelValues("pck", "invalid").Inc()
		return nil, errs.New(errs.ChainInvalid, "empty certificate chain")
	}

	status := validateLinkage(certs, opts)
	metrics.ChainValidations.WithLabelValues("pck", string(status)).Inc()

	info, err := x509util.ExtractSGXTcbInfo(certs[0])
	if err != nil {
		return nil, err
	}

	return &PckResult{
		Status: status,
		Root:   top(certs),
		FMSPC:  info.FMSPC,
		PCESVN: info.PCESVN,
	}, nil
}

// RootSHA256 returns the SHA-256 digest of a certificate's DER encoding,
// for comparison against a pinned-root set.
func RootSHA256(cert *x509.Certificate) [32]byte { return derSHA256(cert) }
