package chain

import (
	"crypto/x509"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/errs"
)

// ValidateVcek validates an ordered AMD VCEK→ASK→ARK chain (leaf first)
// and checks the root's fingerprint against pinnedARK (SHA-256 of DER).
// pinnedARK is required: callers load the AMD Milan/Genoa ARK bytes they
// trust via qvl/roots.LoadFromPEM and pass its fingerprints here. A nil
// or empty pinnedARK is a hard UnknownRoot error, never a silent
// accept-any-root fallback.
func ValidateVcek(certs []*x509.Certificate, pinnedARK [][32]byte, opts Options) (*VcekResult, error) {
	if len(certs) == 0 {
		metrics.ChainValidations.WithLabelValues("vcek", "invalid").Inc()
		return nil, errs.New(errs.ChainInvalid, "empty certificate chain")
	}
	if len(pinnedARK) == 0 {
		metrics.ChainValidations.WithLabelValues("vcek", "invalid").Inc()
		return nil, errs.New(errs.UnknownRoot, "no pinned ARK roots configured; refusing to trust an arbitrary AMD root")
	}

	status := validateLinkage(certs, opts)
	root := top(certs)

	if status == StatusValid {
		digest := derSHA256(root)
		matched := false
		for _, pinned := range pinnedARK {
			if pinned == digest {
				matched = true
				break
			}
		}
		if !matched {
			metrics.ChainValidations.WithLabelValues("vcek", "invalid").Inc()
			return nil, errs.New(errs.UnknownRoot, "AMD ARK does not match any pinned root")
		}
	}

	metrics.ChainValidations.WithLabelValues("vcek", string(status)).Inc()
	return &VcekResult{
		Status: status,
		Root:   root,
		Chain:  certs,
	}, nil
}
