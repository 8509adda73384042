package chain

import (
	"crypto/x509"

	"github.com/attestgate/attestgate/qvl/x509util"
)

// validateLinkage walks an ordered [leaf, intermediates..., root] chain
// and returns the first Status failure encountered, in the spec's order
// {invalid, expired, revoked}, or StatusValid if the whole chain checks
// out. It does not perform pinned-root matching; callers do that against
// the returned top-of-chain certificate.
func validateLinkage(certs []*x509.Certificate, opts Options) Status {
	for i, cert := range certs {
		if i+1 < len(certs) {
			ok, err := x509util.Verify(cert, certs[i+1])
			if err != nil || !ok {
				return StatusInvalid
			}
		}
		isCA := i > 0 // leaf is not required to carry BasicConstraints.ca
		if isCA && !cert.IsCA {
			return StatusInvalid
		}
	}

	if opts.Time != nil {
		for _, cert := range certs {
			if cert.NotBefore.After(*opts.Time) || cert.NotAfter.Before(*opts.Time) {
				return StatusExpired
			}
		}
	}

	if opts.Revoked != nil {
		for _, cert := range certs {
			if x509util.IsRevoked(cert, opts.Revoked) {
				return StatusRevoked
			}
		}
	}

	return StatusValid
}

// top returns the last certificate in the chain: the presented root, or
// (if no root was presented) the topmost intermediate.
func top(certs []*x509.Certificate) *x509.Certificate {
	return certs[len(certs)-1]
}
