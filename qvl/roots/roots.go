// Package roots loads and fingerprints the pinned root certificates used
// to anchor PCK and VCEK chain validation. This package never embeds
// vendor root certificates itself — Intel and AMD periodically rotate and
// add regional roots, and shipping a stale copy is worse than requiring
// an explicit, auditable source. Callers load the current Intel SGX Root
// CA and AMD ARK (Milan/Genoa/Turin) certificates from files and pass the
// resulting Set into qvl/tdx, qvl/sevsnp, and qvl/chain.
package roots

import (
	"crypto/sha256"
	"crypto/x509"
	"os"

	"github.com/attestgate/attestgate/qvl/x509util"
)

// Set is a collection of pinned root certificates, compared by SHA-256 of
// their DER encoding.
type Set struct {
	Certs        []*x509.Certificate
	fingerprints [][32]byte
}

// LoadFromPEM reads one or more PEM files, each of which may contain
// multiple concatenated certificates, and returns the combined Set.
func LoadFromPEM(paths ...string) (*Set, error) {
	s := &Set{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		certs, err := x509util.ParsePEMChain(data)
		if err != nil {
			return nil, err
		}
		s.add(certs...)
	}
	return s, nil
}

// FromCerts builds a Set directly from already-parsed certificates, for
// tests and for callers that source roots from something other than a
// PEM file (a secret store, an embedded test fixture, etc).
func FromCerts(certs ...*x509.Certificate) *Set {
	s := &Set{}
	s.add(certs...)
	return s
}

func (s *Set) add(certs ...*x509.Certificate) {
	for _, c := range certs {
		s.Certs = append(s.Certs, c)
		s.fingerprints = append(s.fingerprints, sha256.Sum256(c.Raw))
	}
}

// Fingerprints returns the SHA-256-of-DER digest for every root in the
// set, the representation qvl/chain and qvl/tdx compare against.
func (s *Set) Fingerprints() [][32]byte {
	if s == nil {
		return nil
	}
	return s.fingerprints
}

// Contains reports whether digest matches any pinned root.
func (s *Set) Contains(digest [32]byte) bool {
	if s == nil {
		return false
	}
	for _, fp := range s.fingerprints {
		if fp == digest {
			return true
		}
	}
	return false
}
