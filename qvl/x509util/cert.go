// Package x509util provides the minimal X.509/ASN.1 surface the PCK/VCEK
// chain verifier needs: certificate and CRL parsing, ECDSA signature
// verification between a subject and its issuer, and extraction of the
// Intel SGX PCK extension (FMSPC, PCESVN, per-component TCB SVNs).
package x509util

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/attestgate/attestgate/qvl/errs"
)

// ParseCertificate accepts either PEM or raw DER bytes and returns the
// parsed certificate.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errs.Wrap(errs.UnparseableCertificate, "failed to parse certificate", err)
	}
	return cert, nil
}

// ParsePEMChain splits a PEM bundle into its constituent certificates, in
// the order they appear (leaf first, by convention of the callers in this
// module).
func ParsePEMChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errs.Wrap(errs.UnparseableCertificate, "failed to parse certificate in chain", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errs.New(errs.UnparseableCertificate, "no PEM certificates found")
	}
	return certs, nil
}

// Verify checks that subject is validly signed by issuer using issuer's
// ECDSA public key. It does not check validity windows, revocation, or
// chain membership; callers compose those checks in qvl/chain.
func Verify(subject, issuer *x509.Certificate) (bool, error) {
	pub, ok := issuer.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return false, errs.New(errs.UnsupportedCurve, "issuer public key is not ECDSA")
	}
	if err := subject.CheckSignatureFrom(issuer); err != nil {
		return false, nil
	}
	_ = pub
	return true, nil
}
