package x509util

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"math/big"

	"golang.org/x/sync/singleflight"

	"github.com/attestgate/attestgate/qvl/errs"
)

// crlParseGroup coalesces concurrent parses of the same CRL bytes: many
// verifications in flight at once typically reference the same handful
// of pinned CRLs, and re-running ASN.1 parsing and signature checks for
// each one is wasted work once another goroutine is already doing it.
var crlParseGroup singleflight.Group

// RevokedSerials parses a list of DER (or PEM-wrapped) CRLs and returns
// the union of all revoked certificate serial numbers across them.
func RevokedSerials(crls [][]byte) (map[string]struct{}, error) {
	revoked := make(map[string]struct{})
	for _, raw := range crls {
		list, err := parseRevocationListCached(raw)
		if err != nil {
			return nil, err
		}
		for _, entry := range list.RevokedCertificateEntries {
			revoked[serialKey(entry.SerialNumber)] = struct{}{}
		}
	}
	return revoked, nil
}

func parseRevocationListCached(raw []byte) (*x509.RevocationList, error) {
	digest := sha256.Sum256(raw)
	key := hex.EncodeToString(digest[:])

	v, err, _ := crlParseGroup.Do(key, func() (any, error) {
		der := raw
		if block, _ := pem.Decode(raw); block != nil {
			der = block.Bytes
		}
		list, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, errs.Wrap(errs.UnparseableCertificate, "failed to parse CRL", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*x509.RevocationList), nil
}

func serialKey(n *big.Int) string {
	return n.Text(16)
}

// IsRevoked reports whether cert's serial number appears in the revoked set.
func IsRevoked(cert *x509.Certificate, revoked map[string]struct{}) bool {
	_, ok := revoked[serialKey(cert.SerialNumber)]
	return ok
}
