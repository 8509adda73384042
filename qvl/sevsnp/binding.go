package sevsnp

import "crypto/sha512"

// ExpectedReportDataFromX25519 computes SHA-512(nonce || x25519_pubkey),
// the SEV-SNP report_data binding formula (no iat term, unlike TDX's).
func ExpectedReportDataFromX25519(nonce, x25519PubKey []byte) [64]byte {
	h := sha512.New()
	h.Write(nonce)
	h.Write(x25519PubKey)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// IsX25519Bound reports whether reportData equals
// ExpectedReportDataFromX25519(nonce, x25519PubKey).
func IsX25519Bound(reportData [64]byte, nonce, x25519PubKey []byte) bool {
	return reportData == ExpectedReportDataFromX25519(nonce, x25519PubKey)
}
