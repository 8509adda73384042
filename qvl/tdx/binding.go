package tdx

import "crypto/sha512"

// ExpectedReportDataFromUserdata computes SHA-512(nonce || iat || userdata),
// the TDX report_data binding formula: a verifier-chosen nonce and an
// issued-at value tie the hash to a specific handshake attempt, and
// userdata (typically a public key) ties it to a specific key.
func ExpectedReportDataFromUserdata(nonce, iat, userdata []byte) [64]byte {
	return sha512.Sum512(concat(nonce, iat, userdata))
}

// IsUserdataBound reports whether quote's 64-byte report_data equals
// ExpectedReportDataFromUserdata(nonce, iat, userdata).
func IsUserdataBound(reportData [64]byte, nonce, iat, userdata []byte) bool {
	want := ExpectedReportDataFromUserdata(nonce, iat, userdata)
	return reportData == want
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
