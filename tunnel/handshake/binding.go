package handshake

import (
	"github.com/attestgate/attestgate/qvl/codec"
	"github.com/attestgate/attestgate/qvl/sevsnp"
	"github.com/attestgate/attestgate/qvl/tdx"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// defaultTdxBinding implements is_userdata_bound(quote, nonce.val,
// nonce.iat, pk_s), the default TDX report_data binding check used when
// the client supplies no X25519BindingFunc override.
func defaultTdxBinding(quoteBytes []byte, nonce VerifierNonce, serverPub [32]byte) error {
	q, err := codec.ParseTdxQuote(quoteBytes)
	if err != nil {
		return err
	}
	if !tdx.IsUserdataBound(q.Body.ReportData, nonce.Val, nonce.Iat, serverPub[:]) {
		return errs.New(errs.BadBindingProof, "tdx report_data does not bind to the announced public key")
	}
	return nil
}

// defaultSevSnpBinding implements SHA-512(nonce || pk_s) ==
// report.report_data, the default SEV-SNP binding check.
func defaultSevSnpBinding(reportBytes []byte, nonce VerifierNonce, serverPub [32]byte) error {
	report, err := codec.ParseSevSnpReport(reportBytes)
	if err != nil {
		return err
	}
	if !sevsnp.IsX25519Bound(report.ReportData, nonce.Val, serverPub[:]) {
		return errs.New(errs.BadBindingProof, "sev-snp report_data does not bind to the announced public key")
	}
	return nil
}
