// Package tdx implements the full TDX/SGX quote-verification chain of
// trust: PCK chain validation, QE report signature and binding checks,
// the quote body's ECDSA signature, TCB evaluation, and measurement
// matching.
package tdx

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/chain"
	"github.com/attestgate/attestgate/qvl/codec"
	"github.com/attestgate/attestgate/qvl/errs"
	"github.com/attestgate/attestgate/qvl/x509util"
)

// VerifyTdx runs the nine-step TDX chain of trust described in the QVL
// design against raw quote bytes.
func VerifyTdx(raw []byte, cfg Config) (err error) {
	start := time.Now()
	defer func() {
		metrics.QuoteVerifyDuration.WithLabelValues("tdx").Observe(time.Since(start).Seconds())
		metrics.QuotesVerified.WithLabelValues("tdx", resultLabel(err)).Inc()
	}()

	q, err := codec.ParseTdxQuote(raw)
	if err != nil {
		return err
	}

	pck, attPub, err := verifyCommon(q.Header, q.Signature, codec.TeeTypeTDX, cfg)
	if err != nil {
		return err
	}

	if err = verifyRawECDSAP256(attPub, q.SignedRegion(), q.Signature.QuoteSignature, errs.BadQuoteSignature); err != nil {
		return err
	}

	if cfg.VerifyTCB != nil {
		fmspcHex := hex.EncodeToString(pck.FMSPC[:])
		if !cfg.VerifyTCB(fmspcHex, q.Body.TeeTcbSVN, int(pck.PCESVN)) {
			err = errs.New(errs.TcbRejected, "TCB callback rejected quote")
			return err
		}
	}

	if !cfg.VerifyMeasurements.IsZero() {
		actual := map[string]string{
			"mr_td_or_enclave": hex.EncodeToString(q.Body.MrTd[:]),
			"rtmr0":            hex.EncodeToString(q.Body.Rtmr0[:]),
			"rtmr1":            hex.EncodeToString(q.Body.Rtmr1[:]),
			"rtmr2":            hex.EncodeToString(q.Body.Rtmr2[:]),
			"rtmr3":            hex.EncodeToString(q.Body.Rtmr3[:]),
			"report_data":      hex.EncodeToString(q.Body.ReportData[:]),
			"xfam":             hex.EncodeToString(q.Body.Xfam[:]),
		}
		if !cfg.VerifyMeasurements.evaluate(actual) {
			err = errs.New(errs.MeasurementMismatch, "no configured measurement record matched")
			return err
		}
	}

	return nil
}

// VerifySgx runs the same nine-step chain of trust against an SGX quote.
func VerifySgx(raw []byte, cfg Config) (err error) {
	start := time.Now()
	defer func() {
		metrics.QuoteVerifyDuration.WithLabelValues("sgx").Observe(time.Since(start).Seconds())
		metrics.QuotesVerified.WithLabelValues("sgx", resultLabel(err)).Inc()
	}()

	q, err := codec.ParseSgxQuote(raw)
	if err != nil {
		return err
	}

	pck, attPub, err := verifyCommon(q.Header, q.Signature, codec.TeeTypeSGX, cfg)
	if err != nil {
		return err
	}

	if err = verifyRawECDSAP256(attPub, q.SignedRegion(), q.Signature.QuoteSignature, errs.BadQuoteSignature); err != nil {
		return err
	}

	if cfg.VerifyTCB != nil {
		fmspcHex := hex.EncodeToString(pck.FMSPC[:])
		if !cfg.VerifyTCB(fmspcHex, q.Body.CPUSVN, int(pck.PCESVN)) {
			err = errs.New(errs.TcbRejected, "TCB callback rejected quote")
			return err
		}
	}

	if !cfg.VerifyMeasurements.IsZero() {
		actual := map[string]string{
			"mr_td_or_enclave": hex.EncodeToString(q.Body.MrEnclave[:]),
			"mr_signer":        hex.EncodeToString(q.Body.MrSigner[:]),
			"isv_prod_id":      hex.EncodeToString(u16be(q.Body.IsvProdID)),
			"isv_svn":          hex.EncodeToString(u16be(q.Body.IsvSVN)),
			"report_data":      hex.EncodeToString(q.Body.ReportData[:]),
		}
		if !cfg.VerifyMeasurements.evaluate(actual) {
			err = errs.New(errs.MeasurementMismatch, "no configured measurement record matched")
			return err
		}
	}

	return nil
}

// resultLabel maps a verification error to its metrics result label: "ok"
// on success, otherwise the error's Kind string (or "error" for anything
// that isn't a *errs.VerifyError).
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var verr *errs.VerifyError
	if errors.As(err, &verr) {
		return string(verr.Kind)
	}
	return "error"
}

func u16be(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

// verifyCommon implements steps 2-6 of the algorithm, shared by TDX and
// SGX: extract cert data, validate the PCK chain against pinned roots,
// check format fields, and verify the QE report signature and QE binding.
// It returns the PCK chain result (for FMSPC/PCESVN) and the quote's raw
// attestation public key, parsed, so callers can finish with the step 7
// body-signature check.
func verifyCommon(header codec.Header, sig codec.SignatureSection, expectedTee uint32, cfg Config) (*chain.PckResult, *ecdsa.PublicKey, error) {
	certData := sig.CertData
	if len(certData) == 0 {
		certData = cfg.ExtraCertData
	}
	if len(certData) == 0 {
		return nil, nil, errs.New(errs.MissingCertData, "quote carries no cert data and no extra_certdata was configured")
	}

	certs, err := x509util.ParsePEMChain(certData)
	if err != nil {
		return nil, nil, err
	}

	var verifyTime *time.Time
	if cfg.Date != nil {
		verifyTime = cfg.Date
	} else {
		now := time.Now()
		verifyTime = &now
	}

	revoked, err := x509util.RevokedSerials(cfg.CRLs)
	if err != nil {
		return nil, nil, err
	}

	pck, err := chain.ValidatePck(certs, chain.Options{Time: verifyTime, Revoked: revoked})
	if err != nil {
		return nil, nil, err
	}
	switch pck.Status {
	case chain.StatusExpired:
		return nil, nil, errs.New(errs.ChainExpired, "PCK chain expired")
	case chain.StatusRevoked:
		return nil, nil, errs.New(errs.ChainRevoked, "PCK chain contains a revoked certificate")
	case chain.StatusInvalid:
		return nil, nil, errs.New(errs.ChainInvalid, "PCK chain signature linkage is invalid")
	}

	if cfg.PinnedRoots == nil || len(cfg.PinnedRoots.Fingerprints()) == 0 {
		return nil, nil, errs.New(errs.UnknownRoot, "no pinned roots configured; refusing to trust an arbitrary PCK root")
	}
	digest := chain.RootSHA256(pck.Root)
	if !cfg.PinnedRoots.Contains(digest) {
		return nil, nil, errs.New(errs.UnknownRoot, "PCK chain root is not a pinned root")
	}

	if header.TeeType != expectedTee {
		return nil, nil, errs.New(errs.UnsupportedFormat, "quote tee_type does not match expected TEE")
	}
	if header.AttKeyType != codec.AttKeyTypeECDSAP256 {
		return nil, nil, errs.New(errs.UnsupportedFormat, "att_key_type must be ECDSA-P256")
	}
	if sig.CertDataType != codec.CertDataTypePPID && sig.CertDataType != codec.CertDataTypePCKCertChain {
		return nil, nil, errs.New(errs.UnsupportedFormat, "unsupported cert_data_type")
	}

	pckPub, ok := certs[0].PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, errs.New(errs.UnsupportedCurve, "PCK leaf public key is not ECDSA-P256")
	}

	if err := verifyRawECDSAP256(pckPub, sig.QEReport.Raw[:], sig.QEReportSignature, errs.BadQeReportSignature); err != nil {
		return nil, nil, err
	}

	if err := verifyQEBinding(sig); err != nil {
		return nil, nil, err
	}

	attPub := pubKeyFromRaw(sig.AttestationPubKey)
	return pck, attPub, nil
}

// verifyQEBinding checks SHA-256(attestation_public_key || qe_auth_data) ==
// qe_report.report_data[0:32]. Some issuers prepend the uncompressed-point
// marker 0x04 to the public key before hashing; both forms are accepted.
func verifyQEBinding(sig codec.SignatureSection) error {
	h := sha256.New()
	h.Write(sig.AttestationPubKey[:])
	h.Write(sig.QEAuthData)
	digest := h.Sum(nil)

	hAlt := sha256.New()
	hAlt.Write([]byte{0x04})
	hAlt.Write(sig.AttestationPubKey[:])
	hAlt.Write(sig.QEAuthData)
	digestAlt := hAlt.Sum(nil)

	reportData := sig.QEReport.Body.ReportData[:32]
	if bytesEqual(digest, reportData) || bytesEqual(digestAlt, reportData) {
		return nil
	}
	return errs.New(errs.BadQeBinding, "QE binding hash does not match QE report_data[0:32]")
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
