package codec

import "github.com/attestgate/attestgate/qvl/errs"

// parseSignatureSection parses the variable-length tail of a version-3
// quote that follows header||body:
//
//	auth_data_size   uint32
//	isv_signature    [64]byte   ecdsa r||s over signed region
//	attestation_key  [64]byte   raw x||y
//	qe_report        [384]byte
//	qe_report_sig    [64]byte   ecdsa r||s, signed by PCK leaf
//	qe_auth_data_len uint16
//	qe_auth_data     []byte
//	cert_data_type   uint16
//	cert_data_size   uint32
//	cert_data        []byte
func parseSignatureSection(r *reader) (SignatureSection, error) {
	var s SignatureSection

	// auth_data_size is present on the wire but the remaining fields are
	// self-describing; we don't need it beyond bounds-checking, which the
	// reader already performs field-by-field.
	if _, err := r.u32(); err != nil {
		return s, err
	}

	if err := readFull(r, s.QuoteSignature[:]); err != nil {
		return s, err
	}
	if err := readFull(r, s.AttestationPubKey[:]); err != nil {
		return s, err
	}

	qeReportBytes, err := r.bytes(qeReportSize)
	if err != nil {
		return s, err
	}
	copy(s.QEReport.Raw[:], qeReportBytes)
	qeReader := newReader(qeReportBytes)
	if s.QEReport.Body, err = parseSgxBody(qeReader); err != nil {
		return s, err
	}

	if err := readFull(r, s.QEReportSignature[:]); err != nil {
		return s, err
	}

	qeAuthLen, err := r.u16()
	if err != nil {
		return s, err
	}
	qeAuth, err := r.bytes(int(qeAuthLen))
	if err != nil {
		return s, err
	}
	s.QEAuthData = append([]byte(nil), qeAuth...)

	certDataType, err := r.u16()
	if err != nil {
		return s, err
	}
	s.CertDataType = certDataType
	if certDataType != CertDataTypePPID && certDataType != CertDataTypePCKCertChain {
		return s, errs.New(errs.UnsupportedFormat, "unsupported cert_data_type")
	}

	certDataSize, err := r.u32()
	if err != nil {
		return s, err
	}
	certData, err := r.bytes(int(certDataSize))
	if err != nil {
		return s, err
	}
	s.CertData = append([]byte(nil), certData...)

	return s, nil
}
