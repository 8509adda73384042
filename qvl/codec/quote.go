package codec

import "github.com/attestgate/attestgate/qvl/errs"

// ParseSgxQuote parses an SGX version-3 quote: 48-byte header, 384-byte
// SGX REPORT_BODY, and the variable signature section.
func ParseSgxQuote(buf []byte) (*SgxQuote, error) {
	if len(buf) < headerSize+sgxBodySize {
		return nil, errs.New(errs.TruncatedInput, "buffer shorter than sgx header+body")
	}
	r := newReader(buf)

	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	body, err := parseSgxBody(r)
	if err != nil {
		return nil, err
	}

	signedLen := r.pos
	sig, err := parseSignatureSection(r)
	if err != nil {
		return nil, err
	}

	return &SgxQuote{
		Header:    header,
		Body:      body,
		Signature: sig,
		raw:       buf,
		signedLen: signedLen,
	}, nil
}

// ParseTdxQuote parses a TDX version-3 quote: 48-byte header, 584-byte
// TDX quote body, and the variable signature section.
func ParseTdxQuote(buf []byte) (*TdxQuote, error) {
	if len(buf) < headerSize+tdxBodySize {
		return nil, errs.New(errs.TruncatedInput, "buffer shorter than tdx header+body")
	}
	r := newReader(buf)

	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	body, err := parseTdxBody(r)
	if err != nil {
		return nil, err
	}

	signedLen := r.pos
	sig, err := parseSignatureSection(r)
	if err != nil {
		return nil, err
	}

	return &TdxQuote{
		Header:    header,
		Body:      body,
		Signature: sig,
		raw:       buf,
		signedLen: signedLen,
	}, nil
}
