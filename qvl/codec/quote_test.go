package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestgate/attestgate/qvl/errs"
)

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func buildHeader(teeType uint32) []byte {
	var buf []byte
	buf = append(buf, u16le(3)...)               // version
	buf = append(buf, u16le(AttKeyTypeECDSAP256)...) // att_key_type
	buf = append(buf, u32le(teeType)...)
	buf = append(buf, u16le(1)...) // qe_svn
	buf = append(buf, u16le(1)...) // pce_svn
	buf = append(buf, make([]byte, 16)...) // qe_vendor_id
	buf = append(buf, make([]byte, 20)...) // user_data
	return buf
}

func buildSignatureSection() []byte {
	var buf []byte
	qeReport := make([]byte, sgxBodySize)

	sigBody := append([]byte{}, make([]byte, 64)...)  // isv_signature
	sigBody = append(sigBody, make([]byte, 64)...)    // attestation_key
	sigBody = append(sigBody, qeReport...)            // qe_report
	sigBody = append(sigBody, make([]byte, 64)...)    // qe_report_sig
	sigBody = append(sigBody, u16le(0)...)            // qe_auth_data_len
	sigBody = append(sigBody, u16le(CertDataTypePCKCertChain)...)
	sigBody = append(sigBody, u32le(0)...) // cert_data_size

	buf = append(buf, u32le(uint32(len(sigBody)))...) // auth_data_size
	buf = append(buf, sigBody...)
	return buf
}

func buildTdxQuoteBytes() []byte {
	var buf []byte
	buf = append(buf, buildHeader(TeeTypeTDX)...)
	buf = append(buf, make([]byte, tdxBodySize)...)
	buf = append(buf, buildSignatureSection()...)
	return buf
}

func buildSgxQuoteBytes() []byte {
	var buf []byte
	buf = append(buf, buildHeader(TeeTypeSGX)...)
	buf = append(buf, make([]byte, sgxBodySize)...)
	buf = append(buf, buildSignatureSection()...)
	return buf
}

func TestParseTdxQuoteWellFormed(t *testing.T) {
	quote, err := ParseTdxQuote(buildTdxQuoteBytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(3), quote.Header.Version)
	assert.Equal(t, TeeTypeTDX, quote.Header.TeeType)
	assert.Equal(t, CertDataTypePCKCertChain, quote.Signature.CertDataType)
}

func TestParseSgxQuoteWellFormed(t *testing.T) {
	quote, err := ParseSgxQuote(buildSgxQuoteBytes())
	require.NoError(t, err)
	assert.Equal(t, TeeTypeSGX, quote.Header.TeeType)
}

// tee_type and att_key_type are not re-checked against an expected value
// during parsing; qvl/tdx's VerifyTdx/VerifySgx check them post-chain-validation
// (see verifyCommon), so a quote with a foreign tee_type still parses
// here so long as it's long enough for the body shape being decoded.

func TestParseTdxQuoteTruncated(t *testing.T) {
	_, err := ParseTdxQuote([]byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TruncatedInput))
}

func TestParseHeaderRejectsBadVersion(t *testing.T) {
	buf := buildTdxQuoteBytes()
	binary.LittleEndian.PutUint16(buf[0:2], 1)

	_, err := ParseTdxQuote(buf)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedVersion))
}

func TestSignedRegionAndRaw(t *testing.T) {
	raw := buildTdxQuoteBytes()
	quote, err := ParseTdxQuote(raw)
	require.NoError(t, err)

	assert.Equal(t, raw, quote.Raw())
	assert.Equal(t, headerSize+tdxBodySize, len(quote.SignedRegion()))
}
