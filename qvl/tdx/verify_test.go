package tdx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestgate/attestgate/qvl/codec"
	"github.com/attestgate/attestgate/qvl/errs"
	"github.com/attestgate/attestgate/qvl/roots"
)

// Local duplicates of the SGX PCK extension ASN.1 shape: qvl/tdx can't
// reach qvl/x509util's unexported test helpers, so every package that
// needs a genuine SGX extension builds its own minimal encoder.
var (
	oidSGXExtension = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1}
	oidSGXTCB       = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2}
	oidSGXPCESVN    = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2, 17}
	oidSGXFMSPC     = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 4}
)

type sgxExtensionValue struct {
	OID   asn1.ObjectIdentifier
	Value asn1.RawValue
}

func mkRawInt(v int) asn1.RawValue {
	b, err := asn1.Marshal(v)
	if err != nil {
		panic(err)
	}
	return asn1.RawValue{FullBytes: b}
}

func mkRawOctet(b []byte) asn1.RawValue {
	out, err := asn1.Marshal(b)
	if err != nil {
		panic(err)
	}
	return asn1.RawValue{FullBytes: out}
}

func sgxExtensionBytes(t *testing.T, fmspc [6]byte, pcesvn int) []byte {
	t.Helper()
	tcbSeq := []sgxExtensionValue{{OID: oidSGXPCESVN, Value: mkRawInt(pcesvn)}}
	for i := 0; i < 16; i++ {
		compOID := append(append(asn1.ObjectIdentifier{}, oidSGXTCB...), i+1)
		tcbSeq = append(tcbSeq, sgxExtensionValue{OID: compOID, Value: mkRawInt(0)})
	}
	tcbBytes, err := asn1.Marshal(tcbSeq)
	require.NoError(t, err)
	outer := []sgxExtensionValue{
		{OID: oidSGXFMSPC, Value: mkRawOctet(fmspc[:])},
		{OID: oidSGXTCB, Value: asn1.RawValue{FullBytes: tcbBytes}},
	}
	extBytes, err := asn1.Marshal(outer)
	require.NoError(t, err)
	return extBytes
}

// pckChain builds a self-signed root plus an SGX-extension-bearing leaf,
// both ECDSA-P256, and returns the leaf-first PEM bundle verifyCommon
// expects plus the leaf's private key (the PCK key that signs QE reports)
// and the parsed root certificate (for pinning).
func pckChain(t *testing.T) (pemBundle []byte, leafKey *ecdsa.PrivateKey, root *x509.Certificate) {
	t.Helper()
	now := time.Now()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test pck root"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test pck leaf"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		ExtraExtensions: []pkix.Extension{{
			Id:    oidSGXExtension,
			Value: sgxExtensionBytes(t, [6]byte{1, 2, 3, 4, 5, 6}, 5),
		}},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, rootTmpl, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)
	leafCert, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	leafPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafCert.Raw})
	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootCert.Raw})
	return append(append([]byte{}, leafPEM...), rootPEM...), leafKey, rootCert
}

func signRawP256(t *testing.T, priv *ecdsa.PrivateKey, msg []byte) [64]byte {
	t.Helper()
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	var out [64]byte
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

func rawPub64(priv *ecdsa.PrivateKey) [64]byte {
	var out [64]byte
	priv.PublicKey.X.FillBytes(out[:32])
	priv.PublicKey.Y.FillBytes(out[32:])
	return out
}

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

// qeReportBody builds a 384-byte SGX REPORT_BODY for the quoting enclave,
// binding attPub (and empty qe_auth_data) into its report_data[0:32].
func qeReportBody(attPub [64]byte) []byte {
	h := sha256.New()
	h.Write(attPub[:])
	binding := h.Sum(nil)

	var buf []byte
	buf = append(buf, make([]byte, 16)...) // cpusvn
	buf = append(buf, u32le(0)...)         // misc_select
	buf = append(buf, make([]byte, 28)...) // reserved1
	buf = append(buf, make([]byte, 16)...) // attributes
	buf = append(buf, make([]byte, 32)...) // mrenclave
	buf = append(buf, make([]byte, 32)...) // reserved2
	buf = append(buf, make([]byte, 32)...) // mrsigner
	buf = append(buf, make([]byte, 96)...) // reserved3
	buf = append(buf, u16le(0)...)         // isv_prod_id
	buf = append(buf, u16le(0)...)         // isv_svn
	buf = append(buf, make([]byte, 60)...) // reserved4
	reportData := make([]byte, 64)
	copy(reportData[:32], binding)
	buf = append(buf, reportData...)
	return buf
}

func buildHeader(teeType uint32) []byte {
	var buf []byte
	buf = append(buf, u16le(3)...)
	buf = append(buf, u16le(codec.AttKeyTypeECDSAP256)...)
	buf = append(buf, u32le(teeType)...)
	buf = append(buf, u16le(1)...)
	buf = append(buf, u16le(5)...)
	buf = append(buf, make([]byte, 16)...)
	buf = append(buf, make([]byte, 20)...)
	return buf
}

// buildTdxQuote assembles a complete, genuinely-signed TDX version-3 quote:
// a real PCK chain, a real QE report signed by the PCK leaf, a real
// attestation signature over header||body signed by a fresh ephemeral key,
// and the QE-binding hash tying the attestation key to the QE report. It
// also returns the chain's root certificate, which callers must pin via
// Config.PinnedRoots (required, never defaulted).
func buildTdxQuote(t *testing.T) (quote []byte, pemBundle []byte, root *x509.Certificate) {
	t.Helper()

	pemBundle, pckKey, root := pckChain(t)
	attKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	attPub := rawPub64(attKey)

	header := buildHeader(codec.TeeTypeTDX)
	body := make([]byte, 584)
	signedRegion := append(append([]byte{}, header...), body...)
	quoteSig := signRawP256(t, attKey, signedRegion)

	qeReport := qeReportBody(attPub)
	qeReportSig := signRawP256(t, pckKey, qeReport)

	var sigBody []byte
	sigBody = append(sigBody, quoteSig[:]...)
	sigBody = append(sigBody, attPub[:]...)
	sigBody = append(sigBody, qeReport...)
	sigBody = append(sigBody, qeReportSig[:]...)
	sigBody = append(sigBody, u16le(0)...) // qe_auth_data_len
	sigBody = append(sigBody, u16le(codec.CertDataTypePCKCertChain)...)
	sigBody = append(sigBody, u32le(uint32(len(pemBundle)))...)
	sigBody = append(sigBody, pemBundle...)

	quote = append(quote, header...)
	quote = append(quote, body...)
	quote = append(quote, u32le(uint32(len(sigBody)))...)
	quote = append(quote, sigBody...)

	return quote, pemBundle, root
}

func TestVerifyTdxValidQuote(t *testing.T) {
	quote, _, root := buildTdxQuote(t)
	err := VerifyTdx(quote, Config{PinnedRoots: roots.FromCerts(root)})
	require.NoError(t, err)
}

func TestVerifyTdxRejectsMissingPinnedRoots(t *testing.T) {
	quote, _, _ := buildTdxQuote(t)
	err := VerifyTdx(quote, Config{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnknownRoot))
}

func TestVerifyTdxRejectsTamperedQuoteSignature(t *testing.T) {
	quote, _, root := buildTdxQuote(t)
	// QuoteSignature starts right after the header||body (48+584) and the
	// 4-byte auth_data_size field.
	quote[48+584+4] ^= 0xFF

	err := VerifyTdx(quote, Config{PinnedRoots: roots.FromCerts(root)})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BadQuoteSignature))
}

func TestVerifyTdxRejectsMismatchedTeeType(t *testing.T) {
	// buildTdxQuote signs a TDX-shaped body (584 bytes); relabeling the
	// header as SGX after the fact exercises verifyCommon's post-chain
	// tee_type check without needing a second full quote construction.
	quote, _, root := buildTdxQuote(t)
	binary.LittleEndian.PutUint32(quote[4:8], codec.TeeTypeSGX)

	err := VerifyTdx(quote, Config{PinnedRoots: roots.FromCerts(root)})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedFormat))
}

func TestVerifyTdxRejectsUntrustedPinnedRoot(t *testing.T) {
	quote, _, _ := buildTdxQuote(t)
	otherRootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	otherRootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(99),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	otherDER, err := x509.CreateCertificate(rand.Reader, otherRootTmpl, otherRootTmpl, &otherRootKey.PublicKey, otherRootKey)
	require.NoError(t, err)
	otherRoot, err := x509.ParseCertificate(otherDER)
	require.NoError(t, err)

	pinned := roots.FromCerts(otherRoot)
	err = VerifyTdx(quote, Config{PinnedRoots: pinned})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnknownRoot))
}
