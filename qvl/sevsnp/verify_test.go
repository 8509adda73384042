package sevsnp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestgate/attestgate/qvl/errs"
)

// vcekChain builds a self-signed ARK root and a VCEK leaf, both
// ECDSA-P384, mirroring the AMD VCEK->ASK->ARK chain with the
// intermediate omitted (validateLinkage accepts a minimal 2-cert chain).
func vcekChain(t *testing.T) (vcekPEM, arkPEM []byte, vcekKey *ecdsa.PrivateKey, arkFingerprint [32]byte) {
	t.Helper()
	now := time.Now()

	arkKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	arkTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test ark"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	arkDER, err := x509.CreateCertificate(rand.Reader, arkTmpl, arkTmpl, &arkKey.PublicKey, arkKey)
	require.NoError(t, err)
	arkCert, err := x509.ParseCertificate(arkDER)
	require.NoError(t, err)

	vcekKey, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	vcekTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test vcek"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
	}
	vcekDER, err := x509.CreateCertificate(rand.Reader, vcekTmpl, arkTmpl, &vcekKey.PublicKey, arkKey)
	require.NoError(t, err)
	vcekCert, err := x509.ParseCertificate(vcekDER)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: vcekCert.Raw}),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: arkCert.Raw}),
		vcekKey,
		sha256.Sum256(arkCert.Raw)
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func leSigComponent(v *big.Int) []byte {
	be := make([]byte, 48)
	v.FillBytes(be)
	le := make([]byte, 48)
	for i, b := range be {
		le[47-i] = b
	}
	return append(le, make([]byte, 24)...) // zero-pad 48 -> 72
}

// buildSevSnpReport assembles a genuine 1184-byte SEV-SNP report: a
// 672-byte signed region with an all-zero policy/platform_info (so the
// debug and SMT gates both pass) and a real ECDSA-P384/SHA-384 signature
// over that region, signed by vcekKey and encoded little-endian/zero-padded
// the way codec.ParseSevSnpReport expects.
func buildSevSnpReport(t *testing.T, vcekKey *ecdsa.PrivateKey) []byte {
	t.Helper()

	var signed []byte
	signed = append(signed, u32le(2)...)           // version
	signed = append(signed, u32le(1)...)           // guest_svn
	signed = append(signed, u64le(0)...)           // policy
	signed = append(signed, make([]byte, 16)...)   // family_id
	signed = append(signed, make([]byte, 16)...)   // image_id
	signed = append(signed, u32le(0)...)           // vmpl
	signed = append(signed, u32le(0)...)           // signature_algo
	signed = append(signed, u64le(0)...)           // platform_version
	signed = append(signed, u64le(0)...)           // platform_info
	signed = append(signed, u32le(0)...)           // author_key_en
	signed = append(signed, make([]byte, 4)...)    // reserved1
	signed = append(signed, make([]byte, 64)...)   // report_data
	signed = append(signed, make([]byte, 48)...)   // measurement
	signed = append(signed, make([]byte, 32)...)   // host_data
	signed = append(signed, make([]byte, 48)...)   // id_key_digest
	signed = append(signed, make([]byte, 48)...)   // author_key_digest
	signed = append(signed, make([]byte, 32)...)   // report_id
	signed = append(signed, make([]byte, 32)...)   // report_id_ma
	signed = append(signed, u64le(0)...)           // report_tcb
	signed = append(signed, make([]byte, 24)...)   // reserved2
	signed = append(signed, make([]byte, 64)...)   // chip_id
	signed = append(signed, make([]byte, 8)...)    // committed_svn
	signed = append(signed, make([]byte, 8)...)    // committed_version
	signed = append(signed, make([]byte, 8)...)    // launch_svn
	signed = append(signed, make([]byte, 168)...)  // reserved3
	require.Len(t, signed, 672)

	digest := sha512.Sum384(signed)
	r, s, err := ecdsa.Sign(rand.Reader, vcekKey, digest[:])
	require.NoError(t, err)

	var report []byte
	report = append(report, signed...)
	report = append(report, leSigComponent(r)...)
	report = append(report, leSigComponent(s)...)
	report = append(report, make([]byte, 368)...) // trailing reserved padding
	require.Len(t, report, 1184)

	return report
}

func TestVerifySevSnpValidReport(t *testing.T) {
	vcekPEM, arkPEM, vcekKey, arkFingerprint := vcekChain(t)
	report := buildSevSnpReport(t, vcekKey)

	err := VerifySevSnp(report, Config{VcekCert: vcekPEM, ArkCert: arkPEM, PinnedARK: [][32]byte{arkFingerprint}})
	require.NoError(t, err)
}

func TestVerifySevSnpRejectsMissingPinnedARK(t *testing.T) {
	vcekPEM, arkPEM, vcekKey, _ := vcekChain(t)
	report := buildSevSnpReport(t, vcekKey)

	err := VerifySevSnp(report, Config{VcekCert: vcekPEM, ArkCert: arkPEM})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnknownRoot))
}

func TestVerifySevSnpRejectsTamperedSignature(t *testing.T) {
	vcekPEM, arkPEM, vcekKey, arkFingerprint := vcekChain(t)
	report := buildSevSnpReport(t, vcekKey)
	report[672] ^= 0xFF // first byte of the little-endian r component

	err := VerifySevSnp(report, Config{VcekCert: vcekPEM, ArkCert: arkPEM, PinnedARK: [][32]byte{arkFingerprint}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BadSevSnpSignature))
}

func TestVerifySevSnpRejectsDebugPolicyWithoutAllowDebug(t *testing.T) {
	vcekPEM, arkPEM, vcekKey, arkFingerprint := vcekChain(t)
	report := buildSevSnpReport(t, vcekKey)
	binary.LittleEndian.PutUint32(report[8:12], uint32(1<<19)) // policy low 32 bits: debug bit

	err := VerifySevSnp(report, Config{VcekCert: vcekPEM, ArkCert: arkPEM, PinnedARK: [][32]byte{arkFingerprint}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DebugEnabled))
}
