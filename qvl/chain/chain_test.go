package chain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestgate/attestgate/qvl/errs"
	"github.com/attestgate/attestgate/qvl/x509util"
)

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
		tcbSeq = append(tcbSeq, sgxExtensionValue{OID: compOID, Value: mkRawInt(i)})
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

// testChain builds a root -> intermediate -> leaf chain, each signed by its
// parent, returned leaf-first as ValidatePck/ValidateVcek expect.
func testChain(t *testing.T, notBefore, notAfter time.Time) (leaf, intermediate, root *x509.Certificate, rootKey *ecdsa.PrivateKey) {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "root"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	root, err = x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	interKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	interTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "intermediate"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	interDER, err := x509.CreateCertificate(rand.Reader, interTmpl, rootTmpl, &interKey.PublicKey, rootKey)
	require.NoError(t, err)
	intermediate, err = x509.ParseCertificate(interDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "leaf"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, interTmpl, &leafKey.PublicKey, interKey)
	require.NoError(t, err)
	leaf, err = x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return leaf, intermediate, root, rootKey
}

func TestValidatePckValid(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	fmspc := [6]byte{1, 2, 3, 4, 5, 6}
	leaf.Extensions = append(leaf.Extensions, pkix.Extension{Id: oidSGXExtension, Value: sgxExtensionBytes(t, fmspc, 9)})

	result, err := ValidatePck([]*x509.Certificate{leaf, intermediate, root}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, fmspc, result.FMSPC)
	assert.Equal(t, uint16(9), result.PCESVN)
	assert.Equal(t, root, result.Root)
}

func TestValidatePckEmptyChain(t *testing.T) {
	_, err := ValidatePck(nil, Options{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ChainInvalid))
}

func TestValidatePckMissingExtension(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := ValidatePck([]*x509.Certificate{leaf, intermediate, root}, Options{Time: &now})
	require.Error(t, err)
}

func TestValidatePckExpired(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	leaf.Extensions = append(leaf.Extensions, pkix.Extension{Id: oidSGXExtension, Value: sgxExtensionBytes(t, [6]byte{}, 1)})

	result, err := ValidatePck([]*x509.Certificate{leaf, intermediate, root}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, result.Status)
}

func TestValidatePckRevoked(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf.Extensions = append(leaf.Extensions, pkix.Extension{Id: oidSGXExtension, Value: sgxExtensionBytes(t, [6]byte{}, 1)})

	revoked, err := x509util.RevokedSerials(nil)
	require.NoError(t, err)
	revoked[leaf.SerialNumber.Text(16)] = struct{}{}

	result, err := ValidatePck([]*x509.Certificate{leaf, intermediate, root}, Options{Time: &now, Revoked: revoked})
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, result.Status)
}

func TestValidatePckInvalidLinkage(t *testing.T) {
	now := time.Now()
	leaf, intermediate, _, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	_, _, otherRoot, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf.Extensions = append(leaf.Extensions, pkix.Extension{Id: oidSGXExtension, Value: sgxExtensionBytes(t, [6]byte{}, 1)})

	result, err := ValidatePck([]*x509.Certificate{leaf, intermediate, otherRoot}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestValidatePckNonCAIntermediate(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	intermediate.IsCA = false
	leaf.Extensions = append(leaf.Extensions, pkix.Extension{Id: oidSGXExtension, Value: sgxExtensionBytes(t, [6]byte{}, 1)})

	result, err := ValidatePck([]*x509.Certificate{leaf, intermediate, root}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestValidateVcekValid(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	result, err := ValidateVcek([]*x509.Certificate{leaf, intermediate, root}, [][32]byte{RootSHA256(root)}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, root, result.Root)
	assert.Len(t, result.Chain, 3)
}

func TestValidateVcekNoPinnedARKRejected(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := ValidateVcek([]*x509.Certificate{leaf, intermediate, root}, nil, Options{Time: &now})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnknownRoot))
}

func TestValidateVcekPinnedMatch(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	result, err := ValidateVcek([]*x509.Certificate{leaf, intermediate, root}, [][32]byte{RootSHA256(root)}, Options{Time: &now})
	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)
}

func TestValidateVcekPinnedMismatch(t *testing.T) {
	now := time.Now()
	leaf, intermediate, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	_, _, otherRoot, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := ValidateVcek([]*x509.Certificate{leaf, intermediate, root}, [][32]byte{RootSHA256(otherRoot)}, Options{Time: &now})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnknownRoot))
}

func TestValidateVcekEmptyChain(t *testing.T) {
	_, err := ValidateVcek(nil, nil, Options{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ChainInvalid))
}

func TestRootSHA256Deterministic(t *testing.T) {
	now := time.Now()
	_, _, root, _ := testChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	assert.Equal(t, RootSHA256(root), RootSHA256(root))
}
