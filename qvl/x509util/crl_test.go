package x509util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokedSerialsAndIsRevoked(t *testing.T) {
	_, _, rootCert, leafCert := generateTestChain(t)

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	// Reuse rootCert as the CRL issuer template; CreateRevocationList only
	// needs the issuer's subject and key usage bits on the template.
	rootCert.KeyUsage |= x509.KeyUsageCRLSign

	crlTmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(time.Hour),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: leafCert.SerialNumber, RevocationTime: time.Now()},
		},
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, crlTmpl, rootCert, rootKey)
	require.NoError(t, err)

	revoked, err := RevokedSerials([][]byte{crlDER})
	require.NoError(t, err)
	assert.True(t, IsRevoked(leafCert, revoked))

	_, _, _, otherLeaf := generateTestChain(t)
	assert.False(t, IsRevoked(otherLeaf, revoked))
}

func TestRevokedSerialsAcceptsPEM(t *testing.T) {
	_, _, rootCert, leafCert := generateTestChain(t)
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	rootCert.KeyUsage |= x509.KeyUsageCRLSign

	crlTmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Hour),
		NextUpdate: time.Now().Add(time.Hour),
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, crlTmpl, rootCert, rootKey)
	require.NoError(t, err)
	crlPEM := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crlDER})

	revoked, err := RevokedSerials([][]byte{crlPEM})
	require.NoError(t, err)
	assert.False(t, IsRevoked(leafCert, revoked))
}

func TestRevokedSerialsInvalidCRL(t *testing.T) {
	_, err := RevokedSerials([][]byte{[]byte("garbage")})
	require.Error(t, err)
}
