package azure

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"

	"github.com/cloudflare/circl/hpke"
	"golang.org/x/crypto/hkdf"

	"github.com/attestgate/attestgate/qvl/errs"
)

// ExpectedReportDataPrefix computes SHA-256(variable_data), the value the
// quote's report_data[0:32] must equal for the HCL report to be bound to
// that quote.
func ExpectedReportDataPrefix(variableData []byte) [32]byte {
	return sha256.Sum256(variableData)
}

// IsBound reports whether reportData[0:32] == SHA-256(variable_data) and
// reportData[32:64] is all zero, the two structural checks the Azure
// binding requires.
func IsBound(reportData [64]byte, variableData []byte) bool {
	prefix := ExpectedReportDataPrefix(variableData)
	if prefix != [32]byte(reportData[:32]) {
		return false
	}
	for _, b := range reportData[32:] {
		if b != 0 {
			return false
		}
	}
	return true
}

// bindingInfo/bindingExportCtx label the HPKE context so a derived secret
// can never be confused with one from a different protocol or purpose.
var (
	bindingInfo      = []byte("attestgate/azure-vtpm-ak-binding/v1")
	bindingExportCtx = []byte("export-secret")
)

// DeriveBindingSecret produces a non-replayable binding secret tied to
// the vTPM AK public key and the HCL user-data via an HPKE exporter
// secret, mirroring the session-binding export pattern used elsewhere in
// this codebase for X25519 peers. Since the AK is RSA, not X25519, the
// HPKE peer key is itself derived deterministically from the AK public
// key and user-data. The sender's ephemeral key is fresh on every call,
// so each call returns a different encapsulation (enc) and secret, even
// for the same HCL report.
func DeriveBindingSecret(akPubDER, userData []byte, exportLen int) (enc []byte, secret []byte, err error) {
	seedReader := hkdf.New(sha256.New, akPubDER, userData, bindingInfo)
	seed := make([]byte, 32)
	if _, err := seedReader.Read(seed); err != nil {
		return nil, nil, errs.Wrap(errs.MalformedField, "failed to derive hpke peer seed", err)
	}
	peerPriv, err := ecdh.X25519().NewPrivateKey(seed)
	if err != nil {
		return nil, nil, errs.Wrap(errs.MalformedField, "failed to derive hpke peer key", err)
	}

	suite := hpke.NewSuite(
		hpke.KEM_X25519_HKDF_SHA256,
		hpke.KDF_HKDF_SHA256,
		hpke.AEAD_ChaCha20Poly1305,
	)
	kem := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	rp, err := kem.UnmarshalBinaryPublicKey(peerPriv.PublicKey().Bytes())
	if err != nil {
		return nil, nil, errs.Wrap(errs.MalformedField, "hpke unmarshal peer pub", err)
	}

	sender, err := suite.NewSender(rp, bindingInfo)
	if err != nil {
		return nil, nil, errs.Wrap(errs.MalformedField, "hpke new sender", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, nil, errs.Wrap(errs.MalformedField, "hpke setup", err)
	}
	return enc, sealer.Export(bindingExportCtx, uint(exportLen)), nil
}
