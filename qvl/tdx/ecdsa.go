package tdx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"math/big"

	"github.com/attestgate/attestgate/qvl/errs"
)

// pubKeyFromRaw builds a *ecdsa.PublicKey from the 64-byte raw x||y
// encoding hardware attestation keys use (the "JWK of (x,y) from its 64
// raw bytes" the spec refers to).
func pubKeyFromRaw(raw [64]byte) *ecdsa.PublicKey {
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[:32]),
		Y:     new(big.Int).SetBytes(raw[32:]),
	}
}

// verifyRawECDSAP256 verifies a raw r||s (64-byte) ECDSA-P256/SHA-256
// signature, the format every hardware-rooted signature in a quote uses.
func verifyRawECDSAP256(pub *ecdsa.PublicKey, msg []byte, sig [64]byte, kind errs.Kind) error {
	digest := sha256.Sum256(msg)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return errs.New(kind, "ECDSA-P256/SHA-256 verification failed")
	}
	return nil
}
