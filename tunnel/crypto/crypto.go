// Package crypto implements the tunnel's primitive cryptographic
// operations: X25519 keypair generation, NaCl sealed-box encryption for
// the handshake, and XSalsa20-Poly1305 symmetric sealing for the
// established session. Every operation here is a thin, constant-time
// wrapper around golang.org/x/crypto/nacl; key material is never logged.
package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/attestgate/attestgate/tunnel/errs"
)

const (
	// KeySize is the size of an X25519 public or private key and of a
	// derived session key.
	KeySize = 32
	// NonceSize is the XSalsa20-Poly1305 nonce size used by every
	// symmetric envelope.
	NonceSize = 24
)

// KeyPair is an X25519 key pair used for the handshake's sealed-box
// exchange.
type KeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "failed to generate x25519 key pair", err)
	}
	return &KeyPair{Public: *pub, Private: *priv}, nil
}

// Seal implements the handshake's sealed-box primitive: an ephemeral
// X25519 key pair is generated, the shared secret with recipientPub is
// derived via X25519 and HSalsa20, and msg is sealed with
// XSalsa20-Poly1305 under a nonce derived from BLAKE2b(ephemeral_pk ||
// recipient_pk). The returned slice is ephemeral_pk || ciphertext.
func Seal(msg []byte, recipientPub [KeySize]byte) ([]byte, error) {
	out, err := box.SealAnonymous(nil, msg, &recipientPub, rand.Reader)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "sealed-box encryption failed", err)
	}
	return out, nil
}

// Open reverses Seal using the recipient's key pair.
func Open(sealed []byte, recipient *KeyPair) ([]byte, error) {
	out, ok := box.OpenAnonymous(nil, sealed, &recipient.Public, &recipient.Private)
	if !ok {
		return nil, errs.New(errs.DecryptFailed, "sealed-box decryption failed")
	}
	return out, nil
}

// SealSymmetric encrypts msg under key with a fresh random 24-byte nonce,
// the envelope encryption every message after the handshake uses. The
// nonce is prepended to the returned ciphertext.
func SealSymmetric(msg []byte, key [KeySize]byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "failed to generate nonce", err)
	}
	out := secretbox.Seal(nonce[:], msg, &nonce, &key)
	return out, nil
}

// OpenSymmetric reverses SealSymmetric: it splits the leading 24-byte
// nonce from sealed and decrypts the remainder under key.
func OpenSymmetric(sealed []byte, key [KeySize]byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, errs.New(errs.MalformedEnvelope, "sealed envelope shorter than nonce")
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	out, ok := secretbox.Open(nil, sealed[NonceSize:], &nonce, &key)
	if !ok {
		return nil, errs.New(errs.DecryptFailed, "symmetric decryption failed")
	}
	return out, nil
}
