package handshake

import (
	tcrypto "github.com/attestgate/attestgate/tunnel/crypto"
	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// Announcement is everything the server needs to hand the transport
// layer to build a ServerKX frame: its ephemeral key pair and the
// evidence proving that key pair belongs to the attested workload.
type Announcement struct {
	KeyPair      *tcrypto.KeyPair
	Quote        []byte
	RuntimeData  []byte
	VerifierData *envelope.VerifierData
	SevSnpData   *envelope.SevSnpData
}

// BuildServerKX converts an Announcement into the wire frame.
func BuildServerKX(a Announcement) envelope.ServerKX {
	return envelope.ServerKX{
		Type:            envelope.TypeServerKX,
		X25519PublicKey: append([]byte(nil), a.KeyPair.Public[:]...),
		Quote:           a.Quote,
		RuntimeData:     a.RuntimeData,
		VerifierData:    a.VerifierData,
		SevSnpData:      a.SevSnpData,
	}
}

// OpenClientKX decrypts the client's sealed session key against the
// server's key pair. Per the protocol, only the first ClientKX on a
// connection is honored; callers enforce that by tracking State and
// refusing to call this more than once per connection.
func OpenClientKX(msg envelope.ClientKX, keyPair *tcrypto.KeyPair) ([tcrypto.KeySize]byte, error) {
	var sessionKey [tcrypto.KeySize]byte
	opened, err := tcrypto.Open(msg.SealedSymmetricKey, keyPair)
	if err != nil {
		return sessionKey, err
	}
	if len(opened) != tcrypto.KeySize {
		return sessionKey, errs.New(errs.MalformedEnvelope, "sealed session key has unexpected length")
	}
	copy(sessionKey[:], opened)
	return sessionKey, nil
}
