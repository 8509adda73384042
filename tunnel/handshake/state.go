// Package handshake implements the tunnel's attestation-bound key
// exchange: the server announces an X25519 public key anchored to a
// verified quote, the client checks the binding and seals a fresh
// session key back to it, and both sides transition to an encrypted
// session once the symmetric key is established.
package handshake

// State is a control connection's position in the handshake state
// machine.
type State string

const (
	StateAwaitingClientHello State = "AWAITING_CLIENT_HELLO"
	StateServerAnnounced     State = "SERVER_ANNOUNCED"
	StateEncrypted           State = "ENCRYPTED"
	StateClosing             State = "CLOSING"
	StateClosed              State = "CLOSED"
)
