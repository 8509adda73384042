package handshake

import (
	"sync"

	tcrypto "github.com/attestgate/attestgate/tunnel/crypto"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// Conn tracks one control connection's position in the handshake state
// machine and, once established, its symmetric session key. It is safe
// for concurrent use: the read loop and the liveness sweeper both touch
// it.
type Conn struct {
	mu         sync.Mutex
	state      State
	sessionKey [tcrypto.KeySize]byte
	confirmed  bool
}

// NewConn returns a Conn in its initial state.
func NewConn() *Conn {
	return &Conn{state: StateAwaitingClientHello}
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkAnnounced transitions AWAITING_CLIENT_HELLO -> SERVER_ANNOUNCED.
func (c *Conn) MarkAnnounced() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingClientHello {
		c.state = StateServerAnnounced
	}
}

// Confirm records the session key from the first (and only) accepted
// ClientKX/CONFIRM on this connection and transitions to ENCRYPTED. A
// second call is a no-op that returns an error the caller should log and
// otherwise ignore, matching the protocol's "subsequent CONFIRMs are
// logged and ignored" rule.
func (c *Conn) Confirm(sessionKey [tcrypto.KeySize]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmed {
		return errs.New(errs.UnexpectedState, "duplicate CONFIRM ignored")
	}
	c.confirmed = true
	c.sessionKey = sessionKey
	c.state = StateEncrypted
	return nil
}

// SessionKey returns the established session key and whether the
// connection has reached ENCRYPTED.
func (c *Conn) SessionKey() ([tcrypto.KeySize]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey, c.state == StateEncrypted
}

// MarkClosing/MarkClosed record the connection's teardown.
func (c *Conn) MarkClosing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = StateClosing
	}
}

func (c *Conn) MarkClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	var zero [tcrypto.KeySize]byte
	c.sessionKey = zero
}

// AcceptsPlaintext reports whether a non-handshake frame is acceptable
// on this connection: only once ENCRYPTED.
func (c *Conn) AcceptsPlaintext() bool {
	return c.State() == StateEncrypted
}
