package wsmux

import (
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// ReservedPath is the control channel's WebSocket upgrade path; the
// tunnel refuses unencrypted upgrades to any other path.
const ReservedPath = "/__ra__"

// virtualState mirrors the browser WebSocket readyState values the
// client-side mock socket exposes.
type virtualState int

const (
	stateConnecting virtualState = iota
	stateOpen
	stateClosed
)

// VirtualSocket is the client-side mock WebSocket: send calls issued
// while CONNECTING are buffered and flushed, in order, once the matching
// `open` ws_event arrives.
type VirtualSocket struct {
	ID   string
	send Sender

	mu       sync.Mutex
	state    virtualState
	outbox   []envelope.WSMessage
	onClose  func(code int, reason string)
	onErr    func(msg string)
	onMsg    func(data []byte, isText bool)
}

// newVirtualSocket builds a socket in the CONNECTING state.
func newVirtualSocket(id string, send Sender) *VirtualSocket {
	return &VirtualSocket{ID: id, send: send, state: stateConnecting}
}

// OnClose registers the callback invoked when the server closes this
// virtual socket or the tunnel drops.
func (v *VirtualSocket) OnClose(cb func(code int, reason string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onClose = cb
}

// OnError registers the callback invoked on a server-reported ws_event
// error.
func (v *VirtualSocket) OnError(cb func(msg string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onErr = cb
}

// OnMessage registers the callback invoked for every ws_message the
// server sends on this virtual socket.
func (v *VirtualSocket) OnMessage(cb func(data []byte, isText bool)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onMsg = cb
}

// SendText enqueues or immediately sends a string message.
func (v *VirtualSocket) SendText(text string) error {
	return v.enqueue(envelope.NewTextMessage(v.ID, text))
}

// SendBinary enqueues or immediately sends a binary message.
func (v *VirtualSocket) SendBinary(data []byte) error {
	return v.enqueue(envelope.NewBinaryMessage(v.ID, data))
}

func (v *VirtualSocket) enqueue(msg envelope.WSMessage) error {
	v.mu.Lock()
	if v.state == stateConnecting {
		v.outbox = append(v.outbox, msg)
		v.mu.Unlock()
		return nil
	}
	open := v.state == stateOpen
	v.mu.Unlock()
	if !open {
		return errs.New(errs.UnexpectedState, "send on a closed virtual socket")
	}
	return v.send(msg)
}

// markOpen transitions CONNECTING -> OPEN and flushes the buffered
// outbox in order.
func (v *VirtualSocket) markOpen() error {
	v.mu.Lock()
	v.state = stateOpen
	buffered := v.outbox
	v.outbox = nil
	v.mu.Unlock()

	for _, msg := range buffered {
		if err := v.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (v *VirtualSocket) markClosed(code int, reason string) {
	v.mu.Lock()
	v.state = stateClosed
	cb := v.onClose
	v.mu.Unlock()
	if cb != nil {
		cb(code, reason)
	}
}

// Client mints connectionIds and tracks the client's view of every
// virtual socket it opened.
type Client struct {
	send        Sender
	originHost  string

	mu      sync.Mutex
	sockets map[string]*VirtualSocket
}

// NewClient builds a wsmux Client whose virtual sockets are restricted
// to originHost (the "host:port" the tunnel itself connects to).
func NewClient(send Sender, originHost string) *Client {
	return &Client{send: send, originHost: originHost, sockets: make(map[string]*VirtualSocket)}
}

// Open validates targetURL's host:port against the tunnel origin,
// mints a connectionId, sends ws_connect, and returns the new virtual
// socket in the CONNECTING state.
func (c *Client) Open(targetURL string, protocols []string) (*VirtualSocket, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "invalid websocket url", err)
	}
	if u.Path == ReservedPath {
		return nil, errs.New(errs.ReservedPath, "cannot open a virtual websocket on the reserved control path")
	}
	if u.Host != c.originHost {
		return nil, errs.New(errs.PortMismatch, "virtual websocket host:port must match the tunnel origin")
	}

	id := uuid.NewString()
	c.mu.Lock()
	sock := newVirtualSocket(id, c.send)
	c.sockets[id] = sock
	c.mu.Unlock()

	err = c.send(envelope.WSConnect{
		Type:         envelope.TypeWSConnect,
		ConnectionID: id,
		URL:          targetURL,
		Protocols:    protocols,
	})
	if err != nil {
		return nil, err
	}
	return sock, nil
}

// HandleEvent dispatches a server-sent ws_event to the matching virtual
// socket.
func (c *Client) HandleEvent(frame envelope.WSEvent) {
	sock, ok := c.lookup(frame.ConnectionID)
	if !ok {
		return
	}
	switch frame.EventType {
	case envelope.WSEventOpen:
		_ = sock.markOpen()
	case envelope.WSEventClose:
		c.forget(sock.ID)
		sock.markClosed(frame.Code, frame.Reason)
	case envelope.WSEventError:
		sock.mu.Lock()
		cb := sock.onErr
		sock.mu.Unlock()
		if cb != nil {
			cb(frame.Error)
		}
	}
}

// HandleMessage dispatches a server-sent ws_message to the matching
// virtual socket's OnMessage callback, if any, and returns the socket.
func (c *Client) HandleMessage(frame envelope.WSMessage) (*VirtualSocket, bool) {
	sock, ok := c.lookup(frame.ConnectionID)
	if !ok {
		return nil, false
	}
	sock.mu.Lock()
	cb := sock.onMsg
	sock.mu.Unlock()
	if cb != nil {
		cb(frame.Data, frame.DataType == envelope.DataTypeString)
	}
	return sock, true
}

// DropAll synthesizes a close(1006, "tunnel closed") for every open
// virtual socket, called when the control connection dies.
func (c *Client) DropAll() {
	c.mu.Lock()
	sockets := make([]*VirtualSocket, 0, len(c.sockets))
	for _, sock := range c.sockets {
		sockets = append(sockets, sock)
	}
	c.sockets = make(map[string]*VirtualSocket)
	c.mu.Unlock()

	for _, sock := range sockets {
		sock.markClosed(1006, "tunnel closed")
	}
}

func (c *Client) lookup(id string) (*VirtualSocket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sock, ok := c.sockets[id]
	return sock, ok
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sockets, id)
}
