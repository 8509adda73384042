// Package wsmux multiplexes virtual WebSocket connections over the
// tunnel's single encrypted control channel. Each virtual socket is
// identified by a connectionId minted by the client; the server exposes
// an on_connection callback and a per-socket virtual handle whose Send
// maps to ws_message and whose Close maps to a ws_event(close, ...).
package wsmux

import (
	"sync"

	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// Sender writes an encoded frame to the remote peer.
type Sender func(frame interface{}) error

// Socket is the application-facing handle for one virtual WebSocket
// connection on the server side.
type Socket struct {
	ID   string
	URL  string
	send Sender

	mu     sync.Mutex
	closed bool
}

// SendText sends a string ws_message to the client-side virtual socket.
func (s *Socket) SendText(text string) error {
	return s.send(envelope.NewTextMessage(s.ID, text))
}

// SendBinary sends a binary ws_message to the client-side virtual socket.
func (s *Socket) SendBinary(data []byte) error {
	return s.send(envelope.NewBinaryMessage(s.ID, data))
}

// Close emits a ws_event(close, code, reason) exactly once for this
// socket. A second call is a no-op.
func (s *Socket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.send(envelope.WSEvent{
		Type:         envelope.TypeWSEvent,
		ConnectionID: s.ID,
		EventType:    envelope.WSEventClose,
		Code:         code,
		Reason:       reason,
	})
}

// Handlers are the application callbacks a Server dispatches incoming
// frames to.
type Handlers struct {
	OnConnection func(sock *Socket)
	OnMessage    func(sock *Socket, data []byte, isText bool)
	OnClose      func(sock *Socket, code int, reason string)
}

// Server tracks every open virtual socket on one control connection.
type Server struct {
	send     Sender
	handlers Handlers

	mu      sync.Mutex
	sockets map[string]*Socket
}

// NewServer builds a wsmux Server writing outgoing frames with send.
func NewServer(send Sender, handlers Handlers) *Server {
	return &Server{
		send:     send,
		handlers: handlers,
		sockets:  make(map[string]*Socket),
	}
}

// HandleConnect processes a ws_connect frame: it creates the virtual
// socket, fires OnConnection, and emits the mandatory `open` event.
func (s *Server) HandleConnect(frame envelope.WSConnect) error {
	sock := &Socket{ID: frame.ConnectionID, URL: frame.URL, send: s.send}

	s.mu.Lock()
	s.sockets[sock.ID] = sock
	s.mu.Unlock()

	if s.handlers.OnConnection != nil {
		s.handlers.OnConnection(sock)
	}

	return s.send(envelope.WSEvent{
		Type:         envelope.TypeWSEvent,
		ConnectionID: sock.ID,
		EventType:    envelope.WSEventOpen,
	})
}

// HandleMessage dispatches a ws_message frame, in arrival order, to the
// application's OnMessage handler.
func (s *Server) HandleMessage(frame envelope.WSMessage) error {
	sock, ok := s.lookup(frame.ConnectionID)
	if !ok {
		return errs.New(errs.UnknownConnection, "ws_message for unknown connectionId")
	}
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(sock, frame.Data, frame.DataType == envelope.DataTypeString)
	}
	return nil
}

// HandleClose processes a client-initiated ws_close frame.
func (s *Server) HandleClose(frame envelope.WSClose) error {
	sock, ok := s.lookup(frame.ConnectionID)
	if !ok {
		return errs.New(errs.UnknownConnection, "ws_close for unknown connectionId")
	}
	s.forget(sock.ID)
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(sock, frame.Code, frame.Reason)
	}
	return nil
}

// DropAll invokes OnClose(sock, 1006, "tunnel closed") for every open
// virtual socket and forgets them all, called when the owning control
// connection dies. No frame is sent to the client.
func (s *Server) DropAll() {
	s.mu.Lock()
	sockets := make([]*Socket, 0, len(s.sockets))
	for _, sock := range s.sockets {
		sockets = append(sockets, sock)
	}
	s.sockets = make(map[string]*Socket)
	s.mu.Unlock()

	for _, sock := range sockets {
		sock.mu.Lock()
		sock.closed = true
		sock.mu.Unlock()
		if s.handlers.OnClose != nil {
			s.handlers.OnClose(sock, 1006, "tunnel closed")
		}
	}
}

func (s *Server) lookup(id string) (*Socket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock, ok := s.sockets[id]
	return sock, ok
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, id)
}
