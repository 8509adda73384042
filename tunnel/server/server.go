// Package server implements the tunneling server: it upgrades a single
// control WebSocket on /__ra__ per client, runs the attestation-bound
// handshake, and after that multiplexes HTTP and WebSocket traffic over
// the resulting encrypted channel.
package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/attestgate/attestgate/internal/logger"
	"github.com/attestgate/attestgate/internal/metrics"
	tcrypto "github.com/attestgate/attestgate/tunnel/crypto"
	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
	"github.com/attestgate/attestgate/tunnel/handshake"
	"github.com/attestgate/attestgate/tunnel/httpmux"
	"github.com/attestgate/attestgate/tunnel/liveness"
	"github.com/attestgate/attestgate/tunnel/wsmux"
)

// ReservedPath is the only path this server upgrades to WebSocket.
const ReservedPath = "/__ra__"

// AnnounceFunc produces a fresh Announcement for a new control
// connection: an ephemeral X25519 key pair plus the quote binding it.
type AnnounceFunc func() (handshake.Announcement, error)

// Config configures a Server.
type Config struct {
	Announce          AnnounceFunc
	HTTPHandler       httpmux.Handler
	WSHandlers        wsmux.Handlers
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Logger            logger.Logger
}

// Server upgrades control connections and runs the tunnel protocol over
// each one.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	sweeper  *liveness.Sweeper

	mu    sync.Mutex
	conns map[string]*controlConn
}

// New builds a tunnel Server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetDefaultLogger()
	}
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*controlConn),
	}
	s.sweeper = liveness.NewSweeper(cfg.HeartbeatInterval, cfg.HeartbeatTimeout, s.evict)
	return s
}

// Handler returns the http.Handler that serves the reserved control
// path; any other path is refused, funneling all WS traffic through the
// encrypted multiplexer.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ReservedPath {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		wsConn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.cfg.Logger.Warn("control websocket upgrade failed", logger.Error(err))
			return
		}
		metrics.ControlSocketsActive.Inc()

		cc := newControlConn(wsConn, s, r.Host)
		s.mu.Lock()
		s.conns[cc.id] = cc
		s.mu.Unlock()
		s.sweeper.Register(cc.id, cc)

		cc.run()
	})
}

// Run starts the liveness sweep loop. Call in its own goroutine.
func (s *Server) Run() { s.sweeper.Run() }

// Stop ends the liveness sweep loop.
func (s *Server) Stop() { s.sweeper.Stop() }

func (s *Server) evict(id string) {
	s.mu.Lock()
	cc, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if ok {
		metrics.HeartbeatEvictions.Inc()
		cc.teardown("tunnel closed")
	}
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.sweeper.Unregister(id)
}

// controlConn is one client's control WebSocket and everything wired to
// it: its handshake state, its virtual-socket server, and its activity
// clock for the liveness sweeper.
type controlConn struct {
	id       string
	ws       *websocket.Conn
	srv      *Server
	hs       *handshake.Conn
	keyPair  *tcrypto.KeyPair
	wsServer *wsmux.Server
	host     string

	mu           sync.Mutex
	lastActivity time.Time
	writeMu      sync.Mutex
}

func newControlConn(ws *websocket.Conn, srv *Server, host string) *controlConn {
	cc := &controlConn{
		id:           fmt.Sprintf("%p", ws),
		ws:           ws,
		srv:          srv,
		hs:           handshake.NewConn(),
		host:         host,
		lastActivity: time.Now(),
	}
	cc.wsServer = wsmux.NewServer(cc.send, srv.cfg.WSHandlers)
	return cc
}

func (c *controlConn) send(frame interface{}) error {
	raw, err := envelope.Encode(frame)
	if err != nil {
		return err
	}
	return c.sendEncrypted(raw)
}

func (c *controlConn) sendEncrypted(payload []byte) error {
	key, ok := c.hs.SessionKey()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !ok {
		return errs.New(errs.UnexpectedState, "cannot send before the session is encrypted")
	}
	sealed, err := tcrypto.SealSymmetric(payload, key)
	if err != nil {
		return err
	}
	enc := envelope.Enc{Type: envelope.TypeEnc, Nonce: sealed[:tcrypto.NonceSize], Ciphertext: sealed[tcrypto.NonceSize:]}
	raw, err := envelope.Encode(enc)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

func (c *controlConn) run() {
	defer func() {
		c.srv.forget(c.id)
		metrics.ControlSocketsActive.Dec()
		c.wsServer.DropAll()
		_ = c.ws.Close()
	}()

	c.ws.SetPongHandler(func(string) error {
		c.srv.sweeper.Pong(c.id)
		c.touch()
		return nil
	})

	if err := c.announce(); err != nil {
		c.srv.cfg.Logger.Warn("handshake announce failed", logger.Error(err))
		return
	}

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.handleFrame(raw)
	}
}

func (c *controlConn) announce() error {
	kp, err := tcrypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	c.keyPair = kp

	ann, err := c.srv.cfg.Announce()
	if err != nil {
		return err
	}
	ann.KeyPair = kp

	frame := handshake.BuildServerKX(ann)
	raw, err := envelope.Encode(frame)
	if err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		return err
	}
	c.hs.MarkAnnounced()
	metrics.HandshakesTotal.WithLabelValues("server", "announced").Inc()
	return nil
}

func (c *controlConn) handleFrame(raw []byte) {
	frame, err := envelope.Decode(raw)
	if err != nil {
		c.srv.cfg.Logger.Warn("dropping malformed control frame", logger.Error(err))
		return
	}
	if frame == nil {
		return // unknown type, forward compatibility
	}

	switch f := frame.(type) {
	case envelope.ClientKXReady:
		// Already announced eagerly; nothing further to do.
	case envelope.ClientKX:
		c.handleClientKX(f)
	case envelope.Enc:
		c.handleEnc(f)
	default:
		if !c.hs.AcceptsPlaintext() {
			c.srv.cfg.Logger.Warn("dropping non-handshake frame before ENCRYPTED")
			return
		}
		c.srv.cfg.Logger.Warn("dropping non-enc frame after ENCRYPTED")
	}
}

func (c *controlConn) handleClientKX(f envelope.ClientKX) {
	key, err := handshake.OpenClientKX(f, c.keyPair)
	if err != nil {
		c.srv.cfg.Logger.Warn("failed to open client_kx", logger.Error(err))
		return
	}
	if err := c.hs.Confirm(key); err != nil {
		c.srv.cfg.Logger.Warn("duplicate confirm ignored", logger.Error(err))
		return
	}
	metrics.HandshakesTotal.WithLabelValues("server", "encrypted").Inc()
}

func (c *controlConn) handleEnc(f envelope.Enc) {
	if !c.hs.AcceptsPlaintext() {
		c.srv.cfg.Logger.Warn("dropping enc frame before ENCRYPTED")
		return
	}
	key, _ := c.hs.SessionKey()
	sealed := append(append([]byte(nil), f.Nonce...), f.Ciphertext...)
	payload, err := tcrypto.OpenSymmetric(sealed, key)
	if err != nil {
		c.srv.cfg.Logger.Warn("failed to decrypt enc frame", logger.Error(err))
		return
	}

	inner, err := envelope.Decode(payload)
	if err != nil || inner == nil {
		return
	}

	switch in := inner.(type) {
	case envelope.HTTPRequest:
		c.handleHTTPRequest(in)
	case envelope.WSConnect:
		if err := c.wsServer.HandleConnect(in); err == nil {
			metrics.WSConnectionsActive.Inc()
			metrics.WSEventsTotal.WithLabelValues("open").Inc()
		}
	case envelope.WSMessage:
		_ = c.wsServer.HandleMessage(in)
	case envelope.WSClose:
		if err := c.wsServer.HandleClose(in); err == nil {
			metrics.WSConnectionsActive.Dec()
			metrics.WSEventsTotal.WithLabelValues("close").Inc()
		}
	}
}

func (c *controlConn) handleHTTPRequest(req envelope.HTTPRequest) {
	start := time.Now()
	resp := c.dispatchHTTP(req)
	metrics.RequestDuration.Observe(time.Since(start).Seconds())

	status := "ok"
	if resp.Error != "" {
		status = "handler_error"
	}
	metrics.RequestsTotal.WithLabelValues(status).Inc()

	_ = c.send(resp)
}

func (c *controlConn) dispatchHTTP(req envelope.HTTPRequest) (resp envelope.HTTPResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = httpmux.ErrorResponse(req.RequestID, fmt.Errorf("handler panic: %v", r))
		}
	}()
	return httpmux.HandleRequest(req, c.host, "", c.srv.cfg.HTTPHandler)
}

func (c *controlConn) teardown(reason string) {
	c.wsServer.DropAll()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(1006, reason))
	_ = c.ws.Close()
}

func (c *controlConn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// liveness.Socket implementation.

func (c *controlConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *controlConn) Terminate() error {
	return c.ws.Close()
}

func (c *controlConn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}
