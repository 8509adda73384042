// Package client implements the tunnel's client side: it dials the
// server's reserved control path, runs the attestation-bound handshake,
// and after that offers the httpmux and wsmux multiplexers over the
// resulting encrypted channel. When the control connection drops it fails
// pending work but does not re-dial by itself: ShouldReconnect and
// Reconnector (tunnel/liveness) leave scheduling the re-dial to the caller.
package client

import (
	"context"
	"fmt"
	"net/url"
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

// ReservedPath is the server's control WebSocket path.
const ReservedPath = "/__ra__"

// Config configures a Client.
type Config struct {
	// URL is the tunnel server's control WebSocket URL, e.g.
	// "wss://server.example.com/__ra__".
	URL string

	Handshake handshake.ClientConfig

	DialTimeout    time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration

	// OnDisconnect is invoked (outside any lock) every time the control
	// connection drops, after pending requests and virtual sockets have
	// already been failed.
	OnDisconnect func()

	Logger logger.Logger
}

// Client owns one control WebSocket connection to the tunnel server.
type Client struct {
	cfg Config

	mu         sync.Mutex
	ws         *websocket.Conn
	hs         *handshake.Conn
	lastActive time.Time
	closeState liveness.ClientState

	HTTP *httpmux.Client
	WS   *wsmux.Client
}

// New builds a Client. Call Dial to establish the control connection.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetDefaultLogger()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = liveness.DefaultReconnectDelay
	}

	c := &Client{cfg: cfg, hs: handshake.NewConn()}
	c.HTTP = httpmux.NewClient(c.sendEncrypted, cfg.RequestTimeout)
	return c
}

// Dial connects to the server, runs the handshake to completion, and
// starts the read loop in a new goroutine. It blocks until the
// connection reaches ENCRYPTED or the handshake fails.
func (c *Client) Dial(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	wsConn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("control websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("control websocket dial failed: %w", err)
	}

	c.mu.Lock()
	c.ws = wsConn
	c.hs = handshake.NewConn()
	c.lastActive = time.Now()
	c.mu.Unlock()

	c.WS = wsmux.NewClient(c.sendEncrypted, originHost(c.cfg.URL))

	_, raw, err := wsConn.ReadMessage()
	if err != nil {
		_ = wsConn.Close()
		return fmt.Errorf("failed to read server_kx: %w", err)
	}
	frame, err := envelope.Decode(raw)
	if err != nil {
		_ = wsConn.Close()
		return err
	}
	serverKX, ok := frame.(envelope.ServerKX)
	if !ok {
		_ = wsConn.Close()
		return errs.New(errs.UnexpectedState, "expected server_kx as the first control frame")
	}

	sessionKey, clientKX, err := handshake.Negotiate(serverKX, c.cfg.Handshake)
	if err != nil {
		_ = wsConn.Close()
		metrics.HandshakesTotal.WithLabelValues("client", "rejected").Inc()
		return err
	}

	kxRaw, err := envelope.Encode(clientKX)
	if err != nil {
		_ = wsConn.Close()
		return err
	}
	if err := wsConn.WriteMessage(websocket.BinaryMessage, kxRaw); err != nil {
		_ = wsConn.Close()
		return err
	}

	c.mu.Lock()
	c.hs.MarkAnnounced()
	_ = c.hs.Confirm(sessionKey)
	c.mu.Unlock()
	metrics.HandshakesTotal.WithLabelValues("client", "encrypted").Inc()

	go c.readLoop()
	return nil
}

// originHost returns rawURL's host:port, the value the tunnel restricts
// every virtual WebSocket target to.
func originHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (c *Client) sendEncrypted(frame interface{}) error {
	raw, err := envelope.Encode(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	key, ok := c.hs.SessionKey()
	wsConn := c.ws
	c.mu.Unlock()
	if !ok || wsConn == nil {
		return errs.New(errs.TunnelDisconnected, "control connection is not encrypted")
	}

	sealed, err := tcrypto.SealSymmetric(raw, key)
	if err != nil {
		return err
	}
	enc := envelope.Enc{Type: envelope.TypeEnc, Nonce: sealed[:tcrypto.NonceSize], Ciphertext: sealed[tcrypto.NonceSize:]}
	encRaw, err := envelope.Encode(enc)
	if err != nil {
		return err
	}
	return wsConn.WriteMessage(websocket.BinaryMessage, encRaw)
}

func (c *Client) readLoop() {
	c.mu.Lock()
	wsConn := c.ws
	c.mu.Unlock()

	defer c.handleDisconnect()

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()

		frame, err := envelope.Decode(raw)
		if err != nil || frame == nil {
			continue
		}
		enc, ok := frame.(envelope.Enc)
		if !ok {
			continue
		}
		c.handleEnc(enc)
	}
}

func (c *Client) handleEnc(f envelope.Enc) {
	c.mu.Lock()
	key, ok := c.hs.SessionKey()
	c.mu.Unlock()
	if !ok {
		return
	}

	sealed := append(append([]byte(nil), f.Nonce...), f.Ciphertext...)
	payload, err := tcrypto.OpenSymmetric(sealed, key)
	if err != nil {
		c.cfg.Logger.Warn("failed to decrypt enc frame", logger.Error(err))
		return
	}

	inner, err := envelope.Decode(payload)
	if err != nil || inner == nil {
		return
	}

	switch in := inner.(type) {
	case envelope.HTTPResponse:
		c.HTTP.Deliver(in)
	case envelope.WSEvent:
		c.WS.HandleEvent(in)
	case envelope.WSMessage:
		_, _ = c.WS.HandleMessage(in)
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	c.hs.MarkClosed()
	c.mu.Unlock()

	c.HTTP.Abort()
	c.WS.DropAll()

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect()
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

// Close explicitly closes the control connection; the resulting
// disconnect will not trigger a caller-scheduled reconnect (see
// ShouldReconnect).
func (c *Client) Close() error {
	c.mu.Lock()
	c.closeState.MarkExplicitClose()
	c.hs.MarkClosing()
	wsConn := c.ws
	c.mu.Unlock()

	if wsConn == nil {
		return nil
	}
	_ = wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return wsConn.Close()
}

// ShouldReconnect reports whether the last disconnect was unexpected and
// a caller-driven reconnect loop (via liveness.Reconnector) should fire.
func (c *Client) ShouldReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeState.ShouldReconnect()
}

// Reconnector builds a liveness.Reconnector that re-dials this client
// using ctx and the client's configured delay.
func (c *Client) Reconnector(ctx context.Context) *liveness.Reconnector {
	return liveness.NewReconnector(c.cfg.ReconnectDelay, func() error {
		return c.Dial(ctx)
	})
}
