// Package httpmux multiplexes application HTTP requests over the
// tunnel's single encrypted control channel: the client side correlates
// requests to responses by requestId with a completion future per
// in-flight request, and the server side invokes a user handler and
// ships back one http_response per http_request.
package httpmux

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// DefaultTimeout is the request timeout applied when a Client is built
// with a zero Timeout.
const DefaultTimeout = 30 * time.Second

// Request is the caller-facing normalized form of an HTTP call to make
// over the tunnel.
type Request struct {
	Method  string
	URL     string
	Headers map[string][]string
	Body    []byte
}

// Response is the result of a tunneled HTTP call.
type Response struct {
	Status     int
	StatusText string
	Headers    map[string][]string
	Body       []byte
}

// Sender sends an encoded envelope frame to the remote peer. The tunnel
// transport layer implements this by wrapping the frame in an Enc
// envelope and writing it to the control WebSocket.
type Sender func(frame interface{}) error

// Client correlates http_request frames to their http_response by
// requestId. A zero-value Client is not usable; construct with NewClient.
type Client struct {
	send    Sender
	timeout time.Duration

	pending map[string]chan result
	mu      sync.Mutex
}

type result struct {
	resp *Response
	err  error
}

// NewClient builds an httpmux Client that writes outgoing frames with
// send. A zero timeout uses DefaultTimeout.
func NewClient(send Sender, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		send:    send,
		timeout: timeout,
		pending: make(map[string]chan result),
	}
}

// Fetch sends req over the tunnel and blocks until the matching
// http_response arrives, the tunnel disconnects (Abort is called for
// every pending request), or the timeout elapses. The timeout timer
// does not block process shutdown: ctx cancellation is honored too.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	id := uuid.NewString()
	ch := make(chan result, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	frame := envelope.HTTPRequest{
		Type:      envelope.TypeHTTPRequest,
		RequestID: id,
		Method:    req.Method,
		URL:       req.URL,
		Headers:   req.Headers,
		Body:      req.Body,
	}
	if err := c.send(frame); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errs.New(errs.RequestTimedOut, "tunneled http request timed out")
	}
}

// Deliver resolves the pending Fetch matching resp.RequestID, if any. It
// is called by the tunnel transport's read loop whenever an
// http_response frame arrives.
func (c *Client) Deliver(resp envelope.HTTPResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	c.mu.Unlock()
	if !ok {
		return
	}

	r := result{resp: &Response{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}}
	if resp.Error != "" {
		r.err = errors.New(resp.Error)
		r.resp = nil
	}
	select {
	case ch <- r:
	default:
	}
}

// Abort rejects every pending Fetch with TunnelDisconnected, called when
// the control connection drops.
func (c *Client) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		select {
		case ch <- result{err: errs.New(errs.TunnelDisconnected, "tunnel disconnected before response arrived")}:
		default:
		}
		delete(c.pending, id)
	}
}
