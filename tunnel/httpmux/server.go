package httpmux

import (
	"net/url"
	"strings"

	"github.com/attestgate/attestgate/tunnel/envelope"
)

// Handler processes a normalized tunneled request and produces a
// response. It mirrors net/http.Handler's contract without depending on
// it directly, since the request/response here are already fully
// buffered frames rather than streams.
type Handler func(req Request) Response

// HandleRequest synthesizes a canonical request from an incoming
// http_request frame, invokes handler, and returns the http_response
// frame to send back. It never returns an error: handler panics are not
// recovered here (the caller's frame-dispatch loop is expected to
// recover and produce its own 500, matching "a handler exception
// produces a 500 http_response").
func HandleRequest(frame envelope.HTTPRequest, originHost, originPort string, handler Handler) envelope.HTTPResponse {
	req := normalizeRequest(frame, originHost, originPort)
	resp := handler(req)

	return envelope.HTTPResponse{
		Type:       envelope.TypeHTTPResponse,
		RequestID:  frame.RequestID,
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// ErrorResponse builds the 500 http_response a handler exception
// produces, preserving the original requestId.
func ErrorResponse(requestID string, err error) envelope.HTTPResponse {
	return envelope.HTTPResponse{
		Type:       envelope.TypeHTTPResponse,
		RequestID:  requestID,
		Status:     500,
		StatusText: "Internal Server Error",
		Headers:    map[string][]string{},
		Error:      err.Error(),
	}
}

// normalizeRequest parses frame.URL into a normalized absolute URL,
// preserves multi-value header semantics, and injects x-forwarded-*
// headers when the client didn't set them.
func normalizeRequest(frame envelope.HTTPRequest, originHost, originPort string) Request {
	headers := make(map[string][]string, len(frame.Headers)+3)
	for k, v := range frame.Headers {
		headers[k] = append([]string(nil), v...)
	}

	u, err := url.Parse(frame.URL)
	normalizedURL := frame.URL
	if err == nil {
		if u.Scheme == "" {
			u.Scheme = "https"
		}
		if u.Host == "" {
			u.Host = originHost
		}
		normalizedURL = u.String()
	}

	injectIfAbsent(headers, "x-forwarded-proto", "https")
	injectIfAbsent(headers, "x-forwarded-host", originHost)
	if originPort != "" {
		injectIfAbsent(headers, "x-forwarded-port", originPort)
	}

	return Request{
		Method:  frame.Method,
		URL:     normalizedURL,
		Headers: headers,
		Body:    frame.Body,
	}
}

func injectIfAbsent(headers map[string][]string, key, value string) {
	for k := range headers {
		if strings.EqualFold(k, key) {
			return
		}
	}
	headers[key] = []string{value}
}
