// Package envelope implements the tunnel's CBOR wire protocol: a small
// family of tagged frames exchanged over the control WebSocket, both
// during the handshake and, wrapped in `enc`, for the lifetime of the
// session. CBOR byte-strings (not arrays of integers) carry every binary
// field, matching the protocol's on-the-wire contract.
package envelope

// Type is the `type` discriminant every frame carries.
type Type string

const (
	TypeClientKXReady Type = "client_kx_ready"
	TypeServerKX      Type = "server_kx"
	TypeClientKX      Type = "client_kx"
	TypeEnc           Type = "enc"
	TypeHTTPRequest   Type = "http_request"
	TypeHTTPResponse  Type = "http_response"
	TypeWSConnect     Type = "ws_connect"
	TypeWSEvent       Type = "ws_event"
	TypeWSMessage     Type = "ws_message"
	TypeWSClose       Type = "ws_close"
)

// WS event types carried by WSEvent.EventType.
const (
	WSEventOpen  = "open"
	WSEventClose = "close"
	WSEventError = "error"
)

// WS data types carried by WSMessage.DataType.
const (
	DataTypeString      = "string"
	DataTypeArrayBuffer = "arraybuffer"
)

type typeOnly struct {
	Type Type `cbor:"type"`
}

// ClientKXReady is the optional client hello that may prompt the server
// to send ServerKX.
type ClientKXReady struct {
	Type Type `cbor:"type"`
}

// VerifierData carries the binding material a verifier used to produce
// the quote's report_data, so the client can recompute and check it.
type VerifierData struct {
	Val       []byte `cbor:"val"`
	Iat       []byte `cbor:"iat"`
	Signature []byte `cbor:"signature,omitempty"`
}

// SevSnpData carries the VCEK chain for a SEV-SNP announcement.
type SevSnpData struct {
	VcekCert []byte `cbor:"vcek_cert"`
	AskCert  []byte `cbor:"ask_cert,omitempty"`
	ArkCert  []byte `cbor:"ark_cert,omitempty"`
}

// ServerKX is the server's handshake announcement: its X25519 public key
// plus the attestation evidence binding it.
type ServerKX struct {
	Type            Type          `cbor:"type"`
	X25519PublicKey []byte        `cbor:"x25519PublicKey"`
	Quote           []byte        `cbor:"quote"`
	RuntimeData     []byte        `cbor:"runtime_data,omitempty"`
	VerifierData    *VerifierData `cbor:"verifier_data,omitempty"`
	SevSnpData      *SevSnpData   `cbor:"sev_snp_data,omitempty"`
}

// ClientKX carries the client's sealed symmetric session key.
type ClientKX struct {
	Type                Type   `cbor:"type"`
	SealedSymmetricKey []byte `cbor:"sealedSymmetricKey"`
}

// Enc wraps every post-handshake frame in symmetric encryption.
type Enc struct {
	Type       Type   `cbor:"type"`
	Nonce      []byte `cbor:"nonce"`
	Ciphertext []byte `cbor:"ciphertext"`
}

// HTTPRequest is a tunneled HTTP request, sent inside an Enc envelope.
type HTTPRequest struct {
	Type      Type                `cbor:"type"`
	RequestID string              `cbor:"requestId"`
	Method    string              `cbor:"method"`
	URL       string              `cbor:"url"`
	Headers   map[string][]string `cbor:"headers"`
	Body      []byte              `cbor:"body,omitempty"`
}

// HTTPResponse is the matching response to an HTTPRequest.
type HTTPResponse struct {
	Type       Type                `cbor:"type"`
	RequestID  string              `cbor:"requestId"`
	Status     int                 `cbor:"status"`
	StatusText string              `cbor:"statusText"`
	Headers    map[string][]string `cbor:"headers"`
	Body       []byte              `cbor:"body,omitempty"`
	Error      string              `cbor:"error,omitempty"`
}

// WSConnect opens a virtual WebSocket multiplexed over the tunnel.
type WSConnect struct {
	Type         Type     `cbor:"type"`
	ConnectionID string   `cbor:"connectionId"`
	URL          string   `cbor:"url"`
	Protocols    []string `cbor:"protocols,omitempty"`
}

// WSEvent reports a lifecycle event (open/close/error) for a virtual
// WebSocket.
type WSEvent struct {
	Type         Type   `cbor:"type"`
	ConnectionID string `cbor:"connectionId"`
	EventType    string `cbor:"eventType"`
	Code         int    `cbor:"code,omitempty"`
	Reason       string `cbor:"reason,omitempty"`
	Error        string `cbor:"error,omitempty"`
}

// WSMessage carries application data for a virtual WebSocket. Data is
// always transported as a CBOR byte-string; DataType records whether it
// represents UTF-8 text or an opaque binary payload.
type WSMessage struct {
	Type         Type   `cbor:"type"`
	ConnectionID string `cbor:"connectionId"`
	Data         []byte `cbor:"data"`
	DataType     string `cbor:"dataType"`
}

// NewTextMessage builds a WSMessage carrying string data.
func NewTextMessage(connID, text string) WSMessage {
	return WSMessage{Type: TypeWSMessage, ConnectionID: connID, Data: []byte(text), DataType: DataTypeString}
}

// NewBinaryMessage builds a WSMessage carrying binary data.
func NewBinaryMessage(connID string, data []byte) WSMessage {
	return WSMessage{Type: TypeWSMessage, ConnectionID: connID, Data: data, DataType: DataTypeArrayBuffer}
}

// WSClose requests closing a virtual WebSocket.
type WSClose struct {
	Type         Type   `cbor:"type"`
	ConnectionID string `cbor:"connectionId"`
	Code         int    `cbor:"code,omitempty"`
	Reason       string `cbor:"reason,omitempty"`
}
