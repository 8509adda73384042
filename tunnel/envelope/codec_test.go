package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []interface{}{
		ClientKXReady{Type: TypeClientKXReady},
		ServerKX{
			Type:            TypeServerKX,
			X25519PublicKey: []byte{1, 2, 3},
			Quote:           []byte{4, 5, 6},
			VerifierData:    &VerifierData{Val: []byte("v"), Iat: []byte("i")},
		},
		ClientKX{Type: TypeClientKX, SealedSymmetricKey: []byte{7, 8, 9}},
		Enc{Type: TypeEnc, Nonce: []byte("nonce"), Ciphertext: []byte("ct")},
		HTTPRequest{Type: TypeHTTPRequest, RequestID: "r1", Method: "GET", URL: "/x", Headers: map[string][]string{"A": {"b"}}},
		HTTPResponse{Type: TypeHTTPResponse, RequestID: "r1", Status: 200, StatusText: "OK"},
		WSConnect{Type: TypeWSConnect, ConnectionID: "c1", URL: "/ws"},
		WSEvent{Type: TypeWSEvent, ConnectionID: "c1", EventType: WSEventOpen},
		NewTextMessage("c1", "hello"),
		NewBinaryMessage("c1", []byte{0xde, 0xad}),
		WSClose{Type: TypeWSClose, ConnectionID: "c1", Code: 1000},
	}

	for _, frame := range cases {
		raw, err := Encode(frame)
		require.NoError(t, err)

		decoded, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, frame, decoded)
	}
}

func TestDecodeUnknownTypeIsIgnored(t *testing.T) {
	raw, err := Encode(struct {
		Type Type `cbor:"type"`
	}{Type: "future_frame_type"})
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecodeMalformedFails(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestNewTextAndBinaryMessage(t *testing.T) {
	text := NewTextMessage("conn1", "hi")
	assert.Equal(t, DataTypeString, text.DataType)
	assert.Equal(t, []byte("hi"), text.Data)

	bin := NewBinaryMessage("conn1", []byte{1, 2})
	assert.Equal(t, DataTypeArrayBuffer, bin.DataType)
}
