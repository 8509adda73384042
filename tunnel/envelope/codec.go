package envelope

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/attestgate/attestgate/tunnel/errs"
)

// Encode marshals any frame type in this package to its CBOR wire form.
func Encode(frame interface{}) ([]byte, error) {
	b, err := cbor.Marshal(frame)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "failed to encode envelope", err)
	}
	return b, nil
}

// Decode reads the `type` discriminant from raw CBOR bytes and unmarshals
// into the matching concrete frame type. It returns (nil, nil) for an
// unrecognized type, per the protocol's forward-compatibility contract:
// callers must treat that as "ignore this frame", not an error.
func Decode(raw []byte) (interface{}, error) {
	var probe typeOnly
	if err := cbor.Unmarshal(raw, &probe); err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "failed to decode envelope type", err)
	}

	var (
		out interface{}
		err error
	)
	switch probe.Type {
	case TypeClientKXReady:
		var v ClientKXReady
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeServerKX:
		var v ServerKX
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeClientKX:
		var v ClientKX
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeEnc:
		var v Enc
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeHTTPRequest:
		var v HTTPRequest
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeHTTPResponse:
		var v HTTPResponse
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeWSConnect:
		var v WSConnect
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeWSEvent:
		var v WSEvent
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeWSMessage:
		var v WSMessage
		err = cbor.Unmarshal(raw, &v)
		out = v
	case TypeWSClose:
		var v WSClose
		err = cbor.Unmarshal(raw, &v)
		out = v
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.MalformedEnvelope, "failed to decode envelope body", err)
	}
	return out, nil
}
