// Package wire encodes request and response frame payloads. Framing itself
// lives in the transport package; a codec only sees complete payloads.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/vmihailenco/msgpack/v5"
)

type JSONCodec struct{}

var _ ports.Codec = JSONCodec{}

func (JSONCodec) Kind() domain.CodecKind { return domain.CodecJSON }

func (JSONCodec) EncodeRequest(req domain.Request) ([]byte, error) {
	return json.Marshal(toRequestSchema(req))
}

func (JSONCodec) DecodeRequest(data []byte) (domain.Request, error) {
	var s requestSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Request{}, &domain.ProtocolError{Reason: "malformed json request", Err: err}
	}
	return fromRequestSchema(s)
}

func (JSONCodec) EncodeResponse(resp domain.Response) ([]byte, error) {
	return json.Marshal(toResponseSchema(resp))
}

func (JSONCodec) DecodeResponse(data []byte) (domain.Response, error) {
	var s responseSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Response{}, &domain.ProtocolError{Reason: "malformed json response", Err: err}
	}
	return fromResponseSchema(s)
}

type MsgpackCodec struct{}

var _ ports.Codec = MsgpackCodec{}

func (MsgpackCodec) Kind() domain.CodecKind { return domain.CodecMsgpack }

func (MsgpackCodec) EncodeRequest(req domain.Request) ([]byte, error) {
	return msgpack.Marshal(toRequestSchema(req))
}

func (MsgpackCodec) DecodeRequest(data []byte) (domain.Request, error) {
	var s requestSchema
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return domain.Request{}, &domain.ProtocolError{Reason: "malformed msgpack request", Err: err}
	}
	return fromRequestSchema(s)
}

func (MsgpackCodec) EncodeResponse(resp domain.Response) ([]byte, error) {
	return msgpack.Marshal(toResponseSchema(resp))
}

func (MsgpackCodec) DecodeResponse(data []byte) (domain.Response, error) {
	var s responseSchema
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return domain.Response{}, &domain.ProtocolError{Reason: "malformed msgpack response", Err: err}
	}
	return fromResponseSchema(s)
}

// Codecs returns every supported codec keyed by kind.
func Codecs() map[domain.CodecKind]ports.Codec {
	return map[domain.CodecKind]ports.Codec{
		domain.CodecJSON:    JSONCodec{},
		domain.CodecMsgpack: MsgpackCodec{},
	}
}

func ForKind(kind domain.CodecKind) (ports.Codec, error) {
	codec, ok := Codecs()[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported codec %q", kind)
	}
	return codec, nil
}
