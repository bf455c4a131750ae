package wire

import (
	"encoding/json"
	"testing"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestJSONCodecEncodesRequestWithWireFieldNames(t *testing.T) {
	t.Parallel()

	data, err := JSONCodec{}.EncodeRequest(domain.Request{
		RequestID:   "01J0000000000000000000000",
		DeviceID:    "m5-llm-01",
		Model:       "qwen2.5-0.5b",
		Persona:     "You are PenphinMind.",
		Prompt:      "hello",
		Temperature: 0.7,
		MaxTokens:   150,
		Stream:      true,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "request", decoded["type"])
	assert.Equal(t, "01J0000000000000000000000", decoded["request_id"])
	assert.Equal(t, "m5-llm-01", decoded["device_id"])
	assert.Equal(t, "You are PenphinMind.", decoded["persona"])
	assert.Equal(t, "hello", decoded["prompt"])
	assert.InDelta(t, 0.7, decoded["temperature"], 1e-9)
	assert.InDelta(t, 150, decoded["max_tokens"], 1e-9)
	assert.Equal(t, true, decoded["stream"])
	assert.NotContains(t, decoded, "auth")
}

func TestJSONCodecDecodesErrorFrame(t *testing.T) {
	t.Parallel()

	resp, err := JSONCodec{}.DecodeResponse([]byte(`{"request_id":"r-1","type":"error","error":{"code":"invalid_model","message":"model not loaded"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Response{
		RequestID:    "r-1",
		Type:         domain.ResponseError,
		ErrorCode:    "invalid_model",
		ErrorMessage: "model not loaded",
	}, resp)
}

func TestJSONCodecRejectsMalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"request_id":`},
		{name: "unknown type", payload: `{"request_id":"r-1","type":"telemetry"}`},
		{name: "missing request id", payload: `{"type":"delta","text":"hi"}`},
		{name: "error without body", payload: `{"request_id":"r-1","type":"error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONCodec{}.DecodeResponse([]byte(tt.payload))
			require.ErrorIs(t, err, domain.ErrProtocol)
		})
	}
}

func TestMsgpackCodecDecodesDeltaFrame(t *testing.T) {
	t.Parallel()

	payload, err := msgpack.Marshal(map[string]any{
		"request_id": "r-7",
		"type":       "delta",
		"text":       "Hel",
	})
	require.NoError(t, err)

	resp, err := MsgpackCodec{}.DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, domain.Response{RequestID: "r-7", Type: domain.ResponseDelta, Text: "Hel"}, resp)
}

func TestMsgpackCodecCarriesAuthToken(t *testing.T) {
	t.Parallel()

	codec := MsgpackCodec{}
	data, err := codec.EncodeRequest(domain.Request{RequestID: "r-9", Prompt: "hi", AuthToken: "tok"})
	require.NoError(t, err)

	req, err := codec.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "tok", req.AuthToken)
	assert.Equal(t, "r-9", req.RequestID)
}

func TestForKind(t *testing.T) {
	t.Parallel()

	codec, err := ForKind(domain.CodecMsgpack)
	require.NoError(t, err)
	assert.Equal(t, domain.CodecMsgpack, codec.Kind())

	_, err = ForKind("protobuf")
	require.Error(t, err)
}
