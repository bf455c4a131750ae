package mindsim

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/penphinmind/internal/adapters/transport"
	"github.com/bnema/penphinmind/internal/adapters/wire"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func request(stream bool) domain.Request {
	return domain.Request{
		RequestID: "01HV0000000000000000000000",
		Model:     "qwen2.5-0.5b",
		Persona:   "You are DolphinMind.",
		Prompt:    "hello there",
		MaxTokens: 64,
		Stream:    stream,
	}
}

func exchange(t *testing.T, server *Server, codec ports.Codec, req domain.Request) []domain.Response {
	t.Helper()

	client, remote := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.ServeConn(ctx, remote)
	}()
	defer func() {
		cancel()
		_ = client.Close()
		<-done
	}()

	payload, err := codec.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, transport.WriteFrame(client, payload))

	var responses []domain.Response
	for {
		frame, err := transport.ReadFrame(client)
		require.NoError(t, err)
		resp, err := codec.DecodeResponse(frame)
		require.NoError(t, err)
		responses = append(responses, resp)
		if resp.Type != domain.ResponseDelta {
			return responses
		}
	}
}

func TestServeConnStreamsWordByWord(t *testing.T) {
	responses := exchange(t, New(), wire.JSONCodec{}, request(true))

	require.Len(t, responses, 6)
	var text strings.Builder
	for _, resp := range responses[:5] {
		assert.Equal(t, domain.ResponseDelta, resp.Type)
		assert.Equal(t, "01HV0000000000000000000000", resp.RequestID)
		text.WriteString(resp.Text)
	}
	assert.Equal(t, "You are DolphinMind. hello there", text.String())
	assert.Equal(t, domain.ResponseEnd, responses[5].Type)
}

func TestServeConnWholeReplyWithMsgpack(t *testing.T) {
	responses := exchange(t, New(WithCodec(wire.MsgpackCodec{})), wire.MsgpackCodec{}, request(false))

	require.Len(t, responses, 1)
	assert.Equal(t, domain.ResponseResult, responses[0].Type)
	assert.Equal(t, "You are DolphinMind. hello there", responses[0].Text)
}

func TestServeConnRejections(t *testing.T) {
	tests := []struct {
		name   string
		server *Server
		mutate func(*domain.Request)
		code   string
	}{
		{name: "missing token", server: New(WithAuthToken("tok")), code: ErrCodeUnauthorized},
		{name: "unknown model", server: New(WithModels("tinyllama")), code: ErrCodeUnknownModel},
		{name: "no token budget", server: New(), mutate: func(r *domain.Request) { r.MaxTokens = 0 }, code: ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(true)
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			responses := exchange(t, tt.server, wire.JSONCodec{}, req)
			require.Len(t, responses, 1)
			assert.Equal(t, domain.ResponseError, responses[0].Type)
			assert.Equal(t, tt.code, responses[0].ErrorCode)
			assert.NotEmpty(t, responses[0].ErrorMessage)
		})
	}
}

func TestReplyHonorsTokenBudget(t *testing.T) {
	req := request(true)
	req.MaxTokens = 2

	assert.Equal(t, []string{"You", "are"}, Reply(req))
}

func TestServeOverTCPThroughDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- New(WithTokenDelay(time.Millisecond)).Serve(ctx, ln) }()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	link, err := transport.NewDialer().Dial(dialCtx, domain.Endpoint{Kind: domain.TransportTCP, Address: ln.Addr().String(), Codec: domain.CodecJSON})
	require.NoError(t, err)

	payload, err := wire.JSONCodec{}.EncodeRequest(request(true))
	require.NoError(t, err)
	require.NoError(t, link.Send(dialCtx, payload))

	frame, err := link.Receive(dialCtx)
	require.NoError(t, err)
	first, err := wire.JSONCodec{}.DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, "You", first.Text)

	cancel()
	require.NoError(t, <-served)
	require.NoError(t, link.Close())
}

func TestWebSocketHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(New().WebSocketHandler(ctx))
	defer server.Close()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	link, err := transport.NewDialer().Dial(dialCtx, domain.Endpoint{Kind: domain.TransportWebSocket, Address: url, Codec: domain.CodecJSON})
	require.NoError(t, err)
	defer func() { _ = link.Close() }()

	payload, err := wire.JSONCodec{}.EncodeRequest(request(false))
	require.NoError(t, err)
	require.NoError(t, link.Send(dialCtx, payload))

	frame, err := link.Receive(dialCtx)
	require.NoError(t, err)
	resp, err := wire.JSONCodec{}.DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseResult, resp.Type)
}
