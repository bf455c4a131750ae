package status

import (
	"errors"
	"testing"
	"time"

	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(id domain.MindID, name string) domain.MindProfile {
	return domain.MindProfile{
		ID:          id,
		DisplayName: name,
		Endpoint:    domain.Endpoint{Kind: domain.TransportTCP, Address: "10.0.0.5:10001", Codec: domain.CodecJSON},
		Model:       "qwen2.5-0.5b",
		Temperature: 0.7,
		MaxTokens:   150,
		Streaming:   true,
	}
}

func TestRenderConnectedActiveMind(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := Render([]application.MindStatus{
		{
			Profile: profile("penphin", "PenphinMind"),
			State: domain.ConnectionState{
				MindID:      "penphin",
				Status:      domain.StatusConnected,
				RetryCount:  2,
				ConnectedAt: now.Add(-5 * time.Minute),
			},
			Active:  true,
			Default: true,
		},
	}, RenderOptions{Now: now, MaxAttempts: 5})

	require.NoError(t, err)
	assert.Contains(t, output, "minds: 1  connected: 1  active: penphin")
	assert.Contains(t, output, "PenphinMind (penphin)")
	assert.Contains(t, output, "[active]")
	assert.Contains(t, output, "[default]")
	assert.Contains(t, output, "tcp://10.0.0.5:10001  json  qwen2.5-0.5b  temp 0.70  max 150  stream")
	assert.Contains(t, output, "connected 5 minutes ago after 2 retries")
}

func TestRenderFailedMindShowsRetriesAndError(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	penguin := profile("penguin", "PenguinMind")
	penguin.Streaming = false

	output, err := Render([]application.MindStatus{
		{
			Profile: penguin,
			State: domain.ConnectionState{
				MindID:     "penguin",
				Status:     domain.StatusFailed,
				RetryCount: 3,
				LastError:  errors.New("transport refused"),
			},
		},
		{
			Profile: profile("dolphin", "DolphinMind"),
			State:   domain.ConnectionState{MindID: "dolphin", Status: domain.StatusDisconnected},
		},
	}, RenderOptions{Now: now, MaxAttempts: 5})

	require.NoError(t, err)
	assert.Contains(t, output, "minds: 2  connected: 0  active: none")
	assert.Contains(t, output, "failed [===--]")
	assert.Contains(t, output, "transport refused")
	assert.Contains(t, output, "whole")
	assert.Contains(t, output, "disconnected")
	assert.NotContains(t, output, "[active]")
}

func TestRenderEmpty(t *testing.T) {
	output, err := Render(nil, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "No minds configured.")
}

func TestFormatSince(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", formatSince(now, now))
	assert.Equal(t, "1 second ago", formatSince(now.Add(-500*time.Millisecond), now))
	assert.Equal(t, "1 minute ago", formatSince(now.Add(-90*time.Second), now))
	assert.Equal(t, "3 hours ago", formatSince(now.Add(-3*time.Hour), now))
	assert.Equal(t, "since 09:00 on 12 Feb", formatSince(now.Add(-50*time.Hour), now))
}
