package cmd

import (
	"testing"
	"time"

	"github.com/bnema/penphinmind/internal/adapters/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsConnectTimeoutToDialer(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, transport.DefaultConnectTimeout, cfg.GetDuration(keyConnectTimeout))
}

func TestLoadConfigConnectTimeoutFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PENPHIN_CONNECTION_CONNECT_TIMEOUT", "750ms")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.GetDuration(keyConnectTimeout))
}
