package toml

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*StateStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "state.toml")
	config := viper.New()
	config.Set(StatePathKey, path)

	store, err := NewStateStore(config)
	require.NoError(t, err)
	return store, path
}

func TestStateStoreLoadWithoutFile(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	record, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActiveMindRecord{}, record)
}

func TestStateStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	switchedAt := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	record := domain.ActiveMindRecord{MindID: "dolphin", PreviousID: "penphin", SwitchedAt: switchedAt}

	require.NoError(t, store.Save(context.Background(), record))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(stateFileMode), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "active_mind = 'dolphin'")
	assert.Contains(t, string(data), "version = 1")
}

func TestStateStoreHistoryIsCapped(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	minds := []domain.MindID{"penphin", "dolphin", "penguin"}
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	previous := domain.MindID("")
	for i := range historyLimit + 3 {
		next := minds[i%len(minds)]
		require.NoError(t, store.Save(context.Background(), domain.ActiveMindRecord{
			MindID:     next,
			PreviousID: previous,
			SwitchedAt: base.Add(time.Duration(i) * time.Minute),
		}))
		previous = next
	}

	history, err := store.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, historyLimit)
	assert.Equal(t, base.Add(3*time.Minute), history[0].SwitchedAt)
	assert.Equal(t, base.Add(time.Duration(historyLimit+2)*time.Minute), history[len(history)-1].SwitchedAt)
}

func TestStateStoreRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	store, path := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("version = 7\nactive_mind = 'dolphin'\n"), 0o600))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported state file version 7")
}

func TestStateStoreRejectsEmptyRecord(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	require.Error(t, store.Save(context.Background(), domain.ActiveMindRecord{}))
}

func TestStateStoresShareLockForSamePath(t *testing.T) {
	t.Parallel()

	first, path := newTestStore(t)
	config := viper.New()
	config.Set(StatePathKey, path)
	second, err := NewStateStore(config)
	require.NoError(t, err)
	assert.Same(t, first.mu, second.mu)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := first
			if i%2 == 1 {
				store = second
			}
			assert.NoError(t, store.Save(context.Background(), domain.ActiveMindRecord{MindID: "penguin", SwitchedAt: time.Now()}))
		}()
	}
	wg.Wait()

	history, err := first.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, historyLimit)
}

func TestStateStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Save(ctx, domain.ActiveMindRecord{MindID: "dolphin"}), context.Canceled)
}
