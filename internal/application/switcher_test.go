package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSwitcherStartsOnDefaultMind(t *testing.T) {
	switcher := NewSwitcher(context.Background(), testRegistry(t), nil)

	assert.Equal(t, domain.MindID("penphin"), switcher.Active())
}

func TestSwitchToReturnsPreviousMind(t *testing.T) {
	switcher := NewSwitcher(context.Background(), testRegistry(t), nil)

	previous, err := switcher.SwitchTo(context.Background(), "dolphin")
	require.NoError(t, err)
	assert.Equal(t, domain.MindID("penphin"), previous)
	assert.Equal(t, domain.MindID("dolphin"), switcher.Active())

	previous, err = switcher.SwitchTo(context.Background(), "penguin")
	require.NoError(t, err)
	assert.Equal(t, domain.MindID("dolphin"), previous)
}

func TestSwitchToUnknownMindLeavesPointerUnchanged(t *testing.T) {
	store := mocks.NewMockActiveMindStore(t)
	store.EXPECT().Load(mock.Anything).Return(domain.ActiveMindRecord{}, nil).Once()
	switcher := NewSwitcher(context.Background(), testRegistry(t), nil, WithActiveMindStore(store))

	_, err := switcher.SwitchTo(context.Background(), "orca")
	require.ErrorIs(t, err, domain.ErrMindNotFound)

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, domain.MindID("orca"), notFound.MindID)
	assert.Equal(t, domain.MindID("penphin"), switcher.Active())
}

func TestSwitchToPersistsAndPrewarms(t *testing.T) {
	registry := testRegistry(t)
	dialer := newFakeDialer()
	manager := newTestManager(t, registry, dialer)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(now)

	store := mocks.NewMockActiveMindStore(t)
	store.EXPECT().Load(mock.Anything).Return(domain.ActiveMindRecord{}, nil).Once()
	store.EXPECT().Save(mock.Anything, domain.ActiveMindRecord{MindID: "dolphin", PreviousID: "penphin", SwitchedAt: now}).Return(nil).Once()

	switcher := NewSwitcher(context.Background(), registry, manager, WithActiveMindStore(store), WithSwitcherClock(clock))

	_, err := switcher.SwitchTo(context.Background(), "dolphin")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := manager.State("dolphin")
		return err == nil && state.Status == domain.StatusConnected
	}, time.Second, time.Millisecond)
}

func TestSwitchToKeepsPreviousMindConnected(t *testing.T) {
	registry := testRegistry(t)
	manager := newTestManager(t, registry, newFakeDialer())
	switcher := NewSwitcher(context.Background(), registry, manager)

	_, err := manager.Acquire(context.Background(), "penphin")
	require.NoError(t, err)

	_, err = switcher.SwitchTo(context.Background(), "dolphin")
	require.NoError(t, err)

	state, err := manager.State("penphin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, state.Status)
}

func TestSwitchToReportsPersistFailureAfterSwitching(t *testing.T) {
	store := mocks.NewMockActiveMindStore(t)
	store.EXPECT().Load(mock.Anything).Return(domain.ActiveMindRecord{}, nil).Once()
	store.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	switcher := NewSwitcher(context.Background(), testRegistry(t), nil, WithActiveMindStore(store))

	previous, err := switcher.SwitchTo(context.Background(), "penguin")
	require.Error(t, err)
	assert.ErrorContains(t, err, "persist active mind")
	assert.Equal(t, domain.MindID("penphin"), previous)
	assert.Equal(t, domain.MindID("penguin"), switcher.Active())
}

func TestNewSwitcherRestoresPersistedMind(t *testing.T) {
	tests := []struct {
		name   string
		record domain.ActiveMindRecord
		err    error
		want   domain.MindID
	}{
		{name: "configured mind", record: domain.ActiveMindRecord{MindID: "penguin"}, want: "penguin"},
		{name: "mind no longer configured", record: domain.ActiveMindRecord{MindID: "orca"}, want: "penphin"},
		{name: "empty state", want: "penphin"},
		{name: "unreadable state", err: errors.New("bad toml"), want: "penphin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockActiveMindStore(t)
			store.EXPECT().Load(mock.Anything).Return(tt.record, tt.err).Once()

			switcher := NewSwitcher(context.Background(), testRegistry(t), nil, WithActiveMindStore(store))
			assert.Equal(t, tt.want, switcher.Active())
		})
	}
}
