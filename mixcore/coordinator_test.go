package mixcore

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
	"github.com/shaban/mixcore/simhost"
)

// fakeStore is an in-memory ProfileStore recording every Save call, standing
// in for store.FileStore in tests that do not want real file IO.
type fakeStore struct {
	mu    sync.Mutex
	saves int
}

func (s *fakeStore) Save(p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func newTestCoordinator(t *testing.T) (*Coordinator, *simhost.Host, *fakeStore) {
	t.Helper()
	host := simhost.New()
	adapter := hostgraph.NewQueueAdapter(host, hostgraph.DefaultQueueDepth)
	t.Cleanup(adapter.Quit)

	meters := make(chan filter.MeterSample, 64)
	engine := NewEngine(profile.New(), adapter, 48000, meters, nil)
	binder := NewBinder(engine, nil)
	store := &fakeStore{}
	logger := log.NewWithOptions(io.Discard, log.Options{})

	coord := NewCoordinator(engine, binder, store, logger)
	coord.SetSaveInterval(10 * time.Millisecond)
	binder.onBindable = coord.OnDeviceBindable()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	select {
	case <-coord.Ready():
	case <-time.After(time.Second):
		t.Fatal("coordinator never became ready")
	}
	return coord, host, store
}

func TestSubmitCreateSourceRoundTrips(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	v, err := coord.Submit(CmdCreateNode, CreateNodeData{Kind: profile.KindSource, Name: "Mic", Group: profile.OrderDefault})
	require.NoError(t, err)
	id, ok := v.(ids.ID)
	require.True(t, ok)
	assert.False(t, id.IsNil())
}

func TestSubmitUnknownNodeReturnsNotFoundError(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Submit(CmdRenameNode, RenameNodeData{ID: ids.MustNew(), Name: "x"})
	assert.ErrorIs(t, err, errNotFound)
}

func TestSubmitBroadcastsStatusPatchOnChange(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	patches := coord.SubscribeStatus()

	v, err := coord.Submit(CmdCreateNode, CreateNodeData{Kind: profile.KindSource, Name: "Mic", Group: profile.OrderDefault})
	require.NoError(t, err)
	id := v.(ids.ID)

	select {
	case patch := <-patches:
		assert.Contains(t, patch.ChangedSources, id)
	case <-time.After(time.Second):
		t.Fatal("expected a status patch after CreateNode")
	}
}

func TestSubmitSuccessfulCommandMarksDirtyEnoughToSave(t *testing.T) {
	coord, _, store := newTestCoordinator(t)

	_, err := coord.Submit(CmdSetMetering, SetMeteringData{Enabled: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.count() > 0 }, time.Second, 5*time.Millisecond)
}

func TestDeviceAppearedFlowsThroughToBindAndBroadcast(t *testing.T) {
	coord, host, _ := newTestCoordinator(t)
	binder := coord.binder
	binder.SetDebounceWindow(5 * time.Millisecond)

	v, err := coord.Submit(CmdCreateNode, CreateNodeData{Kind: profile.KindSource, Physical: true, Name: "Interface In 1", Group: profile.OrderDefault})
	require.NoError(t, err)
	src := v.(ids.ID)
	coord.engine.Profile.Sources[src].AttachedDevices = []profile.PhysicalDescriptor{{Name: "Interface In 1"}}

	patches := coord.SubscribeStatus()
	host.InjectDeviceAdded(hostgraph.DeviceInfo{HostID: 555, Name: "Interface In 1", Description: "USB Audio"})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case patch := <-patches:
			if contains(patch.ChangedSources, src) {
				return
			}
		case <-deadline:
			t.Fatal("device never got bound and broadcast within the deadline")
		}
	}
}

func contains(list []ids.ID, want ids.ID) bool {
	for _, id := range list {
		if id == want {
			return true
		}
	}
	return false
}

func TestPerformanceStatsTrackLastAndMax(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Submit(CmdPing, nil)
	require.NoError(t, err)

	last, max := coord.PerformanceStats()
	assert.GreaterOrEqual(t, max, last)
	assert.GreaterOrEqual(t, last, time.Duration(0))
}
