// Package simhost is a deterministic, in-process stand-in for the host
// audio service described in §4.2. It satisfies hostgraph.Host without any
// real audio hardware or node/port/link runtime - useful for tests and for
// the cmd/mixerd demo harness, since the real host service is explicitly
// out of scope for this module (§1).
package simhost

import (
	"fmt"
	"sync"

	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
)

type link struct {
	src, dst hostgraph.Endpoint
}

// Host is a minimal, race-free simulated host graph: it assigns integer
// ids, tracks links and filter values, and never drops anything on its own
// (tests that want a ManagedLinkDropped event call DropLink explicitly).
type Host struct {
	mu       sync.Mutex
	nextID   hostgraph.HostID
	nodes    map[hostgraph.HostID]hostgraph.NodeProps
	filters  map[hostgraph.HostID]filter.Filter
	volumes  map[hostgraph.HostID]uint8
	mutes    map[hostgraph.HostID]bool
	links    []link
	appTargets map[hostgraph.HostID]hostgraph.HostID

	events chan hostgraph.Event
}

// New returns a ready-to-use simulated host.
func New() *Host {
	return &Host{
		nodes:      map[hostgraph.HostID]hostgraph.NodeProps{},
		filters:    map[hostgraph.HostID]filter.Filter{},
		volumes:    map[hostgraph.HostID]uint8{},
		mutes:      map[hostgraph.HostID]bool{},
		appTargets: map[hostgraph.HostID]hostgraph.HostID{},
		events:     make(chan hostgraph.Event, 256),
	}
}

func (h *Host) CreateDeviceNode(props hostgraph.NodeProps) (hostgraph.HostID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.nodes[h.nextID] = props
	h.volumes[h.nextID] = 100
	return h.nextID, nil
}

func (h *Host) CreateFilterNode(props hostgraph.FilterProps) (hostgraph.HostID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.filters[h.nextID] = props.Filter
	return h.nextID, nil
}

func (h *Host) CreateLink(src, dst hostgraph.Endpoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.links {
		if l.src == src && l.dst == dst {
			return fmt.Errorf("simhost: link already exists")
		}
	}
	h.links = append(h.links, link{src, dst})
	return nil
}

func (h *Host) RemoveDeviceNode(id hostgraph.HostID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.nodes, id)
	delete(h.volumes, id)
	delete(h.mutes, id)
	return nil
}

func (h *Host) RemoveFilterNode(id hostgraph.HostID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.filters, id)
	return nil
}

func (h *Host) RemoveLink(src, dst hostgraph.Endpoint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.links {
		if l.src == src && l.dst == dst {
			h.links = append(h.links[:i], h.links[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("simhost: no such link")
}

func (h *Host) SetFilterValue(filterID hostgraph.HostID, propertyID string, value filter.Value) error {
	h.mu.Lock()
	f, ok := h.filters[filterID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("simhost: unknown filter %d", filterID)
	}
	return f.Set(propertyID, value)
}

// FilterValue returns the current value of a property on a registered
// filter, for assertions.
func (h *Host) FilterValue(filterID hostgraph.HostID, propertyID string) (filter.Value, error) {
	h.mu.Lock()
	f, ok := h.filters[filterID]
	h.mu.Unlock()
	if !ok {
		return filter.Value{}, fmt.Errorf("simhost: unknown filter %d", filterID)
	}
	return f.Get(propertyID)
}

func (h *Host) SetNodeVolume(nodeID hostgraph.HostID, v uint8) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volumes[nodeID] = v
	return nil
}

func (h *Host) SetNodeMute(nodeID hostgraph.HostID, muted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mutes[nodeID] = muted
	return nil
}

func (h *Host) SetApplicationTarget(appHostID, targetHost hostgraph.HostID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appTargets[appHostID] = targetHost
	return nil
}

func (h *Host) Events() <-chan hostgraph.Event { return h.events }

func (h *Host) Quit() { close(h.events) }

// --- test/demo-only introspection and event injection below ---

// LinkCount reports how many links currently exist.
func (h *Host) LinkCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.links)
}

// HasLink reports whether a src->dst link currently exists.
func (h *Host) HasLink(src, dst hostgraph.Endpoint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.links {
		if l.src == src && l.dst == dst {
			return true
		}
	}
	return false
}

// Volume returns the last volume set on a node, for assertions.
func (h *Host) Volume(id hostgraph.HostID) uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volumes[id]
}

// Muted returns the last mute state set on a node, for assertions.
func (h *Host) Muted(id hostgraph.HostID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mutes[id]
}

// InjectDeviceAdded simulates the host noticing a new physical device.
func (h *Host) InjectDeviceAdded(info hostgraph.DeviceInfo) {
	h.events <- hostgraph.DeviceAdded{Device: info}
}

// InjectDeviceRemoved simulates the host noticing a device going away.
func (h *Host) InjectDeviceRemoved(id hostgraph.HostID) {
	h.events <- hostgraph.DeviceRemoved{HostID: id}
}

// DropLink simulates the host unilaterally dropping a link it owned.
func (h *Host) DropLink(src, dst hostgraph.Endpoint) {
	h.mu.Lock()
	for i, l := range h.links {
		if l.src == src && l.dst == dst {
			h.links = append(h.links[:i], h.links[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	h.events <- hostgraph.ManagedLinkDropped{Src: src, Dst: dst}
}
