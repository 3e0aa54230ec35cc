// Package hostgraph defines the message-in/event-out contract to the host
// audio service (§4.2): node/port/link factory, buffer scheduling, and
// device enumeration all live on the other side of this interface. This
// package only models the boundary - a concrete host implementation (a
// PipeWire-like service, or the in-memory simhost used for tests) satisfies
// the Host interface; QueueAdapter turns it into the async, thread-hopped
// Adapter the rest of the core calls.
package hostgraph

import (
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/ids"
)

// HostID is a host-assigned integer id. Per §3, these are tracked separately
// from logical ids and never persisted.
type HostID int64

// NodeClass is the class of virtual node requested from CreateDeviceNode.
type NodeClass int

const (
	ClassSource NodeClass = iota
	ClassSink
	ClassDuplex
)

// ChannelLabel identifies a port by channel (§4.2 Endpoint discovery).
type ChannelLabel string

const (
	ChannelFL   ChannelLabel = "FL"
	ChannelFR   ChannelLabel = "FR"
	ChannelMono ChannelLabel = "MONO"
)

// EndpointKind distinguishes the three endpoint flavors CreateLink accepts.
type EndpointKind int

const (
	EndpointManagedNode EndpointKind = iota
	EndpointManagedFilter
	EndpointHostNode
)

// Endpoint is one side of a link (§4.2 CreateLink). Exactly one of
// ManagedID/Host is meaningful, selected by Kind.
type Endpoint struct {
	Kind      EndpointKind
	ManagedID ids.ID
	Host      HostID
}

func ManagedNode(id ids.ID) Endpoint   { return Endpoint{Kind: EndpointManagedNode, ManagedID: id} }
func ManagedFilter(id ids.ID) Endpoint { return Endpoint{Kind: EndpointManagedFilter, ManagedID: id} }
func HostNode(id HostID) Endpoint      { return Endpoint{Kind: EndpointHostNode, Host: id} }

// NodeProps describes a virtual node to create.
type NodeProps struct {
	Name  string
	Class NodeClass
}

// FilterProps describes a DSP filter node to create. Filter is the actual
// sample-processing object (§4.1) - the host stores it opaquely and (a)
// invokes Process on the audio-callback thread each quantum, and (b)
// forwards SetFilterValue/Get calls into it. The core owns the concrete
// Filter implementation; the host only needs the capability interface.
type FilterProps struct {
	Name   string
	Filter filter.Filter
}

// DeviceInfo is what DeviceAdded carries about a newly discovered host
// device (§4.2 Events).
type DeviceInfo struct {
	HostID      HostID
	Name        string
	Description string
	Channels    int
	IsUsable    bool // has at least one in or out port
}

// Event is the sum type of messages the adapter delivers from the host.
type Event interface{ isHostEvent() }

// DeviceAdded reports a newly visible host device.
type DeviceAdded struct{ Device DeviceInfo }

func (DeviceAdded) isHostEvent() {}

// DeviceRemoved reports a host device going away.
type DeviceRemoved struct{ HostID HostID }

func (DeviceRemoved) isHostEvent() {}

// ManagedLinkDropped reports the host unilaterally dropping a link we
// created; the adapter's owner must re-advertise or remove as appropriate
// (§4.2).
type ManagedLinkDropped struct {
	Src, Dst Endpoint
}

func (ManagedLinkDropped) isHostEvent() {}

// ApplicationNodeAdded reports a new host "application" node (§4.8
// Application routing).
type ApplicationNodeAdded struct {
	HostID HostID
	Name   string
}

func (ApplicationNodeAdded) isHostEvent() {}
