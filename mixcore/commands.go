package mixcore

import (
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// CommandKind enumerates the transport-agnostic command surface of §6.
type CommandKind string

const (
	CmdPing                            CommandKind = "ping"
	CmdGetStatus                       CommandKind = "get_status"
	CmdCreateNode                      CommandKind = "create_node"
	CmdRenameNode                      CommandKind = "rename_node"
	CmdSetNodeColour                   CommandKind = "set_node_colour"
	CmdRemoveNode                      CommandKind = "remove_node"
	CmdSetSourceVolume                 CommandKind = "set_source_volume"
	CmdSetSourceVolumeLinked           CommandKind = "set_source_volume_linked"
	CmdSetTargetVolume                 CommandKind = "set_target_volume"
	CmdSetTargetMix                    CommandKind = "set_target_mix"
	CmdSetRoute                        CommandKind = "set_route"
	CmdAddSourceMuteTarget             CommandKind = "add_source_mute_target"
	CmdDelSourceMuteTarget             CommandKind = "del_source_mute_target"
	CmdAddMuteTargetNode               CommandKind = "add_mute_target_node"
	CmdDelMuteTargetNode               CommandKind = "del_mute_target_node"
	CmdClearMuteTargetNodes            CommandKind = "clear_mute_target_nodes"
	CmdSetTargetMuteState              CommandKind = "set_target_mute_state"
	CmdAttachPhysicalNode              CommandKind = "attach_physical_node"
	CmdRemovePhysicalNode              CommandKind = "remove_physical_node"
	CmdSetOrderGroup                   CommandKind = "set_order_group"
	CmdSetOrder                        CommandKind = "set_order"
	CmdSetMetering                     CommandKind = "set_metering"
	CmdSetApplicationRoute             CommandKind = "set_application_route"
	CmdClearApplicationRoute           CommandKind = "clear_application_route"
	CmdSetTransientApplicationRoute    CommandKind = "set_transient_application_route"
	CmdClearTransientApplicationRoute  CommandKind = "clear_transient_application_route"
)

// Command is one unit of work submitted to the coordinator's single-writer
// dispatch loop (§4.9), in the shape of the teacher's DispatcherOperation.
type Command struct {
	Kind     CommandKind
	Data     any
	Response chan CommandResult
}

// CommandResult is what a dispatched Command resolves to.
type CommandResult struct {
	Value any
	Err   error
}

// Data payloads for each CommandKind above.

type CreateNodeData struct {
	Kind     profile.NodeKind
	Physical bool
	Name     string
	Group    profile.OrderGroup
}

type RenameNodeData struct {
	ID   ids.ID
	Name string
}

type SetNodeColourData struct {
	ID     ids.ID
	Colour profile.Colour
}

type RemoveNodeData struct{ ID ids.ID }

type SetSourceVolumeData struct {
	ID         ids.ID
	Mix        profile.MixSide
	Volume     uint8
	FromHostUI bool
}

type SetSourceVolumeLinkedData struct {
	ID      ids.ID
	Enabled bool
}

type SetTargetVolumeData struct {
	ID     ids.ID
	Volume uint8
}

type SetTargetMixData struct {
	ID  ids.ID
	Mix profile.MixSide
}

type SetRouteData struct {
	Src, Tgt ids.ID
	Enabled  bool
}

type SourceMuteSlotData struct {
	ID   ids.ID
	Side profile.MixSide
}

type MuteTargetNodeData struct {
	ID     ids.ID
	Side   profile.MixSide
	Target ids.ID
}

type SetTargetMuteStateData struct {
	ID    ids.ID
	State profile.TargetMuteState
}

type AttachPhysicalNodeData struct {
	ID           ids.ID
	DeviceHostID hostgraph.HostID
	Name         string
	Description  string
}

type RemovePhysicalNodeData struct {
	ID    ids.ID
	Index int
}

type SetOrderGroupData struct {
	ID    ids.ID
	Group profile.OrderGroup
}

type SetOrderData struct {
	ID       ids.ID
	Position int
}

type SetMeteringData struct{ Enabled bool }

type ApplicationRouteData struct {
	Pattern  string
	IsGlob   bool
	TargetID ids.ID
}

type ClearApplicationRouteData struct {
	Pattern string
	IsGlob  bool
}

type TransientApplicationRouteData struct {
	HostAppID hostgraph.HostID
	TargetID  ids.ID
}

type ClearTransientApplicationRouteData struct {
	HostAppID hostgraph.HostID
}
