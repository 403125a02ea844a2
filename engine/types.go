// Copyright 2017 DigitalOcean.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine describes the host routing engine collaborator that a
// dataplane provider plugs into: the dataplane operation contexts it
// hands out, the RIB/NHG/LSP/RMAC tables it exposes for reconciliation
// walks, and the VRF/locator/interface lookups the netlink encoders
// need. Nothing in this package talks to a real routing engine; it is
// the seam the fpm package is written against so that the core never
// depends on a concrete engine implementation.
package engine

import "net/netip"

// OpKind tags the kind of dataplane operation a DataplaneContext carries.
type OpKind int

// Recognized operation kinds. OpIgnored stands in for the many dataplane
// operation kinds the core does not act on (link up/down, table sync
// markers, and so on) but that still flow through the engine's queue.
const (
	OpIgnored OpKind = iota
	OpRouteInstall
	OpRouteUpdate
	OpRouteDelete
	OpNexthopInstall
	OpNexthopUpdate
	OpNexthopDelete
	OpLSPInstall
	OpLSPUpdate
	OpLSPDelete
	OpMACInstall
	OpMACDelete
	OpAddressInstall
	OpAddressUninstall
)

// String returns a short human-readable name for an OpKind.
func (k OpKind) String() string {
	switch k {
	case OpRouteInstall:
		return "route-install"
	case OpRouteUpdate:
		return "route-update"
	case OpRouteDelete:
		return "route-delete"
	case OpNexthopInstall:
		return "nexthop-install"
	case OpNexthopUpdate:
		return "nexthop-update"
	case OpNexthopDelete:
		return "nexthop-delete"
	case OpLSPInstall:
		return "lsp-install"
	case OpLSPUpdate:
		return "lsp-update"
	case OpLSPDelete:
		return "lsp-delete"
	case OpMACInstall:
		return "mac-install"
	case OpMACDelete:
		return "mac-delete"
	case OpAddressInstall:
		return "address-install"
	case OpAddressUninstall:
		return "address-uninstall"
	default:
		return "ignored"
	}
}

// Status is the outcome the core reports back to the engine for a
// dequeued context.
type Status int

// Recognized statuses.
const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
)

// Seg6LocalAction is an SRv6 localsid endpoint behavior, numbered per
// the ACTION TLV values this plugin's wire format uses.
type Seg6LocalAction uint32

// Recognized SRv6 localsid actions, including their uSID variants.
const (
	Seg6LocalActionUnspec     Seg6LocalAction = 0
	Seg6LocalActionEnd        Seg6LocalAction = 1
	Seg6LocalActionEndX       Seg6LocalAction = 2
	Seg6LocalActionEndT       Seg6LocalAction = 3
	Seg6LocalActionEndDX2     Seg6LocalAction = 4
	Seg6LocalActionEndDX6     Seg6LocalAction = 5
	Seg6LocalActionEndDX4     Seg6LocalAction = 6
	Seg6LocalActionEndDT6     Seg6LocalAction = 7
	Seg6LocalActionEndDT4     Seg6LocalAction = 8
	Seg6LocalActionEndDT46    Seg6LocalAction = 9
	Seg6LocalActionB6Encaps   Seg6LocalAction = 10
	Seg6LocalActionB6EncapsR  Seg6LocalAction = 11
	Seg6LocalActionB6Insert   Seg6LocalAction = 12
	Seg6LocalActionB6InsertR  Seg6LocalAction = 13
	Seg6LocalActionUN         Seg6LocalAction = 14
	Seg6LocalActionUA         Seg6LocalAction = 15
	Seg6LocalActionUDX2       Seg6LocalAction = 16
	Seg6LocalActionUDX6       Seg6LocalAction = 17
	Seg6LocalActionUDX4       Seg6LocalAction = 18
	Seg6LocalActionUDT6       Seg6LocalAction = 19
	Seg6LocalActionUDT4       Seg6LocalAction = 20
	Seg6LocalActionUDT46      Seg6LocalAction = 21
)

// USIDVariant remaps a plain localsid action to its uSID form. ok is
// false for actions without a uSID counterpart (e.g. B6_ENCAPS).
func (a Seg6LocalAction) USIDVariant() (Seg6LocalAction, bool) {
	switch a {
	case Seg6LocalActionEnd:
		return Seg6LocalActionUN, true
	case Seg6LocalActionEndX:
		return Seg6LocalActionUA, true
	case Seg6LocalActionEndDX2:
		return Seg6LocalActionUDX2, true
	case Seg6LocalActionEndDX6:
		return Seg6LocalActionUDX6, true
	case Seg6LocalActionEndDX4:
		return Seg6LocalActionUDX4, true
	case Seg6LocalActionEndDT6:
		return Seg6LocalActionUDT6, true
	case Seg6LocalActionEndDT4:
		return Seg6LocalActionUDT4, true
	case Seg6LocalActionEndDT46:
		return Seg6LocalActionUDT46, true
	default:
		return a, false
	}
}

// Nexthop is a single forwarding nexthop as seen by the dataplane.
type Nexthop struct {
	Gateway netip.Addr
	IfIndex uint32
	Weight  uint8

	// Seg6LocalAction is non-Unspec when this nexthop is an SRv6
	// localsid endpoint rather than a plain forwarding hop.
	Seg6LocalAction Seg6LocalAction

	// Seg6Segs is the 16-byte VPN SID encap target; non-empty marks
	// this nexthop as an SRv6 VPN encap nexthop (mutually exclusive
	// with Seg6LocalAction being set).
	Seg6Segs []byte
}

// NexthopGroup is a reusable set of nexthops referenced by routes.
type NexthopGroup struct {
	ID       uint32
	Nexthops []Nexthop

	// ReplaceSemantics marks a v6 install the engine has flagged as
	// needing RTM replace semantics.
	ReplaceSemantics bool
}

// HasSeg6Local reports whether any nexthop in the group carries an
// SRv6 localsid action.
func (g *NexthopGroup) HasSeg6Local() bool {
	for _, nh := range g.Nexthops {
		if nh.Seg6LocalAction != Seg6LocalActionUnspec {
			return true
		}
	}
	return false
}

// FirstSeg6Local returns the first nexthop carrying an SRv6 localsid
// action, if any.
func (g *NexthopGroup) FirstSeg6Local() (Nexthop, bool) {
	for _, nh := range g.Nexthops {
		if nh.Seg6LocalAction != Seg6LocalActionUnspec {
			return nh, true
		}
	}
	return Nexthop{}, false
}

// FirstSeg6VPN returns the first nexthop carrying a nonzero SRv6 VPN
// SID encap, if any.
func (g *NexthopGroup) FirstSeg6VPN() (Nexthop, bool) {
	for _, nh := range g.Nexthops {
		if len(nh.Seg6Segs) != 0 && nh.Seg6LocalAction == Seg6LocalActionUnspec {
			return nh, true
		}
	}
	return Nexthop{}, false
}

// DataplaneContext is one unit of work handed from the engine to the
// plugin: a route, nexthop-group, LSP, MAC, or address change.
type DataplaneContext struct {
	Op OpKind

	Prefix  netip.Prefix
	NHG     *NexthopGroup
	TableID uint32
	VRFID   uint32

	Protocol     uint8
	OldProtocol  uint8
	NewProtocol  uint8
	IfName       string

	LSP *LSP
	MAC *RouterMAC

	Status Status
}

// LSP is an MPLS label-switched path entry.
type LSP struct {
	InLabel uint32
	NHLFE   []Nexthop

	// Sent marks this LSP as already replayed since the current
	// connection epoch. Mutated only on the engine thread.
	Sent bool
}

// RouterMAC is an EVPN L3VNI remote router MAC entry.
type RouterMAC struct {
	VNI  uint32
	MAC  [6]byte
	VTEP netip.Addr

	Sent bool
}

// RIBDest is a single selected-for-install RIB destination.
type RIBDest struct {
	Prefix   netip.Prefix
	TableID  uint32
	VRFID    uint32
	Protocol uint8
	Selected *NexthopGroup

	Sent bool
}

// NHGEntry is a single nexthop-group table entry.
type NHGEntry struct {
	Group NexthopGroup

	Sent bool
}

// VRF identifies a VRF by id and name.
type VRF struct {
	ID   uint32
	Name string
}

// RouteTableFields is the table-id substitution the core computes
// before delegating to any route encoder: table ids below 256 go
// inline in rtm_table; larger VRF ids go in RT_TABLE_UNSPEC plus an
// RTA_TABLE attribute.
type RouteTableFields struct {
	RTMTable byte
	RTATable *uint32
}

// Locator is an SRv6 locator matched against a localsid prefix.
type Locator struct {
	Name    string
	Prefix  netip.Prefix
	BlockLen, NodeLen, FuncLen, ArgLen uint8
	USID    bool
}
