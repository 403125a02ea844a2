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

// Package fpmnl encodes dataplane operation contexts into the netlink
// messages the FPM peer expects, including the plugin's custom SRv6
// localsid and SRv6 VPN encap variants. It never touches a socket: its
// output is always a plain byte slice ready to be wrapped in an FPM
// frame header by the fpm package.
package fpmnl

import (
	"errors"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/fpmnl/internal/fpmh"
)

// Sentinel errors returned by Encode and its helpers. A VRF lookup
// failure is normalized to ErrVRFNotFound rather than a bare -1 or
// boolean false.
var (
	// ErrUnsupported marks an operation kind or nexthop shape this
	// encoder cannot represent.
	ErrUnsupported = errors.New("fpmnl: unsupported or invalid operation")
	// ErrVRFNotFound marks an SRv6 END_T/DT* encode whose table id has
	// no matching VRF name.
	ErrVRFNotFound = errors.New("fpmnl: no vrf name for table id")
)

// Encoder turns engine.DataplaneContext values into one or more
// complete netlink messages. The Route/Nexthop/LSP/MAC delegate fields
// are the routing engine's own encoders for the operation classes this
// plugin does not re-implement.
type Encoder struct {
	Routes    engine.RouteEncoder
	Nexthops  engine.NexthopGroupEncoder
	LSPs      engine.LSPEncoder
	MACs      engine.MACEncoder
	VRFs      engine.VRFLookup
	Locators  engine.LocatorLookup
	Interfaces engine.InterfaceLookup
}

// Encode returns the netlink messages a single dataplane context
// produces. A route update yields exactly two messages (DEL then
// INSTALL); every other handled operation yields exactly one; a
// nexthop-group operation yields zero when useNHG is false; an address
// install/uninstall and any ignored op kind yield zero. A nil, nil
// result is a deliberate no-op, not a failure.
func (e *Encoder) Encode(ctx *engine.DataplaneContext, useNHG bool) ([][]byte, error) {
	switch ctx.Op {
	case engine.OpRouteInstall:
		b, err := e.encodeRoute(ctx, true)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		return [][]byte{b}, nil

	case engine.OpRouteDelete:
		b, err := e.encodeRoute(ctx, false)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		return [][]byte{b}, nil

	case engine.OpRouteUpdate:
		del, err := e.encodeRoute(ctx, false)
		if err != nil {
			return nil, err
		}
		ins, err := e.encodeRoute(ctx, true)
		if err != nil {
			return nil, err
		}
		if del == nil && ins == nil {
			return nil, nil
		}
		out := make([][]byte, 0, 2)
		if del != nil {
			out = append(out, del)
		}
		if ins != nil {
			out = append(out, ins)
		}
		return out, nil

	case engine.OpNexthopInstall, engine.OpNexthopUpdate, engine.OpNexthopDelete:
		if !useNHG {
			return nil, nil
		}
		if e.Nexthops == nil {
			return nil, ErrUnsupported
		}
		b, err := e.Nexthops.EncodeNexthopGroup(ctx)
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil

	case engine.OpLSPInstall, engine.OpLSPUpdate, engine.OpLSPDelete:
		if e.LSPs == nil {
			return nil, ErrUnsupported
		}
		b, err := e.LSPs.EncodeLSP(ctx)
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil

	case engine.OpMACInstall, engine.OpMACDelete:
		if e.MACs == nil {
			return nil, ErrUnsupported
		}
		b, err := e.MACs.EncodeMAC(ctx)
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil

	default:
		// OpAddressInstall/OpAddressUninstall and every ignored kind:
		// never framed. fpm.Context.enqueue intercepts address ops on
		// lo before they reach Encode to trigger an SRv6 RIB reset;
		// Encode never sees them in practice.
		return nil, nil
	}
}

// routeTableFields computes the rtm_table/RTA_TABLE substitution for a
// VRF id.
func routeTableFields(vrfID uint32) engine.RouteTableFields {
	if vrfID <= fpmh.RTTableMax {
		return engine.RouteTableFields{RTMTable: byte(vrfID)}
	}
	v := vrfID
	return engine.RouteTableFields{RTMTable: fpmh.RTTableUnspec, RTATable: &v}
}
