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

package fpmnl

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/mdlayher/netlink"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/fpmnl/internal/fpmh"
)

var errShortRtmsg = errors.New("fpmnl: rtmsg body shorter than expected")

func TestEncodeSRv6LocalSIDRemapsCommand(t *testing.T) {
	e := &Encoder{}
	ctx := &engine.DataplaneContext{
		Op:     engine.OpRouteInstall,
		Prefix: netip.MustParsePrefix("fc00:0:1::/48"),
	}
	nh := engine.Nexthop{Seg6LocalAction: engine.Seg6LocalActionEnd}

	b, err := e.encodeSRv6LocalSID(ctx, nh, true, engine.RouteTableFields{RTMTable: 254})
	if err != nil {
		t.Fatalf("encodeSRv6LocalSID: %v", err)
	}

	var msg netlink.Message
	if err := msg.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got, want := uint16(msg.Header.Type), uint16(fpmh.RTMNewSRv6LocalSID); got != want {
		t.Fatalf("command = %d, want %d (RTM_NEWSRV6LOCALSID)", got, want)
	}
}

func TestEncodeSRv6LocalSIDUSIDRemap(t *testing.T) {
	e := &Encoder{Locators: fakeLocatorLookup{
		loc: engine.Locator{USID: true},
	}}
	ctx := &engine.DataplaneContext{Prefix: netip.MustParsePrefix("fc00:0:1::/48")}
	nh := engine.Nexthop{Seg6LocalAction: engine.Seg6LocalActionEnd}

	b, err := e.encodeSRv6LocalSID(ctx, nh, true, engine.RouteTableFields{RTMTable: 254})
	if err != nil {
		t.Fatalf("encodeSRv6LocalSID: %v", err)
	}

	var msg netlink.Message
	if err := msg.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	attrs, err := attributesAfterRtmsg(msg.Data)
	if err != nil {
		t.Fatalf("attributesAfterRtmsg: %v", err)
	}
	ad, err := netlink.NewAttributeDecoder(attrs)
	if err != nil {
		t.Fatalf("NewAttributeDecoder: %v", err)
	}

	var gotAction uint32
	for ad.Next() {
		if ad.Type() == fpmh.LocalSIDAction {
			gotAction = ad.Uint32()
		}
	}

	if gotAction != uint32(engine.Seg6LocalActionUN) {
		t.Fatalf("action = %d, want %d (uSID UN remap of End)", gotAction, engine.Seg6LocalActionUN)
	}
}

func TestEncodeSRv6LocalSIDRejectsIPv4Prefix(t *testing.T) {
	e := &Encoder{}
	ctx := &engine.DataplaneContext{Prefix: netip.MustParsePrefix("10.0.0.0/24")}
	if _, err := e.encodeSRv6LocalSID(ctx, engine.Nexthop{}, true, engine.RouteTableFields{}); err != ErrUnsupported {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestEncodeSRv6LocalSIDEndTRequiresVRF(t *testing.T) {
	e := &Encoder{VRFs: fakeVRFLookup{}}
	ctx := &engine.DataplaneContext{
		Prefix:  netip.MustParsePrefix("fc00:0:1::/48"),
		TableID: 42,
	}
	nh := engine.Nexthop{Seg6LocalAction: engine.Seg6LocalActionEndT}

	if _, err := e.encodeSRv6LocalSID(ctx, nh, true, engine.RouteTableFields{}); err != ErrVRFNotFound {
		t.Fatalf("err = %v, want ErrVRFNotFound", err)
	}
}

func TestEncodeSRv6VPNRouteEncapsSID(t *testing.T) {
	e := &Encoder{Interfaces: fakeInterfaceLookup{addr: netip.MustParseAddr("2001:db8::1")}}
	ctx := &engine.DataplaneContext{Prefix: netip.MustParsePrefix("fc00:0:2::/48")}
	segs := make([]byte, 16)
	segs[0] = 0xab
	nh := engine.Nexthop{Seg6Segs: segs}

	b, err := e.encodeSRv6VPNRoute(ctx, nh, true, engine.RouteTableFields{RTMTable: 254})
	if err != nil {
		t.Fatalf("encodeSRv6VPNRoute: %v", err)
	}

	var msg netlink.Message
	if err := msg.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got, want := uint16(msg.Header.Type), uint16(fpmh.RTMNewRoute); got != want {
		t.Fatalf("command = %d, want RTM_NEWROUTE", got)
	}

	attrs, err := attributesAfterRtmsg(msg.Data)
	if err != nil {
		t.Fatalf("attributesAfterRtmsg: %v", err)
	}
	ad, err := netlink.NewAttributeDecoder(attrs)
	if err != nil {
		t.Fatalf("NewAttributeDecoder: %v", err)
	}

	var gotSID []byte
	for ad.Next() {
		if ad.Type() == fpmh.RTAEncap {
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					if nad.Type() == fpmh.VPNEncapVPNSID {
						gotSID = nad.Bytes()
					}
				}
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		t.Fatalf("decoding attributes: %v", err)
	}
	if string(gotSID) != string(segs) {
		t.Fatalf("VPN SID in encap nest = %x, want %x", gotSID, segs)
	}
}

func TestEncodeSRv6VPNRouteRejectsShortSID(t *testing.T) {
	e := &Encoder{}
	ctx := &engine.DataplaneContext{Prefix: netip.MustParsePrefix("fc00:0:2::/48")}
	nh := engine.Nexthop{Seg6Segs: []byte{0x01}}

	if _, err := e.encodeSRv6VPNRoute(ctx, nh, true, engine.RouteTableFields{}); err != ErrUnsupported {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

// attributesAfterRtmsg strips the fixed rtmsg prefix so the remaining
// bytes can be parsed as a flat attribute stream.
func attributesAfterRtmsg(data []byte) ([]byte, error) {
	if len(data) < rtmsgLen {
		return nil, errShortRtmsg
	}
	return data[rtmsgLen:], nil
}

type fakeLocatorLookup struct {
	loc engine.Locator
	ok  bool
}

func (f fakeLocatorLookup) Match(prefix netip.Prefix) (engine.Locator, bool) {
	return f.loc, true
}

type fakeVRFLookup struct{}

func (fakeVRFLookup) ByTableID(tableID uint32) (engine.VRF, bool) { return engine.VRF{}, false }

type fakeInterfaceLookup struct {
	addr netip.Addr
}

func (f fakeInterfaceLookup) IndexByName(name string) (uint32, bool) { return 0, false }
func (f fakeInterfaceLookup) FirstGlobalAddr(name string) (netip.Addr, bool) {
	return f.addr, true
}
