package fpmnl

import (
	"github.com/mdlayher/netlink"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/fpmnl/internal/fpmh"
)

// encodeSRv6LocalSID encodes an SRv6 localsid install/delete. The
// command is remapped to RTM_NEWSRV6LOCALSID / RTM_DELSRV6LOCALSID;
// the locator match (if any) both supplies the FORMAT TLV and decides
// whether the action gets remapped to its uSID variant.
func (e *Encoder) encodeSRv6LocalSID(ctx *engine.DataplaneContext, nh engine.Nexthop, install bool, table engine.RouteTableFields) ([]byte, error) {
	if !ctx.Prefix.Addr().Is6() {
		return nil, ErrUnsupported
	}

	cmd := uint16(fpmh.RTMDelSRv6LocalSID)
	if install {
		cmd = fpmh.RTMNewSRv6LocalSID
	}
	flags := routeFlags(ctx, install, true)

	action := nh.Seg6LocalAction
	loc, hasLoc := engine.Locator{}, false
	if e.Locators != nil {
		if l, ok := e.Locators.Match(ctx.Prefix); ok {
			loc, hasLoc = l, true
			if l.USID {
				if v, ok := action.USIDVariant(); ok {
					action = v
				}
			}
		}
	}

	ae := netlink.NewAttributeEncoder()

	if table.RTATable != nil {
		ae.Uint32(fpmh.RTATable, *table.RTATable)
	}

	sid := ctx.Prefix.Addr().As16()
	ae.Bytes(fpmh.LocalSIDSIDValue, sid[:])

	if hasLoc {
		ae.Nested(fpmh.LocalSIDFormat, func(nae *netlink.AttributeEncoder) error {
			if loc.BlockLen != 0 {
				nae.Uint8(fpmh.FormatBlockLen, loc.BlockLen)
			}
			if loc.NodeLen != 0 {
				nae.Uint8(fpmh.FormatNodeLen, loc.NodeLen)
			}
			if loc.FuncLen != 0 {
				nae.Uint8(fpmh.FormatFuncLen, loc.FuncLen)
			}
			if loc.ArgLen != 0 {
				nae.Uint8(fpmh.FormatArgLen, loc.ArgLen)
			}
			return nil
		})
	}

	ae.Uint32(fpmh.LocalSIDAction, uint32(action))

	switch action {
	case engine.Seg6LocalActionEndX, engine.Seg6LocalActionUA,
		engine.Seg6LocalActionEndDX6, engine.Seg6LocalActionUDX6:
		if !nh.Gateway.Is6() {
			return nil, ErrUnsupported
		}
		a := nh.Gateway.As16()
		ae.Bytes(fpmh.LocalSIDNH6, a[:])

	case engine.Seg6LocalActionEndDX4, engine.Seg6LocalActionUDX4:
		if !nh.Gateway.Is4() {
			return nil, ErrUnsupported
		}
		a := nh.Gateway.As4()
		ae.Bytes(fpmh.LocalSIDNH4, a[:])

	case engine.Seg6LocalActionEndT, engine.Seg6LocalActionEndDT6,
		engine.Seg6LocalActionEndDT4, engine.Seg6LocalActionEndDT46,
		engine.Seg6LocalActionUDT6, engine.Seg6LocalActionUDT4,
		engine.Seg6LocalActionUDT46:
		if e.VRFs == nil {
			return nil, ErrVRFNotFound
		}
		vrf, ok := e.VRFs.ByTableID(ctx.TableID)
		if !ok {
			return nil, ErrVRFNotFound
		}
		ae.Bytes(fpmh.LocalSIDVRFName, append([]byte(vrf.Name), 0))
	}

	attrs, err := ae.Encode()
	if err != nil {
		return nil, err
	}

	body := marshalRtmsg(afINET6, byte(ctx.Prefix.Bits()), table.RTMTable, ctx.Protocol, rtScopeUniv, rtnUnicast, 0)
	body = append(body, attrs...)

	return marshalMessage(cmd, flags, body)
}

// encodeSRv6VPNRoute encodes an SRv6 VPN-encap route: a standard
// RTM_NEWROUTE/RTM_DELROUTE carrying an RTA_ENCAP_TYPE=SRv6 nest with
// the VPN SID and the node's encap source address.
func (e *Encoder) encodeSRv6VPNRoute(ctx *engine.DataplaneContext, nh engine.Nexthop, install bool, table engine.RouteTableFields) ([]byte, error) {
	if !ctx.Prefix.Addr().Is6() {
		return nil, ErrUnsupported
	}
	if len(nh.Seg6Segs) != 16 {
		return nil, ErrUnsupported
	}

	cmd := uint16(fpmh.RTMDelRoute)
	if install {
		cmd = fpmh.RTMNewRoute
	}
	flags := routeFlags(ctx, install, true)

	var src [16]byte
	if e.Interfaces != nil {
		if addr, ok := e.Interfaces.FirstGlobalAddr("lo"); ok && addr.Is6() {
			src = addr.As16()
		}
	}

	vpnSID := make([]byte, 16)
	copy(vpnSID, nh.Seg6Segs)

	ae := netlink.NewAttributeEncoder()
	if table.RTATable != nil {
		ae.Uint32(fpmh.RTATable, *table.RTATable)
	}
	dst := ctx.Prefix.Addr().As16()
	ae.Bytes(fpmh.RTADst, dst[:])
	ae.Uint16(fpmh.RTAEncapType, fpmh.RouteEncapTypeSRv6)
	ae.Nested(fpmh.RTAEncap, func(nae *netlink.AttributeEncoder) error {
		nae.Bytes(fpmh.VPNEncapVPNSID, vpnSID)
		nae.Bytes(fpmh.VPNEncapSrcAddr, src[:])
		return nil
	})

	attrs, err := ae.Encode()
	if err != nil {
		return nil, err
	}

	body := marshalRtmsg(afINET6, byte(ctx.Prefix.Bits()), table.RTMTable, ctx.Protocol, rtScopeUniv, rtnUnicast, 0)
	body = append(body, attrs...)

	return marshalMessage(cmd, flags, body)
}
