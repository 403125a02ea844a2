package fpmnl

import (
	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/fpmnl/internal/fpmh"
)

// Address family and route-type/scope constants this plugin's own
// route encoders need directly (the engine's delegate multipath
// encoder manages its own).
const (
	afINET      = 2
	afINET6     = 10
	rtnUnicast  = 1
	rtScopeUniv = 0
)

// encodeRoute dispatches a route context to the plain, SRv6 localsid,
// or SRv6 VPN encoder, applying the table-id substitution and
// default-table drop common to all three. A nil, nil return means the
// route was silently dropped (default table), not an error.
func (e *Encoder) encodeRoute(ctx *engine.DataplaneContext, install bool) ([]byte, error) {
	if ctx.TableID == fpmh.RTTableDefault {
		return nil, nil
	}

	table := routeTableFields(ctx.VRFID)

	if ctx.NHG != nil {
		if nh, ok := ctx.NHG.FirstSeg6Local(); ok {
			return e.encodeSRv6LocalSID(ctx, nh, install, table)
		}
		if nh, ok := ctx.NHG.FirstSeg6VPN(); ok {
			return e.encodeSRv6VPNRoute(ctx, nh, install, table)
		}
	}

	if e.Routes == nil {
		return nil, ErrUnsupported
	}
	return e.Routes.EncodeMultipathRoute(ctx, install, table)
}

// routeFlags computes nlmsg_flags for a plain or SRv6 route: installs
// get REQUEST|CREATE, plus REPLACE for v4 installs and for v6 installs
// the engine has flagged with replace semantics.
func routeFlags(ctx *engine.DataplaneContext, install bool, isV6 bool) uint16 {
	if !install {
		return fpmh.NLFRequest
	}

	flags := fpmh.NLFRequest | fpmh.NLFCreate
	if !isV6 {
		flags |= fpmh.NLFReplace
	} else if ctx.NHG != nil && ctx.NHG.ReplaceSemantics {
		flags |= fpmh.NLFReplace
	}
	return flags
}
