package engine

import "net/netip"

// ContextSource is the engine's input queue, as seen by the plugin's
// provider glue.
type ContextSource interface {
	// Drain removes up to max pending contexts and returns them. It
	// returns fewer than max if the queue held fewer; it returns a nil
	// or empty slice if the queue was empty.
	Drain(max int) []*DataplaneContext

	// Reschedule asks the engine to call Drain again on its next tick,
	// used when a drain hits the work limit.
	Reschedule()
}

// ContextSink is the engine's output queue: contexts handed back once
// the plugin has finished with them.
type ContextSink interface {
	Accept(ctx *DataplaneContext)
}

// ContextAllocator allocates scratch contexts for the reconciliation
// walker to hand to ContextSink once framed.
type ContextAllocator interface {
	NewContext(op OpKind) *DataplaneContext
}

// LSPTable is the engine's MPLS LSP table.
type LSPTable interface {
	// ResetSentFlags clears the "sent since this epoch" flag on every
	// LSP in the table.
	ResetSentFlags()
	// Walk iterates the table, calling fn for each LSP until fn
	// returns false or the table is exhausted.
	Walk(fn func(*LSP) bool)
}

// NHGTable is the engine's nexthop-group table.
type NHGTable interface {
	ResetSentFlags()
	Walk(fn func(*NHGEntry) bool)
}

// RIBTable is the engine's table of selected-for-install routes.
type RIBTable interface {
	ResetSentFlags()
	// ResetSentFlagsWhere clears sent flags only on destinations
	// matching pred, used for scoped SRv6 route resets.
	ResetSentFlagsWhere(pred func(*RIBDest) bool)
	Walk(fn func(*RIBDest) bool)
}

// RMACTable is the engine's L3VNI-to-router-MAC table.
type RMACTable interface {
	ResetSentFlags()
	Walk(fn func(*RouterMAC) bool)
}

// VRFLookup resolves VRF identities, used by the table-id substitution
// and SRv6 END_T/DT* VRF-name TLV logic.
type VRFLookup interface {
	ByTableID(tableID uint32) (VRF, bool)
}

// LocatorLookup resolves the SRv6 locator matching a localsid prefix.
type LocatorLookup interface {
	Match(prefix netip.Prefix) (Locator, bool)
}

// InterfaceLookup resolves interface indices and addresses, used for
// RTA_OIF and for finding the SRv6 VPN encap source address candidate
// on interface "lo".
type InterfaceLookup interface {
	IndexByName(name string) (uint32, bool)
	// FirstGlobalAddr returns the first non-loopback, non-link-local
	// address configured on the named interface.
	FirstGlobalAddr(name string) (netip.Addr, bool)
}

// RouteEncoder is the engine's own multipath-route netlink encoder,
// used by the core for plain (non-SRv6) routes. table has already had
// the VRF-to-table-id substitution applied by the core.
type RouteEncoder interface {
	EncodeMultipathRoute(ctx *DataplaneContext, install bool, table RouteTableFields) ([]byte, error)
}

// NexthopGroupEncoder is the engine's own nexthop-group netlink
// encoder.
type NexthopGroupEncoder interface {
	EncodeNexthopGroup(ctx *DataplaneContext) ([]byte, error)
}

// LSPEncoder is the engine's own LSP netlink encoder.
type LSPEncoder interface {
	EncodeLSP(ctx *DataplaneContext) ([]byte, error)
}

// MACEncoder is the engine's own MAC FDB netlink encoder.
type MACEncoder interface {
	EncodeMAC(ctx *DataplaneContext) ([]byte, error)
}
