// Package fpmh holds the wire-format constants for the FPM frame
// header, the custom SRv6 netlink command remaps, and the SRv6 TLV
// numbering. Unlike a header generated from C source by c-for-go,
// there is no upstream header to point at: the wire format here is
// this plugin's own custom extension of rtnetlink, so these constants
// are hand-derived rather than generated.
package fpmh

// FrameVersion is the only version this codec accepts.
const FrameVersion = 1

// FrameTypeNetlink is the only frame type this codec accepts.
const FrameTypeNetlink = 1

// HeaderLen is the size in bytes of the FPM frame header: version(1) +
// type(1) + length(2).
const HeaderLen = 4

// NlMsgHdrLen is the size in bytes of a netlink message header:
// len(4) + type(2) + flags(2) + seq(4) + pid(4).
const NlMsgHdrLen = 16

// Netlink command remaps for SRv6 localsid routes.
const (
	RTMNewRoute        = 24
	RTMDelRoute        = 25
	RTMNewNexthop      = 104
	RTMDelNexthop      = 105
	RTMNewSRv6LocalSID = 1000
	RTMDelSRv6LocalSID = 1001
)

// RTTableUnspec and RTTableDefault mirror the kernel's reserved route
// table ids.
const (
	RTTableUnspec  = 0
	RTTableDefault = 253
	RTTableMax     = 255
)

// Route attribute types used directly by this plugin's encoders (a
// subset of RTA_*).
const (
	RTADst       = 1
	RTAOif       = 4
	RTAGateway   = 5
	RTAPriority  = 6
	RTATable     = 15
	RTAEncapType = 21
	RTAEncap     = 22
)

// RouteEncapTypeSRv6 is the RTA_ENCAP_TYPE value for SRv6 VPN encap
// routes.
const RouteEncapTypeSRv6 = 101

// SRv6 VPN encap nest TLVs.
const (
	VPNEncapVPNSID  = 1
	VPNEncapSrcAddr = 2
)

// SRv6 localsid top-level TLVs.
const (
	LocalSIDSIDValue     = 1
	LocalSIDFormat       = 2
	LocalSIDAction       = 3
	LocalSIDVRFName      = 4
	LocalSIDNH6          = 5
	LocalSIDNH4          = 6
	LocalSIDIIF          = 7
	LocalSIDOIF          = 8
	LocalSIDBPF          = 9
	LocalSIDSIDList      = 10
	LocalSIDEncapSrcAddr = 11
)

// SRv6 localsid FORMAT nested TLVs.
const (
	FormatBlockLen = 1
	FormatNodeLen  = 2
	FormatFuncLen  = 3
	FormatArgLen   = 4
)

// Netlink header flags: installs are REQUEST|CREATE, with REPLACE
// added for v4 installs and v6-with-replace-semantics.
const (
	NLFRequest uint16 = 0x01
	NLFMulti   uint16 = 0x02
	NLFAck     uint16 = 0x04
	NLFReplace uint16 = 0x100
	NLFExcl    uint16 = 0x200
	NLFCreate  uint16 = 0x400
)
