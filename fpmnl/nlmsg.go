package fpmnl

import (
	"encoding/binary"

	"github.com/mdlayher/netlink"
)

// marshalMessage builds a complete netlink message: a 16-byte
// nlmsghdr (with nlmsg_len computed by the netlink package) followed
// by data.
func marshalMessage(cmd uint16, flags uint16, data []byte) ([]byte, error) {
	msg := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(cmd),
			Flags: netlink.HeaderFlags(flags),
		},
		Data: data,
	}

	return msg.MarshalBinary()
}

// rtmsgLen is the size of the fixed rtmsg portion preceding route
// attributes: family, dst_len, src_len, tos, table, protocol, scope,
// type (1 byte each) then a 4-byte flags field.
const rtmsgLen = 12

// marshalRtmsg lays out the fixed rtmsg header used by RTM_NEWROUTE,
// RTM_DELROUTE, and their SRv6 localsid command remaps.
func marshalRtmsg(family, dstLen, table, protocol, scope, rtype byte, flags uint32) []byte {
	b := make([]byte, rtmsgLen)
	b[0] = family
	b[1] = dstLen
	b[2] = 0 // src_len: this plugin never encodes source-prefix routes
	b[3] = 0 // tos
	b[4] = table
	b[5] = protocol
	b[6] = scope
	b[7] = rtype
	binary.LittleEndian.PutUint32(b[8:12], flags)
	return b
}
