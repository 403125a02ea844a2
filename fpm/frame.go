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

package fpm

import (
	"encoding/binary"
	"errors"

	"github.com/routingd/fpmdplane/fpmnl/internal/fpmh"
)

// Frame is a single decoded FPM frame: a version/type header plus its
// netlink payload.
type Frame struct {
	Version uint8
	Type    uint8
	Payload []byte // excludes the 4-byte header
}

// Errors returned while decoding frames from the input stream.
var (
	// ErrShortFrame means fewer than HeaderLen bytes are buffered;
	// the caller should wait for more input, not reconnect.
	ErrShortFrame = errors.New("fpm: not enough data for frame header")
	// ErrNeedMore means the header is present but the full payload is
	// not yet buffered; the caller should rewind and wait for more.
	ErrNeedMore = errors.New("fpm: frame payload not fully buffered")
	// ErrBadHeader means the version or type field is wrong; the
	// caller must reset its input stream and reconnect.
	ErrBadHeader = errors.New("fpm: invalid frame version or type")
	// ErrBadLength means the frame's length field is smaller than the
	// header itself; the caller must reconnect.
	ErrBadLength = errors.New("fpm: frame length field too small")
)

// EncodeFrame wraps payload in an FPM frame header. payload's length
// plus the 4-byte header must not exceed 65535.
func EncodeFrame(payload []byte) ([]byte, error) {
	total := fpmh.HeaderLen + len(payload)
	if total > 0xffff {
		return nil, errors.New("fpm: payload too large for one frame")
	}

	b := make([]byte, total)
	b[0] = fpmh.FrameVersion
	b[1] = fpmh.FrameTypeNetlink
	binary.BigEndian.PutUint16(b[2:4], uint16(total))
	copy(b[4:], payload)
	return b, nil
}

// DecodeFrame reads one frame from the front of b. On success it
// returns the frame and the number of bytes consumed. Both version and
// type must be exactly right, not just one of the two.
func DecodeFrame(b []byte) (Frame, int, error) {
	if len(b) < fpmh.HeaderLen {
		return Frame{}, 0, ErrShortFrame
	}

	version := b[0]
	typ := b[1]
	length := binary.BigEndian.Uint16(b[2:4])

	if version != fpmh.FrameVersion || typ != fpmh.FrameTypeNetlink {
		return Frame{}, 0, ErrBadHeader
	}
	if length < fpmh.HeaderLen {
		return Frame{}, 0, ErrBadLength
	}
	if int(length) > len(b) {
		return Frame{}, 0, ErrNeedMore
	}

	return Frame{
		Version: version,
		Type:    typ,
		Payload: b[fpmh.HeaderLen:length],
	}, int(length), nil
}

// NlMsgHeader is the fixed 16-byte prefix of a netlink message:
// nlmsg_len, nlmsg_type, nlmsg_flags, nlmsg_seq, nlmsg_pid.
type NlMsgHeader struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	PID   uint32
}

// ErrInnerShort means the frame payload is too small to hold even an
// nlmsghdr; the caller should log and skip this one message.
var ErrInnerShort = errors.New("fpm: nlmsg_len shorter than nlmsghdr")

// ErrInnerOverflow means nlmsg_len claims more bytes than the frame
// payload actually has; the caller must reconnect and stop processing
// input: neither this frame's remaining messages nor any later
// buffered frame is handled.
var ErrInnerOverflow = errors.New("fpm: nlmsg_len exceeds frame payload")

// DecodeNlMsgHeader parses the fixed nlmsghdr prefix of b and sanity
// checks its length fields against the space actually available.
func DecodeNlMsgHeader(b []byte) (NlMsgHeader, error) {
	if len(b) < fpmh.NlMsgHdrLen {
		return NlMsgHeader{}, ErrInnerShort
	}

	h := NlMsgHeader{
		Len:   binary.LittleEndian.Uint32(b[0:4]),
		Type:  binary.LittleEndian.Uint16(b[4:6]),
		Flags: binary.LittleEndian.Uint16(b[6:8]),
		Seq:   binary.LittleEndian.Uint32(b[8:12]),
		PID:   binary.LittleEndian.Uint32(b[12:16]),
	}

	if int(h.Len) < fpmh.NlMsgHdrLen {
		return h, ErrInnerShort
	}
	if int(h.Len) > len(b) {
		return h, ErrInnerOverflow
	}

	return h, nil
}
