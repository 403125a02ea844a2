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

//go:build linux

package fpm

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket bounds how long a write to the FPM peer may go unacked
// before the kernel reports the connection as broken (TCP_USER_TIMEOUT).
// Without this a half-open peer can leave the plugin writing into a
// black hole far longer than the configured reconnect delay would
// suggest. Best-effort: failures are logged, never fatal.
func (c *Context) tuneSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	raw, err := tc.SyscallConn()
	if err != nil {
		c.log.WithError(err).Debug("fpm: SyscallConn unavailable, skipping socket tuning")
		return
	}

	const userTimeoutMillis = 10_000

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, userTimeoutMillis)
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		c.log.WithError(err).Debug("fpm: failed to set TCP_USER_TIMEOUT")
	}
}
