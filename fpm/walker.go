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
	"time"

	"github.com/routingd/fpmdplane/engine"
)

// resetPhase clears the "sent" flags for the table a replay phase
// covers, then starts sending. Runs on the plugin thread; the walker
// owns no separate goroutine of its own. Reset and send are two steps
// of the same walk, and nothing about them needs to run anywhere but
// where enqueue already runs, since enqueue owns its own
// synchronization via obuf/ctxq.
func (c *Context) resetPhase(s State) {
	switch s {
	case StateReplayLSP:
		if c.engines.LSPs != nil {
			c.engines.LSPs.ResetSentFlags()
		}
	case StateReplayNHG:
		if c.engines.NHGs != nil {
			c.engines.NHGs.ResetSentFlags()
		}
	case StateReplayRIB:
		if c.engines.RIBs != nil {
			c.engines.RIBs.ResetSentFlags()
		}
	case StateReplayRMAC:
		if c.engines.RMACs != nil {
			c.engines.RMACs.ResetSentFlags()
		}
	}

	c.sendPhase(s, c.walkerGen)
}

// ResetAndWalkRIB re-walks only the RIB rows matching pred, without
// disturbing LSP/NHG/RMAC state: a scoped reconciliation trigger used
// when an address is installed or removed on the loopback interface,
// which may change the SRv6 VPN encap source address.
func (c *Context) ResetAndWalkRIB(pred func(*engine.RIBDest) bool) {
	c.do(func() {
		if c.State() != StateConnected && !c.State().isReplaying() {
			return
		}
		if c.engines.RIBs != nil {
			c.engines.RIBs.ResetSentFlagsWhere(pred)
		}
		c.sendPhase(StateReplayRIB, c.walkerGen)
	})
}

// ribDestHasSeg6VPN reports whether d's selected nexthop group carries
// an SRv6 VPN encap nexthop. This scopes a loopback address change's
// RIB reset to the destinations it can actually affect.
func ribDestHasSeg6VPN(d *engine.RIBDest) bool {
	if d.Selected == nil {
		return false
	}
	_, ok := d.Selected.FirstSeg6VPN()
	return ok
}

// sendPhase walks the table for phase s, enqueuing every unsent row.
// If the output buffer fills, it suspends and reschedules itself after
// the configured resume delay (0s for LSP/NHG, 1s for RIB/RMAC) rather
// than spinning. gen guards against a resume firing after a reconnect
// has moved the walker's generation on.
func (c *Context) sendPhase(s State, gen uint64) {
	if gen != c.walkerGen {
		return
	}

	full := false

	switch s {
	case StateReplayLSP:
		if c.engines.LSPs != nil {
			c.engines.LSPs.Walk(func(lsp *engine.LSP) bool {
				if lsp.Sent {
					return true
				}
				ctx := c.newContextFor(engine.OpLSPInstall)
				ctx.LSP = lsp
				if err := c.enqueue(ctx); err != nil {
					full = true
					return false
				}
				lsp.Sent = true
				return true
			})
		}
	case StateReplayNHG:
		if c.engines.NHGs != nil {
			c.engines.NHGs.Walk(func(e *engine.NHGEntry) bool {
				if e.Sent {
					return true
				}
				ctx := c.newContextFor(engine.OpNexthopInstall)
				ctx.NHG = &e.Group
				if err := c.enqueue(ctx); err != nil {
					full = true
					return false
				}
				e.Sent = true
				return true
			})
		}
	case StateReplayRIB:
		if c.engines.RIBs != nil {
			c.engines.RIBs.Walk(func(d *engine.RIBDest) bool {
				if d.Sent {
					return true
				}
				ctx := c.newContextFor(engine.OpRouteInstall)
				ctx.Prefix = d.Prefix
				ctx.TableID = d.TableID
				ctx.VRFID = d.VRFID
				ctx.Protocol = d.Protocol
				ctx.NHG = d.Selected
				if err := c.enqueue(ctx); err != nil {
					full = true
					return false
				}
				d.Sent = true
				return true
			})
		}
	case StateReplayRMAC:
		if c.engines.RMACs != nil {
			c.engines.RMACs.Walk(func(rm *engine.RouterMAC) bool {
				if rm.Sent {
					return true
				}
				ctx := c.newContextFor(engine.OpMACInstall)
				ctx.MAC = rm
				if err := c.enqueue(ctx); err != nil {
					full = true
					return false
				}
				rm.Sent = true
				return true
			})
		}
	}

	if full {
		c.scheduleWalkerResume(s, gen)
		return
	}

	// A scoped walk from ResetAndWalkRIB runs outside the replay chain;
	// only a walk of the current replay phase advances the chain.
	if c.State() != s {
		return
	}

	if ev, ok := finishedEventForState(s); ok {
		c.log.WithField("phase", s.String()).Debug(ev.String())
	}

	if next, ok := nextReplayState(s); ok {
		c.setState(next)
		if next.isReplaying() {
			c.resetPhase(next)
		} else if next == StateConnected {
			// Work may have queued in ctxq while disconnected or
			// mid-replay; drain it now instead of waiting for some
			// unrelated future call to Process.
			c.do(func() { c.processQueue() })
		}
	}
}

// scheduleWalkerResume arms a timer to resume phase s after the
// phase-appropriate delay.
func (c *Context) scheduleWalkerResume(s State, gen uint64) {
	delay := c.resumeDelay(s)
	c.walkerTimer = time.AfterFunc(delay, func() {
		c.do(func() { c.sendPhase(s, gen) })
	})
}

func (c *Context) resumeDelay(s State) time.Duration {
	switch s {
	case StateReplayLSP, StateReplayNHG:
		d := c.cfg.WalkerFastResumeSeconds
		return time.Duration(d) * time.Second
	default:
		d := c.cfg.WalkerSlowResumeSeconds
		if d <= 0 {
			d = 1
		}
		return time.Duration(d) * time.Second
	}
}

// newContextFor allocates a DataplaneContext from the engine's
// allocator when available, falling back to a bare literal so the
// walker still functions against a minimal engine stub.
func (c *Context) newContextFor(op engine.OpKind) *engine.DataplaneContext {
	if c.engines.Alloc != nil {
		ctx := c.engines.Alloc.NewContext(op)
		ctx.Op = op
		return ctx
	}
	return &engine.DataplaneContext{Op: op}
}
