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

import "github.com/routingd/fpmdplane/engine"

// Process drains up to WorkLimit contexts from the engine's source
// queue and hands the batch to the plugin thread. The engine calls
// Process from its own thread whenever it has queued new work;
// Process itself never blocks on the plugin thread, only the Drain
// step does. When a drain fills the whole work limit, Process asks the
// engine to reschedule it.
func (c *Context) Process() {
	if c.engines.Source == nil {
		return
	}

	limit := c.cfg.WorkLimit
	if limit <= 0 {
		limit = 100
	}

	batch := c.engines.Source.Drain(limit)
	if len(batch) == 0 {
		return
	}

	c.do(func() { c.acceptBatch(batch) })

	if len(batch) == limit {
		c.engines.Source.Reschedule()
	}
}

// acceptBatch decides what to do with a freshly drained batch. While
// not steadily Connected there is nothing to send it over, and the
// reconciliation walker will reconstruct this state once a connection
// replays, so each context is acked straight back rather than parked
// in ctxq forever. Once Connected, contexts queue normally and drain
// through processQueue. Must run on the plugin thread.
func (c *Context) acceptBatch(batch []*engine.DataplaneContext) {
	if c.State() != StateConnected {
		for _, ctx := range batch {
			ctx.Status = engine.StatusSuccess
			if c.engines.Sink != nil {
				c.engines.Sink.Accept(ctx)
			}
		}
		return
	}

	for _, ctx := range batch {
		c.ctxq.Push(ctx)
		c.cnts.AddDplaneContext()
	}
	c.cnts.SetCtxqueueStats(c.ctxq.Len(), c.ctxq.Peak())

	c.processQueue()
}

// processQueue pops queued contexts one at a time and enqueues their
// encoded frames, stopping as soon as the connection is not steady or
// the output buffer can take no more: queued work waits for Connected,
// and a full buffer pauses draining rather than dropping work. Also
// invoked directly once the replay chain reaches steady Connected, so
// work queued while disconnected or mid-replay doesn't wait for an
// unrelated future call to Process. Must run on the plugin thread.
func (c *Context) processQueue() {
	for c.State() == StateConnected {
		ctx := c.ctxq.Pop()
		if ctx == nil {
			break
		}
		c.cnts.SetCtxqueueStats(c.ctxq.Len(), c.ctxq.Peak())

		if err := c.enqueue(ctx); err != nil {
			// Buffer full: put the context back at the front and ask
			// the engine to reschedule us once there's room. Never
			// drop work on a full buffer.
			c.ctxq.PushFront(ctx)
			c.cnts.SetCtxqueueStats(c.ctxq.Len(), c.ctxq.Peak())
			if c.engines.Source != nil {
				c.engines.Source.Reschedule()
			}
			return
		}

		ctx.Status = engine.StatusSuccess
		if c.engines.Sink != nil {
			c.engines.Sink.Accept(ctx)
		}
	}
}
