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

// Package fpm is the core of the dataplane-to-FPM plugin: the
// connection state machine, the framed netlink I/O loop, the
// reconciliation walker, and the provider glue that ties it to a
// host routing engine. It never holds package-level mutable state;
// every method hangs off an explicit *Context handle returned by New.
package fpm

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/fpmnl"
)

// EngineHandles bundles every interface the core needs from the host
// routing engine collaborator, expressed as explicit dependencies
// instead of globals.
type EngineHandles struct {
	Source engine.ContextSource
	Sink   engine.ContextSink
	Alloc  engine.ContextAllocator

	LSPs  engine.LSPTable
	NHGs  engine.NHGTable
	RIBs  engine.RIBTable
	RMACs engine.RMACTable

	VRFs       engine.VRFLookup
	Locators   engine.LocatorLookup
	Interfaces engine.InterfaceLookup

	Routes   engine.RouteEncoder
	Nexthops engine.NexthopGroupEncoder
	LSPCoder engine.LSPEncoder
	MACCoder engine.MACEncoder
}

// Context is the non-singleton replacement for a process-wide
// FpmContext global: every piece of connection, buffering, and
// counter state lives here, and it is passed explicitly to every
// caller instead of being reached through module-level state.
type Context struct {
	cfg Config
	log *logrus.Entry

	engines EngineHandles
	encoder *fpmnl.Encoder

	obuf *OutputBuffer
	ctxq *ContextQueue
	cnts *Counters

	// actor serializes every state mutation onto one goroutine ("the
	// plugin thread"): connect/read/write results, user events, and
	// walker resumes are all posted here rather than taking a lock
	// from arbitrary goroutines.
	actor  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex // guards the fields below, for the few reads that must not wait on the actor
	state   State
	address netip.AddrPort
	disabled bool
	useNHG   bool

	conn   net.Conn
	connMu sync.Mutex

	epoch uint64

	reconnectTimer *time.Timer
	walkerTimer    *time.Timer
	walkerGen      uint64
}

// New constructs a Context from cfg and the engine handles it will
// drive. The Context is idle until Start is called.
func New(cfg Config, engines EngineHandles, log *logrus.Entry) *Context {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	c := &Context{
		cfg:     cfg,
		log:     log,
		engines: engines,
		encoder: &fpmnl.Encoder{
			Routes:     engines.Routes,
			Nexthops:   engines.Nexthops,
			LSPs:       engines.LSPCoder,
			MACs:       engines.MACCoder,
			VRFs:       engines.VRFs,
			Locators:   engines.Locators,
			Interfaces: engines.Interfaces,
		},
		obuf:     NewOutputBuffer(OutputBufferCapacity),
		ctxq:     NewContextQueue(),
		cnts:     &Counters{},
		actor:    make(chan func(), 256),
		stopCh:   make(chan struct{}),
		state:    StateIdle,
		useNHG:   cfg.UseNHG,
	}

	if ap, err := cfg.AddrPort(); err == nil {
		c.address = ap
	}

	return c
}

// Start launches the plugin thread and, if an address is configured,
// begins connecting.
func (c *Context) Start() {
	c.wg.Add(1)
	go c.run()

	c.do(func() {
		c.tryConnect()
	})
}

// Stop tears the Context down in two phases: cancel tasks and close
// the socket, then release buffers.
func (c *Context) Stop() {
	c.do(func() {
		c.cancelAllTasks()
		c.closeConnLocked()
	})

	close(c.stopCh)
	c.wg.Wait()

	c.obuf.Reset()
}

// run is the plugin thread: every state mutation in this package
// happens inside a closure executed by this loop.
func (c *Context) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case fn := <-c.actor:
			fn()
		}
	}
}

// do posts fn to run on the plugin thread, without waiting for it to
// complete.
func (c *Context) do(fn func()) {
	select {
	case c.actor <- fn:
	case <-c.stopCh:
	}
}

// doSync posts fn to run on the plugin thread and blocks until it has.
// Used by Dispatch and by tests that need a deterministic view of
// state after an event.
func (c *Context) doSync(fn func()) {
	done := make(chan struct{})
	c.do(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-c.stopCh:
	}
}

// State returns the current connection state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Counters returns the Context's counters block.
func (c *Context) Counters() *Counters { return c.cnts }

// setState transitions the state machine and logs the move. Must only
// be called from the plugin thread.
func (c *Context) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.log.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Debug("fpm: state transition")
	}
}

// Dispatch posts a user- or internally-triggered event to the
// single-threaded dispatcher. It blocks until the event has been
// handled.
func (c *Context) Dispatch(ev Event) {
	c.doSync(func() {
		c.handleEvent(ev)
	})
}

func (c *Context) handleEvent(ev Event) {
	switch ev {
	case EventReconnect:
		c.mu.Lock()
		c.disabled = false
		c.mu.Unlock()
		c.cnts.AddUserConfigure()
		c.reconnectNow()

	case EventDisable:
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.cnts.AddUserDisable()
		c.cancelAllTasks()
		c.closeConnLocked()
		c.setState(StateDisabled)

	case EventResetCounters:
		c.cnts.Reset()

	case EventToggleNHG:
		c.mu.Lock()
		c.useNHG = !c.useNHG
		c.mu.Unlock()
		c.reconnectNow()

	case EventInternalReconnect:
		c.reconnectNow()
	}
}

// UseNHG reports the current next-hop-group policy.
func (c *Context) UseNHG() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useNHG
}

// Disabled reports whether the Context is in the Disabled state.
func (c *Context) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// SetAddress updates the configured peer address and reconnects,
// for the CLI "set address" command.
func (c *Context) SetAddress(ap netip.AddrPort) {
	c.doSync(func() {
		c.mu.Lock()
		c.address = ap
		c.mu.Unlock()
		c.cnts.AddUserConfigure()
		c.reconnectNow()
	})
}

// reconnectNow cancels any in-flight connection and begins a fresh
// connect attempt immediately. Must run on the plugin thread.
func (c *Context) reconnectNow() {
	c.cancelAllTasks()
	c.closeConnLocked()
	c.obuf.Reset()

	c.mu.Lock()
	disabled := c.disabled
	c.mu.Unlock()

	if disabled {
		c.setState(StateDisabled)
		return
	}

	c.setState(StateIdle)
	c.tryConnect()
}

// cancelAllTasks stops every pending timer. Must run on the plugin
// thread: transitioning to Disabled or into reconnect cancels every
// task handle.
func (c *Context) cancelAllTasks() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.walkerTimer != nil {
		c.walkerTimer.Stop()
		c.walkerTimer = nil
	}
	c.walkerGen++
}

// closeConnLocked closes the socket if present.
func (c *Context) closeConnLocked() {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// scheduleReconnect arms a reconnect attempt after the configured
// backoff (3 seconds by default).
func (c *Context) scheduleReconnect() {
	delay := time.Duration(c.cfg.ReconnectDelaySeconds) * time.Second
	if delay <= 0 {
		delay = 3 * time.Second
	}

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.do(func() { c.handleEvent(EventInternalReconnect) })
	})
}

// tryConnect starts a connect attempt. The blocking net.DialTimeout
// runs on its own goroutine and posts its result back through do: the
// dial happens off the plugin thread, and only the result is ever
// touched by it.
func (c *Context) tryConnect() {
	c.mu.Lock()
	addr := c.address
	disabled := c.disabled
	c.mu.Unlock()

	if disabled {
		c.setState(StateDisabled)
		return
	}
	if !addr.IsValid() {
		c.setState(StateIdle)
		return
	}

	c.setState(StateConnecting)

	go func() {
		conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
		c.do(func() {
			c.onConnectResult(conn, err)
		})
	}()
}

func (c *Context) onConnectResult(conn net.Conn, err error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateConnecting {
		// A reconnect or disable raced ahead of this result.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		c.cnts.AddConnectionError()
		c.log.WithError(err).Warn("fpm: connect failed")
		c.setState(StateIdle)
		c.scheduleReconnect()
		return
	}

	c.tuneSocket(conn)

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.epoch++
	c.log.WithField("epoch", c.epoch).Info("fpm: connected")
	c.setState(StateConnected)

	go c.readLoop(conn, c.epoch)

	c.setState(StateReplayLSP)
	c.do(func() { c.resetPhase(StateReplayLSP) })
}

// readLoop reads framed messages from conn until it errs or the
// connection is replaced. Decoded route-notify payloads are posted to
// the plugin thread; everything else is handled inline there too.
func (c *Context) readLoop(conn net.Conn, epoch uint64) {
	buf := make([]byte, 65536)
	var pending []byte

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			c.cnts.AddBytesRead(uint32(n))
		}
		if err != nil {
			c.do(func() { c.onReadError(epoch, err) })
			return
		}

		data := pending
		for {
			frame, consumed, ferr := DecodeFrame(data)
			if ferr == nil {
				data = data[consumed:]
				if !c.handleFramePayload(epoch, frame.Payload) {
					return
				}
				continue
			}
			if errors.Is(ferr, ErrShortFrame) || errors.Is(ferr, ErrNeedMore) {
				break
			}
			c.do(func() { c.onProtocolError(epoch, ferr) })
			return
		}
		pending = append([]byte(nil), data...)
	}
}

// handleFramePayload decodes the inner netlink message(s) in a frame
// payload. Only RTM_NEWROUTE is currently interpreted; every other
// message type is ignored. It returns false when an inner message
// overflows the frame: the reconnect has then been posted and the read
// loop stops processing buffered frames.
func (c *Context) handleFramePayload(epoch uint64, payload []byte) bool {
	data := payload
	for len(data) > 0 {
		h, err := DecodeNlMsgHeader(data)
		if errors.Is(err, ErrInnerShort) {
			c.log.Warn("fpm: short inner netlink message, skipping")
			return true
		}
		if errors.Is(err, ErrInnerOverflow) {
			c.do(func() { c.onProtocolError(epoch, err) })
			return false
		}

		msg := data[:h.Len]
		data = data[h.Len:]

		const rtmNewRoute = 24
		if h.Type == rtmNewRoute {
			c.do(func() { c.onRouteNotify(epoch, msg) })
		}
	}
	return true
}

// onRouteNotify hands the engine one context per RTM_NEWROUTE message
// received from the peer: an OpIgnored context from the engine's
// allocator, marked StatusSuccess. The message's attributes are not
// decoded, and nothing from msg is copied into the context.
func (c *Context) onRouteNotify(epoch uint64, msg []byte) {
	if !c.currentEpoch(epoch) {
		return
	}
	if c.engines.Sink == nil || c.engines.Alloc == nil {
		return
	}

	ctx := c.engines.Alloc.NewContext(engine.OpIgnored)
	ctx.Status = engine.StatusSuccess
	c.engines.Sink.Accept(ctx)
}

func (c *Context) currentEpoch(epoch uint64) bool {
	return c.epoch == epoch
}

func (c *Context) onReadError(epoch uint64, err error) {
	if !c.currentEpoch(epoch) {
		return
	}
	if errors.Is(err, errClosedByUs) {
		return
	}
	c.cnts.AddConnectionClose()
	c.log.WithError(err).Info("fpm: connection closed")
	c.teardownAndReconnect()
}

func (c *Context) onProtocolError(epoch uint64, err error) {
	if !c.currentEpoch(epoch) {
		return
	}
	c.cnts.AddConnectionError()
	c.log.WithError(err).Warn("fpm: protocol error, reconnecting")
	c.teardownAndReconnect()
}

var errClosedByUs = errors.New("fpm: connection closed locally")

// teardownAndReconnect implements the "any state except Disabled ->
// Idle" transition: cancel walkers, drain buffers, close the socket,
// schedule a reconnect.
func (c *Context) teardownAndReconnect() {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if !state.canReconnectFrom() {
		return
	}

	c.cancelAllTasks()
	c.closeConnLocked()
	c.obuf.Reset()
	c.setState(StateIdle)
	c.scheduleReconnect()
}

// flushWrite writes everything pending in obuf to the socket; bytes the
// write did not take are put back into obuf. A timeout error is treated
// as transient and swallowed, leaving the remainder for the next
// enqueue to flush; any other write error tears the connection down.
func (c *Context) flushWrite() {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}

	pending := c.obuf.Drain()
	if len(pending) == 0 {
		return
	}

	n, err := conn.Write(pending)
	if n > 0 {
		c.cnts.AddBytesSent(uint32(n))
	}
	if n < len(pending) {
		// Partial write: put the unwritten remainder back at the
		// front of the buffer.
		_ = c.obuf.Append(pending[n:])
	}
	if err != nil {
		if isTransient(err) {
			return
		}
		c.cnts.AddConnectionError()
		c.log.WithError(err).Warn("fpm: write failed")
		c.teardownAndReconnect()
	}
}

func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// enqueue encodes ctx and appends the resulting frame(s) to obuf,
// arming a write. Returns ErrBufferFull (not an error in the
// operational sense) when the frame(s) would not fit yet.
func (c *Context) enqueue(ctx *engine.DataplaneContext) error {
	if ctx.Op == engine.OpAddressInstall || ctx.Op == engine.OpAddressUninstall {
		if ctx.IfName == "lo" {
			c.ResetAndWalkRIB(ribDestHasSeg6VPN)
		}
		return nil
	}

	msgs, err := c.encoder.Encode(ctx, c.UseNHG())
	if err != nil {
		c.log.WithError(err).WithField("op", ctx.Op.String()).Warn("fpm: encode failed, dropping")
		return nil // encoder failures are dropped, never retried
	}
	if len(msgs) == 0 {
		return nil
	}

	frames := make([][]byte, 0, len(msgs))
	total := 0
	for _, m := range msgs {
		f, err := EncodeFrame(m)
		if err != nil {
			c.log.WithError(err).Warn("fpm: frame too large, dropping")
			return nil
		}
		frames = append(frames, f)
		total += len(f)
	}

	if total > c.obuf.Writable() {
		c.cnts.AddBufferFull()
		return ErrBufferFull
	}

	for _, f := range frames {
		if err := c.obuf.Append(f); err != nil {
			// Should not happen given the Writable check above, but
			// never partially enqueue.
			c.cnts.AddBufferFull()
			return ErrBufferFull
		}
	}

	c.cnts.SetObufStats(uint32(c.obuf.Pending()), c.obuf.Peak())
	c.flushWrite()
	return nil
}
