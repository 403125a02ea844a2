// Package fake provides an in-memory test double for the engine
// package's interfaces,
// used by fpm's tests to stand in for a real routing engine the way a
// fake generic-netlink responder stands in for the kernel.
package fake

import (
	"net/netip"
	"sync"

	"github.com/routingd/fpmdplane/engine"
)

// Engine is an in-memory stand-in for the host routing engine. It is
// safe for concurrent use: the real engine's tables are walked from
// the engine thread while the plugin thread may concurrently read VRF
// and interface lookups, so the fake mirrors that with a mutex.
type Engine struct {
	mu sync.Mutex

	lsps  []*engine.LSP
	nhgs  []*engine.NHGEntry
	ribs  []*engine.RIBDest
	rmacs []*engine.RouterMAC

	vrfs      map[uint32]engine.VRF
	locators  []engine.Locator
	ifIndex   map[string]uint32
	ifAddrs   map[string]netip.Addr

	in  []*engine.DataplaneContext
	out []*engine.DataplaneContext

	rescheduled bool

	// RouteEncodeErr, NHGEncodeErr, LSPEncodeErr, and MACEncodeErr let
	// tests force an encoder failure without constructing an
	// unrepresentable context.
	RouteEncodeErr error
	NHGEncodeErr   error
	LSPEncodeErr   error
	MACEncodeErr   error
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{
		vrfs:    make(map[uint32]engine.VRF),
		ifIndex: make(map[string]uint32),
		ifAddrs: make(map[string]netip.Addr),
	}
}

// AddLSP registers an LSP entry.
func (e *Engine) AddLSP(l *engine.LSP) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lsps = append(e.lsps, l)
}

// AddNHG registers a nexthop-group entry.
func (e *Engine) AddNHG(g *engine.NHGEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nhgs = append(e.nhgs, g)
}

// AddRIB registers a RIB destination.
func (e *Engine) AddRIB(d *engine.RIBDest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ribs = append(e.ribs, d)
}

// AddRMAC registers a router-MAC entry.
func (e *Engine) AddRMAC(m *engine.RouterMAC) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rmacs = append(e.rmacs, m)
}

// SetVRF registers a VRF's table-id mapping.
func (e *Engine) SetVRF(v engine.VRF) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vrfs[v.ID] = v
}

// AddLocator registers an SRv6 locator.
func (e *Engine) AddLocator(l engine.Locator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locators = append(e.locators, l)
}

// SetInterface registers an interface's index and optional global address.
func (e *Engine) SetInterface(name string, index uint32, addr netip.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ifIndex[name] = index
	if addr.IsValid() {
		e.ifAddrs[name] = addr
	}
}

// Enqueue appends a context to the engine's input queue, as if the
// routing engine itself had produced it.
func (e *Engine) Enqueue(ctx *engine.DataplaneContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.in = append(e.in, ctx)
}

// Accepted returns every context the plugin has returned to the
// engine's output queue so far.
func (e *Engine) Accepted() []*engine.DataplaneContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*engine.DataplaneContext, len(e.out))
	copy(out, e.out)
	return out
}

// Rescheduled reports whether Reschedule was called since the last
// ResetReschedule.
func (e *Engine) Rescheduled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rescheduled
}

// ResetReschedule clears the Rescheduled flag.
func (e *Engine) ResetReschedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rescheduled = false
}

var _ engine.ContextSource = (*Engine)(nil)
var _ engine.ContextSink = (*Engine)(nil)
var _ engine.ContextAllocator = (*Engine)(nil)
var _ engine.VRFLookup = (*Engine)(nil)
var _ engine.LocatorLookup = (*Engine)(nil)
var _ engine.InterfaceLookup = (*Engine)(nil)
var _ engine.LSPTable = lspView{}
var _ engine.NHGTable = nhgView{}
var _ engine.RIBTable = ribView{}
var _ engine.RMACTable = rmacView{}

// Drain implements engine.ContextSource.
func (e *Engine) Drain(max int) []*engine.DataplaneContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	if max > len(e.in) {
		max = len(e.in)
	}
	out := e.in[:max]
	e.in = e.in[max:]
	return out
}

// Reschedule implements engine.ContextSource.
func (e *Engine) Reschedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rescheduled = true
}

// Accept implements engine.ContextSink.
func (e *Engine) Accept(ctx *engine.DataplaneContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = append(e.out, ctx)
}

// NewContext implements engine.ContextAllocator.
func (e *Engine) NewContext(op engine.OpKind) *engine.DataplaneContext {
	return &engine.DataplaneContext{Op: op}
}

// The table interfaces below disambiguate by wrapper types, since a
// single *Engine implements all four table interfaces and Go does not
// allow four methods named ResetSentFlags/Walk with different
// signatures on one type. Callers obtain the right view with LSPs(),
// NHGs(), RIBs(), RMACs().

// LSPs returns the engine.LSPTable view of this Engine.
func (e *Engine) LSPs() engine.LSPTable { return lspView{e} }

// NHGs returns the engine.NHGTable view of this Engine.
func (e *Engine) NHGs() engine.NHGTable { return nhgView{e} }

// RIBs returns the engine.RIBTable view of this Engine.
func (e *Engine) RIBs() engine.RIBTable { return ribView{e} }

// RMACs returns the engine.RMACTable view of this Engine.
func (e *Engine) RMACs() engine.RMACTable { return rmacView{e} }

type lspView struct{ e *Engine }

func (v lspView) ResetSentFlags() {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	for _, l := range v.e.lsps {
		l.Sent = false
	}
}

func (v lspView) Walk(fn func(*engine.LSP) bool) {
	v.e.mu.Lock()
	lsps := append([]*engine.LSP(nil), v.e.lsps...)
	v.e.mu.Unlock()

	for _, l := range lsps {
		if !fn(l) {
			return
		}
	}
}

type nhgView struct{ e *Engine }

func (v nhgView) ResetSentFlags() {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	for _, g := range v.e.nhgs {
		g.Sent = false
	}
}

func (v nhgView) Walk(fn func(*engine.NHGEntry) bool) {
	v.e.mu.Lock()
	nhgs := append([]*engine.NHGEntry(nil), v.e.nhgs...)
	v.e.mu.Unlock()

	for _, g := range nhgs {
		if !fn(g) {
			return
		}
	}
}

type ribView struct{ e *Engine }

func (v ribView) ResetSentFlags() {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	for _, d := range v.e.ribs {
		d.Sent = false
	}
}

func (v ribView) ResetSentFlagsWhere(pred func(*engine.RIBDest) bool) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	for _, d := range v.e.ribs {
		if pred(d) {
			d.Sent = false
		}
	}
}

func (v ribView) Walk(fn func(*engine.RIBDest) bool) {
	v.e.mu.Lock()
	ribs := append([]*engine.RIBDest(nil), v.e.ribs...)
	v.e.mu.Unlock()

	for _, d := range ribs {
		if !fn(d) {
			return
		}
	}
}

type rmacView struct{ e *Engine }

func (v rmacView) ResetSentFlags() {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	for _, m := range v.e.rmacs {
		m.Sent = false
	}
}

func (v rmacView) Walk(fn func(*engine.RouterMAC) bool) {
	v.e.mu.Lock()
	rmacs := append([]*engine.RouterMAC(nil), v.e.rmacs...)
	v.e.mu.Unlock()

	for _, m := range rmacs {
		if !fn(m) {
			return
		}
	}
}

// ByTableID implements engine.VRFLookup.
func (e *Engine) ByTableID(tableID uint32) (engine.VRF, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vrfs[tableID]
	return v, ok
}

// Match implements engine.LocatorLookup.
func (e *Engine) Match(prefix netip.Prefix) (engine.Locator, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.locators {
		if l.Prefix.Overlaps(prefix) {
			return l, true
		}
	}
	return engine.Locator{}, false
}

// IndexByName implements engine.InterfaceLookup.
func (e *Engine) IndexByName(name string) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.ifIndex[name]
	return idx, ok
}

// FirstGlobalAddr implements engine.InterfaceLookup.
func (e *Engine) FirstGlobalAddr(name string) (netip.Addr, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	addr, ok := e.ifAddrs[name]
	return addr, ok
}

// EncodeMultipathRoute implements engine.RouteEncoder with a
// deterministic stand-in payload: the real multipath encoder belongs
// to the routing engine and is out of scope here.
func (e *Engine) EncodeMultipathRoute(ctx *engine.DataplaneContext, install bool, table engine.RouteTableFields) ([]byte, error) {
	if e.RouteEncodeErr != nil {
		return nil, e.RouteEncodeErr
	}
	op := byte(0)
	if install {
		op = 1
	}
	return []byte{'R', op, table.RTMTable, byte(ctx.Prefix.Bits())}, nil
}

// EncodeNexthopGroup implements engine.NexthopGroupEncoder.
func (e *Engine) EncodeNexthopGroup(ctx *engine.DataplaneContext) ([]byte, error) {
	if e.NHGEncodeErr != nil {
		return nil, e.NHGEncodeErr
	}
	var id uint32
	if ctx.NHG != nil {
		id = ctx.NHG.ID
	}
	return []byte{'N', byte(ctx.Op), byte(id)}, nil
}

// EncodeLSP implements engine.LSPEncoder.
func (e *Engine) EncodeLSP(ctx *engine.DataplaneContext) ([]byte, error) {
	if e.LSPEncodeErr != nil {
		return nil, e.LSPEncodeErr
	}
	var label uint32
	if ctx.LSP != nil {
		label = ctx.LSP.InLabel
	}
	return []byte{'L', byte(ctx.Op), byte(label)}, nil
}

// EncodeMAC implements engine.MACEncoder.
func (e *Engine) EncodeMAC(ctx *engine.DataplaneContext) ([]byte, error) {
	if e.MACEncodeErr != nil {
		return nil, e.MACEncodeErr
	}
	var vni uint32
	if ctx.MAC != nil {
		vni = ctx.MAC.VNI
	}
	return []byte{'M', byte(ctx.Op), byte(vni)}, nil
}

var _ engine.RouteEncoder = (*Engine)(nil)
var _ engine.NexthopGroupEncoder = (*Engine)(nil)
var _ engine.LSPEncoder = (*Engine)(nil)
var _ engine.MACEncoder = (*Engine)(nil)
