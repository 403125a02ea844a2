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
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/engine/fake"
)

func newTestContext(eng *fake.Engine) *Context {
	cfg := DefaultConfig()

	handles := EngineHandles{
		Source: eng, Sink: eng, Alloc: eng,
		LSPs: eng.LSPs(), NHGs: eng.NHGs(), RIBs: eng.RIBs(), RMACs: eng.RMACs(),
		VRFs: eng, Locators: eng, Interfaces: eng,
		Routes: eng, Nexthops: eng, LSPCoder: eng, MACCoder: eng,
	}

	log := logrus.NewEntry(logrus.New())
	log.Logger.SetOutput(discardWriter{})
	return New(cfg, handles, log)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// startLoopOnly launches the plugin thread without dialing, so walker
// and queue tests can drive state transitions directly instead of
// racing a real connect attempt.
func startLoopOnly(c *Context) {
	c.wg.Add(1)
	go c.run()
}

func TestWalkerSendsEachPhaseOnce(t *testing.T) {
	eng := fake.New()
	eng.AddLSP(&engine.LSP{InLabel: 16000})
	eng.AddNHG(&engine.NHGEntry{Group: engine.NexthopGroup{ID: 1}})
	eng.AddRIB(&engine.RIBDest{TableID: 254})
	eng.AddRMAC(&engine.RouterMAC{VNI: 10})

	c := newTestContext(eng)
	startLoopOnly(c)
	defer c.Stop()

	c.doSync(func() {
		c.setState(StateReplayLSP)
		c.resetPhase(StateReplayLSP)
	})

	var lspSent, nhgSent, ribSent, rmacSent bool
	c.doSync(func() {
		eng.LSPs().Walk(func(l *engine.LSP) bool { lspSent = l.Sent; return true })
		eng.NHGs().Walk(func(g *engine.NHGEntry) bool { nhgSent = g.Sent; return true })
		eng.RIBs().Walk(func(d *engine.RIBDest) bool { ribSent = d.Sent; return true })
		eng.RMACs().Walk(func(m *engine.RouterMAC) bool { rmacSent = m.Sent; return true })
	})

	if !lspSent || !nhgSent || !ribSent || !rmacSent {
		t.Fatalf("expected every phase's entry to be marked sent: lsp=%v nhg=%v rib=%v rmac=%v",
			lspSent, nhgSent, ribSent, rmacSent)
	}

	if got, want := c.State(), StateConnected; got != want {
		t.Fatalf("state after full replay chain = %s, want %s", got, want)
	}
}

func TestWalkerSkipsAlreadySentEntries(t *testing.T) {
	eng := fake.New()
	lsp := &engine.LSP{InLabel: 16001, Sent: true}
	eng.AddLSP(lsp)

	c := newTestContext(eng)
	startLoopOnly(c)
	defer c.Stop()

	before := c.obuf.Pending()
	c.doSync(func() {
		c.setState(StateReplayLSP)
		c.sendPhase(StateReplayLSP, c.walkerGen)
	})

	if got := c.obuf.Pending(); got != before {
		t.Fatalf("obuf grew (%d -> %d) for an already-sent LSP", before, got)
	}
}

func TestResetAndWalkRIBIsScoped(t *testing.T) {
	eng := fake.New()
	keep := &engine.RIBDest{TableID: 1, Sent: true}
	reset := &engine.RIBDest{TableID: 2, Sent: true}
	eng.AddRIB(keep)
	eng.AddRIB(reset)

	c := newTestContext(eng)
	startLoopOnly(c)
	defer c.Stop()

	c.doSync(func() { c.setState(StateConnected) })
	before := c.obuf.Pending()
	c.ResetAndWalkRIB(func(d *engine.RIBDest) bool { return d.TableID == 2 })
	// ResetAndWalkRIB posts its walk to the plugin thread; a doSync
	// round trip guarantees it has run.
	c.doSync(func() {})
	after := c.obuf.Pending()

	var keptSent, resetSent bool
	c.doSync(func() {
		eng.RIBs().Walk(func(d *engine.RIBDest) bool {
			if d.TableID == 1 {
				keptSent = d.Sent
			}
			if d.TableID == 2 {
				resetSent = d.Sent
			}
			return true
		})
	})

	if !keptSent {
		t.Fatal("ResetAndWalkRIB touched a RIB entry outside its predicate")
	}
	if !resetSent {
		t.Fatal("ResetAndWalkRIB did not re-send the matched entry")
	}
	if after <= before {
		t.Fatal("ResetAndWalkRIB did not re-encode the matched entry")
	}
}
