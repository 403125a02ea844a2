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

// Command fpmdplane-sim wires a fake routing engine to the fpm core
// and runs it against a real TCP listener, logging (at debug level)
// how many bytes the simulated peer receives. It exists to exercise the core end to end
// without a real FRR zebra process, and is not part of the library.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/routingd/fpmdplane/engine"
	"github.com/routingd/fpmdplane/engine/fake"
	"github.com/routingd/fpmdplane/fpm"
)

func main() {
	addr := flag.String("listen", "127.0.0.1:2620", "address the simulated FPM peer listens on")
	configPath := flag.String("config", "", "optional TOML config file")
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())

	cfg := fpm.DefaultConfig()
	if *configPath != "" {
		loaded, err := fpm.LoadConfig(*configPath)
		if err != nil {
			log.WithError(err).Fatal("fpmdplane-sim: loading config")
		}
		cfg = loaded
	}

	host, portStr, err := net.SplitHostPort(*addr)
	if err != nil {
		log.WithError(err).Fatal("fpmdplane-sim: parsing -listen")
	}
	cfg.Address = host
	fmt.Sscanf(portStr, "%d", &cfg.Port)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.WithError(err).Fatal("fpmdplane-sim: listen")
	}

	eng := fake.New()
	seedSampleState(eng)

	handles := fpm.EngineHandles{
		Source: eng, Sink: eng, Alloc: eng,
		LSPs: eng.LSPs(), NHGs: eng.NHGs(), RIBs: eng.RIBs(), RMACs: eng.RMACs(),
		VRFs: eng, Locators: eng, Interfaces: eng,
		Routes: eng, Nexthops: eng, LSPCoder: eng, MACCoder: eng,
	}

	plane := fpm.New(cfg, handles, log)
	plane.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(gctx)

	// The simulated peer's accept loop and the tick loop that drives
	// Process() run as independent errgroup members so that either one
	// exiting (listener closed, signal received) tears the other down
	// through the shared context rather than leaking a goroutine.
	group.Go(func() error { return acceptAndDrain(gctx, ln, log) })
	group.Go(func() error { return tickLoop(gctx, plane, log) })

	<-sig
	log.Info("fpmdplane-sim: shutting down")
	cancel()
	_ = ln.Close()
	plane.Stop()

	if err := group.Wait(); err != nil {
		log.WithError(err).Warn("fpmdplane-sim: goroutine exited with error")
	}
}

func tickLoop(ctx context.Context, plane *fpm.Context, log *logrus.Entry) error {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			plane.Process()
			log.WithField("state", plane.State().String()).Info("fpmdplane-sim: tick")
		}
	}
}

func acceptAndDrain(ctx context.Context, ln net.Listener, log *logrus.Entry) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func(c net.Conn) {
			defer c.Close()
			buf := make([]byte, 65536)
			for {
				n, err := c.Read(buf)
				if n > 0 {
					log.WithField("bytes", n).Debug("fpmdplane-sim: simulated peer received frame bytes")
				}
				if err != nil {
					return
				}
			}
		}(conn)
	}
}

func seedSampleState(eng *fake.Engine) {
	eng.SetVRF(engine.VRF{ID: 0, Name: "default"})
	eng.AddLSP(&engine.LSP{InLabel: 100, NHLFE: []engine.Nexthop{{IfIndex: 2, Weight: 1}}})
	eng.AddNHG(&engine.NHGEntry{Group: engine.NexthopGroup{ID: 1, Nexthops: []engine.Nexthop{{IfIndex: 2, Weight: 1}}}})
}
