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

package fpmnl

import (
	"testing"

	"github.com/routingd/fpmdplane/engine"
)

func TestEncodeRouteUpdateYieldsDeleteThenInstall(t *testing.T) {
	delegate := &stubRouteEncoder{out: []byte{0x01}}
	e := &Encoder{Routes: delegate}
	ctx := &engine.DataplaneContext{Op: engine.OpRouteUpdate, TableID: 254}

	msgs, err := e.Encode(ctx, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2 (delete + install)", len(msgs))
	}
	if !delegate.install {
		t.Fatal("last delegate call had install = false, want the install encoded after the delete")
	}
}

func TestEncodeNexthopSkippedWhenNHGDisabled(t *testing.T) {
	e := &Encoder{}
	ctx := &engine.DataplaneContext{Op: engine.OpNexthopInstall}

	msgs, err := e.Encode(ctx, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msgs != nil {
		t.Fatalf("msgs = %v, want nil when useNHG is false", msgs)
	}
}

func TestEncodeIgnoredOpYieldsNothing(t *testing.T) {
	e := &Encoder{}
	ctx := &engine.DataplaneContext{Op: engine.OpIgnored}

	msgs, err := e.Encode(ctx, true)
	if err != nil || msgs != nil {
		t.Fatalf("Encode(ignored) = (%v, %v), want (nil, nil)", msgs, err)
	}
}

func TestEncodeLSPDelegates(t *testing.T) {
	e := &Encoder{LSPs: stubLSPEncoder{out: []byte{0x42}}}
	ctx := &engine.DataplaneContext{Op: engine.OpLSPInstall, LSP: &engine.LSP{InLabel: 100}}

	msgs, err := e.Encode(ctx, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(msgs) != 1 || msgs[0][0] != 0x42 {
		t.Fatalf("msgs = %v, want single delegated message", msgs)
	}
}

type stubLSPEncoder struct{ out []byte }

func (s stubLSPEncoder) EncodeLSP(ctx *engine.DataplaneContext) ([]byte, error) { return s.out, nil }
