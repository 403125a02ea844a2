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

import "testing"

func TestReplayChainOrder(t *testing.T) {
	want := []State{StateReplayNHG, StateReplayRIB, StateReplayRMAC, StateConnected}

	s := StateReplayLSP
	for _, w := range want {
		next, ok := nextReplayState(s)
		if !ok {
			t.Fatalf("nextReplayState(%s): ok = false", s)
		}
		if next != w {
			t.Fatalf("nextReplayState(%s) = %s, want %s", s, next, w)
		}
		s = next
	}

	if _, ok := nextReplayState(StateConnected); ok {
		t.Fatal("nextReplayState(Connected) should terminate the chain")
	}
}

func TestIsReplaying(t *testing.T) {
	for _, s := range []State{StateReplayLSP, StateReplayNHG, StateReplayRIB, StateReplayRMAC} {
		if !s.isReplaying() {
			t.Errorf("%s.isReplaying() = false, want true", s)
		}
	}
	for _, s := range []State{StateDisabled, StateIdle, StateConnecting, StateConnected} {
		if s.isReplaying() {
			t.Errorf("%s.isReplaying() = true, want false", s)
		}
	}
}

func TestCanReconnectFrom(t *testing.T) {
	if StateDisabled.canReconnectFrom() {
		t.Error("Disabled.canReconnectFrom() = true, want false")
	}
	for _, s := range []State{StateIdle, StateConnecting, StateConnected, StateReplayLSP} {
		if !s.canReconnectFrom() {
			t.Errorf("%s.canReconnectFrom() = false, want true", s)
		}
	}
}

func TestFinishedEventForState(t *testing.T) {
	tests := []struct {
		state State
		want  Event
	}{
		{StateReplayLSP, EventLSPFinished},
		{StateReplayNHG, EventNHGFinished},
		{StateReplayRIB, EventRIBFinished},
		{StateReplayRMAC, EventRMACFinished},
	}
	for _, tt := range tests {
		ev, ok := finishedEventForState(tt.state)
		if !ok || ev != tt.want {
			t.Errorf("finishedEventForState(%s) = (%s, %v), want (%s, true)", tt.state, ev, ok, tt.want)
		}
	}

	if _, ok := finishedEventForState(StateConnected); ok {
		t.Error("finishedEventForState(Connected) should report ok = false")
	}
}
