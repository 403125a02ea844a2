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

	"github.com/routingd/fpmdplane/engine"
)

func TestContextQueuePushPopOrder(t *testing.T) {
	q := NewContextQueue()

	a := &engine.DataplaneContext{Op: engine.OpRouteInstall}
	b := &engine.DataplaneContext{Op: engine.OpRouteDelete}
	q.Push(a)
	q.Push(b)

	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	if got := q.Pop(); got != a {
		t.Fatalf("Pop() = %v, want first pushed", got)
	}
	if got := q.Pop(); got != b {
		t.Fatalf("Pop() = %v, want second pushed", got)
	}
	if got := q.Pop(); got != nil {
		t.Fatalf("Pop() on empty queue = %v, want nil", got)
	}
	if got := q.Len(); got != 0 {
		t.Fatalf("Len() after drain = %d, want 0", got)
	}
}

func TestContextQueuePeakNeverDecreases(t *testing.T) {
	q := NewContextQueue()

	q.Push(&engine.DataplaneContext{})
	q.Push(&engine.DataplaneContext{})
	q.Push(&engine.DataplaneContext{})
	q.Pop()
	q.Pop()

	if got, want := q.Peak(), uint32(3); got != want {
		t.Fatalf("Peak() = %d, want %d", got, want)
	}
	if got, want := q.Len(), uint32(1); got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
}

func TestContextQueuePushFront(t *testing.T) {
	q := NewContextQueue()

	a := &engine.DataplaneContext{Op: engine.OpRouteInstall}
	b := &engine.DataplaneContext{Op: engine.OpRouteDelete}
	q.Push(a)
	popped := q.Pop()
	if popped != a {
		t.Fatalf("Pop() = %v, want a", popped)
	}
	q.Push(b)
	q.PushFront(a)

	if got := q.Pop(); got != a {
		t.Fatalf("Pop() after PushFront = %v, want a", got)
	}
	if got := q.Pop(); got != b {
		t.Fatalf("Pop() = %v, want b", got)
	}
}
