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
	"encoding/json"
	"testing"
)

func TestCountersSnapshotAndReset(t *testing.T) {
	c := &Counters{}

	c.AddBytesRead(10)
	c.AddBytesSent(5)
	c.AddConnectionClose()
	c.AddConnectionError()
	c.AddUserConfigure()
	c.AddUserDisable()
	c.AddDplaneContext()
	c.AddBufferFull()
	c.SetObufStats(100, 200)
	c.SetCtxqueueStats(3, 7)

	snap := c.Snapshot()
	if snap.BytesRead != 10 || snap.BytesSent != 5 {
		t.Fatalf("unexpected byte counters: %+v", snap)
	}
	if snap.ObufBytes != 100 || snap.ObufBytesPeak != 200 {
		t.Fatalf("unexpected obuf stats: %+v", snap)
	}
	if snap.DataPlaneContextsQueue != 3 || snap.DataPlaneContextsQueuePeak != 7 {
		t.Fatalf("unexpected ctxqueue stats: %+v", snap)
	}

	c.Reset()
	zero := c.Snapshot()
	if zero != (Snapshot{}) {
		t.Fatalf("Reset() left nonzero snapshot: %+v", zero)
	}
}

func TestSnapshotJSONKeys(t *testing.T) {
	snap := Snapshot{BytesRead: 1, BytesSent: 2}

	b, err := snap.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, key := range []string{
		"bytes-read", "bytes-sent", "obuf-bytes", "obuf-bytes-peak",
		"connection-closes", "connection-errors", "data-plane-contexts",
		"data-plane-contexts-queue", "data-plane-contexts-queue-peak",
		"buffer-full-hits", "user-configures", "user-disables",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key %q", key)
		}
	}
}
