package fpm

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Counters is the block of advisory atomic counters this plugin
// reports. All fields use relaxed-equivalent atomic operations: they
// are observational only, never used for control flow.
type Counters struct {
	bytesRead         uint32
	bytesSent         uint32
	obufBytes         uint32
	obufPeak          uint32
	connectionCloses  uint32
	connectionErrors  uint32
	userConfigures    uint32
	userDisables      uint32
	dplaneContexts    uint32
	ctxqueueLen       uint32
	ctxqueueLenPeak   uint32
	bufferFull        uint32
}

// Add* methods increment a single counter atomically: AddBytesRead and
// AddBytesSent by n, the others by one.
func (c *Counters) AddBytesRead(n uint32)        { atomic.AddUint32(&c.bytesRead, n) }
func (c *Counters) AddBytesSent(n uint32)        { atomic.AddUint32(&c.bytesSent, n) }
func (c *Counters) AddConnectionClose()          { atomic.AddUint32(&c.connectionCloses, 1) }
func (c *Counters) AddConnectionError()          { atomic.AddUint32(&c.connectionErrors, 1) }
func (c *Counters) AddUserConfigure()            { atomic.AddUint32(&c.userConfigures, 1) }
func (c *Counters) AddUserDisable()              { atomic.AddUint32(&c.userDisables, 1) }
func (c *Counters) AddDplaneContext()            { atomic.AddUint32(&c.dplaneContexts, 1) }
func (c *Counters) AddBufferFull()               { atomic.AddUint32(&c.bufferFull, 1) }

// SetObufStats records the output buffer's current pending/peak bytes.
func (c *Counters) SetObufStats(pending, peak uint32) {
	atomic.StoreUint32(&c.obufBytes, pending)
	atomic.StoreUint32(&c.obufPeak, peak)
}

// SetCtxqueueStats records the context queue's current length/peak.
func (c *Counters) SetCtxqueueStats(length, peak uint32) {
	atomic.StoreUint32(&c.ctxqueueLen, length)
	atomic.StoreUint32(&c.ctxqueueLenPeak, peak)
}

// Reset zeroes every counter, in response to a RESET_COUNTERS event.
func (c *Counters) Reset() {
	atomic.StoreUint32(&c.bytesRead, 0)
	atomic.StoreUint32(&c.bytesSent, 0)
	atomic.StoreUint32(&c.obufBytes, 0)
	atomic.StoreUint32(&c.obufPeak, 0)
	atomic.StoreUint32(&c.connectionCloses, 0)
	atomic.StoreUint32(&c.connectionErrors, 0)
	atomic.StoreUint32(&c.userConfigures, 0)
	atomic.StoreUint32(&c.userDisables, 0)
	atomic.StoreUint32(&c.dplaneContexts, 0)
	atomic.StoreUint32(&c.ctxqueueLen, 0)
	atomic.StoreUint32(&c.ctxqueueLenPeak, 0)
	atomic.StoreUint32(&c.bufferFull, 0)
}

// Snapshot is a point-in-time copy of Counters, used for reporting.
type Snapshot struct {
	BytesRead              uint32 `json:"bytes-read"`
	BytesSent              uint32 `json:"bytes-sent"`
	ObufBytes               uint32 `json:"obuf-bytes"`
	ObufBytesPeak           uint32 `json:"obuf-bytes-peak"`
	ConnectionCloses        uint32 `json:"connection-closes"`
	ConnectionErrors        uint32 `json:"connection-errors"`
	DataPlaneContexts       uint32 `json:"data-plane-contexts"`
	DataPlaneContextsQueue  uint32 `json:"data-plane-contexts-queue"`
	DataPlaneContextsQueuePeak uint32 `json:"data-plane-contexts-queue-peak"`
	BufferFullHits          uint32 `json:"buffer-full-hits"`
	UserConfigures          uint32 `json:"user-configures"`
	UserDisables            uint32 `json:"user-disables"`
}

// Snapshot returns a point-in-time copy of every counter, for the
// "show counters" CLI command.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		BytesRead:                 atomic.LoadUint32(&c.bytesRead),
		BytesSent:                 atomic.LoadUint32(&c.bytesSent),
		ObufBytes:                 atomic.LoadUint32(&c.obufBytes),
		ObufBytesPeak:              atomic.LoadUint32(&c.obufPeak),
		ConnectionCloses:           atomic.LoadUint32(&c.connectionCloses),
		ConnectionErrors:           atomic.LoadUint32(&c.connectionErrors),
		DataPlaneContexts:          atomic.LoadUint32(&c.dplaneContexts),
		DataPlaneContextsQueue:     atomic.LoadUint32(&c.ctxqueueLen),
		DataPlaneContextsQueuePeak: atomic.LoadUint32(&c.ctxqueueLenPeak),
		BufferFullHits:             atomic.LoadUint32(&c.bufferFull),
		UserConfigures:             atomic.LoadUint32(&c.userConfigures),
		UserDisables:               atomic.LoadUint32(&c.userDisables),
	}
}

// JSON renders the snapshot for the CLI's "show counters json" variant.
func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// String renders the snapshot as the CLI's "show counters" text
// variant.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"bytes-read: %d\nbytes-sent: %d\nobuf-bytes: %d\nobuf-bytes-peak: %d\n"+
			"connection-closes: %d\nconnection-errors: %d\ndata-plane-contexts: %d\n"+
			"data-plane-contexts-queue: %d\ndata-plane-contexts-queue-peak: %d\n"+
			"buffer-full-hits: %d\nuser-configures: %d\nuser-disables: %d\n",
		s.BytesRead, s.BytesSent, s.ObufBytes, s.ObufBytesPeak,
		s.ConnectionCloses, s.ConnectionErrors, s.DataPlaneContexts,
		s.DataPlaneContextsQueue, s.DataPlaneContextsQueuePeak,
		s.BufferFullHits, s.UserConfigures, s.UserDisables,
	)
}
