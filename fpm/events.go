package fpm

// Event is one of the user- or internally-triggered events the
// single-threaded dispatcher on the plugin thread handles.
type Event int

// Recognized events.
const (
	// EventReconnect is user-requested: clears Disabled and begins
	// reconnecting.
	EventReconnect Event = iota
	// EventDisable sets Disabled and tears the connection down
	// without rescheduling.
	EventDisable
	// EventResetCounters zeroes the counters block.
	EventResetCounters
	// EventToggleNHG flips UseNHG and triggers a reconnect so the
	// next replay reflects the new policy.
	EventToggleNHG
	// EventInternalReconnect is a raceless self-trigger posted by the
	// plugin thread itself (e.g. after a socket error), distinct from
	// the user-requested EventReconnect only in that it never touches
	// Disabled.
	EventInternalReconnect

	// The four *_FINISHED markers are log-only: they record the
	// completion of one phase of the reconciliation walk.
	EventLSPFinished
	EventNHGFinished
	EventRIBFinished
	EventRMACFinished
)

// String returns a short name for an Event, used in log fields.
func (e Event) String() string {
	switch e {
	case EventReconnect:
		return "reconnect"
	case EventDisable:
		return "disable"
	case EventResetCounters:
		return "reset-counters"
	case EventToggleNHG:
		return "toggle-nhg"
	case EventInternalReconnect:
		return "internal-reconnect"
	case EventLSPFinished:
		return "lsp-finished"
	case EventNHGFinished:
		return "nhg-finished"
	case EventRIBFinished:
		return "rib-finished"
	case EventRMACFinished:
		return "rmac-finished"
	default:
		return "unknown-event"
	}
}

// finishedEventForState returns the *_FINISHED event logged when the
// replay chain completes the named phase, and false for non-replay
// states.
func finishedEventForState(s State) (Event, bool) {
	switch s {
	case StateReplayLSP:
		return EventLSPFinished, true
	case StateReplayNHG:
		return EventNHGFinished, true
	case StateReplayRIB:
		return EventRIBFinished, true
	case StateReplayRMAC:
		return EventRMACFinished, true
	default:
		return 0, false
	}
}
