// Package capture records a live broadcast segment by segment into per-track
// files on disk. A capture session survives transient segment failures, URL
// expiry and process restarts: the on-disk segment numbering doubles as the
// resume cursor.
package capture

// State is the capture session lifecycle.
type State int

const (
	// StateInit: session created, nothing fetched yet.
	StateInit State = iota
	// StateWaiting: broadcast not started, session parked until it is.
	StateWaiting
	// StateActive: segments are being fetched.
	StateActive
	// StateRefreshing: re-deriving track URLs mid-capture.
	StateRefreshing
	// StateDone: the broadcast ended and every reachable segment is on disk.
	StateDone
	// StateError: capture aborted; the partial segments remain on disk.
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether the session can never leave this state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}
