// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package connection

// Status is the coarse, derived state of a backend channel. It folds
// the underlying transport state together with the reconnect timer:
// while the timer is armed the channel reports Connecting no matter
// what the transport says, because an attempt is at most one tick
// away.
type Status int

const (
	// StatusClosed means no transport and no pending reconnect.
	StatusClosed Status = iota

	// StatusConnecting means a dial is in flight or the reconnect
	// timer is armed.
	StatusConnecting

	// StatusOpen means frames flow.
	StatusOpen

	// StatusClosing means a local shutdown is in progress.
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	}
	return "unknown"
}

// socketState is the raw transport state underneath the derived
// Status.
type socketState int

const (
	socketClosed socketState = iota
	socketConnecting
	socketOpen
	socketClosing
)

// deriveStatus computes the Status for a channel. Shared by the
// primary connection manager and the GUI channel, which derive their
// status identically.
func deriveStatus(state socketState, reconnectArmed bool) Status {
	if reconnectArmed {
		return StatusConnecting
	}
	switch state {
	case socketConnecting:
		return StatusConnecting
	case socketOpen:
		return StatusOpen
	case socketClosing:
		return StatusClosing
	}
	return StatusClosed
}
