// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport abstracts the persistent message connections to
// the backend. The connection manager and skill views program against
// Conn and Dialer; production wiring injects the WebSocket
// implementation, tests inject the in-memory Backend.
//
// A Conn carries whole text frames in both directions. Framing,
// ping/pong, and handshake details belong to the implementation;
// callers only ever see complete frames and a terminal read error
// when the connection dies.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Conn operations after the connection has
// been closed, locally or by the peer.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one persistent message connection.
type Conn interface {
	// ReadMessage blocks until the next inbound frame arrives and
	// returns it. It returns a non-nil error exactly once, when the
	// connection is closed or fails; no frames follow an error.
	ReadMessage() ([]byte, error)

	// WriteMessage transmits one text frame. Safe for concurrent use.
	WriteMessage(frame []byte) error

	// Close tears the connection down. Idempotent. A blocked
	// ReadMessage returns with an error.
	Close() error
}

// Dialer opens connections to a backend endpoint. A failed dial is
// reported once and carries no retry obligation — reconnect policy
// lives with the caller's timer loop.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
