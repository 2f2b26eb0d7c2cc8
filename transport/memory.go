// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time interface checks.
var (
	_ Dialer = (*memoryDialer)(nil)
	_ Conn   = (*memoryConn)(nil)
)

// memoryInboxCapacity bounds frames queued toward the client per
// connection. Tests push a handful of frames; hitting the cap means a
// runaway test, so Push panics rather than blocking forever.
const memoryInboxCapacity = 256

// Backend is an in-process stand-in for the backend's WebSocket
// endpoints. It accepts dials while online, delivers frames pushed by
// the test, and records every frame the client writes.
//
// One Backend plays one endpoint: a test exercising both channels
// creates two. Safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	online    bool
	conns     []*memoryConn
	written   [][]byte
	dialCount int
}

// NewBackend creates a Backend that is initially offline, so dials
// fail until SetOnline(true) — mirroring a backend that has not
// finished booting.
func NewBackend() *Backend {
	return &Backend{}
}

// Dialer returns a Dialer that connects to this backend.
func (b *Backend) Dialer() Dialer {
	return &memoryDialer{backend: b}
}

// SetOnline switches dial acceptance. Going offline does not sever
// established connections; use DropConnections for that.
func (b *Backend) SetOnline(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = online
}

// Push delivers a frame to the most recently established connection.
// Returns false when no connection is up.
func (b *Backend) Push(frame []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.conns) - 1; i >= 0; i-- {
		if !b.conns[i].closed {
			b.conns[i].deliverLocked(frame)
			return true
		}
	}
	return false
}

// DropConnections severs every established connection from the
// backend side, like a backend crash. Blocked reads return ErrClosed.
func (b *Backend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		conn.closeLocked()
	}
	b.conns = nil
}

// Written returns the frames the client has written, oldest first.
func (b *Backend) Written() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := make([][]byte, len(b.written))
	copy(frames, b.written)
	return frames
}

// DialCount returns how many dials the backend has seen, including
// refused ones.
func (b *Backend) DialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialCount
}

// HasConnection reports whether at least one connection is up.
func (b *Backend) HasConnection() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		if !conn.closed {
			return true
		}
	}
	return false
}

type memoryDialer struct {
	backend *Backend
}

func (d *memoryDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := d.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dialCount++
	if !b.online {
		return nil, fmt.Errorf("transport: backend refused connection to %s", url)
	}

	conn := &memoryConn{
		backend: b,
		inbox:   make(chan []byte, memoryInboxCapacity),
		done:    make(chan struct{}),
	}
	b.conns = append(b.conns, conn)
	return conn, nil
}

// memoryConn is one side of an in-process connection. Reads drain the
// inbox the backend pushes into; writes land in the backend's record.
type memoryConn struct {
	backend *Backend
	inbox   chan []byte
	done    chan struct{}
	closed  bool // guarded by backend.mu
}

func (c *memoryConn) deliverLocked(frame []byte) {
	copied := make([]byte, len(frame))
	copy(copied, frame)
	select {
	case c.inbox <- copied:
	default:
		panic("transport: memory connection inbox overflow")
	}
}

func (c *memoryConn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *memoryConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.inbox:
		return frame, nil
	case <-c.done:
		// Drain frames that raced with the close so ordered delivery
		// holds up to the terminal error.
		select {
		case frame := <-c.inbox:
			return frame, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (c *memoryConn) WriteMessage(frame []byte) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	copied := make([]byte, len(frame))
	copy(copied, frame)
	b.written = append(b.written, copied)
	return nil
}

func (c *memoryConn) Close() error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	c.closeLocked()
	return nil
}
