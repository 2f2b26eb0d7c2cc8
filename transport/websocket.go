// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface checks.
var (
	_ Dialer = (*WebSocketDialer)(nil)
	_ Conn   = (*webSocketConn)(nil)
)

// defaultHandshakeTimeout bounds a single dial attempt. The reconnect
// loops tick every second; a hung handshake must not pile attempts up
// behind it.
const defaultHandshakeTimeout = 10 * time.Second

// WebSocketDialer opens WebSocket connections to the backend. The
// zero value is ready to use.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means the
	// package default.
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection to url (ws:// or wss://).
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = defaultHandshakeTimeout
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", url, err)
	}
	return &webSocketConn{conn: conn}, nil
}

// webSocketConn adapts a gorilla websocket connection to Conn.
// gorilla permits one concurrent reader and one concurrent writer; the
// write mutex serializes writers, and the single-owner read loop is
// the only reader.
type webSocketConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *webSocketConn) ReadMessage() ([]byte, error) {
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport: read: %w", err)
	}
	return frame, nil
}

func (c *webSocketConn) WriteMessage(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (c *webSocketConn) Close() error {
	return c.conn.Close()
}
