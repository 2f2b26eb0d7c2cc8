// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryDialRespectsOnline(t *testing.T) {
	backend := NewBackend()
	dialer := backend.Dialer()

	if _, err := dialer.Dial(context.Background(), "ws://test/core"); err == nil {
		t.Fatal("dial succeeded against an offline backend")
	}

	backend.SetOnline(true)
	conn, err := dialer.Dial(context.Background(), "ws://test/core")
	if err != nil {
		t.Fatalf("dial failed against an online backend: %v", err)
	}
	defer conn.Close()

	if backend.DialCount() != 2 {
		t.Errorf("DialCount() = %d, want 2", backend.DialCount())
	}
	if !backend.HasConnection() {
		t.Error("HasConnection() = false after successful dial")
	}
}

func TestMemoryPushRead(t *testing.T) {
	backend := NewBackend()
	backend.SetOnline(true)
	conn, err := backend.Dialer().Dial(context.Background(), "ws://test/core")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if !backend.Push([]byte(`{"type":"speak"}`)) {
		t.Fatal("Push found no connection")
	}

	frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(frame) != `{"type":"speak"}` {
		t.Errorf("frame = %s", frame)
	}
}

func TestMemoryWriteRecorded(t *testing.T) {
	backend := NewBackend()
	backend.SetOnline(true)
	conn, err := backend.Dialer().Dial(context.Background(), "ws://test/core")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage([]byte("one")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := conn.WriteMessage([]byte("two")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	written := backend.Written()
	if len(written) != 2 || string(written[0]) != "one" || string(written[1]) != "two" {
		t.Errorf("Written() = %q", written)
	}
}

func TestMemoryDropUnblocksRead(t *testing.T) {
	backend := NewBackend()
	backend.SetOnline(true)
	conn, err := backend.Dialer().Dial(context.Background(), "ws://test/core")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	readResult := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		readResult <- err
	}()

	backend.DropConnections()

	select {
	case err := <-readResult:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("read error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReadMessage still blocked after DropConnections")
	}

	if err := conn.WriteMessage([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after drop = %v, want ErrClosed", err)
	}
	if backend.HasConnection() {
		t.Error("HasConnection() = true after DropConnections")
	}
}

func TestMemoryPendingFramesReadableAfterClose(t *testing.T) {
	backend := NewBackend()
	backend.SetOnline(true)
	conn, err := backend.Dialer().Dial(context.Background(), "ws://test/core")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	backend.Push([]byte("pending"))
	backend.DropConnections()

	frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("first read after close: %v", err)
	}
	if string(frame) != "pending" {
		t.Errorf("frame = %s", frame)
	}
	if _, err := conn.ReadMessage(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second read = %v, want ErrClosed", err)
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	backend := NewBackend()
	backend.SetOnline(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Dialer().Dial(ctx, "ws://test/core"); err == nil {
		t.Fatal("dial succeeded with cancelled context")
	}
}
