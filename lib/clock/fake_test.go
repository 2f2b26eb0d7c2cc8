// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowAdvance(t *testing.T) {
	fake := NewFake()
	start := fake.Now()
	fake.Advance(3 * time.Second)
	if got := fake.Now().Sub(start); got != 3*time.Second {
		t.Fatalf("Now advanced by %v, want 3s", got)
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	fake := NewFake()
	ticker := fake.NewTicker(time.Second)

	fake.Advance(500 * time.Millisecond)
	select {
	case <-ticker.Chan():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	fake.Advance(500 * time.Millisecond)
	select {
	case <-ticker.Chan():
	default:
		t.Fatal("ticker did not fire after one full interval")
	}
}

func TestFakeTickerDropsOverflow(t *testing.T) {
	fake := NewFake()
	ticker := fake.NewTicker(time.Second)

	// Three intervals with no consumer: capacity-1 channel keeps one.
	fake.Advance(3 * time.Second)

	received := 0
	for {
		select {
		case <-ticker.Chan():
			received++
			continue
		default:
		}
		break
	}
	if received != 1 {
		t.Fatalf("received %d ticks, want 1 (overflow dropped)", received)
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := NewFake()
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.Chan():
		t.Fatal("stopped ticker fired")
	default:
	}
	if fake.ActiveTickers() != 0 {
		t.Fatalf("ActiveTickers() = %d, want 0", fake.ActiveTickers())
	}
}

func TestFakeWaitForTickers(t *testing.T) {
	fake := NewFake()

	done := make(chan struct{})
	go func() {
		fake.WaitForTickers(1)
		close(done)
	}()

	fake.NewTicker(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForTickers did not observe the new ticker")
	}
}
