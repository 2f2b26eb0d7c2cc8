// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// NewFake returns a deterministic Clock for tests, initialized to an
// arbitrary fixed time. Time stands still until Advance is called.
//
// Fake is safe for concurrent use.
func NewFake() *Fake {
	fake := &Fake{current: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	fake.tickersChanged = sync.NewCond(&fake.mu)
	return fake
}

// Fake is a Clock whose time only moves when Advance is called.
// Tickers registered through NewTicker fire during Advance, once per
// elapsed interval, in deadline order.
type Fake struct {
	mu             sync.Mutex
	current        time.Time
	tickers        []*fakeTicker
	tickersChanged *sync.Cond
}

type fakeTicker struct {
	fake     *Fake
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
	stopped  bool
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// NewTicker registers a ticker that fires when Advance moves the clock
// past each successive interval boundary.
func (f *Fake) NewTicker(interval time.Duration) Ticker {
	if interval <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ticker := &fakeTicker{
		fake:     f,
		deadline: f.current.Add(interval),
		interval: interval,
		channel:  make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, ticker)
	f.tickersChanged.Broadcast()
	return ticker
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.channel }

func (t *fakeTicker) Stop() {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	t.stopped = true
}

// Advance moves the clock forward by d and fires every active ticker
// once per interval boundary crossed, in deadline order. Channel sends
// are non-blocking: a tick that finds the channel full is dropped,
// matching time.Ticker.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.current = f.current.Add(d)
	target := f.current
	f.mu.Unlock()

	for {
		ticker := f.nextDue(target)
		if ticker == nil {
			return
		}
		select {
		case ticker.channel <- target:
		default:
		}
	}
}

// nextDue returns the earliest-deadline active ticker due at or before
// target, rescheduling it for its next interval, or nil when nothing
// is due.
func (f *Fake) nextDue(target time.Time) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due *fakeTicker
	for _, ticker := range f.tickers {
		if ticker.stopped || ticker.deadline.After(target) {
			continue
		}
		if due == nil || ticker.deadline.Before(due.deadline) {
			due = ticker
		}
	}
	if due != nil {
		due.deadline = due.deadline.Add(due.interval)
	}
	return due
}

// WaitForTickers blocks until at least n active tickers are
// registered. This removes the race between a goroutine arming its
// reconnect ticker and the test advancing the clock.
func (f *Fake) WaitForTickers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.activeCountLocked() < n {
		f.tickersChanged.Wait()
	}
}

// ActiveTickers returns the number of registered, unstopped tickers.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked()
}

func (f *Fake) activeCountLocked() int {
	count := 0
	for _, ticker := range f.tickers {
		if !ticker.stopped {
			count++
		}
	}
	return count
}
