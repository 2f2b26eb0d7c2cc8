// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations behind the client's
// reconnect loops so tests can drive them deterministically.
// Production code injects Real(); tests inject NewFake() and call
// Advance to fire pending tickers.
//
// Components that arm timers accept a Clock instead of calling the
// time package directly. The interface is deliberately small: the
// reconnect loops only ever need the current time and a periodic
// ticker.
package clock

import "time"

// Clock provides the current time and periodic tickers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker that delivers ticks at the given
	// interval. Panics if interval <= 0, matching time.NewTicker.
	NewTicker(interval time.Duration) Ticker
}

// Ticker delivers periodic ticks on the channel returned by Chan.
// The channel has capacity 1; ticks are dropped, not queued, when the
// consumer falls behind.
type Ticker interface {
	// Chan returns the tick channel.
	Chan() <-chan time.Time

	// Stop turns the ticker off. No tick is delivered after Stop
	// returns. Stop does not close the channel.
	Stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(interval time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(interval)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) Chan() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()                  { t.ticker.Stop() }
