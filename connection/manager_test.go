// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/CilekciGs/mycroft-gui-fixed/lib/clock"
	"github.com/CilekciGs/mycroft-gui-fixed/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testManager wires a Manager to a fake clock and an in-memory
// backend. The backend starts offline.
func testManager(t *testing.T) (*Manager, *transport.Backend, *clock.Fake) {
	t.Helper()
	backend := transport.NewBackend()
	fake := clock.NewFake()
	manager := NewManager(Options{
		URL:    "ws://127.0.0.1:8181/core",
		Clock:  fake,
		Dialer: backend.Dialer(),
		Logger: discardLogger(),
	})
	t.Cleanup(manager.Close)
	return manager, backend, fake
}

// awaitStatus drains the status channel until want shows up.
func awaitStatus(t *testing.T, statuses <-chan Status, want Status) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case status := <-statuses:
			if status == want {
				return
			}
		case <-deadline:
			t.Fatalf("status %v never observed", want)
		}
	}
}

func subscribeStatus(manager *Manager) <-chan Status {
	statuses := make(chan Status, 64)
	manager.OnStatusChange(func(status Status) { statuses <- status })
	return statuses
}

func TestDeriveStatus(t *testing.T) {
	// Timer armed overrides every transport state.
	for _, state := range []socketState{socketClosed, socketConnecting, socketOpen, socketClosing} {
		if got := deriveStatus(state, true); got != StatusConnecting {
			t.Errorf("deriveStatus(%v, armed) = %v, want connecting", state, got)
		}
	}

	cases := []struct {
		state socketState
		want  Status
	}{
		{socketClosed, StatusClosed},
		{socketConnecting, StatusConnecting},
		{socketOpen, StatusOpen},
		{socketClosing, StatusClosing},
	}
	for _, c := range cases {
		if got := deriveStatus(c.state, false); got != c.want {
			t.Errorf("deriveStatus(%v, idle) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestStartArmsReconnectAndConnects(t *testing.T) {
	manager, backend, fake := testManager(t)
	statuses := subscribeStatus(manager)

	bootstrapped := 0
	manager.bootstrap = func() { bootstrapped++ }

	manager.Start()
	if bootstrapped != 1 {
		t.Fatalf("bootstrap ran %d times, want 1", bootstrapped)
	}
	if got := manager.Status(); got != StatusConnecting {
		t.Fatalf("status after Start = %v, want connecting", got)
	}

	// Backend still down: ticks dial and fail, status stays connecting.
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusConnecting)
	if manager.Status() == StatusOpen {
		t.Fatal("status open with backend offline")
	}

	backend.SetOnline(true)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)

	// Start again while open: idempotent, re-bootstraps, no new dial loop.
	manager.Start()
	if bootstrapped != 2 {
		t.Fatalf("bootstrap ran %d times after second Start, want 2", bootstrapped)
	}
	if got := manager.Status(); got != StatusOpen {
		t.Fatalf("status after redundant Start = %v, want open", got)
	}
	if fake.ActiveTickers() != 0 {
		t.Fatalf("reconnect ticker still active after connect: %d", fake.ActiveTickers())
	}
}

func TestStatusRecomputationNotifiesWithoutChange(t *testing.T) {
	manager, _, fake := testManager(t)
	statuses := subscribeStatus(manager)

	manager.Start()
	awaitStatus(t, statuses, StatusConnecting)

	// A failed dial walks the transport through connecting and closed
	// while the armed timer pins the derived status to connecting: the
	// recomputation still notifies, twice, with the same value.
	fake.WaitForTickers(1)
	fake.Advance(time.Second)

	awaitStatus(t, statuses, StatusConnecting)
	awaitStatus(t, statuses, StatusConnecting)
}

func TestReconnectAfterDrop(t *testing.T) {
	manager, backend, fake := testManager(t)
	statuses := subscribeStatus(manager)

	backend.SetOnline(true)
	manager.Start()
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)

	backend.DropConnections()
	awaitStatus(t, statuses, StatusConnecting)

	// The loop re-arms on its own and restores the connection.
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)
	if !backend.HasConnection() {
		t.Fatal("no backend connection after reconnect")
	}
}

func TestSendUtterance(t *testing.T) {
	manager, backend, fake := testManager(t)

	// Not open: dropped silently.
	manager.SendUtterance("hello")
	if len(backend.Written()) != 0 {
		t.Fatalf("utterance written while closed: %q", backend.Written())
	}

	statuses := subscribeStatus(manager)
	backend.SetOnline(true)
	manager.Start()
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)

	manager.SendUtterance("set a timer for five minutes")

	written := backend.Written()
	if len(written) != 1 {
		t.Fatalf("written %d frames, want 1", len(written))
	}
	var frame struct {
		Type string `json:"type"`
		Data struct {
			Utterances []string `json:"utterances"`
		} `json:"data"`
	}
	if err := json.Unmarshal(written[0], &frame); err != nil {
		t.Fatalf("unmarshal written frame: %v", err)
	}
	if frame.Type != "recognizer_loop:utterance" || len(frame.Data.Utterances) != 1 ||
		frame.Data.Utterances[0] != "set a timer for five minutes" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestClassification(t *testing.T) {
	manager, _, _ := testManager(t)

	var states []State
	manager.OnStateChange(func(state State) { states = append(states, state) })
	notUnderstood := 0
	manager.OnNotUnderstood(func() { notUnderstood++ })
	var fallbacks []FallbackText
	manager.OnFallbackText(func(text FallbackText) { fallbacks = append(fallbacks, text) })
	var metadata []map[string]any
	manager.OnSkillData(func(data map[string]any) { metadata = append(metadata, data) })

	feed := func(frame string) { manager.handleFrame([]byte(frame)) }

	feed(`{"type":"recognizer_loop:record_begin"}`)
	if got := manager.State(); !got.IsListening {
		t.Fatal("record_begin did not set IsListening")
	}

	feed(`{"type":"recognizer_loop:record_end"}`)
	if got := manager.State(); got.IsListening {
		t.Fatal("record_end did not clear IsListening")
	}

	feed(`{"type":"recognizer_loop:audio_output_start"}`)
	if got := manager.State(); !got.IsSpeaking {
		t.Fatal("audio_output_start did not set IsSpeaking")
	}

	feed(`{"type":"recognizer_loop:audio_output_end"}`)
	if got := manager.State(); got.IsSpeaking {
		t.Fatal("audio_output_end did not clear IsSpeaking")
	}

	feed(`{"type":"mycroft.skill.handler.start","data":{"name":"timer"}}`)
	if got := manager.State(); got.CurrentSkillID != "timer" {
		t.Fatalf("CurrentSkillID = %q, want timer", got.CurrentSkillID)
	}

	// speak is attributed to the running skill.
	feed(`{"type":"speak","data":{"utterance":"timer set"}}`)
	if len(fallbacks) != 1 || fallbacks[0].SkillID != "timer" {
		t.Fatalf("fallbacks = %+v", fallbacks)
	}
	if fallbacks[0].Data["utterance"] != "timer set" {
		t.Errorf("fallback data = %v", fallbacks[0].Data)
	}

	feed(`{"type":"mycroft.skill.handler.complete"}`)
	if got := manager.State(); got.CurrentSkillID != "" {
		t.Fatalf("CurrentSkillID = %q after handler.complete, want empty", got.CurrentSkillID)
	}

	// intent_failure clears listening and reports not-understood.
	feed(`{"type":"recognizer_loop:record_begin"}`)
	feed(`{"type":"intent_failure"}`)
	if got := manager.State(); got.IsListening {
		t.Fatal("intent_failure did not clear IsListening")
	}
	if notUnderstood != 1 {
		t.Fatalf("notUnderstood = %d, want 1", notUnderstood)
	}

	feed(`{"type":"mycroft.speech.recognition.unknown"}`)
	if notUnderstood != 2 {
		t.Fatalf("notUnderstood = %d, want 2", notUnderstood)
	}

	feed(`{"type":"metadata","data":{"theme":"dark"}}`)
	if len(metadata) != 1 || metadata[0]["theme"] != "dark" {
		t.Fatalf("metadata = %v", metadata)
	}

	if len(states) == 0 {
		t.Fatal("no state change notifications emitted")
	}
}

func TestNoiseAndUnknownFramesIgnored(t *testing.T) {
	manager, _, _ := testManager(t)

	changes := 0
	manager.OnStateChange(func(State) { changes++ })

	manager.handleFrame([]byte(`{"type":"enclosure.eyes.blink"}`))
	manager.handleFrame([]byte(`{"type":"mycroft-date.tick"}`))
	manager.handleFrame([]byte(`{"type":"some.future.message"}`))
	manager.handleFrame([]byte(`not json at all`))
	manager.handleFrame([]byte(`{"no_type":true}`))

	if changes != 0 {
		t.Fatalf("noise/unknown frames caused %d state changes", changes)
	}
}

// fakeView records the announcement handover.
type fakeView struct {
	id   string
	urls chan string
}

func (v *fakeView) ID() string        { return v.id }
func (v *fakeView) SetURL(url string) { v.urls <- url }

func TestViewAnnouncementAndPortRouting(t *testing.T) {
	manager, backend, fake := testManager(t)
	statuses := subscribeStatus(manager)

	view := &fakeView{id: "view-1", urls: make(chan string, 1)}
	manager.RegisterView(view)

	backend.SetOnline(true)
	manager.Start()
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)

	// The connect announces the registered view.
	var announced bool
	for _, frame := range backend.Written() {
		var decoded struct {
			Type string `json:"type"`
			Data struct {
				GuiID string `json:"gui_id"`
			} `json:"data"`
		}
		if json.Unmarshal(frame, &decoded) == nil &&
			decoded.Type == "mycroft.gui.connected" && decoded.Data.GuiID == "view-1" {
			announced = true
		}
	}
	if !announced {
		t.Fatalf("no announcement for view-1 in %q", backend.Written())
	}

	// The port answer is routed to the matching view as a GUI URL.
	manager.handleFrame([]byte(`{"type":"mycroft.gui.port","data":{"port":18181,"gui_id":"view-1"}}`))
	select {
	case url := <-view.urls:
		if url != "ws://127.0.0.1:18181/gui" {
			t.Errorf("url = %q", url)
		}
	default:
		t.Fatal("gui.port was not routed to the view")
	}

	// Unknown view ids are dropped.
	manager.handleFrame([]byte(`{"type":"mycroft.gui.port","data":{"port":18181,"gui_id":"stranger"}}`))
	select {
	case url := <-view.urls:
		t.Fatalf("unexpected second handover: %q", url)
	default:
	}

	manager.UnregisterView(view)
	manager.handleFrame([]byte(`{"type":"mycroft.gui.port","data":{"port":18181,"gui_id":"view-1"}}`))
	select {
	case url := <-view.urls:
		t.Fatalf("handover after unregister: %q", url)
	default:
	}
}

func TestCloseStopsEverything(t *testing.T) {
	manager, backend, fake := testManager(t)
	statuses := subscribeStatus(manager)

	backend.SetOnline(true)
	manager.Start()
	fake.WaitForTickers(1)
	fake.Advance(time.Second)
	awaitStatus(t, statuses, StatusOpen)

	manager.Close()
	awaitStatus(t, statuses, StatusClosed)

	// A dropped connection after Close must not resurrect the loop.
	backend.DropConnections()
	if fake.ActiveTickers() != 0 {
		t.Fatalf("reconnect ticker armed after Close: %d", fake.ActiveTickers())
	}
	if got := manager.Status(); got != StatusClosed {
		t.Fatalf("status after Close = %v", got)
	}
}
