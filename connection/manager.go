// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

// Package connection maintains the primary channel to the backend and
// mirrors the assistant's coarse state from it.
//
// A Manager owns one reconnecting transport session to the backend's
// /core endpoint. Inbound frames are classified into a small taxonomy
// of assistant-state events (listening, speaking, current skill,
// spoken text); each classification mutates the mirrored State and
// emits a change signal. The only outbound paths are SendUtterance
// and the GUI view announcement.
//
// Skill views register themselves with the Manager: on every connect
// the Manager announces each view to the backend, and routes the
// backend's mycroft.gui.port answer to the matching view, which then
// opens its own GUI channel.
package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/CilekciGs/mycroft-gui-fixed/lib/clock"
	"github.com/CilekciGs/mycroft-gui-fixed/lib/signal"
	"github.com/CilekciGs/mycroft-gui-fixed/protocol"
	"github.com/CilekciGs/mycroft-gui-fixed/transport"
)

// DefaultURL is the backend's well-known primary endpoint.
const DefaultURL = "ws://0.0.0.0:8181/core"

// DefaultReconnectInterval is the fixed retry period for both
// channels. No backoff, no cap: the backend is local and a 1-second
// poll is cheap.
const DefaultReconnectInterval = time.Second

// dialTimeout bounds a single dial attempt.
const dialTimeout = 5 * time.Second

// State is the mirrored coarse assistant state.
type State struct {
	// IsListening is true while the microphone records an utterance.
	IsListening bool

	// IsSpeaking is true while audio output plays.
	IsSpeaking bool

	// CurrentSkillID names the skill whose handler is running, empty
	// between handlers.
	CurrentSkillID string
}

// FallbackText is the payload of a "speak" message: text the
// assistant utters outside any GUI, attributed to the skill whose
// handler was running when it arrived.
type FallbackText struct {
	SkillID string
	Data    map[string]any
}

// GuiView is the part of a skill view the Manager needs for the
// announcement flow: a stable identifier to announce and a way to
// hand over the GUI channel address the backend assigns.
type GuiView interface {
	ID() string
	SetURL(url string)
}

// Options configures a Manager. The zero value works for production
// use against a local backend.
type Options struct {
	// URL is the primary endpoint. Empty means DefaultURL.
	URL string

	// ReconnectInterval overrides the fixed retry period. Zero means
	// DefaultReconnectInterval.
	ReconnectInterval time.Duration

	// Clock drives the reconnect timer. Nil means the real clock.
	Clock clock.Clock

	// Dialer opens the transport. Nil means a WebSocket dialer.
	Dialer transport.Dialer

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// Bootstrap launches the backend process. Called on every Start,
	// like the upstream client's detached loader process. Nil means
	// no bootstrap.
	Bootstrap func()
}

// Manager owns the primary backend channel and the assistant-state
// mirror derived from it.
type Manager struct {
	logger    *slog.Logger
	clock     clock.Clock
	dialer    transport.Dialer
	url       string
	guiHost   string
	interval  time.Duration
	bootstrap func()

	mu             sync.Mutex
	conn           transport.Conn
	socket         socketState
	reconnectArmed bool
	reconnectStop  chan struct{}
	generation     int
	closed         bool
	state          State
	views          []GuiView

	statusChanged signal.Signal[Status]
	stateChanged  signal.Signal[State]
	notUnderstood signal.Signal[struct{}]
	fallbackText  signal.Signal[FallbackText]
	skillData     signal.Signal[map[string]any]
}

// NewManager creates a Manager. It does not touch the network until
// Start is called.
func NewManager(options Options) *Manager {
	if options.URL == "" {
		options.URL = DefaultURL
	}
	if options.ReconnectInterval <= 0 {
		options.ReconnectInterval = DefaultReconnectInterval
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Dialer == nil {
		options.Dialer = &transport.WebSocketDialer{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	guiHost := "0.0.0.0"
	if parsed, err := url.Parse(options.URL); err == nil && parsed.Hostname() != "" {
		guiHost = parsed.Hostname()
	}

	return &Manager{
		logger:    options.Logger,
		clock:     options.Clock,
		dialer:    options.Dialer,
		url:       options.URL,
		guiHost:   guiHost,
		interval:  options.ReconnectInterval,
		bootstrap: options.Bootstrap,
	}
}

// Start bootstraps the backend process and arms the reconnect timer,
// which retries the primary endpoint every interval until a dial
// succeeds. Safe to call repeatedly: an armed timer or an open
// connection makes further calls a status re-notification only.
func (m *Manager) Start() {
	if m.bootstrap != nil {
		m.bootstrap()
	}

	m.mu.Lock()
	if !m.closed && !m.reconnectArmed && m.conn == nil {
		m.armReconnectLocked()
	}
	m.mu.Unlock()

	m.notifyStatus()
}

// Close tears the channel down and stops the reconnect loop. The
// Manager cannot be restarted.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.socket = socketClosing
	if m.reconnectStop != nil {
		close(m.reconnectStop)
		m.reconnectStop = nil
		m.reconnectArmed = false
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.notifyStatus()
	if conn != nil {
		conn.Close()
	}

	m.mu.Lock()
	m.socket = socketClosed
	m.mu.Unlock()
	m.notifyStatus()
}

// Status returns the derived channel status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deriveStatus(m.socket, m.reconnectArmed)
}

// State returns a copy of the mirrored assistant state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SendUtterance submits free text to the backend as if it had been
// spoken. When the channel is not open the text is dropped with a
// warning — never an error, matching the upstream client.
func (m *Manager) SendUtterance(text string) {
	m.mu.Lock()
	conn := m.conn
	open := deriveStatus(m.socket, m.reconnectArmed) == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		m.logger.Warn("utterance dropped, primary connection not open", "status", m.Status().String())
		return
	}
	if err := conn.WriteMessage(protocol.EncodeUtterance(text)); err != nil {
		m.logger.Warn("utterance transmission failed", "error", err)
	}
}

// RegisterView adds a skill view to the announcement flow. If the
// channel is already open the view is announced immediately;
// otherwise it is announced on every subsequent connect.
func (m *Manager) RegisterView(view GuiView) {
	m.mu.Lock()
	m.views = append(m.views, view)
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		m.announce(conn, view)
	}
}

// UnregisterView removes a view from the announcement flow.
func (m *Manager) UnregisterView(view GuiView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, registered := range m.views {
		if registered == view {
			m.views = append(m.views[:i], m.views[i+1:]...)
			return
		}
	}
}

// OnStatusChange subscribes to status recomputations. A notification
// fires on every recomputation, even when the derived value is
// unchanged — transport transitions that map to the same status are
// still visible this way, as in the upstream client.
func (m *Manager) OnStatusChange(callback func(Status)) (cancel func()) {
	return m.statusChanged.Subscribe(callback)
}

// OnStateChange subscribes to assistant-state transitions. The
// callback receives a copy of the full state after each change.
func (m *Manager) OnStateChange(callback func(State)) (cancel func()) {
	return m.stateChanged.Subscribe(callback)
}

// OnNotUnderstood subscribes to "utterance not understood" events.
func (m *Manager) OnNotUnderstood(callback func()) (cancel func()) {
	return m.notUnderstood.Subscribe(func(struct{}) { callback() })
}

// OnFallbackText subscribes to spoken text that no GUI claims.
func (m *Manager) OnFallbackText(callback func(FallbackText)) (cancel func()) {
	return m.fallbackText.Subscribe(callback)
}

// OnSkillData subscribes to free-form metadata payloads.
func (m *Manager) OnSkillData(callback func(map[string]any)) (cancel func()) {
	return m.skillData.Subscribe(callback)
}

// armReconnectLocked starts the retry loop. Caller holds m.mu.
func (m *Manager) armReconnectLocked() {
	m.reconnectArmed = true
	stop := make(chan struct{})
	m.reconnectStop = stop
	go m.reconnectLoop(stop)
}

// reconnectLoop retries the dial on every tick until one succeeds or
// the loop is stopped. Fixed interval, no backoff: the backend is
// expected on localhost and the upstream client behaves the same way.
func (m *Manager) reconnectLoop(stop <-chan struct{}) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if m.tryConnect(ticker) {
				return
			}
		}
	}
}

// tryConnect performs one dial attempt. Returns true when the
// reconnect loop should exit (connected, or the Manager closed). The
// ticker is stopped before the open status is announced, so observers
// of StatusOpen never see the timer still armed.
func (m *Manager) tryConnect(ticker clock.Ticker) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return true
	}
	m.socket = socketConnecting
	m.mu.Unlock()
	m.notifyStatus()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	conn, err := m.dialer.Dial(ctx, m.url)
	cancel()
	if err != nil {
		m.mu.Lock()
		m.socket = socketClosed
		m.mu.Unlock()
		m.notifyStatus()
		m.logger.Debug("primary dial failed, will retry", "url", m.url, "error", err)
		return false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return true
	}
	m.conn = conn
	m.socket = socketOpen
	m.reconnectArmed = false
	m.reconnectStop = nil
	m.generation++
	generation := m.generation
	views := make([]GuiView, len(m.views))
	copy(views, m.views)
	m.mu.Unlock()

	ticker.Stop()
	m.notifyStatus()
	m.logger.Info("primary connection open", "url", m.url)

	for _, view := range views {
		m.announce(conn, view)
	}

	go m.readLoop(conn, generation)
	return true
}

// announce sends the view's gui.connected announcement.
func (m *Manager) announce(conn transport.Conn, view GuiView) {
	if err := conn.WriteMessage(protocol.EncodeGuiConnected(view.ID())); err != nil {
		m.logger.Warn("view announcement failed", "gui_id", view.ID(), "error", err)
	}
}

// readLoop drains the connection until it dies. Frames are processed
// strictly in arrival order; the loop is the only goroutine mutating
// assistant state for its generation.
func (m *Manager) readLoop(conn transport.Conn, generation int) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(generation, err)
			return
		}
		m.handleFrame(frame)
	}
}

// handleDisconnect re-arms the reconnect loop after an unexpected
// connection loss. Stale generations (a loop outliving its
// replacement connection) are ignored.
func (m *Manager) handleDisconnect(generation int, cause error) {
	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.socket = socketClosed
	if !m.reconnectArmed {
		m.armReconnectLocked()
	}
	m.mu.Unlock()

	m.notifyStatus()
	m.logger.Warn("primary connection lost, reconnecting", "error", cause)
}

// handleFrame classifies one inbound frame. Undecodable frames are
// dropped; unrecognized types are ignored without diagnostics (the
// primary channel carries much traffic this client has no use for).
func (m *Manager) handleFrame(frame []byte) {
	message, err := protocol.Decode(frame)
	if err != nil {
		m.logger.Debug("dropping undecodable primary frame", "error", err)
		return
	}
	if protocol.IsNoise(message.Type) {
		return
	}

	switch message.Type {
	case protocol.TypeIntentFailure:
		m.setState(func(state *State) { state.IsListening = false })
		m.notUnderstood.Emit(struct{}{})

	case protocol.TypeAudioOutputStart:
		m.setState(func(state *State) { state.IsSpeaking = true })

	case protocol.TypeAudioOutputEnd:
		m.setState(func(state *State) { state.IsSpeaking = false })

	case protocol.TypeRecordBegin:
		m.setState(func(state *State) { state.IsListening = true })

	case protocol.TypeRecordEnd:
		m.setState(func(state *State) { state.IsListening = false })

	case protocol.TypeRecognitionUnknown:
		m.notUnderstood.Emit(struct{}{})

	case protocol.TypeSkillHandlerStart:
		name := message.SkillName()
		m.setState(func(state *State) { state.CurrentSkillID = name })

	case protocol.TypeSkillHandlerComplete:
		m.setState(func(state *State) { state.CurrentSkillID = "" })

	case protocol.TypeSpeak:
		data, err := message.DataMap()
		if err != nil {
			m.logger.Warn("speak message with malformed data", "error", err)
			return
		}
		m.mu.Lock()
		skillID := m.state.CurrentSkillID
		m.mu.Unlock()
		m.fallbackText.Emit(FallbackText{SkillID: skillID, Data: data})

	case protocol.TypeMetadata:
		data, err := message.DataMap()
		if err != nil {
			m.logger.Warn("metadata message with malformed data", "error", err)
			return
		}
		m.skillData.Emit(data)

	case protocol.TypeGuiPort:
		m.handleGuiPort(message)
	}
}

// handleGuiPort routes the backend's GUI port assignment to the
// announced view, handing it the secondary channel address.
func (m *Manager) handleGuiPort(message protocol.Message) {
	port, guiID, err := message.GuiPort()
	if err != nil {
		m.logger.Warn("dropping malformed gui.port message", "error", err)
		return
	}

	m.mu.Lock()
	var target GuiView
	for _, view := range m.views {
		if view.ID() == guiID {
			target = view
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		m.logger.Warn("gui.port for unknown view", "gui_id", guiID)
		return
	}
	target.SetURL(GuiURL(m.guiHost, port))
}

// GuiURL builds the secondary channel address from the backend host
// and the assigned port.
func GuiURL(host string, port int) string {
	return fmt.Sprintf("ws://%s:%d/gui", host, port)
}

// setState applies a mutation and emits the updated state. The signal
// fires on every classified state message, even when the field value
// is unchanged, matching the upstream client's per-message emissions.
func (m *Manager) setState(mutate func(*State)) {
	m.mu.Lock()
	mutate(&m.state)
	snapshot := m.state
	m.mu.Unlock()
	m.stateChanged.Emit(snapshot)
}

// notifyStatus recomputes the derived status and notifies
// subscribers. Deliberately not deduplicated; see OnStatusChange.
func (m *Manager) notifyStatus() {
	m.statusChanged.Emit(m.Status())
}
