// Copyright 2026 The Mycroft GUI Authors
// SPDX-License-Identifier: Apache-2.0

package skillview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CilekciGs/mycroft-gui-fixed/connection"
	"github.com/CilekciGs/mycroft-gui-fixed/lib/clock"
	"github.com/CilekciGs/mycroft-gui-fixed/lib/signal"
	"github.com/CilekciGs/mycroft-gui-fixed/protocol"
	"github.com/CilekciGs/mycroft-gui-fixed/transport"
)

// dialTimeout bounds a single GUI-channel dial attempt.
const dialTimeout = 5 * time.Second

type guiSocket int

const (
	guiClosed guiSocket = iota
	guiConnecting
	guiOpen
	guiClosing
)

// ViewOptions configures a View. Zero values take the owning
// Manager-style defaults.
type ViewOptions struct {
	// Clock drives the reconnect timer. Nil means the real clock.
	Clock clock.Clock

	// Dialer opens the GUI channel transport. Nil means a WebSocket
	// dialer.
	Dialer transport.Dialer

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// ReconnectInterval overrides the fixed retry period. Zero means
	// connection.DefaultReconnectInterval.
	ReconnectInterval time.Duration

	// Loader constructs delegates for gui.show requests. Nil means
	// shows fail until DelegateRegistry.SetLoader installs one.
	Loader Loader
}

// View is one GUI surface's mirror of the backend: the ordered
// active-skill list, the per-skill session data, and the live
// delegates, all fed by the view's own secondary channel.
//
// A View registers itself with the primary connection Manager at
// construction. The Manager announces it to the backend on every
// connect; the backend answers with a dedicated GUI port, which
// arrives here through SetURL and opens the secondary channel. When
// the primary channel drops below open, the address is invalidated
// and the secondary channel is torn down: a reconnected backend
// assigns a fresh port.
type View struct {
	id      string
	logger  *slog.Logger
	clock   clock.Clock
	dialer  transport.Dialer
	manager *connection.Manager

	interval time.Duration

	skills    *ActiveSkillList
	store     *SessionStore
	delegates *DelegateRegistry

	mu             sync.Mutex
	url            string
	conn           transport.Conn
	socket         guiSocket
	reconnectArmed bool
	reconnectStop  chan struct{}
	generation     int
	closed         bool

	cancelStatus func()

	statusChanged signal.Signal[connection.Status]
}

// NewView creates a View bound to the primary connection Manager and
// registers it for the announcement flow.
func NewView(manager *connection.Manager, options ViewOptions) *View {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Dialer == nil {
		options.Dialer = &transport.WebSocketDialer{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.ReconnectInterval <= 0 {
		options.ReconnectInterval = connection.DefaultReconnectInterval
	}

	view := &View{
		id:       uuid.NewString(),
		logger:   options.Logger,
		clock:    options.Clock,
		dialer:   options.Dialer,
		manager:  manager,
		interval: options.ReconnectInterval,
	}
	view.skills = NewActiveSkillList(options.Logger)
	view.store = NewSessionStore(view.skills, options.Logger)
	view.delegates = NewDelegateRegistry(view.skills, view.store, options.Loader, options.Logger)

	// Removal cascade: session data dies first, then the delegates
	// reading it, before the skill's structural removal is announced.
	view.skills.AddCleanupHook(view.store.RemoveSkill)
	view.skills.AddCleanupHook(view.delegates.RemoveSkill)

	view.cancelStatus = manager.OnStatusChange(view.handlePrimaryStatus)
	manager.RegisterView(view)
	return view
}

// ID returns the view's stable identifier, announced to the backend
// as gui_id.
func (v *View) ID() string { return v.id }

// ActiveSkills returns the view's ordered active-skill list.
func (v *View) ActiveSkills() *ActiveSkillList { return v.skills }

// Sessions returns the view's per-skill session store.
func (v *View) Sessions() *SessionStore { return v.store }

// Delegates returns the view's delegate registry.
func (v *View) Delegates() *DelegateRegistry { return v.delegates }

// URL returns the current GUI channel address, empty when the backend
// has not assigned one.
func (v *View) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url
}

// Status returns the derived GUI channel status. An armed reconnect
// timer reads as Connecting regardless of the socket state, the same
// derivation the primary channel uses.
func (v *View) Status() connection.Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusLocked()
}

func (v *View) statusLocked() connection.Status {
	if v.reconnectArmed {
		return connection.StatusConnecting
	}
	switch v.socket {
	case guiConnecting:
		return connection.StatusConnecting
	case guiOpen:
		return connection.StatusOpen
	case guiClosing:
		return connection.StatusClosing
	default:
		return connection.StatusClosed
	}
}

// OnStatusChange subscribes to GUI channel status recomputations.
// Like the primary channel, a notification fires on every
// recomputation even when the derived value is unchanged.
func (v *View) OnStatusChange(callback func(connection.Status)) (cancel func()) {
	return v.statusChanged.Subscribe(callback)
}

// SetURL hands the view its GUI channel address. Called by the
// connection Manager when the backend's port assignment arrives, and
// by the Manager's status handler (with the empty string) to
// invalidate a stale address. Setting the same address again is a
// no-op; a different address tears down the current channel and
// connects to the new one, provided the primary channel is open.
func (v *View) SetURL(url string) {
	v.mu.Lock()
	if v.closed || v.url == url {
		v.mu.Unlock()
		return
	}
	v.url = url
	conn := v.conn
	v.conn = nil
	if conn != nil {
		v.socket = guiClosed
	}
	v.disarmReconnectLocked()
	v.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if url != "" && v.manager.Status() == connection.StatusOpen {
		v.connect()
	}
	v.notifyStatus()
}

// handlePrimaryStatus reacts to primary-channel transitions. The GUI
// channel exists only while the primary channel is open: anything
// below open invalidates the assigned address and tears the channel
// down. The open transition alone does not connect — the backend
// must first re-announce a port through SetURL.
func (v *View) handlePrimaryStatus(status connection.Status) {
	if status == connection.StatusOpen {
		return
	}

	v.mu.Lock()
	if v.closed || (v.url == "" && v.conn == nil && !v.reconnectArmed) {
		v.mu.Unlock()
		return
	}
	v.url = ""
	conn := v.conn
	v.conn = nil
	if conn != nil {
		v.socket = guiClosed
	}
	v.disarmReconnectLocked()
	v.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	v.logger.Info("gui channel invalidated, primary connection not open",
		"gui_id", v.id, "primary_status", status.String())
	v.notifyStatus()
}

// Close unregisters the view and tears down its channel. The view
// cannot be reused.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.url = ""
	conn := v.conn
	v.conn = nil
	v.socket = guiClosing
	v.disarmReconnectLocked()
	v.mu.Unlock()

	v.cancelStatus()
	v.manager.UnregisterView(v)

	v.notifyStatus()
	if conn != nil {
		conn.Close()
	}

	v.mu.Lock()
	v.socket = guiClosed
	v.mu.Unlock()
	v.notifyStatus()
}

// connect performs one immediate dial attempt in the caller's
// goroutine. Failures arm the reconnect timer instead of surfacing an
// error: the backend may still be binding the freshly assigned port.
func (v *View) connect() {
	v.mu.Lock()
	if v.closed || v.conn != nil || v.url == "" {
		v.mu.Unlock()
		return
	}
	url := v.url
	v.socket = guiConnecting
	v.mu.Unlock()
	v.notifyStatus()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	conn, err := v.dialer.Dial(ctx, url)
	cancel()
	if err != nil {
		v.logger.Debug("gui dial failed, will retry", "gui_id", v.id, "url", url, "error", err)
		v.mu.Lock()
		v.socket = guiClosed
		if !v.closed && v.url == url && !v.reconnectArmed {
			v.armReconnectLocked()
		}
		v.mu.Unlock()
		v.notifyStatus()
		return
	}

	v.mu.Lock()
	if v.closed || v.url != url {
		v.mu.Unlock()
		conn.Close()
		return
	}
	v.conn = conn
	v.socket = guiOpen
	v.generation++
	generation := v.generation
	v.mu.Unlock()

	v.notifyStatus()
	v.logger.Info("gui channel open", "gui_id", v.id, "url", url)
	go v.readLoop(conn, generation)
}

// armReconnectLocked starts the GUI-channel retry loop. Caller holds
// v.mu.
func (v *View) armReconnectLocked() {
	v.reconnectArmed = true
	stop := make(chan struct{})
	v.reconnectStop = stop
	go v.reconnectLoop(stop)
}

func (v *View) disarmReconnectLocked() {
	if v.reconnectStop != nil {
		close(v.reconnectStop)
		v.reconnectStop = nil
	}
	v.reconnectArmed = false
}

// reconnectLoop retries the assigned address on every tick. It exits
// when a dial succeeds, the address is invalidated, or the view
// closes.
func (v *View) reconnectLoop(stop <-chan struct{}) {
	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if v.tryReconnect(ticker) {
				return
			}
		}
	}
}

// tryReconnect performs one timed dial attempt. Returns true when the
// loop should exit. The ticker is stopped before the open status is
// announced, so observers of StatusOpen never see the timer armed.
func (v *View) tryReconnect(ticker clock.Ticker) bool {
	v.mu.Lock()
	if v.closed || v.url == "" || v.conn != nil {
		v.mu.Unlock()
		return true
	}
	url := v.url
	v.socket = guiConnecting
	v.mu.Unlock()
	v.notifyStatus()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	conn, err := v.dialer.Dial(ctx, url)
	cancel()
	if err != nil {
		v.mu.Lock()
		v.socket = guiClosed
		v.mu.Unlock()
		v.notifyStatus()
		v.logger.Debug("gui dial failed, will retry", "gui_id", v.id, "url", url, "error", err)
		return false
	}

	v.mu.Lock()
	if v.closed || v.url != url {
		v.mu.Unlock()
		conn.Close()
		return true
	}
	v.conn = conn
	v.socket = guiOpen
	v.reconnectArmed = false
	v.reconnectStop = nil
	v.generation++
	generation := v.generation
	v.mu.Unlock()

	ticker.Stop()
	v.notifyStatus()
	v.logger.Info("gui channel open", "gui_id", v.id, "url", url)
	go v.readLoop(conn, generation)
	return true
}

// readLoop drains the GUI channel until it dies. It is the only
// goroutine dispatching frames for its generation, so session and
// list mutations apply strictly in arrival order.
func (v *View) readLoop(conn transport.Conn, generation int) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			v.handleDisconnect(generation, err)
			return
		}
		v.handleFrame(frame)
	}
}

// handleDisconnect re-arms the retry loop after an unexpected GUI
// channel loss, but only while the address is still considered valid.
func (v *View) handleDisconnect(generation int, cause error) {
	v.mu.Lock()
	if v.closed || v.generation != generation {
		v.mu.Unlock()
		return
	}
	v.conn = nil
	v.socket = guiClosed
	if v.url != "" && !v.reconnectArmed {
		v.armReconnectLocked()
	}
	v.mu.Unlock()

	v.notifyStatus()
	v.logger.Warn("gui channel lost", "gui_id", v.id, "error", cause)
}

// handleFrame dispatches one inbound GUI frame. Every fault degrades
// to a log entry — a hostile or confused backend must not be able to
// kill the channel, and the connection survives any malformed frame.
func (v *View) handleFrame(frame []byte) {
	message, err := protocol.Decode(frame)
	if err != nil {
		v.logger.Warn("dropping undecodable gui frame", "gui_id", v.id, "error", err)
		return
	}

	switch message.Type {
	case protocol.TypeSessionSet:
		data, err := message.DataMap()
		if err != nil {
			v.logger.Warn("session set with malformed data", "namespace", message.Namespace, "error", err)
			return
		}
		if err := v.store.ApplyUpdate(message.Namespace, data); err != nil {
			v.logger.Warn("session set rejected", "error", err)
		}

	case protocol.TypeSessionDelete:
		if err := v.store.DeleteProperty(message.Namespace, message.Property); err != nil {
			v.logger.Warn("session delete rejected", "error", err)
		}

	case protocol.TypeSessionInsert:
		if message.Namespace != protocol.NamespaceActiveSkills {
			v.logger.Warn("session insert outside the active-skill namespace",
				"namespace", message.Namespace)
			return
		}
		skillIDs, err := message.SkillIDRows()
		if err != nil {
			v.logger.Warn("session insert rejected", "error", err)
			return
		}
		if err := v.skills.Insert(message.Position, skillIDs); err != nil {
			v.logger.Warn("session insert rejected", "error", err)
		}

	case protocol.TypeSessionRemove:
		if message.Namespace != protocol.NamespaceActiveSkills {
			v.logger.Warn("session remove outside the active-skill namespace",
				"namespace", message.Namespace)
			return
		}
		if err := v.skills.Remove(message.Position, message.ItemsNumber); err != nil {
			v.logger.Warn("session remove rejected", "error", err)
		}

	case protocol.TypeSessionMove:
		if err := v.skills.Move(message.From, message.ItemsNumber, message.To); err != nil {
			v.logger.Warn("session move rejected", "error", err)
		}

	case protocol.TypeGuiShow:
		if err := v.delegates.Show(message.Namespace, message.GuiURL); err != nil {
			v.logger.Warn("gui show rejected", "error", err)
		}

	case protocol.TypeEventsTriggered:
		data, err := message.DataMap()
		if err != nil {
			v.logger.Warn("event with malformed data", "event", message.EventName, "error", err)
			return
		}
		if err := v.delegates.DispatchEvent(message.Namespace, message.EventName, data); err != nil {
			v.logger.Warn("event dispatch rejected", "error", err)
		}

	default:
		v.logger.Warn("dropping unrecognized gui frame", "type", message.Type)
	}
}

func (v *View) notifyStatus() {
	v.statusChanged.Emit(v.Status())
}
