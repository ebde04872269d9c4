// Package conn manages the terminal's realtime connection to the server.
package conn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"leadflow_backend/platform/logger"
)

// ErrNotConnected is returned by Send while no transport is open.
var ErrNotConnected = errors.New("realtime connection is not open")

// Message is one realtime frame in either direction.
type Message struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Transport is an open duplex channel. ReadMessage blocks until a frame
// arrives or the channel drops.
type Transport interface {
	ReadMessage() (Message, error)
	WriteMessage(ctx context.Context, msg Message) error
	Close() error
}

// Dialer opens a Transport. Tests substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// State is the connectivity of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Manager keeps one transport open, redialing at a fixed interval after
// every drop until Disconnect. A drop is reported as a state change only.
type Manager struct {
	dialer   Dialer
	interval time.Duration
	log      *logger.Logger

	mu        sync.Mutex
	state     State
	transport Transport
	cancel    context.CancelFunc
	done      chan struct{}

	handlersMu    sync.RWMutex
	nextHandlerID int
	onMessage     map[int]func(Message)
	onState       map[int]func(State)
}

// NewManager creates a disconnected manager.
func NewManager(dialer Dialer, interval time.Duration, log *logger.Logger) *Manager {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Manager{
		dialer:    dialer,
		interval:  interval,
		log:       log,
		onMessage: make(map[int]func(Message)),
		onState:   make(map[int]func(State)),
	}
}

// Connect starts the connection loop. Calling it while running is a no-op.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(loopCtx, m.done)
}

// Disconnect stops the loop, closes the open transport and waits for the
// loop to exit.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	if cancel == nil {
		m.mu.Unlock()
		return
	}
	// Cancel under mu: attach either sees the cancellation or has already
	// stored the transport read below.
	cancel()
	transport := m.transport
	m.cancel = nil
	m.mu.Unlock()

	if transport != nil {
		_ = transport.Close()
	}
	<-done
}

// State returns the current connectivity.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send writes msg on the open transport.
func (m *Manager) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	transport := m.transport
	m.mu.Unlock()

	if transport == nil {
		return ErrNotConnected
	}
	return transport.WriteMessage(ctx, msg)
}

// OnMessage registers handler for inbound frames and returns its removal.
// Handlers run on the read loop and must not block.
func (m *Manager) OnMessage(handler func(Message)) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.onMessage[id] = handler
	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.onMessage, id)
	}
}

// OnStateChange registers handler for state transitions and returns its removal.
func (m *Manager) OnStateChange(handler func(State)) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.onState[id] = handler
	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.onState, id)
	}
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.setState(StateDisconnected, nil)

	for {
		m.setState(StateConnecting, nil)
		transport, err := m.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Debug("realtime dial failed", "error", err, "retry_in", m.interval)
			m.setState(StateDisconnected, nil)
		} else {
			if !m.attach(ctx, transport) {
				_ = transport.Close()
				return
			}
			m.readLoop(transport)
			_ = transport.Close()
			m.setState(StateDisconnected, nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

func (m *Manager) readLoop(transport Transport) {
	for {
		msg, err := transport.ReadMessage()
		if err != nil {
			m.log.Info("realtime connection dropped", "error", err)
			return
		}
		m.handlersMu.RLock()
		handlers := make([]func(Message), 0, len(m.onMessage))
		for _, h := range m.onMessage {
			handlers = append(handlers, h)
		}
		m.handlersMu.RUnlock()

		for _, h := range handlers {
			h(msg)
		}
	}
}

// attach publishes an open transport unless the loop was cancelled.
func (m *Manager) attach(ctx context.Context, transport Transport) bool {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	changed := m.state != StateConnected
	m.state = StateConnected
	m.transport = transport
	m.mu.Unlock()

	if changed {
		m.notifyState(StateConnected)
	}
	return true
}

func (m *Manager) setState(state State, transport Transport) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.transport = transport
	m.mu.Unlock()

	if changed {
		m.notifyState(state)
	}
}

func (m *Manager) notifyState(state State) {
	m.handlersMu.RLock()
	handlers := make([]func(State), 0, len(m.onState))
	for _, h := range m.onState {
		handlers = append(handlers, h)
	}
	m.handlersMu.RUnlock()

	for _, h := range handlers {
		h(state)
	}
}
