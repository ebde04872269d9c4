package conn

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"leadflow_backend/platform/logger"
)

type fakeTransport struct {
	inbound chan Message
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan Message, 8), closed: make(chan struct{})}
}

func (t *fakeTransport) ReadMessage() (Message, error) {
	select {
	case msg := <-t.inbound:
		return msg, nil
	case <-t.closed:
		return Message{}, io.EOF
	}
}

func (t *fakeTransport) WriteMessage(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, msg)
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// fakeDialer hands out queued transports; an empty queue fails the dial.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      int
}

func (d *fakeDialer) Dial(context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.transports) == 0 {
		return nil, errors.New("connection refused")
	}
	t := d.transports[0]
	d.transports = d.transports[1:]
	return t, nil
}

func (d *fakeDialer) push(t *fakeTransport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transports = append(d.transports, t)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) count(s State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.states {
		if got == s {
			n++
		}
	}
	return n
}

func newTestManager(d Dialer) *Manager {
	return NewManager(d, 10*time.Millisecond, logger.NewWithWriter("test", io.Discard))
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestManagerDeliversMessages(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{}
	dialer.push(transport)
	m := newTestManager(dialer)

	received := make(chan Message, 1)
	m.OnMessage(func(msg Message) { received <- msg })
	m.Connect(context.Background())
	defer m.Disconnect()

	eventually(t, "connected", func() bool { return m.State() == StateConnected })
	transport.inbound <- Message{Type: "NEW_LEAD"}

	select {
	case got := <-received:
		if got.Type != "NEW_LEAD" {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestManagerReconnectsAfterDrop(t *testing.T) {
	first, second := newFakeTransport(), newFakeTransport()
	dialer := &fakeDialer{}
	dialer.push(first)
	dialer.push(second)
	m := newTestManager(dialer)

	rec := &stateRecorder{}
	m.OnStateChange(rec.record)
	m.Connect(context.Background())
	defer m.Disconnect()

	eventually(t, "first connection", func() bool { return rec.count(StateConnected) == 1 })
	first.Close()

	eventually(t, "reconnect", func() bool { return rec.count(StateConnected) == 2 })
	if rec.count(StateDisconnected) < 1 {
		t.Fatal("expected the drop to surface as a Disconnected state")
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", dialer.dialCount())
	}
}

func TestManagerRetriesFailedDialAtFixedInterval(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer)
	m.Connect(context.Background())

	eventually(t, "repeated dials", func() bool { return dialer.dialCount() >= 3 })
	if m.State() == StateConnected {
		t.Fatal("expected not connected while dials fail")
	}

	transport := newFakeTransport()
	dialer.push(transport)
	eventually(t, "connected after recovery", func() bool { return m.State() == StateConnected })
	m.Disconnect()
}

func TestDisconnectStopsLoop(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{}
	dialer.push(transport)
	m := newTestManager(dialer)

	m.Connect(context.Background())
	eventually(t, "connected", func() bool { return m.State() == StateConnected })

	m.Disconnect()
	if m.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", m.State())
	}
	select {
	case <-transport.closed:
	default:
		t.Fatal("expected transport closed on Disconnect")
	}

	dials := dialer.dialCount()
	time.Sleep(50 * time.Millisecond)
	if dialer.dialCount() != dials {
		t.Fatal("expected no dials after Disconnect")
	}
	m.Disconnect()
}

func TestSendRequiresOpenTransport(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{}
	m := newTestManager(dialer)

	if err := m.Send(context.Background(), Message{Type: "CHAT_MESSAGE"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	dialer.push(transport)
	m.Connect(context.Background())
	defer m.Disconnect()
	eventually(t, "connected", func() bool { return m.State() == StateConnected })

	if err := m.Send(context.Background(), Message{Type: "CHAT_MESSAGE"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.written) != 1 || transport.written[0].Type != "CHAT_MESSAGE" {
		t.Fatalf("unexpected writes %+v", transport.written)
	}
}

func TestUnsubscribedHandlerStopsReceiving(t *testing.T) {
	transport := newFakeTransport()
	dialer := &fakeDialer{}
	dialer.push(transport)
	m := newTestManager(dialer)

	var mu sync.Mutex
	count := 0
	remove := m.OnMessage(func(Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	seen := make(chan struct{}, 2)
	m.OnMessage(func(Message) { seen <- struct{}{} })

	m.Connect(context.Background())
	defer m.Disconnect()
	eventually(t, "connected", func() bool { return m.State() == StateConnected })

	transport.inbound <- Message{Type: "A"}
	<-seen
	remove()
	transport.inbound <- Message{Type: "B"}
	<-seen

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected removed handler to see 1 message, got %d", count)
	}
}

// instantDialer always succeeds with a fresh transport.
type instantDialer struct {
	mu     sync.Mutex
	opened []*fakeTransport
}

func (d *instantDialer) Dial(context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := newFakeTransport()
	d.opened = append(d.opened, t)
	return t, nil
}

func TestDisconnectRacingDialClosesEveryTransport(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := &instantDialer{}
		m := newTestManager(d)

		m.Connect(context.Background())
		finished := make(chan struct{})
		go func() {
			m.Disconnect()
			close(finished)
		}()

		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Disconnect did not return", i)
		}

		d.mu.Lock()
		for _, tr := range d.opened {
			select {
			case <-tr.closed:
			default:
				t.Fatalf("iteration %d: transport left open after Disconnect", i)
			}
		}
		d.mu.Unlock()
		if m.State() != StateDisconnected {
			t.Fatalf("iteration %d: expected disconnected, got %s", i, m.State())
		}
	}
}
