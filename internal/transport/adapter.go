package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	pkglog "github.com/streakmates/sync-client/pkg/log"
)

// Handler receives the decoded data payload of one push event.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	Event string
	ID    uint64
}

// envelope is the wire frame: {"event": name, "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Config holds Adapter configuration.
type Config struct {
	URL            string
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	DialTimeout    time.Duration
	MaxBackoff     time.Duration
}

// Adapter wraps the persistent push connection: connect/reconnect
// lifecycle, named event subscribe/unsubscribe, emit. Events missed
// while offline are not replayed; consumers registered via OnReconnect
// re-request their snapshots instead.
type Adapter struct {
	cfg Config

	mu            sync.RWMutex
	state         State
	send          chan []byte
	handlers      map[string]map[uint64]Handler
	nextSub       uint64
	everConnected bool

	stateWatchers  []func(State)
	reconnectHooks []func()

	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter creates an Adapter in the idle state.
func NewAdapter(cfg Config) *Adapter {
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait == 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait == 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Adapter{
		cfg:      cfg,
		state:    StateIdle,
		handlers: make(map[string]map[uint64]Handler),
	}
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// OnStateChange registers a connection-changed observer.
func (a *Adapter) OnStateChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateWatchers = append(a.stateWatchers, fn)
}

// OnReconnect registers a snapshot-request hook re-run after every
// transition back to connected.
func (a *Adapter) OnReconnect(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reconnectHooks = append(a.reconnectHooks, fn)
}

// Subscribe registers a handler for a named event. Multiple handlers
// per event name are allowed.
func (a *Adapter) Subscribe(event string, h Handler) Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSub++
	if a.handlers[event] == nil {
		a.handlers[event] = make(map[uint64]Handler)
	}
	a.handlers[event][a.nextSub] = h
	return Subscription{Event: event, ID: a.nextSub}
}

// Unsubscribe removes a previously registered handler.
func (a *Adapter) Unsubscribe(sub Subscription) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if hs, ok := a.handlers[sub.Event]; ok {
		delete(hs, sub.ID)
		if len(hs) == 0 {
			delete(a.handlers, sub.Event)
		}
	}
}

// Emit sends a named event to the server. It is a silent no-op when the
// adapter is not connected; frames are never queued for later delivery.
func (a *Adapter) Emit(event string, payload any) {
	l := pkglog.L()
	data, err := json.Marshal(payload)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldEvent, event).Msg("emit: marshal failed")
		return
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateConnected || a.send == nil {
		return
	}
	select {
	case a.send <- frame:
	default:
		l.Warn().Str(pkglog.FieldEvent, event).Msg("emit: send buffer full, frame dropped")
	}
}

// Connect establishes the session-bound channel and starts the
// reconnect supervisor. It returns the first dial attempt's error; on
// failure the adapter is left in the disconnected state and keeps
// retrying in the background until Close.
func (a *Adapter) Connect(ctx context.Context, token string) error {
	runCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		cancel()
		return nil
	}
	a.token = token
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	first := make(chan error, 1)
	go a.run(runCtx, first)
	return <-first
}

// Close stops the supervisor and tears down the connection.
func (a *Adapter) Close() {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run supervises the connection: dial, pump until the connection drops,
// decide how to retry. A server-instructed disconnect (clean close
// frame) earns one immediate retry; everything else goes through the
// capped fibonacci backoff.
func (a *Adapter) run(ctx context.Context, first chan<- error) {
	defer close(a.doneCh())
	defer a.setState(StateDisconnected)

	logger := pkglog.L()
	firstAttempt := true
	firstReported := false
	immediate := false
	defer func() {
		// Never leave Connect blocked if the context dies first.
		if !firstReported {
			first <- ctx.Err()
		}
	}()

	for ctx.Err() == nil {
		var conn *websocket.Conn
		var err error

		switch {
		case firstAttempt:
			a.setState(StateConnecting)
			conn, err = a.dial(ctx)
			firstAttempt = false
			if err != nil {
				first <- err
				firstReported = true
			}
		case immediate:
			a.setState(StateReconnecting)
			conn, err = a.dial(ctx)
			immediate = false
		default:
			a.setState(StateReconnecting)
			conn, err = a.dialWithBackoff(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("transport: connect failed")
			a.setState(StateDisconnected)
			continue
		}

		send := make(chan []byte, 256)
		a.mu.Lock()
		a.send = send
		a.state = StateConnected
		watchers := append([]func(State){}, a.stateWatchers...)
		hooks := append([]func(){}, a.reconnectHooks...)
		reconnected := a.everConnected
		a.everConnected = true
		a.mu.Unlock()

		for _, fn := range watchers {
			fn(StateConnected)
		}
		if !firstReported {
			first <- nil
			firstReported = true
		}
		if reconnected {
			for _, fn := range hooks {
				fn()
			}
		}

		stop := make(chan struct{})
		go a.writePump(conn, send, stop)
		go func() {
			// Unblock the read pump when Close is called.
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()
		clean := a.readPump(ctx, conn)
		close(stop)

		a.mu.Lock()
		a.send = nil
		a.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		a.setState(StateDisconnected)
		immediate = clean
	}
}

func (a *Adapter) doneCh() chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

func (a *Adapter) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.DialTimeout}

	header := http.Header{}
	a.mu.RLock()
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}
	a.mu.RUnlock()

	conn, resp, err := dialer.DialContext(ctx, a.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (a *Adapter) dialWithBackoff(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	b := retry.WithCappedDuration(a.cfg.MaxBackoff, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := a.dial(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readPump reads frames and dispatches them until the connection drops.
// It reports whether the peer closed the connection cleanly, i.e. the
// server instructed the disconnect rather than the network failing.
func (a *Adapter) readPump(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()

	logger := pkglog.L()

	conn.SetReadLimit(a.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !clean && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("transport: read failed")
			}
			return clean
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn().Err(err).Msg("transport: invalid frame")
			continue
		}
		if env.Event == "" {
			continue
		}
		a.dispatch(env)
	}
}

func (a *Adapter) dispatch(env envelope) {
	a.mu.RLock()
	hs := make([]Handler, 0, len(a.handlers[env.Event]))
	for _, h := range a.handlers[env.Event] {
		hs = append(hs, h)
	}
	a.mu.RUnlock()

	for _, h := range hs {
		h(env.Data)
	}
}

func (a *Adapter) writePump(conn *websocket.Conn, send <-chan []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return
		}
	}
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	watchers := append([]func(State){}, a.stateWatchers...)
	a.mu.Unlock()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldState, s.String()).Msg("transport: state changed")
	for _, fn := range watchers {
		fn(s)
	}
}
