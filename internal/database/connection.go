package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Event is a connection lifecycle notification raised by the driver.
type Event string

const (
	EventConnect         Event = "connect"
	EventClose           Event = "close"
	EventError           Event = "error"
	EventTimeout         Event = "timeout"
	EventParseError      Event = "parseError"
	EventReconnect       Event = "reconnect"
	EventReconnectFailed Event = "reconnectFailed"
	EventServerOpening   Event = "serverOpening"
	EventServerClosed    Event = "serverClosed"
	EventTopologyOpening Event = "topologyOpening"
	EventTopologyClosed  Event = "topologyClosed"
	EventDestroy         Event = "destroy"
)

const DefaultReadyTimeout = 5 * time.Second

// Driver is the network side of a Connection. Implementations report
// lifecycle changes through the emit function passed to Connect.
type Driver interface {
	Connect(ctx context.Context, emit func(Event, error)) error
	RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error)
	Disconnect(ctx context.Context) error
}

// Transition describes one state change of a Connection.
type Transition struct {
	Node  string
	From  State
	To    State
	Event Event
	Err   error
}

// Connection owns one persistent link to a database node.
type Connection struct {
	name         string
	namespace    string
	readyTimeout time.Duration
	driver       Driver
	logger       logrus.FieldLogger

	mu         sync.Mutex
	state      State
	errorCount int
	ready      chan struct{}
	isReady    bool
	observers  []func(Transition)
}

type ConnectionOption func(*Connection)

func WithReadyTimeout(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.readyTimeout = d
		}
	}
}

func WithNamespace(namespace string) ConnectionOption {
	return func(c *Connection) {
		c.namespace = namespace
	}
}

// NewConnection creates a Connection in the disconnected state. Call Connect to dial.
func NewConnection(name string, driver Driver, logger logrus.FieldLogger, opts ...ConnectionOption) *Connection {
	c := &Connection{
		name:         name,
		namespace:    name,
		readyTimeout: DefaultReadyTimeout,
		driver:       driver,
		logger:       logger.WithField("node", name),
		state:        StateDisconnected,
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) Namespace() string {
	return c.namespace
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount
}

func (c *Connection) Connected() bool {
	return c.State() == StateConnected
}

func (c *Connection) Connecting() bool {
	return c.State() == StateConnecting
}

// Observe registers fn to be called after every state transition.
func (c *Connection) Observe(fn func(Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Connect dials the node. Readiness is reported asynchronously by the driver.
func (c *Connection) Connect(ctx context.Context) error {
	c.handle(EventServerOpening, nil)
	if err := c.driver.Connect(ctx, c.handle); err != nil {
		c.handle(EventReconnectFailed, err)
		return err
	}
	return nil
}

// Reconnect re-dials only after an error has been recorded and the connection is in the error state.
func (c *Connection) Reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.errorCount == 0 || c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.errorCount = 0
	c.mu.Unlock()

	c.handle(EventReconnect, nil)
	if err := c.driver.Connect(ctx, c.handle); err != nil {
		c.handle(EventReconnectFailed, err)
	}
}

// Ready returns nil once the connection is usable. While connecting it waits up to
// timeout; in any other state it triggers a lazy reconnect and fails immediately.
func (c *Connection) Ready(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.readyTimeout
	}

	c.mu.Lock()
	state := c.state
	ready := c.ready
	c.mu.Unlock()

	switch state {
	case StateConnected:
		return nil
	case StateConnecting:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ready:
			return nil
		case <-timer.C:
			return &TimeoutError{Node: c.name, Timeout: timeout}
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		c.Reconnect(ctx)
		return &TransportError{Node: c.name, OldState: state, NewState: c.State()}
	}
}

// RunCommand runs cmd against the namespaced database db.
func (c *Connection) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	return c.run(ctx, c.namespaced(db), cmd)
}

// RunAdminCommand runs cmd against the admin database without namespacing.
func (c *Connection) RunAdminCommand(ctx context.Context, cmd bson.D) (bson.Raw, error) {
	return c.run(ctx, "admin", cmd)
}

// Close releases the driver. Only process shutdown should call it.
func (c *Connection) Close(ctx context.Context) error {
	err := c.driver.Disconnect(ctx)
	c.handle(EventDestroy, err)
	return err
}

func (c *Connection) run(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	if err := c.Ready(ctx, c.readyTimeout); err != nil {
		return nil, err
	}

	result, err := c.driver.RunCommand(ctx, db, cmd)
	if err != nil {
		var serverErr mongo.CommandError
		if errors.As(err, &serverErr) {
			return nil, NewCommandError(CodeCommandNotOK, "error returned from mongodb command", result, fmt.Errorf("%w: %w", ErrNotOK, err))
		}
		return nil, NewCommandError(CodeCommandFailed, "failed to run mongodb command", cmd, err)
	}

	var status struct {
		OK float64 `bson:"ok"`
	}
	if err := bson.Unmarshal(result, &status); err != nil || status.OK == 0 {
		return nil, NewCommandError(CodeCommandNotOK, "error returned from mongodb command", result, ErrNotOK)
	}
	return result, nil
}

func (c *Connection) namespaced(db string) string {
	if db == "" {
		return c.namespace
	}
	return c.namespace + "_" + db
}

func (c *Connection) handle(event Event, err error) {
	c.mu.Lock()
	from := c.state
	to := nextState(from, event)

	if event == EventError || event == EventTimeout || event == EventReconnectFailed || event == EventParseError {
		c.errorCount++
	}

	c.state = to
	if to == StateConnected && !c.isReady {
		close(c.ready)
		c.isReady = true
	} else if to != StateConnected && c.isReady {
		c.ready = make(chan struct{})
		c.isReady = false
	}
	observers := append([]func(Transition){}, c.observers...)
	c.mu.Unlock()

	entry := c.logger.WithField("event", string(event))
	if err != nil {
		entry = entry.WithError(err)
	}
	msg := fmt.Sprintf("DB state: %s -> %s", from, event)
	switch event {
	case EventError, EventReconnectFailed, EventParseError:
		entry.Error(msg)
	case EventClose, EventTimeout, EventServerClosed, EventTopologyClosed:
		entry.Warn(msg)
	default:
		entry.Debug(msg)
	}

	t := Transition{Node: c.name, From: from, To: to, Event: event, Err: err}
	for _, fn := range observers {
		fn(t)
	}
}

func nextState(current State, event Event) State {
	switch event {
	case EventConnect:
		return StateConnected
	case EventServerOpening, EventTopologyOpening, EventReconnect:
		if current == StateConnected {
			return current
		}
		return StateConnecting
	case EventError, EventReconnectFailed, EventParseError:
		return StateError
	case EventClose, EventTimeout, EventServerClosed, EventTopologyClosed, EventDestroy:
		return StateDisconnected
	default:
		return current
	}
}
