package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDriver connects to a MongoDB deployment and forwards its server
// monitoring events to the owning Connection.
type MongoDriver struct {
	uri     string
	appName string

	mu         sync.Mutex
	client     *mongo.Client
	generation atomic.Int64
}

func NewMongoDriver(uri, appName string) *MongoDriver {
	return &MongoDriver{uri: uri, appName: appName}
}

func (d *MongoDriver) Connect(ctx context.Context, emit func(Event, error)) error {
	gen := d.generation.Add(1)

	opts := options.Client().
		ApplyURI(d.uri).
		SetAppName(d.appName).
		SetServerMonitor(d.monitor(gen, emit)).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", d.appName, err)
	}

	d.mu.Lock()
	old := d.client
	d.client = client
	d.mu.Unlock()

	if old != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = old.Disconnect(ctx)
		}()
	}
	return nil
}

// monitor translates driver events of one client generation into connection events.
// Events from a client replaced by a later Connect are ignored.
func (d *MongoDriver) monitor(gen int64, emit func(Event, error)) *event.ServerMonitor {
	health := newServerHealth()
	current := func() bool { return d.generation.Load() == gen }

	return &event.ServerMonitor{
		ServerOpening: func(*event.ServerOpeningEvent) {
			if current() {
				emit(EventServerOpening, nil)
			}
		},
		ServerClosed: func(e *event.ServerClosedEvent) {
			if current() && health.closed(e.Address.String()) {
				emit(EventServerClosed, nil)
			}
		},
		TopologyOpening: func(*event.TopologyOpeningEvent) {
			if current() {
				emit(EventTopologyOpening, nil)
			}
		},
		TopologyClosed: func(*event.TopologyClosedEvent) {
			if current() {
				health.reset()
				emit(EventTopologyClosed, nil)
			}
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			if current() && health.succeeded(serverAddress(e.ConnectionID)) {
				emit(EventConnect, nil)
			}
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			if current() && health.failed(serverAddress(e.ConnectionID)) {
				emit(EventError, e.Failure)
			}
		},
	}
}

// serverHealth tracks heartbeats per member. The deployment is up while any member answers.
type serverHealth struct {
	mu       sync.Mutex
	servers  map[string]bool
	reported bool
}

func newServerHealth() *serverHealth {
	return &serverHealth{servers: make(map[string]bool)}
}

// succeeded reports whether the deployment just became reachable.
func (h *serverHealth) succeeded(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	was := h.up()
	h.servers[addr] = true
	h.reported = false
	return !was
}

// failed reports whether the failure leaves no member reachable and has not been reported yet.
// The first failure after Connect counts even when no heartbeat ever succeeded.
func (h *serverHealth) failed(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers[addr] = false
	if h.up() || h.reported {
		return false
	}
	h.reported = true
	return true
}

// closed reports whether the last reachable member went away.
func (h *serverHealth) closed(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	was := h.up()
	delete(h.servers, addr)
	return was && !h.up()
}

func (h *serverHealth) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.servers)
	h.reported = false
}

func (h *serverHealth) up() bool {
	for _, ok := range h.servers {
		if ok {
			return true
		}
	}
	return false
}

// serverAddress strips the "[-N]" connection counter from a heartbeat connection id.
func serverAddress(connectionID string) string {
	addr, _, _ := strings.Cut(connectionID, "[-")
	return addr
}

func (d *MongoDriver) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return nil, ErrNotReady
	}
	return client.Database(db).RunCommand(ctx, cmd).Raw()
}

func (d *MongoDriver) Disconnect(ctx context.Context) error {
	d.generation.Add(1)
	d.mu.Lock()
	client := d.client
	d.client = nil
	d.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
