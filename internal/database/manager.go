package database

import (
	"context"
	"errors"
	"fmt"
)

// Manager owns one Connection per configured node.
type Manager struct {
	order   []string
	conns   map[string]*Connection
	clients map[string]*Client
}

func NewManager(conns []*Connection, opts ...ClientOption) *Manager {
	m := &Manager{
		conns:   make(map[string]*Connection, len(conns)),
		clients: make(map[string]*Client, len(conns)),
	}
	for _, conn := range conns {
		if _, dup := m.conns[conn.Name()]; dup {
			continue
		}
		m.order = append(m.order, conn.Name())
		m.conns[conn.Name()] = conn
		m.clients[conn.Name()] = NewClient(conn, opts...)
	}
	return m
}

// Server returns the named connection. An empty name selects the first configured node.
func (m *Manager) Server(name string) (*Connection, error) {
	if name == "" {
		if len(m.order) == 0 {
			return nil, fmt.Errorf("default node: %w", ErrNoServer)
		}
		name = m.order[0]
	}
	conn, ok := m.conns[name]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", name, ErrNoServer)
	}
	return conn, nil
}

// Client returns the command client bound to the named node.
func (m *Manager) Client(name string) (*Client, error) {
	conn, err := m.Server(name)
	if err != nil {
		return nil, err
	}
	return m.clients[conn.Name()], nil
}

func (m *Manager) Connections() []*Connection {
	out := make([]*Connection, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.conns[name])
	}
	return out
}

func (m *Manager) Connect(ctx context.Context) error {
	var errs []error
	for _, conn := range m.Connections() {
		if err := conn.Connect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", conn.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close disconnects every node.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, conn := range m.Connections() {
		if err := conn.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", conn.Name(), err))
		}
	}
	return errors.Join(errs...)
}
