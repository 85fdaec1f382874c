package database

import (
	"context"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

type call struct {
	db  string
	cmd bson.Raw
}

type fakeCommander struct {
	mu      sync.Mutex
	calls   []call
	respond func(db string, cmd bson.Raw) (bson.D, error)
}

func (f *fakeCommander) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	raw, err := bson.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{db: db, cmd: raw})
	f.mu.Unlock()

	res, err := f.respond(db, raw)
	if err != nil {
		return nil, err
	}
	return bson.Marshal(res)
}

func (f *fakeCommander) commands() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call{}, f.calls...)
}

// commandName returns the first key of a command document.
func commandName(cmd bson.Raw) string {
	elems, err := cmd.Elements()
	if err != nil || len(elems) == 0 {
		return ""
	}
	return elems[0].Key()
}

func mustMarshal(t *testing.T, v any) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
