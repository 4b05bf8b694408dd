package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// KeyValueFSM is a minimal finite state machine applying committed
// set/delete commands to an in-memory map. It implements raft.FSM so it is
// usable unmodified against either this harness or a real
// hashicorp/raft-backed deployment.
type KeyValueFSM struct {
	mu   sync.RWMutex
	data map[string]string
}

// Command is the payload carried by a committed log entry. RequestID tags
// the command with a client-assigned identifier, the same role uuid.New()
// plays when the teacher codebase stamps a created resource with an ID
// before persisting it.
type Command struct {
	RequestID string `json:"request_id"`
	Op        string `json:"op"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func NewKeyValueFSM() *KeyValueFSM {
	return &KeyValueFSM{data: make(map[string]string)}
}

func (f *KeyValueFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "set":
		f.data[cmd.Key] = cmd.Value
		return nil
	case "delete":
		delete(f.data, cmd.Key)
		return nil
	default:
		return fmt.Errorf("unknown operation: %s", cmd.Op)
	}
}

func (f *KeyValueFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot := make(map[string]string, len(f.data))
	for k, v := range f.data {
		snapshot[k] = v
	}
	return &keyValueSnapshot{data: snapshot}, nil
}

func (f *KeyValueFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var data map[string]string
	if err := json.NewDecoder(rc).Decode(&data); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	return nil
}

func (f *KeyValueFSM) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *KeyValueFSM) All() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

type keyValueSnapshot struct {
	data map[string]string
}

func (s *keyValueSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		b, err := json.Marshal(s.data)
		if err != nil {
			return err
		}
		if _, err := sink.Write(b); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *keyValueSnapshot) Release() {}
