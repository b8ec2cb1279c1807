package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

// Command is a mutating API call recorded while the server was unreachable.
type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// Queue is a JSON file of pending commands.
type Queue struct {
	path string
}

func New(path string) *Queue {
	return &Queue{path: path}
}

func (q *Queue) Load() ([]Command, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) Save(commands []Command) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(q.path, raw, 0o600)
}

func (q *Queue) Push(cmd Command) error {
	commands, err := q.Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return q.Save(commands)
}

// Sender delivers one queued command. rejected reports that the server
// answered and refused it, so it should not be retried.
type Sender func(ctx context.Context, cmd Command) (rejected bool, err error)

type Result struct {
	Sent     int
	Rejected int
	Pending  int
}

// Replay sends queued commands in order. A rejected command is dropped; the
// first delivery failure stops the replay and keeps it and everything after
// it queued.
func (q *Queue) Replay(ctx context.Context, send Sender) (Result, error) {
	commands, err := q.Load()
	if err != nil {
		return Result{}, err
	}
	var res Result
	i := 0
	var sendErr error
	for ; i < len(commands); i++ {
		rejected, err := send(ctx, commands[i])
		if err != nil && !rejected {
			sendErr = err
			break
		}
		if rejected {
			res.Rejected++
			continue
		}
		res.Sent++
	}
	remaining := commands[i:]
	res.Pending = len(remaining)
	if err := q.Save(remaining); err != nil {
		return res, err
	}
	return res, sendErr
}
