package api

import (
	"bytes"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

type replayEntry struct {
	done   bool
	status int
	body   []byte
}

// replayCache remembers the outcome of recent mutating requests by their
// Idempotency-Key so a client retrying after a dropped response does not buy
// twice. Oldest keys are evicted first.
type replayCache struct {
	mu      sync.Mutex
	limit   int
	order   []string
	entries map[string]*replayEntry
}

func newReplayCache(limit int) *replayCache {
	return &replayCache{limit: limit, entries: make(map[string]*replayEntry, limit)}
}

// begin reserves key. It returns the finished entry when key was already
// served, or ok=false while another request with the same key is running.
func (c *replayCache) begin(key string) (prev *replayEntry, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, seen := c.entries[key]; seen {
		if !e.done {
			return nil, false
		}
		return e, true
	}
	c.entries[key] = &replayEntry{}
	c.order = append(c.order, key)
	for len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return nil, true
}

func (c *replayCache) finish(key string, status int, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.done = true
		e.status = status
		e.body = body
	}
}

// abandon forgets key so a request that never produced a response can be
// retried.
func (c *replayCache) abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !e.done {
		delete(c.entries, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Server) replayGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")) != ""
		key := idempotencyKey(r)
		w.Header().Set("Idempotency-Key", key)
		if !clientKey {
			next.ServeHTTP(w, r)
			return
		}

		prev, ok := s.replays.begin(key)
		if !ok {
			writeError(w, http.StatusConflict, "request with this idempotency key is in progress")
			return
		}
		if prev != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(prev.status)
			_, _ = w.Write(prev.body)
			return
		}

		finished := false
		defer func() {
			// A panicking handler unwinds through here; release the key.
			if !finished {
				s.replays.abandon(key)
			}
		}()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		var buf bytes.Buffer
		ww.Tee(&buf)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.replays.finish(key, status, buf.Bytes())
		finished = true
	})
}
