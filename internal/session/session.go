package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tycoon/internal/game"
)

const defaultPersistTimeout = 10 * time.Second

// ErrSaveUnread is returned by Save while the stored game has never been
// read back. Writing then would replace the player's save with whatever
// the session started in its place.
var ErrSaveUnread = errors.New("stored save not read yet, refusing to overwrite it")

// Store is the persistence collaborator. Persist may fail; the session keeps
// running in memory when it does. Retrieve reports found=false when nothing
// has been saved yet.
type Store interface {
	Persist(ctx context.Context, snapshot []byte) error
	Retrieve(ctx context.Context) (snapshot []byte, found bool, err error)
}

// Observer receives session events, typically to export metrics.
type Observer interface {
	Applied(kind string, err error)
	Published(s *game.GameState)
	Persisted(err error, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) Applied(string, error)          {}
func (nopObserver) Published(*game.GameState)      {}
func (nopObserver) Persisted(error, time.Duration) {}

type Options struct {
	Store          Store
	Logger         *slog.Logger
	Observer       Observer
	Catalog        *game.Catalog
	Rand           game.Rand
	Now            func() time.Time
	PersistTimeout time.Duration
}

// Session owns the current snapshot of one player's game. Readers load the
// snapshot lock-free; writers serialize on mu, derive the next snapshot from
// the current one and swap it in whole.
type Session struct {
	store          Store
	log            *slog.Logger
	obs            Observer
	catalog        *game.Catalog
	rand           game.Rand
	now            func() time.Time
	persistTimeout time.Duration

	mu       sync.Mutex
	state    atomic.Pointer[game.GameState]
	momentum game.Momentum
	subs     map[int]chan *game.GameState
	nextSub  int

	// unread is set when Load could not read the store. Persists hold off
	// until a later read succeeds.
	unread atomic.Bool

	// persistMu orders writes to the store; lastPersisted is the save stamp
	// of the newest snapshot written.
	persistMu     sync.Mutex
	lastPersisted int64
}

func New(opts Options) *Session {
	s := &Session{
		store:          opts.Store,
		log:            opts.Logger,
		obs:            opts.Observer,
		catalog:        opts.Catalog,
		rand:           opts.Rand,
		now:            opts.Now,
		persistTimeout: opts.PersistTimeout,
		subs:           make(map[int]chan *game.GameState),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.catalog == nil {
		s.catalog = game.DefaultCatalog()
	}
	if s.rand == nil {
		s.rand = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.persistTimeout <= 0 {
		s.persistTimeout = defaultPersistTimeout
	}
	s.state.Store(s.canonical())
	return s
}

func (s *Session) canonical() *game.GameState {
	return s.catalog.NewState(s.now(), s.rand)
}

// Load restores the saved game, or starts a new one when there is none.
// A save that cannot be decoded is logged and replaced by a new game. A
// store that cannot be read also starts a new game, but Save will not write
// until the stored game has been read; Load only fails if ctx is done.
func (s *Session) Load(ctx context.Context) (game.Loaded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.canonical()
	out := game.Loaded{State: fresh, FromVersion: game.CurrentSchemaVersion}
	if s.store != nil {
		raw, found, err := s.store.Retrieve(ctx)
		if err != nil && ctx.Err() != nil {
			return game.Loaded{}, ctx.Err()
		}
		s.unread.Store(err != nil)
		switch {
		case err != nil:
			s.log.Error("retrieve save failed, starting new game, saving held", "err", err)
		case found:
			loaded, err := game.Reconcile(raw, fresh, s.now())
			if err != nil {
				s.log.Error("saved game unreadable, starting new game", "err", err)
				break
			}
			out = loaded
			s.log.Info("game loaded",
				"from_version", loaded.FromVersion,
				"offline_earnings", loaded.OfflineEarnings,
				"balance", loaded.State.Balance,
			)
		}
	}
	s.momentum = game.Momentum{}
	s.publishLocked(out.State)
	return out, nil
}

// State returns the current snapshot. Callers must not modify it.
func (s *Session) State() *game.GameState {
	return s.state.Load()
}

// Apply runs tx against the current snapshot and publishes the result. On
// error the current snapshot stays in place and is returned.
func (s *Session) Apply(tx game.Tx) (*game.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tx)
}

func (s *Session) applyLocked(tx game.Tx) (*game.GameState, error) {
	next, err := game.Apply(s.state.Load(), tx)
	s.obs.Applied(tx.Kind, err)
	if err != nil {
		return next, err
	}
	s.publishLocked(next)
	return next, nil
}

func (s *Session) publishLocked(next *game.GameState) {
	s.state.Store(next)
	s.obs.Published(next)
	for _, ch := range s.subs {
		// Keep only the newest snapshot for slow subscribers.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// Tap credits one manual tap at the current momentum and returns the payout.
func (s *Session) Tap() (float64, *game.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	payout, momentum := s.momentum.Tap(s.now(), cur.ClickIncome)
	next, err := s.applyLocked(game.Credit(payout))
	if err != nil {
		return 0, next, err
	}
	s.momentum = momentum
	return payout, next, nil
}

// Momentum reports the tap meter as of now.
func (s *Session) Momentum() game.Momentum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.momentum.At(s.now())
}

func (s *Session) IncomeTick() error {
	_, err := s.Apply(game.IncomeTick())
	return err
}

func (s *Session) MarketTick() error {
	// rand is only touched under mu.
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.applyLocked(game.MarketTick(s.rand))
	return err
}

// Save stamps the save time and persists the stamped snapshot. The store
// call runs outside the session lock so gameplay does not wait on I/O;
// concurrent saves are written in stamp order and a stale one is dropped.
func (s *Session) Save(ctx context.Context) error {
	snap, err := s.Apply(game.StampSave(s.now().UnixMilli()))
	if err != nil {
		return err
	}
	return s.persist(ctx, snap)
}

// Autosave is Save for the scheduler: failures are logged and counted only.
func (s *Session) Autosave(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		s.log.Warn("autosave failed", "err", err)
	}
}

func (s *Session) persist(ctx context.Context, snap *game.GameState) error {
	if s.store == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if snap.LastSaveTime < s.lastPersisted {
		s.log.Debug("newer save already written, skipping",
			"stamp", snap.LastSaveTime, "written", s.lastPersisted)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	if s.unread.Load() {
		recovered, err := s.recoverStored(ctx)
		if err != nil {
			s.obs.Persisted(err, 0)
			s.log.Error("save held, store still unreadable", "err", err)
			return err
		}
		if recovered {
			return nil
		}
	}

	raw, err := game.Encode(snap)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.store.Persist(ctx, raw)
	s.obs.Persisted(err, time.Since(start))
	if err != nil {
		s.log.Error("persist failed", "err", err, "bytes", len(raw))
		return fmt.Errorf("persist: %w", err)
	}
	s.lastPersisted = snap.LastSaveTime
	return nil
}

// recoverStored retries the read Load could not do. When a save turns up it
// replaces the game started in its place and reports true; nothing is
// written in that case.
func (s *Session) recoverStored(ctx context.Context) (bool, error) {
	raw, found, err := s.store.Retrieve(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSaveUnread, err)
	}
	s.unread.Store(false)
	if !found {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded, err := game.Reconcile(raw, s.canonical(), s.now())
	if err != nil {
		s.log.Error("saved game unreadable, keeping current game", "err", err)
		return false, nil
	}
	s.momentum = game.Momentum{}
	s.publishLocked(loaded.State)
	s.log.Warn("stored save recovered, replacing the game started without it",
		"balance", loaded.State.Balance,
		"offline_earnings", loaded.OfflineEarnings,
	)
	return true, nil
}

// Import replaces the game with an exported save. An invalid code leaves
// the current snapshot untouched.
func (s *Session) Import(code string) (*game.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := game.Import(code, s.canonical(), s.now())
	s.obs.Applied("import", err)
	if err != nil {
		s.log.Warn("import rejected", "err", err)
		return s.state.Load(), err
	}
	s.publishLocked(next)
	// An explicit import is the player's choice of game; it may be saved
	// over whatever the store holds.
	s.unread.Store(false)
	s.log.Info("save imported", "balance", next.Balance)
	return next, nil
}

func (s *Session) Export() (string, error) {
	return game.Export(s.State())
}

// Subscribe returns a channel that always holds the most recent snapshot
// the subscriber has not read yet, and a func to stop the subscription.
func (s *Session) Subscribe() (<-chan *game.GameState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan *game.GameState, 1)
	ch <- s.state.Load()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
