// Package session keeps one viewer controller per browser session and
// expires idle sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

// DefaultTTL is the idle time after which a session is dropped.
const DefaultTTL = 30 * time.Minute

// Config configures a Store.
type Config struct {
	TTL         time.Duration
	Capacity    uint64
	Controller  func() *viewer.Controller
	IDGenerator func() string
	Logger      export.Logger
}

// Store maps session ids to controllers. Every lookup extends the session.
// Evicted controllers are closed so their in-flight fetches stop.
type Store struct {
	cache       *ttlcache.Cache[string, *viewer.Controller]
	controller  func() *viewer.Controller
	idGenerator func() string
	logger      export.Logger

	mu      sync.Mutex
	started bool
}

// NewStore creates a store. Call Start to run expiry in the background.
func NewStore(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := []ttlcache.Option[string, *viewer.Controller]{
		ttlcache.WithTTL[string, *viewer.Controller](ttl),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *viewer.Controller](cfg.Capacity))
	}

	s := &Store{
		cache:       ttlcache.New[string, *viewer.Controller](opts...),
		controller:  cfg.Controller,
		idGenerator: cfg.IDGenerator,
		logger:      cfg.Logger,
	}
	if s.controller == nil {
		s.controller = func() *viewer.Controller { return viewer.NewController(viewer.Config{}) }
	}
	if s.idGenerator == nil {
		s.idGenerator = uuid.NewString
	}
	if s.logger == nil {
		s.logger = export.NopLogger{}
	}

	s.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *viewer.Controller]) {
		_ = ctx
		s.logger.Debugf("session %s closed: %s", item.Key(), evictionReason(reason))
		item.Value().Close()
	})
	return s
}

// Start runs the expiry loop until Close.
func (s *Store) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.cache.Start()
}

// Lookup returns the controller for id.
func (s *Store) Lookup(id string) (*viewer.Controller, bool) {
	if id == "" {
		return nil, false
	}
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Create opens a new session with a fresh controller.
func (s *Store) Create() (string, *viewer.Controller, error) {
	id := s.idGenerator()
	if id == "" {
		return "", nil, export.NewError(export.KindInternal, "session id generator returned an empty id", nil)
	}
	ctrl := s.controller()
	if ctrl == nil {
		return "", nil, export.NewError(export.KindInternal, "session controller factory returned nil", nil)
	}
	s.cache.Set(id, ctrl, ttlcache.DefaultTTL)
	s.logger.Debugf("session %s opened", id)
	return id, ctrl, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Expire drops sessions whose TTL has passed.
func (s *Store) Expire() {
	s.cache.DeleteExpired()
}

// Close stops the expiry loop and closes every session.
func (s *Store) Close() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		s.cache.Stop()
	}
	s.cache.DeleteAll()
}

func evictionReason(reason ttlcache.EvictionReason) string {
	switch reason {
	case ttlcache.EvictionReasonExpired:
		return "expired"
	case ttlcache.EvictionReasonCapacityReached:
		return "capacity reached"
	case ttlcache.EvictionReasonDeleted:
		return "deleted"
	default:
		return "evicted"
	}
}
