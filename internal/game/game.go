// Package game wires the participant registry, gift ledger and turn
// machine over a single retrying store, and adds the operations that span
// all of them: nuclear reset, snapshot and health.
package game

import (
	"context"
	"time"

	"github.com/Iron-Ham/giftswap/internal/config"
	"github.com/Iron-Ham/giftswap/internal/ledger"
	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/random"
	"github.com/Iron-Ham/giftswap/internal/registry"
	"github.com/Iron-Ham/giftswap/internal/retry"
	"github.com/Iron-Ham/giftswap/internal/store"
	"github.com/Iron-Ham/giftswap/internal/turn"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// Service is the entry point used by the CLI and any transport layer.
type Service struct {
	Participants *registry.Registry
	Gifts        *ledger.Ledger
	Turns        *turn.Machine

	store   store.Store
	backend store.Store
	closeFn func() error
	now     func() time.Time
	logger  *logging.Logger
}

// Option configures a Service.
type Option func(*settings)

type settings struct {
	now    func() time.Time
	rng    *random.Source
	logger *logging.Logger
	policy retry.Policy
	stats  *retry.Stats
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithRandom sets the source for slot assignment and gift ids.
func WithRandom(r *random.Source) Option {
	return func(s *settings) {
		s.rng = r
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithRetryPolicy sets the retry budget applied to every store operation.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithRetryStats collects retry counters into stats.
func WithRetryStats(stats *retry.Stats) Option {
	return func(s *settings) {
		s.stats = stats
	}
}

// New builds a Service over backend. Every operation goes through a
// retry.Executor wrapped around backend.
func New(backend store.Store, opts ...Option) (*Service, error) {
	cfg := settings{
		now:    time.Now,
		logger: logging.NopLogger(),
		policy: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		rng, err := random.New()
		if err != nil {
			return nil, err
		}
		cfg.rng = rng
	}

	retryOpts := []retry.Option{retry.WithLogger(cfg.logger.WithBackend(backend.Name()))}
	if cfg.stats != nil {
		retryOpts = append(retryOpts, retry.WithStats(cfg.stats))
	}
	s := store.NewRetrying(backend, retry.New(cfg.policy, retryOpts...))

	return &Service{
		Participants: registry.New(s, cfg.rng,
			registry.WithClock(cfg.now),
			registry.WithLogger(cfg.logger.With("component", "registry"))),
		Gifts: ledger.New(s, cfg.rng, cfg.logger.With("component", "ledger")),
		Turns: turn.New(s, cfg.logger.With("component", "turn")),

		store:   s,
		backend: backend,
		closeFn: func() error { return nil },
		now:     cfg.now,
		logger:  cfg.logger,
	}, nil
}

// Open builds the backend selected by cfg and returns a Service over it.
// Close releases the backend.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	backend, closeFn, err := store.Open(ctx, cfg.Store, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithLogger(logger),
		WithRetryPolicy(retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			RetryAfter: cfg.Retry.RetryAfter,
		}),
	}
	if cfg.Game.Seed != 0 {
		opts = append(opts, WithRandom(random.NewSeeded(cfg.Game.Seed)))
	}

	svc, err := New(backend, opts...)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	svc.closeFn = closeFn
	return svc, nil
}

// Close releases backend resources.
func (s *Service) Close() error {
	return s.closeFn()
}

// Store returns the retrying store every component shares.
func (s *Service) Store() store.Store {
	return s.store
}

// Backend returns the undecorated backend.
func (s *Service) Backend() store.Store {
	return s.backend
}

// RetryStats returns the counters of the shared retry executor.
func (s *Service) RetryStats() []retry.OpStats {
	if r, ok := s.store.(*store.Retrying); ok {
		return r.Executor().Stats().All()
	}
	return nil
}

// ResetSummary reports what a nuclear reset deleted.
type ResetSummary struct {
	ParticipantsDeleted int `json:"participants" yaml:"participants"`
	GiftsDeleted        int `json:"gifts" yaml:"gifts"`
}

// Reset deletes every participant, gift and turn and writes an empty
// aggregate. It cannot be undone.
func (s *Service) Reset(ctx context.Context) (ResetSummary, error) {
	sum, err := store.Transact(ctx, s.store, func(st *world.State) (ResetSummary, error) {
		sum := ResetSummary{
			ParticipantsDeleted: len(st.Participants),
			GiftsDeleted:        len(st.Gifts),
		}
		*st = *world.New(s.now())
		return sum, nil
	})
	if err != nil {
		return ResetSummary{}, err
	}
	s.logger.Warn("all game data deleted",
		"participants", sum.ParticipantsDeleted,
		"gifts", sum.GiftsDeleted)
	return sum, nil
}

// Snapshot returns the whole aggregate.
func (s *Service) Snapshot(ctx context.Context) (*world.State, error) {
	return s.store.ReadAll(ctx)
}

// Health describes the backend and the size of the stored game.
type Health struct {
	Backend      string      `json:"backend" yaml:"backend"`
	Consistent   bool        `json:"consistent" yaml:"consistent"`
	Stored       bool        `json:"stored" yaml:"stored"`
	Participants int         `json:"participants" yaml:"participants"`
	Gifts        int         `json:"gifts" yaml:"gifts"`
	Phase        world.Phase `json:"game_phase" yaml:"game_phase"`
	LastUpdated  string      `json:"last_updated" yaml:"last_updated"`
}

// consistencyReporter is implemented by backends whose transactions may
// lose concurrent updates.
type consistencyReporter interface {
	Consistent() bool
}

// existenceReporter is implemented by backends that can tell a missing
// document from an empty one.
type existenceReporter interface {
	Exists(ctx context.Context) (bool, error)
}

// Health reads the aggregate through the retry layer. Stored is false
// until the first write creates the document.
func (s *Service) Health(ctx context.Context) (Health, error) {
	stored := true
	if e, ok := s.backend.(existenceReporter); ok {
		var err error
		if stored, err = e.Exists(ctx); err != nil {
			return Health{}, err
		}
	}
	st, err := s.store.ReadAll(ctx)
	if err != nil {
		return Health{}, err
	}
	consistent := true
	if c, ok := s.backend.(consistencyReporter); ok {
		consistent = c.Consistent()
	}
	return Health{
		Backend:      s.backend.Name(),
		Consistent:   consistent,
		Stored:       stored,
		Participants: len(st.Participants),
		Gifts:        len(st.Gifts),
		Phase:        st.Game.Phase,
		LastUpdated:  st.Meta.LastUpdated.String(),
	}, nil
}
