package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PabloGalante/chat-relay/internal/domain"
	"github.com/PabloGalante/chat-relay/internal/observability"
)

const (
	// DefaultSweepInterval is the default interval at which inactive conversations are removed.
	DefaultSweepInterval = 10 * time.Minute
)

// Sweeper periodically removes conversations inactive for longer than ttl.
type Sweeper struct {
	store    domain.SessionStore
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewSweeper(store domain.SessionStore, ttl, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		log:      observability.WithFields(slog.String("component", "conversation.sweeper")),
	}
}

// Start begins the periodic sweep. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx, s.done)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		close(done)
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes every conversation idle for longer than ttl.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	start := time.Now()
	removed, err := s.store.Sweep(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.log.Error("sweep failed", "error", err)
		return removed
	}

	if removed > 0 {
		s.log.Info("removed inactive conversations",
			slog.Int("removed", removed),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return removed
}
