package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nextstep/internal/store"
)

// Saver flushes store snapshots to durable storage in the background.
// Notifications coalesce latest-wins: each save serializes the newest
// full snapshot, so rapid consecutive mutations collapse into one
// write after the debounce window. Saves are fire-and-forget; failures
// are logged and durable state stays stale until the next save.
type Saver struct {
	adapter  Adapter
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending *store.State

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func NewSaver(adapter Adapter, log *zap.Logger, debounce time.Duration) *Saver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Saver{
		adapter:  adapter,
		log:      log,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the background save loop.
func (s *Saver) Start() {
	s.wg.Add(1)
	go s.run()
}

// Notify hands the saver a fresh snapshot. Never blocks the mutating
// caller; an older unpersisted snapshot is superseded.
func (s *Saver) Notify(st store.State) {
	s.mu.Lock()
	s.pending = &st
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
			if s.debounce > 0 {
				timer := time.NewTimer(s.debounce)
				select {
				case <-timer.C:
				case <-s.done:
					timer.Stop()
					return
				}
			}
			s.Flush(context.Background())
		}
	}
}

// Flush synchronously writes the pending snapshot, if any.
func (s *Saver) Flush(ctx context.Context) {
	s.mu.Lock()
	st := s.pending
	s.pending = nil
	s.mu.Unlock()
	if st == nil {
		return
	}
	if err := s.adapter.Save(ctx, *st); err != nil {
		s.log.Warn("save failed", zap.Error(err))
	}
}

// Close stops the loop and flushes whatever is still pending, so a
// short-lived process does not exit ahead of its last write.
func (s *Saver) Close() {
	close(s.done)
	s.wg.Wait()
	s.Flush(context.Background())
}
