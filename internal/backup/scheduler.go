package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Destination is a backup target (file, S3, git).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	Write(ctx context.Context, snap *Snapshot) error
}

// Scheduler snapshots the board on an interval. A destination is written
// only when the board differs from the last snapshot it accepted.
type Scheduler struct {
	store        NoteLister
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu sync.Mutex
	// accepted maps a destination index to the digest it last stored.
	accepted map[int]uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler exporting s to destinations every
// interval.
func NewScheduler(s NoteLister, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		accepted:     make(map[int]uint64),
	}
}

// Start runs one snapshot immediately, then one per interval.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current snapshot (if any)
// to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce snapshots the board and writes it to every destination that does
// not already hold the same notes. A failed destination is retried on the
// next run; it does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	snap, err := TakeSnapshot(ctx, s.store)
	if err != nil {
		s.logger.Error("backup export failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var wrote, current int
	for i, dest := range s.destinations {
		if d, ok := s.accepted[i]; ok && d == snap.Digest {
			current++
			continue
		}
		if err := dest.Write(ctx, snap); err != nil {
			s.logger.Error("backup destination write failed", "destination", dest.Name(), "err", err)
			continue
		}
		s.accepted[i] = snap.Digest
		wrote++
	}

	if wrote == 0 {
		if current == len(s.destinations) {
			s.logger.Debug("backup skipped, board unchanged", "notes", snap.Notes, "digest", snap.DigestHex())
		}
		return
	}
	s.logger.Info("backup completed",
		"destinations", wrote, "notes", snap.Notes, "digest", snap.DigestHex(), "bytes", len(snap.Data))
}
