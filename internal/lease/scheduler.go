package lease

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/logging"
)

// DefaultMaxJobDuration is how long a job may hold the slot before the lease
// is presumed abandoned. Transcription plus editing of a long episode can
// legitimately take many minutes; anything past this is treated as a dead
// worker.
const DefaultMaxJobDuration = 30 * time.Minute

// StatusSource reports the cross-process view of the currently running job.
// The file-backed implementation in internal/status is shared across all
// workers, making it the authoritative view when it disagrees with local
// state.
type StatusSource interface {
	CurrentJob(ctx context.Context) (JobKey, bool, error)
}

// Scheduler guards the single processing slot. The slot itself is a
// one-element channel; lease bookkeeping (holder identity, ticket, acquire
// time) lives behind the mutex. The invariant is that the slot token is held
// exactly when a ticket is outstanding.
type Scheduler struct {
	source         StatusSource
	logger         *slog.Logger
	maxJobDuration time.Duration
	now            func() time.Time

	slot chan struct{}

	mu         sync.Mutex
	holder     JobKey
	ticketID   string
	acquiredAt time.Time
}

// Option customizes scheduler construction.
type Option func(*Scheduler)

// WithMaxJobDuration overrides the staleness window.
func WithMaxJobDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.maxJobDuration = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler constructs a scheduler. source may be nil, in which case no
// cross-process reconciliation is performed.
func NewScheduler(source StatusSource, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:         source,
		logger:         logging.NewComponentLogger(logger, "scheduler"),
		maxJobDuration: DefaultMaxJobDuration,
		now:            time.Now,
		slot:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire attempts to take the processing slot for key. A zero timeout is
// non-blocking and returns ErrBusy when the slot is held; a positive timeout
// blocks up to that long and returns ErrAcquireTimeout on expiry. Stale-lease
// recovery and status-source reconciliation run before the attempt so a dead
// worker cannot wedge the slot permanently.
func (s *Scheduler) Acquire(ctx context.Context, key JobKey, timeout time.Duration) (Ticket, error) {
	s.recoverStale()
	s.reconcile(ctx)

	if timeout <= 0 {
		select {
		case s.slot <- struct{}{}:
		default:
			return Ticket{}, ErrBusy
		}
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case s.slot <- struct{}{}:
		case <-timer.C:
			return Ticket{}, ErrAcquireTimeout
		case <-ctx.Done():
			return Ticket{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.holder = key
	s.ticketID = uuid.NewString()
	s.acquiredAt = s.now()
	return Ticket{id: s.ticketID, key: key}, nil
}

// Release clears the lease identified by ticket. Presenting a ticket that no
// longer matches the current lease (because the lease was force-cleared and
// possibly re-acquired) is a no-op, so a job that finishes after being
// preempted cannot release a newer holder's slot. Double release is likewise
// a no-op.
func (s *Scheduler) Release(ticket Ticket) {
	if !ticket.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.id != s.ticketID {
		return
	}
	s.clearLocked()
}

// CurrentHolder returns the holder of the slot after running stale-lease
// recovery.
func (s *Scheduler) CurrentHolder() (JobKey, bool) {
	s.recoverStale()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder, !s.holder.IsZero()
}

// Holding reports whether the given key currently holds the slot.
func (s *Scheduler) Holding(key JobKey) bool {
	holder, ok := s.CurrentHolder()
	return ok && holder == key
}

// Busy reports whether any job holds the slot, after stale-lease recovery and
// status-source reconciliation.
func (s *Scheduler) Busy(ctx context.Context) bool {
	s.recoverStale()
	s.reconcile(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.holder.IsZero()
}

// Snapshot returns the current lease state without triggering recovery.
func (s *Scheduler) Snapshot() Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Lease{Holder: s.holder, AcquiredAt: s.acquiredAt}
}

// recoverStale force-clears a lease held longer than the maximum job
// duration. The holding goroutine may be hung or gone; its eventual Release
// will present a ticket that no longer matches and be ignored.
func (s *Scheduler) recoverStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder.IsZero() || s.acquiredAt.IsZero() {
		return
	}
	elapsed := s.now().Sub(s.acquiredAt)
	if elapsed <= s.maxJobDuration {
		return
	}
	s.logger.Warn("force-clearing stale processing lease",
		logging.String("job", s.holder.String()),
		logging.Duration("held", elapsed),
		logging.Duration("max", s.maxJobDuration))
	s.clearLocked()
}

// reconcile trusts the cross-process status source over local belief: when it
// reports no active job but the local lease claims one, the local state is
// from a worker that died without cleaning up, so clear it. Source errors are
// ignored; reconciliation is best effort.
func (s *Scheduler) reconcile(ctx context.Context) {
	if s.source == nil {
		return
	}
	_, active, err := s.source.CurrentJob(ctx)
	if err != nil || active {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder.IsZero() {
		return
	}
	s.logger.Warn("status source reports idle, clearing local lease",
		logging.String("job", s.holder.String()))
	s.clearLocked()
}

// clearLocked resets lease fields and drains the slot token. The drain is
// non-blocking: if the token was already returned there is nothing to do.
// Callers must hold s.mu.
func (s *Scheduler) clearLocked() {
	s.holder = JobKey{}
	s.ticketID = ""
	s.acquiredAt = time.Time{}
	select {
	case <-s.slot:
	default:
	}
}
