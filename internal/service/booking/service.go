// Package booking coordinates trainer reservations. Every write re-evaluates
// availability inside a store transaction that holds the day lock, so two
// concurrent requests can never both claim the same trainer window.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"trainerslot/internal/availability"
	"trainerslot/internal/domain"
	"trainerslot/internal/lock"
	"trainerslot/internal/metrics"
	"trainerslot/internal/store"
)

var ErrNoAvailableTrainer = errors.New("no available trainer")

type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func invalidWindow(err error) error {
	return &ValidationError{msg: err.Error(), err: err}
}

type Config struct {
	LockTTL  time.Duration
	LockWait time.Duration
	LockPoll time.Duration

	RetryAttempts        uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockTTL:              10 * time.Second,
		LockWait:             2 * time.Second,
		LockPoll:             25 * time.Millisecond,
		RetryAttempts:        4,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     time.Second,
	}
}

type Service struct {
	reg     store.Registry
	locker  lock.Locker
	policy  availability.Policy
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewService wires the coordinator. locker may be nil when the registry's own
// day transaction is the only lock; policy defaults to FirstFree.
func NewService(reg store.Registry, locker lock.Locker, policy availability.Policy, cfg Config, logger *slog.Logger, m *metrics.Collector) *Service {
	if policy == nil {
		policy = availability.FirstFree{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	return &Service{
		reg:     reg,
		locker:  locker,
		policy:  policy,
		cfg:     cfg,
		logger:  logger.With("component", "booking"),
		metrics: m,
	}
}

func (s *Service) Policy() availability.Policy {
	return s.policy
}

// FreeTrainers is advisory: it takes no lock and may be stale by the time the
// caller acts on it.
func (s *Service) FreeTrainers(ctx context.Context, w domain.TimeWindow) ([]domain.Trainer, error) {
	if err := w.Validate(); err != nil {
		return nil, invalidWindow(err)
	}
	w = domain.NewTimeWindow(w.Date, w.Start, w.End)

	trainers, ix, err := snapshot(ctx, s.reg, w)
	if err != nil {
		return nil, err
	}
	return ix.FreeTrainers(trainers, w, uuid.Nil), nil
}

func (s *Service) ListMemberBookings(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.Booking, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, validationError("member_id is required")
	}
	if err := rng.Validate(); err != nil {
		return nil, invalidWindow(err)
	}
	return s.reg.ListMemberBookings(ctx, memberID, rng)
}

func (s *Service) ListGroupSessions(ctx context.Context, rng domain.DateRange) ([]domain.GroupSession, error) {
	if err := rng.Validate(); err != nil {
		return nil, invalidWindow(err)
	}
	return s.reg.ListGroupSessions(ctx, rng)
}

// ListMemberGroupSessions lists the group sessions the member has joined.
func (s *Service) ListMemberGroupSessions(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.GroupSession, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, validationError("member_id is required")
	}
	if err := rng.Validate(); err != nil {
		return nil, invalidWindow(err)
	}
	return s.reg.ListMemberGroupSessions(ctx, memberID, rng)
}

// ListSessionRoutines returns the routines attached to one of the member's
// personal sessions.
func (s *Service) ListSessionRoutines(ctx context.Context, memberID string, bookingID uuid.UUID) ([]int64, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, validationError("member_id is required")
	}
	if bookingID == uuid.Nil {
		return nil, validationError("booking_id is required")
	}
	return s.reg.ListSessionRoutines(ctx, memberID, bookingID)
}

type bookingSource interface {
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
	LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error)
}

func snapshot(ctx context.Context, src bookingSource, w domain.TimeWindow) ([]domain.Trainer, *availability.Index, error) {
	trainers, err := src.ListTrainers(ctx)
	if err != nil {
		return nil, nil, err
	}

	rng := domain.SingleDay(w.Date)
	snap := make(availability.Snapshot, len(trainers))
	for _, t := range trainers {
		rows, err := src.LoadTrainerBookings(ctx, t.ID, rng)
		if err != nil {
			return nil, nil, err
		}
		if len(rows) > 0 {
			snap[t.ID] = rows
		}
	}
	return trainers, availability.Build(snap), nil
}

// selectTrainer picks a trainer free during w. The booking exclude is ignored
// so a session can be moved within its own window.
func (s *Service) selectTrainer(ctx context.Context, tx store.SessionTx, w domain.TimeWindow, exclude uuid.UUID) (domain.Trainer, error) {
	trainers, ix, err := snapshot(ctx, tx, w)
	if err != nil {
		return domain.Trainer{}, err
	}
	t, ok := s.policy.Select(ix.FreeTrainers(trainers, w, exclude), ix, w)
	if !ok {
		return domain.Trainer{}, ErrNoAvailableTrainer
	}
	return t, nil
}

// runLocked runs fn under the day locks for days, retrying with backoff while
// the days are busy.
func (s *Service) runLocked(ctx context.Context, op string, days []time.Time, fn func(ctx context.Context, tx store.SessionTx) error) error {
	b := backoff.NewExponentialBackOff()
	if s.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = s.cfg.RetryInitialInterval
	}
	if s.cfg.RetryMaxInterval > 0 {
		b.MaxInterval = s.cfg.RetryMaxInterval
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			s.metrics.RecordBusyRetry(op)
		}
		err := s.attempt(ctx, days, fn)
		if err == nil || errors.Is(err, store.ErrBusy) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.cfg.RetryAttempts))
	return err
}

func (s *Service) attempt(ctx context.Context, days []time.Time, fn func(ctx context.Context, tx store.SessionTx) error) error {
	if s.locker != nil && len(days) > 0 {
		keys := make([]string, 0, len(days))
		for _, d := range days {
			keys = append(keys, store.DayLockKey(d))
		}

		started := time.Now()
		release, err := lock.Acquire(ctx, s.locker, keys, s.cfg.LockTTL, s.cfg.LockWait, s.cfg.LockPoll)
		s.metrics.RecordLockWait(time.Since(started))
		if err != nil {
			if errors.Is(err, lock.ErrTimeout) {
				return fmt.Errorf("%w: %v", store.ErrBusy, err)
			}
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release day lock", "keys", keys, "error", err)
			}
		}()
	}

	return s.reg.InDayTransaction(ctx, days, fn)
}

func (s *Service) finish(op string, started time.Time, err error, attrs ...any) {
	outcome := outcomeOf(err)
	s.metrics.RecordOp(op, outcome, time.Since(started))

	attrs = append(attrs, "op", op, "outcome", outcome)
	var vErr *ValidationError
	switch {
	case err == nil:
		s.logger.Debug("booking op done", attrs...)
	case errors.Is(err, ErrNoAvailableTrainer), errors.Is(err, store.ErrNotFound):
		s.logger.Info("booking op rejected", attrs...)
	case errors.As(err, &vErr), errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrIdempotencyConflict):
		s.logger.Warn("booking op rejected", append(attrs, "error", err)...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("booking op abandoned", append(attrs, "error", err)...)
	default:
		s.logger.Error("booking op failed", append(attrs, "error", err)...)
	}
}

func outcomeOf(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, ErrNoAvailableTrainer):
		return "no_trainer"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrBusy):
		return "busy"
	case errors.Is(err, store.ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
