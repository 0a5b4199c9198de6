package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultInterval = 30 * time.Minute

var (
	ErrAlreadyRunning = errors.New("expiration sweep is already running")
	ErrLocked         = errors.New("expiration sweep is running on another instance")
)

// Sweeper is the work done by one sweep run.
type Sweeper interface {
	ExpireReservations(ctx context.Context) (int, error)
	MarkOverdueLoans(ctx context.Context) (int, error)
}

type Expiration struct {
	log      *zap.Logger
	sweeper  Sweeper
	locker   repository.Locker
	lockKey  int64
	interval time.Duration
	running  atomic.Bool
}

type Option func(e *Expiration)

// WithLocker makes runs mutually exclusive across processes sharing the locker.
func WithLocker(l repository.Locker, key int64) Option {
	return func(e *Expiration) {
		e.locker = l
		e.lockKey = key
	}
}

func WithInterval(d time.Duration) Option {
	return func(e *Expiration) {
		if d > 0 {
			e.interval = d
		}
	}
}

func NewExpiration(sweeper Sweeper, log *zap.Logger, opts ...Option) *Expiration {
	e := &Expiration{
		log:      log.Named("job"),
		sweeper:  sweeper,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start runs a sweep every interval until ctx is done.
func (e *Expiration) Start(ctx context.Context) error {
	e.log.Info("expiration job started", zap.Duration("interval", e.interval))
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("expiration job stopped")
			return nil
		case <-ticker.C:
			n, err := e.Run(ctx)
			switch {
			case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrLocked):
				e.log.Debug("sweep skipped", zap.Error(err))
			case err != nil:
				e.log.Error("sweep", zap.Error(err))
			default:
				e.log.Info("sweep finished", zap.Int("expired", n))
			}
		}
	}
}

// Run performs one sweep and returns the number of reservations expired.
// Overlapping runs fail fast with ErrAlreadyRunning or ErrLocked.
func (e *Expiration) Run(ctx context.Context) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	if e.locker != nil {
		unlock, ok, err := e.locker.TryLock(ctx, e.lockKey)
		if err != nil {
			return 0, errors.Wrap(err, "sweep lock")
		}
		if !ok {
			return 0, ErrLocked
		}
		defer unlock()
	}

	expired, err := e.sweeper.ExpireReservations(ctx)
	if err != nil {
		return expired, errors.Wrap(err, "expire reservations")
	}
	overdue, err := e.sweeper.MarkOverdueLoans(ctx)
	if err != nil {
		return expired, errors.Wrap(err, "mark overdue loans")
	}
	e.log.Debug("sweep", zap.Int("expired", expired), zap.Int("overdue", overdue))
	return expired, nil
}
