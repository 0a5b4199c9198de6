package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type advisoryLocker struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

// NewAdvisoryLocker returns a Locker backed by postgres session advisory locks,
// so only one instance sharing the database holds a given key.
func NewAdvisoryLocker(db *pgxpool.Pool, log *zap.Logger) Locker {
	return &advisoryLocker{db: db, log: log.Named("locker")}
}

func (l *advisoryLocker) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "acquire conn")
	}
	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, errors.Wrap(err, "pg_try_advisory_lock")
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	unlock := func() {
		// session locks belong to the connection, unlock on the same one
		if _, err := conn.Exec(context.Background(), "select pg_advisory_unlock($1)", key); err != nil {
			l.log.Error("pg_advisory_unlock", zap.Int64("key", key), zap.Error(err))
		}
		conn.Release()
	}
	return unlock, true, nil
}
