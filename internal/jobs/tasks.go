package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/odvcencio/songlist/internal/service"
)

type sessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type backupRunner interface {
	Run(ctx context.Context) (*service.BackupResult, error)
}

// SessionSweepTask deletes expired sessions every interval.
func SessionSweepTask(s sessionSweeper, interval time.Duration) Task {
	return Task{
		Name:       "session-sweep",
		Interval:   interval,
		RunAtStart: true,
		Run: func(ctx context.Context) error {
			n, err := s.SweepExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Info("swept expired sessions", "count", n)
			}
			return nil
		},
	}
}

// BackupTask writes a backup archive every interval. The first run waits one
// interval so restarts do not pile up archives.
func BackupTask(b backupRunner, interval time.Duration) Task {
	return Task{
		Name:     "backup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			res, err := b.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info("scheduled backup stored", "key", res.Key, "bytes", res.Bytes)
			return nil
		},
	}
}
