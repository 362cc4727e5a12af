package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/storage"
)

const (
	backupPrefix     = "backups/"
	backupTimeLayout = "20060102T150405.000000000Z"
)

// BackupResult reports one stored archive.
type BackupResult struct {
	Status   string `json:"status"`
	Key      string `json:"key"`
	Bytes    int64  `json:"bytes"`     // compressed size as stored
	RawBytes int64  `json:"raw_bytes"` // snapshot size before compression
}

// BackupService snapshots the store, compresses it with zstd and writes it to
// a storage backend.
type BackupService struct {
	db   database.DB
	dest storage.Backend
	keep int
	now  func() time.Time
}

// NewBackupService returns a service writing to dest. keep > 0 prunes all but
// the newest keep archives after each successful run.
func NewBackupService(db database.DB, dest storage.Backend, keep int) *BackupService {
	return &BackupService{db: db, dest: dest, keep: keep, now: time.Now}
}

// backupKey names an archive by its UTC time to the nanosecond plus a random
// suffix, so runs in the same instant never share a key. Keys sort by time.
func backupKey(t time.Time) (string, error) {
	suffix, err := newToken()
	if err != nil {
		return "", err
	}
	return backupPrefix + "songlist-" + t.UTC().Format(backupTimeLayout) + "-" + suffix[:8] + ".db.zst", nil
}

func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	src, ok := s.db.(database.Backuper)
	if !ok {
		return nil, newError(ErrUnsupported, "backups are only supported for the sqlite driver; use pg_dump for postgres")
	}
	if s.dest == nil {
		return nil, newError(ErrUnsupported, "no backup destination configured")
	}

	key, err := backupKey(s.now())
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	type snapshot struct {
		n   int64
		err error
	}
	done := make(chan snapshot, 1)
	go func() {
		enc, err := zstd.NewWriter(pw, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			pw.CloseWithError(err)
			done <- snapshot{err: err}
			return
		}
		n, err := src.Backup(ctx, enc)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		done <- snapshot{n: n, err: err}
	}()

	stored, err := s.dest.Put(ctx, key, pr)
	pr.CloseWithError(err)
	snap := <-done
	if err != nil {
		return nil, fmt.Errorf("store backup %s: %w", key, err)
	}
	if snap.err != nil {
		return nil, fmt.Errorf("snapshot database: %w", snap.err)
	}

	if s.keep > 0 {
		if err := s.prune(ctx); err != nil {
			slog.Warn("prune backups", "error", err)
		}
	}
	return &BackupResult{Status: "ok", Key: key, Bytes: stored, RawBytes: snap.n}, nil
}

// List returns stored archive keys, oldest first.
func (s *BackupService) List(ctx context.Context) ([]string, error) {
	if s.dest == nil {
		return nil, newError(ErrUnsupported, "no backup destination configured")
	}
	keys, err := s.dest.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasSuffix(k, ".db.zst") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *BackupService) prune(ctx context.Context) error {
	keys, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(keys) <= s.keep {
		return nil
	}
	for _, k := range keys[:len(keys)-s.keep] {
		if err := s.dest.Delete(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
		slog.Info("pruned backup", "key", k)
	}
	return nil
}
