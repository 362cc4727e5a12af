package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLocalBackendPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}

	n, err := b.Put(ctx, "backups/a.db.zst", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 5 {
		t.Fatalf("Put wrote %d bytes, want 5", n)
	}

	rc, err := b.Open(ctx, "backups/a.db.zst")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q, want %q", data, "hello")
	}

	if err := b.Delete(ctx, "backups/a.db.zst"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, "backups/a.db.zst"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, err := b.Open(ctx, "backups/a.db.zst"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Open after delete error = %v, want ErrNotExist", err)
	}
}

func TestLocalBackendListSortedByPrefix(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b, err := NewLocalBackend(root)
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	for _, key := range []string{"backups/b", "backups/a", "other/c"} {
		if _, err := b.Put(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}
	// Leftover temp files from an interrupted upload are not listed.
	if err := os.WriteFile(filepath.Join(root, "backups", ".upload-123"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	keys, err := b.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"backups/a", "backups/b"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
}

func TestLocalBackendRejectsEscapingKeys(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	for _, key := range []string{"../x", "/etc/passwd", "", "a/../../b"} {
		if _, err := b.Put(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Fatalf("Put(%q) succeeded, want error", key)
		}
	}
}

func TestLocalBackendPutHonorsCancel(t *testing.T) {
	b, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Put(ctx, "k", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put error = %v, want context.Canceled", err)
	}
	if _, err := b.Open(context.Background(), "k"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("partial object left behind: %v", err)
	}
}
