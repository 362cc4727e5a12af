package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/odvcencio/songlist/internal/models"
)

func BenchmarkSQLiteReplaceSonglistItems(b *testing.B) {
	ctx, db, listID, songIDs := setupSQLiteBenchmarkDB(b, 40)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Rotate the order so each replace writes a different sequence.
		k := i % len(songIDs)
		order := append(append([]int64(nil), songIDs[k:]...), songIDs[:k]...)
		if err := db.ReplaceSonglistItems(ctx, listID, order); err != nil {
			b.Fatalf("replace songlist items: %v", err)
		}
	}
}

func BenchmarkSQLiteListSonglistSongs(b *testing.B) {
	ctx, db, listID, songIDs := setupSQLiteBenchmarkDB(b, 40)
	if err := db.ReplaceSonglistItems(ctx, listID, songIDs); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.ListSonglistSongs(ctx, listID, nil); err != nil {
			b.Fatalf("list songlist songs: %v", err)
		}
	}
}

func setupSQLiteBenchmarkDB(b *testing.B, songs int) (context.Context, *SQLiteDB, int64, []int64) {
	b.Helper()

	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("open sqlite: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		b.Fatalf("migrate: %v", err)
	}

	u := &models.User{Name: "bench", Provider: "github", ProviderID: "bench"}
	if err := db.UpsertUser(ctx, u); err != nil {
		b.Fatalf("upsert user: %v", err)
	}
	sl := &models.Songlist{Name: "bench", Type: models.SonglistTypeGig, CreatedBy: &u.ID}
	if err := db.CreateSonglist(ctx, sl); err != nil {
		b.Fatalf("create songlist: %v", err)
	}
	ids := make([]int64, 0, songs)
	for i := 0; i < songs; i++ {
		s := &models.Song{Title: fmt.Sprintf("song-%d", i), Artist: "bench"}
		if err := db.CreateSong(ctx, s); err != nil {
			b.Fatalf("create song: %v", err)
		}
		ids = append(ids, s.ID)
	}
	return ctx, db, sl.ID, ids
}
