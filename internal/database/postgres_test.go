package database

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/odvcencio/songlist/internal/models"
)

// openTestPostgres connects to SONGLIST_TEST_POSTGRES_DSN and resets the schema.
func openTestPostgres(t *testing.T) (context.Context, *PostgresDB) {
	t.Helper()
	dsn := os.Getenv("SONGLIST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SONGLIST_TEST_POSTGRES_DSN not set")
	}
	db, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := db.db.ExecContext(ctx, `DROP TABLE IF EXISTS band_invites, songlist_items, songlists,
		band_song_tags, band_songs, song_tags, tags, songs, band_members, bands, sessions, users CASCADE`); err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return ctx, db
}

func TestPostgresConstraintMapping(t *testing.T) {
	ctx, db := openTestPostgres(t)
	u := createTestUser(t, ctx, db, "alice")
	band := &models.Band{Name: "B", CreatedBy: u.ID}
	if err := db.CreateBandWithOwner(ctx, band); err != nil {
		t.Fatal(err)
	}
	err := db.AddMembership(ctx, &models.Membership{BandID: band.ID, UserID: u.ID, Role: models.RoleMember})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := db.CreateTag(ctx, &models.Tag{Name: "ballad", Color: "#000"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for seeded tag, got %v", err)
	}

	sl := &models.Songlist{Name: "Set", Type: models.SonglistTypeGig, CreatedBy: &u.ID}
	if err := db.CreateSonglist(ctx, sl); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSonglistItems(ctx, sl.ID, []int64{424242}); !errors.Is(err, ErrReference) {
		t.Fatalf("expected ErrReference, got %v", err)
	}
}

func TestPostgresSonglistMergeAndOrder(t *testing.T) {
	ctx, db := openTestPostgres(t)
	u := createTestUser(t, ctx, db, "alice")
	band := &models.Band{Name: "B", CreatedBy: u.ID}
	if err := db.CreateBandWithOwner(ctx, band); err != nil {
		t.Fatal(err)
	}
	a := createTestSong(t, ctx, db, "A", strPtr("slow"), intPtr(100))
	b := createTestSong(t, ctx, db, "B", nil, nil)
	if err := db.CreateBandSong(ctx, &models.BandSong{BandID: band.ID, SongID: a.ID, Duration: intPtr(210)}); err != nil {
		t.Fatal(err)
	}

	sl := &models.Songlist{Name: "Gig", Type: models.SonglistTypeGig, BandID: &band.ID, CreatedBy: &u.ID}
	if err := db.CreateSonglist(ctx, sl); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSonglistItems(ctx, sl.ID, []int64{b.ID, a.ID}); err != nil {
		t.Fatal(err)
	}
	songs, err := db.ListSonglistSongs(ctx, sl.ID, &band.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 2 || songs[0].ID != b.ID || songs[1].ID != a.ID {
		t.Fatalf("unexpected order %+v", songs)
	}
	if songs[1].EffectiveDuration == nil || *songs[1].EffectiveDuration != 210 {
		t.Fatalf("expected override duration, got %v", songs[1].EffectiveDuration)
	}
	if songs[1].EffectiveNotes == nil || *songs[1].EffectiveNotes != "slow" {
		t.Fatalf("expected global notes, got %v", songs[1].EffectiveNotes)
	}

	tok, err := db.SetShareTokenIfAbsent(ctx, sl.ID, "first")
	if err != nil {
		t.Fatal(err)
	}
	again, err := db.SetShareTokenIfAbsent(ctx, sl.ID, "second")
	if err != nil {
		t.Fatal(err)
	}
	if tok != "first" || again != "first" {
		t.Fatalf("expected stable token, got %q then %q", tok, again)
	}

	if err := db.DeleteSong(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	songs, err = db.ListSonglistSongs(ctx, sl.ID, &band.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 1 || songs[0].Position != 0 {
		t.Fatalf("expected renumbered single item, got %+v", songs)
	}
}
