package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

type fixture struct {
	ctx        context.Context
	db         *database.SQLiteDB
	bands      *BandService
	catalog    *CatalogService
	repertoire *RepertoireService
	songlists  *SonglistService
	invites    *InviteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "songlist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return newFixtureWith(ctx, db, db)
}

// newFixtureWith wires services over store, which may wrap db with hooks.
func newFixtureWith(ctx context.Context, db *database.SQLiteDB, store database.DB) *fixture {
	bands := NewBandService(store)
	return &fixture{
		ctx:        ctx,
		db:         db,
		bands:      bands,
		catalog:    NewCatalogService(store),
		repertoire: NewRepertoireService(store, bands),
		songlists:  NewSonglistService(store, bands),
		invites:    NewInviteService(store, bands),
	}
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()
	u := &models.User{Name: name, Provider: "test", ProviderID: fmt.Sprintf("test-%s", name)}
	require.NoError(t, f.db.UpsertUser(f.ctx, u))
	return u.ID
}

func (f *fixture) song(t *testing.T, title string, notes *string, duration *int) *models.Song {
	t.Helper()
	s, err := f.catalog.CreateSong(f.ctx, SongInput{Title: title, Artist: "Test Artist", Notes: notes, Duration: duration})
	require.NoError(t, err)
	return s
}

func (f *fixture) band(t *testing.T, name string, owner int64) int64 {
	t.Helper()
	b, err := f.bands.Create(f.ctx, name, owner)
	require.NoError(t, err)
	return b.ID
}

func (f *fixture) join(t *testing.T, bandID, userID int64) {
	t.Helper()
	inv, err := f.invites.Create(f.ctx, bandID, mustOwner(t, f, bandID))
	require.NoError(t, err)
	_, err = f.invites.Accept(f.ctx, inv.Token, userID)
	require.NoError(t, err)
}

func mustOwner(t *testing.T, f *fixture, bandID int64) int64 {
	t.Helper()
	b, err := f.db.GetBand(f.ctx, bandID)
	require.NoError(t, err)
	return b.CreatedBy
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func songIDs(songs []models.SonglistSong) []int64 {
	ids := make([]int64, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}
