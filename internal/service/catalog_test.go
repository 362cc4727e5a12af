package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateSongValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   SongInput
	}{
		{name: "missing title", in: SongInput{Artist: "A"}},
		{name: "blank artist", in: SongInput{Title: "T", Artist: "  "}},
		{name: "negative duration", in: SongInput{Title: "T", Artist: "A", Duration: intPtr(-1)}},
		{name: "bad url", in: SongInput{Title: "T", Artist: "A", YoutubeURL: strPtr("javascript:alert(1)")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.CreateSong(f.ctx, tt.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateSongIsFullReplace(t *testing.T) {
	f := newFixture(t)
	song := f.song(t, "Song A", strPtr("slow"), intPtr(180))

	updated, err := f.catalog.UpdateSong(f.ctx, song.ID, SongInput{
		Title:     "Song A (live)",
		Artist:    "Test Artist",
		LyricsURL: strPtr("https://lyrics.example.com/a"),
	})
	require.NoError(t, err)
	require.Equal(t, "Song A (live)", updated.Title)
	require.Nil(t, updated.Notes)
	require.Nil(t, updated.Duration)
	require.Equal(t, "https://lyrics.example.com/a", *updated.LyricsURL)

	_, err = f.catalog.UpdateSong(f.ctx, song.ID+999, SongInput{Title: "x", Artist: "y"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSongTagsIdempotent(t *testing.T) {
	f := newFixture(t)
	song := f.song(t, "Song A", nil, nil)
	tags, err := f.catalog.ListTags(f.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tags)
	tagID := tags[0].ID

	got, err := f.catalog.AddSongTag(f.ctx, song.ID, tagID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	got, err = f.catalog.AddSongTag(f.ctx, song.ID, tagID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = f.catalog.AddSongTag(f.ctx, song.ID, tagID+999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.catalog.AddSongTag(f.ctx, song.ID+999, tagID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err = f.catalog.RemoveSongTag(f.ctx, song.ID, tagID)
	require.NoError(t, err)
	require.Empty(t, got)

	fetched, err := f.catalog.GetSong(f.ctx, song.ID)
	require.NoError(t, err)
	require.Empty(t, fetched.Tags)
}

func TestCreateTag(t *testing.T) {
	f := newFixture(t)

	tag, err := f.catalog.CreateTag(f.ctx, "encore", "")
	require.NoError(t, err)
	require.Equal(t, defaultTagColor, tag.Color)

	_, err = f.catalog.CreateTag(f.ctx, "encore", "#112233")
	require.ErrorIs(t, err, ErrConflict)
	_, err = f.catalog.CreateTag(f.ctx, "ballad", "#112233")
	require.ErrorIs(t, err, ErrConflict, "seed tags exist after migration")
	_, err = f.catalog.CreateTag(f.ctx, "", "#112233")
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.catalog.CreateTag(f.ctx, "loud", "red")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteSongMissing(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.catalog.DeleteSong(f.ctx, 12345), ErrNotFound)
}
