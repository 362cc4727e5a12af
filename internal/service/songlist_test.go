package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/songlist/internal/models"
)

func TestSonglistCreateValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	tests := []struct {
		name string
		in   SonglistInput
	}{
		{name: "missing name", in: SonglistInput{Type: "gig"}},
		{name: "bad type", in: SonglistInput{Name: "x", Type: "party"}},
		{name: "bad date", in: SonglistInput{Name: "x", Type: "gig", Date: strPtr("12/05/2024")}},
		{name: "impossible date", in: SonglistInput{Name: "x", Type: "practice", Date: strPtr("2024-02-30")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.songlists.Create(f.ctx, tt.in, alice)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := f.songlists.Create(f.ctx, SonglistInput{Name: "x", Type: "gig", BandID: int64Ptr(999)}, alice)
	require.ErrorIs(t, err, ErrForbidden)
}

func int64Ptr(n int64) *int64 { return &n }

func TestSonglistReorderKeepsDensePositions(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.song(t, "A", nil, nil)
	b := f.song(t, "B", nil, nil)
	c := f.song(t, "C", nil, nil)
	d := f.song(t, "D", nil, nil)

	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Practice", Type: "practice"}, alice)
	require.NoError(t, err)
	require.Empty(t, sl.Songs)

	steps := [][]int64{
		{a.ID, b.ID, c.ID},
		{c.ID, a.ID, b.ID},
		{c.ID, a.ID},
		{c.ID, a.ID, d.ID},
	}
	for _, ids := range steps {
		_, err := f.songlists.ReplaceSongs(f.ctx, sl.ID, ids, alice)
		require.NoError(t, err)
	}

	got, err := f.songlists.Get(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Equal(t, []int64{c.ID, a.ID, d.ID}, songIDs(got.Songs))
	for i, s := range got.Songs {
		require.Equal(t, i, s.Position)
	}
	require.Equal(t, 3, got.SongCount)
}

func TestSonglistReplaceWithUnknownSongKeepsPreviousList(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.song(t, "A", nil, nil)
	b := f.song(t, "B", nil, nil)
	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig"}, alice)
	require.NoError(t, err)
	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{a.ID, b.ID}, alice)
	require.NoError(t, err)

	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{b.ID, 424242}, alice)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := f.songlists.Get(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID}, songIDs(got.Songs))
}

func TestSonglistReplaceKeepsDuplicatesAndAllowsEmpty(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.song(t, "A", nil, intPtr(60))
	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig"}, alice)
	require.NoError(t, err)

	got, err := f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{a.ID, a.ID}, alice)
	require.NoError(t, err)
	require.Len(t, got.Songs, 2)
	require.Equal(t, 120, got.TotalDuration)

	got, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, nil, alice)
	require.NoError(t, err)
	require.Empty(t, got.Songs)
	require.Zero(t, got.TotalDuration)
}

func TestSonglistAccessControl(t *testing.T) {
	f := newFixture(t)
	alice, mallory := f.user(t, "alice"), f.user(t, "mallory")
	bandID := f.band(t, "Rockers", alice)

	bound, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Bound", Type: "gig", BandID: &bandID}, alice)
	require.NoError(t, err)
	unbound, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Mine", Type: "practice"}, alice)
	require.NoError(t, err)

	for _, id := range []int64{bound.ID, unbound.ID} {
		_, err = f.songlists.Get(f.ctx, id, mallory)
		require.ErrorIs(t, err, ErrForbidden)
		_, err = f.songlists.Update(f.ctx, id, SonglistInput{Name: "x", Type: "gig"}, mallory)
		require.ErrorIs(t, err, ErrForbidden)
		_, err = f.songlists.ReplaceSongs(f.ctx, id, nil, mallory)
		require.ErrorIs(t, err, ErrForbidden)
		_, err = f.songlists.Share(f.ctx, id, mallory)
		require.ErrorIs(t, err, ErrForbidden)
		require.ErrorIs(t, f.songlists.Unshare(f.ctx, id, mallory), ErrForbidden)
		require.ErrorIs(t, f.songlists.Delete(f.ctx, id, mallory), ErrForbidden)
	}

	lists, err := f.songlists.List(f.ctx, mallory, &bandID)
	require.NoError(t, err)
	require.Empty(t, lists)
	lists, err = f.songlists.List(f.ctx, mallory, nil)
	require.NoError(t, err)
	require.Empty(t, lists)

	_, err = f.songlists.Get(f.ctx, 999999, alice)
	require.ErrorIs(t, err, ErrNotFound)

	token, err := f.songlists.Share(f.ctx, bound.ID, alice)
	require.NoError(t, err)
	pub, err := f.songlists.Public(f.ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Bound", pub.Name)
}

func TestSonglistListUnionAndOrder(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	bandID := f.band(t, "Rockers", bob)
	f.join(t, bandID, alice)

	mk := func(name string, date *string, band *int64, by int64) int64 {
		sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: name, Type: "gig", Date: date, BandID: band}, by)
		require.NoError(t, err)
		return sl.ID
	}
	undated := mk("undated", nil, nil, alice)
	older := mk("older", strPtr("2024-01-01"), &bandID, bob)
	newer := mk("newer", strPtr("2024-06-01"), nil, alice)
	mk("bob private", strPtr("2025-01-01"), nil, bob)

	lists, err := f.songlists.List(f.ctx, alice, nil)
	require.NoError(t, err)
	var ids []int64
	for _, l := range lists {
		ids = append(ids, l.ID)
	}
	require.Equal(t, []int64{newer, older, undated}, ids)
	require.Equal(t, "Rockers", *lists[1].BandName)

	bandLists, err := f.songlists.List(f.ctx, alice, &bandID)
	require.NoError(t, err)
	require.Len(t, bandLists, 1)
	require.Equal(t, older, bandLists[0].ID)
}

func TestSonglistShareTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig"}, alice)
	require.NoError(t, err)

	first, err := f.songlists.Share(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Regexp(t, `^[0-9a-f]{32}$`, first)
	second, err := f.songlists.Share(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, f.songlists.Unshare(f.ctx, sl.ID, alice))
	_, err = f.songlists.Public(f.ctx, first)
	require.ErrorIs(t, err, ErrNotFound)

	third, err := f.songlists.Share(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.NotEqual(t, first, third)

	_, err = f.songlists.Public(f.ctx, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSonglistBandDeletionUnbinds(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bandID := f.band(t, "Rockers", alice)
	song := f.song(t, "Song A", strPtr("slow"), intPtr(200))
	_, err := f.repertoire.Add(f.ctx, bandID, alice, song.ID, Override{Notes: strPtr("band notes"), Duration: intPtr(90)})
	require.NoError(t, err)

	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig", BandID: &bandID}, alice)
	require.NoError(t, err)
	got, err := f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{song.ID}, alice)
	require.NoError(t, err)
	require.Equal(t, 90, *got.Songs[0].EffectiveDuration)

	require.NoError(t, f.bands.Delete(f.ctx, bandID, alice))

	got, err = f.songlists.Get(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Nil(t, got.BandID)
	require.Len(t, got.Songs, 1)
	require.Equal(t, "slow", *got.Songs[0].EffectiveNotes)
	require.Equal(t, 200, *got.Songs[0].EffectiveDuration)
}

func TestSonglistRebindKeepsItems(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bandA := f.band(t, "A", alice)
	bandB := f.band(t, "B", alice)
	song := f.song(t, "Only in A", nil, intPtr(100))
	_, err := f.repertoire.Add(f.ctx, bandA, alice, song.ID, Override{Duration: intPtr(50)})
	require.NoError(t, err)

	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig", BandID: &bandA}, alice)
	require.NoError(t, err)
	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{song.ID}, alice)
	require.NoError(t, err)

	moved, err := f.songlists.Update(f.ctx, sl.ID, SonglistInput{Name: "Gig", Type: "gig", BandID: &bandB}, alice)
	require.NoError(t, err)
	require.Equal(t, bandB, *moved.BandID)
	require.Len(t, moved.Songs, 1)
	require.Equal(t, 100, *moved.Songs[0].EffectiveDuration)

	outsider := f.user(t, "outsider")
	otherBand := f.band(t, "Other", outsider)
	_, err = f.songlists.Update(f.ctx, sl.ID, SonglistInput{Name: "Gig", Type: "gig", BandID: &otherBand}, alice)
	require.ErrorIs(t, err, ErrForbidden)

	unbound, err := f.songlists.Update(f.ctx, sl.ID, SonglistInput{Name: "Solo", Type: "practice"}, alice)
	require.NoError(t, err)
	require.Nil(t, unbound.BandID)
	require.Equal(t, "Solo", unbound.Name)
}

func TestSonglistMemberUnbindsAnotherMembersList(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	band := f.band(t, "The Rockers", alice)
	f.join(t, band, bob)
	song := f.song(t, "Song A", nil, intPtr(180))

	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig", BandID: &band}, alice)
	require.NoError(t, err)
	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{song.ID}, alice)
	require.NoError(t, err)

	unbound, err := f.songlists.Update(f.ctx, sl.ID, SonglistInput{Name: "Gig (solo)", Type: "gig"}, bob)
	require.NoError(t, err)
	require.Nil(t, unbound.BandID)
	require.Equal(t, "Gig (solo)", unbound.Name)
	require.Equal(t, []int64{song.ID}, songIDs(unbound.Songs))

	stored, err := f.db.GetSonglist(f.ctx, sl.ID)
	require.NoError(t, err)
	require.Nil(t, stored.BandID)
	require.Equal(t, "Gig (solo)", stored.Name)

	_, err = f.songlists.Get(f.ctx, sl.ID, bob)
	require.ErrorIs(t, err, ErrForbidden)
	got, err := f.songlists.Get(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Equal(t, "Gig (solo)", got.Name)
}

func TestSonglistDeleteSongClosesGap(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.song(t, "A", nil, nil)
	b := f.song(t, "B", nil, nil)
	c := f.song(t, "C", nil, nil)
	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Gig", Type: "gig"}, alice)
	require.NoError(t, err)
	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{a.ID, b.ID, c.ID}, alice)
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteSong(f.ctx, b.ID))

	got, err := f.songlists.Get(f.ctx, sl.ID, alice)
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, c.ID}, songIDs(got.Songs))
	require.Equal(t, 1, got.Songs[1].Position)
}

// The Rockers scenario: band override on duration, catalog notes, member
// read, non-member refusal and anonymous share.
func TestSonglistBandScenario(t *testing.T) {
	f := newFixture(t)
	u1, u2 := f.user(t, "u1"), f.user(t, "u2")
	bandID := f.band(t, "The Rockers", u1)
	songA := f.song(t, "Song A", strPtr("slow"), nil)

	_, err := f.repertoire.Add(f.ctx, bandID, u1, songA.ID, Override{})
	require.NoError(t, err)
	_, err = f.repertoire.Update(f.ctx, bandID, u1, songA.ID, Override{Duration: intPtr(210)})
	require.NoError(t, err)

	sl, err := f.songlists.Create(f.ctx, SonglistInput{Name: "Friday Gig", Type: models.SonglistTypeGig, BandID: &bandID}, u1)
	require.NoError(t, err)
	_, err = f.songlists.ReplaceSongs(f.ctx, sl.ID, []int64{songA.ID}, u1)
	require.NoError(t, err)

	got, err := f.songlists.Get(f.ctx, sl.ID, u1)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	require.Equal(t, "Song A", got.Songs[0].Title)
	require.Equal(t, 210, *got.Songs[0].EffectiveDuration)
	require.Equal(t, "slow", *got.Songs[0].EffectiveNotes)
	require.Equal(t, 210, got.TotalDuration)

	_, err = f.songlists.Get(f.ctx, sl.ID, u2)
	require.ErrorIs(t, err, ErrForbidden)

	token, err := f.songlists.Share(f.ctx, sl.ID, u1)
	require.NoError(t, err)
	pub, err := f.songlists.Public(f.ctx, token)
	require.NoError(t, err)
	require.Equal(t, "Friday Gig", pub.Name)
	require.Equal(t, "The Rockers", *pub.BandName)
	require.Len(t, pub.Songs, 1)
	require.Equal(t, 210, *pub.Songs[0].EffectiveDuration)
	require.Equal(t, "slow", *pub.Songs[0].EffectiveNotes)
}
