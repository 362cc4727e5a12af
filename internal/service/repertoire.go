package service

import (
	"context"
	"errors"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

// Override is a band's replacement for a song's notes and duration. A nil
// field falls through to the catalog value.
type Override struct {
	Notes    *string `json:"notes"`
	Duration *int    `json:"duration"`
}

func (o Override) clean() (Override, error) {
	if err := validDuration(o.Duration); err != nil {
		return Override{}, err
	}
	return Override{Notes: optionalText(o.Notes), Duration: o.Duration}, nil
}

// RepertoireService maintains each band's overlay on the catalog.
type RepertoireService struct {
	db     database.DB
	access AccessPolicy
}

func NewRepertoireService(db database.DB, access AccessPolicy) *RepertoireService {
	return &RepertoireService{db: db, access: access}
}

// List returns the band's merged view sorted by artist then title. Tags are
// the band's own, not the catalog's.
func (s *RepertoireService) List(ctx context.Context, bandID, userID int64) ([]models.MergedSong, error) {
	if err := requireMember(ctx, s.access, bandID, userID); err != nil {
		return nil, err
	}
	return s.db.ListBandRepertoire(ctx, bandID)
}

// Add puts a catalog song into the band's repertoire. Adding a song twice is
// a conflict; use Update to change overrides.
func (s *RepertoireService) Add(ctx context.Context, bandID, userID, songID int64, o Override) (*models.BandSong, error) {
	if err := requireMutate(ctx, s.access, bandID, userID); err != nil {
		return nil, err
	}
	o, err := o.clean()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.GetSong(ctx, songID); err != nil {
		return nil, classify(err, "song")
	}
	bs := &models.BandSong{BandID: bandID, SongID: songID, Notes: o.Notes, Duration: o.Duration}
	if err := s.db.CreateBandSong(ctx, bs); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, newError(ErrConflict, "song is already in the band's repertoire")
		}
		return nil, classify(err, "repertoire entry")
	}
	return bs, nil
}

// Update replaces both override fields. Omitting a field clears it.
func (s *RepertoireService) Update(ctx context.Context, bandID, userID, songID int64, o Override) (*models.BandSong, error) {
	if err := requireMutate(ctx, s.access, bandID, userID); err != nil {
		return nil, err
	}
	o, err := o.clean()
	if err != nil {
		return nil, err
	}
	bs := &models.BandSong{BandID: bandID, SongID: songID, Notes: o.Notes, Duration: o.Duration}
	if err := s.db.UpdateBandSong(ctx, bs); err != nil {
		return nil, classify(err, "repertoire entry")
	}
	return s.db.GetBandSong(ctx, bandID, songID)
}

func (s *RepertoireService) Remove(ctx context.Context, bandID, userID, songID int64) error {
	if err := requireMutate(ctx, s.access, bandID, userID); err != nil {
		return err
	}
	return classify(s.db.DeleteBandSong(ctx, bandID, songID), "repertoire entry")
}

func (s *RepertoireService) entry(ctx context.Context, bandID, userID, songID int64) (*models.BandSong, error) {
	if err := requireMutate(ctx, s.access, bandID, userID); err != nil {
		return nil, err
	}
	bs, err := s.db.GetBandSong(ctx, bandID, songID)
	if err != nil {
		return nil, classify(err, "repertoire entry")
	}
	return bs, nil
}

// AddTag tags the song within this band only. Tagging twice is a no-op; the
// entry's full tag list is returned.
func (s *RepertoireService) AddTag(ctx context.Context, bandID, userID, songID, tagID int64) ([]models.Tag, error) {
	bs, err := s.entry(ctx, bandID, userID, songID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.GetTag(ctx, tagID); err != nil {
		return nil, classify(err, "tag")
	}
	if err := s.db.AddBandSongTag(ctx, bs.ID, tagID); err != nil {
		return nil, classify(err, "band song tag")
	}
	return s.db.ListBandSongTags(ctx, bs.ID)
}

func (s *RepertoireService) RemoveTag(ctx context.Context, bandID, userID, songID, tagID int64) ([]models.Tag, error) {
	bs, err := s.entry(ctx, bandID, userID, songID)
	if err != nil {
		return nil, err
	}
	if err := s.db.RemoveBandSongTag(ctx, bs.ID, tagID); err != nil {
		return nil, err
	}
	return s.db.ListBandSongTags(ctx, bs.ID)
}
