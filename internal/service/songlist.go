package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

// SonglistInput holds the editable details of a songlist. BandID nil means
// the list draws from the plain catalog.
type SonglistInput struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Date   *string `json:"date"`
	Notes  *string `json:"notes"`
	BandID *int64  `json:"band_id"`
}

const dateLayout = "2006-01-02"

func (in SonglistInput) clean() (SonglistInput, error) {
	name, err := cleanName(in.Name, "name")
	if err != nil {
		return in, err
	}
	in.Name = name
	in.Type = strings.TrimSpace(in.Type)
	if !models.IsSonglistType(in.Type) {
		return in, newError(ErrValidation, "type must be %q or %q", models.SonglistTypeGig, models.SonglistTypePractice)
	}
	in.Date = optionalText(in.Date)
	if in.Date != nil {
		if _, err := time.Parse(dateLayout, *in.Date); err != nil {
			return in, newError(ErrValidation, "date must be YYYY-MM-DD")
		}
	}
	in.Notes = optionalText(in.Notes)
	return in, nil
}

// SonglistService owns songlists, their ordered items and share links.
type SonglistService struct {
	db     database.DB
	access AccessPolicy
}

func NewSonglistService(db database.DB, access AccessPolicy) *SonglistService {
	return &SonglistService{db: db, access: access}
}

// authorize loads a songlist and checks that userID may see and edit it: a
// band list needs membership, a catalog list needs its creator. Lists with no
// recorded creator are open to any signed-in user.
func (s *SonglistService) authorize(ctx context.Context, id, userID int64) (*models.Songlist, error) {
	sl, err := s.db.GetSonglist(ctx, id)
	if err != nil {
		return nil, classify(err, "songlist")
	}
	if sl.BandID != nil {
		if err := requireMember(ctx, s.access, *sl.BandID, userID); err != nil {
			return nil, err
		}
		return sl, nil
	}
	if sl.CreatedBy != nil && *sl.CreatedBy != userID {
		return nil, newError(ErrForbidden, "you do not have access to this songlist")
	}
	return sl, nil
}

func (s *SonglistService) withSongs(ctx context.Context, sl *models.Songlist) (*models.SonglistWithSongs, error) {
	songs, err := s.db.ListSonglistSongs(ctx, sl.ID, sl.BandID)
	if err != nil {
		return nil, err
	}
	out := &models.SonglistWithSongs{Songlist: *sl, Songs: songs}
	out.SongCount = len(songs)
	for _, song := range songs {
		if song.EffectiveDuration != nil {
			out.TotalDuration += *song.EffectiveDuration
		}
	}
	return out, nil
}

func (s *SonglistService) Create(ctx context.Context, in SonglistInput, creatorID int64) (*models.SonglistWithSongs, error) {
	in, err := in.clean()
	if err != nil {
		return nil, err
	}
	if in.BandID != nil {
		if err := requireMutate(ctx, s.access, *in.BandID, creatorID); err != nil {
			return nil, err
		}
	}
	sl := &models.Songlist{
		Name:      in.Name,
		Type:      in.Type,
		Date:      in.Date,
		Notes:     in.Notes,
		BandID:    in.BandID,
		CreatedBy: &creatorID,
	}
	if err := s.db.CreateSonglist(ctx, sl); err != nil {
		return nil, classify(err, "songlist")
	}
	return s.Get(ctx, sl.ID, creatorID)
}

func (s *SonglistService) Get(ctx context.Context, id, userID int64) (*models.SonglistWithSongs, error) {
	sl, err := s.authorize(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.withSongs(ctx, sl)
}

// List returns the songlists visible to userID, newest date first. With a
// band id it returns only that band's lists, or nothing for a non-member.
func (s *SonglistService) List(ctx context.Context, userID int64, bandID *int64) ([]models.Songlist, error) {
	if bandID == nil {
		return s.db.ListUserSonglists(ctx, userID)
	}
	member, err := s.access.IsMember(ctx, *bandID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return []models.Songlist{}, nil
	}
	return s.db.ListBandSonglists(ctx, *bandID)
}

// Update replaces the details of a songlist, possibly moving it to another
// band or to the catalog. Existing items are kept as they are.
func (s *SonglistService) Update(ctx context.Context, id int64, in SonglistInput, userID int64) (*models.SonglistWithSongs, error) {
	sl, err := s.authorize(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	in, err = in.clean()
	if err != nil {
		return nil, err
	}
	if in.BandID != nil {
		if err := requireMutate(ctx, s.access, *in.BandID, userID); err != nil {
			return nil, err
		}
	}
	sl.Name, sl.Type, sl.Date, sl.Notes, sl.BandID = in.Name, in.Type, in.Date, in.Notes, in.BandID
	if err := s.db.UpdateSonglist(ctx, sl); err != nil {
		return nil, classify(err, "songlist")
	}
	// No second authorize: a member who unbinds another member's list loses
	// access to it, yet the write has already landed.
	saved, err := s.db.GetSonglist(ctx, id)
	if err != nil {
		return nil, classify(err, "songlist")
	}
	return s.withSongs(ctx, saved)
}

func (s *SonglistService) Delete(ctx context.Context, id, userID int64) error {
	if _, err := s.authorize(ctx, id, userID); err != nil {
		return err
	}
	return classify(s.db.DeleteSonglist(ctx, id), "songlist")
}

// ReplaceSongs sets the complete ordered item list in one transaction.
// Duplicates are kept; an id with no catalog song fails the whole write.
func (s *SonglistService) ReplaceSongs(ctx context.Context, id int64, songIDs []int64, userID int64) (*models.SonglistWithSongs, error) {
	sl, err := s.authorize(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if songIDs == nil {
		songIDs = []int64{}
	}
	if err := s.db.ReplaceSonglistItems(ctx, id, songIDs); err != nil {
		if errors.Is(err, database.ErrReference) {
			return nil, newError(ErrNotFound, "one or more songs do not exist")
		}
		return nil, classify(err, "songlist")
	}
	return s.withSongs(ctx, sl)
}

// Share returns the songlist's share token, minting one on first use.
func (s *SonglistService) Share(ctx context.Context, id, userID int64) (string, error) {
	sl, err := s.authorize(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if sl.ShareToken != nil {
		return *sl.ShareToken, nil
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	stored, err := s.db.SetShareTokenIfAbsent(ctx, id, token)
	if err != nil {
		return "", classify(err, "songlist")
	}
	return stored, nil
}

// Unshare drops the share token; old links stop working at once.
func (s *SonglistService) Unshare(ctx context.Context, id, userID int64) error {
	if _, err := s.authorize(ctx, id, userID); err != nil {
		return err
	}
	return classify(s.db.ClearShareToken(ctx, id), "songlist")
}

// Public resolves a share token to the read-only view of its songlist. The
// token is the only credential.
func (s *SonglistService) Public(ctx context.Context, token string) (*models.PublicSonglist, error) {
	if token == "" {
		return nil, newError(ErrNotFound, "songlist not found")
	}
	sl, err := s.db.GetSonglistByShareToken(ctx, token)
	if err != nil {
		return nil, classify(err, "songlist")
	}
	full, err := s.withSongs(ctx, sl)
	if err != nil {
		return nil, err
	}
	return &models.PublicSonglist{
		Name:          full.Name,
		Type:          full.Type,
		Date:          full.Date,
		Notes:         full.Notes,
		BandName:      full.BandName,
		Songs:         full.Songs,
		TotalDuration: full.TotalDuration,
	}, nil
}
