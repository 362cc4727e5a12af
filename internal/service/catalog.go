package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/models"
)

// SongInput is the full set of editable catalog fields. Updates replace every
// field; nil clears an optional one.
type SongInput struct {
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Notes        *string `json:"notes"`
	YoutubeURL   *string `json:"youtube_url"`
	RecordingURL *string `json:"recording_url"`
	LyricsURL    *string `json:"lyrics_url"`
	Duration     *int    `json:"duration"`
}

// CatalogService manages the global song library and tag set.
type CatalogService struct {
	db database.DB
}

func NewCatalogService(db database.DB) *CatalogService {
	return &CatalogService{db: db}
}

func optionalText(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func validDuration(d *int) error {
	if d != nil && *d < 0 {
		return newError(ErrValidation, "duration must be a non-negative number of seconds")
	}
	return nil
}

func optionalURL(v *string, field string) (*string, error) {
	v = optionalText(v)
	if v == nil {
		return nil, nil
	}
	u, err := url.Parse(*v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newError(ErrValidation, "%s must be an http(s) URL", field)
	}
	return v, nil
}

func (in SongInput) song() (*models.Song, error) {
	title := strings.TrimSpace(in.Title)
	artist := strings.TrimSpace(in.Artist)
	if title == "" || artist == "" {
		return nil, newError(ErrValidation, "title and artist are required")
	}
	if err := validDuration(in.Duration); err != nil {
		return nil, err
	}
	song := &models.Song{
		Title:    title,
		Artist:   artist,
		Notes:    optionalText(in.Notes),
		Duration: in.Duration,
	}
	var err error
	if song.YoutubeURL, err = optionalURL(in.YoutubeURL, "youtube_url"); err != nil {
		return nil, err
	}
	if song.RecordingURL, err = optionalURL(in.RecordingURL, "recording_url"); err != nil {
		return nil, err
	}
	if song.LyricsURL, err = optionalURL(in.LyricsURL, "lyrics_url"); err != nil {
		return nil, err
	}
	return song, nil
}

// ListSongs returns the catalog sorted by artist then title, with global tags.
func (s *CatalogService) ListSongs(ctx context.Context) ([]models.Song, error) {
	return s.db.ListSongs(ctx)
}

func (s *CatalogService) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	song, err := s.db.GetSong(ctx, id)
	if err != nil {
		return nil, classify(err, "song")
	}
	tags, err := s.db.ListSongTags(ctx, id)
	if err != nil {
		return nil, err
	}
	song.Tags = tags
	return song, nil
}

func (s *CatalogService) CreateSong(ctx context.Context, in SongInput) (*models.Song, error) {
	song, err := in.song()
	if err != nil {
		return nil, err
	}
	if err := s.db.CreateSong(ctx, song); err != nil {
		return nil, classify(err, "song")
	}
	song.Tags = []models.Tag{}
	return song, nil
}

func (s *CatalogService) UpdateSong(ctx context.Context, id int64, in SongInput) (*models.Song, error) {
	song, err := in.song()
	if err != nil {
		return nil, err
	}
	song.ID = id
	if err := s.db.UpdateSong(ctx, song); err != nil {
		return nil, classify(err, "song")
	}
	return s.GetSong(ctx, id)
}

// DeleteSong removes the song together with its tags, repertoire entries and
// songlist items.
func (s *CatalogService) DeleteSong(ctx context.Context, id int64) error {
	return classify(s.db.DeleteSong(ctx, id), "song")
}

func (s *CatalogService) songAndTag(ctx context.Context, songID, tagID int64) error {
	if _, err := s.db.GetSong(ctx, songID); err != nil {
		return classify(err, "song")
	}
	if _, err := s.db.GetTag(ctx, tagID); err != nil {
		return classify(err, "tag")
	}
	return nil
}

// AddSongTag attaches a global tag; attaching an existing tag is a no-op. The
// song's full tag list is returned.
func (s *CatalogService) AddSongTag(ctx context.Context, songID, tagID int64) ([]models.Tag, error) {
	if err := s.songAndTag(ctx, songID, tagID); err != nil {
		return nil, err
	}
	if err := s.db.AddSongTag(ctx, songID, tagID); err != nil {
		return nil, classify(err, "song tag")
	}
	return s.db.ListSongTags(ctx, songID)
}

func (s *CatalogService) RemoveSongTag(ctx context.Context, songID, tagID int64) ([]models.Tag, error) {
	if _, err := s.db.GetSong(ctx, songID); err != nil {
		return nil, classify(err, "song")
	}
	if err := s.db.RemoveSongTag(ctx, songID, tagID); err != nil {
		return nil, err
	}
	return s.db.ListSongTags(ctx, songID)
}

func (s *CatalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.db.ListTags(ctx)
}

var tagColorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultTagColor = "#6b7280"

func (s *CatalogService) CreateTag(ctx context.Context, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrValidation, "tag name is required")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = defaultTagColor
	}
	if !tagColorRE.MatchString(color) {
		return nil, newError(ErrValidation, "tag color must look like #rrggbb")
	}
	tag := &models.Tag{Name: name, Color: color}
	if err := s.db.CreateTag(ctx, tag); err != nil {
		return nil, classify(err, "tag")
	}
	return tag, nil
}
