package models

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

const (
	SonglistTypeGig      = "gig"
	SonglistTypePractice = "practice"
)

type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is the server-side half of a login. ID is the raw session id; stores
// persist only its hash.
type Session struct {
	ID        string    `json:"-"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Band struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BandSummary is a band as seen by one of its members.
type BandSummary struct {
	Band
	UserRole    string `json:"user_role"`
	SongCount   int    `json:"song_count"`
	MemberCount int    `json:"member_count"`
}

type Membership struct {
	BandID    int64     `json:"band_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // "owner", "member"
	CreatedAt time.Time `json:"created_at"`
}

type BandMember struct {
	UserID    int64     `json:"id"`
	Name      string    `json:"name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

type Song struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Notes        *string   `json:"notes"`
	YoutubeURL   *string   `json:"youtube_url"`
	RecordingURL *string   `json:"recording_url"`
	LyricsURL    *string   `json:"lyrics_url"`
	Duration     *int      `json:"duration"` // seconds
	Tags         []Tag     `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// BandSong is a repertoire entry: the band plays SongID, optionally with its
// own notes and duration.
type BandSong struct {
	ID       int64   `json:"id"`
	BandID   int64   `json:"band_id"`
	SongID   int64   `json:"song_id"`
	Notes    *string `json:"notes"`
	Duration *int    `json:"duration"`
}

// MergedSong is a catalog song seen through a band's repertoire. Notes and
// Duration hold the effective values.
type MergedSong struct {
	ID               int64     `json:"id"`
	BandSongID       int64     `json:"band_song_id"`
	Title            string    `json:"title"`
	Artist           string    `json:"artist"`
	Notes            *string   `json:"notes"`
	Duration         *int      `json:"duration"`
	YoutubeURL       *string   `json:"youtube_url"`
	RecordingURL     *string   `json:"recording_url"`
	LyricsURL        *string   `json:"lyrics_url"`
	GlobalNotes      *string   `json:"global_notes"`
	GlobalDuration   *int      `json:"global_duration"`
	OverrideNotes    *string   `json:"band_notes"`
	OverrideDuration *int      `json:"band_duration"`
	Tags             []Tag     `json:"tags"`
	CreatedAt        time.Time `json:"created_at"`
}

type Songlist struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"` // "gig", "practice"
	Date       *string   `json:"date"` // YYYY-MM-DD
	Notes      *string   `json:"notes"`
	BandID     *int64    `json:"band_id"`
	BandName   *string   `json:"band_name"`
	CreatedBy  *int64    `json:"created_by,omitempty"`
	ShareToken *string   `json:"share_token"`
	SongCount  int       `json:"song_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// SonglistSong is one ordered entry of a songlist. The embedded Song carries
// catalog values; the effective fields apply the owning band's overrides.
type SonglistSong struct {
	Song
	Position          int     `json:"position"`
	EffectiveNotes    *string `json:"effective_notes"`
	EffectiveDuration *int    `json:"effective_duration"`
}

type SonglistWithSongs struct {
	Songlist
	Songs         []SonglistSong `json:"songs"`
	TotalDuration int            `json:"total_duration"`
}

// PublicSonglist is the view served to share-token holders.
type PublicSonglist struct {
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Date          *string        `json:"date"`
	Notes         *string        `json:"notes"`
	BandName      *string        `json:"band_name"`
	Songs         []SonglistSong `json:"songs"`
	TotalDuration int            `json:"total_duration"`
}

type BandInvite struct {
	ID        int64     `json:"id"`
	BandID    int64     `json:"band_id"`
	BandName  string    `json:"band_name,omitempty"`
	Token     string    `json:"token"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func IsRole(role string) bool {
	return role == RoleOwner || role == RoleMember
}

func IsSonglistType(t string) bool {
	return t == SonglistTypeGig || t == SonglistTypePractice
}
