package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/odvcencio/songlist/internal/models"
)

var (
	// ErrDuplicate reports a uniqueness violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReference reports a foreign key pointing at a row that does not exist.
	ErrReference = errors.New("referenced record does not exist")
)

// DB defines the data access interface. Implemented by SQLite and PostgreSQL backends.
//
// Lookups report a missing row as sql.ErrNoRows. Updates and deletes addressed
// by key do the same when nothing matched.
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error

	// Users
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// Sessions. ids are stored already hashed by the caller.
	CreateSession(ctx context.Context, idHash string, sess *models.Session) error
	GetSession(ctx context.Context, idHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, idHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Bands
	CreateBandWithOwner(ctx context.Context, band *models.Band) error
	GetBand(ctx context.Context, id int64) (*models.Band, error)
	GetBandSummary(ctx context.Context, bandID, userID int64) (*models.BandSummary, error)
	RenameBand(ctx context.Context, id int64, name string) error
	DeleteBand(ctx context.Context, id int64) error
	ListUserBands(ctx context.Context, userID int64) ([]models.BandSummary, error)

	// Memberships
	AddMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, bandID, userID int64) (*models.Membership, error)
	ListBandMembers(ctx context.Context, bandID int64) ([]models.BandMember, error)
	RemoveMembership(ctx context.Context, bandID, userID int64) error

	// Song catalog
	CreateSong(ctx context.Context, song *models.Song) error
	GetSong(ctx context.Context, id int64) (*models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
	UpdateSong(ctx context.Context, song *models.Song) error
	DeleteSong(ctx context.Context, id int64) error
	AddSongTag(ctx context.Context, songID, tagID int64) error
	RemoveSongTag(ctx context.Context, songID, tagID int64) error
	ListSongTags(ctx context.Context, songID int64) ([]models.Tag, error)

	// Tags
	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	ListTags(ctx context.Context) ([]models.Tag, error)

	// Band repertoire
	CreateBandSong(ctx context.Context, bs *models.BandSong) error
	GetBandSong(ctx context.Context, bandID, songID int64) (*models.BandSong, error)
	UpdateBandSong(ctx context.Context, bs *models.BandSong) error
	DeleteBandSong(ctx context.Context, bandID, songID int64) error
	ListBandRepertoire(ctx context.Context, bandID int64) ([]models.MergedSong, error)
	AddBandSongTag(ctx context.Context, bandSongID, tagID int64) error
	RemoveBandSongTag(ctx context.Context, bandSongID, tagID int64) error
	ListBandSongTags(ctx context.Context, bandSongID int64) ([]models.Tag, error)

	// Songlists
	CreateSonglist(ctx context.Context, sl *models.Songlist) error
	GetSonglist(ctx context.Context, id int64) (*models.Songlist, error)
	GetSonglistByShareToken(ctx context.Context, token string) (*models.Songlist, error)
	ListUserSonglists(ctx context.Context, userID int64) ([]models.Songlist, error)
	ListBandSonglists(ctx context.Context, bandID int64) ([]models.Songlist, error)
	UpdateSonglist(ctx context.Context, sl *models.Songlist) error
	DeleteSonglist(ctx context.Context, id int64) error
	ReplaceSonglistItems(ctx context.Context, songlistID int64, songIDs []int64) error
	ListSonglistSongs(ctx context.Context, songlistID int64, bandID *int64) ([]models.SonglistSong, error)
	SetShareTokenIfAbsent(ctx context.Context, songlistID int64, token string) (string, error)
	ClearShareToken(ctx context.Context, songlistID int64) error

	// Invites
	CreateInvite(ctx context.Context, inv *models.BandInvite) error
	GetInviteByToken(ctx context.Context, token string) (*models.BandInvite, error)
}

// Backuper is implemented by stores that can write a consistent snapshot of
// themselves to w.
type Backuper interface {
	Backup(ctx context.Context, w io.Writer) (int64, error)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// renumberSonglistItems rewrites positions of every list in ids as a dense
// 0..n-1 sequence, keeping the current relative order.
func renumberSonglistItems(ctx context.Context, tx *sql.Tx, rebind func(string) string, ids []int64) error {
	for _, listID := range ids {
		rows, err := tx.QueryContext(ctx,
			rebind(`SELECT id FROM songlist_items WHERE songlist_id = ? ORDER BY position ASC, id ASC`), listID)
		if err != nil {
			return err
		}
		var itemIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			itemIDs = append(itemIDs, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		for pos, id := range itemIDs {
			if _, err := tx.ExecContext(ctx, rebind(`UPDATE songlist_items SET position = ? WHERE id = ?`), pos, id); err != nil {
				return err
			}
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSonglist(rs rowScanner) (*models.Songlist, error) {
	sl := &models.Songlist{}
	err := rs.Scan(&sl.ID, &sl.Name, &sl.Type, &sl.Date, &sl.Notes, &sl.BandID, &sl.BandName,
		&sl.CreatedBy, &sl.ShareToken, &sl.CreatedAt, &sl.SongCount)
	if err != nil {
		return nil, err
	}
	return sl, nil
}

func collectSonglists(rows *sql.Rows) ([]models.Songlist, error) {
	defer rows.Close()
	lists := []models.Songlist{}
	for rows.Next() {
		sl, err := scanSonglist(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *sl)
	}
	return lists, rows.Err()
}

func collectTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()
	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// collectOwnedTags reads (owner id, tag) rows into a map keyed by owner.
func collectOwnedTags(rows *sql.Rows) (map[int64][]models.Tag, error) {
	defer rows.Close()
	out := make(map[int64][]models.Tag)
	for rows.Next() {
		var owner int64
		var t models.Tag
		if err := rows.Scan(&owner, &t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], t)
	}
	return out, rows.Err()
}

func collectSonglistSongs(rows *sql.Rows) ([]models.SonglistSong, error) {
	defer rows.Close()
	songs := []models.SonglistSong{}
	for rows.Next() {
		var s models.SonglistSong
		if err := rows.Scan(&s.ID, &s.Title, &s.Artist, &s.Notes, &s.YoutubeURL, &s.RecordingURL,
			&s.LyricsURL, &s.Duration, &s.CreatedAt, &s.Position, &s.EffectiveNotes, &s.EffectiveDuration); err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func collectMergedSongs(rows *sql.Rows) ([]models.MergedSong, error) {
	defer rows.Close()
	songs := []models.MergedSong{}
	for rows.Next() {
		var m models.MergedSong
		if err := rows.Scan(&m.ID, &m.BandSongID, &m.Title, &m.Artist, &m.Notes, &m.Duration,
			&m.YoutubeURL, &m.RecordingURL, &m.LyricsURL, &m.GlobalNotes, &m.GlobalDuration,
			&m.OverrideNotes, &m.OverrideDuration, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Tags = []models.Tag{}
		songs = append(songs, m)
	}
	return songs, rows.Err()
}

func collectBandSummaries(rows *sql.Rows) ([]models.BandSummary, error) {
	defer rows.Close()
	bands := []models.BandSummary{}
	for rows.Next() {
		var b models.BandSummary
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.UserRole, &b.SongCount, &b.MemberCount); err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

func collectSongs(rows *sql.Rows) ([]models.Song, error) {
	defer rows.Close()
	songs := []models.Song{}
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *s)
	}
	return songs, rows.Err()
}

func scanSong(rs rowScanner) (*models.Song, error) {
	s := &models.Song{}
	err := rs.Scan(&s.ID, &s.Title, &s.Artist, &s.Notes, &s.YoutubeURL, &s.RecordingURL,
		&s.LyricsURL, &s.Duration, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func collectMembers(rows *sql.Rows) ([]models.BandMember, error) {
	defer rows.Close()
	members := []models.BandMember{}
	for rows.Next() {
		var m models.BandMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.AvatarURL, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// seedTags are inserted by Migrate when missing.
var seedTags = []models.Tag{
	{Name: "ballad", Color: "#8b5cf6"},
	{Name: "upbeat", Color: "#f59e0b"},
	{Name: "acoustic", Color: "#10b981"},
	{Name: "cover", Color: "#3b82f6"},
	{Name: "original", Color: "#ef4444"},
	{Name: "opener", Color: "#ec4899"},
	{Name: "closer", Color: "#6366f1"},
}
