package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/songlist/internal/models"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

var _ DB = (*SQLiteDB)(nil)
var _ Backuper = (*SQLiteDB)(nil)

func OpenSQLite(dsn string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// sqliteDSN attaches the connection pragmas so every pooled connection gets
// WAL, foreign keys and a busy timeout, not only the first one.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *SQLiteDB) Close() error { return s.db.Close() }

func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteDB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	for _, t := range seedTags {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name, color) VALUES (?, ?)`, t.Name, t.Color); err != nil {
			return fmt.Errorf("seed tag %s: %w", t.Name, err)
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT,
	avatar_url TEXT,
	provider TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(provider, provider_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	id_hash TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS bands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	created_by INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS band_members (
	band_id INTEGER NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role TEXT NOT NULL DEFAULT 'member' CHECK(role IN ('owner', 'member')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (band_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_band_members_user ON band_members(user_id);

CREATE TABLE IF NOT EXISTS songs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	notes TEXT,
	youtube_url TEXT,
	recording_url TEXT,
	lyrics_url TEXT,
	duration INTEGER CHECK(duration IS NULL OR duration >= 0),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT '#6b7280'
);

CREATE TABLE IF NOT EXISTS song_tags (
	song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, tag_id)
);

CREATE TABLE IF NOT EXISTS band_songs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	band_id INTEGER NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	notes TEXT,
	duration INTEGER CHECK(duration IS NULL OR duration >= 0),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(band_id, song_id)
);

CREATE TABLE IF NOT EXISTS band_song_tags (
	band_song_id INTEGER NOT NULL REFERENCES band_songs(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (band_song_id, tag_id)
);

CREATE TABLE IF NOT EXISTS songlists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('gig', 'practice')),
	date TEXT,
	notes TEXT,
	band_id INTEGER REFERENCES bands(id) ON DELETE SET NULL,
	created_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
	share_token TEXT UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_songlists_band ON songlists(band_id);
CREATE INDEX IF NOT EXISTS idx_songlists_created_by ON songlists(created_by);

CREATE TABLE IF NOT EXISTS songlist_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	songlist_id INTEGER NOT NULL REFERENCES songlists(id) ON DELETE CASCADE,
	song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_songlist_items_songlist ON songlist_items(songlist_id, position);
CREATE INDEX IF NOT EXISTS idx_songlist_items_song ON songlist_items(song_id);

CREATE TABLE IF NOT EXISTS band_invites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	band_id INTEGER NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	token TEXT NOT NULL UNIQUE,
	created_by INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func sqliteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// sqliteErr maps constraint failures onto ErrDuplicate and ErrReference.
func sqliteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", ErrReference, err)
	}
	return err
}

func sqliteRebind(q string) string { return q }

// --- Users ---

func (s *SQLiteDB) UpsertUser(ctx context.Context, u *models.User) error {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, avatar_url, provider, provider_id) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(provider, provider_id) DO UPDATE SET
		   name = excluded.name,
		   email = excluded.email,
		   avatar_url = excluded.avatar_url
		 RETURNING id`,
		u.Name, u.Email, u.AvatarURL, u.Provider, u.ProviderID).Scan(&id)
	if err != nil {
		return err
	}
	stored, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, avatar_url, provider, provider_id, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.Provider, &u.ProviderID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// --- Sessions ---

func (s *SQLiteDB) CreateSession(ctx context.Context, idHash string, sess *models.Session) error {
	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		idHash, sess.UserID, sqliteTimestamp(sess.ExpiresAt), sqliteTimestamp(now))
	if err != nil {
		return sqliteErr(err)
	}
	sess.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetSession(ctx context.Context, idHash string) (*models.Session, error) {
	sess := &models.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, created_at FROM sessions WHERE id_hash = ?`, idHash).
		Scan(&sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteDB) DeleteSession(ctx context.Context, idHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash)
	return err
}

func (s *SQLiteDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, sqliteTimestamp(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Bands & memberships ---

func (s *SQLiteDB) CreateBandWithOwner(ctx context.Context, b *models.Band) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bands (name, created_by, created_at) VALUES (?, ?, ?)`,
		b.Name, b.CreatedBy, sqliteTimestamp(now))
	if err != nil {
		return sqliteErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO band_members (band_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		id, b.CreatedBy, models.RoleOwner, sqliteTimestamp(now)); err != nil {
		return sqliteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetBand(ctx context.Context, id int64) (*models.Band, error) {
	b := &models.Band{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM bands WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

const sqliteBandSummarySelect = `SELECT b.id, b.name, b.created_by, b.created_at, bm.role,
	(SELECT COUNT(*) FROM band_songs WHERE band_id = b.id),
	(SELECT COUNT(*) FROM band_members WHERE band_id = b.id)
 FROM bands b
 JOIN band_members bm ON bm.band_id = b.id`

func (s *SQLiteDB) GetBandSummary(ctx context.Context, bandID, userID int64) (*models.BandSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteBandSummarySelect+` WHERE b.id = ? AND bm.user_id = ?`, bandID, userID)
	if err != nil {
		return nil, err
	}
	bands, err := collectBandSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, sql.ErrNoRows
	}
	return &bands[0], nil
}

func (s *SQLiteDB) ListUserBands(ctx context.Context, userID int64) ([]models.BandSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteBandSummarySelect+` WHERE bm.user_id = ? ORDER BY b.name ASC, b.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectBandSummaries(rows)
}

func (s *SQLiteDB) RenameBand(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bands SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteDB) DeleteBand(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bands WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteDB) AddMembership(ctx context.Context, m *models.Membership) error {
	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO band_members (band_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		m.BandID, m.UserID, m.Role, sqliteTimestamp(now))
	if err != nil {
		return sqliteErr(err)
	}
	m.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetMembership(ctx context.Context, bandID, userID int64) (*models.Membership, error) {
	m := &models.Membership{}
	err := s.db.QueryRowContext(ctx,
		`SELECT band_id, user_id, role, created_at FROM band_members WHERE band_id = ? AND user_id = ?`,
		bandID, userID).Scan(&m.BandID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteDB) ListBandMembers(ctx context.Context, bandID int64) ([]models.BandMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.avatar_url, bm.role, bm.created_at
		 FROM band_members bm
		 JOIN users u ON u.id = bm.user_id
		 WHERE bm.band_id = ?
		 ORDER BY CASE WHEN bm.role = 'owner' THEN 0 ELSE 1 END, u.name ASC, u.id ASC`, bandID)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (s *SQLiteDB) RemoveMembership(ctx context.Context, bandID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM band_members WHERE band_id = ? AND user_id = ?`, bandID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Song catalog ---

const sqliteSongColumns = `s.id, s.title, s.artist, s.notes, s.youtube_url, s.recording_url, s.lyrics_url, s.duration, s.created_at`

func (s *SQLiteDB) CreateSong(ctx context.Context, song *models.Song) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO songs (title, artist, notes, youtube_url, recording_url, lyrics_url, duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		song.Title, song.Artist, song.Notes, song.YoutubeURL, song.RecordingURL, song.LyricsURL, song.Duration,
		sqliteTimestamp(now))
	if err != nil {
		return err
	}
	song.ID, _ = res.LastInsertId()
	song.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	return scanSong(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSongColumns+` FROM songs s WHERE s.id = ?`, id))
}

func (s *SQLiteDB) ListSongs(ctx context.Context) ([]models.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSongColumns+` FROM songs s ORDER BY s.artist ASC, s.title ASC, s.id ASC`)
	if err != nil {
		return nil, err
	}
	songs, err := collectSongs(rows)
	if err != nil {
		return nil, err
	}
	rows, err = s.db.QueryContext(ctx,
		`SELECT st.song_id, t.id, t.name, t.color
		 FROM song_tags st
		 JOIN tags t ON t.id = st.tag_id
		 ORDER BY t.name ASC`)
	if err != nil {
		return nil, err
	}
	tags, err := collectOwnedTags(rows)
	if err != nil {
		return nil, err
	}
	for i := range songs {
		songs[i].Tags = tags[songs[i].ID]
	}
	return songs, nil
}

func (s *SQLiteDB) UpdateSong(ctx context.Context, song *models.Song) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE songs SET title = ?, artist = ?, notes = ?, youtube_url = ?, recording_url = ?, lyrics_url = ?, duration = ?
		 WHERE id = ?`,
		song.Title, song.Artist, song.Notes, song.YoutubeURL, song.RecordingURL, song.LyricsURL, song.Duration, song.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteSong removes the song and closes the position gaps its cascade
// leaves in every songlist that contained it.
func (s *SQLiteDB) DeleteSong(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT songlist_id FROM songlist_items WHERE song_id = ?`, id)
	if err != nil {
		return err
	}
	var affected []int64
	for rows.Next() {
		var listID int64
		if err := rows.Scan(&listID); err != nil {
			rows.Close()
			return err
		}
		affected = append(affected, listID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if err := renumberSonglistItems(ctx, tx, sqliteRebind, affected); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDB) AddSongTag(ctx context.Context, songID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO song_tags (song_id, tag_id) VALUES (?, ?)`, songID, tagID)
	return sqliteErr(err)
}

func (s *SQLiteDB) RemoveSongTag(ctx context.Context, songID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM song_tags WHERE song_id = ? AND tag_id = ?`, songID, tagID)
	return err
}

func (s *SQLiteDB) ListSongTags(ctx context.Context, songID int64) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.color
		 FROM song_tags st
		 JOIN tags t ON t.id = st.tag_id
		 WHERE st.song_id = ?
		 ORDER BY t.name ASC`, songID)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Tags ---

func (s *SQLiteDB) CreateTag(ctx context.Context, t *models.Tag) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name, color) VALUES (?, ?)`, t.Name, t.Color)
	if err != nil {
		return sqliteErr(err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	t := &models.Tag{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM tags WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteDB) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Band repertoire ---

func (s *SQLiteDB) CreateBandSong(ctx context.Context, bs *models.BandSong) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO band_songs (band_id, song_id, notes, duration) VALUES (?, ?, ?, ?)`,
		bs.BandID, bs.SongID, bs.Notes, bs.Duration)
	if err != nil {
		return sqliteErr(err)
	}
	bs.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteDB) GetBandSong(ctx context.Context, bandID, songID int64) (*models.BandSong, error) {
	bs := &models.BandSong{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, band_id, song_id, notes, duration FROM band_songs WHERE band_id = ? AND song_id = ?`,
		bandID, songID).Scan(&bs.ID, &bs.BandID, &bs.SongID, &bs.Notes, &bs.Duration)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

func (s *SQLiteDB) UpdateBandSong(ctx context.Context, bs *models.BandSong) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE band_songs SET notes = ?, duration = ? WHERE band_id = ? AND song_id = ?`,
		bs.Notes, bs.Duration, bs.BandID, bs.SongID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteDB) DeleteBandSong(ctx context.Context, bandID, songID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM band_songs WHERE band_id = ? AND song_id = ?`, bandID, songID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteDB) ListBandRepertoire(ctx context.Context, bandID int64) ([]models.MergedSong, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, bs.id, s.title, s.artist,
		        COALESCE(bs.notes, s.notes), COALESCE(bs.duration, s.duration),
		        s.youtube_url, s.recording_url, s.lyrics_url,
		        s.notes, s.duration, bs.notes, bs.duration, s.created_at
		 FROM band_songs bs
		 JOIN songs s ON s.id = bs.song_id
		 WHERE bs.band_id = ?
		 ORDER BY s.artist ASC, s.title ASC, s.id ASC`, bandID)
	if err != nil {
		return nil, err
	}
	songs, err := collectMergedSongs(rows)
	if err != nil {
		return nil, err
	}
	rows, err = s.db.QueryContext(ctx,
		`SELECT bst.band_song_id, t.id, t.name, t.color
		 FROM band_song_tags bst
		 JOIN band_songs bs ON bs.id = bst.band_song_id
		 JOIN tags t ON t.id = bst.tag_id
		 WHERE bs.band_id = ?
		 ORDER BY t.name ASC`, bandID)
	if err != nil {
		return nil, err
	}
	tags, err := collectOwnedTags(rows)
	if err != nil {
		return nil, err
	}
	for i := range songs {
		if t, ok := tags[songs[i].BandSongID]; ok {
			songs[i].Tags = t
		}
	}
	return songs, nil
}

func (s *SQLiteDB) AddBandSongTag(ctx context.Context, bandSongID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO band_song_tags (band_song_id, tag_id) VALUES (?, ?)`, bandSongID, tagID)
	return sqliteErr(err)
}

func (s *SQLiteDB) RemoveBandSongTag(ctx context.Context, bandSongID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM band_song_tags WHERE band_song_id = ? AND tag_id = ?`, bandSongID, tagID)
	return err
}

func (s *SQLiteDB) ListBandSongTags(ctx context.Context, bandSongID int64) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.color
		 FROM band_song_tags bst
		 JOIN tags t ON t.id = bst.tag_id
		 WHERE bst.band_song_id = ?
		 ORDER BY t.name ASC`, bandSongID)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Songlists ---

const sqliteSonglistSelect = `SELECT sl.id, sl.name, sl.type, sl.date, sl.notes, sl.band_id, b.name,
	sl.created_by, sl.share_token, sl.created_at,
	(SELECT COUNT(*) FROM songlist_items si WHERE si.songlist_id = sl.id)
 FROM songlists sl
 LEFT JOIN bands b ON b.id = sl.band_id`

const sqliteSonglistOrder = ` ORDER BY sl.date IS NULL, sl.date DESC, sl.created_at DESC, sl.id DESC`

func (s *SQLiteDB) CreateSonglist(ctx context.Context, sl *models.Songlist) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO songlists (name, type, date, notes, band_id, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sl.Name, sl.Type, sl.Date, sl.Notes, sl.BandID, sl.CreatedBy, sqliteTimestamp(now))
	if err != nil {
		return sqliteErr(err)
	}
	sl.ID, _ = res.LastInsertId()
	sl.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetSonglist(ctx context.Context, id int64) (*models.Songlist, error) {
	return scanSonglist(s.db.QueryRowContext(ctx, sqliteSonglistSelect+` WHERE sl.id = ?`, id))
}

func (s *SQLiteDB) GetSonglistByShareToken(ctx context.Context, token string) (*models.Songlist, error) {
	return scanSonglist(s.db.QueryRowContext(ctx, sqliteSonglistSelect+` WHERE sl.share_token = ?`, token))
}

func (s *SQLiteDB) ListUserSonglists(ctx context.Context, userID int64) ([]models.Songlist, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteSonglistSelect+`
		 WHERE sl.band_id IN (SELECT band_id FROM band_members WHERE user_id = ?)
		    OR (sl.band_id IS NULL AND sl.created_by = ?)`+sqliteSonglistOrder, userID, userID)
	if err != nil {
		return nil, err
	}
	return collectSonglists(rows)
}

func (s *SQLiteDB) ListBandSonglists(ctx context.Context, bandID int64) ([]models.Songlist, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSonglistSelect+` WHERE sl.band_id = ?`+sqliteSonglistOrder, bandID)
	if err != nil {
		return nil, err
	}
	return collectSonglists(rows)
}

func (s *SQLiteDB) UpdateSonglist(ctx context.Context, sl *models.Songlist) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE songlists SET name = ?, type = ?, date = ?, notes = ?, band_id = ? WHERE id = ?`,
		sl.Name, sl.Type, sl.Date, sl.Notes, sl.BandID, sl.ID)
	if err != nil {
		return sqliteErr(err)
	}
	return requireAffected(res)
}

func (s *SQLiteDB) DeleteSonglist(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM songlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ReplaceSonglistItems swaps the whole item sequence of a songlist in one
// transaction. Positions are written as 0..n-1 in the order given.
func (s *SQLiteDB) ReplaceSonglistItems(ctx context.Context, songlistID int64, songIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM songlist_items WHERE songlist_id = ?`, songlistID); err != nil {
		return err
	}
	for pos, songID := range songIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO songlist_items (songlist_id, song_id, position) VALUES (?, ?, ?)`,
			songlistID, songID, pos); err != nil {
			return sqliteErr(err)
		}
	}
	return tx.Commit()
}

// ListSonglistSongs returns the items of a songlist in position order. With a
// band id, each song's notes and duration fall back through that band's
// repertoire overrides.
func (s *SQLiteDB) ListSonglistSongs(ctx context.Context, songlistID int64, bandID *int64) ([]models.SonglistSong, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSongColumns+`, si.position,
		        COALESCE(bs.notes, s.notes), COALESCE(bs.duration, s.duration)
		 FROM songlist_items si
		 JOIN songs s ON s.id = si.song_id
		 LEFT JOIN band_songs bs ON bs.song_id = s.id AND bs.band_id = ?
		 WHERE si.songlist_id = ?
		 ORDER BY si.position ASC`, bandID, songlistID)
	if err != nil {
		return nil, err
	}
	return collectSonglistSongs(rows)
}

func (s *SQLiteDB) SetShareTokenIfAbsent(ctx context.Context, songlistID int64, token string) (string, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE songlists SET share_token = ? WHERE id = ? AND share_token IS NULL`, token, songlistID); err != nil {
		return "", sqliteErr(err)
	}
	var stored sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT share_token FROM songlists WHERE id = ?`, songlistID).Scan(&stored); err != nil {
		return "", err
	}
	if !stored.Valid {
		return "", sql.ErrNoRows
	}
	return stored.String, nil
}

func (s *SQLiteDB) ClearShareToken(ctx context.Context, songlistID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE songlists SET share_token = NULL WHERE id = ?`, songlistID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Invites ---

func (s *SQLiteDB) CreateInvite(ctx context.Context, inv *models.BandInvite) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO band_invites (band_id, token, created_by, created_at) VALUES (?, ?, ?, ?)`,
		inv.BandID, inv.Token, inv.CreatedBy, sqliteTimestamp(now))
	if err != nil {
		return sqliteErr(err)
	}
	inv.ID, _ = res.LastInsertId()
	inv.CreatedAt = now
	return nil
}

func (s *SQLiteDB) GetInviteByToken(ctx context.Context, token string) (*models.BandInvite, error) {
	inv := &models.BandInvite{}
	err := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.band_id, b.name, i.token, i.created_by, i.created_at
		 FROM band_invites i
		 JOIN bands b ON b.id = i.band_id
		 WHERE i.token = ?`, token).
		Scan(&inv.ID, &inv.BandID, &inv.BandName, &inv.Token, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// --- Maintenance ---

// Backup writes a consistent copy of the database to w using VACUUM INTO.
func (s *SQLiteDB) Backup(ctx context.Context, w io.Writer) (int64, error) {
	dir, err := os.MkdirTemp("", "songlist-backup-*")
	if err != nil {
		return 0, fmt.Errorf("backup temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}
	f, err := os.Open(snapshot)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

func (s *SQLiteDB) DBStats() sql.DBStats {
	return s.db.Stats()
}
