package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/odvcencio/songlist/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresDB struct {
	db *sql.DB
}

var _ DB = (*PostgresDB)(nil)

func OpenPostgres(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error { return p.db.Close() }

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, pgSchema); err != nil {
		return err
	}
	for _, t := range seedTags {
		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO tags (name, color) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, t.Name, t.Color); err != nil {
			return fmt.Errorf("seed tag %s: %w", t.Name, err)
		}
	}
	return nil
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	avatar_url TEXT,
	provider TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(provider, provider_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	id_hash TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

CREATE TABLE IF NOT EXISTS bands (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	created_by BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS band_members (
	band_id BIGINT NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role TEXT NOT NULL DEFAULT 'member' CHECK(role IN ('owner', 'member')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (band_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_band_members_user ON band_members(user_id);

CREATE TABLE IF NOT EXISTS songs (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	notes TEXT,
	youtube_url TEXT,
	recording_url TEXT,
	lyrics_url TEXT,
	duration INTEGER CHECK(duration IS NULL OR duration >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tags (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT '#6b7280'
);

CREATE TABLE IF NOT EXISTS song_tags (
	song_id BIGINT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, tag_id)
);

CREATE TABLE IF NOT EXISTS band_songs (
	id BIGSERIAL PRIMARY KEY,
	band_id BIGINT NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	song_id BIGINT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	notes TEXT,
	duration INTEGER CHECK(duration IS NULL OR duration >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(band_id, song_id)
);

CREATE TABLE IF NOT EXISTS band_song_tags (
	band_song_id BIGINT NOT NULL REFERENCES band_songs(id) ON DELETE CASCADE,
	tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (band_song_id, tag_id)
);

CREATE TABLE IF NOT EXISTS songlists (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL CHECK(type IN ('gig', 'practice')),
	date TEXT,
	notes TEXT,
	band_id BIGINT REFERENCES bands(id) ON DELETE SET NULL,
	created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
	share_token TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_songlists_band ON songlists(band_id);
CREATE INDEX IF NOT EXISTS idx_songlists_created_by ON songlists(created_by);

CREATE TABLE IF NOT EXISTS songlist_items (
	id BIGSERIAL PRIMARY KEY,
	songlist_id BIGINT NOT NULL REFERENCES songlists(id) ON DELETE CASCADE,
	song_id BIGINT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_songlist_items_songlist ON songlist_items(songlist_id, position);
CREATE INDEX IF NOT EXISTS idx_songlist_items_song ON songlist_items(song_id);

CREATE TABLE IF NOT EXISTS band_invites (
	id BIGSERIAL PRIMARY KEY,
	band_id BIGINT NOT NULL REFERENCES bands(id) ON DELETE CASCADE,
	token TEXT NOT NULL UNIQUE,
	created_by BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// pgErr maps unique_violation and foreign_key_violation onto ErrDuplicate
// and ErrReference.
func pgErr(err error) error {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code {
	case "23505":
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case "23503":
		return fmt.Errorf("%w: %v", ErrReference, err)
	}
	return err
}

// pgRebind rewrites ? placeholders as $1, $2, ...
func pgRebind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Users ---

func (p *PostgresDB) UpsertUser(ctx context.Context, u *models.User) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, avatar_url, provider, provider_id) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   avatar_url = EXCLUDED.avatar_url
		 RETURNING id, name, email, avatar_url, provider, provider_id, created_at`,
		u.Name, u.Email, u.AvatarURL, u.Provider, u.ProviderID).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.Provider, &u.ProviderID, &u.CreatedAt)
}

func (p *PostgresDB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, email, avatar_url, provider, provider_id, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL, &u.Provider, &u.ProviderID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// --- Sessions ---

func (p *PostgresDB) CreateSession(ctx context.Context, idHash string, sess *models.Session) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO sessions (id_hash, user_id, expires_at) VALUES ($1, $2, $3) RETURNING created_at`,
		idHash, sess.UserID, sess.ExpiresAt.UTC()).Scan(&sess.CreatedAt)
	return pgErr(err)
}

func (p *PostgresDB) GetSession(ctx context.Context, idHash string) (*models.Session, error) {
	sess := &models.Session{}
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, created_at FROM sessions WHERE id_hash = $1`, idHash).
		Scan(&sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (p *PostgresDB) DeleteSession(ctx context.Context, idHash string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = $1`, idHash)
	return err
}

func (p *PostgresDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Bands & memberships ---

func (p *PostgresDB) CreateBandWithOwner(ctx context.Context, b *models.Band) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	var createdAt time.Time
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO bands (name, created_by) VALUES ($1, $2) RETURNING id, created_at`,
		b.Name, b.CreatedBy).Scan(&id, &createdAt); err != nil {
		return pgErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO band_members (band_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		id, b.CreatedBy, models.RoleOwner, createdAt); err != nil {
		return pgErr(err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = createdAt
	return nil
}

func (p *PostgresDB) GetBand(ctx context.Context, id int64) (*models.Band, error) {
	b := &models.Band{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM bands WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

const pgBandSummarySelect = `SELECT b.id, b.name, b.created_by, b.created_at, bm.role,
	(SELECT COUNT(*) FROM band_songs WHERE band_id = b.id),
	(SELECT COUNT(*) FROM band_members WHERE band_id = b.id)
 FROM bands b
 JOIN band_members bm ON bm.band_id = b.id`

func (p *PostgresDB) GetBandSummary(ctx context.Context, bandID, userID int64) (*models.BandSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		pgBandSummarySelect+` WHERE b.id = $1 AND bm.user_id = $2`, bandID, userID)
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

func (p *PostgresDB) ListUserBands(ctx context.Context, userID int64) ([]models.BandSummary, error) {
	rows, err := p.db.QueryContext(ctx,
		pgBandSummarySelect+` WHERE bm.user_id = $1 ORDER BY b.name ASC, b.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectBandSummaries(rows)
}

func (p *PostgresDB) RenameBand(ctx context.Context, id int64, name string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE bands SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) DeleteBand(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM bands WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) AddMembership(ctx context.Context, m *models.Membership) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO band_members (band_id, user_id, role) VALUES ($1, $2, $3) RETURNING created_at`,
		m.BandID, m.UserID, m.Role).Scan(&m.CreatedAt)
	return pgErr(err)
}

func (p *PostgresDB) GetMembership(ctx context.Context, bandID, userID int64) (*models.Membership, error) {
	m := &models.Membership{}
	err := p.db.QueryRowContext(ctx,
		`SELECT band_id, user_id, role, created_at FROM band_members WHERE band_id = $1 AND user_id = $2`,
		bandID, userID).Scan(&m.BandID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresDB) ListBandMembers(ctx context.Context, bandID int64) ([]models.BandMember, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.avatar_url, bm.role, bm.created_at
		 FROM band_members bm
		 JOIN users u ON u.id = bm.user_id
		 WHERE bm.band_id = $1
		 ORDER BY CASE WHEN bm.role = 'owner' THEN 0 ELSE 1 END, u.name ASC, u.id ASC`, bandID)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

func (p *PostgresDB) RemoveMembership(ctx context.Context, bandID, userID int64) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM band_members WHERE band_id = $1 AND user_id = $2`, bandID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Song catalog ---

const pgSongColumns = `s.id, s.title, s.artist, s.notes, s.youtube_url, s.recording_url, s.lyrics_url, s.duration, s.created_at`

func (p *PostgresDB) CreateSong(ctx context.Context, song *models.Song) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO songs (title, artist, notes, youtube_url, recording_url, lyrics_url, duration)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		song.Title, song.Artist, song.Notes, song.YoutubeURL, song.RecordingURL, song.LyricsURL, song.Duration).
		Scan(&song.ID, &song.CreatedAt)
}

func (p *PostgresDB) GetSong(ctx context.Context, id int64) (*models.Song, error) {
	return scanSong(p.db.QueryRowContext(ctx,
		`SELECT `+pgSongColumns+` FROM songs s WHERE s.id = $1`, id))
}

func (p *PostgresDB) ListSongs(ctx context.Context) ([]models.Song, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+pgSongColumns+` FROM songs s ORDER BY s.artist ASC, s.title ASC, s.id ASC`)
	if err != nil {
		return nil, err
	}
	songs, err := collectSongs(rows)
	if err != nil {
		return nil, err
	}
	rows, err = p.db.QueryContext(ctx,
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

func (p *PostgresDB) UpdateSong(ctx context.Context, song *models.Song) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE songs SET title = $1, artist = $2, notes = $3, youtube_url = $4, recording_url = $5, lyrics_url = $6, duration = $7
		 WHERE id = $8`,
		song.Title, song.Artist, song.Notes, song.YoutubeURL, song.RecordingURL, song.LyricsURL, song.Duration, song.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) DeleteSong(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`DELETE FROM songlist_items WHERE song_id = $1 RETURNING songlist_id`, id)
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	var affected []int64
	for rows.Next() {
		var listID int64
		if err := rows.Scan(&listID); err != nil {
			rows.Close()
			return err
		}
		if !seen[listID] {
			seen[listID] = true
			affected = append(affected, listID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if err := renumberSonglistItems(ctx, tx, pgRebind, affected); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresDB) AddSongTag(ctx context.Context, songID, tagID int64) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO song_tags (song_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, songID, tagID)
	return pgErr(err)
}

func (p *PostgresDB) RemoveSongTag(ctx context.Context, songID, tagID int64) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM song_tags WHERE song_id = $1 AND tag_id = $2`, songID, tagID)
	return err
}

func (p *PostgresDB) ListSongTags(ctx context.Context, songID int64) ([]models.Tag, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.color
		 FROM song_tags st
		 JOIN tags t ON t.id = st.tag_id
		 WHERE st.song_id = $1
		 ORDER BY t.name ASC`, songID)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Tags ---

func (p *PostgresDB) CreateTag(ctx context.Context, t *models.Tag) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO tags (name, color) VALUES ($1, $2) RETURNING id`, t.Name, t.Color).Scan(&t.ID)
	return pgErr(err)
}

func (p *PostgresDB) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	t := &models.Tag{}
	err := p.db.QueryRowContext(ctx, `SELECT id, name, color FROM tags WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresDB) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Band repertoire ---

func (p *PostgresDB) CreateBandSong(ctx context.Context, bs *models.BandSong) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO band_songs (band_id, song_id, notes, duration) VALUES ($1, $2, $3, $4) RETURNING id`,
		bs.BandID, bs.SongID, bs.Notes, bs.Duration).Scan(&bs.ID)
	return pgErr(err)
}

func (p *PostgresDB) GetBandSong(ctx context.Context, bandID, songID int64) (*models.BandSong, error) {
	bs := &models.BandSong{}
	err := p.db.QueryRowContext(ctx,
		`SELECT id, band_id, song_id, notes, duration FROM band_songs WHERE band_id = $1 AND song_id = $2`,
		bandID, songID).Scan(&bs.ID, &bs.BandID, &bs.SongID, &bs.Notes, &bs.Duration)
	if err != nil {
		return nil, err
	}
	return bs, nil
}

func (p *PostgresDB) UpdateBandSong(ctx context.Context, bs *models.BandSong) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE band_songs SET notes = $1, duration = $2 WHERE band_id = $3 AND song_id = $4`,
		bs.Notes, bs.Duration, bs.BandID, bs.SongID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) DeleteBandSong(ctx context.Context, bandID, songID int64) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM band_songs WHERE band_id = $1 AND song_id = $2`, bandID, songID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) ListBandRepertoire(ctx context.Context, bandID int64) ([]models.MergedSong, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT s.id, bs.id, s.title, s.artist,
		        COALESCE(bs.notes, s.notes), COALESCE(bs.duration, s.duration),
		        s.youtube_url, s.recording_url, s.lyrics_url,
		        s.notes, s.duration, bs.notes, bs.duration, s.created_at
		 FROM band_songs bs
		 JOIN songs s ON s.id = bs.song_id
		 WHERE bs.band_id = $1
		 ORDER BY s.artist ASC, s.title ASC, s.id ASC`, bandID)
	if err != nil {
		return nil, err
	}
	songs, err := collectMergedSongs(rows)
	if err != nil {
		return nil, err
	}
	rows, err = p.db.QueryContext(ctx,
		`SELECT bst.band_song_id, t.id, t.name, t.color
		 FROM band_song_tags bst
		 JOIN band_songs bs ON bs.id = bst.band_song_id
		 JOIN tags t ON t.id = bst.tag_id
		 WHERE bs.band_id = $1
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

func (p *PostgresDB) AddBandSongTag(ctx context.Context, bandSongID, tagID int64) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO band_song_tags (band_song_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, bandSongID, tagID)
	return pgErr(err)
}

func (p *PostgresDB) RemoveBandSongTag(ctx context.Context, bandSongID, tagID int64) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM band_song_tags WHERE band_song_id = $1 AND tag_id = $2`, bandSongID, tagID)
	return err
}

func (p *PostgresDB) ListBandSongTags(ctx context.Context, bandSongID int64) ([]models.Tag, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.color
		 FROM band_song_tags bst
		 JOIN tags t ON t.id = bst.tag_id
		 WHERE bst.band_song_id = $1
		 ORDER BY t.name ASC`, bandSongID)
	if err != nil {
		return nil, err
	}
	return collectTags(rows)
}

// --- Songlists ---

const pgSonglistSelect = `SELECT sl.id, sl.name, sl.type, sl.date, sl.notes, sl.band_id, b.name,
	sl.created_by, sl.share_token, sl.created_at,
	(SELECT COUNT(*) FROM songlist_items si WHERE si.songlist_id = sl.id)
 FROM songlists sl
 LEFT JOIN bands b ON b.id = sl.band_id`

const pgSonglistOrder = ` ORDER BY sl.date DESC NULLS LAST, sl.created_at DESC, sl.id DESC`

func (p *PostgresDB) CreateSonglist(ctx context.Context, sl *models.Songlist) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO songlists (name, type, date, notes, band_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		sl.Name, sl.Type, sl.Date, sl.Notes, sl.BandID, sl.CreatedBy).Scan(&sl.ID, &sl.CreatedAt)
	return pgErr(err)
}

func (p *PostgresDB) GetSonglist(ctx context.Context, id int64) (*models.Songlist, error) {
	return scanSonglist(p.db.QueryRowContext(ctx, pgSonglistSelect+` WHERE sl.id = $1`, id))
}

func (p *PostgresDB) GetSonglistByShareToken(ctx context.Context, token string) (*models.Songlist, error) {
	return scanSonglist(p.db.QueryRowContext(ctx, pgSonglistSelect+` WHERE sl.share_token = $1`, token))
}

func (p *PostgresDB) ListUserSonglists(ctx context.Context, userID int64) ([]models.Songlist, error) {
	rows, err := p.db.QueryContext(ctx,
		pgSonglistSelect+`
		 WHERE sl.band_id IN (SELECT band_id FROM band_members WHERE user_id = $1)
		    OR (sl.band_id IS NULL AND sl.created_by = $1)`+pgSonglistOrder, userID)
	if err != nil {
		return nil, err
	}
	return collectSonglists(rows)
}

func (p *PostgresDB) ListBandSonglists(ctx context.Context, bandID int64) ([]models.Songlist, error) {
	rows, err := p.db.QueryContext(ctx, pgSonglistSelect+` WHERE sl.band_id = $1`+pgSonglistOrder, bandID)
	if err != nil {
		return nil, err
	}
	return collectSonglists(rows)
}

func (p *PostgresDB) UpdateSonglist(ctx context.Context, sl *models.Songlist) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE songlists SET name = $1, type = $2, date = $3, notes = $4, band_id = $5 WHERE id = $6`,
		sl.Name, sl.Type, sl.Date, sl.Notes, sl.BandID, sl.ID)
	if err != nil {
		return pgErr(err)
	}
	return requireAffected(res)
}

func (p *PostgresDB) DeleteSonglist(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM songlists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *PostgresDB) ReplaceSonglistItems(ctx context.Context, songlistID int64, songIDs []int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Serialize concurrent replaces of the same list on the parent row.
	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM songlists WHERE id = $1 FOR UPDATE`, songlistID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM songlist_items WHERE songlist_id = $1`, songlistID); err != nil {
		return err
	}
	for pos, songID := range songIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO songlist_items (songlist_id, song_id, position) VALUES ($1, $2, $3)`,
			songlistID, songID, pos); err != nil {
			return pgErr(err)
		}
	}
	return tx.Commit()
}

func (p *PostgresDB) ListSonglistSongs(ctx context.Context, songlistID int64, bandID *int64) ([]models.SonglistSong, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+pgSongColumns+`, si.position,
		        COALESCE(bs.notes, s.notes), COALESCE(bs.duration, s.duration)
		 FROM songlist_items si
		 JOIN songs s ON s.id = si.song_id
		 LEFT JOIN band_songs bs ON bs.song_id = s.id AND bs.band_id = $1
		 WHERE si.songlist_id = $2
		 ORDER BY si.position ASC`, bandID, songlistID)
	if err != nil {
		return nil, err
	}
	return collectSonglistSongs(rows)
}

func (p *PostgresDB) SetShareTokenIfAbsent(ctx context.Context, songlistID int64, token string) (string, error) {
	var stored sql.NullString
	err := p.db.QueryRowContext(ctx,
		`UPDATE songlists SET share_token = COALESCE(share_token, $1) WHERE id = $2 RETURNING share_token`,
		token, songlistID).Scan(&stored)
	if err != nil {
		return "", pgErr(err)
	}
	if !stored.Valid {
		return "", sql.ErrNoRows
	}
	return stored.String, nil
}

func (p *PostgresDB) ClearShareToken(ctx context.Context, songlistID int64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE songlists SET share_token = NULL WHERE id = $1`, songlistID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Invites ---

func (p *PostgresDB) CreateInvite(ctx context.Context, inv *models.BandInvite) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO band_invites (band_id, token, created_by) VALUES ($1, $2, $3) RETURNING id, created_at`,
		inv.BandID, inv.Token, inv.CreatedBy).Scan(&inv.ID, &inv.CreatedAt)
	return pgErr(err)
}

func (p *PostgresDB) GetInviteByToken(ctx context.Context, token string) (*models.BandInvite, error) {
	inv := &models.BandInvite{}
	err := p.db.QueryRowContext(ctx,
		`SELECT i.id, i.band_id, b.name, i.token, i.created_by, i.created_at
		 FROM band_invites i
		 JOIN bands b ON b.id = i.band_id
		 WHERE i.token = $1`, token).
		Scan(&inv.ID, &inv.BandID, &inv.BandName, &inv.Token, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (p *PostgresDB) DBStats() sql.DBStats {
	return p.db.Stats()
}
