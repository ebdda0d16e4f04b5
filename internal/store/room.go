package store

import (
	"database/sql"
	"time"

	"github.com/tfreitas/roomsync/internal/state"
)

// UpsertRoom inserts or updates a room record keyed by JID. Local overlay
// columns (priority, favourite, muted) are written as given; callers that
// only hold a server snapshot must read-modify-write to preserve them.
func (db *DB) UpsertRoom(r *state.Room) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO rooms (jid, name, participants, avatar, thumbnail, background, created_at, priority, favourite, muted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			participants = excluded.participants,
			avatar = excluded.avatar,
			thumbnail = excluded.thumbnail,
			background = excluded.background,
			priority = excluded.priority,
			favourite = excluded.favourite,
			muted = excluded.muted,
			updated_at = excluded.updated_at`,
		r.JID, r.Name, r.Participants, r.Avatar, r.Thumbnail, r.Background, r.CreatedAt, r.Priority, r.Favourite, r.Muted, now)
	return err
}

// GetRoom returns a single room by JID, or nil if not cached.
func (db *DB) GetRoom(jid string) (*state.Room, error) {
	var r state.Room
	err := db.QueryRow(`
		SELECT jid, name, participants, avatar, thumbnail, background, created_at, priority, favourite, muted
		FROM rooms WHERE jid = ?`, jid).
		Scan(&r.JID, &r.Name, &r.Participants, &r.Avatar, &r.Thumbnail, &r.Background, &r.CreatedAt, &r.Priority, &r.Favourite, &r.Muted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRooms returns all cached rooms ordered by priority then name.
func (db *DB) ListRooms() ([]state.Room, error) {
	rows, err := db.Query(`
		SELECT jid, name, participants, avatar, thumbnail, background, created_at, priority, favourite, muted
		FROM rooms
		ORDER BY priority DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []state.Room
	for rows.Next() {
		var r state.Room
		if err := rows.Scan(&r.JID, &r.Name, &r.Participants, &r.Avatar, &r.Thumbnail, &r.Background, &r.CreatedAt, &r.Priority, &r.Favourite, &r.Muted); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// SetRoomMuted flips only the muted overlay for a room.
func (db *DB) SetRoomMuted(jid string, muted bool) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE rooms SET muted = ?, updated_at = ? WHERE jid = ?`, muted, now, jid)
	return err
}
