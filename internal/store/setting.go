package store

import (
	"database/sql"
	"time"
)

// Setting keys used by the sync core.
const (
	SettingRoomSummaries = "room_summaries"
	SettingProfileName   = "profile_name"
	SettingProfilePhoto  = "profile_photo"
	SettingProfileDesc   = "profile_description"
)

// PutSetting upserts a settings value.
func (db *DB) PutSetting(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetSetting returns a settings value, or empty string if absent.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
