package store

import (
	"time"

	"github.com/tfreitas/roomsync/internal/state"
)

// InsertMessage appends a message to the cache. Idempotent on msg_id: a
// redelivered message never mutates the stored row.
func (db *DB) InsertMessage(m *state.Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, room_jid, sender_jid, sender_name, sender_avatar, body, mimetype, is_system, token_amount, nft_id, contract_address, receiver_msg_id, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO NOTHING`,
		m.ID, m.RoomJID, m.Sender.ID, m.Sender.Name, m.Sender.Avatar, m.Text, m.MimeType, m.IsSystem, m.TokenAmount, m.NFTID, m.ContractAddress, m.ReceiverMessageID, m.Timestamp, now)
	return err
}

// AllMessages returns every cached message in arrival (insertion) order.
// Used to re-derive in-memory state at startup.
func (db *DB) AllMessages() ([]state.Message, error) {
	rows, err := db.Query(`
		SELECT msg_id, room_jid, sender_jid, sender_name, sender_avatar, body, mimetype, is_system, token_amount, nft_id, contract_address, receiver_msg_id, timestamp
		FROM messages
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []state.Message
	for rows.Next() {
		var m state.Message
		if err := rows.Scan(&m.ID, &m.RoomJID, &m.Sender.ID, &m.Sender.Name, &m.Sender.Avatar, &m.Text, &m.MimeType, &m.IsSystem, &m.TokenAmount, &m.NFTID, &m.ContractAddress, &m.ReceiverMessageID, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListRoomMessages returns messages for a room using keyset pagination by timestamp.
func (db *DB) ListRoomMessages(roomJID string, beforeTs int64, limit int) ([]state.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT msg_id, room_jid, sender_jid, sender_name, sender_avatar, body, mimetype, is_system, token_amount, nft_id, contract_address, receiver_msg_id, timestamp
		FROM messages
		WHERE room_jid = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, roomJID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []state.Message
	for rows.Next() {
		var m state.Message
		if err := rows.Scan(&m.ID, &m.RoomJID, &m.Sender.ID, &m.Sender.Name, &m.Sender.Avatar, &m.Text, &m.MimeType, &m.IsSystem, &m.TokenAmount, &m.NFTID, &m.ContractAddress, &m.ReceiverMessageID, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AddTokenAmount increments the token amount on the referenced message.
// Settlement patches accumulate rather than replace.
func (db *DB) AddTokenAmount(msgID string, delta int64) error {
	_, err := db.Exec(`UPDATE messages SET token_amount = token_amount + ? WHERE msg_id = ?`, delta, msgID)
	return err
}

// MarkWrapped attaches NFT wrap metadata to the referenced message.
func (db *DB) MarkWrapped(msgID, nftID, contractAddress string) error {
	_, err := db.Exec(`UPDATE messages SET nft_id = ?, contract_address = ? WHERE msg_id = ?`, nftID, contractAddress, msgID)
	return err
}
