package store

import "github.com/tfreitas/roomsync/internal/state"

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message state.Message
	Snippet string
}

// SearchMessages performs a full-text search on message bodies.
func (db *DB) SearchMessages(query string, roomJID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.msg_id, m.room_jid, m.sender_jid, m.sender_name, m.sender_avatar, m.body,
		       m.mimetype, m.is_system, m.token_amount, m.nft_id, m.contract_address,
		       m.receiver_msg_id, m.timestamp,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if roomJID != "" {
		q += " AND m.room_jid = ?"
		args = append(args, roomJID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.ID, &r.Message.RoomJID, &r.Message.Sender.ID,
			&r.Message.Sender.Name, &r.Message.Sender.Avatar, &r.Message.Text,
			&r.Message.MimeType, &r.Message.IsSystem, &r.Message.TokenAmount,
			&r.Message.NFTID, &r.Message.ContractAddress,
			&r.Message.ReceiverMessageID, &r.Message.Timestamp, &r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
