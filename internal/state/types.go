package state

// Sender identifies the author of a message.
type Sender struct {
	ID     string
	Name   string
	Avatar string
}

// Message is a canonical chat message, normalized from either the live or
// the archived wire shape. Timestamps are Unix milliseconds.
type Message struct {
	ID       string
	RoomJID  string
	Sender   Sender
	Text     string
	MimeType string

	// System messages carry economic metadata and may reference a prior
	// message to patch (token settlement, NFT wrap).
	IsSystem          bool
	TokenAmount       int64
	NFTID             string
	ContractAddress   string
	ReceiverMessageID string

	Timestamp int64
}

// Room is one chat room. Name and Participants are authoritative from the
// latest server roster snapshot; Priority, Favourite and Muted are
// local-only overlays preserved across reconciliations.
type Room struct {
	JID          string
	Name         string
	Participants int
	Avatar       string
	Thumbnail    string
	Background   string
	CreatedAt    int64
	Priority     int
	Favourite    bool
	Muted        bool
	Unread       int
}

// RoomDescriptor is one entry of a server roster snapshot.
type RoomDescriptor struct {
	JID          string
	Name         string
	Participants int
	Thumbnail    string
	Background   string
}

// RoomSummary is the derived last-message preview for a room.
type RoomSummary struct {
	LastUserName  string
	LastUserText  string
	LastMessageAt int64
	Muted         bool
}

// Composing is the single active typing indicator. A Start overwrites any
// prior state regardless of room; a Stop clears the username.
type Composing struct {
	Active       bool
	Username     string
	WalletHandle string
	RoomJID      string
}

// MemberInfo is one entry of a room member listing response.
type MemberInfo struct {
	JID        string
	Name       string
	Role       string
	Profile    string
	BanStatus  string
	LastActive string
}
