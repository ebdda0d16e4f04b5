package xmpp

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tfreitas/roomsync/internal/stanza"
)

const (
	mucNS       = "http://jabber.org/protocol/muc"
	mucSubNS    = "urn:xmpp:mucsub:0"
	chatStateNS = "http://jabber.org/protocol/chatstates"
	vcardNS     = "vcard-temp"
	roomsNS     = "ns:getrooms"
	blocklistNS = "ns:blocklist"
	memberNS    = "ns:room:members"
)

// Identity is the local user as seen by rooms: the bare JID the gateway
// authenticated and the profile shown to other occupants.
type Identity struct {
	UserJID     string
	DisplayName string
	AvatarURL   string
}

// Requests builds outbound stanzas with fresh correlation ids and tracks
// which ids are awaiting a response. Responses echo the request id;
// Acknowledge retires it. Ids carry their purpose as a prefix so responses
// classify without a lookup.
type Requests struct {
	identity Identity
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]string // id -> purpose
}

// NewRequests creates a request builder for the given local identity.
func NewRequests(identity Identity, logger *zap.Logger) *Requests {
	return &Requests{
		identity: identity,
		logger:   logger,
		pending:  make(map[string]string),
	}
}

func (r *Requests) newID(purpose string) string {
	id := purpose + ":" + uuid.NewString()
	r.mu.Lock()
	r.pending[id] = purpose
	r.mu.Unlock()
	return id
}

// Acknowledge retires a pending request id. Returns false for ids this
// process never issued, which covers unsolicited stanzas and replies to a
// previous incarnation.
func (r *Requests) Acknowledge(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return false
	}
	delete(r.pending, id)
	return true
}

// PendingCount reports how many requests await a response.
func (r *Requests) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// RoomPresence announces the user in a room. The server answers with the
// occupant's role.
func (r *Requests) RoomPresence(roomJID string) *stanza.Node {
	return &stanza.Node{
		Name: "presence",
		Attrs: map[string]string{
			"id": r.newID(stanza.PurposeRoomPresence),
			"to": roomJID + "/" + r.identity.DisplayName,
		},
		Children: []*stanza.Node{
			{Name: "x", Attrs: map[string]string{"xmlns": mucNS}},
		},
	}
}

// Subscribe asks the room to push events while the user is offline.
func (r *Requests) Subscribe(roomJID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeNewSubscription),
			"to":   roomJID,
			"type": "set",
		},
		Children: []*stanza.Node{
			{
				Name: "subscribe",
				Attrs: map[string]string{
					"xmlns": mucSubNS,
					"nick":  r.identity.DisplayName,
				},
			},
		},
	}
}

// Roster requests the full list of the user's rooms.
func (r *Requests) Roster(conferenceDomain string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeRoster),
			"to":   conferenceDomain,
			"type": "get",
		},
		Children: []*stanza.Node{
			{Name: "query", Attrs: map[string]string{"xmlns": roomsNS}},
		},
	}
}

// Archive requests the full message history of a room.
func (r *Requests) Archive(roomJID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeArchive),
			"to":   roomJID,
			"type": "set",
		},
		Children: []*stanza.Node{
			{Name: "query", Attrs: map[string]string{"xmlns": stanza.MAMNamespace}},
		},
	}
}

// EarlierArchive requests the page of history before the given message id.
func (r *Requests) EarlierArchive(roomJID, beforeID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposePaginatedArchive),
			"to":   roomJID,
			"type": "set",
		},
		Children: []*stanza.Node{
			{
				Name:  "query",
				Attrs: map[string]string{"xmlns": stanza.MAMNamespace},
				Children: []*stanza.Node{
					{
						Name:  "set",
						Attrs: map[string]string{"xmlns": "http://jabber.org/protocol/rsm"},
						Children: []*stanza.Node{
							{Name: "before", Text: beforeID},
						},
					},
				},
			},
		},
	}
}

// Blocklist requests the user's blocked-sender list.
func (r *Requests) Blocklist() *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeBlocklist),
			"type": "get",
		},
		Children: []*stanza.Node{
			{Name: "query", Attrs: map[string]string{"xmlns": blocklistNS}},
		},
	}
}

// Block adds a sender to the blocklist.
func (r *Requests) Block(senderJID string) *stanza.Node {
	return r.blocklistMutation(stanza.PurposeBlock, "block", senderJID)
}

// Unblock removes a sender from the blocklist.
func (r *Requests) Unblock(senderJID string) *stanza.Node {
	return r.blocklistMutation(stanza.PurposeUnblock, "unblock", senderJID)
}

func (r *Requests) blocklistMutation(purpose, verb, senderJID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(purpose),
			"type": "set",
		},
		Children: []*stanza.Node{
			{
				Name:  "query",
				Attrs: map[string]string{"xmlns": blocklistNS},
				Children: []*stanza.Node{
					{Name: verb, Attrs: map[string]string{"user": senderJID}},
				},
			},
		},
	}
}

// OwnVCard requests the user's stored profile card.
func (r *Requests) OwnVCard() *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeVCardSelf),
			"type": "get",
		},
		Children: []*stanza.Node{
			{Name: "vCard", Attrs: map[string]string{"xmlns": vcardNS}},
		},
	}
}

// OtherVCard requests another user's profile card.
func (r *Requests) OtherVCard(userJID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeVCardOther),
			"to":   userJID,
			"type": "get",
		},
		Children: []*stanza.Node{
			{Name: "vCard", Attrs: map[string]string{"xmlns": vcardNS}},
		},
	}
}

// PublishVCard stores the user's profile card.
func (r *Requests) PublishVCard(name, photoURL, description string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeVCardSelf),
			"type": "set",
		},
		Children: []*stanza.Node{
			{
				Name:  "vCard",
				Attrs: map[string]string{"xmlns": vcardNS},
				Children: []*stanza.Node{
					{Name: "FN", Text: name},
					{Name: "URL", Text: photoURL},
					{Name: "DESC", Text: description},
				},
			},
		},
	}
}

// MemberInfo requests the member listing of a room.
func (r *Requests) MemberInfo(roomJID string) *stanza.Node {
	return &stanza.Node{
		Name: "iq",
		Attrs: map[string]string{
			"id":   r.newID(stanza.PurposeMemberInfo),
			"to":   roomJID,
			"type": "get",
		},
		Children: []*stanza.Node{
			{Name: "query", Attrs: map[string]string{"xmlns": memberNS}},
		},
	}
}

// Composing announces that the user started or stopped typing in a room.
func (r *Requests) Composing(roomJID string, active bool) *stanza.Node {
	purpose := stanza.PurposeComposing
	childName := "composing"
	if !active {
		purpose = stanza.PurposePausedComposing
		childName = "paused"
	}
	return &stanza.Node{
		Name: "message",
		Attrs: map[string]string{
			"id":   purpose + ":" + uuid.NewString(),
			"to":   roomJID,
			"type": "groupchat",
		},
		Children: []*stanza.Node{
			{Name: childName, Attrs: map[string]string{"xmlns": chatStateNS}},
			{
				Name: "data",
				Attrs: map[string]string{
					"fullName":                 r.identity.DisplayName,
					"manipulatedWalletAddress": r.identity.UserJID,
				},
			},
		},
	}
}

// Groupchat builds an outbound room message. The client id rides in the
// correlation id; the server-stamped archive id becomes the canonical
// message id when the stanza reflects back.
func (r *Requests) Groupchat(roomJID, clientID, text string) *stanza.Node {
	return &stanza.Node{
		Name: "message",
		Attrs: map[string]string{
			"id":   stanza.PurposeSendMessage + ":" + clientID,
			"to":   roomJID,
			"type": "groupchat",
		},
		Children: []*stanza.Node{
			{Name: "body", Text: text},
			{
				Name: "data",
				Attrs: map[string]string{
					"senderJID":  r.identity.UserJID,
					"senderName": r.identity.DisplayName,
					"photoURL":   r.identity.AvatarURL,
				},
			},
		},
	}
}

// AvailablePresence announces the session to the service.
func (r *Requests) AvailablePresence() *stanza.Node {
	return &stanza.Node{
		Name:  "presence",
		Attrs: map[string]string{"id": "available:" + uuid.NewString()},
	}
}
