package stanza

// Category is the semantic class of an inbound stanza.
type Category int

const (
	Unknown Category = iota
	RoomRosterSnapshot
	ArchivedMessage
	ArchiveBatchComplete
	PaginatedArchiveComplete
	LiveMessage
	ComposingStart
	ComposingStop
	RolePresence
	VCardSelf
	VCardOther
	BlocklistSnapshot
	BlocklistMutationAck
	RoomCreatedAck
	RoomImageAck
	RoomMemberInfo
	RoomInvite
	NewSubscription
	ProtocolError
)

var categoryNames = map[Category]string{
	Unknown:                  "unknown",
	RoomRosterSnapshot:       "room_roster_snapshot",
	ArchivedMessage:          "archived_message",
	ArchiveBatchComplete:     "archive_batch_complete",
	PaginatedArchiveComplete: "paginated_archive_complete",
	LiveMessage:              "live_message",
	ComposingStart:           "composing_start",
	ComposingStop:            "composing_stop",
	RolePresence:             "role_presence",
	VCardSelf:                "vcard_self",
	VCardOther:               "vcard_other",
	BlocklistSnapshot:        "blocklist_snapshot",
	BlocklistMutationAck:     "blocklist_mutation_ack",
	RoomCreatedAck:           "room_created_ack",
	RoomImageAck:             "room_image_ack",
	RoomMemberInfo:           "room_member_info",
	RoomInvite:               "room_invite",
	NewSubscription:          "new_subscription",
	ProtocolError:            "protocol_error",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "unknown"
}

// Request purposes carried in correlation ids. Responses echo the request
// id, so classification keys off the purpose prefix.
const (
	PurposeRoster           = "getUserRooms"
	PurposeArchive          = "getArchive"
	PurposePaginatedArchive = "paginatedArchive"
	PurposeSendMessage      = "sendMessage"
	PurposeComposing        = "isComposing"
	PurposePausedComposing  = "pausedComposing"
	PurposeRoomPresence     = "roomPresence"
	PurposeVCardSelf        = "vCardSelf"
	PurposeVCardOther       = "vCardOther"
	PurposeBlocklist        = "getBlocklist"
	PurposeBlock            = "addToBlocklist"
	PurposeUnblock          = "removeFromBlocklist"
	PurposeCreateRoom       = "createRoom"
	PurposeRoomImage        = "setRoomImage"
	PurposeMemberInfo       = "roomMemberInfo"
	PurposeNewSubscription  = "newSubscription"
)

// MAMNamespace marks an archived (history replay) message payload.
const MAMNamespace = "urn:xmpp:mam:2"

// Classify determines the semantic category of a stanza from its
// correlation id, namespace, and child element names. It is a pure function
// and never panics on malformed trees; anything unrecognized degrades to
// Unknown so the dispatch loop can drop it.
func Classify(n *Node) Category {
	if n == nil {
		return Unknown
	}

	if n.Attr("type") == "error" {
		return ProtocolError
	}

	purpose := Purpose(n.ID())

	switch n.Name {
	case "message":
		if r := n.Child("result"); r != nil && r.Attr("xmlns") == MAMNamespace {
			return ArchivedMessage
		}
		switch purpose {
		case PurposeSendMessage:
			return LiveMessage
		case PurposeComposing:
			return ComposingStart
		case PurposePausedComposing:
			return ComposingStop
		}
		if InviteRoomJID(n) != "" {
			return RoomInvite
		}

	case "presence":
		if purpose == PurposeRoomPresence {
			return RolePresence
		}

	case "iq":
		switch purpose {
		case PurposeRoster:
			return RoomRosterSnapshot
		case PurposeVCardSelf:
			return VCardSelf
		case PurposeVCardOther:
			return VCardOther
		case PurposeBlocklist:
			return BlocklistSnapshot
		case PurposeBlock, PurposeUnblock:
			return BlocklistMutationAck
		case PurposeCreateRoom:
			return RoomCreatedAck
		case PurposeRoomImage:
			return RoomImageAck
		case PurposeMemberInfo:
			return RoomMemberInfo
		case PurposeNewSubscription:
			return NewSubscription
		}
	}

	// Archive completion markers ("fin") arrive on varying element types
	// depending on server version; match by purpose and shape instead.
	switch purpose {
	case PurposeArchive:
		if n.Child("fin") != nil {
			return ArchiveBatchComplete
		}
	case PurposePaginatedArchive:
		if n.Child("fin") != nil {
			return PaginatedArchiveComplete
		}
	}

	return Unknown
}

// InviteRoomJID extracts the invited room JID from a message stanza
// carrying an invite, or empty string. Invites nest at varying depths; the
// room JID is taken from a sibling element carrying a jid attribute, falling
// back to the invite's own jid attribute. Fails closed on shape mismatch.
func InviteRoomJID(n *Node) string {
	inv := n.Find("invite")
	if inv == nil {
		return ""
	}
	for _, c := range n.Children {
		if c != nil && c.Attr("jid") != "" {
			return c.Attr("jid")
		}
	}
	return inv.Attr("jid")
}
