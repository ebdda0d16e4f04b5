package xmpp

import (
	"strconv"

	"github.com/tfreitas/roomsync/internal/stanza"
	"github.com/tfreitas/roomsync/internal/state"
)

// VCard is a parsed profile card.
type VCard struct {
	OwnerJID    string
	Name        string
	PhotoURL    string
	Description string
	Empty       bool
}

// ParseRoster extracts room descriptors from a roster snapshot iq. Items
// without a jid are skipped; the reconciler treats the result as the
// authoritative room set.
func ParseRoster(n *stanza.Node) []state.RoomDescriptor {
	query := n.Child("query")
	if query == nil {
		return nil
	}
	var descs []state.RoomDescriptor
	for _, item := range query.Children {
		if item == nil || item.Attr("jid") == "" {
			continue
		}
		participants, _ := strconv.Atoi(item.Attr("users_cnt"))
		descs = append(descs, state.RoomDescriptor{
			JID:          item.Attr("jid"),
			Name:         item.Attr("name"),
			Participants: participants,
			Thumbnail:    noneToEmpty(item.Attr("room_thumbnail")),
			Background:   noneToEmpty(item.Attr("room_background")),
		})
	}
	return descs
}

// Rooms without custom art report the literal string "none".
func noneToEmpty(v string) string {
	if v == "none" {
		return ""
	}
	return v
}

// ParseComposing extracts the typing indicator from a chat-state message.
// The sender rides in a data element; the room is the bare from address.
func ParseComposing(n *stanza.Node, active bool) (state.Composing, bool) {
	roomJID, err := stanza.BareJID(n.From())
	if err != nil {
		return state.Composing{}, false
	}
	c := state.Composing{
		Active:  active,
		RoomJID: roomJID,
	}
	if data := n.Child("data"); data != nil {
		c.Username = data.Attr("fullName")
		c.WalletHandle = data.Attr("manipulatedWalletAddress")
	}
	if active && c.Username == "" {
		// A start without an actor is unusable for display.
		return state.Composing{}, false
	}
	if !active {
		c.Username = ""
	}
	return c, true
}

// ParseRolePresence extracts the occupant role granted by a room. The room
// is the bare from address; the role sits on the x element's item child.
func ParseRolePresence(n *stanza.Node) (roomJID, role string, ok bool) {
	roomJID, err := stanza.BareJID(n.From())
	if err != nil {
		return "", "", false
	}
	item := n.Find("item")
	if item == nil || item.Attr("role") == "" {
		return "", "", false
	}
	return roomJID, item.Attr("role"), true
}

// ParseVCard extracts a profile card response. An empty card (no children
// under vCard) reports Empty so the caller can publish defaults.
func ParseVCard(n *stanza.Node) VCard {
	card := VCard{OwnerJID: n.From()}
	vc := n.Child("vCard")
	if vc == nil || len(vc.Children) == 0 {
		card.Empty = true
		return card
	}
	for _, c := range vc.Children {
		if c == nil {
			continue
		}
		switch c.Name {
		case "FN", "NICKNAME":
			if card.Name == "" {
				card.Name = c.Text
			}
		case "URL", "PHOTO":
			if card.PhotoURL == "" {
				card.PhotoURL = c.Text
			}
		case "DESC":
			card.Description = c.Text
		}
	}
	return card
}

// ParseBlocklist extracts blocked sender JIDs from a blocklist snapshot.
func ParseBlocklist(n *stanza.Node) []string {
	query := n.Child("query")
	if query == nil {
		return nil
	}
	var jids []string
	for _, item := range query.Children {
		if item == nil || item.Attr("user") == "" {
			continue
		}
		jids = append(jids, item.Attr("user"))
	}
	return jids
}

// ParseMembers extracts the member listing of a room info response.
func ParseMembers(n *stanza.Node) []state.MemberInfo {
	query := n.Child("query")
	if query == nil {
		return nil
	}
	var members []state.MemberInfo
	for _, item := range query.Children {
		if item == nil || item.Attr("jid") == "" {
			continue
		}
		members = append(members, state.MemberInfo{
			JID:        item.Attr("jid"),
			Name:       item.Attr("name"),
			Role:       item.Attr("role"),
			Profile:    item.Attr("profile"),
			BanStatus:  item.Attr("ban_status"),
			LastActive: item.Attr("last_active"),
		})
	}
	return members
}
