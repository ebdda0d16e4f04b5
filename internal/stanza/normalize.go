package stanza

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mellium.im/xmpp/jid"

	"github.com/tfreitas/roomsync/internal/state"
)

// ErrMalformed signals a payload missing required identity fields. The
// event should be dropped, not crash the pipeline.
var ErrMalformed = errors.New("malformed stanza")

// Mode selects the wire shape a message payload arrives in.
type Mode int

const (
	// Live messages carry their payload directly on the message element.
	Live Mode = iota
	// Archived messages wrap the payload in a MAM result/forwarded envelope.
	Archived
)

// Normalize converts a raw message stanza into a canonical Message. Both
// wire shapes are accepted; callers pick the mode from classification, not
// from inspecting the tree themselves. A returned error always wraps
// ErrMalformed.
func Normalize(n *Node, mode Mode) (state.Message, error) {
	if n == nil {
		return state.Message{}, fmt.Errorf("%w: nil stanza", ErrMalformed)
	}

	inner := n
	id := ""
	var ts int64

	switch mode {
	case Archived:
		result := n.Child("result")
		if result == nil || result.Attr("xmlns") != MAMNamespace {
			return state.Message{}, fmt.Errorf("%w: missing mam result", ErrMalformed)
		}
		fwd := result.Child("forwarded")
		if fwd == nil {
			return state.Message{}, fmt.Errorf("%w: missing forwarded envelope", ErrMalformed)
		}
		inner = fwd.Child("message")
		if inner == nil {
			return state.Message{}, fmt.Errorf("%w: missing forwarded message", ErrMalformed)
		}
		id = result.Attr("id")
		ts = stampMillis(fwd.Child("delay"))

	case Live:
		ts = stampMillis(n.Child("delay"))
	}

	if id == "" {
		id = archiveID(inner)
	}
	if id == "" {
		return state.Message{}, fmt.Errorf("%w: no message id", ErrMalformed)
	}
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	roomJID, err := BareJID(n.From())
	if err != nil || roomJID == "" {
		return state.Message{}, fmt.Errorf("%w: bad room jid %q", ErrMalformed, n.From())
	}

	data := inner.Child("data")
	if data == nil {
		return state.Message{}, fmt.Errorf("%w: missing data element", ErrMalformed)
	}
	senderID := data.Attr("senderJID")
	if senderID == "" {
		return state.Message{}, fmt.Errorf("%w: missing sender jid", ErrMalformed)
	}

	msg := state.Message{
		ID:      id,
		RoomJID: roomJID,
		Sender: state.Sender{
			ID:     senderID,
			Name:   senderName(data),
			Avatar: data.Attr("photoURL"),
		},
		MimeType:          data.Attr("mimetype"),
		IsSystem:          data.Attr("isSystemMessage") == "true",
		NFTID:             data.Attr("nftId"),
		ContractAddress:   data.Attr("contractAddress"),
		ReceiverMessageID: data.Attr("receiverMessageId"),
		Timestamp:         ts,
	}
	if body := inner.Child("body"); body != nil {
		msg.Text = body.Text
	}
	if raw := data.Attr("tokenAmount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return state.Message{}, fmt.Errorf("%w: bad token amount %q", ErrMalformed, raw)
		}
		msg.TokenAmount = amount
	}

	return msg, nil
}

// archiveID reads the server-assigned message id from the stanza-id or
// archived child the server stamps on every groupchat message.
func archiveID(n *Node) string {
	if sid := n.Child("stanza-id"); sid != nil && sid.Attr("id") != "" {
		return sid.Attr("id")
	}
	if arc := n.Child("archived"); arc != nil {
		return arc.Attr("id")
	}
	return ""
}

func senderName(data *Node) string {
	if name := data.Attr("senderName"); name != "" {
		return name
	}
	full := strings.TrimSpace(data.Attr("senderFirstName") + " " + data.Attr("senderLastName"))
	return full
}

func stampMillis(delay *Node) int64 {
	if delay == nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, delay.Attr("stamp"))
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// BareJID strips the resource part from an address. Room presence and
// composing stanzas arrive from "room@conference/occupant".
func BareJID(addr string) (string, error) {
	if addr == "" {
		return "", errors.New("empty jid")
	}
	j, err := jid.Parse(addr)
	if err != nil {
		return "", err
	}
	return j.Bare().String(), nil
}

// Resource returns the resource part of an address, or empty string.
func Resource(addr string) string {
	j, err := jid.Parse(addr)
	if err != nil {
		return ""
	}
	return j.Resourcepart()
}
