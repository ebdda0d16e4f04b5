package stanza

import (
	"errors"
	"testing"
	"time"
)

func liveMessage() *Node {
	return el("message", map[string]string{"id": "sendMessage:1", "from": "room@conf.example/alice"},
		el("body", nil),
		el("data", map[string]string{
			"senderJID":       "alice@example",
			"senderFirstName": "Alice",
			"senderLastName":  "Doe",
			"photoURL":        "https://cdn/ava.png",
		}),
		el("archived", map[string]string{"id": "srv-001"}),
	)
}

func TestNormalizeLive(t *testing.T) {
	n := liveMessage()
	n.Child("body").Text = "hello there"

	msg, err := Normalize(n, Live)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if msg.ID != "srv-001" {
		t.Errorf("ID = %q, want srv-001", msg.ID)
	}
	if msg.RoomJID != "room@conf.example" {
		t.Errorf("RoomJID = %q, want room@conf.example", msg.RoomJID)
	}
	if msg.Sender.ID != "alice@example" || msg.Sender.Name != "Alice Doe" {
		t.Errorf("Sender = %+v", msg.Sender)
	}
	if msg.Text != "hello there" {
		t.Errorf("Text = %q", msg.Text)
	}
	if msg.IsSystem {
		t.Error("IsSystem should be false")
	}
	if msg.Timestamp == 0 {
		t.Error("Timestamp not defaulted")
	}
}

func TestNormalizeLiveStanzaID(t *testing.T) {
	n := el("message", map[string]string{"from": "room@conf/bob"},
		el("data", map[string]string{"senderJID": "bob@example", "senderName": "Bob"}),
		el("stanza-id", map[string]string{"id": "sid-9"}),
	)

	msg, err := Normalize(n, Live)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "sid-9" {
		t.Errorf("ID = %q, want sid-9 (stanza-id preferred)", msg.ID)
	}
	if msg.Sender.Name != "Bob" {
		t.Errorf("Sender.Name = %q, want senderName attr", msg.Sender.Name)
	}
}

func TestNormalizeArchived(t *testing.T) {
	stamp := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	n := el("message", map[string]string{"from": "room@conf.example"},
		el("result", map[string]string{"xmlns": MAMNamespace, "id": "arch-7"},
			el("forwarded", nil,
				el("delay", map[string]string{"stamp": stamp.Format(time.RFC3339)}),
				el("message", map[string]string{"from": "room@conf.example/alice"},
					el("body", nil),
					el("data", map[string]string{
						"senderJID":         "alice@example",
						"senderName":        "Alice",
						"isSystemMessage":   "true",
						"tokenAmount":       "5",
						"receiverMessageId": "srv-001",
					}),
				),
			),
		),
	)

	msg, err := Normalize(n, Archived)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if msg.ID != "arch-7" {
		t.Errorf("ID = %q, want arch-7", msg.ID)
	}
	if !msg.IsSystem || msg.TokenAmount != 5 || msg.ReceiverMessageID != "srv-001" {
		t.Errorf("settlement fields = system:%v amount:%d ref:%q", msg.IsSystem, msg.TokenAmount, msg.ReceiverMessageID)
	}
	if msg.Timestamp != stamp.UnixMilli() {
		t.Errorf("Timestamp = %d, want delay stamp %d", msg.Timestamp, stamp.UnixMilli())
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		n    *Node
		mode Mode
	}{
		{"nil", nil, Live},
		{"no id anywhere", el("message", map[string]string{"from": "room@conf/a"},
			el("data", map[string]string{"senderJID": "a@x"})), Live},
		{"no from", el("message", map[string]string{},
			el("data", map[string]string{"senderJID": "a@x"}),
			el("archived", map[string]string{"id": "m1"})), Live},
		{"no data element", el("message", map[string]string{"from": "room@conf/a"},
			el("archived", map[string]string{"id": "m1"})), Live},
		{"no sender jid", el("message", map[string]string{"from": "room@conf/a"},
			el("data", map[string]string{"senderName": "x"}),
			el("archived", map[string]string{"id": "m1"})), Live},
		{"bad token amount", el("message", map[string]string{"from": "room@conf/a"},
			el("data", map[string]string{"senderJID": "a@x", "tokenAmount": "lots"}),
			el("archived", map[string]string{"id": "m1"})), Live},
		{"archived without result", el("message", map[string]string{"from": "room@conf"}), Archived},
		{"archived without forwarded", el("message", map[string]string{"from": "room@conf"},
			el("result", map[string]string{"xmlns": MAMNamespace})), Archived},
		{"archived without inner message", el("message", map[string]string{"from": "room@conf"},
			el("result", map[string]string{"xmlns": MAMNamespace}, el("forwarded", nil))), Archived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.n, tt.mode)
			if err == nil {
				t.Fatal("Normalize() expected error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBareJID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"room@conf.example/alice", "room@conf.example"},
		{"room@conf.example", "room@conf.example"},
	}
	for _, tt := range tests {
		got, err := BareJID(tt.in)
		if err != nil {
			t.Fatalf("BareJID(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("BareJID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := BareJID(""); err == nil {
		t.Error("BareJID(\"\") expected error")
	}
}

func TestResource(t *testing.T) {
	if got := Resource("room@conf/alice"); got != "alice" {
		t.Errorf("Resource() = %q, want alice", got)
	}
	if got := Resource("room@conf"); got != "" {
		t.Errorf("Resource() = %q, want empty", got)
	}
}
