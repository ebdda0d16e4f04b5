package state

import "testing"

func TestAddMessageDedup(t *testing.T) {
	s := NewStore()

	if !s.AddMessage(Message{ID: "m1", RoomJID: "r1", Text: "hi"}) {
		t.Fatal("first AddMessage returned false")
	}
	if s.AddMessage(Message{ID: "m1", RoomJID: "r1", Text: "changed"}) {
		t.Error("duplicate AddMessage returned true")
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "hi" {
		t.Errorf("text = %q, want original %q", msgs[0].Text, "hi")
	}
}

func TestMessagesArrivalOrder(t *testing.T) {
	s := NewStore()
	// Out of timestamp order on purpose: insertion order must be preserved.
	s.AddMessage(Message{ID: "m2", Timestamp: 2000})
	s.AddMessage(Message{ID: "m1", Timestamp: 1000})

	msgs := s.Messages()
	if msgs[0].ID != "m2" || msgs[1].ID != "m1" {
		t.Errorf("order = %s,%s, want m2,m1", msgs[0].ID, msgs[1].ID)
	}
}

func TestOldestMessagePicksByTimestampPerRoom(t *testing.T) {
	s := NewStore()
	s.AddMessage(Message{ID: "m2", RoomJID: "a@conf", Timestamp: 2000})
	s.AddMessage(Message{ID: "m1", RoomJID: "a@conf", Timestamp: 1000})
	s.AddMessage(Message{ID: "m0", RoomJID: "b@conf", Timestamp: 500})

	got, ok := s.OldestMessage("a@conf")
	if !ok || got.ID != "m1" {
		t.Errorf("oldest = %s (%v), want m1", got.ID, ok)
	}
	if _, ok := s.OldestMessage("empty@conf"); ok {
		t.Error("found an oldest message in a room with none loaded")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.AddMessage(Message{ID: "m1", Text: "hi"})

	snap := s.Messages()
	snap[0].Text = "mutated"

	got, _ := s.Message("m1")
	if got.Text != "hi" {
		t.Error("snapshot mutation leaked into store")
	}
}

func TestAddTokenAmount(t *testing.T) {
	s := NewStore()
	s.AddMessage(Message{ID: "m1", TokenAmount: 2})

	if !s.AddTokenAmount("m1", 5) {
		t.Fatal("AddTokenAmount returned false for existing message")
	}
	m, _ := s.Message("m1")
	if m.TokenAmount != 7 {
		t.Errorf("tokenAmount = %d, want 7", m.TokenAmount)
	}

	if s.AddTokenAmount("missing", 1) {
		t.Error("AddTokenAmount returned true for missing message")
	}
}

func TestMarkWrapped(t *testing.T) {
	s := NewStore()
	s.AddMessage(Message{ID: "m1"})

	if !s.MarkWrapped("m1", "nft-9", "0xabc") {
		t.Fatal("MarkWrapped returned false")
	}
	m, _ := s.Message("m1")
	if m.NFTID != "nft-9" || m.ContractAddress != "0xabc" {
		t.Errorf("wrap = %q/%q, want nft-9/0xabc", m.NFTID, m.ContractAddress)
	}
}

func TestUpsertRoomPreservesOrder(t *testing.T) {
	s := NewStore()
	s.UpsertRoom(Room{JID: "a", Name: "A"})
	s.UpsertRoom(Room{JID: "b", Name: "B"})
	s.UpsertRoom(Room{JID: "a", Name: "A2", Participants: 3})

	rooms := s.Rooms()
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	if rooms[0].JID != "a" || rooms[0].Name != "A2" {
		t.Errorf("rooms[0] = %+v, want updated room a first", rooms[0])
	}
}

func TestUnreadCounters(t *testing.T) {
	s := NewStore()
	s.UpsertRoom(Room{JID: "r1"})

	s.IncrementUnread("r1")
	s.IncrementUnread("r1")
	if r, _ := s.Room("r1"); r.Unread != 2 {
		t.Errorf("unread = %d, want 2", r.Unread)
	}

	s.ClearUnread("r1")
	if r, _ := s.Room("r1"); r.Unread != 0 {
		t.Errorf("unread after clear = %d, want 0", r.Unread)
	}
}

func TestSetMutedTouchesRoomAndSummary(t *testing.T) {
	s := NewStore()
	s.UpsertRoom(Room{JID: "r1"})
	s.SetSummary("r1", RoomSummary{LastUserText: "hi"})

	s.SetMuted("r1", true)

	if r, _ := s.Room("r1"); !r.Muted {
		t.Error("room not muted")
	}
	if sum, _ := s.Summary("r1"); !sum.Muted {
		t.Error("summary not muted")
	}
	if sum, _ := s.Summary("r1"); sum.LastUserText != "hi" {
		t.Error("summary preview clobbered by mute")
	}
}

func TestComposingSingleton(t *testing.T) {
	s := NewStore()
	s.SetComposing(Composing{Active: true, Username: "alice", RoomJID: "r1"})
	// A start in another room overwrites; there is one indicator per process.
	s.SetComposing(Composing{Active: true, Username: "bob", RoomJID: "r2"})

	c := s.Composing()
	if c.Username != "bob" || c.RoomJID != "r2" {
		t.Errorf("composing = %+v, want bob/r2", c)
	}
}

func TestBlocklist(t *testing.T) {
	s := NewStore()
	s.SetBlocklist([]string{"u1", "u2"})

	if !s.IsBlocked("u1") {
		t.Error("u1 should be blocked")
	}
	if s.IsBlocked("u3") {
		t.Error("u3 should not be blocked")
	}

	s.SetBlocklist([]string{"u3"})
	if s.IsBlocked("u1") {
		t.Error("blocklist replace should drop u1")
	}
}

func TestRolesLastWriteWins(t *testing.T) {
	s := NewStore()
	s.SetRole("r1", "participant")
	s.SetRole("r1", "moderator")
	if s.Role("r1") != "moderator" {
		t.Errorf("role = %q, want moderator", s.Role("r1"))
	}
}
