package store

import (
	"path/filepath"
	"testing"

	"github.com/tfreitas/roomsync/internal/state"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertAndGetRoom(t *testing.T) {
	db := testDB(t)

	r := &state.Room{JID: "r1@conf", Name: "Room A", Participants: 3}
	if err := db.UpsertRoom(r); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRoom("r1@conf")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "Room A" || got.Participants != 3 {
		t.Errorf("got %+v, want Room A with 3 participants", got)
	}

	r.Participants = 4
	if err := db.UpsertRoom(r); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetRoom("r1@conf")
	if got.Participants != 4 {
		t.Errorf("participants = %d, want 4 after upsert", got.Participants)
	}
}

func TestGetRoomMissing(t *testing.T) {
	db := testDB(t)
	got, err := db.GetRoom("missing@conf")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing room", got)
	}
}

func TestInsertMessageIdempotent(t *testing.T) {
	db := testDB(t)

	m := &state.Message{ID: "m1", RoomJID: "r1@conf", Text: "v1", Timestamp: 1000}
	if err := db.InsertMessage(m); err != nil {
		t.Fatal(err)
	}

	// Redelivery with different body must not mutate the stored row.
	m2 := &state.Message{ID: "m1", RoomJID: "r1@conf", Text: "v2", Timestamp: 1000}
	if err := db.InsertMessage(m2); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.AllMessages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "v1" {
		t.Errorf("body = %q, want original v1", msgs[0].Text)
	}
}

func TestAllMessagesArrivalOrder(t *testing.T) {
	db := testDB(t)

	// Inserted out of timestamp order; AllMessages must preserve insertion order.
	_ = db.InsertMessage(&state.Message{ID: "m2", RoomJID: "r1", Timestamp: 2000})
	_ = db.InsertMessage(&state.Message{ID: "m1", RoomJID: "r1", Timestamp: 1000})

	msgs, err := db.AllMessages()
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].ID != "m2" || msgs[1].ID != "m1" {
		t.Errorf("order = %s,%s, want m2,m1", msgs[0].ID, msgs[1].ID)
	}
}

func TestAddTokenAmount(t *testing.T) {
	db := testDB(t)
	_ = db.InsertMessage(&state.Message{ID: "m1", RoomJID: "r1", TokenAmount: 2})

	if err := db.AddTokenAmount("m1", 5); err != nil {
		t.Fatal(err)
	}
	if err := db.AddTokenAmount("m1", 3); err != nil {
		t.Fatal(err)
	}

	msgs, _ := db.AllMessages()
	if msgs[0].TokenAmount != 10 {
		t.Errorf("tokenAmount = %d, want 10 (accumulated)", msgs[0].TokenAmount)
	}
}

func TestMarkWrapped(t *testing.T) {
	db := testDB(t)
	_ = db.InsertMessage(&state.Message{ID: "m1", RoomJID: "r1"})

	if err := db.MarkWrapped("m1", "nft-1", "0xdead"); err != nil {
		t.Fatal(err)
	}
	msgs, _ := db.AllMessages()
	if msgs[0].NFTID != "nft-1" || msgs[0].ContractAddress != "0xdead" {
		t.Errorf("wrap = %q/%q", msgs[0].NFTID, msgs[0].ContractAddress)
	}
}

func TestListRoomMessages(t *testing.T) {
	db := testDB(t)
	_ = db.InsertMessage(&state.Message{ID: "m1", RoomJID: "r1", Timestamp: 1000})
	_ = db.InsertMessage(&state.Message{ID: "m2", RoomJID: "r1", Timestamp: 2000})
	_ = db.InsertMessage(&state.Message{ID: "m3", RoomJID: "r2", Timestamp: 3000})

	msgs, err := db.ListRoomMessages("r1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m2" {
		t.Errorf("first = %s, want m2 (newest first)", msgs[0].ID)
	}
}

func TestSettings(t *testing.T) {
	db := testDB(t)

	if err := db.PutSetting(SettingProfileName, "Alice"); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSetting(SettingProfileName, "Alice D"); err != nil {
		t.Fatal(err)
	}

	v, err := db.GetSetting(SettingProfileName)
	if err != nil {
		t.Fatal(err)
	}
	if v != "Alice D" {
		t.Errorf("value = %q, want Alice D", v)
	}

	v, err = db.GetSetting("missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("missing key = %q, want empty", v)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("c1", "r1@conf", "hello"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].RoomJID != "r1@conf" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := db.MarkOutboxSending("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("c1"); err != nil {
		t.Fatal(err)
	}

	pending, _ = db.PendingOutbox()
	if len(pending) != 0 {
		t.Errorf("pending after sent = %d, want 0", len(pending))
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)
	_ = db.InsertMessage(&state.Message{ID: "m1", RoomJID: "r1", Text: "deploy the new build", Timestamp: 1000})
	_ = db.InsertMessage(&state.Message{ID: "m2", RoomJID: "r2", Text: "lunch plans", Timestamp: 2000})

	results, err := db.SearchMessages("deploy", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.ID != "m1" {
		t.Fatalf("results = %+v, want only m1", results)
	}

	results, err = db.SearchMessages("deploy", "r2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("room-scoped search found %d, want 0", len(results))
	}
}
