package store

import (
	"os"
	"path/filepath"
	"testing"

	"washfleet/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

// --- Request tests ---

func TestRequestCRUD(t *testing.T) {
	db := testDB(t)

	r := &Request{
		UUID:         "uuid-1",
		Kind:         "fulfillment",
		CustomerID:   "cust-1",
		CustomerName: "Alice",
		Room:         "203",
		Status:       "Pending",
	}
	if err := db.CreateRequest(r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == 0 {
		t.Fatal("ID should be assigned")
	}

	got, err := db.GetRequest(r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UUID != "uuid-1" {
		t.Errorf("UUID = %q, want %q", got.UUID, "uuid-1")
	}
	if got.Status != "Pending" {
		t.Errorf("Status = %q, want %q", got.Status, "Pending")
	}
	if got.Room != "203" {
		t.Errorf("Room = %q, want %q", got.Room, "203")
	}
	if got.RequestedAt.IsZero() {
		t.Error("RequestedAt should be set")
	}

	got2, err := db.GetRequestByUUID("uuid-1")
	if err != nil {
		t.Fatalf("getByUUID: %v", err)
	}
	if got2.ID != r.ID {
		t.Errorf("getByUUID ID = %d, want %d", got2.ID, r.ID)
	}

	// UpdateStatus also appends history; creation already wrote one row.
	db.UpdateRequestStatus(r.ID, "Accepted", "assigned to bot-1")
	got3, _ := db.GetRequest(r.ID)
	if got3.Status != "Accepted" {
		t.Errorf("Status after update = %q, want %q", got3.Status, "Accepted")
	}

	history, _ := db.ListRequestHistory(r.ID)
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2", len(history))
	}
	if history[1].Status != "Accepted" {
		t.Errorf("history status = %q, want %q", history[1].Status, "Accepted")
	}

	db.SetRequestRobot(r.ID, "bot-1")
	got4, _ := db.GetRequest(r.ID)
	if got4.Robot != "bot-1" {
		t.Errorf("Robot = %q, want %q", got4.Robot, "bot-1")
	}
}

func TestStampRequestTime(t *testing.T) {
	db := testDB(t)

	r := &Request{UUID: "u1", Kind: "fulfillment", Status: "Pending"}
	db.CreateRequest(r)

	if err := db.StampRequestTime(r.ID, "accepted_at"); err != nil {
		t.Fatalf("stamp: %v", err)
	}
	got, _ := db.GetRequest(r.ID)
	if got.AcceptedAt == nil {
		t.Fatal("AcceptedAt should be set")
	}
	first := *got.AcceptedAt

	// Stamping again must not move the timestamp.
	if err := db.StampRequestTime(r.ID, "accepted_at"); err != nil {
		t.Fatalf("re-stamp: %v", err)
	}
	got2, _ := db.GetRequest(r.ID)
	if got2.AcceptedAt == nil || !got2.AcceptedAt.Equal(first) {
		t.Errorf("AcceptedAt moved: %v -> %v", first, got2.AcceptedAt)
	}

	// Unknown column is rejected.
	if err := db.StampRequestTime(r.ID, "status"); err == nil {
		t.Error("expected error for non-timestamp column")
	}
}

func TestResetRequestToPending(t *testing.T) {
	db := testDB(t)

	r := &Request{UUID: "u1", Kind: "fulfillment", Status: "Accepted", Robot: "bot-1"}
	db.CreateRequest(r)
	db.StampRequestTime(r.ID, "accepted_at")

	if err := db.ResetRequestToPending(r.ID, "preempted by older request"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ := db.GetRequest(r.ID)
	if got.Status != "Pending" {
		t.Errorf("Status = %q, want %q", got.Status, "Pending")
	}
	if got.Robot != "" {
		t.Errorf("Robot = %q, want empty", got.Robot)
	}
	if got.AcceptedAt != nil {
		t.Error("AcceptedAt should be cleared")
	}
}

func TestOldestPending(t *testing.T) {
	db := testDB(t)

	none, err := db.OldestPending()
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if none != nil {
		t.Fatal("expected nil on empty table")
	}

	r1 := &Request{UUID: "u1", Kind: "fulfillment", Status: "Pending"}
	r2 := &Request{UUID: "u2", Kind: "fulfillment", Status: "Pending"}
	adhoc := &Request{UUID: "u3", Kind: "adhoc", Status: "Pending"}
	db.CreateRequest(r1)
	db.CreateRequest(r2)
	db.CreateRequest(adhoc)

	got, err := db.OldestPending()
	if err != nil {
		t.Fatalf("oldest: %v", err)
	}
	if got.ID != r1.ID {
		t.Errorf("oldest = %d, want %d (FIFO)", got.ID, r1.ID)
	}

	// Ad-hoc navigation never enters the fulfillment queue.
	db.UpdateRequestStatus(r1.ID, "Accepted", "")
	db.UpdateRequestStatus(r2.ID, "Cancelled", "")
	got2, _ := db.OldestPending()
	if got2 != nil {
		t.Errorf("expected nil, got %d", got2.ID)
	}
}

func TestOldestReadyToDeliver(t *testing.T) {
	db := testDB(t)

	r1 := &Request{UUID: "u1", Kind: "fulfillment", Status: "Washing"}
	r2 := &Request{UUID: "u2", Kind: "fulfillment", Status: "Washing"}
	db.CreateRequest(r1)
	db.CreateRequest(r2)

	db.UpdateRequestStatus(r2.ID, "FinishedWashingReadyToDeliver", "")
	db.StampRequestTime(r2.ID, "wash_done_at")
	db.UpdateRequestStatus(r1.ID, "FinishedWashingReadyToDeliver", "")
	db.StampRequestTime(r1.ID, "wash_done_at")

	got, err := db.OldestReadyToDeliver()
	if err != nil {
		t.Fatalf("oldest: %v", err)
	}
	// r2 finished washing first, so it delivers first regardless of creation order.
	if got.ID != r2.ID {
		t.Errorf("oldest = %d, want %d", got.ID, r2.ID)
	}
}

func TestListActiveRequests(t *testing.T) {
	db := testDB(t)

	db.CreateRequest(&Request{UUID: "u1", Kind: "fulfillment", Status: "Pending"})
	db.CreateRequest(&Request{UUID: "u2", Kind: "fulfillment", Status: "Accepted", Robot: "bot-1"})
	db.CreateRequest(&Request{UUID: "u3", Kind: "fulfillment", Status: "Completed"})
	db.CreateRequest(&Request{UUID: "u4", Kind: "fulfillment", Status: "Cancelled"})
	db.CreateRequest(&Request{UUID: "u5", Kind: "fulfillment", Status: "Declined"})

	active, err := db.ListActiveRequests()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active len = %d, want 2", len(active))
	}

	byRobot, _ := db.ListActiveByRobot("bot-1")
	if len(byRobot) != 1 {
		t.Errorf("byRobot len = %d, want 1", len(byRobot))
	}

	n, _ := db.CountActiveFulfillment()
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestCancelAllForRobot(t *testing.T) {
	db := testDB(t)

	r1 := &Request{UUID: "u1", Kind: "fulfillment", Status: "Accepted", Robot: "bot-1"}
	r2 := &Request{UUID: "u2", Kind: "adhoc", Status: "Accepted", Robot: "bot-1"}
	r3 := &Request{UUID: "u3", Kind: "fulfillment", Status: "Completed", Robot: "bot-1"}
	r4 := &Request{UUID: "u4", Kind: "fulfillment", Status: "Accepted", Robot: "bot-2"}
	db.CreateRequest(r1)
	db.CreateRequest(r2)
	db.CreateRequest(r3)
	db.CreateRequest(r4)

	ids, err := db.CancelAllForRobot("bot-1", "force stop")
	if err != nil {
		t.Fatalf("cancel all: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("cancelled %d, want 2", len(ids))
	}

	for _, id := range ids {
		got, _ := db.GetRequest(id)
		if got.Status != "Cancelled" {
			t.Errorf("request %d status = %q, want Cancelled", id, got.Status)
		}
		if got.CancelReason != "force stop" {
			t.Errorf("request %d reason = %q, want %q", id, got.CancelReason, "force stop")
		}
		if got.CompletedAt == nil {
			t.Errorf("request %d CompletedAt should be set", id)
		}
		if got.Robot != "" {
			t.Errorf("request %d robot = %q, want cleared", id, got.Robot)
		}
	}

	// Terminal and other-robot requests untouched.
	got3, _ := db.GetRequest(r3.ID)
	if got3.Status != "Completed" {
		t.Errorf("r3 status = %q, want Completed", got3.Status)
	}
	got4, _ := db.GetRequest(r4.ID)
	if got4.Status != "Accepted" {
		t.Errorf("r4 status = %q, want Accepted", got4.Status)
	}
}

func TestSetNeedsAttention(t *testing.T) {
	db := testDB(t)

	r := &Request{UUID: "u1", Kind: "fulfillment", Status: "LaundryLoaded", Robot: "bot-1"}
	db.CreateRequest(r)

	db.SetNeedsAttention(r.ID, true)
	got, _ := db.GetRequest(r.ID)
	if !got.NeedsAttention {
		t.Error("NeedsAttention should be true")
	}
	db.SetNeedsAttention(r.ID, false)
	got2, _ := db.GetRequest(r.ID)
	if got2.NeedsAttention {
		t.Error("NeedsAttention should be false")
	}
}

// --- Room and beacon tests ---

func TestRoomCRUD(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertRoom(&Room{Name: "203", FloorColor: "blue"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := db.GetRoom("203")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FloorColor != "blue" {
		t.Errorf("FloorColor = %q, want %q", got.FloorColor, "blue")
	}

	// Upsert replaces
	db.UpsertRoom(&Room{Name: "203", FloorColor: "red"})
	got2, _ := db.GetRoom("203")
	if got2.FloorColor != "red" {
		t.Errorf("FloorColor after upsert = %q, want %q", got2.FloorColor, "red")
	}

	db.UpsertRoom(&Room{Name: "Base"})
	rooms, _ := db.ListRooms()
	if len(rooms) != 2 {
		t.Errorf("len = %d, want 2", len(rooms))
	}

	if err := db.DeleteRoom("203"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteRoom("203"); err == nil {
		t.Error("expected error deleting missing room")
	}
}

func TestBeaconCRUD(t *testing.T) {
	db := testDB(t)

	db.UpsertRoom(&Room{Name: "203"})
	db.UpsertRoom(&Room{Name: "Base"})

	b := &Beacon{MAC: "AA:BB:CC:DD:EE:01", RoomName: "203", Threshold: -65, Priority: 1}
	if err := db.UpsertBeacon(b); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	db.UpsertBeacon(&Beacon{MAC: "AA:BB:CC:DD:EE:02", RoomName: "203", Threshold: -70})
	db.UpsertBeacon(&Beacon{MAC: "AA:BB:CC:DD:EE:FF", RoomName: "Base", Threshold: -60, IsBase: true})

	got, err := db.GetBeacon("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Threshold != -65 {
		t.Errorf("Threshold = %d, want -65", got.Threshold)
	}

	byRoom, _ := db.ListBeaconsByRoom("203")
	if len(byRoom) != 2 {
		t.Fatalf("byRoom len = %d, want 2", len(byRoom))
	}
	// Highest priority first
	if byRoom[0].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("first beacon = %q, want priority-1 beacon", byRoom[0].MAC)
	}

	all, _ := db.ListBeacons()
	if len(all) != 3 {
		t.Errorf("all len = %d, want 3", len(all))
	}

	// Upsert moves a beacon between rooms
	db.UpsertBeacon(&Beacon{MAC: "AA:BB:CC:DD:EE:02", RoomName: "Base", Threshold: -70})
	byRoom2, _ := db.ListBeaconsByRoom("203")
	if len(byRoom2) != 1 {
		t.Errorf("byRoom after move = %d, want 1", len(byRoom2))
	}

	if err := db.DeleteBeacon("AA:BB:CC:DD:EE:01"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteBeacon("AA:BB:CC:DD:EE:01"); err == nil {
		t.Error("expected error deleting missing beacon")
	}
}

// --- Outbox tests ---

func TestOutboxCRUD(t *testing.T) {
	db := testDB(t)

	if err := db.EnqueueOutbox("washfleet/notify/cust-1", []byte(`{"test":true}`), "arrival", "cust-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	db.EnqueueOutbox("washfleet/notify/cust-2", []byte(`{"test":2}`), "cancelled", "cust-2")

	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Topic != "washfleet/notify/cust-1" {
		t.Errorf("topic = %q, want %q", msgs[0].Topic, "washfleet/notify/cust-1")
	}
	if msgs[0].MsgType != "arrival" {
		t.Errorf("msg_type = %q, want %q", msgs[0].MsgType, "arrival")
	}

	db.AckOutbox(msgs[0].ID)
	msgs2, _ := db.ListPendingOutbox(10)
	if len(msgs2) != 1 {
		t.Errorf("pending after ack = %d, want 1", len(msgs2))
	}

	db.IncrementOutboxRetries(msgs2[0].ID)
	msgs3, _ := db.ListPendingOutbox(10)
	if msgs3[0].Retries != 1 {
		t.Errorf("retries = %d, want 1", msgs3[0].Retries)
	}
}

// --- Admin user tests ---

func TestAdminUsers(t *testing.T) {
	db := testDB(t)

	exists, err := db.AdminUserExists()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("no users expected")
	}

	if err := db.CreateAdminUser("admin", "hash"); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("hash = %q, want %q", u.PasswordHash, "hash")
	}
	exists2, _ := db.AdminUserExists()
	if !exists2 {
		t.Error("user should exist")
	}
}

// --- Dialect tests ---

func TestRebind(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SELECT * FROM t WHERE a=? AND b=?", "SELECT * FROM t WHERE a=$1 AND b=$2"},
		{"INSERT INTO t (a) VALUES (?)", "INSERT INTO t (a) VALUES ($1)"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		got := Rebind(tt.input)
		if got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
