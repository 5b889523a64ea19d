package nav

import (
	"path/filepath"
	"testing"

	"washfleet/config"
	"washfleet/dispatch"
	"washfleet/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestResolve(t *testing.T) {
	tests := []struct {
		kind, status string
		wantKind     TargetKind
		wantRoom     string
	}{
		{dispatch.KindFulfillment, dispatch.StatusAccepted, TargetRoom, "203"},
		{dispatch.KindFulfillment, dispatch.StatusFinishedWashingGoingToRoom, TargetRoom, "203"},
		{dispatch.KindFulfillment, dispatch.StatusLaundryLoaded, TargetBase, ""},
		{dispatch.KindFulfillment, dispatch.StatusFinishedWashingGoingToBase, TargetBase, ""},
		{dispatch.KindFulfillment, dispatch.StatusCancelled, TargetBase, ""},
		{dispatch.KindFulfillment, dispatch.StatusPending, TargetNone, ""},
		{dispatch.KindFulfillment, dispatch.StatusWashing, TargetNone, ""},
		{dispatch.KindFulfillment, dispatch.StatusArrivedAtRoom, TargetNone, ""},
		{dispatch.KindFulfillment, dispatch.StatusCompleted, TargetNone, ""},
		{dispatch.KindAdhoc, dispatch.StatusAccepted, TargetRoom, "203"},
		{dispatch.KindAdhoc, dispatch.StatusCancelled, TargetBase, ""},
		{dispatch.KindAdhoc, dispatch.StatusCompleted, TargetNone, ""},
	}
	for _, tt := range tests {
		got := Resolve(tt.kind, tt.status, "203")
		if got.Kind != tt.wantKind {
			t.Errorf("Resolve(%s, %s) kind = %v, want %v", tt.kind, tt.status, got.Kind, tt.wantKind)
		}
		if tt.wantKind == TargetRoom && got.Room != tt.wantRoom {
			t.Errorf("Resolve(%s, %s) room = %q, want %q", tt.kind, tt.status, got.Room, tt.wantRoom)
		}
	}
}

func TestRegistryReload(t *testing.T) {
	db := testDB(t)
	db.UpsertRoom(&store.Room{Name: "203", FloorColor: "blue"})
	db.UpsertRoom(&store.Room{Name: "Base"})
	db.UpsertBeacon(&store.Beacon{MAC: "aa:bb:cc:dd:ee:01", RoomName: "203", Threshold: -65})
	db.UpsertBeacon(&store.Beacon{MAC: "AA:BB:CC:DD:EE:FF", RoomName: "Base", Threshold: -60, IsBase: true})

	reg := NewRegistry(db)
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	// MAC lookup is case-insensitive.
	if _, ok := reg.Beacon("AA:BB:CC:DD:EE:01"); !ok {
		t.Error("beacon should be found regardless of MAC case")
	}

	// Room matching is case-insensitive.
	if !reg.RoomExists("203") {
		t.Error("room 203 should exist")
	}
	if !reg.RoomExists("BASE") {
		t.Error("room lookup should be case-insensitive")
	}
	if reg.RoomExists("999") {
		t.Error("room 999 should not exist")
	}
	if got := reg.FloorColor("203"); got != "blue" {
		t.Errorf("FloorColor = %q, want %q", got, "blue")
	}

	base := reg.BaseBeacons()
	if len(base) != 1 || base[0].MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("base beacons = %v, want the flagged beacon", base)
	}

	// Reload picks up changes.
	db.UpsertBeacon(&store.Beacon{MAC: "AA:BB:CC:DD:EE:02", RoomName: "203", Threshold: -70})
	reg.Reload()
	if got := len(reg.BeaconsForRoom("203")); got != 2 {
		t.Errorf("beacons for 203 = %d, want 2", got)
	}
}

func TestTargetBeacons(t *testing.T) {
	db := testDB(t)
	db.UpsertRoom(&store.Room{Name: "203"})
	db.UpsertRoom(&store.Room{Name: "Base"})
	db.UpsertBeacon(&store.Beacon{MAC: "AA:BB:CC:DD:EE:01", RoomName: "203", Threshold: -65})
	db.UpsertBeacon(&store.Beacon{MAC: "AA:BB:CC:DD:EE:FF", RoomName: "Base", Threshold: -60, IsBase: true})

	reg := NewRegistry(db)
	reg.Reload()

	if got := reg.TargetBeacons(Target{Kind: TargetRoom, Room: "203"}); len(got) != 1 {
		t.Errorf("room target beacons = %d, want 1", len(got))
	}
	if got := reg.TargetBeacons(Target{Kind: TargetBase}); len(got) != 1 {
		t.Errorf("base target beacons = %d, want 1", len(got))
	}
	// Unknown room is a warning, not an error: no beacons, robot idles.
	if got := reg.TargetBeacons(Target{Kind: TargetRoom, Room: "999"}); len(got) != 0 {
		t.Errorf("unknown room beacons = %d, want 0", len(got))
	}
	if got := reg.TargetBeacons(Target{Kind: TargetNone}); got != nil {
		t.Errorf("no-target beacons = %v, want nil", got)
	}
}
