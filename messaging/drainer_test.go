package messaging

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"washfleet/config"
	"washfleet/store"
)

type mockPublisher struct {
	published map[string][]byte
	failTopic string
}

func (p *mockPublisher) Publish(topic string, payload []byte) error {
	if p.failTopic != "" && strings.HasPrefix(topic, p.failTopic) {
		return errBrokerDown
	}
	if p.published == nil {
		p.published = make(map[string][]byte)
	}
	p.published[topic] = payload
	return nil
}

var errBrokerDown = &brokerError{}

type brokerError struct{}

func (*brokerError) Error() string { return "broker down" }

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

func TestDrainSendsAndAcks(t *testing.T) {
	db := testDB(t)
	db.EnqueueOutbox("washfleet/notify/cust-1", []byte(`{"status":"Accepted"}`), "request.status", "cust-1")
	db.EnqueueOutbox("washfleet/notify/cust-2", []byte(`{"status":"Washing"}`), "request.status", "cust-2")

	pub := &mockPublisher{}
	d := NewOutboxDrainer(db, pub, time.Second)
	d.Drain()

	if len(pub.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.published))
	}
	pending, _ := db.ListPendingOutbox(10)
	if len(pending) != 0 {
		t.Errorf("%d messages still pending after drain", len(pending))
	}
}

func TestDrainKeepsFailedMessages(t *testing.T) {
	db := testDB(t)
	db.EnqueueOutbox("washfleet/notify/cust-1", []byte(`{}`), "request.status", "cust-1")

	pub := &mockPublisher{failTopic: "washfleet/notify"}
	d := NewOutboxDrainer(db, pub, time.Second)
	d.Drain()
	d.Drain()

	pending, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1 (message must survive broker outage)", len(pending))
	}
	if pending[0].Retries != 2 {
		t.Errorf("retries = %d, want 2", pending[0].Retries)
	}

	// Broker back up: drained and acked.
	pub.failTopic = ""
	d.Drain()
	pending, _ = db.ListPendingOutbox(10)
	if len(pending) != 0 {
		t.Errorf("%d messages still pending after recovery", len(pending))
	}
}
