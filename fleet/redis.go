package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror publishes robot snapshots to Redis so dashboards and other
// consumers can read live fleet state without touching the engine. The
// mirror is optional: a nil Mirror is a no-op, and write failures are
// logged, never surfaced, since fleet state is authoritative in memory.
type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func robotKey(name string) string {
	return fmt.Sprintf("washfleet:robot:%s", name)
}

const allRobotsKey = "washfleet:robots"

// Publish writes one robot snapshot. Entries expire so stale robots fall out
// of the mirror on their own.
func (m *Mirror) Publish(status RobotStatus) {
	if m == nil || m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, robotKey(status.Name), data, 2*time.Minute)
	pipe.SAdd(ctx, allRobotsKey, status.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("fleet: redis mirror write for %s: %v", status.Name, err)
	}
}

// Snapshot reads a mirrored robot state, for consumers outside the engine.
func (m *Mirror) Snapshot(ctx context.Context, name string) (*RobotStatus, error) {
	if m == nil || m.client == nil {
		return nil, nil
	}
	data, err := m.client.Get(ctx, robotKey(name)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s RobotStatus
	return &s, json.Unmarshal(data, &s)
}
