package store

import (
	"database/sql"
	"time"
)

type Beacon struct {
	MAC       string    `json:"mac"`
	RoomName  string    `json:"room_name"`
	Threshold int       `json:"threshold"`
	Priority  int       `json:"priority"`
	IsBase    bool      `json:"is_base"`
	CreatedAt time.Time `json:"created_at"`
}

const beaconSelectCols = `mac, room_name, threshold, priority, is_base, created_at`

func scanBeacon(row interface{ Scan(...any) error }) (*Beacon, error) {
	var b Beacon
	var createdAt any
	if err := row.Scan(&b.MAC, &b.RoomName, &b.Threshold, &b.Priority, &b.IsBase, &createdAt); err != nil {
		return nil, err
	}
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

func (db *DB) UpsertBeacon(b *Beacon) error {
	var err error
	if db.driver == "postgres" {
		_, err = db.Exec(db.Q(`INSERT INTO beacons (mac, room_name, threshold, priority, is_base) VALUES (?, ?, ?, ?, ?) ON CONFLICT (mac) DO UPDATE SET room_name=EXCLUDED.room_name, threshold=EXCLUDED.threshold, priority=EXCLUDED.priority, is_base=EXCLUDED.is_base`),
			b.MAC, b.RoomName, b.Threshold, b.Priority, b.IsBase)
	} else {
		_, err = db.Exec(`INSERT INTO beacons (mac, room_name, threshold, priority, is_base) VALUES (?, ?, ?, ?, ?) ON CONFLICT (mac) DO UPDATE SET room_name=excluded.room_name, threshold=excluded.threshold, priority=excluded.priority, is_base=excluded.is_base`,
			b.MAC, b.RoomName, b.Threshold, b.Priority, b.IsBase)
	}
	return err
}

func (db *DB) GetBeacon(mac string) (*Beacon, error) {
	row := db.QueryRow(db.Q(`SELECT `+beaconSelectCols+` FROM beacons WHERE mac=?`), mac)
	return scanBeacon(row)
}

func (db *DB) ListBeacons() ([]*Beacon, error) {
	rows, err := db.Query(db.Q(`SELECT ` + beaconSelectCols + ` FROM beacons ORDER BY room_name, priority DESC, mac`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var beacons []*Beacon
	for rows.Next() {
		b, err := scanBeacon(rows)
		if err != nil {
			return nil, err
		}
		beacons = append(beacons, b)
	}
	return beacons, rows.Err()
}

func (db *DB) ListBeaconsByRoom(room string) ([]*Beacon, error) {
	rows, err := db.Query(db.Q(`SELECT `+beaconSelectCols+` FROM beacons WHERE room_name=? ORDER BY priority DESC, mac`), room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var beacons []*Beacon
	for rows.Next() {
		b, err := scanBeacon(rows)
		if err != nil {
			return nil, err
		}
		beacons = append(beacons, b)
	}
	return beacons, rows.Err()
}

func (db *DB) DeleteBeacon(mac string) error {
	result, err := db.Exec(db.Q(`DELETE FROM beacons WHERE mac=?`), mac)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
