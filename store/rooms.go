package store

import (
	"database/sql"
	"time"
)

type Room struct {
	Name       string    `json:"name"`
	FloorColor string    `json:"floor_color"`
	CreatedAt  time.Time `json:"created_at"`
}

func (db *DB) UpsertRoom(r *Room) error {
	var err error
	if db.driver == "postgres" {
		_, err = db.Exec(db.Q(`INSERT INTO rooms (name, floor_color) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET floor_color=EXCLUDED.floor_color`),
			r.Name, r.FloorColor)
	} else {
		_, err = db.Exec(`INSERT INTO rooms (name, floor_color) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET floor_color=excluded.floor_color`,
			r.Name, r.FloorColor)
	}
	return err
}

func (db *DB) GetRoom(name string) (*Room, error) {
	row := db.QueryRow(db.Q(`SELECT name, floor_color, created_at FROM rooms WHERE name=?`), name)
	var r Room
	var createdAt any
	if err := row.Scan(&r.Name, &r.FloorColor, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func (db *DB) ListRooms() ([]*Room, error) {
	rows, err := db.Query(db.Q(`SELECT name, floor_color, created_at FROM rooms ORDER BY name`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rooms []*Room
	for rows.Next() {
		var r Room
		var createdAt any
		if err := rows.Scan(&r.Name, &r.FloorColor, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		rooms = append(rooms, &r)
	}
	return rooms, rows.Err()
}

func (db *DB) DeleteRoom(name string) error {
	result, err := db.Exec(db.Q(`DELETE FROM rooms WHERE name=?`), name)
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
