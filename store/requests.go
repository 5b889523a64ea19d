package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Request struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	Kind           string     `json:"kind"`
	CustomerID     string     `json:"customer_id"`
	CustomerName   string     `json:"customer_name"`
	Robot          string     `json:"robot"`
	Room           string     `json:"room"`
	BeaconMAC      string     `json:"beacon_mac"`
	Status         string     `json:"status"`
	CancelReason   string     `json:"cancel_reason"`
	NeedsAttention bool       `json:"needs_attention"`
	RequestedAt    time.Time  `json:"requested_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
	WashDoneAt     *time.Time `json:"wash_done_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type RequestHistory struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

const requestSelectCols = `id, uuid, kind, customer_id, customer_name, robot, room, beacon_mac, status, cancel_reason, needs_attention, requested_at, accepted_at, arrived_at, loaded_at, wash_done_at, delivered_at, returned_at, completed_at, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*Request, error) {
	var r Request
	var requestedAt, createdAt, updatedAt any
	var acceptedAt, arrivedAt, loadedAt, washDoneAt, deliveredAt, returnedAt, completedAt any

	err := row.Scan(&r.ID, &r.UUID, &r.Kind, &r.CustomerID, &r.CustomerName,
		&r.Robot, &r.Room, &r.BeaconMAC, &r.Status, &r.CancelReason, &r.NeedsAttention,
		&requestedAt, &acceptedAt, &arrivedAt, &loadedAt, &washDoneAt,
		&deliveredAt, &returnedAt, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.RequestedAt = parseTime(requestedAt)
	r.AcceptedAt = parseTimePtr(acceptedAt)
	r.ArrivedAt = parseTimePtr(arrivedAt)
	r.LoadedAt = parseTimePtr(loadedAt)
	r.WashDoneAt = parseTimePtr(washDoneAt)
	r.DeliveredAt = parseTimePtr(deliveredAt)
	r.ReturnedAt = parseTimePtr(returnedAt)
	r.CompletedAt = parseTimePtr(completedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanRequests(rows *sql.Rows) ([]*Request, error) {
	var reqs []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (db *DB) CreateRequest(r *Request) error {
	result, err := db.Exec(db.Q(`INSERT INTO requests (uuid, kind, customer_id, customer_name, robot, room, beacon_mac, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.UUID, r.Kind, r.CustomerID, r.CustomerName, r.Robot, r.Room, r.BeaconMAC, r.Status)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create request last id: %w", err)
	}
	r.ID = id
	_, err = db.Exec(db.Q(`INSERT INTO request_history (request_id, status, detail) VALUES (?, ?, ?)`),
		id, r.Status, "request created")
	return err
}

func (db *DB) GetRequest(id int64) (*Request, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE id=?`, requestSelectCols)), id)
	return scanRequest(row)
}

func (db *DB) GetRequestByUUID(uuid string) (*Request, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE uuid=? ORDER BY id DESC LIMIT 1`, requestSelectCols)), uuid)
	return scanRequest(row)
}

func (db *DB) ListRequests(status string, limit int) ([]*Request, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE status=? ORDER BY id DESC LIMIT ?`, requestSelectCols)), status, limit)
	} else {
		rows, err = db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM requests ORDER BY id DESC LIMIT ?`, requestSelectCols)), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListActiveRequests returns every request still in flight. A Cancelled
// request keeps counting as active while its robot is still returning to
// base (robot not yet cleared).
func (db *DB) ListActiveRequests() ([]*Request, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE status NOT IN ('Completed', 'Declined') AND (status != 'Cancelled' OR robot != '') ORDER BY id`, requestSelectCols)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (db *DB) ListActiveByRobot(robot string) ([]*Request, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE robot=? AND status NOT IN ('Completed', 'Declined') ORDER BY id`, requestSelectCols)), robot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// OldestPending returns the oldest queued fulfillment request, or nil if none.
func (db *DB) OldestPending() (*Request, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE status='Pending' AND kind='fulfillment' ORDER BY requested_at, id LIMIT 1`, requestSelectCols)))
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// OldestReadyToDeliver returns the oldest washed request still waiting for a
// delivery run, or nil if none.
func (db *DB) OldestReadyToDeliver() (*Request, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM requests WHERE status='FinishedWashingReadyToDeliver' ORDER BY wash_done_at, id LIMIT 1`, requestSelectCols)))
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

func (db *DB) UpdateRequestStatus(id int64, status, detail string) error {
	_, err := db.Exec(db.Q(`UPDATE requests SET status=?, updated_at=datetime('now','localtime') WHERE id=?`),
		status, id)
	if err != nil {
		return err
	}
	_, err = db.Exec(db.Q(`INSERT INTO request_history (request_id, status, detail) VALUES (?, ?, ?)`),
		id, status, detail)
	return err
}

func (db *DB) SetRequestRobot(id int64, robot string) error {
	_, err := db.Exec(db.Q(`UPDATE requests SET robot=?, updated_at=datetime('now','localtime') WHERE id=?`),
		robot, id)
	return err
}

// ResetRequestToPending returns a preempted request to the queue, clearing its
// robot and acceptance timestamp so it reads as freshly queued.
func (db *DB) ResetRequestToPending(id int64, detail string) error {
	_, err := db.Exec(db.Q(`UPDATE requests SET status='Pending', robot='', accepted_at=NULL, updated_at=datetime('now','localtime') WHERE id=?`), id)
	if err != nil {
		return err
	}
	_, err = db.Exec(db.Q(`INSERT INTO request_history (request_id, status, detail) VALUES (?, 'Pending', ?)`),
		id, detail)
	return err
}

var stampColumns = map[string]bool{
	"accepted_at":  true,
	"arrived_at":   true,
	"loaded_at":    true,
	"wash_done_at": true,
	"delivered_at": true,
	"returned_at":  true,
	"completed_at": true,
}

// StampRequestTime sets a lifecycle timestamp column if it is not already set.
// Timestamps are append-only: a replayed event never moves one.
func (db *DB) StampRequestTime(id int64, column string) error {
	if !stampColumns[column] {
		return fmt.Errorf("stamp request time: unknown column %q", column)
	}
	q := fmt.Sprintf(`UPDATE requests SET %s=COALESCE(%s, datetime('now','localtime')), updated_at=datetime('now','localtime') WHERE id=?`, column, column)
	_, err := db.Exec(db.Q(q), id)
	return err
}

func (db *DB) SetNeedsAttention(id int64, v bool) error {
	_, err := db.Exec(db.Q(`UPDATE requests SET needs_attention=?, updated_at=datetime('now','localtime') WHERE id=?`),
		v, id)
	return err
}

func (db *DB) SetCancelReason(id int64, reason string) error {
	_, err := db.Exec(db.Q(`UPDATE requests SET cancel_reason=?, updated_at=datetime('now','localtime') WHERE id=?`),
		reason, id)
	return err
}

// CancelAllForRobot cancels every in-flight request assigned to a robot in
// one transaction, clears the robot from each, and returns the affected
// request IDs. Used by force-stop, which must never leave a robot's requests
// half cancelled.
func (db *DB) CancelAllForRobot(robot, reason string) ([]int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(db.Q(`SELECT id FROM requests WHERE robot=? AND status NOT IN ('Completed', 'Declined')`), robot)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := tx.Exec(db.Q(`UPDATE requests SET status='Cancelled', cancel_reason=?, robot='', completed_at=COALESCE(completed_at, datetime('now','localtime')), updated_at=datetime('now','localtime') WHERE id=?`), reason, id); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(db.Q(`INSERT INTO request_history (request_id, status, detail) VALUES (?, 'Cancelled', ?)`), id, reason); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *DB) CountActiveFulfillment() (int, error) {
	var n int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM requests WHERE kind='fulfillment' AND status NOT IN ('Completed', 'Declined') AND (status != 'Cancelled' OR robot != '')`)).Scan(&n)
	return n, err
}

func (db *DB) ListRequestHistory(requestID int64) ([]*RequestHistory, error) {
	rows, err := db.Query(db.Q(`SELECT id, request_id, status, detail, created_at FROM request_history WHERE request_id=? ORDER BY id`), requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*RequestHistory
	for rows.Next() {
		var h RequestHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.RequestID, &h.Status, &h.Detail, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}
