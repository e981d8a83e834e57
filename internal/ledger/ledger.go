// Package ledger provides an append-only history of what ambience did:
// scans, group edits and control calls.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/ambience/internal/eventbus"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventScanCompleted    = EventType(eventbus.EventTypeScanCompleted)
	EventScanFailed       = EventType(eventbus.EventTypeScanFailed)
	EventGroupChanged     = EventType(eventbus.EventTypeGroupChanged)
	EventControlCompleted = EventType(eventbus.EventTypeControlCompleted)
	EventControlFailed    = EventType(eventbus.EventTypeControlFailed)
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64
	EventID   string
	EventType EventType
	Timestamp time.Time
	Payload   map[string]any
	Source    string
	LightID   string
	Group     string
}

// Ledger provides append-only event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new entry. Entries without an EventID get a fresh one;
// appending the same EventID twice keeps the first entry.
func (l *Ledger) Append(e Entry) error {
	var payloadJSON []byte
	var err error

	if e.Payload != nil {
		payloadJSON, err = json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = l.db.Exec(`
		INSERT OR IGNORE INTO event_ledger (event_id, event_type, timestamp, payload, source, light_id, group_label)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.EventID, string(e.EventType), ts.UTC().Unix(), string(payloadJSON), e.Source, e.LightID, e.Group)
	return err
}

// Record appends a bus event. The light, group and source keys of its data
// are lifted into their own columns.
func (l *Ledger) Record(event eventbus.Event) error {
	lightID, _ := event.Data["light"].(string)
	group, _ := event.Data["group"].(string)
	source, _ := event.Data["source"].(string)

	return l.Append(Entry{
		EventID:   event.ID,
		EventType: EventType(event.Type),
		Timestamp: event.Time,
		Payload:   event.Data,
		Source:    source,
		LightID:   lightID,
		Group:     group,
	})
}

// GetByType returns entries filtered by event type, newest first
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	return l.query(`WHERE event_type = ?`, string(eventType), limit)
}

// GetByLight returns entries concerning one light, newest first
func (l *Ledger) GetByLight(lightID string, limit int) ([]*Entry, error) {
	return l.query(`WHERE light_id = ?`, lightID, limit)
}

// GetRecent returns the newest entries
func (l *Ledger) GetRecent(limit int) ([]*Entry, error) {
	return l.query(`WHERE 1 = ?`, 1, limit)
}

// GetByTimeRange returns entries within a time range
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, event_type, timestamp, payload, source, light_id, group_label
		FROM event_ledger
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.Unix(), end.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// Count returns the number of entries of the given type; an empty type counts everything.
func (l *Ledger) Count(eventType EventType) (int, error) {
	var n int
	var err error
	if eventType == "" {
		err = l.db.QueryRow(`SELECT COUNT(*) FROM event_ledger`).Scan(&n)
	} else {
		err = l.db.QueryRow(`SELECT COUNT(*) FROM event_ledger WHERE event_type = ?`, string(eventType)).Scan(&n)
	}
	return n, err
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Reset removes every entry
func (l *Ledger) Reset() (int64, error) {
	result, err := l.db.Exec(`DELETE FROM event_ledger`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) query(where string, arg any, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, event_type, timestamp, payload, source, light_id, group_label
		FROM event_ledger
		`+where+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr sql.NullString
		var source, lightID, group sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.EventID, &entry.EventType, &timestamp, &payloadStr, &source, &lightID, &group,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Source = source.String
		entry.LightID = lightID.String
		entry.Group = group.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
