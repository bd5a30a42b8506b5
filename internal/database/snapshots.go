package database

import "database/sql"

// CreateSnapshot starts a new running snapshot for a topic.
func (db *DB) CreateSnapshot(topicID int64) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO snapshots (topic_id, state) VALUES (?, ?)", topicID, SnapshotRunning,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishSnapshot records the final state of a snapshot run.
func (db *DB) FinishSnapshot(snapshotID int64, state, message string, timespanCount int) error {
	var msg *string
	if message != "" {
		msg = &message
	}
	_, err := db.conn.Exec(
		"UPDATE snapshots SET state = ?, message = ?, timespan_count = ? WHERE id = ?",
		state, msg, timespanCount, snapshotID,
	)
	return err
}

// GetSnapshot returns a snapshot by ID, or nil if it does not exist.
func (db *DB) GetSnapshot(snapshotID int64) (*Snapshot, error) {
	var s Snapshot
	err := db.conn.QueryRow(
		`SELECT id, topic_id, snapshot_date, state, message, timespan_count
		FROM snapshots WHERE id = ?`, snapshotID,
	).Scan(&s.ID, &s.TopicID, &s.SnapshotDate, &s.State, &s.Message, &s.TimespanCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSnapshots returns snapshots newest first; topicID 0 returns all topics.
func (db *DB) GetSnapshots(topicID int64) ([]Snapshot, error) {
	query := `SELECT id, topic_id, snapshot_date, state, message, timespan_count FROM snapshots`
	var args []any
	if topicID != 0 {
		query += " WHERE topic_id = ?"
		args = append(args, topicID)
	}
	query += " ORDER BY id DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.TopicID, &s.SnapshotDate, &s.State, &s.Message, &s.TimespanCount); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetStats returns row counts across the store.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM topics", &s.Topics},
		{"SELECT COUNT(*) FROM media", &s.Media},
		{"SELECT COUNT(*) FROM stories", &s.Stories},
		{"SELECT COUNT(*) FROM topic_links", &s.Links},
		{"SELECT COUNT(*) FROM topic_tweets", &s.Tweets},
		{"SELECT COUNT(*) FROM snapshots", &s.Snapshots},
		{"SELECT COUNT(*) FROM timespans", &s.Timespans},
		{"SELECT COUNT(*) FROM foci", &s.Foci},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
