package database

import (
	"database/sql"
	"time"
)

// InsertTopic creates a topic and returns its ID.
func (db *DB) InsertTopic(name string, start, end time.Time, isSocial bool, botPolicy string) (int64, error) {
	if botPolicy == "" {
		botPolicy = "all"
	}
	result, err := db.conn.Exec(
		`INSERT INTO topics (name, start_date, end_date, is_social, bot_policy) VALUES (?, ?, ?, ?, ?)`,
		name, FormatTime(start), FormatTime(end), boolInt(isSocial), botPolicy,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// SetTopicNotes replaces the markdown notes shown alongside a topic.
func (db *DB) SetTopicNotes(topicID int64, notes string) error {
	_, err := db.conn.Exec("UPDATE topics SET notes = ? WHERE id = ?", notes, topicID)
	return err
}

// GetTopic returns a topic by ID, or nil if it does not exist.
func (db *DB) GetTopic(topicID int64) (*Topic, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, start_date, end_date, is_social, bot_policy, notes, created_at
		FROM topics WHERE id = ?`, topicID,
	)
	t, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetAllTopics returns every topic ordered by name.
func (db *DB) GetAllTopics() ([]Topic, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, start_date, end_date, is_social, bot_policy, notes, created_at
		FROM topics ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

// InsertTopicDateRange adds a custom timespan window to a topic.
// Re-adding an existing range is a no-op.
func (db *DB) InsertTopicDateRange(topicID int64, start, end time.Time) error {
	_, err := db.conn.Exec(
		`INSERT INTO topic_dates (topic_id, start_date, end_date) VALUES (?, ?, ?)
		ON CONFLICT (topic_id, start_date, end_date) DO NOTHING`,
		topicID, FormatTime(start), FormatTime(end),
	)
	return err
}

// GetTopicDateRanges returns a topic's custom windows ordered by start.
func (db *DB) GetTopicDateRanges(topicID int64) ([]TopicDateRange, error) {
	rows, err := db.conn.Query(
		`SELECT id, topic_id, start_date, end_date FROM topic_dates
		WHERE topic_id = ? ORDER BY start_date`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []TopicDateRange
	for rows.Next() {
		var r TopicDateRange
		var start, end sql.NullString
		if err := rows.Scan(&r.ID, &r.TopicID, &start, &end); err != nil {
			return nil, err
		}
		r.StartDate = nullTime(start)
		r.EndDate = nullTime(end)
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// InsertFocalSet returns the ID of the named focal set, creating it if needed.
func (db *DB) InsertFocalSet(topicID int64, name string) (int64, error) {
	if _, err := db.conn.Exec(
		`INSERT INTO focal_sets (topic_id, name) VALUES (?, ?)
		ON CONFLICT (topic_id, name) DO NOTHING`, topicID, name,
	); err != nil {
		return 0, err
	}
	var id int64
	err := db.conn.QueryRow(
		"SELECT id FROM focal_sets WHERE topic_id = ? AND name = ?", topicID, name,
	).Scan(&id)
	return id, err
}

// InsertFocus adds a query focus to a focal set.
func (db *DB) InsertFocus(focalSetID int64, name, query string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO foci (focal_set_id, name, query) VALUES (?, ?, ?)",
		focalSetID, name, query,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetTopicFoci returns every focus across a topic's focal sets.
func (db *DB) GetTopicFoci(topicID int64) ([]Focus, error) {
	rows, err := db.conn.Query(
		`SELECT f.id, f.focal_set_id, fs.name, f.name, f.query
		FROM foci f JOIN focal_sets fs ON fs.id = f.focal_set_id
		WHERE fs.topic_id = ? ORDER BY fs.name, f.name`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foci []Focus
	for rows.Next() {
		var f Focus
		if err := rows.Scan(&f.ID, &f.FocalSetID, &f.FocalSetName, &f.Name, &f.Query); err != nil {
			return nil, err
		}
		foci = append(foci, f)
	}
	return foci, rows.Err()
}

// GetFocus returns a focus by ID, or nil if it does not exist.
func (db *DB) GetFocus(focusID int64) (*Focus, error) {
	var f Focus
	err := db.conn.QueryRow(
		`SELECT f.id, f.focal_set_id, fs.name, f.name, f.query
		FROM foci f JOIN focal_sets fs ON fs.id = f.focal_set_id WHERE f.id = ?`, focusID,
	).Scan(&f.ID, &f.FocalSetID, &f.FocalSetName, &f.Name, &f.Query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTopic(row scanner) (*Topic, error) {
	var t Topic
	var start, end sql.NullString
	var social int
	if err := row.Scan(&t.ID, &t.Name, &start, &end, &social, &t.BotPolicy, &t.Notes, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.StartDate = nullTime(start)
	t.EndDate = nullTime(end)
	t.IsSocial = social != 0
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
