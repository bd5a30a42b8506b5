package database

import (
	"database/sql"
)

const timespanColumns = `id, snapshot_id, period, start_date, end_date, focus_id,
	story_count, story_link_count, medium_count, medium_link_count, tweet_count, state`

// FindTimespan returns the timespan with the given identity, or nil.
func (db *DB) FindTimespan(key TimespanKey) (*Timespan, error) {
	row := db.conn.QueryRow(
		`SELECT `+timespanColumns+` FROM timespans
		WHERE snapshot_id = ? AND period = ? AND start_date = ? AND end_date = ? AND focus_id = ?`,
		key.SnapshotID, key.Period, FormatTime(key.StartDate), FormatTime(key.EndDate), key.FocusID,
	)
	t, err := scanTimespan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// EnsureTimespan returns the timespan with the given identity, inserting a
// pending row first if none exists. Concurrent callers get the same row.
func (db *DB) EnsureTimespan(key TimespanKey) (*Timespan, error) {
	if _, err := db.conn.Exec(
		`INSERT INTO timespans (snapshot_id, period, start_date, end_date, focus_id, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_id, start_date, end_date, period, focus_id) DO NOTHING`,
		key.SnapshotID, key.Period, FormatTime(key.StartDate), FormatTime(key.EndDate), key.FocusID,
		TimespanPending,
	); err != nil {
		return nil, err
	}
	return db.FindTimespan(key)
}

// GetTimespan returns a timespan by ID, or nil if it does not exist.
func (db *DB) GetTimespan(timespanID int64) (*Timespan, error) {
	row := db.conn.QueryRow(`SELECT `+timespanColumns+` FROM timespans WHERE id = ?`, timespanID)
	t, err := scanTimespan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTimespansForSnapshot returns a snapshot's timespans ordered by period,
// focus and start date.
func (db *DB) GetTimespansForSnapshot(snapshotID int64) ([]Timespan, error) {
	rows, err := db.conn.Query(
		`SELECT `+timespanColumns+` FROM timespans WHERE snapshot_id = ?
		ORDER BY CASE period WHEN 'overall' THEN 0 WHEN 'monthly' THEN 1 WHEN 'weekly' THEN 2 ELSE 3 END,
		focus_id, start_date`, snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Timespan
	for rows.Next() {
		t, err := scanTimespan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// WriteTimespanAggregates replaces every aggregate row of a timespan and
// stamps its counters in one transaction, marking it completed.
func (db *DB) WriteTimespanAggregates(timespanID int64, agg *TimespanAggregates) error {
	return db.inTx(func(tx *sql.Tx) error {
		for _, table := range []string{"timespan_story_links", "story_link_counts", "medium_link_counts", "medium_links"} {
			if _, err := tx.Exec("DELETE FROM "+table+" WHERE timespan_id = ?", timespanID); err != nil {
				return err
			}
		}

		if err := execEach(tx,
			"INSERT INTO timespan_story_links (timespan_id, source_story_id, ref_story_id) VALUES (?, ?, ?)",
			len(agg.StoryLinks), func(i int) []any {
				l := agg.StoryLinks[i]
				return []any{timespanID, l.SourceStoryID, l.RefStoryID}
			}); err != nil {
			return err
		}

		if err := execEach(tx,
			`INSERT INTO story_link_counts (timespan_id, story_id, media_inlink_count, inlink_count,
			outlink_count, simple_tweet_count, normalized_tweet_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			len(agg.StoryCounts), func(i int) []any {
				c := agg.StoryCounts[i]
				return []any{timespanID, c.StoryID, c.MediaInlinkCount, c.InlinkCount,
					c.OutlinkCount, c.SimpleTweetCount, c.NormalizedTweetCount}
			}); err != nil {
			return err
		}

		if err := execEach(tx,
			`INSERT INTO medium_link_counts (timespan_id, media_id, media_inlink_count, inlink_count,
			outlink_count, story_count, simple_tweet_count, normalized_tweet_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			len(agg.MediumCounts), func(i int) []any {
				c := agg.MediumCounts[i]
				return []any{timespanID, c.MediumID, c.MediaInlinkCount, c.InlinkCount,
					c.OutlinkCount, c.StoryCount, c.SimpleTweetCount, c.NormalizedTweetCount}
			}); err != nil {
			return err
		}

		if err := execEach(tx,
			`INSERT INTO medium_links (timespan_id, source_media_id, ref_media_id, link_count)
			VALUES (?, ?, ?, ?)`,
			len(agg.MediumLinks), func(i int) []any {
				l := agg.MediumLinks[i]
				return []any{timespanID, l.SourceMediumID, l.RefMediumID, l.LinkCount}
			}); err != nil {
			return err
		}

		_, err := tx.Exec(
			`UPDATE timespans SET story_count = ?, story_link_count = ?, medium_count = ?,
			medium_link_count = ?, tweet_count = ?, state = ? WHERE id = ?`,
			len(agg.StoryCounts), len(agg.StoryLinks), len(agg.MediumCounts),
			len(agg.MediumLinks), agg.TweetCount, TimespanCompleted, timespanID,
		)
		return err
	})
}

// CountTimespanRows returns the number of story_link_counts and
// medium_link_counts rows stored for a timespan.
func (db *DB) CountTimespanRows(timespanID int64) (stories, media int, err error) {
	if err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM story_link_counts WHERE timespan_id = ?", timespanID,
	).Scan(&stories); err != nil {
		return 0, 0, err
	}
	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM medium_link_counts WHERE timespan_id = ?", timespanID,
	).Scan(&media)
	return stories, media, err
}

func execEach(tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return err
		}
	}
	return nil
}

func scanTimespan(row scanner) (*Timespan, error) {
	var t Timespan
	var start, end sql.NullString
	if err := row.Scan(&t.ID, &t.SnapshotID, &t.Period, &start, &end, &t.FocusID,
		&t.StoryCount, &t.StoryLinkCount, &t.MediumCount, &t.MediumLinkCount, &t.TweetCount, &t.State); err != nil {
		return nil, err
	}
	t.StartDate = nullTime(start)
	t.EndDate = nullTime(end)
	return &t, nil
}
