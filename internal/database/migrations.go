package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "topics, stories and links",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS topics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    is_social INTEGER DEFAULT 0,
    bot_policy TEXT NOT NULL DEFAULT 'all',
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS topic_dates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    UNIQUE (topic_id, start_date, end_date)
);

CREATE TABLE IF NOT EXISTS media (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    url TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS media_tags (
    media_id INTEGER NOT NULL REFERENCES media(id),
    tag_set TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (media_id, tag_set)
);

CREATE TABLE IF NOT EXISTS stories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    media_id INTEGER NOT NULL REFERENCES media(id),
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    publish_date TEXT,
    undateable INTEGER DEFAULT 0,
    syndicated INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS topic_stories (
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    story_id INTEGER NOT NULL REFERENCES stories(id),
    PRIMARY KEY (topic_id, story_id)
);

CREATE TABLE IF NOT EXISTS topic_links (
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    story_id INTEGER NOT NULL REFERENCES stories(id),
    ref_story_id INTEGER NOT NULL REFERENCES stories(id),
    PRIMARY KEY (topic_id, story_id, ref_story_id)
);

CREATE TABLE IF NOT EXISTS topic_tweets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    story_id INTEGER NOT NULL REFERENCES stories(id),
    user_handle TEXT NOT NULL,
    publish_date TEXT NOT NULL,
    user_tweet_count INTEGER DEFAULT 0,
    user_created_at TEXT
);

CREATE TABLE IF NOT EXISTS focal_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    name TEXT NOT NULL,
    UNIQUE (topic_id, name)
);

CREATE TABLE IF NOT EXISTS foci (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    focal_set_id INTEGER NOT NULL REFERENCES focal_sets(id),
    name TEXT NOT NULL,
    query TEXT NOT NULL,
    UNIQUE (focal_set_id, name)
);

CREATE INDEX IF NOT EXISTS idx_topic_stories_story ON topic_stories(story_id);
CREATE INDEX IF NOT EXISTS idx_topic_links_ref ON topic_links(topic_id, ref_story_id);
CREATE INDEX IF NOT EXISTS idx_topic_tweets_topic ON topic_tweets(topic_id, story_id);
CREATE INDEX IF NOT EXISTS idx_stories_media ON stories(media_id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "snapshots, timespans and aggregate tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic_id INTEGER NOT NULL REFERENCES topics(id),
    snapshot_date TEXT DEFAULT (datetime('now')),
    state TEXT NOT NULL DEFAULT 'running' CHECK(state IN ('running', 'completed', 'error')),
    message TEXT,
    timespan_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS timespans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
    period TEXT NOT NULL CHECK(period IN ('overall', 'weekly', 'monthly', 'custom')),
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    focus_id INTEGER NOT NULL DEFAULT 0,
    story_count INTEGER DEFAULT 0,
    story_link_count INTEGER DEFAULT 0,
    medium_count INTEGER DEFAULT 0,
    medium_link_count INTEGER DEFAULT 0,
    tweet_count INTEGER DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'pending' CHECK(state IN ('pending', 'completed')),
    UNIQUE (snapshot_id, start_date, end_date, period, focus_id)
);

CREATE TABLE IF NOT EXISTS timespan_story_links (
    timespan_id INTEGER NOT NULL REFERENCES timespans(id),
    source_story_id INTEGER NOT NULL,
    ref_story_id INTEGER NOT NULL,
    PRIMARY KEY (timespan_id, source_story_id, ref_story_id)
);

CREATE TABLE IF NOT EXISTS story_link_counts (
    timespan_id INTEGER NOT NULL REFERENCES timespans(id),
    story_id INTEGER NOT NULL,
    media_inlink_count INTEGER DEFAULT 0,
    inlink_count INTEGER DEFAULT 0,
    outlink_count INTEGER DEFAULT 0,
    simple_tweet_count INTEGER DEFAULT 0,
    normalized_tweet_count REAL DEFAULT 0,
    PRIMARY KEY (timespan_id, story_id)
);

CREATE TABLE IF NOT EXISTS medium_link_counts (
    timespan_id INTEGER NOT NULL REFERENCES timespans(id),
    media_id INTEGER NOT NULL,
    media_inlink_count INTEGER DEFAULT 0,
    inlink_count INTEGER DEFAULT 0,
    outlink_count INTEGER DEFAULT 0,
    story_count INTEGER DEFAULT 0,
    simple_tweet_count INTEGER DEFAULT 0,
    normalized_tweet_count REAL DEFAULT 0,
    PRIMARY KEY (timespan_id, media_id)
);

CREATE TABLE IF NOT EXISTS medium_links (
    timespan_id INTEGER NOT NULL REFERENCES timespans(id),
    source_media_id INTEGER NOT NULL,
    ref_media_id INTEGER NOT NULL,
    link_count INTEGER DEFAULT 0,
    PRIMARY KEY (timespan_id, source_media_id, ref_media_id)
);

CREATE INDEX IF NOT EXISTS idx_timespans_snapshot ON timespans(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_topic ON snapshots(topic_id);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "color sets and topic notes",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS color_sets (
    color_set TEXT NOT NULL,
    id TEXT NOT NULL,
    color TEXT NOT NULL,
    PRIMARY KEY (color_set, id)
);
`); err != nil {
				return err
			}
			// ALTER TABLE has no IF NOT EXISTS; skip when a re-run finds the column.
			var n int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM pragma_table_info('topics') WHERE name = 'notes'",
			).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return nil
			}
			_, err := tx.Exec("ALTER TABLE topics ADD COLUMN notes TEXT")
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
