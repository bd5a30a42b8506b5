package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UpsertMedium returns the ID of the medium with the given URL, creating it
// if needed.
func (db *DB) UpsertMedium(name, url string) (int64, error) {
	if _, err := db.conn.Exec(
		`INSERT INTO media (name, url) VALUES (?, ?) ON CONFLICT (url) DO NOTHING`, name, url,
	); err != nil {
		return 0, err
	}
	var id int64
	err := db.conn.QueryRow("SELECT id FROM media WHERE url = ?", url).Scan(&id)
	return id, err
}

// SetMediumTag sets the medium's tag within a tag set, replacing any earlier value.
func (db *DB) SetMediumTag(mediumID int64, tagSet, tag string) error {
	_, err := db.conn.Exec(
		`INSERT INTO media_tags (media_id, tag_set, tag) VALUES (?, ?, ?)
		ON CONFLICT (media_id, tag_set) DO UPDATE SET tag = excluded.tag`,
		mediumID, tagSet, tag,
	)
	return err
}

// GetMediaTags returns tag_set -> tag per medium for the given media.
func (db *DB) GetMediaTags(mediumIDs []int64) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string)
	if len(mediumIDs) == 0 {
		return out, nil
	}
	rows, err := db.conn.Query(
		"SELECT media_id, tag_set, tag FROM media_tags WHERE media_id IN ("+placeholders(len(mediumIDs))+")",
		int64Args(mediumIDs)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var set, tag string
		if err := rows.Scan(&id, &set, &tag); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][set] = tag
	}
	return out, rows.Err()
}

// GetTagSets returns the distinct tag set names in use, sorted.
func (db *DB) GetTagSets() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT tag_set FROM media_tags ORDER BY tag_set")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// InsertStory inserts a story (or finds the existing one by URL) and adds
// it to the topic. Returns the story ID.
func (db *DB) InsertStory(topicID int64, s Story) (int64, error) {
	var id int64
	err := db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO stories (media_id, url, title, publish_date, undateable, syndicated)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (url) DO NOTHING`,
			s.MediumID, s.URL, s.Title, nullableTime(s.PublishDate),
			boolInt(s.Undateable || s.PublishDate.IsZero()), boolInt(s.Syndicated),
		); err != nil {
			return err
		}
		if err := tx.QueryRow("SELECT id FROM stories WHERE url = ?", s.URL).Scan(&id); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO topic_stories (topic_id, story_id) VALUES (?, ?)
			ON CONFLICT (topic_id, story_id) DO NOTHING`, topicID, id,
		)
		return err
	})
	return id, err
}

// GetStoryIDByURL returns the ID of the story with url, or 0 if unknown.
func (db *DB) GetStoryIDByURL(url string) (int64, error) {
	var id int64
	err := db.conn.QueryRow("SELECT id FROM stories WHERE url = ?", url).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

// InsertTopicLink records that storyID links to refStoryID within a topic.
// Self links are ignored. Reports whether a new link was stored.
func (db *DB) InsertTopicLink(topicID, storyID, refStoryID int64) (bool, error) {
	if storyID == refStoryID {
		return false, nil
	}
	result, err := db.conn.Exec(
		`INSERT INTO topic_links (topic_id, story_id, ref_story_id) VALUES (?, ?, ?)
		ON CONFLICT (topic_id, story_id, ref_story_id) DO NOTHING`,
		topicID, storyID, refStoryID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// SetStoryPublishDate dates a story and clears its undateable flag.
func (db *DB) SetStoryPublishDate(storyID int64, published time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE stories SET publish_date = ?, undateable = 0 WHERE id = ?",
		FormatTime(published), storyID,
	)
	return err
}

// InsertTweet records a tweet sharing a topic story.
func (db *DB) InsertTweet(t Tweet) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO topic_tweets (topic_id, story_id, user_handle, publish_date, user_tweet_count, user_created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.TopicID, t.StoryID, t.UserHandle, FormatTime(t.PublishDate), t.UserTweetCount, nullableTime(t.UserCreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LoadCorpus reads a topic's stories, media, links and tweets.
func (db *DB) LoadCorpus(topicID int64) (*Corpus, error) {
	topic, err := db.GetTopic(topicID)
	if err != nil {
		return nil, fmt.Errorf("loading topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %d not found", topicID)
	}

	c := &Corpus{
		Topic:   *topic,
		Stories: make(map[int64]Story),
		Media:   make(map[int64]Medium),
	}

	if err := db.loadStories(c); err != nil {
		return nil, fmt.Errorf("loading stories: %w", err)
	}
	if err := db.loadLinks(c); err != nil {
		return nil, fmt.Errorf("loading links: %w", err)
	}
	if err := db.loadTweets(c); err != nil {
		return nil, fmt.Errorf("loading tweets: %w", err)
	}
	return c, nil
}

func (db *DB) loadStories(c *Corpus) error {
	rows, err := db.conn.Query(
		`SELECT s.id, s.media_id, s.url, s.title, s.publish_date, s.undateable, s.syndicated,
		m.name, m.url
		FROM stories s
		JOIN topic_stories ts ON ts.story_id = s.id
		JOIN media m ON m.id = s.media_id
		WHERE ts.topic_id = ?`, c.Topic.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s Story
		var m Medium
		var pub sql.NullString
		var undateable, syndicated int
		if err := rows.Scan(&s.ID, &s.MediumID, &s.URL, &s.Title, &pub, &undateable, &syndicated,
			&m.Name, &m.URL); err != nil {
			return err
		}
		s.PublishDate = nullTime(pub)
		s.Undateable = undateable != 0
		s.Syndicated = syndicated != 0
		m.ID = s.MediumID
		c.Stories[s.ID] = s
		c.Media[m.ID] = m
	}
	return rows.Err()
}

func (db *DB) loadLinks(c *Corpus) error {
	rows, err := db.conn.Query(
		`SELECT story_id, ref_story_id FROM topic_links WHERE topic_id = ?
		ORDER BY story_id, ref_story_id`, c.Topic.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.SourceStoryID, &l.RefStoryID); err != nil {
			return err
		}
		c.Links = append(c.Links, l)
	}
	return rows.Err()
}

func (db *DB) loadTweets(c *Corpus) error {
	rows, err := db.conn.Query(
		`SELECT id, topic_id, story_id, user_handle, publish_date, user_tweet_count, user_created_at
		FROM topic_tweets WHERE topic_id = ? ORDER BY id`, c.Topic.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t Tweet
		var pub, created sql.NullString
		if err := rows.Scan(&t.ID, &t.TopicID, &t.StoryID, &t.UserHandle, &pub,
			&t.UserTweetCount, &created); err != nil {
			return err
		}
		t.PublishDate = nullTime(pub)
		t.UserCreatedAt = nullTime(created)
		c.Tweets = append(c.Tweets, t)
	}
	return rows.Err()
}

// GetMedia returns the media with the given IDs keyed by ID.
func (db *DB) GetMedia(ids []int64) (map[int64]Medium, error) {
	out := make(map[int64]Medium, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.conn.Query(
		"SELECT id, name, url FROM media WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m Medium
		if err := rows.Scan(&m.ID, &m.Name, &m.URL); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	args := make([]any, len(sorted))
	for i, id := range sorted {
		args[i] = id
	}
	return args
}
