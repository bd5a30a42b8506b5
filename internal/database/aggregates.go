package database

import "sort"

// GetMediumLinkCounts returns a timespan's per-medium counts ordered by
// media_inlink_count descending.
func (db *DB) GetMediumLinkCounts(timespanID int64) ([]MediumLinkCount, error) {
	rows, err := db.conn.Query(
		`SELECT media_id, media_inlink_count, inlink_count, outlink_count, story_count,
		simple_tweet_count, normalized_tweet_count
		FROM medium_link_counts WHERE timespan_id = ?
		ORDER BY media_inlink_count DESC, inlink_count DESC, media_id`, timespanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediumLinkCount
	for rows.Next() {
		var c MediumLinkCount
		if err := rows.Scan(&c.MediumID, &c.MediaInlinkCount, &c.InlinkCount, &c.OutlinkCount,
			&c.StoryCount, &c.SimpleTweetCount, &c.NormalizedTweetCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetMediumLinks returns a timespan's medium-to-medium edges.
func (db *DB) GetMediumLinks(timespanID int64) ([]MediumLink, error) {
	rows, err := db.conn.Query(
		`SELECT source_media_id, ref_media_id, link_count FROM medium_links
		WHERE timespan_id = ? ORDER BY source_media_id, ref_media_id`, timespanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediumLink
	for rows.Next() {
		var l MediumLink
		if err := rows.Scan(&l.SourceMediumID, &l.RefMediumID, &l.LinkCount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetStoryLinkCounts returns a timespan's per-story counts ordered by story ID.
func (db *DB) GetStoryLinkCounts(timespanID int64) ([]StoryLinkCount, error) {
	rows, err := db.conn.Query(
		`SELECT story_id, media_inlink_count, inlink_count, outlink_count,
		simple_tweet_count, normalized_tweet_count
		FROM story_link_counts WHERE timespan_id = ? ORDER BY story_id`, timespanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoryLinkCount
	for rows.Next() {
		var c StoryLinkCount
		if err := rows.Scan(&c.StoryID, &c.MediaInlinkCount, &c.InlinkCount, &c.OutlinkCount,
			&c.SimpleTweetCount, &c.NormalizedTweetCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetMediumRows joins a timespan's medium counts with media and their tags.
func (db *DB) GetMediumRows(timespanID int64) ([]MediumRow, error) {
	counts, err := db.GetMediumLinkCounts(timespanID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(counts))
	for i, c := range counts {
		ids[i] = c.MediumID
	}
	media, err := db.GetMedia(ids)
	if err != nil {
		return nil, err
	}
	tags, err := db.GetMediaTags(ids)
	if err != nil {
		return nil, err
	}

	rows := make([]MediumRow, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, MediumRow{Medium: media[c.MediumID], MediumLinkCount: c, Tags: tags[c.MediumID]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MediaInlinkCount > rows[j].MediaInlinkCount
	})
	return rows, nil
}
