// Package export writes tabular timespan exports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/TobiSchelling/topicmap/internal/database"
)

var mediaColumns = []string{
	"media_id", "name", "url", "story_count", "inlink_count", "outlink_count",
	"media_inlink_count", "simple_tweet_count", "normalized_tweet_count",
}

// TagSets returns the sorted tag sets present on any row.
func TagSets(rows []database.MediumRow) []string {
	seen := make(map[string]bool)
	for _, r := range rows {
		for set := range r.Tags {
			seen[set] = true
		}
	}
	sets := make([]string, 0, len(seen))
	for s := range seen {
		sets = append(sets, s)
	}
	sort.Strings(sets)
	return sets
}

// WriteMediaTable writes per-medium counts as CSV, one column per tag set
// after the counts. Rows are ordered by media_inlink_count descending, then
// by medium id. A nil tagSets uses the sets present on the rows.
func WriteMediaTable(w io.Writer, rows []database.MediumRow, tagSets []string) error {
	if tagSets == nil {
		tagSets = TagSets(rows)
	} else {
		tagSets = append([]string(nil), tagSets...)
		sort.Strings(tagSets)
	}

	sorted := append([]database.MediumRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MediaInlinkCount != sorted[j].MediaInlinkCount {
			return sorted[i].MediaInlinkCount > sorted[j].MediaInlinkCount
		}
		return sorted[i].MediumID < sorted[j].MediumID
	})

	cw := csv.NewWriter(w)
	header := append(append([]string(nil), mediaColumns...), tagSets...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range sorted {
		record := []string{
			strconv.FormatInt(r.MediumID, 10),
			r.Name,
			r.URL,
			strconv.Itoa(r.StoryCount),
			strconv.Itoa(r.InlinkCount),
			strconv.Itoa(r.OutlinkCount),
			strconv.Itoa(r.MediaInlinkCount),
			strconv.Itoa(r.SimpleTweetCount),
			strconv.FormatFloat(r.NormalizedTweetCount, 'f', -1, 64),
		}
		for _, set := range tagSets {
			record = append(record, r.Tags[set])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing medium %d: %w", r.MediumID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
