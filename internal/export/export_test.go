package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/TobiSchelling/topicmap/internal/database"
)

func row(id int64, name string, mediaInlinks int, tags map[string]string) database.MediumRow {
	return database.MediumRow{
		Medium:          database.Medium{ID: id, Name: name, URL: "https://" + name + ".example"},
		MediumLinkCount: database.MediumLinkCount{MediumID: id, MediaInlinkCount: mediaInlinks, StoryCount: 1, NormalizedTweetCount: 1.5},
		Tags:            tags,
	}
}

func TestWriteMediaTable(t *testing.T) {
	rows := []database.MediumRow{
		row(1, "alpha", 1, map[string]string{"partisan_code": "left"}),
		row(2, "beta, inc", 3, map[string]string{"fake_news": "false"}),
		row(3, "gamma", 1, nil),
	}

	var buf bytes.Buffer
	if err := WriteMediaTable(&buf, rows, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(records))
	}

	header := records[0]
	if header[0] != "media_id" || header[9] != "fake_news" || header[10] != "partisan_code" {
		t.Errorf("unexpected header %v", header)
	}
	if records[1][1] != "beta, inc" {
		t.Errorf("expected medium with most media inlinks first, got %v", records[1])
	}
	if records[2][0] != "1" || records[3][0] != "3" {
		t.Errorf("expected ties ordered by id, got %s then %s", records[2][0], records[3][0])
	}
	if records[2][10] != "left" || records[3][10] != "" {
		t.Errorf("unexpected tag columns %v / %v", records[2], records[3])
	}
	if records[1][8] != "1.5" {
		t.Errorf("expected normalized tweet count 1.5, got %q", records[1][8])
	}
}

func TestWriteMediaTableExplicitTagSets(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMediaTable(&buf, nil, []string{"media_type"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 || records[0][len(records[0])-1] != "media_type" {
		t.Errorf("expected header only with media_type column, got %v", records)
	}
}
