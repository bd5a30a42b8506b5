package main

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/TobiSchelling/topicmap/internal/database"
)

func TestParseRange(t *testing.T) {
	start, end, err := parseRange("2020-01-01", "2020-02-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected range %v..%v", start, end)
	}

	if _, _, err := parseRange("2020-02-01", "2020-02-01"); err == nil {
		t.Error("expected error for empty range")
	}
	if _, _, err := parseRange("2020-13-01", "2020-02-01"); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestResolveTopic(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	defer db.Close()
	id, _ := db.InsertTopic("election", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), false, "all")

	byName, err := resolveTopic(db, "election")
	if err != nil || byName.ID != id {
		t.Errorf("expected topic %d by name, got %v, %v", id, byName, err)
	}
	byID, err := resolveTopic(db, "1")
	if err != nil || byID.Name != "election" {
		t.Errorf("expected topic by id, got %v, %v", byID, err)
	}
	if _, err := resolveTopic(db, "weather"); err == nil {
		t.Error("expected error for unknown topic")
	}
	if _, err := resolveTopic(db, "99"); err == nil {
		t.Error("expected error for unknown topic id")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42", "timespan"); err != nil || id != 42 {
		t.Errorf("expected 42, got %d, %v", id, err)
	}
	if _, err := parseID("x", "timespan"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestTagMedium(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	defer db.Close()
	id, _ := db.UpsertMedium("alpha", "https://alpha.example")

	m, err := tagMedium(db, strconv.FormatInt(id, 10), "partisan", "left")
	if err != nil || m.Name != "alpha" {
		t.Fatalf("expected alpha tagged, got %v, %v", m, err)
	}
	if _, err := tagMedium(db, strconv.FormatInt(id, 10), "partisan", "right"); err != nil {
		t.Fatalf("unexpected error retagging: %v", err)
	}
	tags, _ := db.GetMediaTags([]int64{id})
	if tags[id]["partisan"] != "right" {
		t.Errorf("expected partisan=right, got %v", tags[id])
	}

	if _, err := tagMedium(db, "99", "partisan", "left"); err == nil {
		t.Error("expected error for unknown medium")
	}
	if _, err := tagMedium(db, strconv.FormatInt(id, 10), "", "left"); err == nil {
		t.Error("expected error for empty tag set")
	}
}
