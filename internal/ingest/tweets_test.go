package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
)

func TestImportTweets(t *testing.T) {
	db := openTestDB(t)
	topicID, _ := db.InsertTopic("social", day(2020, 1, 1), day(2020, 2, 1), true, "no_bots")
	m, _ := db.UpsertMedium("alpha", "https://alpha.example")
	storyID, _ := db.InsertStory(topicID, database.Story{MediumID: m, URL: "https://alpha.example/1", Title: "One", PublishDate: day(2020, 1, 2)})

	data := `story_url,user_handle,publish_date,user_tweet_count,user_created_at
https://alpha.example/1,bot,2020-01-05 10:00:00,600,2020-01-03
https://alpha.example/1#x,human,2020-01-05,10,2019-01-01
https://unknown.example/9,human,2020-01-05,10,2019-01-01
https://alpha.example/1,human,not-a-date,10,
https://alpha.example/1,,2020-01-05,10,
`
	res, err := ImportTweets(db, topicID, strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rows != 5 || res.Imported != 2 || res.UnknownStory != 1 || res.InvalidRecord != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	c, _ := db.LoadCorpus(topicID)
	if len(c.Tweets) != 2 {
		t.Fatalf("expected 2 tweets, got %d", len(c.Tweets))
	}
	for _, tw := range c.Tweets {
		if tw.StoryID != storyID {
			t.Errorf("expected tweet on story %d, got %d", storyID, tw.StoryID)
		}
		if tw.UserHandle == "bot" && tw.AccountAgeDays() < 2 {
			t.Errorf("expected account age over 2 days, got %v", tw.AccountAgeDays())
		}
	}
}

func TestImportTweetsRejectsWrongHeader(t *testing.T) {
	db := openTestDB(t)
	topicID, _ := db.InsertTopic("social", day(2020, 1, 1), day(2020, 2, 1), true, "all")

	_, err := ImportTweets(db, topicID, strings.NewReader("url,user,date,count,created\n"))
	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
