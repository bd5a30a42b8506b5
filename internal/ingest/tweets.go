package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/failure"
)

// TweetColumns is the header a tweet import file must start with.
var TweetColumns = []string{"story_url", "user_handle", "publish_date", "user_tweet_count", "user_created_at"}

// TweetResult holds the results of a tweet import.
type TweetResult struct {
	Rows          int
	Imported      int
	UnknownStory  int
	InvalidRecord int
}

// ImportTweets reads tweets sharing topic stories from CSV. Rows whose
// story_url is not a story of the topic are skipped, as are rows with
// unparseable fields.
func ImportTweets(db *database.DB, topicID int64, r io.Reader) (*TweetResult, error) {
	corpus, err := db.LoadCorpus(topicID)
	if err != nil {
		return nil, fmt.Errorf("loading topic stories: %w", err)
	}
	byURL := make(map[string]int64, len(corpus.Stories))
	for id, s := range corpus.Stories {
		byURL[normalizeURL(s.URL)] = id
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(TweetColumns)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range TweetColumns {
		if strings.TrimSpace(header[i]) != col {
			return nil, failure.Configf("tweets", "expected columns %s", strings.Join(TweetColumns, ","))
		}
	}

	res := &TweetResult{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading row %d: %w", res.Rows+1, err)
		}
		res.Rows++

		storyID, ok := byURL[normalizeURL(rec[0])]
		if !ok {
			res.UnknownStory++
			continue
		}
		t, err := parseTweet(rec)
		if err != nil {
			log.Printf("Skipping tweet row %d: %v", res.Rows, err)
			res.InvalidRecord++
			continue
		}
		t.TopicID = topicID
		t.StoryID = storyID
		if _, err := db.InsertTweet(t); err != nil {
			return res, fmt.Errorf("storing tweet row %d: %w", res.Rows, err)
		}
		res.Imported++
	}

	log.Printf("Tweet import complete: %d rows, %d imported, %d unknown stories, %d invalid",
		res.Rows, res.Imported, res.UnknownStory, res.InvalidRecord)
	return res, nil
}

func parseTweet(rec []string) (database.Tweet, error) {
	var t database.Tweet
	t.UserHandle = strings.TrimSpace(rec[1])
	if t.UserHandle == "" {
		return t, errors.New("empty user_handle")
	}
	published, err := database.ParseDate(strings.TrimSpace(rec[2]))
	if err != nil {
		return t, err
	}
	t.PublishDate = published
	if t.UserTweetCount, err = strconv.Atoi(strings.TrimSpace(rec[3])); err != nil {
		return t, fmt.Errorf("invalid user_tweet_count %q", rec[3])
	}
	if created := strings.TrimSpace(rec[4]); created != "" {
		if t.UserCreatedAt, err = database.ParseDate(created); err != nil {
			return t, err
		}
	}
	return t, nil
}
