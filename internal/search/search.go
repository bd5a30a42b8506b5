// Package search restricts story sets with focus queries run against an
// external full-text index.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/topicmap/internal/failure"
)

// Searcher runs a boolean query against the index and returns matching story IDs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]int64, error)
}

// RetryPolicy bounds how Restrict reacts to transient index failures.
type RetryPolicy struct {
	InitialBatch int
	MinBatch     int
	MaxRetries   int
	Backoff      time.Duration
	MaxBackoff   time.Duration

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(batch int, err error)
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBatch: 10000,
		MinBatch:     100,
		MaxRetries:   5,
		Backoff:      time.Second,
		MaxBackoff:   30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.InitialBatch <= 0 {
		p.InitialBatch = d.InitialBatch
	}
	if p.MinBatch <= 0 {
		p.MinBatch = d.MinBatch
	}
	if p.MinBatch > p.InitialBatch {
		p.MinBatch = p.InitialBatch
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	return p
}

// backoff returns the delay before the given retry (1-based): Backoff * 2^(retry-1),
// capped at MaxBackoff.
func (p RetryPolicy) backoff(retry int) time.Duration {
	d := p.Backoff
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// ValidateQuery rejects focus queries without any non-whitespace character.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return failure.Configf("focus query", "query must contain a non-whitespace character")
	}
	return nil
}

// BatchQuery combines a focus query with an id restriction for one batch.
func BatchQuery(query string, ids []int64) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(query)
	b.WriteString(") AND stories_id:(")
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteString(")")
	return b.String()
}

// Restrict returns the subset of ids confirmed by the index for query, in
// ascending order. Candidates are searched in batches; a transient failure
// halves the batch (down to MinBatch), waits with exponential backoff and
// retries the same batch. Once MaxRetries is exceeded Restrict fails with a
// FatalError. It never returns a partial result.
func Restrict(ctx context.Context, s Searcher, query string, ids []int64, p RetryPolicy) ([]int64, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	p = p.withDefaults()

	matched := make(map[int64]bool)
	batch := p.InitialBatch
	retries := 0

	for off := 0; off < len(ids); {
		end := off + batch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[off:end]

		found, err := s.Search(ctx, BatchQuery(query, chunk), len(chunk))
		if err != nil {
			if !failure.IsTransient(err) {
				return nil, failure.Fatal("focus", "", fmt.Errorf("searching focus query: %w", err))
			}
			retries++
			if retries > p.MaxRetries {
				return nil, failure.Fatal("focus", "",
					fmt.Errorf("search retry budget of %d exhausted: %w", p.MaxRetries, err))
			}
			batch /= 2
			if batch < p.MinBatch {
				batch = p.MinBatch
			}
			wait := p.backoff(retries)
			log.Printf("Search failed (retry %d/%d, batch now %d, waiting %s): %v",
				retries, p.MaxRetries, batch, wait, err)
			if p.OnRetry != nil {
				p.OnRetry(batch, err)
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		inChunk := make(map[int64]bool, len(chunk))
		for _, id := range chunk {
			inChunk[id] = true
		}
		for _, id := range found {
			if inChunk[id] {
				matched[id] = true
			}
		}
		off = end
	}

	out := make([]int64, 0, len(matched))
	for id := range matched {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
