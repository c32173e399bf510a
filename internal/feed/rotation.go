// Package feed contains the pure parts of the discovery feed: time buckets,
// windowed rotation, compatibility ranking and the refresh cooldown.
//
// Nothing in here touches the database, the clock or randomness. Every
// function takes the time (or bucket) it needs as an argument, so a feed for
// a given (viewer, bucket, candidate set) can be reproduced exactly in tests.
package feed

import (
	"time"

	"github.com/sakif/buildermatch/internal/model"
)

const (
	// BucketDuration is how long one feed rotation stays stable.
	BucketDuration = 5 * time.Minute

	// WindowSize is how many candidates are visible per bucket.
	WindowSize = 7

	// RefreshWindow is the client-side refresh button cooldown.
	RefreshWindow = 2 * time.Minute
)

// Bucket returns floor(now / 5min) in unix milliseconds.
func Bucket(now time.Time) int64 {
	return now.UnixMilli() / BucketDuration.Milliseconds()
}

// WindowStart is the index the visible window starts at for a candidate list
// of size n: (bucket * WindowSize) mod n. Consecutive buckets therefore
// advance the start by WindowSize mod n.
func WindowStart(bucket int64, n int) int {
	if n <= 0 {
		return 0
	}
	start := (bucket * WindowSize) % int64(n)
	if start < 0 {
		start += int64(n)
	}
	return int(start)
}

// Rotate applies the bucket rotation to a ranked candidate list.
//
// STEPS:
//  1. Pull the viewer's own card out of the list (if ranking returned it).
//  2. Cyclic-shift the remaining candidates by WindowStart(bucket, n).
//  3. Keep the first min(WindowSize, n) of them.
//  4. Prepend the viewer's card, flagged IsSelf.
//
// The input slice is not modified.
func Rotate(cards []model.FeedCard, viewerID string, bucket int64) []model.FeedCard {
	var self *model.FeedCard
	others := make([]model.FeedCard, 0, len(cards))
	for i := range cards {
		if cards[i].UserID == viewerID {
			c := cards[i]
			c.IsSelf = true
			self = &c
			continue
		}
		others = append(others, cards[i])
	}

	n := len(others)
	size := min(WindowSize, n)

	out := make([]model.FeedCard, 0, size+1)
	if self != nil {
		out = append(out, *self)
	}

	start := WindowStart(bucket, n)
	for i := 0; i < size; i++ {
		out = append(out, others[(start+i)%n])
	}
	return out
}

// RefreshCooldown is the time left until the next 2-minute boundary:
// ceil(now/2min)*2min - now. Zero exactly on a boundary.
func RefreshCooldown(now time.Time) time.Duration {
	window := RefreshWindow.Milliseconds()
	ms := now.UnixMilli()
	next := ((ms + window - 1) / window) * window
	return time.Duration(next-ms) * time.Millisecond
}
