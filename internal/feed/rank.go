package feed

import (
	"sort"

	"github.com/sakif/buildermatch/internal/model"
)

// Match strength labels.
const (
	StrengthStrong    = "strong"
	StrengthGood      = "good"
	StrengthExploring = "exploring"
)

// Score weights add up to 100.
const (
	weightStack     = 40
	weightWorkModes = 30
	weightIteration = 20
	weightTimezone  = 10
)

// Score rates how well candidate fits viewer on a 0..100 scale.
func Score(viewer, candidate model.FeedCard) int {
	score := overlap(viewer.StackFocus, candidate.StackFocus, weightStack) +
		overlap(viewer.WorkModes, candidate.WorkModes, weightWorkModes)

	if viewer.IterationStyle != "" && viewer.IterationStyle == candidate.IterationStyle {
		score += weightIteration
	}
	if viewer.Timezone != "" && viewer.Timezone == candidate.Timezone {
		score += weightTimezone
	}
	return score
}

// Strength buckets a score into a label.
func Strength(score int) string {
	switch {
	case score >= 70:
		return StrengthStrong
	case score >= 40:
		return StrengthGood
	default:
		return StrengthExploring
	}
}

// Rank annotates every candidate with MatchScore / MatchStrength and orders
// them best first. Ties go to the newest profile, then to the lower user id
// so the order is total. The viewer's own card, if present, is scored like
// any other; Rotate pulls it out afterwards.
func Rank(viewer model.FeedCard, candidates []model.FeedCard) []model.FeedCard {
	ranked := make([]model.FeedCard, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].MatchScore = Score(viewer, ranked[i])
		ranked[i].MatchStrength = Strength(ranked[i].MatchScore)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.After(b.JoinedAt)
		}
		return a.UserID < b.UserID
	})
	return ranked
}

// Page applies limit/offset to a ranked list. Out-of-range offsets yield an
// empty page; limit <= 0 means no limit.
func Page(cards []model.FeedCard, limit, offset int) []model.FeedCard {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cards) {
		return []model.FeedCard{}
	}
	end := len(cards)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return cards[offset:end]
}

// overlap scores |a ∩ b| / |a ∪ b| scaled to weight.
func overlap(a, b []string, weight int) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	union := len(set)
	shared := 0
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		if seen[v] {
			continue
		}
		seen[v] = true
		if set[v] {
			shared++
		} else {
			union++
		}
	}
	return shared * weight / union
}
