package feeds

import (
	"math"
	"sort"
	"time"

	"canter/models"
)

// Weights holds the scoring parameters for the ranker.
type Weights struct {
	// RecencyHalfLifeHours controls how fast the recency score decays
	// with post age.
	RecencyHalfLifeHours float64

	// AffinityBoost multiplies the score of posts from followed
	// authors when a candidate set mixes followed and discovery
	// content.
	AffinityBoost float64

	// EngagementWeight scales the engagement bonus; EngagementCap caps
	// the raw engagement signal so viral outliers cannot dominate.
	EngagementWeight float64
	EngagementCap    int64

	// Epsilon is the score distance under which two posts are ordered
	// by (created_at desc, id asc) instead of score.
	Epsilon float64
}

// Score computes a single post's score at the given time. Pure: same
// post, now and weights always yield the same score.
func Score(post models.Post, now time.Time, w Weights) float64 {
	ageHours := now.Sub(time.Unix(post.CreatedAt, 0)).Hours()
	if ageHours < 0 {
		ageHours = 0
	}

	halfLife := w.RecencyHalfLifeHours
	if halfLife <= 0 {
		halfLife = 24
	}
	score := 1.0 / (1.0 + ageHours/halfLife)

	if post.Followed && w.AffinityBoost > 0 {
		score *= w.AffinityBoost
	}

	if w.EngagementWeight > 0 && w.EngagementCap > 0 {
		engagement := post.LikeCount + 2*post.CommentCount
		capped := math.Min(float64(engagement), float64(w.EngagementCap))
		score += w.EngagementWeight * capped / float64(w.EngagementCap)
	}

	return score
}

// Rank scores the candidate set and produces a total order: score
// descending, ties within epsilon broken by (created_at desc, id asc).
// Deterministic by construction; the clock is passed in, never read.
func Rank(candidates []models.Post, now time.Time, w Weights) []models.RankedPost {
	ranked := make([]models.RankedPost, len(candidates))
	for i, post := range candidates {
		ranked[i] = models.RankedPost{Post: post, Score: Score(post, now, w)}
	}

	sortRanked(ranked, w.Epsilon)
	return ranked
}

func sortRanked(ranked []models.RankedPost, epsilon float64) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedLess(ranked[i], ranked[j], epsilon)
	})
}

// rankedLess is the total order every ranked list obeys: score
// descending, ties within epsilon broken by (created_at desc, id asc).
// The paginator seeks with the same comparator.
func rankedLess(a, b models.RankedPost, epsilon float64) bool {
	if math.Abs(a.Score-b.Score) > epsilon {
		return a.Score > b.Score
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}
