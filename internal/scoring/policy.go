// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package scoring computes the derived trending and viral scores from a
// stats snapshot. The functions here are pure and stateless so they can
// be tested in isolation and re-run against historical snapshots.
//
// Trending favors recency aggressively: an exponential decay with a
// 24-hour time constant (half-life ~16.6h) multiplies a weighted counter
// sum. Viral is cumulative and never decays; a video that collected many
// shares stays flagged as viral after its trending score has faded.
package scoring

import (
	"math"
	"time"

	"github.com/reelpulse/reelpulse/internal/models"
)

// Counter weights for the trending score.
const (
	viewWeight    = 0.4
	likeWeight    = 0.3
	commentWeight = 0.2
	shareWeight   = 0.1
)

// decayHours is the exponential decay time constant for trending.
const decayHours = 24.0

// Viral score weights.
const (
	viralShareWeight = 10
	viralLikeWeight  = 2
)

// Scores holds the derived score pair for one snapshot at one instant.
type Scores struct {
	Trending float64
	Viral    float64
}

// Score computes both derived scores for a snapshot as of now.
//
// Because decay is time-dependent, two calls a second apart legitimately
// return different trending values for the same snapshot.
func Score(s *models.VideoStats, now time.Time) Scores {
	return Scores{
		Trending: TrendingScore(s.Views, s.Likes, s.Comments, s.Shares, s.CreatedAt, now),
		Viral:    ViralScore(s.Shares, s.Likes),
	}
}

// TrendingScore computes the time-decayed weighted counter sum.
//
//	ageHours = (now - createdAt) / 3600
//	decay    = exp(-ageHours / 24)
//	score    = (0.4*views + 0.3*likes + 0.2*comments + 0.1*shares) * decay
//
// A publish time in the future (clock skew) is treated as age zero so the
// decay factor never exceeds 1.
func TrendingScore(views, likes, comments, shares int64, createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	decay := math.Exp(-ageHours / decayHours)

	weighted := viewWeight*float64(views) +
		likeWeight*float64(likes) +
		commentWeight*float64(comments) +
		shareWeight*float64(shares)

	return weighted * decay
}

// ViralScore computes the cumulative, non-decaying viral signal.
//
//	score = 10*shares + 2*likes
func ViralScore(shares, likes int64) float64 {
	return float64(viralShareWeight*shares + viralLikeWeight*likes)
}

// EngagementRate computes the engagement percentage for a counter set.
//
//	rate = 100 * (likes + comments + shares) / max(views, 1)
func EngagementRate(views, likes, comments, shares int64) float64 {
	denom := views
	if denom < 1 {
		denom = 1
	}
	return 100 * float64(likes+comments+shares) / float64(denom)
}
