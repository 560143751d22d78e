package app

import (
	"sort"

	"kotoba-quiz-service/internal/domain"
)

// LeaderboardSize is how many rows the public ranking exposes.
const LeaderboardSize = 20

// Aggregate ranks users from the raw score history:
//
//  1. keep each user's best record per category (highest score, ties going
//     to the most recent attempt),
//  2. sum those bests per user and count the distinct categories,
//  3. order by total descending, then categories played descending, then
//     name ascending for a stable result,
//  4. truncate to topN.
//
// The requester's summed total is reported separately even when they fall
// outside the truncated ranking; it is nil when they have no records.
func Aggregate(records []domain.ScoreRecord, requesterID string, topN int) domain.Leaderboard {
	type key struct {
		user     string
		category string
	}
	best := make(map[key]domain.ScoreRecord)
	for _, rec := range records {
		k := key{user: rec.UserID, category: rec.Category}
		cur, ok := best[k]
		if !ok || rec.Score > cur.Score || (rec.Score == cur.Score && rec.CreatedAt.After(cur.CreatedAt)) {
			best[k] = rec
		}
	}

	byUser := make(map[string]*domain.LeaderboardEntry)
	for k, rec := range best {
		entry, ok := byUser[k.user]
		if !ok {
			entry = &domain.LeaderboardEntry{UserID: rec.UserID, UserName: rec.UserName}
			byUser[k.user] = entry
		}
		entry.TotalScore += rec.Score
		entry.CategoriesPlayed++
		if rec.CreatedAt.After(entry.LastPlayedAt) {
			entry.LastPlayedAt = rec.CreatedAt
		}
		// Show the name from the most recent record in case it changed.
		if rec.CreatedAt.Equal(entry.LastPlayedAt) {
			entry.UserName = rec.UserName
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if entries[i].CategoriesPlayed != entries[j].CategoriesPlayed {
			return entries[i].CategoriesPlayed > entries[j].CategoriesPlayed
		}
		return entries[i].UserName < entries[j].UserName
	})

	var personal *int
	if entry, ok := byUser[requesterID]; ok {
		total := entry.TotalScore
		personal = &total
	}

	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return domain.Leaderboard{Entries: entries, PersonalBest: personal}
}
