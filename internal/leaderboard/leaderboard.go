// Package leaderboard projects stored players into the ranked list shown to
// clients. Every Load is a full reload from the player gateway.
package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/robalobadob/cardgame/internal/players"
)

// Entry is one ranked row.
type Entry struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Wins     int    `json:"wins"`
}

// Project ranks players by score, highest first. Players with equal scores
// keep their input order.
func Project(ps []players.Player) []Entry {
	sorted := make([]players.Player, len(ps))
	copy(sorted, ps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	out := make([]Entry, len(sorted))
	for i, p := range sorted {
		out[i] = Entry{Position: i + 1, Name: p.Name, Score: p.Score, Wins: p.Wins}
	}
	return out
}

// Fetcher is the part of players.Gateway the leaderboard reads from.
type Fetcher interface {
	FetchAll(ctx context.Context) <-chan players.Result[[]players.Player]
}

// Service loads the leaderboard.
type Service struct {
	src Fetcher
}

func NewService(src Fetcher) *Service { return &Service{src: src} }

// Load fetches all players and ranks them. It stops waiting, without
// cancelling the fetch, when ctx is done.
func (s *Service) Load(ctx context.Context) ([]Entry, error) {
	select {
	case res := <-s.src.FetchAll(ctx):
		if res.Err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", res.Err)
		}
		return Project(res.Value), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
