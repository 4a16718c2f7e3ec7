// internal/game/types.go
//
// Core type definitions for the card game engine.
// Defines:
//   - Choice: one of the three cards a side can play.
//   - Outcome: result of comparing two choices.
//   - State: where a session sits in the round/match cycle.
//   - Session: state for one player's run of matches against the dealer.

package game

import "errors"

// Choice is a card played in a round.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// Choices lists the playable cards in canonical order.
var Choices = [...]Choice{Rock, Scissors, Paper}

// Outcome is the result of a single round, seen from the first choice.
type Outcome string

const (
	Tie        Outcome = "tie"
	FirstWins  Outcome = "first_wins"
	SecondWins Outcome = "second_wins"
)

// State is the coarse position of a session in its current match.
type State string

const (
	StateInRound       State = "in_round"
	StateTieStreak     State = "tie_streak"
	StateRoundResolved State = "round_resolved"
	StateMatchComplete State = "match_complete"
)

const (
	// MaxRounds is the number of resolved rounds in a match.
	MaxRounds = 5
	// WinPoints is awarded to the player for winning a match.
	WinPoints = 10
	// ReplayAfterTies is the tie-streak length that forces a replay.
	ReplayAfterTies = 2
)

var (
	ErrMatchFinished = errors.New("match finished")
	ErrInvalidChoice = errors.New("invalid choice")
	ErrCardBlocked   = errors.New("card blocked after tie")
)

// Session holds the in-memory state of a player's game against the dealer.
// Only the score/wins delta of a completed match is ever persisted.
type Session struct {
	ID            string // Unique session identifier (UUID).
	PlayerName    string // Name the result is recorded under.
	RoundsPlayed  int    // Resolved (non-tie) rounds in the current match.
	PlayerWins    int    // Rounds won by the player in the current match.
	DealerWins    int    // Rounds won by the dealer in the current match.
	TieStreak     int    // Consecutive tied rounds.
	Blocked       Choice // Player card that just tied; unplayable until the round resolves or replays.
	LastDealer    Choice // Dealer card of the previous round, "" if none.
	MatchPoints   int    // Points awarded for the current match.
	SessionPoints int    // Points accumulated across matches in this session.
	GamesWon      int    // Matches won in this session.
	State         State
	Won           bool // Set when the current match completes with a player win.

	picker Picker
}

// RoundResult describes one play.
type RoundResult struct {
	Player   Choice  `json:"player"`
	Dealer   Choice  `json:"dealer"`
	Outcome  Outcome `json:"outcome"`  // from the player's point of view
	Replay   bool    `json:"replay"`   // tie-streak hit the limit; round discarded
	Complete bool    `json:"complete"` // this play finished the match
}
