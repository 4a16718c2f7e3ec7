// internal/game/engine.go
//
// Core game engine for a card game session against the dealer.
// Responsibilities:
//   - Resolve a pair of choices with the fixed dominance table.
//   - Pick the dealer's card (uniform, minus the previous card).
//   - Drive the round/match state machine: ties, replays, completion.
//
// Notes:
//   - A session is not safe for concurrent use; the session store serializes
//     access to it.
//   - The random source is injectable through Picker so play is reproducible.
package game

import (
	"math/rand"
	"strings"
)

// beats maps each choice to the one it defeats.
var beats = map[Choice]Choice{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// Picker supplies random indexes for the dealer. *rand.Rand satisfies it.
type Picker interface {
	Intn(n int) int
}

type globalPicker struct{}

func (globalPicker) Intn(n int) int { return rand.Intn(n) }

// Resolve compares two choices and reports which side, if any, wins.
func Resolve(first, second Choice) Outcome {
	switch {
	case first == second:
		return Tie
	case beats[first] == second:
		return FirstWins
	default:
		return SecondWins
	}
}

// Valid reports whether c is one of the three playable cards.
func (c Choice) Valid() bool {
	_, ok := beats[c]
	return ok
}

// ParseChoice accepts a card name (any case) or one of the card glyphs.
func ParseChoice(s string) (Choice, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "👊":
		return Rock, nil
	case "✌️", "✌":
		return Scissors, nil
	case "✋":
		return Paper, nil
	}
	c := Choice(strings.ToLower(s))
	if !c.Valid() {
		return "", ErrInvalidChoice
	}
	return c, nil
}

// NewSession starts a session for name. A nil picker uses math/rand.
func NewSession(id, name string, p Picker) *Session {
	if p == nil {
		p = globalPicker{}
	}
	return &Session{
		ID:         id,
		PlayerName: name,
		State:      StateInRound,
		picker:     p,
	}
}

// Play resolves one round with the player's card against a fresh dealer card.
//
// State transitions:
//   - Tie: tie-streak grows and the player's card is blocked; at
//     ReplayAfterTies the round is discarded, the streak, the block and the
//     dealer memory reset, and Replay is set.
//   - Win/loss: the streak resets, the winning side and the round counter
//     advance; the MaxRounds-th resolved round completes the match.
func (s *Session) Play(player Choice) (RoundResult, error) {
	if s.State == StateMatchComplete {
		return RoundResult{}, ErrMatchFinished
	}
	if !player.Valid() {
		return RoundResult{}, ErrInvalidChoice
	}
	if player == s.Blocked {
		return RoundResult{}, ErrCardBlocked
	}
	return s.apply(player, s.dealerChoice()), nil
}

// apply advances the state machine with both cards already known.
func (s *Session) apply(player, dealer Choice) RoundResult {
	res := RoundResult{Player: player, Dealer: dealer, Outcome: Resolve(player, dealer)}

	if res.Outcome == Tie {
		s.TieStreak++
		s.Blocked = player
		s.State = StateTieStreak
		if s.TieStreak >= ReplayAfterTies {
			s.TieStreak = 0
			s.Blocked = ""
			s.LastDealer = ""
			s.State = StateInRound
			res.Replay = true
		}
		return res
	}

	s.TieStreak = 0
	s.Blocked = ""
	if res.Outcome == FirstWins {
		s.PlayerWins++
	} else {
		s.DealerWins++
	}
	s.RoundsPlayed++
	s.State = StateRoundResolved

	if s.RoundsPlayed >= MaxRounds {
		s.complete()
		res.Complete = true
	}
	return res
}

func (s *Session) complete() {
	s.State = StateMatchComplete
	if s.PlayerWins > s.DealerWins {
		s.Won = true
		s.MatchPoints = WinPoints
		s.SessionPoints += WinPoints
		s.GamesWon++
		return
	}
	s.MatchPoints = 0
}

// dealerChoice draws the dealer's card. While the tie-streak is below
// ReplayAfterTies the previous dealer card is not a candidate.
func (s *Session) dealerChoice() Choice {
	candidates := make([]Choice, 0, len(Choices))
	for _, c := range Choices {
		if c == s.LastDealer && s.TieStreak < ReplayAfterTies {
			continue
		}
		candidates = append(candidates, c)
	}
	c := candidates[s.picker.Intn(len(candidates))]
	s.LastDealer = c
	return c
}

// Restart begins a new match in the same session. Session points and games
// won carry over.
func (s *Session) Restart() {
	s.RoundsPlayed = 0
	s.PlayerWins = 0
	s.DealerWins = 0
	s.TieStreak = 0
	s.Blocked = ""
	s.LastDealer = ""
	s.MatchPoints = 0
	s.Won = false
	s.State = StateInRound
}

// Delta returns the score and wins to add to the player's record for the
// completed match.
func (s *Session) Delta() (points, wins int) {
	if s.State != StateMatchComplete || !s.Won {
		return 0, 0
	}
	return s.MatchPoints, 1
}
