// internal/httpserver/routes_game.go
//
// HTTP routes for playing against the dealer.
// Exposes endpoints under /game:
//   - POST   /game/new     → start a session for the token's player (or the latest player)
//   - POST   /game/play    → play one card; resolves the round and, on the
//                            fifth resolved round, records the match result
//   - POST   /game/restart → start another match in the same session
//   - GET    /game/{id}    → current session scoreboard
//   - DELETE /game/{id}    → discard the session (back to the start screen)

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cardgame/internal/game"
	"github.com/robalobadob/cardgame/internal/store"
)

// mountGame registers all /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.Post("/new", s.handleNewGame)
		r.Post("/play", s.handlePlay)
		r.Post("/restart", s.handleRestart)
		r.Get("/{id}", s.handleGetGame)
		r.Delete("/{id}", s.handleDeleteGame)
	})
}

// sessionView is the scoreboard a client renders.
type sessionView struct {
	SessionID     string      `json:"sessionId"`
	Player        string      `json:"player"`
	State         game.State  `json:"state"`
	RoundsPlayed  int         `json:"roundsPlayed"`
	MaxRounds     int         `json:"maxRounds"`
	PlayerWins    int         `json:"playerWins"`
	DealerWins    int         `json:"dealerWins"`
	TieStreak     int         `json:"tieStreak"`
	Blocked       game.Choice `json:"blocked,omitempty"` // card the player may not repeat after a tie
	SessionPoints int         `json:"sessionPoints"`
	GamesWon      int         `json:"gamesWon"`
}

func viewOf(s game.Session) sessionView {
	return sessionView{
		SessionID:     s.ID,
		Player:        s.PlayerName,
		State:         s.State,
		RoundsPlayed:  s.RoundsPlayed,
		MaxRounds:     game.MaxRounds,
		PlayerWins:    s.PlayerWins,
		DealerWins:    s.DealerWins,
		TieStreak:     s.TieStreak,
		Blocked:       s.Blocked,
		SessionPoints: s.SessionPoints,
		GamesWon:      s.GamesWon,
	}
}

// -----------------------------------------------------------------------------
// /game/new

// handleNewGame starts a session. The player is taken from the token when
// present, otherwise the most recently created player is used.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	name, ok := playerFromContext(r.Context())
	if !ok {
		name = s.latestPlayerName(r)
	}

	sess := game.NewSession(uuid.NewString(), name, nil)
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	log.Debug().Str("session", sess.ID).Str("player", name).Msg("game started")

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(viewOf(*sess))
}

// -----------------------------------------------------------------------------
// /game/play

type playReq struct {
	SessionID string `json:"sessionId"`
	Choice    string `json:"choice"`
}

// matchSummary is attached to the play response that completes a match.
type matchSummary struct {
	Won       bool   `json:"won"`
	Points    int    `json:"points"`
	Saved     bool   `json:"saved"`
	SaveError string `json:"saveError,omitempty"`
}

type playRes struct {
	Round   game.RoundResult `json:"round"`
	Session sessionView      `json:"session"`
	Match   *matchSummary    `json:"match,omitempty"`
}

// handlePlay resolves one round. When the round completes the match, the
// result is recorded and the response reports whether the write succeeded.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	choice, err := game.ParseChoice(req.Choice)
	if err != nil {
		http.Error(w, `{"error":"invalid_choice"}`, http.StatusBadRequest)
		return
	}

	var (
		round game.RoundResult
		snap  game.Session
	)
	err = s.sessions.Update(r.Context(), req.SessionID, func(sess *game.Session) error {
		res, err := sess.Play(choice)
		if err != nil {
			return err
		}
		round, snap = res, *sess
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, `{"error":"no_session"}`, http.StatusNotFound)
		return
	case errors.Is(err, game.ErrMatchFinished):
		http.Error(w, `{"error":"match_finished"}`, http.StatusConflict)
		return
	case errors.Is(err, game.ErrCardBlocked):
		http.Error(w, `{"error":"card_blocked"}`, http.StatusConflict)
		return
	case err != nil:
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	out := playRes{Round: round, Session: viewOf(snap)}
	if round.Complete {
		summary, ok := s.recordMatch(r, snap)
		if !ok {
			return
		}
		out.Match = summary
	}
	_ = json.NewEncoder(w).Encode(out)
}

// recordMatch writes the match delta and waits for the outcome. If the client
// goes away first the write still completes; ok is false in that case.
func (s *Server) recordMatch(r *http.Request, snap game.Session) (*matchSummary, bool) {
	points, wins := snap.Delta()
	summary := &matchSummary{Won: snap.Won, Points: points}

	select {
	case res := <-s.players.RecordMatch(r.Context(), snap.PlayerName, points, wins):
		if res.Err != nil {
			log.Error().Err(res.Err).
				Str("session", snap.ID).
				Str("player", snap.PlayerName).
				Int("points", points).
				Msg("score not recorded")
			summary.SaveError = "score_not_recorded"
			return summary, true
		}
		summary.Saved = true
		log.Info().Str("session", snap.ID).Str("player", snap.PlayerName).
			Bool("won", snap.Won).Int("score", res.Value.Score).Msg("match recorded")
		return summary, true
	case <-r.Context().Done():
		return nil, false
	}
}

// -----------------------------------------------------------------------------
// /game/restart, /game/{id}

type sessionReq struct {
	SessionID string `json:"sessionId"`
}

// handleRestart begins a new match in an existing session.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req sessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var snap game.Session
	err := s.sessions.Update(r.Context(), req.SessionID, func(sess *game.Session) error {
		sess.Restart()
		snap = *sess
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"no_session"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(snap))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"no_session"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(viewOf(sess))
}

// handleDeleteGame discards a session. Any result write already submitted
// for it is unaffected.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	_ = s.sessions.Delete(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
