// internal/httpserver/server.go
//
// HTTP server wiring for the card game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     access logging).
//   - Public endpoints: "/", "/health".
//   - Player endpoints: POST /players (name entry), GET /players/latest.
//   - Game endpoints (optional player token): mounted under /game.
//   - Leaderboard: GET /leaderboard.
//
// Notes:
//   - Player records go through players.Gateway, which serializes store
//     access and runs writes independently of the request that asked.
//   - Sessions live in memory only; the players table receives the delta of
//     each completed match.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/cardgame/internal/leaderboard"
	"github.com/robalobadob/cardgame/internal/players"
	"github.com/robalobadob/cardgame/internal/store"
)

// DefaultPlayerName is used when no player can be resolved for a new game.
const DefaultPlayerName = "Player"

const maxNameLen = 32

// Config holds the HTTP-facing settings.
type Config struct {
	ClientOrigin   string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	Secure         bool // production cookies (Secure, SameSite=None)
}

// Server bundles router, session store and player gateway.
type Server struct {
	r        *chi.Mux
	cfg      Config
	sessions store.Store
	players  *players.Gateway
	board    *leaderboard.Service
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg Config, sessions store.Store, gw *players.Gateway) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "cardgame_token"
	}
	if cfg.JWTExpiresDays <= 0 {
		cfg.JWTExpiresDays = 14
	}
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		sessions: sessions,
		players:  gw,
		board:    leaderboard.NewService(gw),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"cardgame","endpoints":["/health","POST /players","GET /players/latest","POST /game/new","POST /game/play","POST /game/restart","GET /leaderboard"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Post("/players", s.handleCreatePlayer)
	s.r.Get("/players/latest", s.handleLatestPlayer)
	s.r.Get("/leaderboard", s.handleLeaderboard)

	s.mountGame(s.r.With(s.withOptionalPlayer()))

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request through the request-scoped logger.
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	lvl := zerolog.DebugLevel
	if status >= http.StatusInternalServerError {
		lvl = zerolog.WarnLevel
	}
	hlog.FromRequest(r).WithLevel(lvl).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("requestId", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
})

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ PLAYERS ------------------------------------

type createPlayerReq struct {
	Name string `json:"name"`
}
type createPlayerRes struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// handleCreatePlayer registers a new player name and issues a player token.
// Existing names are rejected so two people never share a leaderboard row.
func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		http.Error(w, `{"error":"invalid_name"}`, http.StatusBadRequest)
		return
	}

	existing := <-s.players.FetchByName(r.Context(), name)
	switch {
	case existing.Err == nil:
		http.Error(w, `{"error":"name_taken"}`, http.StatusConflict)
		return
	case !errors.Is(existing.Err, players.ErrNotFound):
		log.Error().Err(existing.Err).Str("player", name).Msg("lookup player")
		http.Error(w, `{"error":"store_unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	saved := <-s.players.Save(r.Context(), name, 0, 0)
	if errors.Is(saved.Err, players.ErrDuplicateName) {
		http.Error(w, `{"error":"name_taken"}`, http.StatusConflict)
		return
	}
	if saved.Err != nil {
		log.Error().Err(saved.Err).Str("player", name).Msg("save player")
		http.Error(w, `{"error":"store_unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	tok, exp, err := s.signToken(name)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setTokenCookie(w, tok, exp)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createPlayerRes{Name: name, Token: tok})
}

// handleLatestPlayer returns the most recently created player's name, or the
// default name when there is none or the store cannot be read.
func (s *Server) handleLatestPlayer(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"name": s.latestPlayerName(r)})
}

func (s *Server) latestPlayerName(r *http.Request) string {
	select {
	case res := <-s.players.FetchLatest(r.Context()):
		if res.Err != nil {
			if !errors.Is(res.Err, players.ErrNotFound) {
				log.Warn().Err(res.Err).Msg("fetch latest player")
			}
			return DefaultPlayerName
		}
		return res.Value.Name
	case <-r.Context().Done():
		return DefaultPlayerName
	}
}

// normalizeName trims whitespace and enforces 1-32 characters.
func normalizeName(n string) (string, error) {
	n = strings.TrimSpace(n)
	if n == "" || utf8.RuneCountInString(n) > maxNameLen {
		return "", errors.New("name must be 1-32 characters")
	}
	return n, nil
}

// ---------------------------- LEADERBOARD ----------------------------------

type leaderboardRes struct {
	Players []leaderboard.Entry `json:"players"`
}

// handleLeaderboard returns every player ranked by score.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.board.Load(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard")
		http.Error(w, `{"error":"leaderboard_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	_ = json.NewEncoder(w).Encode(leaderboardRes{Players: entries})
}
