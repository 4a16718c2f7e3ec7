package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robalobadob/cardgame/internal/game"
	"github.com/robalobadob/cardgame/internal/players"
	"github.com/robalobadob/cardgame/internal/store"
)

type testEnv struct {
	srv *Server
	db  *sql.DB
	gw  *players.Gateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cardgame.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := players.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	gw := players.NewGateway(players.NewStore(db),
		players.WithMaxTries(1), players.WithRetryInterval(time.Millisecond))
	t.Cleanup(gw.Close)

	srv := New(Config{JWTSecret: "test_secret"}, store.NewMemoryStore(), gw)
	return &testEnv{srv: srv, db: db, gw: gw}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) createPlayer(t *testing.T, name string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/players", createPlayerReq{Name: name}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create player: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[createPlayerRes](t, rec).Token
}

func (e *testEnv) newGame(t *testing.T, token string) sessionView {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/game/new", nil, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("new game: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[sessionView](t, rec)
}

// playUntil plays rock (paper while rock is blocked by a tie) until stop
// reports true, failing after a generous cap.
func (e *testEnv) playUntil(t *testing.T, id string, stop func(playRes) bool) playRes {
	t.Helper()
	var blocked game.Choice
	if v, err := e.srv.sessions.Get(context.Background(), id); err == nil {
		blocked = v.Blocked
	}
	for i := 0; i < 500; i++ {
		choice := game.Rock
		if blocked == game.Rock {
			choice = game.Paper
		}
		rec := e.do(t, http.MethodPost, "/game/play", playReq{SessionID: id, Choice: string(choice)}, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("play: status %d body %s", rec.Code, rec.Body.String())
		}
		res := decode[playRes](t, rec)
		if stop(res) {
			return res
		}
		blocked = res.Session.Blocked
	}
	t.Fatal("match did not reach the expected state")
	return playRes{}
}

func complete(res playRes) bool { return res.Round.Complete }

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePlayer(t *testing.T) {
	e := newTestEnv(t)
	if tok := e.createPlayer(t, "  alice "); tok == "" {
		t.Fatal("expected token")
	}

	rec := e.do(t, http.MethodPost, "/players", createPlayerReq{Name: "alice"}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name: expected 409, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/players", createPlayerReq{Name: "   "}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name: expected 400, got %d", rec.Code)
	}

	res := <-e.gw.FetchByName(context.Background(), "alice")
	if res.Err != nil || res.Value.Score != 0 || res.Value.Wins != 0 {
		t.Fatalf("stored player = %+v, %v", res.Value, res.Err)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"  alice ", "alice", false},
		{strings.Repeat("x", maxNameLen), strings.Repeat("x", maxNameLen), false},
		{strings.Repeat("é", maxNameLen), strings.Repeat("é", maxNameLen), false},
		{strings.Repeat("x", maxNameLen+1), "", true},
		{" \t ", "", true},
	}
	for _, tc := range tests {
		got, err := normalizeName(tc.in)
		if tc.err {
			if err == nil || err.Error() != "name must be 1-32 characters" {
				t.Errorf("normalizeName(%q): unexpected error %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("normalizeName(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestLatestPlayer(t *testing.T) {
	e := newTestEnv(t)
	got := decode[map[string]string](t, e.do(t, http.MethodGet, "/players/latest", nil, ""))
	if got["name"] != DefaultPlayerName {
		t.Fatalf("expected default name, got %q", got["name"])
	}

	e.createPlayer(t, "alice")
	e.createPlayer(t, "bob")
	got = decode[map[string]string](t, e.do(t, http.MethodGet, "/players/latest", nil, ""))
	if got["name"] != "bob" {
		t.Fatalf("expected bob, got %q", got["name"])
	}
}

func TestNewGameUsesTokenOrLatestPlayer(t *testing.T) {
	e := newTestEnv(t)
	tok := e.createPlayer(t, "alice")
	e.createPlayer(t, "bob")

	if v := e.newGame(t, tok); v.Player != "alice" {
		t.Fatalf("expected token player alice, got %q", v.Player)
	}
	if v := e.newGame(t, ""); v.Player != "bob" {
		t.Fatalf("expected latest player bob, got %q", v.Player)
	}
	if v := e.newGame(t, "not-a-token"); v.Player != "bob" {
		t.Fatalf("invalid token should fall back to latest, got %q", v.Player)
	}
}

func TestPlayFullMatchRecordsResult(t *testing.T) {
	e := newTestEnv(t)
	tok := e.createPlayer(t, "alice")
	v := e.newGame(t, tok)
	if v.State != game.StateInRound || v.MaxRounds != game.MaxRounds {
		t.Fatalf("unexpected new session %+v", v)
	}

	res := e.playUntil(t, v.SessionID, complete)
	if res.Match == nil || !res.Match.Saved {
		t.Fatalf("expected saved match summary, got %+v", res.Match)
	}
	if res.Session.State != game.StateMatchComplete || res.Session.RoundsPlayed != game.MaxRounds {
		t.Fatalf("unexpected final session %+v", res.Session)
	}
	wantPoints, wantWins := 0, 0
	if res.Match.Won {
		wantPoints, wantWins = game.WinPoints, 1
	}
	if res.Match.Points != wantPoints {
		t.Fatalf("points = %d, want %d", res.Match.Points, wantPoints)
	}

	board := decode[leaderboardRes](t, e.do(t, http.MethodGet, "/leaderboard", nil, ""))
	if len(board.Players) != 1 {
		t.Fatalf("expected one leaderboard row, got %+v", board.Players)
	}
	if row := board.Players[0]; row.Name != "alice" || row.Score != wantPoints || row.Wins != wantWins {
		t.Fatalf("unexpected leaderboard row %+v", row)
	}

	rec := e.do(t, http.MethodPost, "/game/play", playReq{SessionID: v.SessionID, Choice: "rock"}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("play after completion: expected 409, got %d", rec.Code)
	}
}

// firstCard always draws the first candidate, so a fresh dealer plays rock.
type firstCard struct{}

func (firstCard) Intn(int) int { return 0 }

func TestPlayRejectsCardBlockedByTie(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	if err := e.srv.sessions.Save(ctx, game.NewSession("tied", "alice", firstCard{})); err != nil {
		t.Fatalf("save session: %v", err)
	}

	rec := e.do(t, http.MethodPost, "/game/play", playReq{SessionID: "tied", Choice: "rock"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first play: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[playRes](t, rec)
	if res.Round.Outcome != game.Tie || res.Session.Blocked != game.Rock {
		t.Fatalf("expected tie blocking rock, got %+v", res)
	}

	rec = e.do(t, http.MethodPost, "/game/play", playReq{SessionID: "tied", Choice: "👊"}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("blocked card: expected 409, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["error"] != "card_blocked" {
		t.Fatalf("expected card_blocked, got %v", got)
	}

	v := decode[sessionView](t, e.do(t, http.MethodGet, "/game/tied", nil, ""))
	if v.TieStreak != 1 || v.Blocked != game.Rock || v.RoundsPlayed != 0 {
		t.Fatalf("rejected play changed the session: %+v", v)
	}

	// Rock is the dealer's last card, so it draws scissors and paper loses.
	rec = e.do(t, http.MethodPost, "/game/play", playReq{SessionID: "tied", Choice: "paper"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unblocked card: %d %s", rec.Code, rec.Body.String())
	}
	res = decode[playRes](t, rec)
	if res.Round.Outcome != game.SecondWins || res.Session.Blocked != "" || res.Session.RoundsPlayed != 1 {
		t.Fatalf("expected resolved round clearing the block, got %+v", res)
	}
}

func TestPlayRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	v := e.newGame(t, "")

	rec := e.do(t, http.MethodPost, "/game/play", playReq{SessionID: v.SessionID, Choice: "lizard"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid choice: expected 400, got %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/game/play", playReq{SessionID: "missing", Choice: "rock"}, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", rec.Code)
	}
}

func TestPlayReportsUnrecordedScore(t *testing.T) {
	e := newTestEnv(t)
	tok := e.createPlayer(t, "alice")
	v := e.newGame(t, tok)

	e.playUntil(t, v.SessionID, func(r playRes) bool { return r.Session.RoundsPlayed == game.MaxRounds-1 })
	_ = e.db.Close()

	res := e.playUntil(t, v.SessionID, complete)
	if res.Match == nil {
		t.Fatal("expected match summary")
	}
	if res.Match.Saved || res.Match.SaveError != "score_not_recorded" {
		t.Fatalf("expected unrecorded score notice, got %+v", res.Match)
	}
}

func TestLeaderboardOrdersByScore(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	<-e.gw.Save(ctx, "low", 5, 0)
	<-e.gw.Save(ctx, "high", 20, 2)
	<-e.gw.Save(ctx, "also-low", 5, 1)

	board := decode[leaderboardRes](t, e.do(t, http.MethodGet, "/leaderboard", nil, ""))
	if len(board.Players) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(board.Players))
	}
	if board.Players[0].Name != "high" || board.Players[0].Position != 1 {
		t.Fatalf("expected high first, got %+v", board.Players[0])
	}
}

func TestLeaderboardUnavailable(t *testing.T) {
	e := newTestEnv(t)
	_ = e.db.Close()
	rec := e.do(t, http.MethodGet, "/leaderboard", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRestartAndDelete(t *testing.T) {
	e := newTestEnv(t)
	v := e.newGame(t, "")
	e.playUntil(t, v.SessionID, complete)

	rec := e.do(t, http.MethodPost, "/game/restart", sessionReq{SessionID: v.SessionID}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restart: %d %s", rec.Code, rec.Body.String())
	}
	after := decode[sessionView](t, rec)
	if after.State != game.StateInRound || after.RoundsPlayed != 0 {
		t.Fatalf("restart did not reset the match: %+v", after)
	}

	rec = e.do(t, http.MethodGet, "/game/"+v.SessionID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: %d", rec.Code)
	}

	rec = e.do(t, http.MethodDelete, "/game/"+v.SessionID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/game/"+v.SessionID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}
