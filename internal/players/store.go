// internal/players/store.go
//
// SQLite-backed player records for the leaderboard.
// Responsibilities:
//   - Fetch every player, the most recently created one, or one by name.
//   - Insert new players (names are UNIQUE at the schema level).
//   - Overwrite score/wins of an already-resolved player.
//
// Score and wins are stored as 32-bit values; writes outside that range are
// rejected before reaching the database.

package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("player not found")
	ErrDuplicateName = errors.New("player name already exists")
	ErrOutOfRange    = errors.New("score or wins out of range")
)

// Player is a persisted leaderboard record.
type Player struct {
	ID        int64     `json:"-"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Wins      int       `json:"wins"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the blocking CRUD contract over player records.
type Store interface {
	// All returns every player, unordered. An empty store yields an empty slice.
	All(ctx context.Context) ([]Player, error)
	// Latest returns the most recently created player or ErrNotFound.
	Latest(ctx context.Context) (Player, error)
	// ByName returns the player with exactly this name or ErrNotFound.
	ByName(ctx context.Context, name string) (Player, error)
	// Insert creates a player stamped with the current time.
	Insert(ctx context.Context, name string, score, wins int) (Player, error)
	// Update overwrites score and wins of an existing player.
	Update(ctx context.Context, p Player, score, wins int) error
}

// SQLStore implements Store on a *sql.DB using the players table.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db. The schema must already be migrated (see Migrate).
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

const selectPlayer = `SELECT id, name, score, wins, created_at FROM players`

func (s *SQLStore) All(ctx context.Context) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, selectPlayer)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	out := []Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) Latest(ctx context.Context) (Player, error) {
	row := s.db.QueryRowContext(ctx, selectPlayer+` ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanOne(row)
}

func (s *SQLStore) ByName(ctx context.Context, name string) (Player, error) {
	row := s.db.QueryRowContext(ctx, selectPlayer+` WHERE name=?`, name)
	return scanOne(row)
}

func (s *SQLStore) Insert(ctx context.Context, name string, score, wins int) (Player, error) {
	if err := checkRange(score, wins); err != nil {
		return Player{}, err
	}
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO players (name, score, wins, created_at) VALUES (?,?,?,?)`,
		name, score, wins, created.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Player{}, ErrDuplicateName
		}
		return Player{}, fmt.Errorf("insert player %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Player{}, fmt.Errorf("insert player %q: %w", name, err)
	}
	return Player{ID: id, Name: name, Score: score, Wins: wins, CreatedAt: created}, nil
}

func (s *SQLStore) Update(ctx context.Context, p Player, score, wins int) error {
	if err := checkRange(score, wins); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET score=?, wins=? WHERE id=?`, score, wins, p.ID)
	if err != nil {
		return fmt.Errorf("update player %q: %w", p.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player %q: %w", p.Name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(sc scanner) (Player, error) {
	var p Player
	var created int64
	if err := sc.Scan(&p.ID, &p.Name, &p.Score, &p.Wins, &created); err != nil {
		return Player{}, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, nil
}

func scanOne(row *sql.Row) (Player, error) {
	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, ErrNotFound
	}
	if err != nil {
		return Player{}, fmt.Errorf("query player: %w", err)
	}
	return p, nil
}

func checkRange(score, wins int) error {
	if score < math.MinInt32 || score > math.MaxInt32 || wins < math.MinInt32 || wins > math.MaxInt32 {
		return ErrOutOfRange
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
