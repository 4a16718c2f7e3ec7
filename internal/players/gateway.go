// internal/players/gateway.go
//
// Asynchronous façade over a Store.
//
// Every operation is queued to a single worker goroutine, so store access is
// serialized in submission order. Callers get a receive-only channel that
// delivers exactly one Result and is then closed.
//
// Operations are detached from the caller's cancellation: a write submitted
// by a request that goes away still completes.

package players

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// ErrClosed is delivered for operations submitted after Close.
var ErrClosed = errors.New("player gateway closed")

// Result carries the outcome of an asynchronous operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Gateway serializes store operations onto one worker.
type Gateway struct {
	store Store

	mu     sync.RWMutex // guards closed and sends on jobs
	closed bool
	jobs   chan func()
	done   chan struct{}

	maxTries      uint
	retryInterval time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxTries bounds the attempts RecordMatch makes on store failures.
func WithMaxTries(n uint) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxTries = n
		}
	}
}

// WithRetryInterval sets the first backoff interval for RecordMatch.
func WithRetryInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.retryInterval = d
		}
	}
}

// NewGateway starts the worker. Call Close to drain and stop it.
func NewGateway(st Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:         st,
		jobs:          make(chan func(), 64),
		done:          make(chan struct{}),
		maxTries:      3,
		retryInterval: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	go g.run()
	return g
}

func (g *Gateway) run() {
	defer close(g.done)
	for job := range g.jobs {
		job()
	}
}

// Close stops accepting operations, runs the queued ones and waits for the
// worker to exit.
func (g *Gateway) Close() {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.jobs)
	}
	g.mu.Unlock()
	<-g.done
}

func submit[T any](g *Gateway, ctx context.Context, op func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		out <- Result[T]{Err: ErrClosed}
		close(out)
		return out
	}

	ctx = context.WithoutCancel(ctx)
	g.jobs <- func() {
		v, err := op(ctx)
		out <- Result[T]{Value: v, Err: err}
		close(out)
	}
	return out
}

// FetchAll delivers every stored player, unordered.
func (g *Gateway) FetchAll(ctx context.Context) <-chan Result[[]Player] {
	return submit(g, ctx, g.store.All)
}

// FetchLatest delivers the most recently created player or ErrNotFound.
func (g *Gateway) FetchLatest(ctx context.Context) <-chan Result[Player] {
	return submit(g, ctx, g.store.Latest)
}

// FetchByName delivers the named player or ErrNotFound.
func (g *Gateway) FetchByName(ctx context.Context, name string) <-chan Result[Player] {
	return submit(g, ctx, func(ctx context.Context) (Player, error) {
		return g.store.ByName(ctx, name)
	})
}

// Save inserts a new player.
func (g *Gateway) Save(ctx context.Context, name string, score, wins int) <-chan Result[Player] {
	return submit(g, ctx, func(ctx context.Context) (Player, error) {
		return g.store.Insert(ctx, name, score, wins)
	})
}

// Update overwrites score and wins on an already-resolved player.
func (g *Gateway) Update(ctx context.Context, p Player, score, wins int) <-chan Result[struct{}] {
	return submit(g, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.Update(ctx, p, score, wins)
	})
}

// RecordMatch adds a finished match's points and wins to the named player,
// creating the record when it does not exist yet. Store failures are retried
// with exponential backoff up to the configured number of tries; the last
// error is delivered if every attempt fails.
func (g *Gateway) RecordMatch(ctx context.Context, name string, points, wins int) <-chan Result[Player] {
	return submit(g, ctx, func(ctx context.Context) (Player, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = g.retryInterval
		b.MaxInterval = 8 * g.retryInterval

		return backoff.Retry(ctx,
			func() (Player, error) {
				p, err := g.recordOnce(ctx, name, points, wins)
				if errors.Is(err, ErrOutOfRange) {
					return Player{}, backoff.Permanent(err)
				}
				return p, err
			},
			backoff.WithBackOff(b),
			backoff.WithMaxTries(g.maxTries),
			backoff.WithNotify(func(err error, d time.Duration) {
				log.Warn().Err(err).Str("player", name).Dur("retryIn", d).Msg("record match")
			}),
		)
	})
}

func (g *Gateway) recordOnce(ctx context.Context, name string, points, wins int) (Player, error) {
	p, err := g.store.ByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return g.store.Insert(ctx, name, points, wins)
	}
	if err != nil {
		return Player{}, err
	}

	score, total := p.Score+points, p.Wins+wins
	if err := g.store.Update(ctx, p, score, total); err != nil {
		return Player{}, err
	}
	p.Score, p.Wins = score, total
	return p, nil
}
