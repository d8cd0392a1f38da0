// internal/matchmaking/queue.go
package matchmaking

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/bearpark/arcade/internal/models"
)

// ErrWalletBlacklisted is returned when a blacklisted wallet tries to queue.
var ErrWalletBlacklisted = errors.New("wallet is blacklisted from matchmaking")

// ErrAlreadyQueued is returned when a connection joins the queue twice.
var ErrAlreadyQueued = errors.New("already in the matchmaking queue")

// Blacklist answers whether a wallet is barred from play. The database layer
// provides the production implementation.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, wallet string) (bool, error)
}

// PairFn receives the two players of a freshly formed pair. The first player
// takes the left side.
type PairFn func(left, right *models.Player)

// Queue is the FIFO matchmaking queue. It is the only mutable state shared
// across connections, so a single mutex serializes every operation.
type Queue struct {
	mu      sync.Mutex
	waiting []*models.Player

	blacklist Blacklist

	// OnPair is invoked (outside the queue lock) whenever two players are
	// matched.
	OnPair PairFn
}

// NewQueue builds an empty queue. The blacklist may be nil, in which case
// every wallet is admitted.
func NewQueue(blacklist Blacklist) *Queue {
	return &Queue{blacklist: blacklist}
}

// Join enqueues a player and returns their 1-based queue position. If a
// second player is already waiting, the pair is formed immediately and the
// returned position is 0.
func (q *Queue) Join(ctx context.Context, p *models.Player) (int, error) {
	if q.blacklist != nil {
		barred, err := q.blacklist.IsBlacklisted(ctx, p.Data.Wallet)
		if err == nil && barred {
			return 0, ErrWalletBlacklisted
		}
		// A blacklist lookup failure must not block matchmaking.
	}

	q.mu.Lock()
	for _, w := range q.waiting {
		if w.ID == p.ID {
			q.mu.Unlock()
			return 0, ErrAlreadyQueued
		}
	}
	if len(q.waiting) == 0 {
		q.waiting = append(q.waiting, p)
		q.mu.Unlock()
		return 1, nil
	}
	opponent := q.waiting[0]
	q.waiting = q.waiting[1:]
	onPair := q.OnPair
	q.mu.Unlock()

	if onPair != nil {
		onPair(opponent, p)
	}
	return 0, nil
}

// Leave removes a waiting player, e.g. on disconnect before a match is found.
// Removing an absent player is a no-op.
func (q *Queue) Leave(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiting {
		if w.ID == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return
		}
	}
}

// Len reports how many players are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
