// Package ranking provides the in-memory ordered score store backing the
// live leaderboards. Each (window, period) board is a size-augmented treap
// ordered by score descending with insertion order breaking ties, so rank,
// top-page and neighborhood reads are all O(log n).
package ranking

import (
	"math/rand"
	"sync"

	"questline/contexts/player-progression/reward-service/domain/entities"
	"questline/contexts/player-progression/reward-service/ports"
)

type entryKey struct {
	score int64
	seq   uint64
}

// less orders higher scores first; among equal scores the earlier writer
// keeps the better rank.
func (k entryKey) less(other entryKey) bool {
	if k.score != other.score {
		return k.score > other.score
	}
	return k.seq < other.seq
}

type node struct {
	key    entryKey
	userID string
	prio   uint64
	size   int
	left   *node
	right  *node
}

func sizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func (n *node) recount() {
	n.size = 1 + sizeOf(n.left) + sizeOf(n.right)
}

// split partitions t into nodes strictly before key and the rest.
func split(t *node, key entryKey) (*node, *node) {
	if t == nil {
		return nil, nil
	}
	if t.key.less(key) {
		left, right := split(t.right, key)
		t.right = left
		t.recount()
		return t, right
	}
	left, right := split(t.left, key)
	t.left = right
	t.recount()
	return left, t
}

func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.prio > b.prio {
		a.right = merge(a.right, b)
		a.recount()
		return a
	}
	b.left = merge(a, b.left)
	b.recount()
	return b
}

func insert(t *node, n *node) *node {
	left, right := split(t, n.key)
	return merge(merge(left, n), right)
}

func remove(t *node, key entryKey) *node {
	if t == nil {
		return nil
	}
	if t.key == key {
		return merge(t.left, t.right)
	}
	if t.key.less(key) {
		t.right = remove(t.right, key)
	} else {
		t.left = remove(t.left, key)
	}
	t.recount()
	return t
}

// rankOf returns the 0-based position of key in t.
func rankOf(t *node, key entryKey) int {
	rank := 0
	for t != nil {
		if t.key == key {
			return rank + sizeOf(t.left)
		}
		if t.key.less(key) {
			rank += sizeOf(t.left) + 1
			t = t.right
		} else {
			t = t.left
		}
	}
	return -1
}

// walk visits nodes at 0-based positions [from, to) in rank order.
func walk(t *node, from, to int, visit func(*node)) {
	if t == nil || from >= to || to <= 0 || from >= sizeOf(t) {
		return
	}
	leftSize := sizeOf(t.left)
	walk(t.left, from, to, visit)
	if from <= leftSize && leftSize < to {
		visit(t)
	}
	walk(t.right, from-leftSize-1, to-leftSize-1, visit)
}

type board struct {
	root   *node
	byUser map[string]*node
}

func newBoard() *board {
	return &board{byUser: make(map[string]*node)}
}

type boardKey struct {
	window   entities.Window
	periodID string
}

// Store implements the RankingStore port. A single RWMutex guards every
// board; writes are short (two O(log n) tree operations) so contention stays
// negligible next to the durable award write they follow.
type Store struct {
	mu     sync.RWMutex
	boards map[boardKey]*board
	seq    uint64
	rng    *rand.Rand
}

func NewStore() *Store {
	return &Store{
		boards: make(map[boardKey]*board),
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}
}

var _ ports.RankingStore = (*Store)(nil)

// Set upserts the user's absolute score and reports the rank movement it
// caused. Re-setting the same score keeps the user's tie-break position.
func (s *Store) Set(window entities.Window, periodID string, userID string, score int64) ports.RankChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := boardKey{window: window, periodID: periodID}
	b, ok := s.boards[key]
	if !ok {
		b = newBoard()
		s.boards[key] = b
	}

	change := ports.RankChange{Window: window, PeriodID: periodID}

	existing, ranked := b.byUser[userID]
	if ranked {
		change.OldRank = rankOf(b.root, existing.key) + 1
		if existing.key.score == score {
			change.NewRank = change.OldRank
			return change
		}
		b.root = remove(b.root, existing.key)
	}

	s.seq++
	n := &node{
		key:    entryKey{score: score, seq: s.seq},
		userID: userID,
		prio:   s.rng.Uint64(),
		size:   1,
	}
	b.root = insert(b.root, n)
	b.byUser[userID] = n

	change.NewRank = rankOf(b.root, n.key) + 1
	return change
}

func (s *Store) Rank(window entities.Window, periodID string, userID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[boardKey{window: window, periodID: periodID}]
	if !ok {
		return 0, false
	}
	n, ok := b.byUser[userID]
	if !ok {
		return 0, false
	}
	return rankOf(b.root, n.key) + 1, true
}

func (s *Store) Top(window entities.Window, periodID string, limit int, offset int) []ports.RankedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[boardKey{window: window, periodID: periodID}]
	if !ok || limit <= 0 || offset < 0 {
		return nil
	}
	return s.page(b, offset, offset+limit)
}

// Around returns the contiguous block of radius neighbors on each side of
// the user, clamped at the board edges. Unranked users get nil.
func (s *Store) Around(window entities.Window, periodID string, userID string, radius int) []ports.RankedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[boardKey{window: window, periodID: periodID}]
	if !ok || radius < 0 {
		return nil
	}
	n, ok := b.byUser[userID]
	if !ok {
		return nil
	}
	pos := rankOf(b.root, n.key)
	from := pos - radius
	if from < 0 {
		from = 0
	}
	return s.page(b, from, pos+radius+1)
}

func (s *Store) page(b *board, from, to int) []ports.RankedEntry {
	if total := sizeOf(b.root); to > total {
		to = total
	}
	if from >= to {
		return nil
	}
	entries := make([]ports.RankedEntry, 0, to-from)
	rank := from + 1
	walk(b.root, from, to, func(n *node) {
		entries = append(entries, ports.RankedEntry{
			Rank:   rank,
			UserID: n.userID,
			Score:  n.key.score,
		})
		rank++
	})
	return entries
}

func (s *Store) Clear(window entities.Window, periodID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boards, boardKey{window: window, periodID: periodID})
}

func (s *Store) LivePeriods(window entities.Window) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var periods []string
	for key := range s.boards {
		if key.window == window {
			periods = append(periods, key.periodID)
		}
	}
	return periods
}
