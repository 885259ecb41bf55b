package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	defaultMempoolSize = 10_000
	maxTxAge           = time.Hour
	maxTxFuture        = 5 * time.Minute
)

// Mempool admission errors.
var (
	ErrMempoolFull  = errors.New("mempool full")
	ErrTxKnown      = errors.New("tx already in pool")
	ErrNonceTaken   = errors.New("sender already has a pending tx with this nonce")
	ErrTxExpired    = errors.New("transaction expired")
	ErrTxFromFuture = errors.New("transaction timestamp too far in the future")
)

type senderNonce struct {
	from  string
	nonce uint64
}

// Mempool is a thread-safe pool of signed transactions waiting for a block.
type Mempool struct {
	mu       sync.RWMutex
	capacity int
	now      func() time.Time
	txs      map[string]*Transaction
	nonces   map[senderNonce]string
	ord      []string // arrival order
}

// MempoolOption configures a Mempool.
type MempoolOption func(*Mempool)

// WithCapacity bounds the number of pending transactions.
func WithCapacity(n int) MempoolOption {
	return func(m *Mempool) { m.capacity = n }
}

// WithClock replaces time.Now for the timestamp window check.
func WithClock(now func() time.Time) MempoolOption {
	return func(m *Mempool) { m.now = now }
}

// NewMempool creates an empty mempool.
func NewMempool(opts ...MempoolOption) *Mempool {
	m := &Mempool{
		capacity: defaultMempoolSize,
		now:      time.Now,
		txs:      make(map[string]*Transaction),
		nonces:   make(map[senderNonce]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add verifies tx and queues it. The timestamp must fall within one hour
// in the past and five minutes in the future.
func (m *Mempool) Add(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %w", err)
	}
	now := m.now()
	ts := time.Unix(0, tx.Timestamp)
	if now.Sub(ts) > maxTxAge {
		return ErrTxExpired
	}
	if ts.Sub(now) > maxTxFuture {
		return ErrTxFromFuture
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.ID]; ok {
		return ErrTxKnown
	}
	key := senderNonce{tx.From, tx.Nonce}
	if _, ok := m.nonces[key]; ok {
		return ErrNonceTaken
	}
	if len(m.txs) >= m.capacity {
		return ErrMempoolFull
	}
	m.txs[tx.ID] = tx
	m.nonces[key] = tx.ID
	m.ord = append(m.ord, tx.ID)
	return nil
}

// Get returns a transaction by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[id]
	return tx, ok
}

// Pending returns up to n transactions. Senders keep their arrival slots
// but each sender's transactions are handed out in nonce order, so a
// nonce gap introduced by out-of-order submission does not stall a block.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySender := make(map[string][]*Transaction)
	for _, id := range m.ord {
		tx := m.txs[id]
		bySender[tx.From] = append(bySender[tx.From], tx)
	}
	for _, list := range bySender {
		sort.Slice(list, func(i, j int) bool { return list[i].Nonce < list[j].Nonce })
	}

	result := make([]*Transaction, 0, min(n, len(m.ord)))
	for _, id := range m.ord {
		if len(result) >= n {
			break
		}
		from := m.txs[id].From
		list := bySender[from]
		result = append(result, list[0])
		bySender[from] = list[1:]
	}
	return result
}

// Remove deletes transactions by ID (called after block commit).
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if tx, ok := m.txs[id]; ok {
			delete(m.nonces, senderNonce{tx.From, tx.Nonce})
			delete(m.txs, id)
		}
	}
	m.compact()
}

// Prune drops every transaction whose nonce is already behind its sender's
// account. It returns the number removed.
func (m *Mempool) Prune(state State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[string]uint64)
	removed := 0
	for id, tx := range m.txs {
		n, ok := next[tx.From]
		if !ok {
			acc, err := state.GetAccount(tx.From)
			if err != nil {
				continue
			}
			n = acc.Nonce
			next[tx.From] = n
		}
		if tx.Nonce < n {
			delete(m.nonces, senderNonce{tx.From, tx.Nonce})
			delete(m.txs, id)
			removed++
		}
	}
	if removed > 0 {
		m.compact()
	}
	return removed
}

func (m *Mempool) compact() {
	kept := m.ord[:0]
	for _, id := range m.ord {
		if _, ok := m.txs[id]; ok {
			kept = append(kept, id)
		}
	}
	m.ord = kept
}

// Size returns the current number of pending transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
