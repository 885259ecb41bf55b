package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
)

// registerPrefix adds p to the prefixes ComputeRoot scans. Every state key
// must start with a registered prefix.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

var statePrefixes []string

var (
	prefixAccount    = registerPrefix("acct:")
	prefixMeta       = registerPrefix("meta:")
	prefixChampion   = registerPrefix("champ:")
	prefixCounter    = registerPrefix("ctr:")
	prefixCollColor  = registerPrefix("ccolor:")
	prefixNextColor  = registerPrefix("ncolor:")
	prefixUser       = registerPrefix("user:")
	prefixGame       = registerPrefix("game:")
	prefixExpiring   = registerPrefix("exp:")
	prefixPrice      = registerPrefix("price:")
	prefixListing    = registerPrefix("list:")
	prefixOffer      = registerPrefix("offer:")
	prefixCollection = registerPrefix("coll:")
	prefixItem       = registerPrefix("item:")
)

const (
	keyParams      = "meta:params"
	keyRound       = "meta:round"
	keyRoundActive = "meta:round_active"
	keyLeaderboard = "meta:leaderboard"
	keyAdmins      = "meta:admins"
	keyProperties  = "meta:properties"
)

func idKey(prefix string, id uint32) string { return fmt.Sprintf("%s%010d", prefix, id) }

func pairKey(prefix string, a, b uint32) string { return fmt.Sprintf("%s%010d:%010d", prefix, a, b) }

func atHeight(prefix string, h int64) string { return fmt.Sprintf("%s%020d", prefix, h) }

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
// The mutex lets RPC readers query state while the producer writes.
type StateDB struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, key)
	s.deleted[key] = true
}

// load decodes key into v. Missing keys yield core.ErrNotFound.
func (s *StateDB) load(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// loadOrZero is load that leaves v untouched when key is missing.
func (s *StateDB) loadOrZero(key string, v any) error {
	if err := s.load(key, v); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

func (s *StateDB) store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	acc := core.Account{Address: address}
	if err := s.loadOrZero(prefixAccount+address, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.store(prefixAccount+acc.Address, acc)
}

// ---- Params and rounds ----

func (s *StateDB) GetParams() (*core.Params, error) {
	p := core.DefaultParams()
	if err := s.loadOrZero(keyParams, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetParams(p *core.Params) error { return s.store(keyParams, p) }

func (s *StateDB) GetCurrentRound() (uint32, error) {
	var r uint32
	if err := s.loadOrZero(keyRound, &r); err != nil {
		return 0, err
	}
	return r, nil
}

func (s *StateDB) SetCurrentRound(round uint32) error { return s.store(keyRound, round) }

func (s *StateDB) GetRoundActive() (bool, error) {
	var a bool
	if err := s.loadOrZero(keyRoundActive, &a); err != nil {
		return false, err
	}
	return a, nil
}

func (s *StateDB) SetRoundActive(active bool) error { return s.store(keyRoundActive, active) }

func (s *StateDB) GetRoundChampion(round uint32) (string, error) {
	var who string
	if err := s.load(idKey(prefixChampion, round), &who); err != nil {
		return "", err
	}
	return who, nil
}

func (s *StateDB) SetRoundChampion(round uint32, account string) error {
	return s.store(idKey(prefixChampion, round), account)
}

// ---- Counters and colors ----

func (s *StateDB) GetCounter(c core.Counter) (uint32, error) {
	var n uint32
	if err := s.loadOrZero(prefixCounter+string(c), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *StateDB) SetCounter(c core.Counter, next uint32) error {
	return s.store(prefixCounter+string(c), next)
}

func (s *StateDB) GetCollectionColor(collectionID uint32) (core.Color, error) {
	var c core.Color
	if err := s.load(idKey(prefixCollColor, collectionID), &c); err != nil {
		return 0, err
	}
	return c, nil
}

func (s *StateDB) SetCollectionColor(collectionID uint32, c core.Color) error {
	return s.store(idKey(prefixCollColor, collectionID), c)
}

func (s *StateDB) GetNextColorID(collectionID uint32) (uint32, error) {
	var n uint32
	if err := s.loadOrZero(idKey(prefixNextColor, collectionID), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *StateDB) SetNextColorID(collectionID, next uint32) error {
	return s.store(idKey(prefixNextColor, collectionID), next)
}

// ---- Users ----

func (s *StateDB) GetUser(account string) (*core.User, error) {
	var u core.User
	if err := s.load(prefixUser+account, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *StateDB) SetUser(account string, u *core.User) error {
	return s.store(prefixUser+account, u)
}

func (s *StateDB) GetLeaderboard() (core.Leaderboard, error) {
	var lb core.Leaderboard
	if err := s.loadOrZero(keyLeaderboard, &lb); err != nil {
		return nil, err
	}
	return lb, nil
}

func (s *StateDB) SetLeaderboard(lb core.Leaderboard) error { return s.store(keyLeaderboard, lb) }

// ---- Games ----

func (s *StateDB) GetGame(id uint32) (*core.GameSession, error) {
	var g core.GameSession
	if err := s.load(idKey(prefixGame, id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *StateDB) SetGame(g *core.GameSession) error { return s.store(idKey(prefixGame, g.ID), g) }

func (s *StateDB) DeleteGame(id uint32) error {
	s.del(idKey(prefixGame, id))
	return nil
}

func (s *StateDB) GetExpiring(height int64) ([]uint32, error) {
	var ids []uint32
	if err := s.loadOrZero(atHeight(prefixExpiring, height), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *StateDB) SetExpiring(height int64, ids []uint32) error {
	return s.store(atHeight(prefixExpiring, height), ids)
}

func (s *StateDB) DeleteExpiring(height int64) error {
	s.del(atHeight(prefixExpiring, height))
	return nil
}

// ---- Catalog ----

func (s *StateDB) GetProperties() ([]core.Property, error) {
	var props []core.Property
	if err := s.loadOrZero(keyProperties, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func (s *StateDB) SetProperties(props []core.Property) error { return s.store(keyProperties, props) }

func (s *StateDB) GetPrice(propertyID uint32) (uint32, error) {
	var p uint32
	if err := s.load(idKey(prefixPrice, propertyID), &p); err != nil {
		return 0, err
	}
	return p, nil
}

func (s *StateDB) SetPrice(propertyID, price uint32) error {
	return s.store(idKey(prefixPrice, propertyID), price)
}

func (s *StateDB) DeletePrice(propertyID uint32) error {
	s.del(idKey(prefixPrice, propertyID))
	return nil
}

// ---- Admins ----

func (s *StateDB) GetAdmins() ([]string, error) {
	var admins []string
	if err := s.loadOrZero(keyAdmins, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

func (s *StateDB) SetAdmins(admins []string) error { return s.store(keyAdmins, admins) }

// ---- Market ----

func (s *StateDB) GetListing(id uint32) (*core.Listing, error) {
	var l core.Listing
	if err := s.load(idKey(prefixListing, id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *StateDB) SetListing(l *core.Listing) error { return s.store(idKey(prefixListing, l.ID), l) }

func (s *StateDB) DeleteListing(id uint32) error {
	s.del(idKey(prefixListing, id))
	return nil
}

func (s *StateDB) GetOffer(id uint32) (*core.Offer, error) {
	var o core.Offer
	if err := s.load(idKey(prefixOffer, id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *StateDB) SetOffer(o *core.Offer) error { return s.store(idKey(prefixOffer, o.ID), o) }

func (s *StateDB) DeleteOffer(id uint32) error {
	s.del(idKey(prefixOffer, id))
	return nil
}

// ---- NFT ledger ----

func (s *StateDB) GetCollection(id uint32) (*core.Collection, error) {
	var c core.Collection
	if err := s.load(idKey(prefixCollection, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCollection(c *core.Collection) error {
	return s.store(idKey(prefixCollection, c.ID), c)
}

func (s *StateDB) GetItem(collectionID, itemID uint32) (*core.Item, error) {
	var it core.Item
	if err := s.load(pairKey(prefixItem, collectionID, itemID), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *StateDB) SetItem(it *core.Item) error {
	return s.store(pairKey(prefixItem, it.CollectionID, it.ID), it)
}

// ---- Snapshot / Rollback / Commit ----

func (b stateSnapshot) clone() stateSnapshot {
	out := stateSnapshot{
		dirty:   make(map[string][]byte, len(b.dirty)),
		deleted: maps.Clone(b.deleted),
	}
	for k, v := range b.dirty {
		out.dirty[k] = bytes.Clone(v)
	}
	if out.deleted == nil {
		out.deleted = make(map[string]bool)
	}
	return out
}

// Snapshot saves the write buffer. Snapshots nest: reverting to one drops
// every snapshot taken after it.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, stateSnapshot{dirty: s.dirty, deleted: s.deleted}.clone())
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the buffer saved by Snapshot(id).
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	buf := s.snapshots[id].clone()
	s.dirty, s.deleted = buf.dirty, buf.deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot hashes every state entry, persisted and buffered, as sorted
// length-prefixed key/value pairs. It does not flush.
func (s *StateDB) ComputeRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	for k, v := range s.dirty {
		merged[k] = v
	}

	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit flushes the buffer in one batch and drops all snapshots.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
