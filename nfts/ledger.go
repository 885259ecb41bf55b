// Package nfts is the non-fungible ownership ledger: collections, items,
// custody transfers and transfer locks. The game engine drives it through
// the core.NFTs interface.
package nfts

import (
	"errors"
	"fmt"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
)

// Notify receives ownership changes. It may be nil.
type Notify func(typ events.EventType, data map[string]any)

// Ledger implements core.NFTs over a core.State.
type Ledger struct {
	state  core.State
	notify Notify
}

var _ core.NFTs = (*Ledger)(nil)

// New returns a Ledger that reads and writes state.
func New(state core.State, notify Notify) *Ledger {
	return &Ledger{state: state, notify: notify}
}

func (l *Ledger) emit(typ events.EventType, data map[string]any) {
	if l.notify != nil {
		l.notify(typ, data)
	}
}

// CreateCollection allocates the next collection id.
func (l *Ledger) CreateCollection(owner, admin string) (uint32, error) {
	id, err := core.NextID(l.state, core.CounterCollection)
	if err != nil {
		return 0, err
	}
	c := &core.Collection{ID: id, Owner: owner, Admin: admin}
	if err := l.state.SetCollection(c); err != nil {
		return 0, err
	}
	return id, nil
}

// Mint creates item itemID in collectionID owned by owner.
func (l *Ledger) Mint(collectionID, itemID uint32, owner, issuer string) error {
	c, err := l.state.GetCollection(collectionID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("collection %d: %w", collectionID, core.ErrUnknownCollection)
	}
	if err != nil {
		return err
	}
	if _, err := l.state.GetItem(collectionID, itemID); err == nil {
		return fmt.Errorf("item %d/%d already minted", collectionID, itemID)
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if c.Items, err = core.AddU32(c.Items, 1); err != nil {
		return err
	}
	it := &core.Item{CollectionID: collectionID, ID: itemID, Owner: owner, Issuer: issuer}
	if err := l.state.SetItem(it); err != nil {
		return err
	}
	if err := l.state.SetCollection(c); err != nil {
		return err
	}
	l.emit(events.EventNftMinted, map[string]any{
		"owner": owner, "collection_id": collectionID, "item_id": itemID,
	})
	return nil
}

func (l *Ledger) item(collectionID, itemID uint32) (*core.Item, error) {
	it, err := l.state.GetItem(collectionID, itemID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("item %d/%d: %w", collectionID, itemID, core.ErrUnknownItem)
	}
	return it, err
}

// Transfer moves an item on behalf of caller, who must own it.
func (l *Ledger) Transfer(caller string, collectionID, itemID uint32, to string) error {
	it, err := l.item(collectionID, itemID)
	if err != nil {
		return err
	}
	if it.Owner != caller {
		return core.ErrNoPermission
	}
	if it.Locked {
		return fmt.Errorf("item %d/%d: %w", collectionID, itemID, core.ErrItemLocked)
	}
	return l.move(it, to)
}

// DoTransfer moves an item regardless of owner or lock.
func (l *Ledger) DoTransfer(collectionID, itemID uint32, to string) error {
	it, err := l.item(collectionID, itemID)
	if err != nil {
		return err
	}
	return l.move(it, to)
}

func (l *Ledger) move(it *core.Item, to string) error {
	from := it.Owner
	it.Owner = to
	if err := l.state.SetItem(it); err != nil {
		return err
	}
	l.emit(events.EventNftTransferred, map[string]any{
		"from": from, "to": to, "collection_id": it.CollectionID, "item_id": it.ID,
	})
	return nil
}

// LockItemTransfer freezes the item for owner transfers.
func (l *Ledger) LockItemTransfer(collectionID, itemID uint32) error {
	return l.setLocked(collectionID, itemID, true)
}

// UnlockItemTransfer lifts the freeze set by LockItemTransfer.
func (l *Ledger) UnlockItemTransfer(collectionID, itemID uint32) error {
	return l.setLocked(collectionID, itemID, false)
}

func (l *Ledger) setLocked(collectionID, itemID uint32, locked bool) error {
	it, err := l.item(collectionID, itemID)
	if err != nil {
		return err
	}
	it.Locked = locked
	return l.state.SetItem(it)
}

// Owner returns the item's current owner.
func (l *Ledger) Owner(collectionID, itemID uint32) (string, error) {
	it, err := l.item(collectionID, itemID)
	if err != nil {
		return "", err
	}
	return it.Owner, nil
}
