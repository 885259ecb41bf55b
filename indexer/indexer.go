// Package indexer maintains secondary indexes over committed blocks so game
// clients can query NFTs by owner and games by player without scanning full
// state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/storage"
)

const (
	prefixOwnerNFTs   = "idx:owner:nft:"
	prefixPlayerGames = "idx:player:game:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventNftMinted, idx.onNftMinted)
	emitter.Subscribe(events.EventNftTransferred, idx.onNftTransferred)
	emitter.Subscribe(events.EventGameStarted, idx.onGameStarted)
	return idx
}

// GetNFTsByOwner returns every NFT currently held by owner.
func (idx *Indexer) GetNFTsByOwner(owner string) ([]core.NFTRef, error) {
	var refs []core.NFTRef
	if err := idx.getList(prefixOwnerNFTs+owner, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// GetGamesByPlayer returns the ids of every game player has started.
func (idx *Indexer) GetGamesByPlayer(player string) ([]uint32, error) {
	var ids []uint32
	if err := idx.getList(prefixPlayerGames+player, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ---- event handlers ----

func nftRef(ev events.Event) (core.NFTRef, bool) {
	c, ok1 := ev.Data["collection_id"].(uint32)
	i, ok2 := ev.Data["item_id"].(uint32)
	return core.NFTRef{CollectionID: c, ItemID: i}, ok1 && ok2
}

func (idx *Indexer) onNftMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	ref, ok := nftRef(ev)
	if owner == "" || !ok {
		return
	}
	idx.logErr(addToList(idx, prefixOwnerNFTs+owner, ref), ev)
}

func (idx *Indexer) onNftTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	ref, ok := nftRef(ev)
	if from == "" || to == "" || !ok {
		return
	}
	if err := removeFromList(idx, prefixOwnerNFTs+from, ref); err != nil {
		idx.logErr(err, ev)
		return
	}
	idx.logErr(addToList(idx, prefixOwnerNFTs+to, ref), ev)
}

func (idx *Indexer) onGameStarted(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	id, ok := ev.Data["game_id"].(uint32)
	if player == "" || !ok {
		return
	}
	idx.logErr(addToList(idx, prefixPlayerGames+player, id), ev)
}

func (idx *Indexer) logErr(err error, ev events.Event) {
	if err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Str("tx", ev.TxID).Msg("indexer update failed")
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string, v any) error {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil // empty list
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("indexer unmarshal: %w", err)
	}
	return nil
}

func (idx *Indexer) putList(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func addToList[T comparable](idx *Indexer, key string, value T) error {
	var list []T
	if err := idx.getList(key, &list); err != nil {
		return err
	}
	if slices.Contains(list, value) {
		return nil
	}
	return idx.putList(key, append(list, value))
}

func removeFromList[T comparable](idx *Indexer, key string, value T) error {
	var list []T
	if err := idx.getList(key, &list); err != nil {
		return err
	}
	list = slices.DeleteFunc(list, func(v T) bool { return v == value })
	return idx.putList(key, list)
}
