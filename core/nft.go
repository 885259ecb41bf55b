package core

// Collection groups NFTs of a single color within one round.
type Collection struct {
	ID    uint32 `json:"id"`
	Owner string `json:"owner"`
	Admin string `json:"admin"`
	Items uint32 `json:"items"`
}

// Item is one NFT. Locked items cannot be moved by their owner.
type Item struct {
	CollectionID uint32 `json:"collection_id"`
	ID           uint32 `json:"id"`
	Owner        string `json:"owner"`
	Issuer       string `json:"issuer"`
	Locked       bool   `json:"locked"`
}

// NFTs is the non-fungible ledger the game and market modules drive.
// Implementations act on the State they were built with.
type NFTs interface {
	CreateCollection(owner, admin string) (uint32, error)
	Mint(collectionID, itemID uint32, owner, issuer string) error
	// Transfer moves an item on behalf of its owner and honours the lock.
	Transfer(caller string, collectionID, itemID uint32, to string) error
	// DoTransfer moves an item without owner or lock checks.
	DoTransfer(collectionID, itemID uint32, to string) error
	LockItemTransfer(collectionID, itemID uint32) error
	UnlockItemTransfer(collectionID, itemID uint32) error
	Owner(collectionID, itemID uint32) (string, error)
}

// Currency credits and moves native token balances.
type Currency interface {
	MakeFreeBalanceBe(account string, amount uint64) error
	Transfer(from, to string, amount uint64) error
}

// Randomness yields a pseudo-random output for a seed plus the block height
// it was derived from.
type Randomness interface {
	Random(seed []byte) ([]byte, int64)
}
