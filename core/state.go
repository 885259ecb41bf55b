package core

// Account holds a participant's token balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// State is the full blockchain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
//
// Getters for keyed records return ErrNotFound when the record is absent.
// Singletons and counters return their zero value instead.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Engine parameters, written once at genesis.
	GetParams() (*Params, error)
	SetParams(p *Params) error

	// Rounds
	GetCurrentRound() (uint32, error)
	SetCurrentRound(round uint32) error
	GetRoundActive() (bool, error)
	SetRoundActive(active bool) error
	GetRoundChampion(round uint32) (string, error)
	SetRoundChampion(round uint32, account string) error

	// Id sequences
	GetCounter(c Counter) (uint32, error)
	SetCounter(c Counter, next uint32) error

	// Color collections
	GetCollectionColor(collectionID uint32) (Color, error)
	SetCollectionColor(collectionID uint32, c Color) error
	GetNextColorID(collectionID uint32) (uint32, error)
	SetNextColorID(collectionID, next uint32) error

	// Users
	GetUser(account string) (*User, error)
	SetUser(account string, u *User) error
	GetLeaderboard() (Leaderboard, error)
	SetLeaderboard(lb Leaderboard) error

	// Games
	GetGame(id uint32) (*GameSession, error)
	SetGame(g *GameSession) error
	DeleteGame(id uint32) error
	GetExpiring(height int64) ([]uint32, error)
	SetExpiring(height int64, ids []uint32) error
	DeleteExpiring(height int64) error

	// Catalog
	GetProperties() ([]Property, error)
	SetProperties(props []Property) error
	GetPrice(propertyID uint32) (uint32, error)
	SetPrice(propertyID, price uint32) error
	DeletePrice(propertyID uint32) error

	// Admins
	GetAdmins() ([]string, error)
	SetAdmins(admins []string) error

	// Market
	GetListing(id uint32) (*Listing, error)
	SetListing(l *Listing) error
	DeleteListing(id uint32) error
	GetOffer(id uint32) (*Offer, error)
	SetOffer(o *Offer) error
	DeleteOffer(id uint32) error

	// NFT ledger
	GetCollection(id uint32) (*Collection, error)
	SetCollection(c *Collection) error
	GetItem(collectionID, itemID uint32) (*Item, error)
	SetItem(it *Item) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}

// NextID returns the current value of sequence c and advances it.
func NextID(s State, c Counter) (uint32, error) {
	id, err := s.GetCounter(c)
	if err != nil {
		return 0, err
	}
	next, err := AddU32(id, 1)
	if err != nil {
		return 0, err
	}
	if err := s.SetCounter(c, next); err != nil {
		return 0, err
	}
	return id, nil
}
