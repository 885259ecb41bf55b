package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/propchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer    TxType = "transfer"
	TxTransferNFT TxType = "transfer_nft"

	// Game
	TxSetupGame      TxType = "setup_game"
	TxRegisterUser   TxType = "register_user"
	TxGivePoints     TxType = "give_points"
	TxRequestToken   TxType = "request_token"
	TxAddProperty    TxType = "add_property"
	TxRemoveProperty TxType = "remove_property"
	TxAddAdmin       TxType = "add_to_admins"
	TxRemoveAdmin    TxType = "remove_from_admins"
	TxPlayGame       TxType = "play_game"
	TxSubmitAnswer   TxType = "submit_answer"

	// Market
	TxListNFT       TxType = "list_nft"
	TxDelistNFT     TxType = "delist_nft"
	TxMakeOffer     TxType = "make_offer"
	TxWithdrawOffer TxType = "withdraw_offer"
	TxHandleOffer   TxType = "handle_offer"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers all fields except Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks that ID is the body hash and that From signed it.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	hash := tx.Hash()
	if tx.ID != hash {
		return fmt.Errorf("tx id %.16s does not match its body", tx.ID)
	}
	if err := crypto.VerifyHex(tx.From, []byte(hash), tx.Signature); err != nil {
		return fmt.Errorf("from %.16s: %w", tx.From, err)
	}
	return nil
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// TransferNFTPayload moves an unlocked NFT owned by the sender.
type TransferNFTPayload struct {
	CollectionID uint32 `json:"collection_id"`
	ItemID       uint32 `json:"item_id"`
	To           string `json:"to"`
}

// SetupGamePayload opens a new round. It carries no fields.
type SetupGamePayload struct{}

// RegisterUserPayload registers Player with the starting balance.
type RegisterUserPayload struct {
	Player string `json:"player"`
}

// GivePointsPayload grants bonus points to Receiver.
type GivePointsPayload struct {
	Receiver string `json:"receiver"`
}

// RequestTokenPayload asks for a faucet payout to the sender.
type RequestTokenPayload struct{}

// AddPropertyPayload inserts a catalog entry with its hidden price.
type AddPropertyPayload struct {
	Property Property `json:"property"`
	Price    uint32   `json:"price"`
}

// RemovePropertyPayload deletes a catalog entry by id.
type RemovePropertyPayload struct {
	PropertyID uint32 `json:"property_id"`
}

// AdminPayload names the account added to or removed from the admins.
type AdminPayload struct {
	Account string `json:"account"`
}

// PlayGamePayload starts a session for the sender.
type PlayGamePayload struct {
	Difficulty Difficulty `json:"difficulty"`
}

// SubmitAnswerPayload resolves a session with the player's guess.
type SubmitAnswerPayload struct {
	Guess  uint32 `json:"guess"`
	GameID uint32 `json:"game_id"`
}

// NFTRef identifies a single NFT.
type NFTRef struct {
	CollectionID uint32 `json:"collection_id"`
	ItemID       uint32 `json:"item_id"`
}

// ListNFTPayload escrows an NFT for trade.
type ListNFTPayload struct {
	NFTRef
}

// ListingRefPayload references a listing by id.
type ListingRefPayload struct {
	ListingID uint32 `json:"listing_id"`
}

// MakeOfferPayload escrows an NFT against an existing listing.
type MakeOfferPayload struct {
	ListingID uint32 `json:"listing_id"`
	NFTRef
}

// WithdrawOfferPayload cancels an offer.
type WithdrawOfferPayload struct {
	OfferID uint32 `json:"offer_id"`
}

// HandleOfferPayload accepts or rejects an offer on the sender's listing.
type HandleOfferPayload struct {
	OfferID  uint32        `json:"offer_id"`
	Decision OfferDecision `json:"decision"`
}
