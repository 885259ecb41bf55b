package wallet

import (
	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/crypto"
)

// Wallet signs transactions for one account on one chain. It tracks the
// next nonce locally so consecutive builders need no round trip.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	chainID string
	nonce   uint64
	fee     uint64
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// WithChain sets the chain id and starting nonce used by the builders.
func (w *Wallet) WithChain(chainID string, nonce uint64) *Wallet {
	w.chainID = chainID
	w.nonce = nonce
	return w
}

// SetFee sets the fee attached to every built transaction.
func (w *Wallet) SetFee(fee uint64) { w.fee = fee }

// Nonce returns the nonce the next built transaction will carry.
func (w *Wallet) Nonce() uint64 { return w.nonce }

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address.
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network
// and nonce the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Build signs a transaction with the wallet's chain, fee and next nonce,
// then advances the nonce.
func (w *Wallet) Build(typ core.TxType, payload any) (*core.Transaction, error) {
	tx, err := w.NewTx(w.chainID, typ, w.nonce, w.fee, payload)
	if err != nil {
		return nil, err
	}
	w.nonce++
	return tx, nil
}

// Transfer creates a signed token transfer.
func (w *Wallet) Transfer(to string, amount uint64) (*core.Transaction, error) {
	return w.Build(core.TxTransfer, core.TransferPayload{To: to, Amount: amount})
}

// TransferNFT moves an unlocked item the wallet owns.
func (w *Wallet) TransferNFT(ref core.NFTRef, to string) (*core.Transaction, error) {
	return w.Build(core.TxTransferNFT, core.TransferNFTPayload{
		CollectionID: ref.CollectionID, ItemID: ref.ItemID, To: to,
	})
}

// SetupGame starts a new round. Game origin only.
func (w *Wallet) SetupGame() (*core.Transaction, error) {
	return w.Build(core.TxSetupGame, core.SetupGamePayload{})
}

// RegisterUser registers player. Admins only.
func (w *Wallet) RegisterUser(player string) (*core.Transaction, error) {
	return w.Build(core.TxRegisterUser, core.RegisterUserPayload{Player: player})
}

// GivePoints credits receiver. Game origin only.
func (w *Wallet) GivePoints(receiver string) (*core.Transaction, error) {
	return w.Build(core.TxGivePoints, core.GivePointsPayload{Receiver: receiver})
}

func (w *Wallet) RequestToken() (*core.Transaction, error) {
	return w.Build(core.TxRequestToken, core.RequestTokenPayload{})
}

// AddProperty adds a priced property to the catalog. Game origin only.
func (w *Wallet) AddProperty(p core.Property, price uint32) (*core.Transaction, error) {
	return w.Build(core.TxAddProperty, core.AddPropertyPayload{Property: p, Price: price})
}

func (w *Wallet) RemoveProperty(id uint32) (*core.Transaction, error) {
	return w.Build(core.TxRemoveProperty, core.RemovePropertyPayload{PropertyID: id})
}

func (w *Wallet) AddAdmin(account string) (*core.Transaction, error) {
	return w.Build(core.TxAddAdmin, core.AdminPayload{Account: account})
}

func (w *Wallet) RemoveAdmin(account string) (*core.Transaction, error) {
	return w.Build(core.TxRemoveAdmin, core.AdminPayload{Account: account})
}

// PlayGame starts a game at difficulty d.
func (w *Wallet) PlayGame(d core.Difficulty) (*core.Transaction, error) {
	return w.Build(core.TxPlayGame, core.PlayGamePayload{Difficulty: d})
}

// SubmitAnswer answers game gameID with guess.
func (w *Wallet) SubmitAnswer(gameID, guess uint32) (*core.Transaction, error) {
	return w.Build(core.TxSubmitAnswer, core.SubmitAnswerPayload{Guess: guess, GameID: gameID})
}

func (w *Wallet) ListNFT(ref core.NFTRef) (*core.Transaction, error) {
	return w.Build(core.TxListNFT, core.ListNFTPayload{NFTRef: ref})
}

func (w *Wallet) DelistNFT(listingID uint32) (*core.Transaction, error) {
	return w.Build(core.TxDelistNFT, core.ListingRefPayload{ListingID: listingID})
}

// MakeOffer offers ref in exchange for listing listingID.
func (w *Wallet) MakeOffer(listingID uint32, ref core.NFTRef) (*core.Transaction, error) {
	return w.Build(core.TxMakeOffer, core.MakeOfferPayload{ListingID: listingID, NFTRef: ref})
}

func (w *Wallet) WithdrawOffer(offerID uint32) (*core.Transaction, error) {
	return w.Build(core.TxWithdrawOffer, core.WithdrawOfferPayload{OfferID: offerID})
}

// HandleOffer accepts or rejects an offer on one of the wallet's listings.
func (w *Wallet) HandleOffer(offerID uint32, d core.OfferDecision) (*core.Transaction, error) {
	return w.Build(core.TxHandleOffer, core.HandleOfferPayload{OfferID: offerID, Decision: d})
}
