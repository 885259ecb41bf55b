package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/indexer"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, chainID: chainID}
}

type method func(h *Handler, params json.RawMessage) (any, error)

var methods = map[string]method{
	"getBlockHeight":   func(h *Handler, _ json.RawMessage) (any, error) { return h.bc.Height(), nil },
	"getMempoolSize":   func(h *Handler, _ json.RawMessage) (any, error) { return h.mempool.Size(), nil },
	"getBlock":         (*Handler).getBlock,
	"getBalance":       (*Handler).getBalance,
	"getUser":          (*Handler).getUser,
	"getGame":          (*Handler).getGame,
	"getListing":       (*Handler).getListing,
	"getOffer":         (*Handler).getOffer,
	"getLeaderboard":   func(h *Handler, _ json.RawMessage) (any, error) { return h.state.GetLeaderboard() },
	"getProperties":    func(h *Handler, _ json.RawMessage) (any, error) { return h.state.GetProperties() },
	"getRound":         (*Handler).getRound,
	"getAdmins":        func(h *Handler, _ json.RawMessage) (any, error) { return h.state.GetAdmins() },
	"getNftOwner":      (*Handler).getNftOwner,
	"getNftsByOwner":   (*Handler).getNftsByOwner,
	"getGamesByPlayer": (*Handler).getGamesByPlayer,
	"sendTx":           (*Handler).sendTx,
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	m, ok := methods[req.Method]
	if !ok {
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	result, err := m(h, req.Params)
	if err != nil {
		return errResponse(req.ID, codeFor(err), err.Error())
	}
	return okResponse(req.ID, result)
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return badParams("params are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badParams("params: %v", err)
	}
	return nil
}

type idParams struct {
	ID *uint32 `json:"id"`
}

func decodeID(raw json.RawMessage) (uint32, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return 0, err
	}
	if p.ID == nil {
		return 0, badParams("id is required")
	}
	return *p.ID, nil
}

func decodeAddress(raw json.RawMessage, field string) (string, error) {
	var p map[string]string
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p[field] == "" {
		return "", badParams("%s is required", field)
	}
	return p[field], nil
}

func (h *Handler) getBlock(raw json.RawMessage) (any, error) {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, badParams("params: %v", err)
		}
	}

	var block *core.Block
	var err error
	switch {
	case params.Hash != "":
		block, err = h.bc.GetBlock(params.Hash)
	case params.Height != nil:
		block, err = h.bc.GetBlockByHeight(*params.Height)
	default:
		block = h.bc.Tip()
	}
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("block: %w", core.ErrNotFound)
	}
	return block, nil
}

func (h *Handler) getBalance(raw json.RawMessage) (any, error) {
	addr, err := decodeAddress(raw, "address")
	if err != nil {
		return nil, err
	}
	acc, err := h.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return map[string]any{"address": addr, "balance": acc.Balance, "nonce": acc.Nonce}, nil
}

func (h *Handler) getUser(raw json.RawMessage) (any, error) {
	addr, err := decodeAddress(raw, "address")
	if err != nil {
		return nil, err
	}
	return h.state.GetUser(addr)
}

func (h *Handler) getGame(raw json.RawMessage) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return h.state.GetGame(id)
}

func (h *Handler) getListing(raw json.RawMessage) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return h.state.GetListing(id)
}

func (h *Handler) getOffer(raw json.RawMessage) (any, error) {
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return h.state.GetOffer(id)
}

func (h *Handler) getRound(json.RawMessage) (any, error) {
	round, err := h.state.GetCurrentRound()
	if err != nil {
		return nil, err
	}
	active, err := h.state.GetRoundActive()
	if err != nil {
		return nil, err
	}
	out := map[string]any{"round": round, "active": active}
	if round > 0 {
		champ, err := h.state.GetRoundChampion(round)
		switch {
		case err == nil:
			out["champion"] = champ
		case !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}
	return out, nil
}

func (h *Handler) getNftOwner(raw json.RawMessage) (any, error) {
	var ref core.NFTRef
	if err := decodeParams(raw, &ref); err != nil {
		return nil, err
	}
	it, err := h.state.GetItem(ref.CollectionID, ref.ItemID)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (h *Handler) getNftsByOwner(raw json.RawMessage) (any, error) {
	owner, err := decodeAddress(raw, "owner")
	if err != nil {
		return nil, err
	}
	return h.indexer.GetNFTsByOwner(owner)
}

func (h *Handler) getGamesByPlayer(raw json.RawMessage) (any, error) {
	player, err := decodeAddress(raw, "player")
	if err != nil {
		return nil, err
	}
	return h.indexer.GetGamesByPlayer(player)
}

func (h *Handler) sendTx(raw json.RawMessage) (any, error) {
	var tx core.Transaction
	if err := decodeParams(raw, &tx); err != nil {
		return nil, err
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return nil, badParams("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID)
	}
	// Verify also pins ID to the body hash, so a client cannot pick its own.
	if err := tx.Verify(); err != nil {
		return nil, badParams("verify: %v", err)
	}
	if err := h.mempool.Add(&tx); err != nil {
		return nil, badParams("rejected: %v", err)
	}
	return map[string]string{"tx_id": tx.ID}, nil
}
