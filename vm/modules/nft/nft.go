// Package nft exposes direct owner-to-owner NFT transfers. Locked items
// cannot be moved this way.
package nft

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/vm"
)

func init() {
	vm.Register(core.TxTransferNFT, handleTransferNFT)
}

func handleTransferNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_nft payload: %w", err)
	}
	if p.To == "" {
		return fmt.Errorf("transfer_nft to address required")
	}
	return ctx.NFTs.Transfer(ctx.Sender(), p.CollectionID, p.ItemID, p.To)
}
