// Package market implements NFT listings and swap offers. Every NFT under
// the market's custody sits with the escrow account and stays locked.
package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/vm"
	"github.com/tolelom/propchain/vm/modules/game"
)

func init() {
	vm.Register(core.TxListNFT, handleListNFT)
	vm.Register(core.TxDelistNFT, handleDelistNFT)
	vm.Register(core.TxMakeOffer, handleMakeOffer)
	vm.Register(core.TxWithdrawOffer, handleWithdrawOffer)
	vm.Register(core.TxHandleOffer, handleHandleOffer)
}

func escrow(ctx *vm.Context) (string, error) {
	p, err := ctx.Params()
	if err != nil {
		return "", err
	}
	return game.Escrow(p), nil
}

// deposit moves caller's NFT into escrow: unlock, owner transfer, relock.
func deposit(ctx *vm.Context, ref core.NFTRef) error {
	to, err := escrow(ctx)
	if err != nil {
		return err
	}
	if err := ctx.NFTs.UnlockItemTransfer(ref.CollectionID, ref.ItemID); err != nil {
		return err
	}
	if err := ctx.NFTs.Transfer(ctx.Sender(), ref.CollectionID, ref.ItemID, to); err != nil {
		return err
	}
	return ctx.NFTs.LockItemTransfer(ref.CollectionID, ref.ItemID)
}

// release hands an escrowed NFT to owner and relocks it.
func release(ctx *vm.Context, collectionID, itemID uint32, owner string) error {
	if err := ctx.NFTs.DoTransfer(collectionID, itemID, owner); err != nil {
		return err
	}
	return ctx.NFTs.LockItemTransfer(collectionID, itemID)
}

func getListing(ctx *vm.Context, id uint32) (*core.Listing, error) {
	l, err := ctx.State.GetListing(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrListingDoesNotExist
	}
	return l, err
}

func getOffer(ctx *vm.Context, id uint32) (*core.Offer, error) {
	o, err := ctx.State.GetOffer(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrOfferDoesNotExist
	}
	return o, err
}

func handleListNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_nft payload: %w", err)
	}
	owner, err := ctx.NFTs.Owner(p.CollectionID, p.ItemID)
	if err != nil {
		return err
	}
	if owner != ctx.Sender() {
		return core.ErrNoPermission
	}
	if err := deposit(ctx, p.NFTRef); err != nil {
		return err
	}
	id, err := core.NextID(ctx.State, core.CounterListing)
	if err != nil {
		return err
	}
	listing := &core.Listing{ID: id, Owner: owner, CollectionID: p.CollectionID, ItemID: p.ItemID}
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}
	ctx.Emit(events.EventNftListed, map[string]any{
		"listing_id": id, "owner": owner, "collection_id": p.CollectionID, "item_id": p.ItemID,
	})
	return nil
}

func handleDelistNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListingRefPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode delist_nft payload: %w", err)
	}
	listing, err := getListing(ctx, p.ListingID)
	if err != nil {
		return err
	}
	if listing.Owner != ctx.Sender() {
		return core.ErrNoPermission
	}
	if err := ctx.State.DeleteListing(p.ListingID); err != nil {
		return err
	}
	if err := release(ctx, listing.CollectionID, listing.ItemID, listing.Owner); err != nil {
		return err
	}
	ctx.Emit(events.EventNftDelisted, map[string]any{
		"listing_id": p.ListingID, "owner": listing.Owner,
		"collection_id": listing.CollectionID, "item_id": listing.ItemID,
	})
	return nil
}

func handleMakeOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MakeOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode make_offer payload: %w", err)
	}
	if _, err := getListing(ctx, p.ListingID); err != nil {
		return err
	}
	if err := deposit(ctx, p.NFTRef); err != nil {
		return err
	}
	id, err := core.NextID(ctx.State, core.CounterOffer)
	if err != nil {
		return err
	}
	offer := &core.Offer{
		ID:           id,
		Owner:        ctx.Sender(),
		ListingID:    p.ListingID,
		CollectionID: p.CollectionID,
		ItemID:       p.ItemID,
	}
	if err := ctx.State.SetOffer(offer); err != nil {
		return err
	}
	ctx.Emit(events.EventOfferMade, map[string]any{
		"offer_id": id, "owner": offer.Owner, "listing_id": p.ListingID,
		"collection_id": p.CollectionID, "item_id": p.ItemID,
	})
	return nil
}

func handleWithdrawOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.WithdrawOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode withdraw_offer payload: %w", err)
	}
	offer, err := getOffer(ctx, p.OfferID)
	if err != nil {
		return err
	}
	if offer.Owner != ctx.Sender() {
		return core.ErrNoPermission
	}
	if err := release(ctx, offer.CollectionID, offer.ItemID, offer.Owner); err != nil {
		return err
	}
	if err := ctx.State.DeleteOffer(p.OfferID); err != nil {
		return err
	}
	ctx.Emit(events.EventOfferWithdrawn, map[string]any{"owner": offer.Owner, "offer_id": p.OfferID})
	return nil
}

func handleHandleOffer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.HandleOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode handle_offer payload: %w", err)
	}
	if p.Decision != core.OfferAccept && p.Decision != core.OfferReject {
		return fmt.Errorf("unknown offer decision %q", p.Decision)
	}
	offer, err := getOffer(ctx, p.OfferID)
	if err != nil {
		return err
	}
	listing, err := getListing(ctx, offer.ListingID)
	if err != nil {
		return err
	}
	if listing.Owner != ctx.Sender() {
		return core.ErrNoPermission
	}
	if err := ctx.State.DeleteOffer(p.OfferID); err != nil {
		return err
	}

	if p.Decision == core.OfferAccept {
		if err := swap(ctx, listing, offer); err != nil {
			return err
		}
	} else if err := release(ctx, offer.CollectionID, offer.ItemID, offer.Owner); err != nil {
		return err
	}
	ctx.Emit(events.EventOfferHandled, map[string]any{"offer_id": p.OfferID, "decision": string(p.Decision)})
	return nil
}

// swap settles an accepted offer: custody of the two NFTs is exchanged and
// each party gains the incoming color and loses the outgoing one.
func swap(ctx *vm.Context, listing *core.Listing, offer *core.Offer) error {
	if err := release(ctx, listing.CollectionID, listing.ItemID, offer.Owner); err != nil {
		return err
	}
	if err := release(ctx, offer.CollectionID, offer.ItemID, listing.Owner); err != nil {
		return err
	}
	if err := ctx.State.DeleteListing(listing.ID); err != nil {
		return err
	}

	listedColor, err := collectionColor(ctx, listing.CollectionID)
	if err != nil {
		return err
	}
	offeredColor, err := collectionColor(ctx, offer.CollectionID)
	if err != nil {
		return err
	}

	offerer, err := exchangeColors(ctx, offer.Owner, listedColor, offeredColor)
	if err != nil {
		return err
	}
	lister, err := exchangeColors(ctx, listing.Owner, offeredColor, listedColor)
	if err != nil {
		return err
	}
	if err := game.UpdateLeaderboard(ctx, listing.Owner, lister.Points); err != nil {
		return err
	}
	if err := game.UpdateLeaderboard(ctx, offer.Owner, offerer.Points); err != nil {
		return err
	}
	if lister.HasFourOfAllColors() {
		if err := game.EndRound(ctx, listing.Owner); err != nil {
			return err
		}
	}
	if offerer.HasFourOfAllColors() {
		return game.EndRound(ctx, offer.Owner)
	}
	return nil
}

func collectionColor(ctx *vm.Context, collectionID uint32) (core.Color, error) {
	c, err := ctx.State.GetCollectionColor(collectionID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, fmt.Errorf("collection %d: %w", collectionID, core.ErrCollectionUnknown)
	}
	return c, err
}

// exchangeColors books one side of a swap against the current round's set.
// An outgoing item the set does not count (it was won in an earlier round)
// costs nothing.
func exchangeColors(ctx *vm.Context, account string, gained, lost core.Color) (*core.User, error) {
	u, err := game.LoadUser(ctx, account)
	if err != nil {
		return nil, err
	}
	round, err := ctx.State.GetCurrentRound()
	if err != nil {
		return nil, err
	}
	u.EnterRound(round)
	if err := u.GainColor(gained); err != nil {
		return nil, err
	}
	if u.Nfts.Count(lost) > 0 {
		if err := u.LoseColor(lost); err != nil {
			return nil, err
		}
	}
	if err := ctx.State.SetUser(account, u); err != nil {
		return nil, err
	}
	return u, nil
}
