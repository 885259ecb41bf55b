package market_test

import (
	"errors"
	"testing"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/internal/testutil"
	"github.com/tolelom/propchain/wallet"

	_ "github.com/tolelom/propchain/vm/modules/game"
	_ "github.com/tolelom/propchain/vm/modules/market"
	_ "github.com/tolelom/propchain/vm/modules/nft"
)

var (
	orange = core.NFTRef{CollectionID: 0, ItemID: 0}
	pink   = core.NFTRef{CollectionID: 1, ItemID: 0}
)

// minter registers a player, plays one practice round and wins one NFT
// from the collection picked by random. The player ends with 155 points.
func minter(t *testing.T, h *testutil.Harness, random uint32) *wallet.Wallet {
	t.Helper()
	h.SetRandom(random)
	w := h.NewPlayer()
	for _, d := range []core.Difficulty{core.DifficultyPractice, core.DifficultyPlayer} {
		h.MustSubmit(w.PlayGame(d))
		started := h.EventsOf(events.EventGameStarted)
		id := started[len(started)-1].Data["game_id"].(uint32)
		g, err := h.State.GetGame(id)
		if err != nil {
			t.Fatalf("game %d: %v", id, err)
		}
		price, err := h.State.GetPrice(g.Property.ID)
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		h.MustSubmit(w.SubmitAnswer(id, price))
	}
	return w
}

// traders returns a with the orange item (0,0) and b with the pink item (1,0).
func traders(t *testing.T) (*testutil.Harness, *wallet.Wallet, *wallet.Wallet) {
	t.Helper()
	h := testutil.NewHarness(t)
	h.Setup()
	a := minter(t, h, 0)
	b := minter(t, h, 1)
	return h, a, b
}

func item(t *testing.T, h *testutil.Harness, ref core.NFTRef) *core.Item {
	t.Helper()
	it, err := h.State.GetItem(ref.CollectionID, ref.ItemID)
	if err != nil {
		t.Fatalf("item %v: %v", ref, err)
	}
	return it
}

func TestListMovesItemToEscrow(t *testing.T) {
	h, a, b := traders(t)

	if err := h.Submit(b.ListNFT(orange)); !errors.Is(err, core.ErrNoPermission) {
		t.Fatalf("list foreign item: got %v want ErrNoPermission", err)
	}
	h.MustSubmit(a.ListNFT(orange))

	it := item(t, h, orange)
	if it.Owner != h.Escrow() || !it.Locked {
		t.Errorf("listed item: %+v", it)
	}
	l, err := h.State.GetListing(0)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if l.Owner != a.PubKey() || l.CollectionID != 0 || l.ItemID != 0 {
		t.Errorf("listing: %+v", l)
	}
}

func TestAcceptOfferSwapsItems(t *testing.T) {
	h, a, b := traders(t)

	h.MustSubmit(a.ListNFT(orange))
	h.MustSubmit(b.MakeOffer(0, pink))
	if it := item(t, h, pink); it.Owner != h.Escrow() {
		t.Fatalf("offered item owner: got %s want escrow", it.Owner)
	}
	if err := h.Submit(b.HandleOffer(0, core.OfferAccept)); !errors.Is(err, core.ErrNoPermission) {
		t.Fatalf("offerer accepting: got %v want ErrNoPermission", err)
	}
	h.MustSubmit(a.HandleOffer(0, core.OfferAccept))

	if it := item(t, h, orange); it.Owner != b.PubKey() || !it.Locked {
		t.Errorf("orange: %+v", it)
	}
	if it := item(t, h, pink); it.Owner != a.PubKey() || !it.Locked {
		t.Errorf("pink: %+v", it)
	}

	ua, ub := h.User(a.PubKey()), h.User(b.PubKey())
	if ua.Points != 155 || ub.Points != 155 {
		t.Errorf("points: a=%d b=%d want 155 each", ua.Points, ub.Points)
	}
	if ua.Nfts.Count(core.ColorPink) != 1 || ua.Nfts.Count(core.ColorOrange) != 0 {
		t.Errorf("a colors: %v", ua.Nfts)
	}
	if ub.Nfts.Count(core.ColorOrange) != 1 || ub.Nfts.Count(core.ColorPink) != 0 {
		t.Errorf("b colors: %v", ub.Nfts)
	}

	if _, err := h.State.GetListing(0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("listing after accept: %v", err)
	}
	if _, err := h.State.GetOffer(0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("offer after accept: %v", err)
	}

	// Swapped items stay locked against direct transfers.
	err := h.Submit(b.TransferNFT(orange, a.PubKey()))
	if !errors.Is(err, core.ErrItemLocked) {
		t.Errorf("transfer_nft: got %v want ErrItemLocked", err)
	}
}

func TestRejectOfferReturnsItem(t *testing.T) {
	h, a, b := traders(t)

	h.MustSubmit(a.ListNFT(orange))
	h.MustSubmit(b.MakeOffer(0, pink))
	h.MustSubmit(a.HandleOffer(0, core.OfferReject))

	if it := item(t, h, pink); it.Owner != b.PubKey() || !it.Locked {
		t.Errorf("pink: %+v", it)
	}
	if _, err := h.State.GetListing(0); err != nil {
		t.Errorf("listing must survive a rejection: %v", err)
	}
	if err := h.Submit(a.HandleOffer(0, core.OfferReject)); !errors.Is(err, core.ErrOfferDoesNotExist) {
		t.Errorf("handle twice: got %v want ErrOfferDoesNotExist", err)
	}
	handled := h.EventsOf(events.EventOfferHandled)
	if len(handled) != 1 || handled[0].Data["decision"] != "reject" {
		t.Errorf("offer handled events: %+v", handled)
	}
}

func TestWithdrawOffer(t *testing.T) {
	h, a, b := traders(t)

	h.MustSubmit(a.ListNFT(orange))
	h.MustSubmit(b.MakeOffer(0, pink))
	if err := h.Submit(a.WithdrawOffer(0)); !errors.Is(err, core.ErrNoPermission) {
		t.Fatalf("withdraw by lister: got %v want ErrNoPermission", err)
	}
	h.MustSubmit(b.WithdrawOffer(0))

	if it := item(t, h, pink); it.Owner != b.PubKey() {
		t.Errorf("pink owner: got %s want b", it.Owner)
	}
	if _, err := h.State.GetOffer(0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("offer after withdraw: %v", err)
	}
	if err := h.Submit(b.WithdrawOffer(0)); !errors.Is(err, core.ErrOfferDoesNotExist) {
		t.Errorf("withdraw twice: got %v want ErrOfferDoesNotExist", err)
	}
}

func TestDelist(t *testing.T) {
	h, a, b := traders(t)

	h.MustSubmit(a.ListNFT(orange))
	if err := h.Submit(b.DelistNFT(0)); !errors.Is(err, core.ErrNoPermission) {
		t.Fatalf("delist by stranger: got %v want ErrNoPermission", err)
	}
	h.MustSubmit(a.DelistNFT(0))

	if it := item(t, h, orange); it.Owner != a.PubKey() || !it.Locked {
		t.Errorf("orange: %+v", it)
	}
	if err := h.Submit(a.DelistNFT(0)); !errors.Is(err, core.ErrListingDoesNotExist) {
		t.Errorf("delist twice: got %v want ErrListingDoesNotExist", err)
	}
	if err := h.Submit(b.MakeOffer(0, pink)); !errors.Is(err, core.ErrListingDoesNotExist) {
		t.Errorf("offer on delisted: got %v want ErrListingDoesNotExist", err)
	}
	if it := item(t, h, pink); it.Owner != b.PubKey() {
		t.Errorf("failed offer moved pink to %s", it.Owner)
	}
}

func TestOfferForeignItem(t *testing.T) {
	h, a, b := traders(t)

	h.MustSubmit(a.ListNFT(orange))
	c := h.NewPlayer()
	if err := h.Submit(c.MakeOffer(0, pink)); !errors.Is(err, core.ErrNoPermission) {
		t.Fatalf("offer of b's item by c: got %v want ErrNoPermission", err)
	}
	if it := item(t, h, pink); it.Owner != b.PubKey() || !it.Locked {
		t.Errorf("pink: %+v", it)
	}
}

// oneShort gives w three orange and five pink copies with four of every
// other color, stamped for round.
func oneShort(t *testing.T, h *testutil.Harness, w *wallet.Wallet, round uint32) {
	t.Helper()
	u := h.User(w.PubKey())
	for c := range u.Nfts {
		u.Nfts[c] = 4
	}
	u.Nfts[core.ColorOrange] = 3
	u.Nfts[core.ColorPink] = 5
	u.LastPlayedRound = round
	if err := h.State.SetUser(w.PubKey(), u); err != nil {
		t.Fatal(err)
	}
}

func accept(h *testutil.Harness, a, b *wallet.Wallet) {
	h.MustSubmit(a.ListNFT(orange))
	h.MustSubmit(b.MakeOffer(0, pink))
	h.MustSubmit(a.HandleOffer(0, core.OfferAccept))
}

func TestAcceptCompletingSetEndsRound(t *testing.T) {
	h, a, b := traders(t)
	oneShort(t, h, b, 1)
	accept(h, a, b)

	ub := h.User(b.PubKey())
	if !ub.HasFourOfAllColors() || ub.Points != 155+340 {
		t.Errorf("b: points %d colors %v", ub.Points, ub.Nfts)
	}
	if active, _ := h.State.GetRoundActive(); active {
		t.Error("round still active after b completed the set")
	}
	if champ, err := h.State.GetRoundChampion(1); err != nil || champ != b.PubKey() {
		t.Errorf("champion: got %.8s (%v) want b", champ, err)
	}

	lb, err := h.State.GetLeaderboard()
	if err != nil {
		t.Fatal(err)
	}
	want := core.Leaderboard{{Account: b.PubKey(), Points: 495}, {Account: a.PubKey(), Points: 155}}
	if len(lb) != len(want) {
		t.Fatalf("leaderboard: %+v", lb)
	}
	for i := range want {
		if lb[i] != want[i] {
			t.Errorf("leaderboard[%d]: got %+v want %+v", i, lb[i], want[i])
		}
	}
}

// TestTradeIgnoresColorsFromEarlierRounds checks that a trader who has not
// played the current round starts it with an empty set.
func TestTradeIgnoresColorsFromEarlierRounds(t *testing.T) {
	h, a, b := traders(t)
	oneShort(t, h, b, 1)
	h.Setup()
	accept(h, a, b)

	if active, _ := h.State.GetRoundActive(); !active {
		t.Fatal("round 2 ended on colors collected in round 1")
	}
	if _, err := h.State.GetRoundChampion(2); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("round 2 champion: %v", err)
	}
	for _, w := range []*wallet.Wallet{a, b} {
		u := h.User(w.PubKey())
		if u.LastPlayedRound != 2 || u.Points != 255 {
			t.Errorf("%.8s: round %d points %d want round 2 points 255", w.PubKey(), u.LastPlayedRound, u.Points)
		}
	}
	if got := h.User(b.PubKey()).Nfts; got != (core.CollectedColors{core.ColorOrange: 1}) {
		t.Errorf("b colors: %v", got)
	}
}
