package vm_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/events"
	"github.com/tolelom/propchain/internal/testutil"
	"github.com/tolelom/propchain/vm"

	_ "github.com/tolelom/propchain/vm/modules/economy"
	_ "github.com/tolelom/propchain/vm/modules/game"
)

func balance(t *testing.T, h *testutil.Harness, account string) uint64 {
	t.Helper()
	acc, err := h.State.GetAccount(account)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return acc.Balance
}

func TestDispatchFailureChargesFeeAndNonce(t *testing.T) {
	h := testutil.NewHarness(t)
	w := h.NewPlayer()
	w.SetFee(10)
	start := balance(t, h, w.PubKey())

	err := h.Submit(w.Transfer(h.Origin.PubKey(), start*2))
	var de *vm.DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("got %v want *DispatchError", err)
	}
	if de.Type != core.TxTransfer {
		t.Errorf("type: got %s want transfer", de.Type)
	}

	acc, _ := h.State.GetAccount(w.PubKey())
	if acc.Nonce != 1 {
		t.Errorf("nonce: got %d want 1", acc.Nonce)
	}
	if acc.Balance != start-10 {
		t.Errorf("balance: got %d want %d", acc.Balance, start-10)
	}
	if n := len(h.EventsOf(events.EventTxFailed)); n != 1 {
		t.Errorf("tx_failed events: got %d want 1", n)
	}
	if n := len(h.EventsOf(events.EventTokenTransfer)); n != 0 {
		t.Errorf("token_transfer events from failed tx: %d", n)
	}

	// The wallet's nonce stays in step with the chain.
	h.MustSubmit(w.Transfer(h.Origin.PubKey(), 1))
}

func TestFailedHandlerWritesAreReverted(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Setup()
	w := h.NewPlayer()

	// play_game moves the user into the current round before it finds the
	// catalog empty.
	for id := uint32(1); id <= 4; id++ {
		h.MustSubmit(h.Origin.RemoveProperty(id))
	}
	before := h.State.ComputeRoot()
	if err := h.Submit(w.PlayGame(core.DifficultyPractice)); !errors.Is(err, core.ErrNoProperty) {
		t.Fatalf("got %v want ErrNoProperty", err)
	}
	if u := h.User(w.PubKey()); u.LastPlayedRound != 0 {
		t.Errorf("last played round: got %d want 0", u.LastPlayedRound)
	}
	if h.State.ComputeRoot() == before {
		t.Error("state root unchanged: the sender's nonce should have advanced")
	}
}

func TestValidationFailureLeavesStateUntouched(t *testing.T) {
	h := testutil.NewHarness(t)
	w := h.NewPlayer()
	before := h.State.ComputeRoot()

	stale, err := w.NewTx(testutil.ChainID, core.TxTransfer, 7, 0,
		core.TransferPayload{To: h.Origin.PubKey(), Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	err = h.Exec.ExecuteTx(h.Block(), stale)
	var de *vm.DispatchError
	if err == nil || errors.As(err, &de) {
		t.Fatalf("bad nonce: got %v want validation error", err)
	}

	foreign, err := w.NewTx("other-chain", core.TxTransfer, 0, 0,
		core.TransferPayload{To: h.Origin.PubKey(), Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Exec.ExecuteTx(h.Block(), foreign); err == nil {
		t.Fatal("foreign chain id accepted")
	}

	tampered, err := w.NewTx(testutil.ChainID, core.TxTransfer, 0, 0,
		core.TransferPayload{To: h.Origin.PubKey(), Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	tampered.Payload = json.RawMessage(`{"to":"` + h.Origin.PubKey() + `","amount":999}`)
	if err := h.Exec.ExecuteTx(h.Block(), tampered); err == nil {
		t.Fatal("tampered payload accepted")
	}

	unknown, err := w.NewTx(testutil.ChainID, core.TxType("mint_gold"), 0, 0, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Exec.ExecuteTx(h.Block(), unknown); err == nil {
		t.Fatal("unknown tx type accepted")
	}

	if got := h.State.ComputeRoot(); got != before {
		t.Errorf("state root changed: %s -> %s", before, got)
	}
}

func TestBuildBlockDropsInvalid(t *testing.T) {
	h := testutil.NewHarness(t)
	w := h.NewPlayer()
	h.NextBlock()

	ok1, _ := w.Transfer(h.Origin.PubKey(), 1)
	failing, _ := w.Transfer(h.Origin.PubKey(), 1<<40)
	gap, _ := w.NewTx(testutil.ChainID, core.TxTransfer, 9, 0,
		core.TransferPayload{To: h.Origin.PubKey(), Amount: 1})

	block := core.NewBlock(h.Height()+1, h.Block().ComputeHash(), "", nil)
	dropped, err := h.Exec.BuildBlock(block, []*core.Transaction{ok1, gap, failing})
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	if len(dropped) != 1 || dropped[0] != gap.ID {
		t.Errorf("dropped: got %v want [%s]", dropped, gap.ID)
	}
	if len(block.Transactions) != 2 {
		t.Fatalf("included: got %d want 2", len(block.Transactions))
	}
	if block.Header.TxRoot != core.ComputeTxRoot([]*core.Transaction{ok1, failing}) {
		t.Error("tx root does not cover the included transactions")
	}
}

func TestExecuteBlockRejectsInvalidTx(t *testing.T) {
	h := testutil.NewHarness(t)
	w := h.NewPlayer()
	h.NextBlock()

	gap, _ := w.NewTx(testutil.ChainID, core.TxTransfer, 9, 0,
		core.TransferPayload{To: h.Origin.PubKey(), Amount: 1})
	block := core.NewBlock(h.Height()+1, h.Block().ComputeHash(), "", []*core.Transaction{gap})
	if err := h.Exec.ExecuteBlock(block); err == nil {
		t.Fatal("block with a bad nonce executed")
	}
}

func TestHandlerEventsPublishedOnSuccessOnly(t *testing.T) {
	h := testutil.NewHarness(t)
	w := h.NewPlayer()

	registered := h.EventsOf(events.EventNewPlayerRegistered)
	if len(registered) != 1 || registered[0].Data["player"] != w.PubKey() {
		t.Fatalf("registered events: %+v", registered)
	}
	if registered[0].TxID == "" || registered[0].BlockHeight != h.Height() {
		t.Errorf("event metadata: %+v", registered[0])
	}

	_ = h.Submit(h.Admin.RegisterUser(w.PubKey()))
	if n := len(h.EventsOf(events.EventNewPlayerRegistered)); n != 1 {
		t.Errorf("failed registration emitted: got %d events", n)
	}
}
