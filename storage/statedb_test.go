package storage_test

import (
	"errors"
	"testing"

	"github.com/tolelom/propchain/core"
	"github.com/tolelom/propchain/internal/testutil"
	"github.com/tolelom/propchain/storage"
)

func mustSet(t *testing.T, s *storage.StateDB, addr string, bal uint64) {
	t.Helper()
	if err := s.SetAccount(&core.Account{Address: addr, Balance: bal}); err != nil {
		t.Fatal(err)
	}
}

func balanceOf(t *testing.T, s *storage.StateDB, addr string) uint64 {
	t.Helper()
	acc, err := s.GetAccount(addr)
	if err != nil {
		t.Fatal(err)
	}
	return acc.Balance
}

func TestSnapshotRevert(t *testing.T) {
	s := storage.NewStateDB(testutil.NewMemDB())
	mustSet(t, s, "a", 1)

	outer, _ := s.Snapshot()
	mustSet(t, s, "a", 2)
	inner, _ := s.Snapshot()
	mustSet(t, s, "b", 3)
	if err := s.DeleteGame(7); err != nil {
		t.Fatal(err)
	}

	if err := s.RevertToSnapshot(inner); err != nil {
		t.Fatal(err)
	}
	if got := balanceOf(t, s, "a"); got != 2 {
		t.Errorf("a after inner revert: got %d want 2", got)
	}
	if got := balanceOf(t, s, "b"); got != 0 {
		t.Errorf("b after inner revert: got %d want 0", got)
	}

	if err := s.RevertToSnapshot(outer); err != nil {
		t.Fatal(err)
	}
	if got := balanceOf(t, s, "a"); got != 1 {
		t.Errorf("a after outer revert: got %d want 1", got)
	}
	if err := s.RevertToSnapshot(inner); err == nil {
		t.Error("snapshot taken after the revert target is still usable")
	}
}

func TestGetAccountMissingIsZero(t *testing.T) {
	s := storage.NewStateDB(testutil.NewMemDB())
	acc, err := s.GetAccount("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Address != "nobody" || acc.Balance != 0 || acc.Nonce != 0 {
		t.Errorf("zero account: %+v", acc)
	}
	if _, err := s.GetUser("nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("user: got %v want ErrNotFound", err)
	}
}

// TestComputeRootDeterministic checks that the root depends on content
// only: not on write order and not on whether the buffer was flushed.
func TestComputeRootDeterministic(t *testing.T) {
	s1 := storage.NewStateDB(testutil.NewMemDB())
	s2 := storage.NewStateDB(testutil.NewMemDB())
	mustSet(t, s1, "a", 1)
	mustSet(t, s1, "b", 2)
	mustSet(t, s2, "b", 2)
	mustSet(t, s2, "a", 1)

	r1 := s1.ComputeRoot()
	if r1 != s2.ComputeRoot() {
		t.Fatal("roots differ for equal content")
	}
	if err := s1.Commit(); err != nil {
		t.Fatal(err)
	}
	if s1.ComputeRoot() != r1 {
		t.Error("commit changed the root")
	}

	mustSet(t, s1, "a", 5)
	if s1.ComputeRoot() == r1 {
		t.Error("root ignored a balance change")
	}
	mustSet(t, s1, "a", 1)
	if s1.ComputeRoot() != r1 {
		t.Error("root not restored by restoring content")
	}
}

func TestCommitPersists(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	mustSet(t, s, "a", 9)
	if err := s.SetPrice(3, 1234); err != nil {
		t.Fatal(err)
	}
	if db.Len() != 0 {
		t.Fatalf("writes reached the db before commit: %d keys", db.Len())
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	fresh := storage.NewStateDB(db)
	if got := balanceOf(t, fresh, "a"); got != 9 {
		t.Errorf("balance: got %d want 9", got)
	}
	if err := fresh.DeletePrice(3); err != nil {
		t.Fatal(err)
	}
	if err := fresh.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.NewStateDB(db).GetPrice(3); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted price: got %v want ErrNotFound", err)
	}
}

func TestRoundAndCounterDefaults(t *testing.T) {
	s := storage.NewStateDB(testutil.NewMemDB())
	if r, err := s.GetCurrentRound(); err != nil || r != 0 {
		t.Errorf("round: got %d (%v)", r, err)
	}
	if a, err := s.GetRoundActive(); err != nil || a {
		t.Errorf("active: got %v (%v)", a, err)
	}
	id, err := core.NextID(s, core.CounterListing)
	if err != nil || id != 0 {
		t.Fatalf("first id: got %d (%v)", id, err)
	}
	if id, _ = core.NextID(s, core.CounterListing); id != 1 {
		t.Errorf("second id: got %d want 1", id)
	}
}
