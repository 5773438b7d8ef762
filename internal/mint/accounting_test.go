package mint

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestComputeAccountingScenario(t *testing.T) {
	balances := BalanceSnapshot{GenesisPool: 100, Treasury: 50, Insider: 20}
	counts := make([]uint64, balances.QueryableSupply())

	acc, err := ComputeAccounting(balances, counts, 5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if acc.QueryableSupply != 9850 {
		t.Fatalf("queryable supply: got %d want 9850", acc.QueryableSupply)
	}
	if acc.CirculatingSupply != 9830 {
		t.Fatalf("circulating supply: got %d want 9830", acc.CirculatingSupply)
	}
	if acc.MintedCount != 0 {
		t.Fatalf("minted count: got %d want 0", acc.MintedCount)
	}
	if acc.UnmintedCount != 49150 {
		t.Fatalf("unminted count: got %d want 49150", acc.UnmintedCount)
	}
}

func TestCirculatingSupplyNonNegative(t *testing.T) {
	for _, b := range []BalanceSnapshot{
		{},
		{GenesisPool: 10000},
		{GenesisPool: 3333, Treasury: 3333, Insider: 3334},
		{GenesisPool: 1, Treasury: 2, Insider: 3},
	} {
		acc, err := ComputeAccounting(b, nil, 1)
		if err != nil {
			t.Fatalf("compute %+v: %v", b, err)
		}
		want := TotalSupply - b.GenesisPool - b.Treasury - b.Insider
		if acc.CirculatingSupply != want {
			t.Fatalf("circulating for %+v: got %d want %d", b, acc.CirculatingSupply, want)
		}
	}
}

func TestMintedCountIsSum(t *testing.T) {
	balances := BalanceSnapshot{GenesisPool: 9990}
	counts := []uint64{1, 0, 5, 2, 0, 0, 3}

	acc, err := ComputeAccounting(balances, counts, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if acc.MintedCount != 11 {
		t.Fatalf("minted: got %d want 11", acc.MintedCount)
	}
	// 10 circulating * 2 allowance - 11 minted
	if acc.UnmintedCount != 9 {
		t.Fatalf("unminted: got %d want 9", acc.UnmintedCount)
	}
}

func TestUnmintedMayBeNegative(t *testing.T) {
	balances := BalanceSnapshot{GenesisPool: 9997, Insider: 1}
	acc, err := ComputeAccounting(balances, []uint64{4, 4, 4}, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if acc.UnmintedCount != -8 {
		t.Fatalf("unminted: got %d want -8", acc.UnmintedCount)
	}
}

func TestZeroAllowance(t *testing.T) {
	acc, err := ComputeAccounting(BalanceSnapshot{GenesisPool: 9995}, []uint64{1, 2, 3}, 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if acc.UnmintedCount != -6 {
		t.Fatalf("unminted: got %d want -6", acc.UnmintedCount)
	}
}

func TestEmptyClaimRange(t *testing.T) {
	acc, err := ComputeAccounting(BalanceSnapshot{GenesisPool: 6000, Treasury: 4000}, nil, 5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if acc.QueryableSupply != 0 || acc.MintedCount != 0 || acc.UnmintedCount != 0 {
		t.Fatalf("unexpected accounting for empty range: %+v", acc)
	}

	if _, err := ComputeAccounting(BalanceSnapshot{GenesisPool: 6000, Treasury: 4000}, []uint64{1}, 5); !errors.Is(err, ErrTooManyClaimCounts) {
		t.Fatalf("expected ErrTooManyClaimCounts, got %v", err)
	}
}

func TestInsiderKeysStayClaimEligible(t *testing.T) {
	b := BalanceSnapshot{GenesisPool: 10, Treasury: 20, Insider: 30}
	if b.QueryableSupply()-b.CirculatingSupply() != b.Insider {
		t.Fatalf("queryable and circulating should differ by the insider balance")
	}
}

func TestComputeAccountingIdempotent(t *testing.T) {
	balances := BalanceSnapshot{Block: 18000000, GenesisPool: 100, Treasury: 50, Insider: 20}
	counts := make([]uint64, 500)
	for i := range counts {
		counts[i] = uint64(i % 4)
	}

	first, err := ComputeAccounting(balances, counts, 5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := ComputeAccounting(balances, counts, 5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("accounting differs across runs: %+v != %+v", first, second)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("encoded accounting differs: %s != %s", a, b)
	}
}

func TestBalancesExceedingSupply(t *testing.T) {
	cases := []BalanceSnapshot{
		{GenesisPool: 10001},
		{GenesisPool: 5000, Treasury: 5000, Insider: 1},
	}
	for _, b := range cases {
		if _, err := ComputeAccounting(b, nil, 1); !errors.Is(err, ErrBalanceExceedsSupply) {
			t.Fatalf("expected ErrBalanceExceedsSupply for %+v, got %v", b, err)
		}
	}
}

func TestAllowanceOverflow(t *testing.T) {
	if _, err := ComputeAccounting(BalanceSnapshot{}, nil, 1<<62); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestWithExternalSupply(t *testing.T) {
	acc, err := ComputeAccounting(BalanceSnapshot{GenesisPool: 9998}, []uint64{3, 4}, 5)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	acc, err = WithExternalSupply(acc, 1000)
	if err != nil {
		t.Fatalf("external supply: %v", err)
	}
	if acc.PublicMintedCount == nil || *acc.PublicMintedCount != 993 {
		t.Fatalf("public minted: got %v want 993", acc.PublicMintedCount)
	}
	if acc.ExternalTotalSupply == nil || *acc.ExternalTotalSupply != 1000 {
		t.Fatalf("external total: got %v", acc.ExternalTotalSupply)
	}
}

func TestMarkDegradedDoesNotAlias(t *testing.T) {
	base := MintAccounting{DegradedReasons: make([]string, 0, 4)}
	a := MarkDegraded(base, "a")
	b := MarkDegraded(base, "b")

	if !a.Degraded || !b.Degraded {
		t.Fatalf("expected degraded flag")
	}
	if a.DegradedReasons[0] != "a" || b.DegradedReasons[0] != "b" {
		t.Fatalf("reasons aliased: %v %v", a.DegradedReasons, b.DegradedReasons)
	}
	if base.Degraded {
		t.Fatalf("input must not be modified")
	}
}
