package mint

import (
	"errors"
	"fmt"
	"math"
)

// TotalSupply is the fixed genesis key supply.
const TotalSupply uint64 = 10000

var (
	// ErrBalanceExceedsSupply is returned when reserved balances exceed TotalSupply.
	ErrBalanceExceedsSupply = errors.New("reserved balances exceed total supply")
	// ErrTooManyClaimCounts is returned when more counts than claim-eligible tokens are supplied.
	ErrTooManyClaimCounts = errors.New("claim counts exceed queryable supply")
	// ErrOverflow is returned when a derived figure does not fit in int64.
	ErrOverflow = errors.New("mint accounting overflow")
)

// BalanceSnapshot holds the reserved-pool balances read at one block.
type BalanceSnapshot struct {
	Block       uint64 `json:"block"`
	GenesisPool uint64 `json:"genesis_pool"`
	Treasury    uint64 `json:"treasury"`
	Insider     uint64 `json:"insider"`
}

// Validate checks every balance and their sum against TotalSupply.
func (b BalanceSnapshot) Validate() error {
	for _, v := range []uint64{b.GenesisPool, b.Treasury, b.Insider} {
		if v > TotalSupply {
			return fmt.Errorf("balance %d: %w", v, ErrBalanceExceedsSupply)
		}
	}
	if sum := b.GenesisPool + b.Treasury + b.Insider; sum > TotalSupply {
		return fmt.Errorf("reserved sum %d: %w", sum, ErrBalanceExceedsSupply)
	}
	return nil
}

// CirculatingSupply excludes all three reserved pools.
func (b BalanceSnapshot) CirculatingSupply() uint64 {
	return TotalSupply - b.GenesisPool - b.Treasury - b.Insider
}

// QueryableSupply is the token ID range scanned for claims. It excludes only
// the genesis pool and the treasury: insider-held keys stay claim-eligible,
// so their claims are counted in MintedCount while the keys themselves are
// not part of CirculatingSupply.
func (b BalanceSnapshot) QueryableSupply() uint64 {
	return TotalSupply - b.GenesisPool - b.Treasury
}

// MintAccounting is the derived record of one run.
type MintAccounting struct {
	Balances          BalanceSnapshot `json:"balances"`
	CirculatingSupply uint64          `json:"circulating_supply"`
	QueryableSupply   uint64          `json:"queryable_supply"`
	PerTokenAllowance uint64          `json:"per_token_allowance"`
	MintedCount       uint64          `json:"minted_count"`
	// UnmintedCount is negative when claims exceed the circulating allowance.
	UnmintedCount       int64    `json:"unminted_count"`
	ExternalTotalSupply *uint64  `json:"external_total_supply,omitempty"`
	PublicMintedCount   *int64   `json:"public_minted_count,omitempty"`
	Degraded            bool     `json:"degraded"`
	DegradedReasons     []string `json:"degraded_reasons,omitempty"`
}

// ComputeAccounting derives the mint figures from balances and per-token
// claim counts. claimCounts[k] belongs to token ID k+1; a slice shorter than
// the queryable range counts the missing tail as zero.
func ComputeAccounting(balances BalanceSnapshot, claimCounts []uint64, perTokenAllowance uint64) (MintAccounting, error) {
	if err := balances.Validate(); err != nil {
		return MintAccounting{}, err
	}

	queryable := balances.QueryableSupply()
	if uint64(len(claimCounts)) > queryable {
		return MintAccounting{}, fmt.Errorf("%d counts for %d tokens: %w", len(claimCounts), queryable, ErrTooManyClaimCounts)
	}

	var minted uint64
	for _, c := range claimCounts {
		if c > math.MaxInt64-minted {
			return MintAccounting{}, fmt.Errorf("minted count: %w", ErrOverflow)
		}
		minted += c
	}

	circulating := balances.CirculatingSupply()
	if circulating > 0 && perTokenAllowance > math.MaxInt64/circulating {
		return MintAccounting{}, fmt.Errorf("allowance %d x %d: %w", perTokenAllowance, circulating, ErrOverflow)
	}
	allowed := int64(circulating * perTokenAllowance)

	return MintAccounting{
		Balances:          balances,
		CirculatingSupply: circulating,
		QueryableSupply:   queryable,
		PerTokenAllowance: perTokenAllowance,
		MintedCount:       minted,
		UnmintedCount:     allowed - int64(minted),
	}, nil
}

// WithExternalSupply derives PublicMintedCount from an externally reported
// total supply. The result is negative if the source lags the claim counters.
func WithExternalSupply(acc MintAccounting, externalTotal uint64) (MintAccounting, error) {
	if externalTotal > math.MaxInt64 {
		return acc, fmt.Errorf("external supply %d: %w", externalTotal, ErrOverflow)
	}
	total := externalTotal
	public := int64(externalTotal) - int64(acc.MintedCount)
	acc.ExternalTotalSupply = &total
	acc.PublicMintedCount = &public
	return acc, nil
}

// MarkDegraded flags acc as computed from incomplete inputs.
func MarkDegraded(acc MintAccounting, reason string) MintAccounting {
	acc.Degraded = true
	reasons := make([]string, 0, len(acc.DegradedReasons)+1)
	reasons = append(reasons, acc.DegradedReasons...)
	acc.DegradedReasons = append(reasons, reason)
	return acc
}
