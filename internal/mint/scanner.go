package mint

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mintrunner/internal/contract"
)

// BalanceReader reads genesis key balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (uint64, error)
}

// ClaimReader reads the per-token claim counter.
type ClaimReader interface {
	GenesisKeyClaimNumber(ctx context.Context, tokenID uint64) (uint64, error)
}

// ReservedAddresses are the holders excluded from circulation.
type ReservedAddresses struct {
	GenesisPool common.Address
	Treasury    common.Address
	Insider     common.Address
}

// ScanPolicy controls retries and progress logging for chain reads.
type ScanPolicy struct {
	MaxRetries    int
	RetryBackoff  time.Duration
	ProgressEvery uint64
}

// ClaimScan is the outcome of a claim counter scan.
type ClaimScan struct {
	// Counts holds the claim count of token ID i+1 at index i.
	Counts []uint64
	// StoppedAt is the token ID whose read reverted, or 0 if the range was read fully.
	StoppedAt  uint64
	StopReason string
}

// Complete reports whether every token in the range was read.
func (s ClaimScan) Complete() bool {
	return s.StoppedAt == 0
}

func isTransient(err error) bool {
	return contract.Classify(err) == contract.Transient
}

// ReadBalances reads the three reserved balances. reader is expected to be
// pinned to snapshot.Block.
func ReadBalances(ctx context.Context, reader BalanceReader, addrs ReservedAddresses, block uint64, policy ScanPolicy, logger *zap.Logger) (BalanceSnapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	read := func(name string, owner common.Address) (uint64, error) {
		var balance uint64
		err := withRetry(ctx, policy.MaxRetries, policy.RetryBackoff, isTransient, func(ctx context.Context) error {
			var err error
			balance, err = reader.BalanceOf(ctx, owner)
			if err != nil {
				logger.Warn("balance read failed", zap.String("holder", name), zap.String("address", owner.Hex()), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("balance of %s %s: %w", name, owner.Hex(), err)
		}
		return balance, nil
	}

	snap := BalanceSnapshot{Block: block}
	var err error
	if snap.GenesisPool, err = read("genesis", addrs.GenesisPool); err != nil {
		return BalanceSnapshot{}, err
	}
	if snap.Treasury, err = read("treasury", addrs.Treasury); err != nil {
		return BalanceSnapshot{}, err
	}
	if snap.Insider, err = read("insider", addrs.Insider); err != nil {
		return BalanceSnapshot{}, err
	}
	if err := snap.Validate(); err != nil {
		return BalanceSnapshot{}, err
	}
	return snap, nil
}

// ScanClaims reads the claim counter of token IDs 1..queryableSupply in order.
// A reverted read ends the scan early and is reported in the result; a
// transient failure is retried per policy and then fails the scan.
func ScanClaims(ctx context.Context, reader ClaimReader, queryableSupply uint64, policy ScanPolicy, logger *zap.Logger) (ClaimScan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		return ClaimScan{}, fmt.Errorf("claim reader is nil")
	}

	scan := ClaimScan{Counts: make([]uint64, 0, queryableSupply)}
	for tokenID := uint64(1); tokenID <= queryableSupply; tokenID++ {
		select {
		case <-ctx.Done():
			return ClaimScan{}, ctx.Err()
		default:
		}

		var count uint64
		err := withRetry(ctx, policy.MaxRetries, policy.RetryBackoff, isTransient, func(ctx context.Context) error {
			var err error
			count, err = reader.GenesisKeyClaimNumber(ctx, tokenID)
			if err != nil && isTransient(err) {
				logger.Warn("claim read failed", zap.Uint64("token_id", tokenID), zap.Error(err))
			}
			return err
		})
		if err != nil {
			if contract.Classify(err) == contract.Reverted {
				scan.StoppedAt = tokenID
				scan.StopReason = err.Error()
				logger.Warn("claim scan stopped on reverted token",
					zap.Uint64("token_id", tokenID),
					zap.Uint64("queryable_supply", queryableSupply),
					zap.Error(err),
				)
				return scan, nil
			}
			return ClaimScan{}, fmt.Errorf("claim number of token %d: %w", tokenID, err)
		}

		scan.Counts = append(scan.Counts, count)
		if policy.ProgressEvery > 0 && tokenID%policy.ProgressEvery == 0 {
			logger.Debug("claim scan progress", zap.Uint64("token_id", tokenID), zap.Uint64("queryable_supply", queryableSupply))
		}
	}

	return scan, nil
}
