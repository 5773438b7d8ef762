package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodBalanceOf             = "balanceOf"
	MethodGenesisKeyClaimNumber = "genesisKeyClaimNumber"
)

// GenesisKey is the token-ownership contract.
type GenesisKey struct {
	*Contract
}

// BalanceOf returns how many genesis keys owner holds.
func (g GenesisKey) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	return g.CallUint(ctx, MethodBalanceOf, owner)
}

// ProfileAuction is the claim-tracking contract.
type ProfileAuction struct {
	*Contract
}

// GenesisKeyClaimNumber returns how many profiles were claimed against tokenID.
func (p ProfileAuction) GenesisKeyClaimNumber(ctx context.Context, tokenID uint64) (uint64, error) {
	return p.CallUint(ctx, MethodGenesisKeyClaimNumber, new(big.Int).SetUint64(tokenID))
}
