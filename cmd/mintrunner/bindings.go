package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"mintrunner/internal/config"
	"mintrunner/internal/contract"
	"mintrunner/internal/mint"
)

// bindings holds parsed ABIs and addresses, resolved before any connection is opened.
type bindings struct {
	genesisKeyABI     abi.ABI
	genesisKeyAddr    common.Address
	profileAuctionABI abi.ABI
	profileAuction    common.Address
	reserved          mint.ReservedAddresses
}

func loadBindings(cfg config.Config, withAuction bool) (bindings, error) {
	var b bindings
	var err error

	if b.genesisKeyABI, err = contract.LoadABI(cfg.GenesisKeyABI, contract.GenesisKeyABI); err != nil {
		return bindings{}, err
	}
	if err := contract.RequireMethods(b.genesisKeyABI, contract.MethodBalanceOf); err != nil {
		return bindings{}, fmt.Errorf("genesis key abi: %w", err)
	}
	if b.genesisKeyAddr, err = contract.ParseAddress(cfg.GenesisKeyAddress); err != nil {
		return bindings{}, fmt.Errorf("genesis key address: %w", err)
	}

	treasury, err := contract.ParseAddress(cfg.TreasuryAddress)
	if err != nil {
		return bindings{}, fmt.Errorf("treasury address: %w", err)
	}
	insider, err := contract.ParseAddress(cfg.InsiderAddress)
	if err != nil {
		return bindings{}, fmt.Errorf("insider address: %w", err)
	}
	// The GenesisKey contract holds the unsold genesis pool itself.
	b.reserved = mint.ReservedAddresses{GenesisPool: b.genesisKeyAddr, Treasury: treasury, Insider: insider}

	if !withAuction {
		return b, nil
	}

	if b.profileAuctionABI, err = contract.LoadABI(cfg.ProfileAuctionABI, contract.ProfileAuctionABI); err != nil {
		return bindings{}, err
	}
	if err := contract.RequireMethods(b.profileAuctionABI, contract.MethodGenesisKeyClaimNumber); err != nil {
		return bindings{}, fmt.Errorf("profile auction abi: %w", err)
	}
	if b.profileAuction, err = contract.ParseAddress(cfg.ProfileAuctionAddress); err != nil {
		return bindings{}, fmt.Errorf("profile auction address: %w", err)
	}
	return b, nil
}

func (b bindings) genesisKey(caller contract.Caller) *contract.Contract {
	return contract.New(b.genesisKeyAddr, b.genesisKeyABI, caller)
}

func (b bindings) auction(caller contract.Caller) *contract.Contract {
	return contract.New(b.profileAuction, b.profileAuctionABI, caller)
}
