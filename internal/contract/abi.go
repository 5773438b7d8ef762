package contract

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/tidwall/gjson"
)

const genesisKeyABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "owner", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const profileAuctionABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "genesisKeyClaimNumber",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	genesisKeyABI         abi.ABI
	genesisKeyABIOnce     sync.Once
	genesisKeyABIErr      error
	profileAuctionABI     abi.ABI
	profileAuctionABIOnce sync.Once
	profileAuctionABIErr  error
)

// GenesisKeyABI returns the built-in GenesisKey ABI fragment.
func GenesisKeyABI() (abi.ABI, error) {
	genesisKeyABIOnce.Do(func() {
		genesisKeyABI, genesisKeyABIErr = abi.JSON(strings.NewReader(genesisKeyABIJSON))
	})
	return genesisKeyABI, genesisKeyABIErr
}

// ProfileAuctionABI returns the built-in ProfileAuction ABI fragment.
func ProfileAuctionABI() (abi.ABI, error) {
	profileAuctionABIOnce.Do(func() {
		profileAuctionABI, profileAuctionABIErr = abi.JSON(strings.NewReader(profileAuctionABIJSON))
	})
	return profileAuctionABI, profileAuctionABIErr
}

// LoadABI reads a contract ABI from path. The file may hold a bare ABI array
// or a build artifact object carrying the array under "abi". An empty path
// returns fallback.
func LoadABI(path string, fallback func() (abi.ABI, error)) (abi.ABI, error) {
	if path == "" {
		if fallback == nil {
			return abi.ABI{}, fmt.Errorf("abi path is required")
		}
		return fallback()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}
	parsed, err := ParseABI(data)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return parsed, nil
}

// ParseABI parses ABI JSON in either bare or artifact form.
func ParseABI(data []byte) (abi.ABI, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		inner := gjson.GetBytes(data, "abi")
		if !inner.IsArray() {
			return abi.ABI{}, fmt.Errorf("artifact has no abi array")
		}
		data = []byte(inner.Raw)
	}
	return abi.JSON(bytes.NewReader(data))
}

// RequireMethods checks that parsed declares every named method.
func RequireMethods(parsed abi.ABI, methods ...string) error {
	for _, name := range methods {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("abi has no method %q", name)
		}
	}
	return nil
}
