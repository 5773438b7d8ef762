package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrEncoding marks ABI pack/unpack failures.
	ErrEncoding = errors.New("abi encoding")
	// ErrValueOverflow marks an on-chain integer that does not fit in uint64.
	ErrValueOverflow = errors.New("value overflows uint64")
)

// Caller issues eth_call requests. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract binds an address and ABI to a caller, optionally pinned to a block.
type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
	block   *big.Int
}

func New(address common.Address, parsed abi.ABI, caller Caller) *Contract {
	return &Contract{address: address, abi: parsed, caller: caller}
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// AtBlock returns a copy of c whose calls execute against the given block.
// Zero means latest.
func (c *Contract) AtBlock(number uint64) *Contract {
	out := *c
	out.block = nil
	if number > 0 {
		out.block = new(big.Int).SetUint64(number)
	}
	return &out
}

// Call packs args, performs eth_call and returns the decoded outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("call %s: caller is nil", method)
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w: %w", method, ErrEncoding, err)
	}
	to := c.address
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := c.caller.CallContract(ctx, msg, c.block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w: %w", method, ErrEncoding, err)
	}
	return values, nil
}

// CallUint calls a method with a single unsigned integer output.
func (c *Contract) CallUint(ctx context.Context, method string, args ...interface{}) (uint64, error) {
	values, err := c.Call(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%s: %w: empty output", method, ErrEncoding)
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", method, ErrEncoding, err)
	}
	if value.Sign() < 0 || !value.IsUint64() {
		return 0, fmt.Errorf("%s returned %s: %w", method, value.String(), ErrValueOverflow)
	}
	return value.Uint64(), nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil big int")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
