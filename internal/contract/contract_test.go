package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

type fakeCaller struct {
	lastMsg   ethereum.CallMsg
	lastBlock *big.Int
	resp      []byte
	err       error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.lastMsg = msg
	f.lastBlock = block
	return f.resp, f.err
}

type testRPCError struct {
	code int
	msg  string
}

func (e testRPCError) Error() string  { return e.msg }
func (e testRPCError) ErrorCode() int { return e.code }

func packUint(t *testing.T, method string, value *big.Int) []byte {
	t.Helper()
	parsed, err := GenesisKeyABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(value)
	if err != nil {
		t.Fatalf("pack output: %v", err)
	}
	return out
}

func TestBalanceOfAtBlock(t *testing.T) {
	parsed, err := GenesisKeyABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	caller := &fakeCaller{resp: packUint(t, MethodBalanceOf, big.NewInt(42))}
	addr := common.HexToAddress("0x8fb5a7894ab461a59acdfab8918335768e411414")
	gk := GenesisKey{New(addr, parsed, caller).AtBlock(19000000)}

	got, err := gk.BalanceOf(context.Background(), addr)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if got != 42 {
		t.Fatalf("balance mismatch: got %d want 42", got)
	}
	if caller.lastMsg.To == nil || *caller.lastMsg.To != addr {
		t.Fatalf("call sent to wrong address: %v", caller.lastMsg.To)
	}
	if caller.lastBlock == nil || caller.lastBlock.Uint64() != 19000000 {
		t.Fatalf("call not pinned to block: %v", caller.lastBlock)
	}
}

func TestCallUintOverflow(t *testing.T) {
	parsed, _ := GenesisKeyABI()
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	caller := &fakeCaller{resp: packUint(t, MethodBalanceOf, huge)}
	gk := GenesisKey{New(common.Address{}, parsed, caller)}

	_, err := gk.BalanceOf(context.Background(), common.Address{})
	if !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if Classify(err) != Fatal {
		t.Fatalf("overflow should be fatal")
	}
}

func TestCallEmptyResponseIsEncodingError(t *testing.T) {
	parsed, _ := ProfileAuctionABI()
	pa := ProfileAuction{New(common.Address{}, parsed, &fakeCaller{resp: nil})}

	_, err := pa.GenesisKeyClaimNumber(context.Background(), 1)
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"revert code", testRPCError{code: 3, msg: "execution reverted: ERC721: invalid token ID"}, Reverted},
		{"revert message on server error", testRPCError{code: -32000, msg: "execution reverted"}, Reverted},
		{"server error", testRPCError{code: -32000, msg: "header not found"}, Transient},
		{"invalid params", testRPCError{code: -32602, msg: "invalid argument"}, Fatal},
		{"rate limited", rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}, Transient},
		{"bad gateway", rpc.HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}, Transient},
		{"unauthorized", rpc.HTTPError{StatusCode: 401, Status: "401 Unauthorized"}, Fatal},
		{"wrapped revert", fmt.Errorf("call x: %w", testRPCError{code: 3, msg: "reverted"}), Reverted},
		{"canceled", fmt.Errorf("call x: %w", context.Canceled), Fatal},
		{"plain transport", errors.New("connection reset by peer"), Transient},
		{"plain revert text", errors.New("VM Exception: execution reverted"), Reverted},
		{"nil", nil, NoFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("classify %v: got %s want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseABIArtifact(t *testing.T) {
	artifact := []byte(`{"contractName":"ProfileAuction","abi":` + profileAuctionABIJSON + `}`)
	parsed, err := ParseABI(artifact)
	if err != nil {
		t.Fatalf("parse artifact: %v", err)
	}
	if err := RequireMethods(parsed, MethodGenesisKeyClaimNumber); err != nil {
		t.Fatalf("missing method: %v", err)
	}
	if err := RequireMethods(parsed, MethodBalanceOf); err == nil {
		t.Fatalf("expected missing balanceOf")
	}

	if _, err := ParseABI([]byte(`{"contractName":"x"}`)); err == nil {
		t.Fatalf("expected error for artifact without abi")
	}
}

func TestLoadABI(t *testing.T) {
	parsed, err := LoadABI("", GenesisKeyABI)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if err := RequireMethods(parsed, MethodBalanceOf); err != nil {
		t.Fatalf("fallback abi: %v", err)
	}

	path := filepath.Join(t.TempDir(), "GenesisKey.json")
	if err := os.WriteFile(path, []byte(genesisKeyABIJSON), 0o644); err != nil {
		t.Fatalf("write abi: %v", err)
	}
	parsed, err = LoadABI(path, nil)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if err := RequireMethods(parsed, MethodBalanceOf); err != nil {
		t.Fatalf("file abi: %v", err)
	}

	if _, err := LoadABI(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress(" 0x30F649D418AF7358F9C8CB036219FC7F1B646309 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr.Hex() != "0x30f649D418AF7358f9c8CB036219fC7f1B646309" {
		t.Fatalf("checksum mismatch: %s", addr.Hex())
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected error for short address")
	}
}
