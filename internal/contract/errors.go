package contract

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// FailureKind classifies a failed contract call.
type FailureKind int

const (
	// Transient failures may succeed on retry (transport, rate limiting, node errors).
	Transient FailureKind = iota
	// Reverted means the call executed and reverted, e.g. a token ID outside the supply.
	Reverted
	// Fatal failures will not succeed for any input (bad ABI, wrong address, auth, cancellation).
	Fatal
	// NoFailure is reported for a nil error.
	NoFailure
)

func (k FailureKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Reverted:
		return "reverted"
	case Fatal:
		return "fatal"
	case NoFailure:
		return "none"
	default:
		return "unknown"
	}
}

// JSON-RPC codes used by execution clients.
const (
	codeExecutionReverted = 3
	codeServerError       = -32000
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
)

// Classify maps a call error onto a FailureKind. A nil error is NoFailure.
func Classify(err error) FailureKind {
	if err == nil {
		return NoFailure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}
	if errors.Is(err, ErrEncoding) || errors.Is(err, ErrValueOverflow) {
		return Fatal
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			return Transient
		}
		return Fatal
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeExecutionReverted:
			return Reverted
		case codeMethodNotFound, codeInvalidParams:
			return Fatal
		case codeServerError:
			if isRevertMessage(rpcErr.Error()) {
				return Reverted
			}
			return Transient
		}
	}

	if isRevertMessage(err.Error()) {
		return Reverted
	}
	return Transient
}

func isRevertMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "invalid opcode")
}
