package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a hex account identifier and returns it as an address.
// Mixed-case input is accepted regardless of its checksum; callers log the
// checksummed form via Hex().
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(strings.ToLower(input)), nil
}
