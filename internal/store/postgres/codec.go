package postgres

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Columns hold hashes and addresses as 0x hex and amounts as decimal text so
// full uint256 values round-trip without a numeric codec.

func amountText(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("postgres: decode amount %q: %w", s, err)
	}
	return v, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := decodeHex(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("postgres: decode hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("postgres: decode address %q", s)
	}
	return common.HexToAddress(s), nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) < 2 || s[:2] != "0x" {
		return nil, fmt.Errorf("postgres: missing 0x prefix")
	}
	return common.FromHex(s), nil
}

// scanner decodes text columns into typed values and keeps the first error,
// so row mappers can decode every column and check once.
type scanner struct {
	err error
}

func (s *scanner) hash(v string) common.Hash {
	h, err := parseHash(v)
	s.keep(err)
	return h
}

func (s *scanner) address(v string) common.Address {
	a, err := parseAddress(v)
	s.keep(err)
	return a
}

func (s *scanner) amount(v string) *uint256.Int {
	a, err := parseAmount(v)
	s.keep(err)
	if a == nil {
		return new(uint256.Int)
	}
	return a
}

func (s *scanner) keep(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}
