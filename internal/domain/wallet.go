package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WalletID is a participant's identity: a 0x-prefixed EVM address, always
// stored lowercase so lookups never depend on checksum casing.
type WalletID string

// ParseWallet validates s as a hex address and normalises it.
func ParseWallet(s string) (WalletID, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", ErrInvalidWallet
	}
	return WalletID(strings.ToLower(common.HexToAddress(s).Hex())), nil
}

// MustParseWallet is ParseWallet for fixtures and seeds; it panics on bad input.
func MustParseWallet(s string) WalletID {
	w, err := ParseWallet(s)
	if err != nil {
		panic("domain: bad wallet " + s)
	}
	return w
}

// Checksum returns the EIP-55 mixed-case form for display.
func (w WalletID) Checksum() string {
	return common.HexToAddress(string(w)).Hex()
}

func (w WalletID) String() string { return string(w) }
