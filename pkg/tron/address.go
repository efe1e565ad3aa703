package tron

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix is the version byte of every mainnet and testnet TRON account.
const AddressPrefix byte = 0x41

// ErrInvalidAddress is returned for strings that are not TRON addresses.
var ErrInvalidAddress = errors.New("invalid tron address")

// ValidateAddress accepts base58check strings such as TFfagVe1aZpSfYaruY6xJfVPYZBuMj57FH.
func ValidateAddress(addr string) error {
	_, err := decodeBase58(addr)
	return err
}

// IsValidAddress is the boolean form of ValidateAddress.
func IsValidAddress(addr string) bool {
	return ValidateAddress(addr) == nil
}

// NormalizeAddress returns the base58 form of addr. Hex input may be 41-prefixed or 0x-prefixed.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if payload, err := decodeBase58(addr); err == nil {
		return base58.CheckEncode(payload, AddressPrefix), nil
	}
	return HexToBase58(addr)
}

// NormalizeForMatch is NormalizeAddress for lookups. A 34 character T-address that only fails
// its checksum because of letter case is returned trimmed so callers can compare it with EqualFold.
func NormalizeForMatch(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if normalized, err := NormalizeAddress(addr); err == nil {
		return normalized, nil
	}
	if !caseFoldedShape(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return addr, nil
}

func caseFoldedShape(addr string) bool {
	if len(addr) != 34 || (addr[0] != 'T' && addr[0] != 't') {
		return false
	}
	for _, r := range addr {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// HexToBase58 converts 41<20 bytes> or 0x<20 bytes> hex into base58check.
func HexToBase58(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) == 42 && strings.HasPrefix(raw, "41") {
		raw = raw[2:]
	}
	if len(raw) != 40 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	payload, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return base58.CheckEncode(payload, AddressPrefix), nil
}

// ToEVM maps a TRON address onto the 20-byte form used by the JSON-RPC endpoint.
func ToEVM(addr string) (common.Address, error) {
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return common.Address{}, err
	}
	payload, err := decodeBase58(normalized)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(payload), nil
}

// FromEVM renders a 20-byte address in TRON base58.
func FromEVM(addr common.Address) string {
	return base58.CheckEncode(addr.Bytes(), AddressPrefix)
}

// AddressesEqual compares two addresses case-insensitively after normalization.
func AddressesEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if na, err := NormalizeAddress(a); err == nil {
		a = na
	}
	if nb, err := NormalizeAddress(b); err == nil {
		b = nb
	}
	return strings.EqualFold(a, b)
}

func decodeBase58(addr string) ([]byte, error) {
	if len(addr) != 34 || addr[0] != 'T' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if version != AddressPrefix || len(payload) != common.AddressLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return payload, nil
}
