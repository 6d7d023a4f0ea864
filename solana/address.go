package solana

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParseAddress parses a base58 account address
func ParseAddress(addr string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(addr))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("Invalid public key input: %s", addr)
	}
	return pk, nil
}

// IsValidAddress reports whether addr is a base58 encoded 32 byte public key
func IsValidAddress(addr string) bool {
	_, err := ParseAddress(addr)
	return err == nil
}
