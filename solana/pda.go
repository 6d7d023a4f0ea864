package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxSeedLength is the longest single seed a program derived address accepts
const MaxSeedLength = solana.MaxSeedLength

// DeriveCounterAddress derives the counter PDA owned by program for the given seed and authority.
// The same seed and wallet always map to the same account.
func DeriveCounterAddress(seed string, authority, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seed) > MaxSeedLength {
		return solana.PublicKey{}, 0, fmt.Errorf("seed %q exceeds %d bytes", seed, MaxSeedLength)
	}

	addr, bump, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(seed),
			authority.Bytes(),
		},
		program,
	)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive counter PDA: %w", err)
	}
	return addr, bump, nil
}
