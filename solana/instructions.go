package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// buildInstruction assembles a counter program instruction from its IDL definition.
// Accounts are resolved by name; neither instruction takes arguments.
func (g *Gateway) buildInstruction(name string, counter solana.PublicKey) (solana.Instruction, error) {
	def, err := g.idl.Instruction(name)
	if err != nil {
		return nil, err
	}

	data, err := g.idl.InstructionDiscriminator(name)
	if err != nil {
		return nil, err
	}

	accounts := make(solana.AccountMetaSlice, 0, len(def.Accounts))
	for _, acc := range def.Accounts {
		key, err := g.resolveAccount(acc.Name, acc.Address, counter)
		if err != nil {
			return nil, fmt.Errorf("instruction %s: %w", name, err)
		}
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  key,
			IsWritable: acc.Mutable(),
			IsSigner:   acc.Signs(),
		})
	}

	return solana.NewInstruction(g.programID, accounts, data), nil
}

func (g *Gateway) resolveAccount(name, fixed string, counter solana.PublicKey) (solana.PublicKey, error) {
	if fixed != "" {
		return solana.PublicKeyFromBase58(fixed)
	}

	switch name {
	case "counter":
		return counter, nil
	case "authority", "user":
		return g.wallet, nil
	case "systemProgram", "system_program":
		return solana.SystemProgramID, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("no value for account %q", name)
	}
}
