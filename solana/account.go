package solana

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// CounterAccount mirrors the on-chain Counter struct that follows the 8 byte discriminator
type CounterAccount struct {
	Count     uint64
	Authority solana.PublicKey
}

func (a *CounterAccount) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Count, err = dec.ReadUint64(bin.LE); err != nil {
		return fmt.Errorf("failed to read count: %w", err)
	}
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read authority: %w", err)
	}
	a.Authority = solana.PublicKeyFromBytes(raw)
	return nil
}

func (a CounterAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(a.Count, bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(a.Authority[:], false)
}

// DecodeCounterAccount verifies the discriminator and decodes the account body
func DecodeCounterAccount(data, discriminator []byte) (*CounterAccount, error) {
	if len(data) < len(discriminator) || !bytes.Equal(data[:len(discriminator)], discriminator) {
		return nil, fmt.Errorf("account discriminator mismatch, not a %s account", counterAccountName)
	}

	var acc CounterAccount
	if err := bin.NewBorshDecoder(data[len(discriminator):]).Decode(&acc); err != nil {
		return nil, fmt.Errorf("failed to decode %s account: %w", counterAccountName, err)
	}
	return &acc, nil
}

// EncodeCounterAccount lays out a counter account the way the program stores it
func EncodeCounterAccount(acc CounterAccount, discriminator []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator)
	if err := bin.NewBorshEncoder(buf).Encode(acc); err != nil {
		return nil, fmt.Errorf("failed to encode %s account: %w", counterAccountName, err)
	}
	return buf.Bytes(), nil
}

// decodeCounter validates ownership of a fetched account before decoding it
func (g *Gateway) decodeCounter(address solana.PublicKey, account *rpc.Account) (*CounterAccount, error) {
	if !account.Owner.Equals(g.programID) {
		return nil, fmt.Errorf("account %s is owned by %s, expected program %s", address, account.Owner, g.programID)
	}
	if account.Data == nil {
		return nil, fmt.Errorf("account %s has no data", address)
	}
	return DecodeCounterAccount(account.Data.GetBinary(), g.accountDiscriminator)
}
