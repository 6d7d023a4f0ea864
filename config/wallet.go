package config

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// keypairSize is the length of a solana-keygen secret: 32 byte seed followed by the public key
const keypairSize = 64

var (
	ErrWalletMissing   = errors.New("Wallet configuration missing: set WALLET_KEYPAIR_PATH or WALLET_KEYPAIR")
	ErrWalletJSONArray = errors.New("Failed to parse WALLET_KEYPAIR JSON array")
	ErrWalletFormat    = errors.New("Failed to parse WALLET_KEYPAIR: supported formats are JSON array, base64, or base58")
)

// ParseSecretKey decodes a wallet secret from a JSON byte array, base64 or base58,
// tried in that order. Base64 only wins when it yields a self-consistent ed25519
// keypair so that base58 strings which happen to be valid base64 are not misread.
func ParseSecretKey(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "[") {
		key, err := parseJSONArray(trimmed)
		if err != nil {
			return nil, ErrWalletJSONArray
		}
		return key, nil
	}

	if key, ok := decodeBase64Keypair(trimmed); ok {
		return key, nil
	}

	key, err := base58.Decode(trimmed)
	if err != nil || len(key) == 0 {
		return nil, ErrWalletFormat
	}
	return key, nil
}

// LoadWallet resolves the wallet secret. The inline secret wins over the keypair file.
func LoadWallet(inline, path string, readFile func(string) ([]byte, error)) (solana.PrivateKey, error) {
	var (
		key []byte
		err error
	)

	switch {
	case inline != "":
		key, err = ParseSecretKey(inline)
	case path != "":
		key, err = readKeypairFile(path, readFile)
	default:
		return nil, ErrWalletMissing
	}
	if err != nil {
		return nil, err
	}

	if _, err := solana.ValidatePrivateKey(key); err != nil {
		return nil, fmt.Errorf("invalid wallet keypair: %w", err)
	}
	return solana.PrivateKey(key), nil
}

func readKeypairFile(path string, readFile func(string) ([]byte, error)) ([]byte, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		resolved = path
	}

	content, err := readFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("Wallet keypair file does not exist: %s", resolved)
		}
		return nil, fmt.Errorf("failed to read wallet keypair file: %w", err)
	}

	// solana-keygen writes a bare JSON array
	if key, err := parseJSONArray(strings.TrimSpace(string(content))); err == nil {
		return key, nil
	}
	return ParseSecretKey(string(content))
}

func parseJSONArray(s string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, err
	}

	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func decodeBase64Keypair(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		decoded, err := enc.DecodeString(s)
		if err == nil && isKeypair(decoded) {
			return decoded, true
		}
	}
	return nil, false
}

// isKeypair checks that the trailing public key matches the leading seed
func isKeypair(b []byte) bool {
	if len(b) != keypairSize {
		return false
	}
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	return bytes.Equal(derived, b)
}
