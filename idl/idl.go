// Package idl reads Anchor interface definitions for the counter program.
// Both the legacy layout (isMut/isSigner, metadata.address) and the 0.30
// layout (writable/signer, top-level address, explicit discriminators) are accepted.
package idl

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	bin "github.com/gagliardetto/binary"
)

//go:embed counter.json
var defaultIDL []byte

type IDL struct {
	Version      string        `json:"version"`
	Name         string        `json:"name"`
	Address      string        `json:"address,omitempty"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []AccountDef  `json:"accounts"`
	Errors       []ErrorDef    `json:"errors"`
	Metadata     Metadata      `json:"metadata"`
}

type Metadata struct {
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type Instruction struct {
	Name          string               `json:"name"`
	Discriminator []int                `json:"discriminator,omitempty"`
	Accounts      []InstructionAccount `json:"accounts"`
	Args          []Field              `json:"args"`
}

type InstructionAccount struct {
	Name     string `json:"name"`
	IsMut    bool   `json:"isMut"`
	IsSigner bool   `json:"isSigner"`
	Writable bool   `json:"writable"`
	Signer   bool   `json:"signer"`
	Address  string `json:"address,omitempty"`
}

// Mutable reports the writable flag in either IDL layout
func (a InstructionAccount) Mutable() bool {
	return a.IsMut || a.Writable
}

// Signs reports the signer flag in either IDL layout
func (a InstructionAccount) Signs() bool {
	return a.IsSigner || a.Signer
}

type AccountDef struct {
	Name          string          `json:"name"`
	Discriminator []int           `json:"discriminator,omitempty"`
	Type          json.RawMessage `json:"type,omitempty"`
}

type Field struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type ErrorDef struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Parse decodes an IDL document
func Parse(data []byte) (*IDL, error) {
	var doc IDL
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse IDL: %w", err)
	}
	return &doc, nil
}

// Load reads the IDL at path, or the bundled counter IDL when path is empty
func Load(path string) (*IDL, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IDL file %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the bundled counter program IDL
func Default() *IDL {
	doc, err := Parse(defaultIDL)
	if err != nil {
		panic(err)
	}
	return doc
}

// ProgramAddress returns the program id recorded in the IDL, empty if absent
func (i *IDL) ProgramAddress() string {
	if i.Metadata.Address != "" {
		return i.Metadata.Address
	}
	return i.Address
}

func (i *IDL) Instruction(name string) (*Instruction, error) {
	for idx := range i.Instructions {
		if i.Instructions[idx].Name == name {
			return &i.Instructions[idx], nil
		}
	}
	return nil, fmt.Errorf("instruction %q not found in IDL %s", name, i.Name)
}

// InstructionDiscriminator returns the 8 byte selector of the named instruction
func (i *IDL) InstructionDiscriminator(name string) ([]byte, error) {
	ix, err := i.Instruction(name)
	if err != nil {
		return nil, err
	}
	if len(ix.Discriminator) > 0 {
		return toBytes(ix.Discriminator)
	}
	return bin.SighashInstruction(name), nil
}

// AccountDiscriminator returns the 8 byte prefix of accounts of the named type
func (i *IDL) AccountDiscriminator(name string) ([]byte, error) {
	for _, acc := range i.Accounts {
		if acc.Name != name {
			continue
		}
		if len(acc.Discriminator) > 0 {
			return toBytes(acc.Discriminator)
		}
		return bin.SighashAccount(name), nil
	}
	return nil, fmt.Errorf("account %q not found in IDL %s", name, i.Name)
}

// ErrorByCode looks up a custom program error
func (i *IDL) ErrorByCode(code int) (ErrorDef, bool) {
	for _, e := range i.Errors {
		if e.Code == code {
			return e, true
		}
	}
	return ErrorDef{}, false
}

func toBytes(values []int) ([]byte, error) {
	out := make([]byte, len(values))
	for idx, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("discriminator byte %d out of range: %d", idx, v)
		}
		out[idx] = byte(v)
	}
	return out, nil
}
