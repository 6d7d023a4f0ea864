package types

import (
	"fmt"
	"strings"
)

// Commitment is the confirmation level requested from the cluster
type Commitment int

const (
	CommitmentProcessed Commitment = iota + 1 // seen by the connected node
	CommitmentConfirmed                       // voted on by a supermajority
	CommitmentFinalized                       // rooted, cannot be rolled back
)

// DefaultCommitment is used when COMMITMENT is unset
const DefaultCommitment = CommitmentConfirmed

func (c Commitment) String() string {
	switch c {
	case CommitmentProcessed:
		return "processed"
	case CommitmentConfirmed:
		return "confirmed"
	case CommitmentFinalized:
		return "finalized"
	default:
		return "confirmed"
	}
}

// Reached reports whether a status observed at level other satisfies c
func (c Commitment) Reached(other Commitment) bool {
	return other >= c
}

// ParseCommitment parses a string into Commitment, returns error for invalid values
func ParseCommitment(s string) (Commitment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultCommitment, nil
	case "processed":
		return CommitmentProcessed, nil
	case "confirmed":
		return CommitmentConfirmed, nil
	case "finalized":
		return CommitmentFinalized, nil
	default:
		return 0, fmt.Errorf("invalid commitment %q: must be one of processed, confirmed, finalized", s)
	}
}

func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Commitment) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitment(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
