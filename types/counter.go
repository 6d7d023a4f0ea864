package types

// DefaultSeed is the PDA seed used when a caller does not supply one
const DefaultSeed = "counter"

// CounterAccountView is the read-only projection of an on-chain counter.
// Count is a decimal string so u64 values survive JSON clients that use float64.
type CounterAccountView struct {
	Authority string `json:"authority"`
	Count     string `json:"count"`
}

type InitializeResult struct {
	CounterAddress string
	Seed           string
	Signature      string
}

type IncrementResult struct {
	NewCount  string
	Signature string
}

// ClusterInfo is static and never requires a network round trip
type ClusterInfo struct {
	ClusterURL string
	ProgramID  string
}
