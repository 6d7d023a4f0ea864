package types

// InitializeCounterRequest is the body of POST /api/counter/initialize
type InitializeCounterRequest struct {
	Seed string `json:"seed" form:"seed" validate:"seed"`
}

// ApplyDefaults fills the seed when the caller omitted it
func (r *InitializeCounterRequest) ApplyDefaults() {
	if r.Seed == "" {
		r.Seed = DefaultSeed
	}
}

// IncrementCounterRequest is the body of POST /api/counter/increment
type IncrementCounterRequest struct {
	CounterAddress string `json:"counterAddress" form:"counterAddress" validate:"required,pubkey"`
}

// CounterAddressParams are the path params of GET /api/counter/:counterAddress
type CounterAddressParams struct {
	CounterAddress string `json:"counterAddress" uri:"counterAddress" validate:"required,pubkey"`
}

type InitializeCounterResponse struct {
	Success        bool   `json:"success"`
	CounterAddress string `json:"counterAddress"`
	Seed           string `json:"seed"`
	Signature      string `json:"signature"`
}

type IncrementCounterResponse struct {
	Success        bool   `json:"success"`
	CounterAddress string `json:"counterAddress"`
	NewCount       string `json:"newCount"`
	Signature      string `json:"signature"`
}

type GetCounterResponse struct {
	Success        bool   `json:"success"`
	CounterAddress string `json:"counterAddress"`
	Authority      string `json:"authority"`
	Count          string `json:"count"`
}

type HealthCheckResponse struct {
	Status        string `json:"status"`
	SolanaCluster string `json:"solanaCluster"`
	ProgramID     string `json:"programId"`
}

// ErrorResponse is the envelope every failed request is rendered with
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}
