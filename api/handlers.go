package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

// CounterService is the chain facing side of the API, implemented by solana.Gateway
type CounterService interface {
	InitializeCounter(ctx context.Context, seed string) (*types.InitializeResult, error)
	IncrementCounter(ctx context.Context, counterAddress string) (*types.IncrementResult, error)
	GetCounterData(ctx context.Context, counterAddress string) (*types.CounterAccountView, error)
	GetClusterInfo() types.ClusterInfo
}

type handlers struct {
	service CounterService
}

// chainContext keeps request values but outlives a disconnected client.
// A submitted transaction cannot be recalled, so confirmation is bounded by blockhash expiry instead.
func chainContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *handlers) health(c *gin.Context) {
	info := h.service.GetClusterInfo()
	c.JSON(http.StatusOK, types.HealthCheckResponse{
		Status:        "ok",
		SolanaCluster: info.ClusterURL,
		ProgramID:     info.ProgramID,
	})
}

func (h *handlers) initializeCounter(c *gin.Context) {
	req := Body[types.InitializeCounterRequest](c)

	res, err := h.service.InitializeCounter(chainContext(c), req.Seed)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, types.InitializeCounterResponse{
		Success:        true,
		CounterAddress: res.CounterAddress,
		Seed:           res.Seed,
		Signature:      res.Signature,
	})
}

func (h *handlers) incrementCounter(c *gin.Context) {
	req := Body[types.IncrementCounterRequest](c)

	res, err := h.service.IncrementCounter(chainContext(c), req.CounterAddress)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, types.IncrementCounterResponse{
		Success:        true,
		CounterAddress: req.CounterAddress,
		NewCount:       res.NewCount,
		Signature:      res.Signature,
	})
}

func (h *handlers) getCounter(c *gin.Context) {
	params := Params[types.CounterAddressParams](c)

	view, err := h.service.GetCounterData(chainContext(c), params.CounterAddress)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, types.GetCounterResponse{
		Success:        true,
		CounterAddress: params.CounterAddress,
		Authority:      view.Authority,
		Count:          view.Count,
	})
}

func notFound(c *gin.Context) {
	_ = c.Error(types.NewAppError("Resource not found", http.StatusNotFound))
}
