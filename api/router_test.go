package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/solana-counter-api/api"
	"github.com/strangelove-ventures/solana-counter-api/metrics"
	testutil "github.com/strangelove-ventures/solana-counter-api/test_util"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testutil.FakeCluster) {
	t.Helper()

	gw, cluster, cfg := testutil.GatewaySetup(t)
	router, err := api.NewRouter(gw, testutil.TestLogger, cfg.API)
	require.NoError(t, err)

	return router, cluster
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthMakesNoRPCCalls(t *testing.T) {
	gw, cluster, cfg := testutil.GatewaySetup(t)
	router, err := api.NewRouter(gw, testutil.TestLogger, cfg.API)
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[types.HealthCheckResponse](t, w)
	require.Equal(t, "ok", res.Status)
	require.Equal(t, cfg.ClusterURL, res.SolanaCluster)
	require.Equal(t, cfg.ProgramID, res.ProgramID)
	require.Zero(t, cluster.TotalCalls())
}

func TestInitializeEmptyBodyUsesDefaultSeed(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/counter/initialize", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[types.InitializeCounterResponse](t, w)
	require.True(t, res.Success)
	require.Equal(t, types.DefaultSeed, res.Seed)
	require.NotEmpty(t, res.CounterAddress)
	require.NotEmpty(t, res.Signature)
}

func TestInitializeAcceptsURLEncodedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/counter/initialize", strings.NewReader(url.Values{"seed": {"form"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "form", decode[types.InitializeCounterResponse](t, w).Seed)
}

func TestInitializeValidation(t *testing.T) {
	router, cluster := newTestRouter(t)

	testCases := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"seed not a string", `{"seed": 5}`, "seed", "Expected string, received number"},
		{"seed too long", `{"seed": "` + strings.Repeat("s", 33) + `"}`, "seed", "Seed must be at most 32 bytes"},
		{"malformed json", `{"seed": `, "", "Malformed JSON body"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/counter/initialize", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			res := decode[types.ErrorResponse](t, w)
			require.Equal(t, "Request validation failed", res.Error.Message)
			require.Len(t, res.Error.Details, 1)
			require.Equal(t, tc.field, res.Error.Details[0].Field)
			require.Equal(t, tc.message, res.Error.Details[0].Message)
		})
	}

	require.Zero(t, cluster.CallCount("sendTransaction"))
}

func TestIncrementMissingCounterAddress(t *testing.T) {
	router, cluster := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/counter/increment", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	res := decode[types.ErrorResponse](t, w)
	require.Equal(t, "Request validation failed", res.Error.Message)
	require.Equal(t, []types.ErrorDetail{{Field: "counterAddress", Message: "Required"}}, res.Error.Details)
	require.Zero(t, cluster.TotalCalls())
}

func TestIncrementInvalidCounterAddress(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/counter/increment", `{"counterAddress": "not-a-key"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	res := decode[types.ErrorResponse](t, w)
	require.Equal(t, []types.ErrorDetail{{Field: "counterAddress", Message: "Invalid public key"}}, res.Error.Details)
}

func TestIncrementMissingAccount(t *testing.T) {
	router, cluster := newTestRouter(t)
	addr := solana.NewWallet().PublicKey().String()

	w := do(t, router, http.MethodPost, "/api/counter/increment", `{"counterAddress": "`+addr+`"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	res := decode[types.ErrorResponse](t, w)
	require.Equal(t, "Account not found: "+addr, res.Error.Message)
	require.Zero(t, cluster.CallCount("sendTransaction"))
}

func TestIncrementExecutionErrorIncludesSignature(t *testing.T) {
	router, cluster := newTestRouter(t)

	counter := solana.NewWallet().PublicKey()
	cluster.SetCounter(counter, 7, solana.NewWallet().PublicKey())

	w := do(t, router, http.MethodPost, "/api/counter/increment", `{"counterAddress": "`+counter.String()+`"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	res := decode[types.ErrorResponse](t, w)
	require.True(t, strings.HasPrefix(res.Error.Message, "Failed to increment counter: Transaction failed: "), res.Error.Message)
	require.Contains(t, res.Error.Message, ". Transaction signature: ")
	require.NotEmpty(t, res.Error.Details)
	require.Equal(t, "Unauthorized", res.Error.Details[0].Field)

	stored, ok := cluster.Counter(counter)
	require.True(t, ok)
	require.Equal(t, uint64(7), stored.Count)
}

func TestGetCounterNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	addr := solana.NewWallet().PublicKey().String()

	w := do(t, router, http.MethodGet, "/api/counter/"+addr, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Account not found: "+addr, decode[types.ErrorResponse](t, w).Error.Message)
}

func TestGetCounterInvalidAddress(t *testing.T) {
	router, cluster := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/counter/xyz", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	res := decode[types.ErrorResponse](t, w)
	require.Equal(t, "Params validation failed", res.Error.Message)
	require.Zero(t, cluster.TotalCalls())
}

func TestUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/unknown-route", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":{"message":"Resource not found"}}`, w.Body.String())
}

func TestCounterRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/counter/initialize", `{"seed": "round-trip"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[types.InitializeCounterResponse](t, w)
	require.Equal(t, "round-trip", created.Seed)

	w = do(t, router, http.MethodGet, "/api/counter/"+created.CounterAddress, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fetched := decode[types.GetCounterResponse](t, w)
	require.Equal(t, "0", fetched.Count)
	require.Equal(t, created.CounterAddress, fetched.CounterAddress)

	w = do(t, router, http.MethodPost, "/api/counter/increment", `{"counterAddress": "`+created.CounterAddress+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	incremented := decode[types.IncrementCounterResponse](t, w)
	require.Equal(t, "1", incremented.NewCount)
	require.NotEmpty(t, incremented.Signature)

	w = do(t, router, http.MethodGet, "/api/counter/"+created.CounterAddress, "")
	require.Equal(t, "1", decode[types.GetCounterResponse](t, w).Count)
	require.Equal(t, fetched.Authority, decode[types.GetCounterResponse](t, w).Authority)
}

func TestDuplicateInitializeFails(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/counter/initialize", `{"seed": "dup"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/api/counter/initialize", `{"seed": "dup"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.True(t, strings.HasPrefix(decode[types.ErrorResponse](t, w).Error.Message, "Failed to initialize counter: "))
}

func TestRateLimitOnMutatingRoutes(t *testing.T) {
	gw, _, cfg := testutil.GatewaySetup(t)
	m := metrics.NewPromMetrics()
	limiter := api.NewRateLimiter(0.001, 1, m, testutil.TestLogger)

	router, err := api.NewRouter(gw, testutil.TestLogger, cfg.API, api.WithMetrics(m), api.WithRateLimiter(limiter))
	require.NoError(t, err)

	w := do(t, router, http.MethodPost, "/api/counter/initialize", `{"seed": "a"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/api/counter/initialize", `{"seed": "b"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "Too many requests", decode[types.ErrorResponse](t, w).Error.Message)

	// reads are never limited
	w = do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/counter/initialize", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, w.Header().Get(api.RequestIDHeader))
}

type failingService struct {
	api.CounterService
	err error
}

func (s failingService) GetCounterData(context.Context, string) (*types.CounterAccountView, error) {
	if s.err == nil {
		panic("boom")
	}
	return nil, s.err
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	addr := solana.NewWallet().PublicKey().String()

	testCases := []struct {
		name    string
		err     error
		details string
	}{
		{"plain error", errors.New("socket closed"), "socket closed"},
		{"panic", nil, "boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, err := api.NewRouter(failingService{err: tc.err}, testutil.TestLogger, types.APISettings{})
			require.NoError(t, err)

			w := do(t, router, http.MethodGet, "/api/counter/"+addr, "")
			require.Equal(t, http.StatusInternalServerError, w.Code)

			res := decode[types.ErrorResponse](t, w)
			require.Equal(t, "Internal server error", res.Error.Message)
			require.Equal(t, []types.ErrorDetail{{Message: tc.details}}, res.Error.Details)
		})
	}
}

func TestValidateQuery(t *testing.T) {
	type listQuery struct {
		Authority string `form:"authority" validate:"required,pubkey"`
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(api.ErrorHandler(testutil.TestLogger))
	router.GET("/q", api.ValidateQuery[listQuery](), func(c *gin.Context) {
		c.String(http.StatusOK, api.Query[listQuery](c).Authority)
	})

	w := do(t, router, http.MethodGet, "/q", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	res := decode[types.ErrorResponse](t, w)
	require.Equal(t, "Query validation failed", res.Error.Message)
	require.Equal(t, "authority", res.Error.Details[0].Field)

	key := solana.NewWallet().PublicKey().String()
	w = do(t, router, http.MethodGet, "/q?authority="+key, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, key, w.Body.String())
}

func TestRequestIDIsReused(t *testing.T) {
	router, _ := newTestRouter(t)

	id := "8f14e45f-ceea-467f-a0e6-1d7d1b2b7c11"
	req := httptest.NewRequest(http.MethodGet, "/health", bytes.NewReader(nil))
	req.Header.Set(api.RequestIDHeader, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, id, w.Header().Get(api.RequestIDHeader))
}
