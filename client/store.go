package client

import (
	"context"
	"errors"
	"sync"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

// ErrNoCounter is returned by Increment before a counter has been loaded or created
var ErrNoCounter = errors.New("no counter loaded: initialize or load one first")

// Counter is the client side view of a counter
type Counter struct {
	Address   string
	Authority string
	Count     string
}

// State is a snapshot of a CounterStore
type State struct {
	Data       *Counter
	IsLoading  bool
	IsUpdating bool
	Error      string
}

// CounterAPI is the subset of Client a CounterStore needs
type CounterAPI interface {
	InitializeCounter(ctx context.Context, seed string) (*types.InitializeCounterResponse, error)
	IncrementCounter(ctx context.Context, counterAddress string) (*types.IncrementCounterResponse, error)
	GetCounter(ctx context.Context, counterAddress string) (*types.GetCounterResponse, error)
}

// CounterStore tracks one counter for an interactive frontend.
// Loads replace the data, failed mutations keep the last known data and record the error.
type CounterStore struct {
	api CounterAPI

	mu    sync.RWMutex
	state State
}

func NewCounterStore(api CounterAPI) *CounterStore {
	return &CounterStore{api: api}
}

// Snapshot returns a copy of the current state
func (s *CounterStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.Data != nil {
		data := *st.Data
		st.Data = &data
	}
	return st
}

// Load fetches the counter at address. Data is cleared when the fetch fails.
func (s *CounterStore) Load(ctx context.Context, address string) error {
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})

	resp, err := s.api.GetCounter(ctx, address)

	s.update(func(st *State) {
		st.IsLoading = false
		if err != nil {
			st.Data = nil
			st.Error = err.Error()
			return
		}
		st.Data = &Counter{Address: resp.CounterAddress, Authority: resp.Authority, Count: resp.Count}
	})
	return err
}

// Initialize creates a counter for seed and loads it
func (s *CounterStore) Initialize(ctx context.Context, seed string) error {
	s.beginUpdate()

	created, err := s.api.InitializeCounter(ctx, seed)
	if err != nil {
		s.failUpdate(err)
		return err
	}

	counter, err := s.api.GetCounter(ctx, created.CounterAddress)
	if err != nil {
		s.failUpdate(err)
		return err
	}

	s.finishUpdate(&Counter{Address: counter.CounterAddress, Authority: counter.Authority, Count: counter.Count})
	return nil
}

// Increment bumps the loaded counter
func (s *CounterStore) Increment(ctx context.Context) error {
	current := s.Snapshot().Data
	if current == nil {
		s.update(func(st *State) {
			st.Error = ErrNoCounter.Error()
		})
		return ErrNoCounter
	}

	s.beginUpdate()

	resp, err := s.api.IncrementCounter(ctx, current.Address)
	if err != nil {
		s.failUpdate(err)
		return err
	}

	s.finishUpdate(&Counter{Address: current.Address, Authority: current.Authority, Count: resp.NewCount})
	return nil
}

// ClearError resets the error only
func (s *CounterStore) ClearError() {
	s.update(func(st *State) {
		st.Error = ""
	})
}

func (s *CounterStore) beginUpdate() {
	s.update(func(st *State) {
		st.IsUpdating = true
		st.Error = ""
	})
}

func (s *CounterStore) failUpdate(err error) {
	s.update(func(st *State) {
		st.IsUpdating = false
		st.Error = err.Error()
	})
}

func (s *CounterStore) finishUpdate(data *Counter) {
	s.update(func(st *State) {
		st.Data = data
		st.IsUpdating = false
		st.IsLoading = false
	})
}

func (s *CounterStore) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}
