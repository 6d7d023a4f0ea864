package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/strangelove-ventures/solana-counter-api/client"
	"github.com/strangelove-ventures/solana-counter-api/solana"
	"github.com/strangelove-ventures/solana-counter-api/types"
)

var (
	docStyle = lipgloss.NewStyle().Padding(1, 2, 1, 2)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	countStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

const (
	dashboardRequestTimeout = 2 * time.Minute
	slotPollInterval        = 15 * time.Second
)

type healthMsg struct {
	health *types.HealthCheckResponse
	err    error
}

// storeMsg signals that a CounterStore operation finished, the outcome lives in the store
type storeMsg struct{}

type slotMsg struct {
	gen  int
	slot uint64
	err  error
}

type slotTickMsg struct {
	gen int
}

// dashboardModel is the Bubbletea model for the counter dashboard
type dashboardModel struct {
	api     *client.Client
	store   *client.CounterStore
	spinner spinner.Model

	seed      string
	counter   string
	wallet    string
	rpcURL    string
	cluster   string
	programID string
	healthErr error

	// newRPC builds the slot source when the wallet panel connects
	newRPC func(url string) solana.RPCClient
	slots  solana.RPCClient

	connected bool
	slotGen   int
	slot      uint64
	slotErr   error
	slotAt    time.Time

	pollInterval time.Duration
}

func newDashboardModel(apiClient *client.Client, seed, counter, wallet, rpcURL string) dashboardModel {
	return dashboardModel{
		api:          apiClient,
		store:        client.NewCounterStore(apiClient),
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		seed:         seed,
		counter:      counter,
		wallet:       wallet,
		rpcURL:       rpcURL,
		newRPC:       func(url string) solana.RPCClient { return rpc.New(url) },
		pollInterval: slotPollInterval,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.fetchHealth()}
	if m.counter != "" {
		cmds = append(cmds, m.load())
	}
	return tea.Batch(cmds...)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeys(msg)

	case healthMsg:
		if msg.err != nil {
			m.healthErr = msg.err
			return m, nil
		}
		m.healthErr = nil
		m.cluster = msg.health.SolanaCluster
		m.programID = msg.health.ProgramID

		if m.counter == "" {
			if addr, ok := m.deriveCounter(); ok {
				m.counter = addr
				return m, m.load()
			}
		}
		return m, nil

	case storeMsg:
		if data := m.store.Snapshot().Data; data != nil {
			m.counter = data.Address
		}
		return m, nil

	case slotMsg:
		if msg.gen != m.slotGen || !m.connected {
			return m, nil
		}
		m.slotErr = msg.err
		if msg.err == nil {
			m.slot = msg.slot
			m.slotAt = time.Now()
		}
		gen := msg.gen
		return m, tea.Tick(m.pollInterval, func(time.Time) tea.Msg {
			return slotTickMsg{gen: gen}
		})

	case slotTickMsg:
		if msg.gen != m.slotGen || !m.connected {
			return m, nil
		}
		return m, m.fetchSlot()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m dashboardModel) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.store.Snapshot()

	switch msg.String() {
	case "ctrl+c", "q":
		m.connected = false
		m.slotGen++
		return m, tea.Quit
	case "i":
		if st.IsUpdating {
			return m, nil
		}
		return m, m.initialize()
	case "+", " ":
		if st.IsUpdating {
			return m, nil
		}
		return m, m.increment()
	case "r":
		if m.counter == "" {
			return m, m.fetchHealth()
		}
		return m, m.load()
	case "c":
		return m.toggleConnection()
	case "x":
		m.store.ClearError()
		m.slotErr = nil
		return m, nil
	}
	return m, nil
}

// toggleConnection starts or stops the slot poll. Every toggle bumps the generation so ticks
// scheduled by an earlier connection are dropped.
func (m dashboardModel) toggleConnection() (tea.Model, tea.Cmd) {
	m.slotGen++

	if m.connected {
		m.connected = false
		return m, nil
	}

	url := m.rpcURL
	if url == "" {
		url = m.cluster
	}
	if url == "" {
		m.slotErr = fmt.Errorf("cluster unknown: pass --%s or wait for the API health check", flagRPC)
		return m, nil
	}
	if m.slots == nil {
		m.slots = m.newRPC(url)
	}

	m.connected = true
	m.slotErr = nil
	return m, m.fetchSlot()
}

func (m dashboardModel) deriveCounter() (string, bool) {
	if m.wallet == "" || m.programID == "" {
		return "", false
	}
	authority, err := solanago.PublicKeyFromBase58(m.wallet)
	if err != nil {
		return "", false
	}
	program, err := solanago.PublicKeyFromBase58(m.programID)
	if err != nil {
		return "", false
	}
	addr, _, err := solana.DeriveCounterAddress(m.seed, authority, program)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}

func (m dashboardModel) fetchHealth() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		health, err := m.api.Health(ctx)
		return healthMsg{health: health, err: err}
	}
}

func (m dashboardModel) load() tea.Cmd {
	store, counter := m.store, m.counter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardRequestTimeout)
		defer cancel()

		_ = store.Load(ctx, counter)
		return storeMsg{}
	}
}

func (m dashboardModel) initialize() tea.Cmd {
	store, seed := m.store, m.seed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardRequestTimeout)
		defer cancel()

		_ = store.Initialize(ctx, seed)
		return storeMsg{}
	}
}

func (m dashboardModel) increment() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardRequestTimeout)
		defer cancel()

		_ = store.Increment(ctx)
		return storeMsg{}
	}
}

func (m dashboardModel) fetchSlot() tea.Cmd {
	slots, gen := m.slots, m.slotGen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		slot, err := slots.GetSlot(ctx, rpc.CommitmentProcessed)
		return slotMsg{gen: gen, slot: slot, err: err}
	}
}

func (m dashboardModel) View() string {
	var b strings.Builder
	st := m.store.Snapshot()

	b.WriteString(titleStyle.Render("Solana Counter"))
	b.WriteString("\n\n")

	var counter strings.Builder
	switch {
	case st.IsLoading:
		counter.WriteString(m.spinner.View() + " Loading counter...")
	case st.Data != nil:
		counter.WriteString(row("Count", countStyle.Render(st.Data.Count)))
		counter.WriteString(row("Address", st.Data.Address))
		counter.WriteString(row("Authority", st.Data.Authority))
	case m.counter != "":
		counter.WriteString(row("Address", m.counter))
		counter.WriteString(helpStyle.Render("No counter data. Press i to initialize."))
	default:
		counter.WriteString(helpStyle.Render(fmt.Sprintf("No counter selected. Press i to initialize seed %q.", m.seed)))
	}
	if st.IsUpdating {
		counter.WriteString("\n" + m.spinner.View() + " Sending transaction...")
	}
	b.WriteString(boxStyle.Render(strings.TrimRight(counter.String(), "\n")))
	b.WriteString("\n\n")

	var wallet strings.Builder
	wallet.WriteString(row("Wallet", orDash(m.wallet)))
	wallet.WriteString(row("Cluster", orDash(m.cluster)))
	wallet.WriteString(row("Program", orDash(m.programID)))
	if m.connected {
		slot := "-"
		if m.slot > 0 {
			slot = fmt.Sprintf("%d (%s ago)", m.slot, time.Since(m.slotAt).Truncate(time.Second))
		}
		wallet.WriteString(row("Status", "connected"))
		wallet.WriteString(row("Slot", slot))
	} else {
		wallet.WriteString(row("Status", "disconnected"))
	}
	b.WriteString(boxStyle.Render(strings.TrimRight(wallet.String(), "\n")))
	b.WriteString("\n")

	for _, err := range []error{m.healthErr, m.slotErr} {
		if err != nil {
			b.WriteString("\n" + errorStyle.Render("Error: "+err.Error()))
		}
	}
	if st.Error != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+st.Error))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("i: initialize • +/space: increment • r: refresh • c: connect • x: clear error • q: quit"))

	return docStyle.Render(b.String())
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
