package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/config"
	"github.com/HederaPayBot/hbarpay/pkg/syncer"
	"github.com/HederaPayBot/hbarpay/pkg/utils"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type syncEventMsg syncer.Event
type clearStatusMsg struct{}
type opDoneMsg struct {
	label string
	err   error
}
type commandReplyMsg struct {
	reply string
	err   error
}

type viewMode int

const (
	modeMain viewMode = iota
	modeTransactions
	modePay
	modeLink
	modeCommand
)

// --- Model ---

type model struct {
	sync    *syncer.Syncer
	tracker *auth.Tracker
	cfg     config.Config
	sub     syncer.Subscriber

	snap       syncer.Snapshot
	formatted  string
	usd        string
	accountURL string

	width  int
	height int

	mode          viewMode
	spinner       spinner.Model
	statusMessage string
	lastUpdate    time.Time
	showGraph     bool

	payInputs  []textinput.Model
	payFocus   int
	linkInputs []textinput.Model
	linkFocus  int
	cmdInput   textinput.Model
	cmdReply   string

	txViewport viewport.Model
	txFilter   string // "all", "in", "out"
}

func initialModel(s *syncer.Syncer, tracker *auth.Tracker, cfg config.Config) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pis := make([]textinput.Model, 2)
	for i := range pis {
		pis[i] = textinput.New()
		pis[i].Width = 32
	}
	pis[0].Placeholder = "@recipient"
	pis[1].Placeholder = "Amount (HBAR)"

	lis := make([]textinput.Model, 2)
	for i := range lis {
		lis[i] = textinput.New()
		lis[i].Width = 48
	}
	lis[0].Placeholder = "0.0.12345"
	lis[1].Placeholder = "Private key (never sent anywhere but the backend)"
	lis[1].EchoMode = textinput.EchoPassword

	ci := textinput.New()
	ci.Placeholder = "e.g. send 5 HBAR to @alice"
	ci.Width = 56

	m := model{
		sync:       s,
		tracker:    tracker,
		cfg:        cfg,
		sub:        s.Subscribe(),
		spinner:    sp,
		payInputs:  pis,
		linkInputs: lis,
		cmdInput:   ci,
		txFilter:   "all",
	}
	m.refreshSnapshot()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listenForSync(m.sub))
}

func listenForSync(sub syncer.Subscriber) tea.Cmd {
	return func() tea.Msg {
		return syncEventMsg(<-sub)
	}
}

// refreshSnapshot re-reads the consumer contract after an event.
func (m *model) refreshSnapshot() {
	m.snap = m.sync.Snapshot()
	m.formatted = m.sync.FormattedHbarBalance()
	usd, _ := m.sync.EstimatedHbarUSD().Float64()
	m.usd = "$" + utils.FormatFloat(usd, m.cfg.FiatDecimals)
	m.accountURL = m.sync.HashscanAccountURL()
	m.lastUpdate = time.Now()
}
