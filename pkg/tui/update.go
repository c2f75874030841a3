package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HederaPayBot/hbarpay/pkg/syncer"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.txViewport.Width = msg.Width - 4
		m.txViewport.Height = msg.Height - 10
		return m, nil

	case syncEventMsg:
		m.refreshSnapshot()
		if m.mode == modeTransactions {
			m.updateTxViewport()
		}
		return m, listenForSync(m.sub)

	case opDoneMsg:
		if msg.err != nil {
			m.statusMessage = errStyle.Render(fmt.Sprintf("%s failed: %v", msg.label, msg.err))
		} else {
			m.statusMessage = infoStyle.Render(msg.label + " ok")
		}
		m.refreshSnapshot()
		return m, clearStatusAfter(4 * time.Second)

	case commandReplyMsg:
		if msg.err != nil {
			m.cmdReply = errStyle.Render(fmt.Sprintf("error: %v", msg.err))
		} else {
			m.cmdReply = msg.reply
		}
		return m, nil

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modePay:
		return m.updatePayForm(msg)
	case modeLink:
		return m.updateLinkForm(msg)
	case modeCommand:
		return m.updateCommandPrompt(msg)
	case modeTransactions:
		return m.updateTxList(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		m.statusMessage = "refreshing..."
		return m, refreshAll(m.sync)

	case "R":
		if m.snap.Phase == syncer.PhaseUnregistered {
			return m, registerUser(m.sync)
		}

	case "p":
		if m.snap.IsRegistered {
			m.mode = modePay
			m.payFocus = 0
			m.payInputs[0].Focus()
			return m, nil
		}

	case "l":
		if m.snap.IsRegistered && !m.snap.IsLinked {
			m.mode = modeLink
			m.linkFocus = 0
			m.linkInputs[0].Focus()
			return m, nil
		}

	case ":":
		if m.snap.IsRegistered {
			m.mode = modeCommand
			m.cmdReply = ""
			m.cmdInput.Focus()
			return m, nil
		}

	case "t":
		m.mode = modeTransactions
		m.updateTxViewport()
		return m, nil

	case "g":
		m.showGraph = !m.showGraph
		return m, nil

	case "c":
		if m.snap.User.IsLinked() {
			if err := clipboard.WriteAll(m.snap.User.HederaAccountID); err == nil {
				m.statusMessage = infoStyle.Render("account id copied")
				return m, clearStatusAfter(2 * time.Second)
			}
		}

	case "u":
		if m.accountURL != "" {
			if err := clipboard.WriteAll(m.accountURL); err == nil {
				m.statusMessage = infoStyle.Render("hashscan url copied")
				return m, clearStatusAfter(2 * time.Second)
			}
		}

	case "x":
		m.tracker.SetLoggedOut()
		m.refreshSnapshot()
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) updatePayForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMain
		for i := range m.payInputs {
			m.payInputs[i].Blur()
			m.payInputs[i].SetValue("")
		}
		return m, nil

	case "tab", "shift+tab", "up", "down":
		m.payInputs[m.payFocus].Blur()
		if msg.String() == "shift+tab" || msg.String() == "up" {
			m.payFocus = (m.payFocus + len(m.payInputs) - 1) % len(m.payInputs)
		} else {
			m.payFocus = (m.payFocus + 1) % len(m.payInputs)
		}
		m.payInputs[m.payFocus].Focus()
		return m, nil

	case "enter":
		recipient := m.payInputs[0].Value()
		amount := m.payInputs[1].Value()
		m.mode = modeMain
		for i := range m.payInputs {
			m.payInputs[i].Blur()
			m.payInputs[i].SetValue("")
		}
		return m, sendPayment(m.sync, recipient, amount)
	}

	var cmd tea.Cmd
	m.payInputs[m.payFocus], cmd = m.payInputs[m.payFocus].Update(msg)
	return m, cmd
}

func (m model) updateLinkForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMain
		for i := range m.linkInputs {
			m.linkInputs[i].Blur()
			m.linkInputs[i].SetValue("")
		}
		return m, nil

	case "tab", "shift+tab", "up", "down":
		m.linkInputs[m.linkFocus].Blur()
		if msg.String() == "shift+tab" || msg.String() == "up" {
			m.linkFocus = (m.linkFocus + len(m.linkInputs) - 1) % len(m.linkInputs)
		} else {
			m.linkFocus = (m.linkFocus + 1) % len(m.linkInputs)
		}
		m.linkInputs[m.linkFocus].Focus()
		return m, nil

	case "enter":
		accountID := m.linkInputs[0].Value()
		privateKey := m.linkInputs[1].Value()
		m.mode = modeMain
		for i := range m.linkInputs {
			m.linkInputs[i].Blur()
			m.linkInputs[i].SetValue("")
		}
		return m, linkAccount(m.sync, accountID, privateKey)
	}

	var cmd tea.Cmd
	m.linkInputs[m.linkFocus], cmd = m.linkInputs[m.linkFocus].Update(msg)
	return m, cmd
}

func (m model) updateCommandPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeMain
		m.cmdInput.Blur()
		m.cmdInput.SetValue("")
		m.cmdReply = ""
		return m, nil

	case "enter":
		text := m.cmdInput.Value()
		m.cmdInput.SetValue("")
		return m, sendCommand(m.sync, text)
	}

	var cmd tea.Cmd
	m.cmdInput, cmd = m.cmdInput.Update(msg)
	return m, cmd
}

func (m model) updateTxList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "t", "q":
		m.mode = modeMain
		return m, nil

	case "f":
		switch m.txFilter {
		case "all":
			m.txFilter = "in"
		case "in":
			m.txFilter = "out"
		default:
			m.txFilter = "all"
		}
		m.updateTxViewport()
		return m, nil

	case "r":
		return m, func() tea.Msg {
			m.sync.RefreshTransactions(context.Background())
			return opDoneMsg{label: "transaction refresh"}
		}
	}

	var cmd tea.Cmd
	m.txViewport, cmd = m.txViewport.Update(msg)
	return m, cmd
}

// --- Commands ---

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

func refreshAll(s *syncer.Syncer) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		s.RefreshProfile(ctx)
		s.RefreshHbarBalance(ctx)
		s.RefreshTokenBalances(ctx)
		s.RefreshTransactions(ctx)
		return opDoneMsg{label: "refresh"}
	}
}

func registerUser(s *syncer.Syncer) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{label: "registration", err: s.RegisterUser(context.Background())}
	}
}

func sendPayment(s *syncer.Syncer, recipient, amount string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.CreatePayment(context.Background(), recipient, amount, "HBAR")
		return opDoneMsg{label: "payment", err: err}
	}
}

func linkAccount(s *syncer.Syncer, accountID, privateKey string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{label: "account link", err: s.LinkHederaAccount(context.Background(), accountID, privateKey, "", "")}
	}
}

func sendCommand(s *syncer.Syncer, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := s.SendCommand(context.Background(), text)
		if err != nil {
			return commandReplyMsg{err: err}
		}
		return commandReplyMsg{reply: reply.Response}
	}
}
