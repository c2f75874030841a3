package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HederaPayBot/hbarpay/pkg/syncer"
	"github.com/HederaPayBot/hbarpay/pkg/utils"
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf(" hbarpay %s ", Version)))
	b.WriteString("  ")
	b.WriteString(m.renderIdentityLine())
	b.WriteString("\n\n")

	switch m.mode {
	case modeTransactions:
		b.WriteString(m.renderTransactions())
	case modePay:
		b.WriteString(m.renderPayForm())
	case modeLink:
		b.WriteString(m.renderLinkForm())
	case modeCommand:
		b.WriteString(m.renderCommandPrompt())
	default:
		b.WriteString(m.renderMain())
	}

	if m.snap.LastError != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("! " + m.snap.LastError))
	}
	if m.statusMessage != "" {
		b.WriteString("\n")
		b.WriteString(m.statusMessage)
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m model) renderIdentityLine() string {
	switch m.snap.Phase {
	case syncer.PhaseUnauthenticated:
		return subtleStyle.Render("not signed in")
	case syncer.PhaseChecking:
		return m.spinner.View() + subtleStyle.Render(" checking @"+m.snap.Handle+"...")
	case syncer.PhaseUnregistered:
		return errStyle.Render("@" + m.snap.Handle + " is not registered")
	}

	line := infoStyle.Render("@" + m.snap.Handle)
	if m.snap.IsLinked {
		line += subtleStyle.Render("  linked: " + m.snap.User.HederaAccountID)
	} else {
		line += subtleStyle.Render("  no linked account")
	}
	if m.snap.IsLoading {
		line += "  " + m.spinner.View()
	}
	return line
}

func (m model) renderMain() string {
	if m.snap.Phase == syncer.PhaseUnauthenticated {
		return boxStyle.Render("Sign in to get started.\nUse the -handle flag or POST /api/login.")
	}
	if m.snap.Phase == syncer.PhaseUnregistered {
		return boxStyle.Render("This handle has no payment profile yet.\nPress R to register.")
	}
	if m.snap.Phase == syncer.PhaseChecking {
		return boxStyle.Render(m.spinner.View() + " Looking up profile...")
	}

	balance := m.formatted + " ℏ"
	if m.snap.IsBalanceLoading {
		balance += "  " + m.spinner.View()
	}
	balBox := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		tableHeaderStyle.Render("Balance"),
		fmt.Sprintf("%s  %s", balance, subtleStyle.Render("~"+m.usd)),
	))

	sections := []string{balBox}

	if len(m.snap.User.Tokens) > 0 {
		var rows []string
		rows = append(rows, tableHeaderStyle.Render("Tokens"))
		for i, tok := range m.snap.User.Tokens {
			if i >= 8 {
				rows = append(rows, subtleStyle.Render(fmt.Sprintf("  ... and %d more", len(m.snap.User.Tokens)-i)))
				break
			}
			rows = append(rows, fmt.Sprintf("  %-10s %14s  %s",
				utils.TruncateString(tok.Symbol, 10),
				tok.Balance,
				subtleStyle.Render(tok.TokenID),
			))
		}
		sections = append(sections, boxStyle.Render(strings.Join(rows, "\n")))
	}

	if m.showGraph {
		sections = append(sections, boxStyle.Render(m.renderBalanceGraph()))
	}

	if n := len(m.snap.Transactions); n > 0 {
		sections = append(sections, subtleStyle.Render(fmt.Sprintf("%d transactions  (press t to view)", n)))
	}

	if m.cmdReply != "" {
		sections = append(sections, boxStyle.Render("assistant: "+m.cmdReply))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderTransactions() string {
	header := tableHeaderStyle.Render(fmt.Sprintf("Transactions (%s)", m.txFilter))
	return lipgloss.JoinVertical(lipgloss.Left, header, m.txViewport.View())
}

func (m model) renderPayForm() string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		tableHeaderStyle.Render("Send payment"),
		"Recipient: "+m.payInputs[0].View(),
		"Amount:    "+m.payInputs[1].View(),
		subtleStyle.Render("enter to send, esc to cancel"),
	))
}

func (m model) renderLinkForm() string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		tableHeaderStyle.Render("Link Hedera account"),
		"Account ID:  "+m.linkInputs[0].View(),
		"Private key: "+m.linkInputs[1].View(),
		subtleStyle.Render("enter to link, esc to cancel"),
	))
}

func (m model) renderCommandPrompt() string {
	parts := []string{
		tableHeaderStyle.Render("Ask the assistant"),
		m.cmdInput.View(),
	}
	if m.cmdReply != "" {
		parts = append(parts, "", m.cmdReply)
	}
	parts = append(parts, subtleStyle.Render("enter to send, esc to close"))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m model) renderHelp() string {
	switch m.mode {
	case modeTransactions:
		return subtleStyle.Render("f: filter • r: refresh • esc: back")
	case modePay, modeLink, modeCommand:
		return subtleStyle.Render("tab: next field • enter: submit • esc: cancel")
	}

	keys := []string{"r: refresh", "t: transactions", "g: graph", "q: quit"}
	switch {
	case m.snap.Phase == syncer.PhaseUnregistered:
		keys = append([]string{"R: register"}, keys...)
	case m.snap.IsRegistered && !m.snap.IsLinked:
		keys = append([]string{"p: pay", "l: link account", ":: assistant"}, keys...)
	case m.snap.IsRegistered:
		keys = append([]string{"p: pay", "c: copy account", "u: copy url", ":: assistant"}, keys...)
	}
	if m.snap.Phase != syncer.PhaseUnauthenticated {
		keys = append(keys, "x: sign out")
	}
	return subtleStyle.Render(strings.Join(keys, " • "))
}
