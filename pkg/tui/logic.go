package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/HederaPayBot/hbarpay/pkg/models"
	"github.com/HederaPayBot/hbarpay/pkg/utils"
)

// getFilteredTransactions applies the direction filter and orders the rows
// newest first for display.
func (m model) getFilteredTransactions() []models.Transaction {
	handle := m.snap.Handle
	filtered := make([]models.Transaction, 0, len(m.snap.Transactions))
	for _, tx := range m.snap.Transactions {
		isOut := strings.EqualFold(tx.Sender, handle)
		if m.txFilter == "in" && isOut {
			continue
		}
		if m.txFilter == "out" && !isOut {
			continue
		}
		filtered = append(filtered, tx)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})
	return filtered
}

func (m *model) updateTxViewport() {
	txs := m.getFilteredTransactions()
	if len(txs) == 0 {
		m.txViewport.SetContent("No transactions found.")
		return
	}

	var rows []string
	for _, tx := range txs {
		status := tx.Status
		switch status {
		case models.TxStatusCompleted:
			status = infoStyle.Render(status)
		case models.TxStatusFailed:
			status = errStyle.Render(status)
		}
		row := fmt.Sprintf("%-22s %-10s %10s  %s -> %s  %s",
			utils.TruncateString(tx.ID, 22),
			utils.TruncateString(tx.Type, 10),
			tx.Amount,
			utils.TruncateString(tx.Sender, 12),
			utils.TruncateString(tx.Recipient, 12),
			status,
		)
		if tx.Memo != "" {
			row += subtleStyle.Render("  # " + utils.TruncateString(tx.Memo, 24))
		}
		rows = append(rows, row)
	}
	m.txViewport.SetContent(strings.Join(rows, "\n"))
}

func (m model) renderBalanceGraph() string {
	if len(m.snap.History) < 2 {
		return subtleStyle.Render("collecting balance history...")
	}

	data := make([]float64, len(m.snap.History))
	for i, p := range m.snap.History {
		data[i] = p.Value
	}

	width := m.width - 12
	if width > 70 {
		width = 70
	}
	if len(data) > width && width > 0 {
		data = data[len(data)-width:]
	}

	return asciigraph.Plot(data, asciigraph.Height(8), asciigraph.Caption("HBAR balance"))
}
