package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/config"
	"github.com/HederaPayBot/hbarpay/pkg/syncer"
)

func Start(s *syncer.Syncer, tracker *auth.Tracker, cfg config.Config, version string) {
	Version = version
	p := tea.NewProgram(
		initialModel(s, tracker, cfg),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
