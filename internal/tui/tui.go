// Package tui is the terminal shell: three tabs over the polled order book,
// the dispute list and the dispute chat channels. All coordinator traffic
// goes through the service layer; the shell never touches the transport
// directly.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MostroP2P/mostrix/internal/logger"
)

type TUI struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps, log *logger.Logger) *TUI {
	return &TUI{deps: deps, log: log}
}

// Run blocks until the user quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	model := newAppModel(ctx, t.deps)
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
