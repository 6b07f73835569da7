package tui

import (
	"github.com/MostroP2P/mostrix/internal/workers"
	"github.com/MostroP2P/mostrix/models"
)

// refreshMsg carries a fresh snapshot of the polled state into the model.
type refreshMsg struct {
	orders   []models.Order
	disputes []workers.DisputeEntry
	pending  int
}

// opDoneMsg is the outcome of any coordinator operation; label names the
// operation for the result overlay.
type opDoneMsg struct {
	label  string
	detail string
	err    error
}

type chatSentMsg struct {
	err error
}

type copiedMsg struct{}

type clearStatusMsg struct{}
