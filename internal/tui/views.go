package tui

import (
	"fmt"
	"strings"

	"github.com/MostroP2P/mostrix/models"
)

func (m appModel) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")

	switch m.tab {
	case tabOrders:
		b.WriteString(m.ordersView())
	case tabDisputes:
		b.WriteString(m.disputesView())
	case tabChat:
		b.WriteString(m.chatView())
	}

	if m.prompting {
		b.WriteString("\n\n" + overlayBoxStyle.Render("Invoice for "+shortID(m.promptOrder.ID.String())+"\n"+m.invoiceInput.View()))
	}
	if m.showOverlay {
		b.WriteString("\n\n" + m.overlayView())
	}
	if m.status != "" {
		b.WriteString("\n\n" + helpStyle.Render(m.status))
	}
	b.WriteString("\n\n" + helpStyle.Render(m.helpView()))

	return appStyle.Render(b.String())
}

func (m appModel) headerView() string {
	labels := []string{"Orders", "Disputes", "Chat"}
	parts := make([]string, len(labels))
	for i, label := range labels {
		if tab(i) == m.tab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = inactiveTabStyle.Render(label)
		}
	}
	header := titleStyle.Render("mostrix") + "  " + strings.Join(parts, "  ")
	if m.pending > 0 {
		header += "  " + pendingStyle.Render(fmt.Sprintf("[%d new]", m.pending))
	}
	return header
}

func (m appModel) ordersView() string {
	if len(m.orders) == 0 {
		return helpStyle.Render("no open orders")
	}

	var b strings.Builder
	for i, order := range m.orders {
		line := orderLine(order)
		if i == m.orderIdx {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func orderLine(order models.Order) string {
	id := "?"
	if order.ID != nil {
		id = shortID(order.ID.String())
	}
	fiat := fmt.Sprintf("%d", order.FiatAmount)
	if order.IsRange() {
		fiat = fmt.Sprintf("%d-%d", *order.MinAmount, *order.MaxAmount)
	}
	return fmt.Sprintf("%-8s %-4s %8s %-4s %+d%% %-20s %-10s %s",
		id, order.Kind, fiat, order.FiatCode, order.Premium, order.PaymentMethod, order.Status, sats(order.Amount))
}

func sats(amount int64) string {
	if amount == 0 {
		return "market"
	}
	return fmt.Sprintf("%d sats", amount)
}

func (m appModel) disputesView() string {
	if len(m.disputes) == 0 {
		return helpStyle.Render("no open disputes")
	}

	var b strings.Builder
	for i, entry := range m.disputes {
		line := fmt.Sprintf("%-12s %s", shortID(entry.DisputeID), entry.Status)
		if i == m.disputeIdx {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m appModel) chatView() string {
	if m.deps.Chat == nil {
		return helpStyle.Render("chat requires an arbitrator key")
	}
	if m.chatDispute == "" {
		return helpStyle.Render("select a dispute first (enter on the Disputes tab)")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("dispute %s / %s channel", shortID(m.chatDispute), m.chatParty)) + "\n\n")

	transcript := m.deps.Chat.Transcript(m.chatDispute)
	if len(transcript) == 0 {
		b.WriteString(helpStyle.Render("no messages yet") + "\n")
	}
	for _, line := range transcript {
		rendered := fmt.Sprintf("%-6s %s", line.Sender, line.Content)
		if line.Sender == models.SenderAdmin {
			rendered = adminLineStyle.Render(rendered)
		}
		b.WriteString(rendered + "\n")
	}

	if m.composing {
		b.WriteString("\n" + m.chatInput.View())
	}
	return b.String()
}

func (m appModel) overlayView() string {
	if m.overlayErr != nil {
		return overlayBoxStyle.Render(errorStyle.Render(m.overlayTitle+" failed") + "\n" + m.overlayErr.Error() + "\n\n" + helpStyle.Render("enter to dismiss"))
	}
	body := m.overlayTitle + " ok"
	if m.overlayDetail != "" {
		body += "\n" + m.overlayDetail
	}
	return overlayBoxStyle.Render(body + "\n\n" + helpStyle.Render("enter to dismiss"))
}

func (m appModel) helpView() string {
	switch {
	case m.prompting, m.composing:
		return "enter confirm · esc cancel"
	case m.tab == tabOrders:
		return "t take · f fiat sent · r release · x cancel · d dispute · c copy id · m mark read · tab switch · q quit"
	case m.tab == tabDisputes:
		if m.deps.Admin != nil {
			return "t take · s settle · x cancel · enter chat · c copy id · tab switch · q quit"
		}
		return "enter chat · c copy id · tab switch · q quit"
	default:
		return "w write · b switch party · a download attachment · p copy peer pubkey · tab switch · q quit"
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
