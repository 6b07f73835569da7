package tui

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/MostroP2P/mostrix/internal/attachment"
	"github.com/MostroP2P/mostrix/internal/chatsync"
	"github.com/MostroP2P/mostrix/internal/service"
	"github.com/MostroP2P/mostrix/internal/workers"
	"github.com/MostroP2P/mostrix/models"
)

type tab int

const (
	tabOrders tab = iota
	tabDisputes
	tabChat
)

// Deps is everything the shell drives. Admin and Chat are nil when no
// arbitrator key is configured; the disputes tab then stays read-only.
type Deps struct {
	Orders   service.OrderService
	Admin    service.AdminService
	Book     *workers.OrderBookPoller
	Listener *workers.OrderMessageListener
	Chat     *chatsync.Syncer
	Attach   *attachment.Fetcher
}

const refreshEvery = 2 * time.Second

type appModel struct {
	ctx  context.Context
	deps Deps

	tab      tab
	orders   []models.Order
	disputes []workers.DisputeEntry
	pending  int

	orderIdx   int
	disputeIdx int

	// invoice prompt shown before taking a sell order
	prompting    bool
	promptOrder  models.Order
	invoiceInput textinput.Model

	// chat composer
	chatDispute string
	chatParty   models.ChatParty
	chatInput   textinput.Model
	composing   bool

	showOverlay   bool
	overlayTitle  string
	overlayDetail string
	overlayErr    error

	status string
}

func newAppModel(ctx context.Context, deps Deps) appModel {
	invoice := textinput.New()
	invoice.Placeholder = "lnbc..."
	invoice.CharLimit = 2048

	chat := textinput.New()
	chat.Placeholder = "message"
	chat.CharLimit = 1024

	return appModel{
		ctx:          ctx,
		deps:         deps,
		chatParty:    models.PartyBuyer,
		invoiceInput: invoice,
		chatInput:    chat,
	}
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.cmdRefresh(), m.cmdTick())
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.orders = msg.orders
		m.disputes = msg.disputes
		m.pending = msg.pending
		m.clampSelection()
		return m, m.cmdTick()

	case opDoneMsg:
		m.showOverlay = true
		m.overlayTitle = msg.label
		m.overlayDetail = msg.detail
		m.overlayErr = msg.err
		return m, m.cmdRefresh()

	case chatSentMsg:
		if msg.err != nil {
			m.showOverlay = true
			m.overlayTitle = "Send message"
			m.overlayErr = msg.err
		}
		return m, nil

	case copiedMsg:
		m.status = "copied to clipboard"
		return m, cmdClearStatus()

	case clearStatusMsg:
		m.status = ""
		return m, nil

	case tea.WindowSizeMsg:
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	return m.updateInputs(msg)
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showOverlay {
		if key.Matches(msg, keys.enter) || key.Matches(msg, keys.esc) {
			m.showOverlay = false
			m.overlayErr = nil
		}
		return m, nil
	}
	if m.prompting {
		return m.updateInvoicePrompt(msg)
	}
	if m.composing {
		return m.updateComposer(msg)
	}

	switch {
	case key.Matches(msg, keys.quit):
		return m, tea.Quit
	case key.Matches(msg, keys.tab), key.Matches(msg, keys.right):
		m.tab = (m.tab + 1) % 3
		return m, nil
	case key.Matches(msg, keys.left):
		m.tab = (m.tab + 2) % 3
		return m, nil
	case key.Matches(msg, keys.refresh):
		return m, m.cmdRefresh()
	case key.Matches(msg, keys.markRead):
		m.deps.Listener.MarkRead()
		m.pending = 0
		return m, nil
	}

	switch m.tab {
	case tabOrders:
		return m.updateOrders(msg)
	case tabDisputes:
		return m.updateDisputes(msg)
	case tabChat:
		return m.updateChat(msg)
	}
	return m, nil
}

func (m appModel) updateOrders(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	order, selected := m.currentOrder()

	switch {
	case key.Matches(msg, keys.up):
		if m.orderIdx > 0 {
			m.orderIdx--
		}
	case key.Matches(msg, keys.down):
		if m.orderIdx < len(m.orders)-1 {
			m.orderIdx++
		}
	case key.Matches(msg, keys.copyID):
		if selected && order.ID != nil {
			return m, cmdCopyToClipboard(order.ID.String())
		}
	case key.Matches(msg, keys.take):
		if !selected || order.ID == nil {
			return m, nil
		}
		if order.Kind == models.KindSell {
			m.prompting = true
			m.promptOrder = order
			m.invoiceInput.SetValue("")
			m.invoiceInput.Focus()
			return m, textinput.Blink
		}
		return m, m.cmdOp("Take buy", func(ctx context.Context) error {
			_, err := m.deps.Orders.TakeBuy(ctx, *order.ID, nil)
			return err
		})
	case key.Matches(msg, keys.fiatSent):
		if selected && order.ID != nil {
			return m, m.cmdOp("Fiat sent", func(ctx context.Context) error {
				_, err := m.deps.Orders.FiatSent(ctx, *order.ID)
				return err
			})
		}
	case key.Matches(msg, keys.release):
		if selected && order.ID != nil {
			return m, m.cmdOp("Release", func(ctx context.Context) error {
				_, err := m.deps.Orders.Release(ctx, *order.ID)
				return err
			})
		}
	case key.Matches(msg, keys.cancel):
		if selected && order.ID != nil {
			return m, m.cmdOp("Cancel", func(ctx context.Context) error {
				_, err := m.deps.Orders.Cancel(ctx, *order.ID)
				return err
			})
		}
	case key.Matches(msg, keys.dispute):
		if selected && order.ID != nil {
			return m, m.cmdOp("Open dispute", func(ctx context.Context) error {
				_, err := m.deps.Orders.OpenDispute(ctx, *order.ID)
				return err
			})
		}
	}
	return m, nil
}

func (m appModel) updateDisputes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entry, selected := m.currentDispute()

	switch {
	case key.Matches(msg, keys.up):
		if m.disputeIdx > 0 {
			m.disputeIdx--
		}
	case key.Matches(msg, keys.down):
		if m.disputeIdx < len(m.disputes)-1 {
			m.disputeIdx++
		}
	case key.Matches(msg, keys.copyID):
		if selected {
			return m, cmdCopyToClipboard(entry.DisputeID)
		}
	case key.Matches(msg, keys.enter):
		if selected {
			m.chatDispute = entry.DisputeID
			m.tab = tabChat
		}
	case key.Matches(msg, keys.take):
		if selected && m.deps.Admin != nil {
			return m, m.cmdTakeDispute(entry.DisputeID)
		}
	case key.Matches(msg, keys.settle):
		if selected && m.deps.Admin != nil {
			return m, m.cmdOp("Settle dispute", func(ctx context.Context) error {
				_, err := m.deps.Admin.Settle(ctx, entry.DisputeID)
				return err
			})
		}
	case key.Matches(msg, keys.cancel):
		if selected && m.deps.Admin != nil {
			return m, m.cmdOp("Cancel dispute", func(ctx context.Context) error {
				_, err := m.deps.Admin.Cancel(ctx, entry.DisputeID)
				return err
			})
		}
	}
	return m, nil
}

func (m appModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.party):
		if m.chatParty == models.PartyBuyer {
			m.chatParty = models.PartySeller
		} else {
			m.chatParty = models.PartyBuyer
		}
	case key.Matches(msg, keys.write):
		if m.chatDispute != "" && m.deps.Chat != nil {
			m.composing = true
			m.chatInput.SetValue("")
			m.chatInput.Focus()
			return m, textinput.Blink
		}
	case key.Matches(msg, keys.attach):
		if m.chatDispute != "" && m.deps.Chat != nil && m.deps.Attach != nil {
			return m, m.cmdDownloadAttachment(m.chatDispute)
		}
	case key.Matches(msg, keys.copyPubkey):
		if m.chatDispute != "" && m.deps.Chat != nil {
			if pub, err := m.deps.Chat.PartyPubkey(m.ctx, m.chatDispute, m.chatParty); err == nil {
				return m, cmdCopyToClipboard(pub)
			}
		}
	}
	return m, nil
}

func (m appModel) updateInvoicePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.esc):
		m.prompting = false
		m.invoiceInput.Blur()
		return m, nil
	case key.Matches(msg, keys.enter):
		invoice := m.invoiceInput.Value()
		order := m.promptOrder
		m.prompting = false
		m.invoiceInput.Blur()
		return m, m.cmdOp("Take sell", func(ctx context.Context) error {
			_, err := m.deps.Orders.TakeSell(ctx, *order.ID, invoice, nil)
			return err
		})
	}

	var cmd tea.Cmd
	m.invoiceInput, cmd = m.invoiceInput.Update(msg)
	return m, cmd
}

func (m appModel) updateComposer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.esc):
		m.composing = false
		m.chatInput.Blur()
		return m, nil
	case key.Matches(msg, keys.enter):
		text := m.chatInput.Value()
		m.composing = false
		m.chatInput.Blur()
		if text == "" {
			return m, nil
		}
		return m, m.cmdSendChat(m.chatDispute, m.chatParty, text)
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m appModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.prompting:
		m.invoiceInput, cmd = m.invoiceInput.Update(msg)
	case m.composing:
		m.chatInput, cmd = m.chatInput.Update(msg)
	}
	return m, cmd
}

func (m *appModel) clampSelection() {
	if m.orderIdx >= len(m.orders) {
		m.orderIdx = len(m.orders) - 1
	}
	if m.orderIdx < 0 {
		m.orderIdx = 0
	}
	if m.disputeIdx >= len(m.disputes) {
		m.disputeIdx = len(m.disputes) - 1
	}
	if m.disputeIdx < 0 {
		m.disputeIdx = 0
	}
}

func (m appModel) currentOrder() (models.Order, bool) {
	if m.orderIdx < 0 || m.orderIdx >= len(m.orders) {
		return models.Order{}, false
	}
	return m.orders[m.orderIdx], true
}

func (m appModel) currentDispute() (workers.DisputeEntry, bool) {
	if m.disputeIdx < 0 || m.disputeIdx >= len(m.disputes) {
		return workers.DisputeEntry{}, false
	}
	return m.disputes[m.disputeIdx], true
}

func (m appModel) snapshot() refreshMsg {
	return refreshMsg{
		orders:   m.deps.Book.Orders(),
		disputes: m.deps.Book.Disputes(),
		pending:  m.deps.Listener.Pending(),
	}
}

func (m appModel) cmdRefresh() tea.Cmd {
	return func() tea.Msg {
		return m.snapshot()
	}
}

func (m appModel) cmdTick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return m.snapshot()
	})
}

func (m appModel) cmdOp(label string, op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{label: label, err: op(ctx)}
	}
}

func (m appModel) cmdTakeDispute(disputeID string) tea.Cmd {
	ctx := m.ctx
	admin := m.deps.Admin
	return func() tea.Msg {
		id, err := uuid.Parse(disputeID)
		if err != nil {
			return opDoneMsg{label: "Take dispute", err: fmt.Errorf("dispute id: %w", err)}
		}
		_, err = admin.TakeDispute(ctx, id)
		return opDoneMsg{label: "Take dispute", err: err}
	}
}

// cmdDownloadAttachment fetches, decrypts and saves the most recent
// attachment referenced in the dispute's transcript.
func (m appModel) cmdDownloadAttachment(disputeID string) tea.Cmd {
	ctx := m.ctx
	chat := m.deps.Chat
	fetcher := m.deps.Attach
	channelParty := m.chatParty
	return func() tea.Msg {
		line := latestAttachment(chat.Transcript(disputeID))
		if line == nil {
			return opDoneMsg{label: "Download attachment", err: errors.New("no attachment in this dispute")}
		}
		att := line.Attachment
		blobURL, err := attachment.ResolveURL(att.BlossomURL)
		if err != nil {
			return opDoneMsg{label: "Download attachment", err: err}
		}
		blob, err := fetcher.Fetch(ctx, blobURL)
		if err != nil {
			return opDoneMsg{label: "Download attachment", err: err}
		}

		data, decrypted := blob, false
		if key, keyErr := attachmentKey(ctx, chat, disputeID, senderParty(line.Sender, channelParty), att); keyErr == nil {
			if plain, decErr := attachment.Decrypt(blob, key); decErr == nil {
				data, decrypted = plain, true
			}
		}

		path, err := fetcher.Save(disputeID, att, data, decrypted)
		if err != nil {
			return opDoneMsg{label: "Download attachment", err: err}
		}
		return opDoneMsg{label: "Download attachment", detail: path}
	}
}

type attachmentKeySource interface {
	AttachmentSecret(ctx context.Context, disputeID string, party models.ChatParty) ([]byte, error)
}

// attachmentKey prefers the key embedded in the attachment reference and
// falls back to the ECDH secret shared with the sender's side of the
// dispute.
func attachmentKey(ctx context.Context, chat attachmentKeySource, disputeID string, party models.ChatParty, att *models.ChatAttachment) ([]byte, error) {
	if att.DecryptionKey != "" {
		return hex.DecodeString(att.DecryptionKey)
	}
	return chat.AttachmentSecret(ctx, disputeID, party)
}

// senderParty maps an attachment's author to the dispute side whose shared
// secret encrypts it. The arbitrator's own uploads belong to the channel
// they were sent on.
func senderParty(sender models.ChatSender, channel models.ChatParty) models.ChatParty {
	switch sender {
	case models.SenderBuyer:
		return models.PartyBuyer
	case models.SenderSeller:
		return models.PartySeller
	}
	return channel
}

func latestAttachment(transcript []models.ChatMessage) *models.ChatMessage {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Attachment != nil {
			return &transcript[i]
		}
	}
	return nil
}

func (m appModel) cmdSendChat(disputeID string, party models.ChatParty, text string) tea.Cmd {
	ctx := m.ctx
	chat := m.deps.Chat
	return func() tea.Msg {
		return chatSentMsg{err: chat.SendMessage(ctx, disputeID, party, text)}
	}
}

func cmdCopyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return opDoneMsg{label: "Copy", err: err}
		}
		return copiedMsg{}
	}
}

func cmdClearStatus() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
