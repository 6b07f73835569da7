// Package chatsync keeps dispute chat channels in sync: it derives and
// persists the per-(dispute, party) shared keys, incrementally fetches new
// wraps addressed to them, appends applied lines to per-dispute transcript
// files and advances the fetch cursor only after a whole batch landed.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/MostroP2P/mostrix/internal/envelope"
	"github.com/MostroP2P/mostrix/internal/keyring"
	"github.com/MostroP2P/mostrix/internal/logger"
	"github.com/MostroP2P/mostrix/internal/relay"
	"github.com/MostroP2P/mostrix/internal/store"
	"github.com/MostroP2P/mostrix/models"
)

// fetchWindow caps how far back one incremental query may reach.
const fetchWindow = 7 * 24 * time.Hour

// ErrNoPartyPubkey means the dispute record does not carry the trade pubkey
// of the requested side, so no shared key can exist yet.
var ErrNoPartyPubkey = errors.New("party pubkey unknown for dispute")

type channelKey struct {
	disputeID string
	party     models.ChatParty
}

// Syncer owns all dispute chat state for the arbitrator.
type Syncer struct {
	admin     *keyring.Keys
	transport relay.Client
	disputes  store.DisputeRepository
	chats     store.ChatRepository
	files     *transcriptStore
	log       *logger.Logger

	// fetching is the single-flight guard: a fetch cycle slower than the
	// poll interval must not pile up behind itself.
	fetching atomic.Bool

	mu          sync.Mutex
	sharedKeys  map[channelKey]*keyring.Keys
	transcripts map[string][]models.ChatMessage // by dispute id
	lastSeen    map[channelKey]int64            // file/UI view, DB governs fetches
}

func New(admin *keyring.Keys, transport relay.Client, disputes store.DisputeRepository, chats store.ChatRepository, transcriptsDir string, log *logger.Logger) *Syncer {
	return &Syncer{
		admin:       admin,
		transport:   transport,
		disputes:    disputes,
		chats:       chats,
		files:       newTranscriptStore(transcriptsDir),
		log:         log,
		sharedKeys:  make(map[channelKey]*keyring.Keys),
		transcripts: make(map[string][]models.ChatMessage),
		lastSeen:    make(map[channelKey]int64),
	}
}

// Restore replays the transcript files into memory so the UI has the full
// conversation before the first fetch. The file-derived timestamps seed the
// per-party view; the DB cursor still governs what gets fetched, the two
// normally agree.
func (s *Syncer) Restore() error {
	replayed, err := s.files.replayAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for disputeID, lines := range replayed {
		s.transcripts[disputeID] = lines
		for _, line := range lines {
			party, ok := partyOfSender(line.Sender)
			if !ok {
				continue
			}
			key := channelKey{disputeID, party}
			if line.Timestamp > s.lastSeen[key] {
				s.lastSeen[key] = line.Timestamp
			}
		}
	}
	s.log.Debug().Int("disputes", len(replayed)).Msg("chat transcripts restored")
	return nil
}

// EnsureSharedKey returns the chat channel keys for one side of a dispute,
// deriving and persisting them on first use.
func (s *Syncer) EnsureSharedKey(ctx context.Context, disputeID string, party models.ChatParty) (*keyring.Keys, error) {
	key := channelKey{disputeID, party}

	s.mu.Lock()
	if keys, ok := s.sharedKeys[key]; ok {
		s.mu.Unlock()
		return keys, nil
	}
	s.mu.Unlock()

	// persisted from an earlier run?
	secretHex, found, err := s.chats.GetSharedKey(ctx, disputeID, party)
	if err != nil {
		return nil, err
	}
	if found {
		keys, err := keyring.KeysFromHex(secretHex)
		if err != nil {
			return nil, fmt.Errorf("stored shared key for %s/%s: %w", disputeID, party, err)
		}
		return s.rememberSharedKey(key, keys), nil
	}

	dispute, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	partyPub, ok := dispute.PartyPubkey(party)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPartyPubkey, disputeID, party)
	}

	keys, err := keyring.SharedKeys(s.admin, partyPub)
	if err != nil {
		return nil, fmt.Errorf("derive shared key for %s/%s: %w", disputeID, party, err)
	}
	if err = s.chats.SetSharedKey(ctx, disputeID, party, keys.SecretHex()); err != nil {
		return nil, err
	}

	s.checkKeyIntegrity(key, keys)
	return s.rememberSharedKey(key, keys), nil
}

func (s *Syncer) rememberSharedKey(key channelKey, keys *keyring.Keys) *keyring.Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedKeys[key] = keys
	return keys
}

// checkKeyIntegrity warns loudly when two distinct counterparties collapse
// onto one shared key. That can only come from bad relay data or a parsing
// bug upstream; processing continues degraded.
func (s *Syncer) checkKeyIntegrity(key channelKey, keys *keyring.Keys) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for other, otherKeys := range s.sharedKeys {
		if other == key {
			continue
		}
		if otherKeys.SecretHex() == keys.SecretHex() {
			s.log.Warn().
				Str("func", "Syncer.checkKeyIntegrity").
				Str("dispute_id", key.disputeID).
				Str("party", string(key.party)).
				Str("other_dispute_id", other.disputeID).
				Str("other_party", string(other.party)).
				Msg("distinct counterparties derived identical shared keys, data integrity fault")
		}
	}
}

// FetchAll runs one incremental fetch cycle over every in-progress dispute.
// A second trigger while a cycle is in flight is a no-op; the guard clears
// unconditionally when the cycle ends, success or failure.
func (s *Syncer) FetchAll(ctx context.Context) {
	if !s.fetching.CompareAndSwap(false, true) {
		s.log.Debug().Str("func", "Syncer.FetchAll").Msg("fetch cycle already in flight")
		return
	}
	defer s.fetching.Store(false)

	disputes, err := s.disputes.GetDisputes(ctx)
	if err != nil {
		s.log.Err(err).Str("func", "Syncer.FetchAll").Msg("cannot list disputes")
		return
	}
	for _, dispute := range disputes {
		for _, party := range []models.ChatParty{models.PartyBuyer, models.PartySeller} {
			if _, ok := dispute.PartyPubkey(party); !ok {
				continue
			}
			if err := s.fetchParty(ctx, dispute.DisputeID, party); err != nil {
				s.log.Err(err).
					Str("dispute_id", dispute.DisputeID).
					Str("party", string(party)).
					Msg("chat fetch failed")
			}
		}
	}
}

// fetchParty pulls and applies new messages for one channel. The cursor
// moves only after the whole batch is in the transcript, so a failure
// mid-cycle re-fetches instead of leaving a gap.
func (s *Syncer) fetchParty(ctx context.Context, disputeID string, party models.ChatParty) error {
	keys, err := s.EnsureSharedKey(ctx, disputeID, party)
	if err != nil {
		return err
	}

	cursor, _, err := s.chats.GetChatCursor(ctx, disputeID, party)
	if err != nil {
		return err
	}

	// Wrap timestamps are skewed backwards, so the relay filter reaches
	// behind the cursor; the cursor itself is enforced on inner timestamps.
	floor := time.Now().Add(-fetchWindow).Unix()
	sinceUnix := max(cursor-envelope.MaxTimestampSkew, floor)
	since := nostr.Timestamp(sinceUnix)

	events, err := s.transport.Fetch(ctx, nostr.Filters{{
		Kinds: []int{nostr.KindGiftWrap},
		Tags:  nostr.TagMap{"p": []string{keys.PublicHex()}},
		Since: &since,
	}})
	if err != nil {
		return fmt.Errorf("fetch chat wraps: %w", err)
	}

	batch := s.decodeBatch(ctx, disputeID, party, events, keys, cursor)
	if len(batch) == 0 {
		return nil
	}

	if err = s.applyBatch(disputeID, party, batch); err != nil {
		return err
	}

	maxSeen := batch[len(batch)-1].Timestamp
	affected, err := s.chats.SetChatCursor(ctx, disputeID, party, maxSeen)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.log.Warn().
			Str("dispute_id", disputeID).
			Str("party", string(party)).
			Int64("last_seen", maxSeen).
			Msg("chat cursor write was stale")
	}
	return nil
}

// decodeBatch turns raw wraps into chat lines newer than the cursor, sorted
// by timestamp. Undecodable events are logged and skipped.
func (s *Syncer) decodeBatch(ctx context.Context, disputeID string, party models.ChatParty, events []*nostr.Event, keys *keyring.Keys, cursor int64) []models.ChatMessage {
	dispute, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		s.log.Err(err).Str("dispute_id", disputeID).Msg("cannot load dispute for sender roles")
		return nil
	}

	var batch []models.ChatMessage
	for _, ev := range events {
		decoded, err := envelope.DecodeChat(ev, keys)
		if err != nil {
			s.log.Debug().Err(err).Str("event", ev.ID).Msg("skipping undecodable chat wrap")
			continue
		}
		ts := int64(decoded.Timestamp)
		if ts <= cursor {
			continue
		}
		line := models.ChatMessage{
			Sender:    senderRole(&dispute, party, s.admin.PublicHex(), decoded.Sender),
			Content:   decoded.Content,
			Timestamp: ts,
		}
		if att, ok := models.ParseChatAttachment(decoded.Content); ok {
			line.Attachment = att
		}
		batch = append(batch, line)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Timestamp < batch[j].Timestamp })
	return batch
}

type lineKey struct {
	timestamp int64
	sender    models.ChatSender
	content   string
}

// applyBatch appends the lines to the transcript file and memory,
// all-or-nothing from the cursor's point of view. Lines already in the
// transcript are skipped: the same wraps come back when a cursor write
// failed or the process died between the append and the cursor update.
func (s *Syncer) applyBatch(disputeID string, party models.ChatParty, batch []models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[lineKey]struct{}, len(s.transcripts[disputeID]))
	for _, line := range s.transcripts[disputeID] {
		seen[lineKey{line.Timestamp, line.Sender, line.Content}] = struct{}{}
	}
	fresh := make([]models.ChatMessage, 0, len(batch))
	for _, line := range batch {
		if _, dup := seen[lineKey{line.Timestamp, line.Sender, line.Content}]; dup {
			continue
		}
		fresh = append(fresh, line)
	}

	if len(fresh) > 0 {
		if err := s.files.appendLines(disputeID, fresh); err != nil {
			return fmt.Errorf("append transcript: %w", err)
		}
		s.transcripts[disputeID] = append(s.transcripts[disputeID], fresh...)
	}

	// the cursor still advances past a fully-duplicate batch, repairing an
	// earlier failed write
	key := channelKey{disputeID, party}
	if last := batch[len(batch)-1].Timestamp; last > s.lastSeen[key] {
		s.lastSeen[key] = last
	}
	return nil
}

// SendMessage publishes a chat line from the arbitrator to one side of a
// dispute and records it locally.
func (s *Syncer) SendMessage(ctx context.Context, disputeID string, party models.ChatParty, text string) error {
	keys, err := s.EnsureSharedKey(ctx, disputeID, party)
	if err != nil {
		return err
	}
	wrap, err := envelope.EncodeChat(text, s.admin, keys.PublicHex())
	if err != nil {
		return err
	}
	if err = s.transport.Publish(ctx, wrap); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}

	line := models.ChatMessage{Sender: models.SenderAdmin, Content: text, Timestamp: time.Now().Unix()}
	return s.applyBatch(disputeID, party, []models.ChatMessage{line})
}

// PartyPubkey returns the trade pubkey one side of a dispute speaks with.
func (s *Syncer) PartyPubkey(ctx context.Context, disputeID string, party models.ChatParty) (string, error) {
	dispute, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return "", err
	}
	pub, ok := dispute.PartyPubkey(party)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoPartyPubkey, disputeID, party)
	}
	return pub, nil
}

// AttachmentSecret derives the ECDH secret shared with one side of a
// dispute. Attachments whose reference carries no embedded key are
// encrypted under this secret by the sender.
func (s *Syncer) AttachmentSecret(ctx context.Context, disputeID string, party models.ChatParty) ([]byte, error) {
	pub, err := s.PartyPubkey(ctx, disputeID, party)
	if err != nil {
		return nil, err
	}
	return keyring.SharedSecret(s.admin, pub)
}

// Transcript returns the in-memory conversation of a dispute.
func (s *Syncer) Transcript(disputeID string) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]models.ChatMessage, len(s.transcripts[disputeID]))
	copy(lines, s.transcripts[disputeID])
	return lines
}

// LastSeen returns the newest applied timestamp for one channel as the UI
// knows it.
func (s *Syncer) LastSeen(disputeID string, party models.ChatParty) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen[channelKey{disputeID, party}]
}

// senderRole attributes an inner-event author to admin, buyer or seller.
// Unknown authors are attributed to the channel's own side.
func senderRole(dispute *models.Dispute, party models.ChatParty, adminPub, sender string) models.ChatSender {
	switch {
	case sender == adminPub:
		return models.SenderAdmin
	case dispute.BuyerPubkey != nil && sender == *dispute.BuyerPubkey:
		return models.SenderBuyer
	case dispute.SellerPubkey != nil && sender == *dispute.SellerPubkey:
		return models.SenderSeller
	case party == models.PartySeller:
		return models.SenderSeller
	default:
		return models.SenderBuyer
	}
}

// partyOfSender maps a transcript line author back to a channel side. Admin
// lines belong to whichever channel they were sent on, which a replayed
// file no longer records, so they do not contribute.
func partyOfSender(sender models.ChatSender) (models.ChatParty, bool) {
	switch sender {
	case models.SenderBuyer:
		return models.PartyBuyer, true
	case models.SenderSeller:
		return models.PartySeller, true
	}
	return "", false
}
