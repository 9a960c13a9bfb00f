package messagelog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/beingharisali/martchat/internal/bus"
	"github.com/beingharisali/martchat/internal/model"
)

// MessageAPI is the slice of the REST client the log needs.
type MessageAPI interface {
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	SendMessage(ctx context.Context, chatID, content string, att *model.Attachment) (*model.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

// Broadcaster relays a server-confirmed message to other participants'
// live connections.
type Broadcaster interface {
	SendMessage(msg *model.Message)
}

// Log holds the ordered message history for the selected chat. Display
// order is CreatedAt ascending; appends deduplicate by message id, so the
// REST append and the socket echo of the same message coexist safely.
type Log struct {
	api    MessageAPI
	caster Broadcaster
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	chatID string
	msgs   []model.Message
}

// New creates an empty message log.
func New(api MessageAPI, caster Broadcaster, b *bus.Bus, logger *zap.Logger) *Log {
	return &Log{
		api:    api,
		caster: caster,
		bus:    b,
		logger: logger,
	}
}

// ChatID returns the chat the log currently targets, or empty.
func (l *Log) ChatID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chatID
}

// Messages returns a snapshot of the log in display order.
func (l *Log) Messages() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// SetTarget points the log at a chat, clearing it when the chat changes.
// Must be called in selection order (not from the fetch goroutines): the
// target is what decides which in-flight Load results are still wanted.
func (l *Log) SetTarget(chatID string) {
	l.mu.Lock()
	if l.chatID != chatID {
		l.chatID = chatID
		l.msgs = nil
	}
	l.mu.Unlock()
}

// Load replaces the log with chatID's history. A fetch that completes
// after the target moved to another chat is discarded, so a slow load can
// never overwrite a newer selection's data.
func (l *Log) Load(ctx context.Context, chatID string) error {
	l.mu.Lock()
	if l.chatID != chatID {
		// Already superseded before the fetch started.
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	msgs, err := l.api.ListMessages(ctx, chatID)

	l.mu.Lock()
	if l.chatID != chatID {
		// Superseded by a newer selection; drop the result either way.
		l.mu.Unlock()
		return nil
	}
	if err != nil {
		l.mu.Unlock()
		l.bus.Emit(bus.MessageLoadFailed, err.Error())
		return err
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	l.msgs = msgs
	l.mu.Unlock()

	l.bus.Emit(bus.MessageLoaded, chatID)
	return nil
}

// Reset clears the log, e.g. when the open chat is deleted.
func (l *Log) Reset() {
	l.mu.Lock()
	l.chatID = ""
	l.msgs = nil
	l.mu.Unlock()
}

// Append inserts a message in CreatedAt order. Returns false for
// duplicates (known id) and for messages that belong to another chat.
// Out-of-order arrivals (clock skew, replay) land in sorted position.
func (l *Log) Append(msg model.Message) bool {
	l.mu.Lock()
	if l.chatID == "" || (msg.ChatID() != "" && msg.ChatID() != l.chatID) {
		l.mu.Unlock()
		return false
	}
	for i := range l.msgs {
		if l.msgs[i].ID == msg.ID {
			l.mu.Unlock()
			return false
		}
	}
	// Common case is an append at the tail; walk back only as far as needed.
	pos := len(l.msgs)
	for pos > 0 && msg.CreatedAt.Before(l.msgs[pos-1].CreatedAt) {
		pos--
	}
	l.msgs = append(l.msgs, model.Message{})
	copy(l.msgs[pos+1:], l.msgs[pos:])
	l.msgs[pos] = msg
	l.mu.Unlock()

	l.bus.Emit(bus.MessageAppended, msg.ID)
	return true
}

// Send validates, persists the message, appends the server's authoritative
// copy and broadcasts it live. Nothing local changes before the server
// confirms, so a failed send needs no rollback.
func (l *Log) Send(ctx context.Context, content string, att *model.Attachment) (*model.Message, error) {
	if strings.TrimSpace(content) == "" && att == nil {
		return nil, &model.ValidationError{Reason: "message is empty"}
	}
	chatID := l.ChatID()
	if chatID == "" {
		return nil, &model.ValidationError{Reason: "no chat selected"}
	}

	msg, err := l.api.SendMessage(ctx, chatID, content, att)
	if err != nil {
		return nil, err
	}
	l.Append(*msg)
	l.caster.SendMessage(msg)
	return msg, nil
}

// Delete removes a message from the server, then from the log.
func (l *Log) Delete(ctx context.Context, messageID string) error {
	if err := l.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	l.mu.Lock()
	kept := l.msgs[:0]
	for _, m := range l.msgs {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	l.msgs = kept
	l.mu.Unlock()

	l.bus.Emit(bus.MessageRemoved, messageID)
	return nil
}
